package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/exitcode"
	"github.com/oshokin/archpack/internal/service/builder"
	"github.com/oshokin/archpack/internal/version"
)

var (
	// options collects the flags of the build command.
	options = &builder.Options{}

	// rootCmd represents the base command for building and publishing artifacts.
	rootCmd = &cobra.Command{
		Use:          "archpack-builder <version>",
		Short:        "Build an architecture-specific artifact, skipping when a valid one exists",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.Version = args[0]

			return builder.Run(ctx, options)
		},
	}
)

// Execute runs the archpack-builder CLI and exits with the mapped status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.FromError(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&options.TablePath, "table", "t", "", "path to architecture table (overrides config)")
	flags.StringVar(&options.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&options.ArchID, "arch", "a", "", "explicit architecture identifier, skips hardware detection")
	flags.StringVarP(&options.Descriptor, "descriptor", "d", "", "hardware descriptor to resolve instead of local devices")
	flags.IntVarP(&options.Jobs, "jobs", "j", 0, "parallel compile jobs (overrides config)")
	flags.BoolVar(&options.Publish, "publish", false, "upload the artifact and its sidecar to the release store")
	flags.BoolVar(&options.Clobber, "clobber", false, "replace existing release assets when publishing")
}
