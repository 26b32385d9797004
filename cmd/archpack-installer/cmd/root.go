package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/exitcode"
	"github.com/oshokin/archpack/internal/service/common"
	"github.com/oshokin/archpack/internal/service/installer"
	"github.com/oshokin/archpack/internal/version"
)

var (
	// options collects the flags of the install command.
	options = &installer.Options{}
	// tagsLimit bounds the number of listed remote tags.
	tagsLimit int

	// rootCmd represents the base command for installing published artifacts.
	rootCmd = &cobra.Command{
		Use:          "archpack-installer <version|latest>",
		Short:        "Download, verify and install the artifact for this machine's architecture",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.Version = args[0]

			result, err := installer.Run(ctx, options)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.Path)

			return nil
		},
	}

	// listCmd prints the local installations.
	listCmd = &cobra.Command{
		Use:          "list",
		Short:        "List installed versions and architectures",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := common.ApplyLogLevel(options.LogLevel, ""); err != nil {
				return err
			}

			installations, err := installer.ListInstallations(cmd.Context(), options.ConfigPath)
			if err != nil {
				return err
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(writer, "VERSION\tARCH\tINSTALLED\tPATH")

			for _, inst := range installations {
				_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
					inst.Version, inst.ArchID, inst.InstalledAt.Local().Format(time.DateTime), inst.Path)
			}

			return writer.Flush()
		},
	}

	// tagsCmd prints the release tags of the configured repository.
	tagsCmd = &cobra.Command{
		Use:          "tags",
		Short:        "List release tags available in the release store",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := common.ApplyLogLevel(options.LogLevel, ""); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			tags, err := installer.ListTags(ctx, options.ConfigPath, tagsLimit)
			if err != nil {
				return err
			}

			for _, tag := range tags {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), tag)
			}

			return nil
		},
	}
)

// Execute runs the archpack-installer CLI and exits with the mapped status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(listCmd, tagsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.FromError(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	persistent.StringVar(&options.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	flags := rootCmd.Flags()
	flags.StringVarP(&options.TablePath, "table", "t", "", "path to architecture table (overrides config)")
	flags.StringVarP(&options.ArchID, "arch", "a", "", "explicit architecture identifier, skips hardware detection")
	flags.StringVarP(&options.Descriptor, "descriptor", "d", "", "hardware descriptor to resolve instead of local devices")
	flags.BoolVarP(&options.Force, "force", "f", false, "reinstall even when the installation exists")

	tagsCmd.Flags().IntVarP(&tagsLimit, "limit", "n", 30, "maximum number of tags to list")
}
