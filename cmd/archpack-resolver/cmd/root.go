package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/exitcode"
	"github.com/oshokin/archpack/internal/hwinfo"
	"github.com/oshokin/archpack/internal/logger"
	"github.com/oshokin/archpack/internal/resolver"
	"github.com/oshokin/archpack/internal/service/common"
	"github.com/oshokin/archpack/internal/version"
)

var (
	// tablePath to the architecture table.
	tablePath string
	// logLevel overrides the default log level.
	logLevel string
	// diagnose prints every device and never fails on an unknown architecture.
	diagnose bool

	// rootCmd resolves the architecture identifier of a descriptor or of local hardware.
	rootCmd = &cobra.Command{
		Use:          "archpack-resolver [descriptor]",
		Short:        "Print the architecture identifier of the local accelerator or of a descriptor",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ctx = logger.WithName(ctx, "archpack-resolver")

			if err := common.ApplyLogLevel(logLevel, ""); err != nil {
				return err
			}

			if diagnose {
				ctx = logger.ToContext(ctx, logger.FromContext(ctx).WithOptions(logger.WithLevel(zapcore.DebugLevel)))
			}

			table, err := common.LoadTable(ctx, tablePath)
			if err != nil {
				return err
			}

			var descriptor string
			if len(args) == 1 {
				descriptor = args[0]
			}

			if diagnose {
				return runDiagnose(ctx, cmd.OutOrStdout(), table, descriptor)
			}

			target, err := common.ResolveTarget(ctx, table, common.TargetRequest{
				Descriptor: descriptor,
				Inventory:  hwinfo.Default(),
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), target.ArchID)

			return nil
		},
	}

	// validateCmd checks the architecture table and reports overlapping patterns.
	validateCmd = &cobra.Command{
		Use:          "validate",
		Short:        "Validate the architecture table and list overlapping patterns",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := common.ApplyLogLevel(logLevel, ""); err != nil {
				return err
			}

			ctx := logger.WithName(cmd.Context(), "archpack-resolver")

			table, err := common.LoadTable(ctx, tablePath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			patterns := 0
			for _, family := range table.Families {
				patterns += len(family.Patterns)
			}

			_, _ = fmt.Fprintf(out, "%s: %d families, %d patterns\n", tablePath, len(table.Families), patterns)

			for _, overlap := range resolver.Overlaps(table) {
				_, _ = fmt.Fprintf(out, "overlap: %s\n", overlap)
			}

			return nil
		},
	}
)

// runDiagnose prints one line per device and the selected architecture, "unknown" included.
func runDiagnose(ctx context.Context, out io.Writer, table *artifact.Table, descriptor string) error {
	descriptors := resolver.SplitDescriptor(descriptor)

	if len(descriptors) == 0 {
		detected, err := hwinfo.Default().Descriptors(ctx)
		if err != nil {
			logger.WarnKV(ctx, "Hardware inventory failed", "error", err)
		}

		descriptors = detected
	}

	targets := resolver.ResolveEach(descriptors, table)
	for _, target := range targets {
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", target.String(), target.Pattern, target.Descriptor)
	}

	_, _ = fmt.Fprintf(out, "arch: %s\n", resolver.First(targets).String())

	if resolver.Mixed(targets) {
		_, _ = fmt.Fprintln(out, "warning: devices resolve to different architectures")
	}

	return nil
}

// Execute runs the archpack-resolver CLI and exits with the mapped status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(validateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.FromError(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&tablePath, "table", "t", config.DefaultArchTable, "path to architecture table (yaml or jsonc)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&diagnose, "diagnose", false, "print every device and exit 0 even when the architecture is unknown")
}
