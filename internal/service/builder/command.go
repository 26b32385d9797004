package builder

import (
	"context"
	"fmt"

	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/hwinfo"
	"github.com/oshokin/archpack/internal/logger"
	"github.com/oshokin/archpack/internal/metrics"
	"github.com/oshokin/archpack/internal/registry"
	"github.com/oshokin/archpack/internal/service/common"
	"github.com/oshokin/archpack/internal/toolchain"
)

// Options contains inputs for the builder entry point.
type Options struct {
	// ConfigPath is the settings file (defaults to archpack.yaml).
	ConfigPath string
	// TablePath overrides the configured architecture table.
	TablePath string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Version is the source version tag to build.
	Version string
	// ArchID is an explicit architecture, bypassing resolution.
	ArchID string
	// Descriptor is a hardware string used instead of the local inventory.
	Descriptor string
	// Jobs overrides the configured parallelism when positive.
	Jobs int
	// Publish uploads the artifact after the build.
	Publish bool
	// Clobber replaces existing release assets.
	Clobber bool
}

// Run executes the build workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "archpack-builder")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if err = common.ApplyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return err
	}

	if opts.TablePath != "" {
		cfg.ArchTable = opts.TablePath
	}

	table, err := common.LoadTable(ctx, cfg.ArchTable)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	deps := Deps{
		Toolchain: toolchain.NewCMake(cfg.Build.ToolchainBin),
		Fetcher:   toolchain.Git{},
		Metrics:   recorder,
	}

	if opts.Publish {
		client, clientErr := registry.NewClient(registry.Config{
			BaseURL:    cfg.Registry.BaseURL,
			Repository: cfg.Registry.Repository,
			Token:      cfg.Registry.Token(),
			Timeout:    cfg.Timeout,
		})
		if clientErr != nil {
			return clientErr
		}

		deps.Publisher = client
	}

	result, err := New(cfg, table, deps).Build(ctx, Request{
		Version: opts.Version,
		Target: common.TargetRequest{
			ArchID:     opts.ArchID,
			Descriptor: opts.Descriptor,
			Inventory:  hwinfo.Default(),
		},
		Jobs:    opts.Jobs,
		Publish: opts.Publish,
		Clobber: opts.Clobber,
	})

	if metricsErr := recorder.WriteTextfile(cfg.MetricsFile); metricsErr != nil {
		logger.WarnKV(ctx, "Failed to write metrics", "error", metricsErr)
	}

	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	logger.InfoKV(ctx, "Builder completed successfully",
		"artifact", result.Artifact.Path,
		"sha256", result.Artifact.Checksum,
		"skipped", result.Skipped,
		"published", result.Published)

	return nil
}
