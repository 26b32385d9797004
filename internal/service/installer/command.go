package installer

import (
	"context"
	"fmt"

	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/hwinfo"
	"github.com/oshokin/archpack/internal/logger"
	"github.com/oshokin/archpack/internal/metrics"
	"github.com/oshokin/archpack/internal/registry"
	"github.com/oshokin/archpack/internal/repository/installation"
	"github.com/oshokin/archpack/internal/service/common"
)

const loggerName = "archpack-installer"

// Options contains inputs for the installer entry point.
type Options struct {
	// ConfigPath is the settings file (defaults to archpack.yaml).
	ConfigPath string
	// TablePath overrides the configured architecture table.
	TablePath string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Version is a release tag or "latest".
	Version string
	// ArchID is an explicit architecture, bypassing resolution.
	ArchID string
	// Descriptor is a hardware string used instead of the local inventory.
	Descriptor string
	// Force reinstalls an existing installation.
	Force bool
}

// Run executes the install workflow.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, loggerName)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if err = common.ApplyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return nil, err
	}

	if opts.TablePath != "" {
		cfg.ArchTable = opts.TablePath
	}

	table, err := common.LoadTable(ctx, cfg.ArchTable)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	recorder := metrics.New()

	result, err := New(cfg, table, Deps{
		Reader:   client,
		Receipts: installation.NewFileRepository(cfg.Install.Root),
		Metrics:  recorder,
	}).Install(ctx, Request{
		Version: opts.Version,
		Target: common.TargetRequest{
			ArchID:     opts.ArchID,
			Descriptor: opts.Descriptor,
			Inventory:  hwinfo.Default(),
		},
		Force: opts.Force,
	})

	if metricsErr := recorder.WriteTextfile(cfg.MetricsFile); metricsErr != nil {
		logger.WarnKV(ctx, "Failed to write metrics", "error", metricsErr)
	}

	if err != nil {
		return result, fmt.Errorf("install failed: %w", err)
	}

	logger.InfoKV(ctx, "Installer completed successfully",
		"path", result.Path,
		"already_installed", result.AlreadyInstalled)

	return result, nil
}

// ListInstallations returns the local installations recorded under the configured root.
func ListInstallations(ctx context.Context, configPath string) ([]*artifact.Installation, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	return installation.NewFileRepository(cfg.Install.Root).List(logger.WithName(ctx, loggerName))
}

// ListTags returns the newest release tags of the configured repository.
func ListTags(ctx context.Context, configPath string, limit int) ([]string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	return client.Tags(logger.WithName(ctx, loggerName), limit)
}

func newClient(cfg *config.Config) (*registry.Client, error) {
	return registry.NewClient(registry.Config{
		BaseURL:    cfg.Registry.BaseURL,
		Repository: cfg.Registry.Repository,
		Token:      cfg.Registry.Token(),
		Timeout:    cfg.Timeout,
	})
}
