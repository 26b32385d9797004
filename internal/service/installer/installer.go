package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/archpack/internal/archive"
	"github.com/oshokin/archpack/internal/checksum"
	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/fsutil"
	"github.com/oshokin/archpack/internal/lock"
	"github.com/oshokin/archpack/internal/logger"
	"github.com/oshokin/archpack/internal/metrics"
	"github.com/oshokin/archpack/internal/registry"
	"github.com/oshokin/archpack/internal/repository/installation"
	"github.com/oshokin/archpack/internal/service/common"
)

const (
	locksDir   = ".locks"
	stagingDir = ".staging"

	progressInterval = 2 * time.Second
)

var (
	// ErrVersionRequired is returned when no version or tag was given.
	ErrVersionRequired = errors.New("version is required")
	// ErrAssetNotFound is returned when the release has no artifact for the target.
	ErrAssetNotFound = errors.New("no artifact for this architecture in the release")
	// ErrSidecarNotFound is returned when the artifact has no checksum sidecar.
	ErrSidecarNotFound = errors.New("checksum sidecar is missing from the release")
	// ErrUnknownArch is returned when the requested architecture is not in the table.
	ErrUnknownArch = errors.New("architecture is not in the table")
	// ErrInstallationBusy is returned when a forced reinstall would replace running binaries.
	ErrInstallationBusy = errors.New("installation is in use by running processes")
)

// Request describes one installation.
type Request struct {
	// Version is a release tag or "latest".
	Version string
	// Target selects the architecture.
	Target common.TargetRequest
	// Force reinstalls an existing key.
	Force bool
}

// Result reports what the installer did.
type Result struct {
	// Target is the resolved architecture.
	Target artifact.Target
	// Key is the installation key directory name.
	Key string
	// Path is the installation directory.
	Path string
	// AlreadyInstalled is set when the key existed and nothing was done.
	AlreadyInstalled bool
	// Installation is the receipt, when one is available.
	Installation *artifact.Installation
}

// Deps are the collaborators of an Installer.
type Deps struct {
	// Reader fetches releases and assets.
	Reader registry.Reader
	// Receipts stores installation receipts.
	Receipts installation.Repository
	// Metrics records outcomes; nil disables recording.
	Metrics *metrics.Recorder
	// Processes lists running processes; defaults to ps.Processes.
	Processes func() ([]ps.Process, error)
}

// Installer installs artifacts for one project.
type Installer struct {
	cfg   *config.Config
	table *artifact.Table
	deps  Deps
}

// New creates an installer.
func New(cfg *config.Config, table *artifact.Table, deps Deps) *Installer {
	if deps.Processes == nil {
		deps.Processes = ps.Processes
	}

	if deps.Receipts == nil {
		deps.Receipts = installation.NewFileRepository(cfg.Install.Root)
	}

	return &Installer{cfg: cfg, table: table, deps: deps}
}

// List returns the local installations recorded by receipts.
func (i *Installer) List(ctx context.Context) ([]*artifact.Installation, error) {
	return i.deps.Receipts.List(ctx)
}

// Install installs the requested version for the resolved architecture.
func (i *Installer) Install(ctx context.Context, req Request) (result *Result, err error) {
	result = &Result{}

	defer func() {
		switch {
		case err != nil:
			i.deps.Metrics.ObserveInstall(metrics.OutcomeFailed, result.Target.ArchID)
		case result.AlreadyInstalled:
			i.deps.Metrics.ObserveInstall(metrics.OutcomeAlreadyInstalled, result.Target.ArchID)
		default:
			i.deps.Metrics.ObserveInstall(metrics.OutcomeInstalled, result.Target.ArchID)
		}
	}()

	version := strings.TrimSpace(req.Version)
	if version == "" {
		return result, ErrVersionRequired
	}

	if !common.SafeVersion(version) {
		return result, fmt.Errorf("%w: %q contains a path separator or space", ErrVersionRequired, version)
	}

	target, err := common.ResolveTarget(ctx, i.table, req.Target)
	if err != nil {
		return result, err
	}

	result.Target = target

	if _, ok := i.table.Family(target.ArchID); !ok {
		return result, fmt.Errorf("%w: %q (known: %s)", ErrUnknownArch, target.ArchID, strings.Join(i.table.IDs(), ", "))
	}

	// A moving tag is pinned first so the directory always names a concrete release.
	var release *artifact.Release

	if version == registry.LatestTag {
		if release, err = i.deps.Reader.Release(ctx, registry.LatestTag); err != nil {
			return result, err
		}

		if !common.SafeVersion(release.Tag) {
			return result, fmt.Errorf("%w: latest release tag %q contains a path separator or space",
				ErrVersionRequired, release.Tag)
		}

		logger.InfoKV(ctx, "Resolved latest release", "tag", release.Tag)
		version = release.Tag
	}

	result.Key = artifact.InstallKey(i.cfg.Project, version, target.ArchID)
	result.Path = filepath.Join(i.cfg.Install.Root, result.Key)

	ctx = logger.WithKV(ctx, "version", version, "arch", target.ArchID)

	if i.installed(ctx, req, result) {
		return result, nil
	}

	held, err := lock.Acquire(ctx, filepath.Join(i.cfg.Install.Root, locksDir, result.Key+".lock"))
	if err != nil {
		return result, fmt.Errorf("lock installation %s: %w", result.Key, err)
	}

	defer func() {
		if releaseErr := held.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release installation lock", "lock", held.Path(), "error", releaseErr)
		}
	}()

	// Another process may have finished the same key while we waited.
	if i.installed(ctx, req, result) {
		return result, nil
	}

	if req.Force && fsutil.Exists(result.Path) {
		if err = i.ensureNotRunning(result.Path); err != nil {
			return result, err
		}
	}

	if release == nil {
		if release, err = i.deps.Reader.Release(ctx, version); err != nil {
			return result, err
		}
	}

	installed, err := i.install(ctx, release, target, result)
	if err != nil {
		return result, err
	}

	result.Installation = installed

	return result, nil
}

// installed reports whether the key exists and the request does not force a reinstall.
func (i *Installer) installed(ctx context.Context, req Request, result *Result) bool {
	if req.Force || !fsutil.Exists(result.Path) {
		return false
	}

	result.AlreadyInstalled = true

	receipt, err := i.deps.Receipts.Load(ctx, result.Key)
	if err == nil {
		result.Installation = receipt
	} else if !errors.Is(err, installation.ErrNotFound) {
		logger.WarnKV(ctx, "Failed to read installation receipt", "key", result.Key, "error", err)
	}

	logger.InfoKV(ctx, "Already installed, nothing to do", "path", result.Path)

	return true
}

func (i *Installer) install(
	ctx context.Context,
	release *artifact.Release,
	target artifact.Target,
	result *Result,
) (*artifact.Installation, error) {
	asset, ok := registry.SelectAsset(release, target.ArchID, i.cfg.Platform)
	if !ok {
		return nil, fmt.Errorf("%w: arch %s on %s in release %s (available: %s)",
			ErrAssetNotFound, target.ArchID, i.cfg.Platform, release.Tag, availableArchs(release, i.cfg.Project))
	}

	sidecar, ok := registry.SidecarFor(release, asset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSidecarNotFound, asset.Name)
	}

	if name, parseErr := artifact.ParseName(asset.Name, i.cfg.Project); parseErr == nil {
		logger.DebugKV(ctx, "Selected artifact", "asset", asset.Name, "toolchain", name.ToolchainVersion)
	}

	staging := filepath.Join(i.cfg.Install.Root, stagingDir)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	downloaded := filepath.Join(staging, asset.Name)
	if err := fsutil.RemoveIfExists(downloaded); err != nil {
		return nil, fmt.Errorf("remove previous download: %w", err)
	}

	defer func() {
		if err := fsutil.RemoveIfExists(downloaded); err != nil {
			logger.WarnKV(ctx, "Failed to remove staged download", "path", downloaded, "error", err)
		}
	}()

	if err := i.download(ctx, asset, downloaded); err != nil {
		return nil, err
	}

	digest, err := i.verify(ctx, sidecar, asset, downloaded)
	if err != nil {
		return nil, err
	}

	extracted, err := os.MkdirTemp(staging, result.Key+"-")
	if err != nil {
		return nil, fmt.Errorf("create extraction directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(extracted)
	}()

	if err = archive.Extract(ctx, downloaded, extracted); err != nil {
		return nil, fmt.Errorf("extract %s: %w", asset.Name, err)
	}

	if err = replaceDir(extracted, result.Path); err != nil {
		return nil, err
	}

	committed := false

	defer func() {
		// A half-exposed installation is removed so the next run retries it.
		if !committed {
			_ = os.RemoveAll(result.Path)
		}
	}()

	entryPoints, err := i.expose(ctx, result.Path)
	if err != nil {
		return nil, err
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Failed to detect installing actor", "error", err)
	}

	receipt := &artifact.Installation{
		Version:     release.Tag,
		ArchID:      target.ArchID,
		Path:        result.Path,
		AssetName:   asset.Name,
		Checksum:    digest,
		EntryPoints: entryPoints,
		InstalledAt: time.Now().UTC(),
		InstalledBy: actor,
	}

	if err = i.deps.Receipts.Save(ctx, result.Key, receipt); err != nil {
		return nil, fmt.Errorf("save installation receipt: %w", err)
	}

	committed = true

	logger.InfoKV(ctx, "Installed artifact",
		"path", result.Path,
		"asset", asset.Name,
		"sha256", digest,
		"entry_points", strings.Join(entryPoints, ","))

	return receipt, nil
}

// download streams the asset while a ticker reports progress.
func (i *Installer) download(ctx context.Context, asset artifact.Asset, dest string) error {
	var received atomic.Int64

	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				logger.InfoKV(ctx, "Downloading", "asset", asset.Name,
					"received", received.Load(), "total", asset.Size)
			}
		}
	}()

	written, err := i.deps.Reader.Download(ctx, asset, dest, func(delta int64) {
		received.Add(delta)
		i.deps.Metrics.AddDownloaded(delta)
	})

	close(done)
	<-stopped

	if err != nil {
		return fmt.Errorf("download %s: %w", asset.Name, err)
	}

	logger.InfoKV(ctx, "Downloaded artifact", "asset", asset.Name, "size", written)

	return nil
}

// verify compares the download with the published sidecar and deletes it on mismatch.
func (i *Installer) verify(ctx context.Context, sidecar, asset artifact.Asset, downloaded string) (string, error) {
	data, err := i.deps.Reader.Fetch(ctx, sidecar)
	if err != nil {
		return "", fmt.Errorf("fetch checksum sidecar: %w", err)
	}

	expected, err := checksum.ParseSidecar(data, asset.Name)
	if err != nil {
		return "", err
	}

	if err = checksum.Verify(downloaded, expected); err != nil {
		var mismatch *checksum.MismatchError
		if errors.As(err, &mismatch) {
			logger.WarnKV(ctx, "Downloaded artifact does not match its checksum, deleting it",
				"asset", asset.Name,
				"expected", mismatch.Expected,
				"actual", mismatch.Actual)
		}

		if removeErr := fsutil.RemoveIfExists(downloaded); removeErr != nil {
			logger.WarnKV(ctx, "Failed to delete corrupt download", "path", downloaded, "error", removeErr)
		}

		return "", err
	}

	return strings.ToLower(expected), nil
}

// replaceDir moves src to dest, swapping out an existing dest.
func replaceDir(src, dest string) error {
	if !fsutil.Exists(dest) {
		if err := os.Rename(src, dest); err != nil {
			return fmt.Errorf("move installation into place: %w", err)
		}

		return nil
	}

	previous := dest + ".old"
	if err := os.RemoveAll(previous); err != nil {
		return fmt.Errorf("remove stale backup: %w", err)
	}

	if err := os.Rename(dest, previous); err != nil {
		return fmt.Errorf("move previous installation aside: %w", err)
	}

	if err := os.Rename(src, dest); err != nil {
		if restoreErr := os.Rename(previous, dest); restoreErr != nil {
			return errors.Join(fmt.Errorf("move installation into place: %w", err), restoreErr)
		}

		return fmt.Errorf("move installation into place: %w", err)
	}

	return os.RemoveAll(previous)
}

// availableArchs lists the architectures a release carries, for error hints.
func availableArchs(release *artifact.Release, project string) string {
	var ids []string

	for _, asset := range release.Assets {
		if artifact.IsSidecar(asset.Name) {
			continue
		}

		name, err := artifact.ParseName(asset.Name, project)
		if err != nil || slices.Contains(ids, name.ArchID) {
			continue
		}

		ids = append(ids, name.ArchID)
	}

	if len(ids) == 0 {
		return "none"
	}

	slices.Sort(ids)

	return strings.Join(ids, ", ")
}
