package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/archpack/internal/archive"
	"github.com/oshokin/archpack/internal/archtable"
	"github.com/oshokin/archpack/internal/checksum"
	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/fsutil"
	"github.com/oshokin/archpack/internal/logger"
	"github.com/oshokin/archpack/internal/metrics"
	"github.com/oshokin/archpack/internal/registry"
	"github.com/oshokin/archpack/internal/service/common"
	"github.com/oshokin/archpack/internal/toolchain"
)

var (
	// ErrVersionRequired is returned when no source version is given.
	ErrVersionRequired = errors.New("source version must be provided")
	// ErrUnknownArch is returned when the architecture is not in the table.
	ErrUnknownArch = errors.New("architecture is not defined in the table")
	// ErrToolchainTooOld is returned when the toolchain cannot target the architecture.
	ErrToolchainTooOld = errors.New("toolchain is too old for the architecture")
	// ErrSourceMissing is returned when the source tree is absent and no repository is configured.
	ErrSourceMissing = errors.New("source directory does not exist and no source repository is configured")
	// ErrPublisherRequired is returned when publishing is requested without a release store.
	ErrPublisherRequired = errors.New("publishing requires a release store")
)

// Request describes one build.
type Request struct {
	// Version is the source version tag.
	Version string
	// Target selects the architecture.
	Target common.TargetRequest
	// Jobs overrides the configured compile parallelism when positive.
	Jobs int
	// Publish uploads the artifact and its sidecar after the build.
	Publish bool
	// Clobber replaces existing release assets with the same name.
	Clobber bool
}

// Result describes the outcome of a build.
type Result struct {
	// Artifact is the verified local artifact.
	Artifact *artifact.Artifact
	// Target is the resolved architecture.
	Target artifact.Target
	// Skipped is set when a valid cached artifact was reused.
	Skipped bool
	// Published is set when the artifact and sidecar were uploaded.
	Published bool
	// States lists the visited states in order.
	States []State
}

// Deps are the collaborators of a Builder.
type Deps struct {
	// Toolchain compiles the project.
	Toolchain toolchain.Toolchain
	// Fetcher obtains missing sources, optional.
	Fetcher toolchain.Fetcher
	// Publisher uploads artifacts, required only for publishing builds.
	Publisher registry.Publisher
	// Metrics records outcomes, optional.
	Metrics *metrics.Recorder
}

// Builder runs builds against one configuration and architecture table.
type Builder struct {
	// cfg holds project, naming and directory settings.
	cfg *config.Config
	// table is the architecture table.
	table *artifact.Table
	// deps are the injected collaborators.
	deps Deps
}

// New creates a Builder. The config must already be validated.
func New(cfg *config.Config, table *artifact.Table, deps Deps) *Builder {
	return &Builder{cfg: cfg, table: table, deps: deps}
}

// run tracks one build in progress.
type run struct {
	req    Request
	result *Result
	family artifact.Family
	name   artifact.Name
	// toolchainVersion is empty until a cached artifact or the toolchain provides it.
	toolchainVersion string
	// produced is set once this run wrote an artifact and its sidecar.
	produced bool
}

func (r *run) enter(ctx context.Context, state State) {
	r.result.States = append(r.result.States, state)
	logger.DebugKV(ctx, "Build state", "state", string(state))
}

// Build executes the state machine for one (version, architecture).
func (b *Builder) Build(ctx context.Context, req Request) (result *Result, err error) {
	started := time.Now()
	r := &run{req: req, result: &Result{}}

	defer func() {
		arch := r.result.Target.ArchID

		switch {
		case err != nil:
			b.deps.Metrics.ObserveBuild(metrics.OutcomeFailed, arch, time.Since(started))
		case r.result.Skipped:
			b.deps.Metrics.ObserveBuild(metrics.OutcomeSkipped, arch, time.Since(started))
		default:
			b.deps.Metrics.ObserveBuild(metrics.OutcomeBuilt, arch, time.Since(started))
		}
	}()

	r.enter(ctx, StateResolveInputs)

	if err = b.resolveInputs(ctx, r); err != nil {
		return r.result, err
	}

	ctx = logger.WithKV(ctx, "version", req.Version, "arch", r.result.Target.ArchID)

	r.enter(ctx, StateCheckExisting)

	cached, err := b.checkExisting(ctx, r)
	if err != nil {
		return r.result, err
	}

	if cached != nil {
		r.enter(ctx, StateSkip)
		logger.InfoKV(ctx, "Valid artifact already exists, skipping build", "artifact", cached.Path)

		r.result.Artifact = cached
		r.result.Skipped = true
	} else {
		if err = b.build(ctx, r); err != nil {
			return r.result, err
		}
	}

	if req.Publish {
		r.enter(ctx, StatePublish)

		if err = b.publish(ctx, r.result.Artifact, req.Version, req.Clobber); err != nil {
			return r.result, err
		}

		r.result.Published = true
	}

	r.enter(ctx, StateDone)

	return r.result, nil
}

func (b *Builder) resolveInputs(ctx context.Context, r *run) error {
	r.req.Version = strings.TrimSpace(r.req.Version)
	if r.req.Version == "" {
		return ErrVersionRequired
	}

	if !common.SafeVersion(r.req.Version) {
		return fmt.Errorf("%w: %q contains a path separator or space", ErrVersionRequired, r.req.Version)
	}

	target, err := common.ResolveTarget(ctx, b.table, r.req.Target)
	if err != nil {
		return err
	}

	r.result.Target = target

	family, ok := b.table.Family(target.ArchID)
	if !ok {
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownArch, target.ArchID, strings.Join(b.table.IDs(), ", "))
	}

	r.family = family
	r.name = artifact.Name{
		Project:    b.cfg.Project,
		Version:    r.req.Version,
		Platform:   b.cfg.Platform,
		ArchID:     target.ArchID,
		ABI:        b.cfg.ABI,
		ArchiveExt: b.cfg.ArchiveFormat,
	}

	if r.req.Publish {
		if b.deps.Publisher == nil {
			return fmt.Errorf("%w: %w", registry.ErrUnauthorized, ErrPublisherRequired)
		}

		if err = b.deps.Publisher.CheckAuth(ctx); err != nil {
			return fmt.Errorf("publishing not permitted: %w", err)
		}
	}

	return nil
}

// checkExisting returns a verified cached artifact, or nil when a build is needed.
// Cached artifacts are looked up for any toolchain version so that a reuse
// never has to query the toolchain.
func (b *Builder) checkExisting(ctx context.Context, r *run) (*artifact.Artifact, error) {
	candidates, err := b.candidates(r.name)
	if err != nil {
		return nil, err
	}

	if len(candidates) > 1 {
		if err = b.detectToolchain(ctx, r); err != nil {
			return nil, err
		}

		exact := r.name
		exact.ToolchainVersion = r.toolchainVersion
		candidates = filterByName(candidates, exact)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	candidate := candidates[0]

	if ok, _ := archtable.SupportsToolchain(r.family, candidate.ToolchainVersion); !ok {
		logger.WarnKV(ctx, "Cached artifact was built with an unsupported toolchain, rebuilding",
			"artifact", candidate.String(), "min_toolchain", r.family.MinToolchain)
		b.purge(ctx, b.artifactPath(candidate))

		return nil, nil
	}

	path := b.artifactPath(candidate)

	cached, err := verifyCached(path)
	if err != nil {
		logger.WarnKV(ctx, "Cached artifact failed verification, purging and rebuilding",
			"artifact", path, "reason", err.Error())
		b.purge(ctx, path)

		return nil, nil
	}

	cached.Name = candidate
	r.toolchainVersion = candidate.ToolchainVersion

	return cached, nil
}

// candidates lists artifacts matching every name attribute except the toolchain version.
func (b *Builder) candidates(name artifact.Name) ([]artifact.Name, error) {
	entries, err := os.ReadDir(b.cfg.Build.ArtifactDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list cached artifacts: %w", err)
	}

	var result []artifact.Name

	// ReadDir returns entries sorted by file name.
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		toolchainVersion, ok := name.MatchToolchain(entry.Name())
		if !ok {
			continue
		}

		candidate := name
		candidate.ToolchainVersion = toolchainVersion
		result = append(result, candidate)
	}

	return result, nil
}

func filterByName(names []artifact.Name, want artifact.Name) []artifact.Name {
	for _, name := range names {
		if name == want {
			return []artifact.Name{name}
		}
	}

	return nil
}

// verifyCached checks size, archive structure and the sidecar digest.
// A missing sidecar is regenerated from a structurally valid archive.
func verifyCached(path string) (*artifact.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: empty file", archive.ErrCorrupt)
	}

	if err = archive.Validate(path); err != nil {
		return nil, err
	}

	digest, err := checksum.ReadSidecar(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		if digest, err = checksum.WriteSidecar(path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err = checksum.Verify(path, digest); err != nil {
			return nil, err
		}
	}

	return &artifact.Artifact{Path: path, Size: info.Size(), Checksum: digest}, nil
}

func (b *Builder) build(ctx context.Context, r *run) (err error) {
	r.enter(ctx, StateCleanAndBuild)

	if err = b.detectToolchain(ctx, r); err != nil {
		return err
	}

	name := r.name
	name.ToolchainVersion = r.toolchainVersion
	path := b.artifactPath(name)

	defer func() {
		if err != nil && !r.produced {
			b.purge(ctx, path)
		}
	}()

	sourceDir, err := b.ensureSource(ctx, r.req.Version)
	if err != nil {
		return err
	}

	buildDir := filepath.Join(b.cfg.Build.WorkDir, "build-arch"+r.family.ID)
	if err = os.RemoveAll(buildDir); err != nil {
		return fmt.Errorf("purge build directory: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(buildDir), 0o755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	r.enter(ctx, StateCompile)

	jobs := b.cfg.Build.Jobs
	if r.req.Jobs > 0 {
		jobs = r.req.Jobs
	}

	compiled, err := b.deps.Toolchain.Compile(ctx, toolchain.CompileRequest{
		SourceDir: sourceDir,
		BuildDir:  buildDir,
		ArchID:    r.family.ID,
		Jobs:      jobs,
		ExtraArgs: b.cfg.Build.CMakeArgs,
	})
	if err != nil {
		return fmt.Errorf("compile for arch %s: %w", r.family.ID, err)
	}

	r.enter(ctx, StatePackage)

	format, err := archive.ParseFormat(b.cfg.ArchiveFormat)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(b.cfg.Build.ArtifactDir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	if err = archive.Create(ctx, compiled.OutputDir, path, format); err != nil {
		return fmt.Errorf("package %s: %w", name.String(), err)
	}

	r.enter(ctx, StateHash)

	digest, err := checksum.WriteSidecar(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	r.produced = true
	r.result.Artifact = &artifact.Artifact{
		Name:     name,
		Path:     path,
		Size:     info.Size(),
		Checksum: digest,
	}

	logger.InfoKV(ctx, "Artifact built",
		"artifact", path,
		"size", info.Size(),
		"sha256", digest)

	return nil
}

// detectToolchain queries the toolchain once and enforces the family minimum.
func (b *Builder) detectToolchain(ctx context.Context, r *run) error {
	if r.toolchainVersion != "" {
		return nil
	}

	detected, err := b.deps.Toolchain.Version(ctx)
	if err != nil {
		return fmt.Errorf("detect toolchain version: %w", err)
	}

	ok, err := archtable.SupportsToolchain(r.family, detected)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrToolchainTooOld, err)
	}

	if !ok {
		return fmt.Errorf("%w: arch %s (%s) needs %s, found %s",
			ErrToolchainTooOld, r.family.ID, r.family.Name, r.family.MinToolchain, detected)
	}

	r.toolchainVersion = detected

	return nil
}

// ensureSource returns the source tree for version. With a configured
// repository every version gets its own checkout under the source directory.
func (b *Builder) ensureSource(ctx context.Context, version string) (string, error) {
	dir := b.cfg.Build.SourceDir
	if b.cfg.Build.SourceRepo == "" {
		if !fsutil.Exists(dir) {
			return "", fmt.Errorf("%w: %s", ErrSourceMissing, dir)
		}

		return dir, nil
	}

	dir = filepath.Join(dir, version)
	if fsutil.Exists(dir) {
		return dir, nil
	}

	if b.deps.Fetcher == nil {
		return "", fmt.Errorf("%w: %s", ErrSourceMissing, dir)
	}

	logger.InfoKV(ctx, "Fetching source", "repo", b.cfg.Build.SourceRepo, "dir", dir)

	if err := b.deps.Fetcher.Fetch(ctx, b.cfg.Build.SourceRepo, version, dir); err != nil {
		return "", fmt.Errorf("fetch source %s@%s: %w", b.cfg.Build.SourceRepo, version, err)
	}

	return dir, nil
}

func (b *Builder) artifactPath(name artifact.Name) string {
	return filepath.Join(b.cfg.Build.ArtifactDir, name.String())
}

func (b *Builder) purge(ctx context.Context, path string) {
	if err := fsutil.RemoveIfExists(path, path+checksum.SidecarExt, path+fsutil.PartialSuffix); err != nil {
		logger.WarnKV(ctx, "Failed to remove artifact", "artifact", path, "error", err)
	}
}
