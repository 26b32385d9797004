package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/archpack/internal/archive"
	"github.com/oshokin/archpack/internal/logger"
)

// Config holds the settings shared by the archpack binaries.
type Config struct {
	// Project is the artifact name prefix, e.g. "llama".
	Project string `yaml:"project"`
	// Platform is the OS/CPU marker in artifact names, e.g. "linux-amd64".
	Platform string `yaml:"platform"`
	// ABI is the C library flavor in artifact names, e.g. "gnu".
	ABI string `yaml:"abi"`
	// ArchiveFormat is "tar.gz" or "tar.zst".
	ArchiveFormat string `yaml:"archive_format"`
	// ArchTable is the path to the architecture pattern table.
	ArchTable string `yaml:"arch_table"`
	// Registry describes the release store.
	Registry Registry `yaml:"registry"`
	// Build holds builder settings.
	Build Build `yaml:"build"`
	// Install holds installer settings.
	Install Install `yaml:"install"`
	// Timeout bounds connection setup and response headers of network calls.
	Timeout time.Duration `yaml:"timeout"`
	// MetricsFile receives Prometheus textfile metrics when set.
	MetricsFile string `yaml:"metrics_file,omitempty"`
	// LogLevel is the default log level, overridden by --log-level.
	LogLevel string `yaml:"log_level"`
}

// Registry describes the release store.
type Registry struct {
	// BaseURL is the API root of the release store.
	BaseURL string `yaml:"base_url"`
	// Repository is the "owner/repo" holding the releases.
	Repository string `yaml:"repository"`
	// TokenEnv names the environment variable with the access token.
	TokenEnv string `yaml:"token_env"`
}

// Token returns the access token from the configured environment variable.
func (r Registry) Token() string {
	return strings.TrimSpace(os.Getenv(r.TokenEnv))
}

// Build holds builder settings.
type Build struct {
	// SourceDir is the project source tree, or the parent of per-version
	// checkouts when SourceRepo is set.
	SourceDir string `yaml:"source_dir"`
	// SourceRepo is cloned into SourceDir/{version} when that checkout is missing.
	SourceRepo string `yaml:"source_repo,omitempty"`
	// WorkDir holds per-architecture build directories.
	WorkDir string `yaml:"work_dir"`
	// ArtifactDir receives packaged artifacts and sidecars.
	ArtifactDir string `yaml:"artifact_dir"`
	// Jobs is the compile parallelism.
	Jobs int `yaml:"jobs"`
	// CMakeArgs are extra configure arguments.
	CMakeArgs []string `yaml:"cmake_args,omitempty"`
	// ToolchainBin is the directory with nvcc and cmake, PATH when empty.
	ToolchainBin string `yaml:"toolchain_bin,omitempty"`
}

// Install holds installer settings.
type Install struct {
	// Root holds one directory per installed (version, architecture).
	Root string `yaml:"root"`
	// BinDir receives the exposed entry points.
	BinDir string `yaml:"bin_dir"`
	// Mode is "wrapper" or "copy".
	Mode string `yaml:"mode"`
	// EntryPoints are glob patterns selecting executables to expose.
	EntryPoints []string `yaml:"entry_points"`
}

// Entry point exposure modes.
const (
	ModeWrapper = "wrapper"
	ModeCopy    = "copy"
)

const (
	// DefaultConfigFilename is the default settings filename.
	DefaultConfigFilename = "archpack.yaml"

	// DefaultArchTable is the default architecture table path.
	DefaultArchTable = "architectures.yaml"

	// DefaultTokenEnv is the default token environment variable.
	DefaultTokenEnv = "GITHUB_TOKEN"

	// DefaultBaseURL is the default release store API root.
	DefaultBaseURL = "https://api.github.com"

	// DefaultABI is the default artifact ABI marker.
	DefaultABI = "gnu"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// ErrInvalid wraps every failure to load a usable configuration.
var ErrInvalid = errors.New("invalid configuration")

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errProjectRequired is returned when the project name is missing.
	errProjectRequired = errors.New("project must be provided")
	// errRepositoryRequired is returned when the repository is missing or malformed.
	errRepositoryRequired = errors.New("registry.repository must be in owner/repo form")
	// errInvalidMode is returned for unknown install modes.
	errInvalidMode = errors.New("install.mode must be wrapper or copy")
	// errInvalidJobs is returned for negative parallelism.
	errInvalidJobs = errors.New("build.jobs must not be negative")
	// errInvalidLogLevel is returned for unknown log levels.
	errInvalidLogLevel = errors.New("unknown log_level")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read settings: %w", ErrInvalid, err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal settings: %w", ErrInvalid, err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return &cfg, nil
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	settings.Project = strings.TrimSpace(settings.Project)
	if settings.Project == "" {
		return errProjectRequired
	}

	owner, repo, ok := strings.Cut(settings.Registry.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return fmt.Errorf("%w: %q", errRepositoryRequired, settings.Registry.Repository)
	}

	if settings.Registry.BaseURL == "" {
		settings.Registry.BaseURL = DefaultBaseURL
	}

	if _, err := url.ParseRequestURI(settings.Registry.BaseURL); err != nil {
		return fmt.Errorf("invalid registry base URL: %w", err)
	}

	if settings.Registry.TokenEnv == "" {
		settings.Registry.TokenEnv = DefaultTokenEnv
	}

	if settings.Platform == "" {
		settings.Platform = runtime.GOOS + "-" + runtime.GOARCH
	}

	if settings.ABI == "" {
		settings.ABI = DefaultABI
	}

	if settings.ArchiveFormat == "" {
		settings.ArchiveFormat = string(archive.TarGz)
	}

	format, err := archive.ParseFormat(settings.ArchiveFormat)
	if err != nil {
		return err
	}

	settings.ArchiveFormat = string(format)

	if settings.ArchTable == "" {
		settings.ArchTable = DefaultArchTable
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}

	if _, ok = logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, settings.LogLevel)
	}

	if err = validateBuild(&settings.Build); err != nil {
		return err
	}

	return validateInstall(&settings.Install, settings.Project)
}

func validateBuild(build *Build) error {
	if build.Jobs < 0 {
		return errInvalidJobs
	}

	if build.Jobs == 0 {
		build.Jobs = runtime.NumCPU()
	}

	if build.SourceDir == "" {
		build.SourceDir = "src"
	}

	if build.WorkDir == "" {
		build.WorkDir = filepath.Join(".archpack", "work")
	}

	if build.ArtifactDir == "" {
		build.ArtifactDir = "dist"
	}

	return nil
}

func validateInstall(install *Install, project string) error {
	switch install.Mode {
	case "":
		install.Mode = ModeWrapper
	case ModeWrapper, ModeCopy:
	default:
		return fmt.Errorf("%w: %q", errInvalidMode, install.Mode)
	}

	base := dataHome()

	if install.Root == "" {
		install.Root = filepath.Join(base, project)
	}

	if install.BinDir == "" {
		install.BinDir = filepath.Join(base, "bin")
	}

	if len(install.EntryPoints) == 0 {
		install.EntryPoints = []string{"*"}
	}

	for _, pattern := range install.EntryPoints {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid entry point pattern %q: %w", pattern, err)
		}
	}

	return nil
}

// dataHome returns the per-user directory for installations.
func dataHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".archpack"
	}

	return filepath.Join(home, ".archpack")
}
