package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/oshokin/archpack/internal/logger"
)

var (
	// ErrVersionUnknown is returned when the compiler version cannot be parsed.
	ErrVersionUnknown = errors.New("cannot determine toolchain version")
	// ErrNoOutput is returned when a build succeeds but produces no output directory.
	ErrNoOutput = errors.New("build produced no output directory")
)

var releasePattern = regexp.MustCompile(`release (\d+\.\d+)`)

// Toolchain compiles the project for one architecture.
type Toolchain interface {
	Version(ctx context.Context) (string, error)
	Compile(ctx context.Context, req CompileRequest) (CompileResult, error)
}

// CompileRequest describes one architecture-specific build.
type CompileRequest struct {
	// SourceDir is the project source tree.
	SourceDir string
	// BuildDir is the clean build directory for this architecture.
	BuildDir string
	// ArchID is the target architecture identifier.
	ArchID string
	// Jobs is the parallelism passed to the build tool; zero lets it decide.
	Jobs int
	// ExtraArgs are appended to the configure step.
	ExtraArgs []string
}

// CompileResult locates the build output.
type CompileResult struct {
	// OutputDir holds the executables to package.
	OutputDir string
}

// CMake builds with cmake and reports the nvcc version.
type CMake struct {
	// BinDir prefixes the tool names when set.
	BinDir string
	// Runner executes commands, ExecRunner when nil.
	Runner Runner
}

// NewCMake creates a toolchain using tools from binDir, or from PATH when empty.
func NewCMake(binDir string) *CMake {
	return &CMake{BinDir: binDir, Runner: ExecRunner{}}
}

// Version returns the "X.Y" release reported by nvcc --version.
func (c *CMake) Version(ctx context.Context) (string, error) {
	out, err := c.runner().Run(ctx, "", c.tool("nvcc"), "--version")
	if err != nil {
		return "", err
	}

	match := releasePattern.FindStringSubmatch(out)
	if match == nil {
		return "", fmt.Errorf("%w: unexpected nvcc output %q", ErrVersionUnknown, out)
	}

	return match[1], nil
}

// Compile configures and builds the project into req.BuildDir.
func (c *CMake) Compile(ctx context.Context, req CompileRequest) (CompileResult, error) {
	configure := []string{
		"-S", req.SourceDir,
		"-B", req.BuildDir,
		"-DCMAKE_CUDA_ARCHITECTURES=" + req.ArchID,
		"-DCMAKE_BUILD_TYPE=Release",
	}
	configure = append(configure, req.ExtraArgs...)

	logger.InfoKV(ctx, "Configuring build", "arch", req.ArchID, "build_dir", req.BuildDir)

	if _, err := c.runner().Run(ctx, req.SourceDir, c.tool("cmake"), configure...); err != nil {
		return CompileResult{}, err
	}

	build := []string{"--build", req.BuildDir, "--config", "Release"}
	if req.Jobs > 0 {
		build = append(build, "-j", strconv.Itoa(req.Jobs))
	}

	logger.InfoKV(ctx, "Compiling", "arch", req.ArchID, "jobs", req.Jobs)

	if _, err := c.runner().Run(ctx, req.SourceDir, c.tool("cmake"), build...); err != nil {
		return CompileResult{}, err
	}

	output := filepath.Join(req.BuildDir, "bin")

	info, err := os.Stat(output)
	if err != nil || !info.IsDir() {
		return CompileResult{}, fmt.Errorf("%w: %s", ErrNoOutput, output)
	}

	return CompileResult{OutputDir: output}, nil
}

func (c *CMake) runner() Runner {
	if c.Runner == nil {
		return ExecRunner{}
	}

	return c.Runner
}

func (c *CMake) tool(name string) string {
	if c.BinDir == "" {
		return name
	}

	return filepath.Join(c.BinDir, name)
}
