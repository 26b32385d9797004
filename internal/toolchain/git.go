package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/archpack/internal/logger"
)

// Fetcher obtains the source tree for a version.
type Fetcher interface {
	Fetch(ctx context.Context, repo, version, dir string) error
}

// Git clones a single tag or branch with depth 1.
type Git struct {
	// Runner executes commands, ExecRunner when nil.
	Runner Runner
}

// Fetch clones repo at version into dir. A failed clone leaves no directory behind.
func (g Git) Fetch(ctx context.Context, repo, version, dir string) error {
	runner := g.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", dir, err)
	}

	logger.InfoKV(ctx, "Fetching source", "repo", repo, "version", version, "dir", dir)

	_, err := runner.Run(ctx, "", "git", "clone", "--depth", "1", "--branch", version, repo, dir)
	if err != nil {
		_ = os.RemoveAll(dir)

		return err
	}

	return nil
}
