package installer

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/fsutil"
	"github.com/oshokin/archpack/internal/logger"
)

const (
	entryPointsDir  = "bin"
	entryPointMode  = 0o755
	maxCommNameSize = 15
)

// expose publishes the selected executables of an installation in the shared bin directory.
func (i *Installer) expose(ctx context.Context, installDir string) ([]string, error) {
	executables, err := i.entryPoints(installDir)
	if err != nil {
		return nil, err
	}

	if len(executables) == 0 {
		logger.WarnKV(ctx, "Installation has no entry points", "path", installDir)

		return nil, nil
	}

	if err = os.MkdirAll(i.cfg.Install.BinDir, 0o755); err != nil {
		return nil, fmt.Errorf("create bin directory: %w", err)
	}

	names := make([]string, 0, len(executables))

	for _, executable := range executables {
		name := filepath.Base(executable)
		target := filepath.Join(i.cfg.Install.BinDir, name)

		switch i.cfg.Install.Mode {
		case config.ModeCopy:
			err = copyEntryPoint(executable, target)
		default:
			err = writeWrapper(executable, target)
		}

		if err != nil {
			return nil, fmt.Errorf("expose %s: %w", name, err)
		}

		logger.DebugKV(ctx, "Exposed entry point", "name", name, "target", target, "mode", i.cfg.Install.Mode)

		names = append(names, name)
	}

	return names, nil
}

// entryPoints lists executables under bin/ matching the configured patterns.
func (i *Installer) entryPoints(installDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(installDir, entryPointsDir))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list entry points: %w", err)
	}

	var result []string

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, err
		}

		if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
			continue
		}

		if !matchesAny(entry.Name(), i.cfg.Install.EntryPoints) {
			continue
		}

		result = append(result, filepath.Join(installDir, entryPointsDir, entry.Name()))
	}

	return result, nil
}

func matchesAny(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	return slices.ContainsFunc(patterns, func(pattern string) bool {
		ok, err := filepath.Match(pattern, name)

		return err == nil && ok
	})
}

// writeWrapper writes a shell forwarder that execs the installed binary.
func writeWrapper(executable, target string) error {
	absolute, err := filepath.Abs(executable)
	if err != nil {
		return err
	}

	script := fmt.Sprintf("#!/bin/sh\nexec %s \"$@\"\n", shellQuote(absolute))

	return fsutil.WriteFileAtomic(target, []byte(script), entryPointMode)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// copyEntryPoint places the binary at target, validating its digest on the way.
func copyEntryPoint(executable, target string) error {
	data, err := os.ReadFile(executable)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)

	if !fsutil.Exists(target) {
		file, err := os.Create(target)
		if err != nil {
			return err
		}

		_ = file.Close()
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: entryPointMode,
		Checksum:   sum[:],
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	return fsutil.RemoveIfExists(target + ".old")
}

// ensureNotRunning fails when an executable of the installation is running.
func (i *Installer) ensureNotRunning(installDir string) error {
	executables, err := i.entryPoints(installDir)
	if err != nil || len(executables) == 0 {
		return err
	}

	names := make(map[string]struct{}, len(executables))
	for _, executable := range executables {
		names[commName(filepath.Base(executable))] = struct{}{}
	}

	processes, err := i.deps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	self := os.Getpid()

	for _, process := range processes {
		if process.Pid() == self {
			continue
		}

		if _, found := names[commName(process.Executable())]; found {
			return fmt.Errorf("%w: %s (pid %d)", ErrInstallationBusy, process.Executable(), process.Pid())
		}
	}

	return nil
}

// commName truncates a name the way the Linux kernel reports process names.
func commName(name string) string {
	if runtime.GOOS == "linux" && len(name) > maxCommNameSize {
		return name[:maxCommNameSize]
	}

	return name
}
