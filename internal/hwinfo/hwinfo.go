package hwinfo

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoDevices is returned when no source reports any accelerator.
var ErrNoDevices = errors.New("no accelerators detected")

// Inventory lists the descriptors of the local accelerators.
type Inventory interface {
	Descriptors(ctx context.Context) ([]string, error)
}

// Static returns a fixed descriptor list.
type Static []string

// Descriptors implements Inventory.
func (s Static) Descriptors(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// SMI queries the vendor management tool.
type SMI struct {
	// Binary is the tool to run, "nvidia-smi" when empty.
	Binary string
}

// Descriptors runs the query and returns one descriptor per device line.
func (s SMI) Descriptors(ctx context.Context) ([]string, error) {
	binary := s.Binary
	if binary == "" {
		binary = "nvidia-smi"
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, "--query-gpu=name", "--format=csv,noheader")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %s: %w", binary, msg, err)
		}

		return nil, fmt.Errorf("%s failed: %w", binary, err)
	}

	return splitLines(stdout.Bytes()), nil
}

// Proc reads the driver's per-device information files.
type Proc struct {
	// Root is the proc filesystem root, "/proc" when empty.
	Root string
}

// Descriptors returns the Model line of every /proc/driver/nvidia/gpus/*/information file.
func (p Proc) Descriptors(context.Context) ([]string, error) {
	root := p.Root
	if root == "" {
		root = "/proc"
	}

	paths, err := filepath.Glob(filepath.Join(root, "driver", "nvidia", "gpus", "*", "information"))
	if err != nil {
		return nil, fmt.Errorf("failed to list driver information files: %w", err)
	}

	sort.Strings(paths)

	var result []string

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		if model := modelLine(data); model != "" {
			result = append(result, model)
		}
	}

	return result, nil
}

// Chain tries each inventory in order and returns the first non-empty list.
type Chain []Inventory

// Descriptors implements Inventory. Errors are only reported when every source fails.
func (c Chain) Descriptors(ctx context.Context) ([]string, error) {
	var errs []error

	for _, inventory := range c {
		descriptors, err := inventory.Descriptors(ctx)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if len(descriptors) > 0 {
			return descriptors, nil
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrNoDevices}, errs...)...)
	}

	return nil, ErrNoDevices
}

// Default returns the management tool first, then the proc filesystem.
func Default() Inventory {
	return Chain{SMI{}, Proc{}}
}

func modelLine(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if ok && strings.TrimSpace(key) == "Model" {
			return strings.TrimSpace(value)
		}
	}

	return ""
}

func splitLines(data []byte) []string {
	var result []string

	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}
