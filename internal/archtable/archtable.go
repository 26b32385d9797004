package archtable

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/archpack/internal/domain/artifact"
)

var (
	// ErrInvalidTable is wrapped by every validation failure.
	ErrInvalidTable = errors.New("invalid architecture table")
	// ErrUnsupportedFormat is returned for unknown table file extensions.
	ErrUnsupportedFormat = errors.New("unsupported architecture table format")
)

// Load reads the table at path and validates it.
// The format is chosen by extension: .yaml/.yml or .json/.jsonc.
func Load(path string) (*artifact.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read architecture table %s: %w", path, err)
	}

	table, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return table, nil
}

// Parse decodes table data of the given extension and validates it.
func Parse(data []byte, ext string) (*artifact.Table, error) {
	var table artifact.Table

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse yaml table: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &table); err != nil {
			return nil, fmt.Errorf("failed to parse json table: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err := Validate(&table); err != nil {
		return nil, err
	}

	return &table, nil
}

// Validate checks structural rules of the table.
// Cross-family overlaps are not errors and are reported by the resolver.
func Validate(table *artifact.Table) error {
	if table == nil || len(table.Families) == 0 {
		return fmt.Errorf("%w: no families defined", ErrInvalidTable)
	}

	seen := make(map[string]struct{}, len(table.Families))

	for i, family := range table.Families {
		id := strings.TrimSpace(family.ID)
		if id == "" {
			return fmt.Errorf("%w: family #%d has an empty id", ErrInvalidTable, i+1)
		}

		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate family id %q", ErrInvalidTable, id)
		}

		seen[id] = struct{}{}

		if len(family.Patterns) == 0 {
			return fmt.Errorf("%w: family %q has no patterns", ErrInvalidTable, id)
		}

		for j, pattern := range family.Patterns {
			if strings.TrimSpace(pattern) == "" {
				return fmt.Errorf("%w: family %q pattern #%d is empty", ErrInvalidTable, id, j+1)
			}
		}

		if family.MinToolchain != "" {
			if _, err := semver.NewVersion(family.MinToolchain); err != nil {
				return fmt.Errorf("%w: family %q min_toolchain %q: %w",
					ErrInvalidTable, id, family.MinToolchain, err)
			}
		}
	}

	return nil
}

// SupportsToolchain reports whether the toolchain version can target the family.
// A family without a minimum accepts any version.
func SupportsToolchain(family artifact.Family, toolchainVersion string) (bool, error) {
	if family.MinToolchain == "" {
		return true, nil
	}

	minimum, err := semver.NewVersion(family.MinToolchain)
	if err != nil {
		return false, fmt.Errorf("invalid min_toolchain %q: %w", family.MinToolchain, err)
	}

	actual, err := semver.NewVersion(toolchainVersion)
	if err != nil {
		return false, fmt.Errorf("invalid toolchain version %q: %w", toolchainVersion, err)
	}

	return !actual.LessThan(minimum), nil
}
