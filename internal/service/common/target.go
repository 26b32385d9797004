//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/oshokin/archpack/internal/archtable"
	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/hwinfo"
	"github.com/oshokin/archpack/internal/logger"
	"github.com/oshokin/archpack/internal/resolver"
)

// TargetRequest selects how the target architecture is determined.
// The first non-empty source wins: ArchID, then Descriptor, then Inventory.
type TargetRequest struct {
	// ArchID is an explicit architecture identifier.
	ArchID string
	// Descriptor is a hardware string, possibly several lines.
	Descriptor string
	// Inventory enumerates local hardware when nothing else is given.
	Inventory hwinfo.Inventory
}

// LoadTable loads the architecture table and logs every cross-family overlap.
func LoadTable(ctx context.Context, path string) (*artifact.Table, error) {
	table, err := archtable.Load(path)
	if err != nil {
		return nil, err
	}

	for _, overlap := range resolver.Overlaps(table) {
		logger.WarnKV(ctx, "Architecture patterns overlap", "overlap", overlap.String())
	}

	return table, nil
}

// ResolveTarget determines the target architecture.
// Returns resolver.ErrNoMatch when no source yields a known architecture.
func ResolveTarget(ctx context.Context, table *artifact.Table, req TargetRequest) (artifact.Target, error) {
	if req.ArchID != "" {
		return artifact.ExplicitTarget(req.ArchID), nil
	}

	descriptors := resolver.SplitDescriptor(req.Descriptor)

	if len(descriptors) == 0 && req.Inventory != nil {
		detected, err := req.Inventory.Descriptors(ctx)
		if err != nil {
			return artifact.Target{}, fmt.Errorf("%w: %w", resolver.ErrNoMatch, err)
		}

		descriptors = detected
	}

	targets := resolver.ResolveEach(descriptors, table)
	for _, target := range targets {
		logger.DebugKV(ctx, "Resolved device",
			"descriptor", target.Descriptor,
			"arch", target.String(),
			"pattern", target.Pattern)
	}

	if resolver.Mixed(targets) {
		logger.WarnKV(ctx, "Devices resolve to different architectures, using the first one",
			"devices", len(targets))
	}

	target := resolver.First(targets)
	if target.Unknown() {
		return target, fmt.Errorf("%w: %q", resolver.ErrNoMatch, strings.Join(descriptors, "; "))
	}

	logger.InfoKV(ctx, "Resolved target architecture",
		"arch", target.ArchID,
		"descriptor", target.Descriptor,
		"pattern", target.Pattern)

	return target, nil
}
