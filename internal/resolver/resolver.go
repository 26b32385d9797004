package resolver

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/oshokin/archpack/internal/domain/artifact"
)

// ErrNoMatch is returned by callers that need a concrete target and got none.
var ErrNoMatch = errors.New("no architecture pattern matches the hardware; pass --arch explicitly")

// Resolve returns the target whose pattern is the longest substring of descriptor.
// Length is counted in characters, not bytes.
// Ties on length keep the earliest pattern in table order.
func Resolve(descriptor string, table *artifact.Table) artifact.Target {
	target := artifact.Target{Descriptor: descriptor}
	if table == nil {
		return target
	}

	haystack := strings.ToLower(descriptor)
	bestLen := 0

	for _, family := range table.Families {
		for _, pattern := range family.Patterns {
			needle := strings.ToLower(strings.TrimSpace(pattern))
			length := utf8.RuneCountInString(needle)
			if length == 0 || length <= bestLen {
				continue
			}

			if strings.Contains(haystack, needle) {
				bestLen = length
				target.ArchID = family.ID
				target.Pattern = pattern
			}
		}
	}

	return target
}

// ResolveEach resolves every descriptor independently, in input order.
func ResolveEach(descriptors []string, table *artifact.Table) []artifact.Target {
	targets := make([]artifact.Target, 0, len(descriptors))
	for _, descriptor := range descriptors {
		targets = append(targets, Resolve(descriptor, table))
	}

	return targets
}

// First returns the first resolved target, or an unknown target when none resolved.
func First(targets []artifact.Target) artifact.Target {
	for _, target := range targets {
		if !target.Unknown() {
			return target
		}
	}

	if len(targets) > 0 {
		return targets[0]
	}

	return artifact.Target{}
}

// Mixed reports whether the resolved targets span more than one architecture.
func Mixed(targets []artifact.Target) bool {
	var first string

	for _, target := range targets {
		if target.Unknown() {
			continue
		}

		if first == "" {
			first = target.ArchID

			continue
		}

		if target.ArchID != first {
			return true
		}
	}

	return false
}

// SplitDescriptor splits a multi-device descriptor into one entry per non-empty line.
func SplitDescriptor(descriptor string) []string {
	lines := strings.Split(descriptor, "\n")

	result := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}
