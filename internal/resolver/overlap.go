package resolver

import (
	"fmt"
	"strings"

	"github.com/oshokin/archpack/internal/domain/artifact"
)

// Overlap is a pair of patterns from different families where one contains the other.
// Such pairs are legal but make resolution depend on pattern length.
type Overlap struct {
	// OuterFamily owns the longer (containing) pattern.
	OuterFamily string
	// Outer is the containing pattern.
	Outer string
	// InnerFamily owns the contained pattern.
	InnerFamily string
	// Inner is the contained pattern.
	Inner string
}

// String describes the overlap for warning output.
func (o Overlap) String() string {
	return fmt.Sprintf("pattern %q (arch %s) contains %q (arch %s)",
		o.Outer, o.OuterFamily, o.Inner, o.InnerFamily)
}

// Overlaps lists every cross-family pattern pair where one contains the other.
// Patterns within the same family are never reported.
func Overlaps(table *artifact.Table) []Overlap {
	if table == nil {
		return nil
	}

	var overlaps []Overlap

	for i, left := range table.Families {
		for _, right := range table.Families[i+1:] {
			if left.ID == right.ID {
				continue
			}

			for _, lp := range left.Patterns {
				for _, rp := range right.Patterns {
					if overlap, ok := compare(left.ID, lp, right.ID, rp); ok {
						overlaps = append(overlaps, overlap)
					}
				}
			}
		}
	}

	return overlaps
}

func compare(leftID, leftPattern, rightID, rightPattern string) (Overlap, bool) {
	l := strings.ToLower(strings.TrimSpace(leftPattern))
	r := strings.ToLower(strings.TrimSpace(rightPattern))

	if l == "" || r == "" {
		return Overlap{}, false
	}

	switch {
	case len(l) >= len(r) && strings.Contains(l, r):
		return Overlap{OuterFamily: leftID, Outer: leftPattern, InnerFamily: rightID, Inner: rightPattern}, true
	case strings.Contains(r, l):
		return Overlap{OuterFamily: rightID, Outer: rightPattern, InnerFamily: leftID, Inner: leftPattern}, true
	default:
		return Overlap{}, false
	}
}
