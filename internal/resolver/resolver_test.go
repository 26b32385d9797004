package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/archpack/internal/domain/artifact"
)

func testTable() *artifact.Table {
	return &artifact.Table{Families: []artifact.Family{
		{ID: "75", Name: "Turing", Patterns: []string{"RTX 20", "Tesla T4"}},
		{ID: "80", Name: "Ampere DC", Patterns: []string{"A100"}},
		{ID: "86", Name: "Ampere", Patterns: []string{"RTX 30", "A10"}},
		{ID: "89", Name: "Ada", Patterns: []string{"RTX 40"}},
		{ID: "890", Name: "Ada flagship", Patterns: []string{"RTX 4090"}},
	}}
}

// TestResolve_LongestMatchWins verifies the more specific pattern beats a prefix pattern.
func TestResolve_LongestMatchWins(t *testing.T) {
	t.Parallel()

	target := Resolve("NVIDIA GeForce RTX 4090", testTable())
	require.Equal(t, "890", target.ArchID)
	require.Equal(t, "RTX 4090", target.Pattern)
	require.Equal(t, "NVIDIA GeForce RTX 4090", target.Descriptor)

	target = Resolve("NVIDIA GeForce RTX 4070 Ti", testTable())
	require.Equal(t, "89", target.ArchID)

	target = Resolve("NVIDIA A100-SXM4-80GB", testTable())
	require.Equal(t, "80", target.ArchID)
}

// TestResolve_CaseInsensitive verifies matching ignores case.
func TestResolve_CaseInsensitive(t *testing.T) {
	t.Parallel()

	require.Equal(t, "75", Resolve("nvidia tesla t4", testTable()).ArchID)
}

// TestResolve_NoMatch verifies unknown hardware yields the unknown state.
func TestResolve_NoMatch(t *testing.T) {
	t.Parallel()

	target := Resolve("AMD Radeon RX 7900", testTable())
	require.True(t, target.Unknown())
	require.Empty(t, target.Pattern)

	require.True(t, Resolve("RTX 4090", nil).Unknown())
}

// TestResolve_TieKeepsTableOrder verifies equal-length matches keep the first pattern.
func TestResolve_TieKeepsTableOrder(t *testing.T) {
	t.Parallel()

	table := &artifact.Table{Families: []artifact.Family{
		{ID: "1", Patterns: []string{"ABC"}},
		{ID: "2", Patterns: []string{"BCD"}},
	}}

	for range 10 {
		require.Equal(t, "1", Resolve("xABCDx", table).ArchID)
	}
}

// TestResolve_CountsCharacters verifies multi-byte patterns are not favoured by their byte length.
func TestResolve_CountsCharacters(t *testing.T) {
	t.Parallel()

	table := &artifact.Table{Families: []artifact.Family{
		{ID: "1", Patterns: []string{"éé"}},
		{ID: "2", Patterns: []string{"abc"}},
	}}

	target := Resolve("abc éé", table)
	require.Equal(t, "2", target.ArchID)
	require.Equal(t, "abc", target.Pattern)
}

// TestResolve_Pure verifies repeated calls return identical results.
func TestResolve_Pure(t *testing.T) {
	t.Parallel()

	table := testTable()
	first := Resolve("NVIDIA GeForce RTX 3090", table)

	for range 5 {
		require.Equal(t, first, Resolve("NVIDIA GeForce RTX 3090", table))
	}
}

// TestResolveEach verifies per-device resolution and mixed detection.
func TestResolveEach(t *testing.T) {
	t.Parallel()

	descriptors := SplitDescriptor("NVIDIA GeForce RTX 3090\n\n  NVIDIA GeForce RTX 4080  \n")
	require.Equal(t, []string{"NVIDIA GeForce RTX 3090", "NVIDIA GeForce RTX 4080"}, descriptors)

	targets := ResolveEach(descriptors, testTable())
	require.Len(t, targets, 2)
	require.Equal(t, "86", targets[0].ArchID)
	require.Equal(t, "89", targets[1].ArchID)
	require.True(t, Mixed(targets))
	require.Equal(t, "86", First(targets).ArchID)

	same := ResolveEach([]string{"Matrox G200", "RTX 3080", "RTX 3060"}, testTable())
	require.False(t, Mixed(same))
	require.Equal(t, "86", First(same).ArchID)

	require.True(t, First(nil).Unknown())
	require.True(t, First(ResolveEach([]string{"Matrox"}, testTable())).Unknown())
}

// TestOverlaps verifies only cross-family containment is reported.
func TestOverlaps(t *testing.T) {
	t.Parallel()

	overlaps := Overlaps(testTable())
	require.Len(t, overlaps, 2)

	require.Equal(t, Overlap{OuterFamily: "80", Outer: "A100", InnerFamily: "86", Inner: "A10"}, overlaps[0])
	require.Equal(t, Overlap{OuterFamily: "890", Outer: "RTX 4090", InnerFamily: "89", Inner: "RTX 40"}, overlaps[1])
	require.Contains(t, overlaps[0].String(), `"A100" (arch 80)`)

	sameFamily := &artifact.Table{Families: []artifact.Family{
		{ID: "89", Patterns: []string{"RTX 40", "RTX 4090"}},
	}}
	require.Empty(t, Overlaps(sameFamily))
	require.Nil(t, Overlaps(nil))
}
