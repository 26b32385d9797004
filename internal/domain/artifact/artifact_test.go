package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleName() Name {
	return Name{
		Project:          "llama",
		Version:          "b4501",
		Platform:         "linux-amd64",
		ToolchainVersion: "12.4",
		ArchID:           "86",
		ABI:              "gnu",
		ArchiveExt:       "tar.gz",
	}
}

// TestNameString verifies the rendered file name and its sidecar.
func TestNameString(t *testing.T) {
	t.Parallel()

	n := sampleName()
	require.Equal(t, "llama-b4501-linux-amd64-toolchain12.4-arch86-gnu.tar.gz", n.String())
	require.Equal(t, "llama-b4501-linux-amd64-toolchain12.4-arch86-gnu.tar.gz.sha256", n.SidecarName())
	require.True(t, IsSidecar(n.SidecarName()))
	require.False(t, IsSidecar(n.String()))
}

// TestParseName_RoundTrip verifies ParseName reverses String, including dashed platforms.
func TestParseName_RoundTrip(t *testing.T) {
	t.Parallel()

	n := sampleName()
	parsed, err := ParseName(n.String(), n.Project)
	require.NoError(t, err)
	require.Equal(t, n, parsed)

	n.ArchiveExt = "tar.zst"
	n.Platform = "windows"
	parsed, err = ParseName(n.String(), n.Project)
	require.NoError(t, err)
	require.Equal(t, n, parsed)
}

// TestParseName_Invalid verifies malformed names are rejected.
func TestParseName_Invalid(t *testing.T) {
	t.Parallel()

	cases := []string{
		"other-b1-linux-toolchain12-arch86-gnu.tar.gz",
		"llama-b1",
		"llama-b1-linux-arch86-gnu.tar.gz",
		"llama-b1-linux-toolchain12-gnu.tar.gz",
		"llama-b1-linux-toolchain12-arch86-gnu",
	}
	for _, name := range cases {
		_, err := ParseName(name, "llama")
		require.ErrorIs(t, err, ErrInvalidName, name)
	}
}

// TestArchTag_Delimited verifies the tag keeps prefix identifiers apart.
func TestArchTag_Delimited(t *testing.T) {
	t.Parallel()

	require.Equal(t, "-arch75-", ArchTag("75"))
	require.False(t, strings.Contains("llama-b1-linux-toolchain12-arch750-gnu.tar.gz", ArchTag("75")))
	require.True(t, strings.Contains("llama-b1-linux-toolchain12-arch75-gnu.tar.gz", ArchTag("75")))
}

// TestTarget verifies the unknown state and explicit construction.
func TestTarget(t *testing.T) {
	t.Parallel()

	require.True(t, Target{}.Unknown())
	require.Equal(t, "unknown", Target{}.String())

	explicit := ExplicitTarget(" 89 ")
	require.False(t, explicit.Unknown())
	require.Equal(t, "89", explicit.String())
}

// TestTableLookup verifies family lookup and ID ordering.
func TestTableLookup(t *testing.T) {
	t.Parallel()

	table := &Table{Families: []Family{{ID: "75"}, {ID: "86"}}}
	family, ok := table.Family("86")
	require.True(t, ok)
	require.Equal(t, "86", family.ID)

	_, ok = table.Family("90")
	require.False(t, ok)
	require.Equal(t, []string{"75", "86"}, table.IDs())

	var nilTable *Table
	_, ok = nilTable.Family("86")
	require.False(t, ok)
}

// TestActorClone verifies that Clone returns a copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{Hostname: "gpu-node-01", Username: "builder"}
	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
}

// TestReleaseAsset verifies exact-name asset lookup.
func TestReleaseAsset(t *testing.T) {
	t.Parallel()

	release := &Release{Assets: []Asset{{ID: 1, Name: "a.tar.gz"}, {ID: 2, Name: "a.tar.gz.sha256"}}}
	asset, ok := release.Asset("a.tar.gz.sha256")
	require.True(t, ok)
	require.EqualValues(t, 2, asset.ID)

	_, ok = release.Asset("missing")
	require.False(t, ok)
	require.Equal(t, "llama-b1-arch86", InstallKey("llama", "b1", "86"))
}

// TestNameMatchToolchain verifies the toolchain version is recovered for dashed versions too.
func TestNameMatchToolchain(t *testing.T) {
	t.Parallel()

	n := sampleName()
	n.Version = "v1.2-rc1"

	rendered := n.String()
	n.ToolchainVersion = ""

	tc, ok := n.MatchToolchain(rendered)
	require.True(t, ok)
	require.Equal(t, "12.4", tc)

	_, ok = n.MatchToolchain("llama-v1.2-rc1-linux-amd64-toolchain12.4-arch860-gnu.tar.gz")
	require.False(t, ok)

	_, ok = n.MatchToolchain("llama-v1.2-rc1-linux-amd64-toolchain-arch86-gnu.tar.gz")
	require.False(t, ok)

	_, ok = n.MatchToolchain(rendered + ".sha256")
	require.False(t, ok)
}
