package artifact

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// SidecarExt is the suffix of the detached checksum file.
	SidecarExt = ".sha256"

	toolchainMarker = "-toolchain"
	archMarker      = "-arch"
)

// ErrInvalidName is returned when an asset name does not follow the naming scheme.
var ErrInvalidName = errors.New("invalid artifact name")

// Name holds the attributes that deterministically name an artifact.
//
// Rendered form:
//
//	{project}-{version}-{platform}-toolchain{toolchain}-arch{arch}-{abi}.{ext}
type Name struct {
	Project          string
	Version          string
	Platform         string
	ToolchainVersion string
	ArchID           string
	ABI              string
	ArchiveExt       string
}

// String renders the artifact file name.
func (n Name) String() string {
	return fmt.Sprintf("%s-%s-%s%s%s%s%s-%s.%s",
		n.Project, n.Version, n.Platform,
		toolchainMarker, n.ToolchainVersion,
		archMarker, n.ArchID,
		n.ABI, strings.TrimPrefix(n.ArchiveExt, "."))
}

// SidecarName returns the name of the checksum sidecar.
func (n Name) SidecarName() string {
	return n.String() + SidecarExt
}

// MatchToolchain reports whether fileName is n rendered with some toolchain
// version, and returns that version. n.ToolchainVersion is ignored.
func (n Name) MatchToolchain(fileName string) (string, bool) {
	n.ToolchainVersion = "\x00"
	prefix, suffix, _ := strings.Cut(n.String(), "\x00")

	if len(fileName) <= len(prefix)+len(suffix) ||
		!strings.HasPrefix(fileName, prefix) || !strings.HasSuffix(fileName, suffix) {
		return "", false
	}

	toolchain := fileName[len(prefix) : len(fileName)-len(suffix)]
	if strings.Contains(toolchain, archMarker) || strings.ContainsAny(toolchain, "/\\") {
		return "", false
	}

	return toolchain, true
}

// ArchTag returns the delimited architecture tag for archID, e.g. "-arch86-".
// Matching on the delimited form keeps "arch75" from matching "arch750".
func ArchTag(archID string) string {
	return archMarker + archID + "-"
}

// IsSidecar reports whether name is a checksum sidecar.
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, SidecarExt)
}

// ParseName reverses Name.String for a known project.
// The version must not contain '-', the platform may.
func ParseName(name, project string) (Name, error) {
	rest, ok := strings.CutPrefix(name, project+"-")
	if !ok || project == "" {
		return Name{}, fmt.Errorf("%w: %q lacks project prefix %q", ErrInvalidName, name, project)
	}

	version, rest, ok := strings.Cut(rest, "-")
	if !ok || version == "" {
		return Name{}, fmt.Errorf("%w: %q has no version", ErrInvalidName, name)
	}

	toolchainAt := strings.LastIndex(rest, toolchainMarker)
	if toolchainAt <= 0 {
		return Name{}, fmt.Errorf("%w: %q has no toolchain marker", ErrInvalidName, name)
	}

	platform := rest[:toolchainAt]
	rest = rest[toolchainAt+len(toolchainMarker):]

	toolchain, rest, ok := strings.Cut(rest, archMarker)
	if !ok || toolchain == "" {
		return Name{}, fmt.Errorf("%w: %q has no architecture marker", ErrInvalidName, name)
	}

	archID, rest, ok := strings.Cut(rest, "-")
	if !ok || archID == "" {
		return Name{}, fmt.Errorf("%w: %q has no architecture", ErrInvalidName, name)
	}

	abi, ext, ok := strings.Cut(rest, ".")
	if !ok || abi == "" || ext == "" {
		return Name{}, fmt.Errorf("%w: %q has no abi or archive extension", ErrInvalidName, name)
	}

	return Name{
		Project:          project,
		Version:          version,
		Platform:         platform,
		ToolchainVersion: toolchain,
		ArchID:           archID,
		ABI:              abi,
		ArchiveExt:       ext,
	}, nil
}
