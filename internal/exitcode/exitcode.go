// Package exitcode maps pipeline errors to process exit codes shared by all binaries.
package exitcode

import (
	"errors"

	"github.com/oshokin/archpack/internal/archive"
	"github.com/oshokin/archpack/internal/archtable"
	"github.com/oshokin/archpack/internal/checksum"
	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/registry"
	"github.com/oshokin/archpack/internal/resolver"
	"github.com/oshokin/archpack/internal/service/builder"
	"github.com/oshokin/archpack/internal/service/installer"
	"github.com/oshokin/archpack/internal/toolchain"
)

// Exit codes for standardized error reporting.
const (
	// Success indicates the operation completed successfully.
	Success = 0
	// General indicates an unclassified failure.
	General = 1
	// Input indicates invalid arguments, configuration or architecture table.
	Input = 2
	// NoMatch indicates the hardware did not resolve to a known architecture.
	NoMatch = 3
	// Toolchain indicates a missing, outdated or failing build toolchain.
	Toolchain = 4
	// Integrity indicates a checksum mismatch or a corrupt archive.
	Integrity = 5
	// Network indicates a transport failure talking to the release store.
	Network = 6
	// Unauthorized indicates missing or insufficient release store credentials.
	Unauthorized = 7
	// NotFound indicates a missing release, artifact or sidecar.
	NotFound = 8
)

// FromError maps an error to its exit code. A non-nil error never maps to Success.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var toolchainErr *toolchain.Error

	switch {
	case errors.Is(err, resolver.ErrNoMatch):
		return NoMatch
	case errors.Is(err, config.ErrInvalid),
		errors.Is(err, archtable.ErrInvalidTable),
		errors.Is(err, archtable.ErrUnsupportedFormat),
		errors.Is(err, archive.ErrUnsupportedFormat),
		errors.Is(err, artifact.ErrInvalidName),
		errors.Is(err, registry.ErrInvalidRepository),
		errors.Is(err, builder.ErrVersionRequired),
		errors.Is(err, builder.ErrUnknownArch),
		errors.Is(err, installer.ErrVersionRequired),
		errors.Is(err, installer.ErrUnknownArch):
		return Input
	case errors.Is(err, builder.ErrToolchainTooOld),
		errors.Is(err, builder.ErrSourceMissing),
		errors.Is(err, toolchain.ErrVersionUnknown),
		errors.Is(err, toolchain.ErrNoOutput),
		errors.As(err, &toolchainErr):
		return Toolchain
	case errors.Is(err, checksum.ErrMismatch),
		errors.Is(err, checksum.ErrMalformedSidecar),
		errors.Is(err, archive.ErrCorrupt),
		errors.Is(err, archive.ErrUnsafePath):
		return Integrity
	case errors.Is(err, registry.ErrUnauthorized):
		return Unauthorized
	case errors.Is(err, registry.ErrReleaseNotFound),
		errors.Is(err, installer.ErrAssetNotFound),
		errors.Is(err, installer.ErrSidecarNotFound):
		return NotFound
	case errors.Is(err, registry.ErrNetwork):
		return Network
	default:
		return General
	}
}
