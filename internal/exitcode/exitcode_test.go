package exitcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/archpack/internal/checksum"
	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/registry"
	"github.com/oshokin/archpack/internal/resolver"
	"github.com/oshokin/archpack/internal/service/builder"
	"github.com/oshokin/archpack/internal/service/installer"
	"github.com/oshokin/archpack/internal/toolchain"
)

// TestFromError checks every error class maps to its documented code.
func TestFromError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{nil, Success},
		{errors.New("boom"), General},
		{fmt.Errorf("load: %w", config.ErrInvalid), Input},
		{fmt.Errorf("build failed: %w", builder.ErrUnknownArch), Input},
		{fmt.Errorf("install failed: %w", installer.ErrUnknownArch), Input},
		{fmt.Errorf("%w: %q", resolver.ErrNoMatch, "Matrox G200"), NoMatch},
		{fmt.Errorf("build failed: %w", builder.ErrToolchainTooOld), Toolchain},
		{fmt.Errorf("compile: %w", &toolchain.Error{Command: "cmake", Err: errors.New("exit status 1")}), Toolchain},
		{&checksum.MismatchError{Path: "a.tar.gz", Expected: "aa", Actual: "bb"}, Integrity},
		{fmt.Errorf("download: %w", registry.ErrNetwork), Network},
		{fmt.Errorf("publishing not permitted: %w", registry.ErrUnauthorized), Unauthorized},
		{fmt.Errorf("install failed: %w", registry.ErrReleaseNotFound), NotFound},
		{fmt.Errorf("install failed: %w", installer.ErrAssetNotFound), NotFound},
		{fmt.Errorf("install failed: %w", installer.ErrInstallationBusy), General},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, FromError(tc.err), "%v", tc.err)
	}
}
