package registry_test

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/registry"
	"github.com/oshokin/archpack/internal/registry/registrytest"
)

const (
	assetArch75  = "llama-b1-linux-amd64-toolchain12.4-arch75-gnu.tar.gz"
	assetArch750 = "llama-b1-linux-amd64-toolchain12.4-arch750-gnu.tar.gz"
	assetWindows = "llama-b1-windows-amd64-toolchain12.4-arch75-gnu.tar.gz"
)

func newClient(t *testing.T, server *registrytest.Server, token string) *registry.Client {
	t.Helper()

	client, err := registry.NewClient(registry.Config{
		BaseURL:    server.URL,
		Repository: server.Repository(),
		Token:      token,
	})
	require.NoError(t, err)

	return client
}

// TestNewClient_InvalidRepository verifies the owner/repo form is enforced.
func TestNewClient_InvalidRepository(t *testing.T) {
	t.Parallel()

	for _, repo := range []string{"", "owner", "/repo", "owner/", "a/b/c"} {
		_, err := registry.NewClient(registry.Config{Repository: repo})
		require.ErrorIs(t, err, registry.ErrInvalidRepository, repo)
	}
}

// TestRelease verifies tag and latest lookups and the not-found error.
func TestRelease(t *testing.T) {
	t.Parallel()

	server := registrytest.New(t, "acme", "llama", "secret")
	server.AddRelease("b1", map[string][]byte{assetArch75: []byte("a")})
	server.AddRelease("b2", map[string][]byte{assetArch75: []byte("b")})

	client := newClient(t, server, "")

	release, err := client.Release(t.Context(), "b1")
	require.NoError(t, err)
	require.Equal(t, "b1", release.Tag)
	require.Len(t, release.Assets, 1)

	latest, err := client.Release(t.Context(), registry.LatestTag)
	require.NoError(t, err)
	require.Equal(t, "b2", latest.Tag)

	_, err = client.Release(t.Context(), "b999")
	require.ErrorIs(t, err, registry.ErrReleaseNotFound)
	require.NotErrorIs(t, err, registry.ErrNetwork)

	tags, err := client.Tags(t.Context(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"b2", "b1"}, tags)
}

// TestRelease_NetworkError verifies unreachable stores are distinct from missing releases.
func TestRelease_NetworkError(t *testing.T) {
	t.Parallel()

	server := registrytest.New(t, "acme", "llama", "")
	client := newClient(t, server, "")
	server.Close()

	_, err := client.Release(t.Context(), "b1")
	require.ErrorIs(t, err, registry.ErrNetwork)
	require.NotErrorIs(t, err, registry.ErrReleaseNotFound)
}

// TestSelectAsset verifies delimited tags, platform filtering and sidecar exclusion.
func TestSelectAsset(t *testing.T) {
	t.Parallel()

	release := &artifact.Release{Assets: []artifact.Asset{
		{ID: 1, Name: assetArch750},
		{ID: 2, Name: assetArch75 + ".sha256"},
		{ID: 3, Name: assetWindows},
		{ID: 4, Name: assetArch75},
	}}

	asset, ok := registry.SelectAsset(release, "75", "linux-amd64")
	require.True(t, ok)
	require.EqualValues(t, 4, asset.ID)

	asset, ok = registry.SelectAsset(release, "750", "linux-amd64")
	require.True(t, ok)
	require.EqualValues(t, 1, asset.ID)

	asset, ok = registry.SelectAsset(release, "75", "windows-amd64")
	require.True(t, ok)
	require.EqualValues(t, 3, asset.ID)

	_, ok = registry.SelectAsset(release, "7", "linux-amd64")
	require.False(t, ok)

	_, ok = registry.SelectAsset(&artifact.Release{Assets: []artifact.Asset{{Name: assetArch750}}}, "75", "linux-amd64")
	require.False(t, ok)

	sidecar, ok := registry.SidecarFor(release, artifact.Asset{Name: assetArch75})
	require.True(t, ok)
	require.EqualValues(t, 2, sidecar.ID)

	_, ok = registry.SidecarFor(release, artifact.Asset{Name: assetWindows})
	require.False(t, ok)
}

// TestDownloadAndFetch verifies streaming with progress and in-memory fetch.
func TestDownloadAndFetch(t *testing.T) {
	t.Parallel()

	server := registrytest.New(t, "acme", "llama", "")
	server.AddRelease("b1", map[string][]byte{
		assetArch75:             []byte("archive-bytes"),
		assetArch75 + ".sha256": []byte("digest  name\n"),
	})

	client := newClient(t, server, "")
	release, err := client.Release(t.Context(), "b1")
	require.NoError(t, err)

	asset, ok := release.Asset(assetArch75)
	require.True(t, ok)

	var progressed int64

	dest := filepath.Join(t.TempDir(), assetArch75)
	written, err := client.Download(t.Context(), asset, dest, func(delta int64) { progressed += delta })
	require.NoError(t, err)
	require.EqualValues(t, len("archive-bytes"), written)
	require.Equal(t, written, progressed)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "archive-bytes", string(data))

	sidecar, ok := registry.SidecarFor(release, asset)
	require.True(t, ok)

	content, err := client.Fetch(t.Context(), sidecar)
	require.NoError(t, err)
	require.Equal(t, "digest  name\n", string(content))

	missing := asset
	missing.DownloadURL = server.URL + "/download/9999"
	_, err = client.Download(t.Context(), missing, dest+".missing", nil)
	require.True(t, registry.IsNotFound(err))
	require.NoFileExists(t, dest+".missing")
}

// TestCheckAuth verifies missing tokens, bad tokens and read-only tokens are rejected.
func TestCheckAuth(t *testing.T) {
	t.Parallel()

	server := registrytest.New(t, "acme", "llama", "secret")

	require.ErrorIs(t, newClient(t, server, "").CheckAuth(t.Context()), registry.ErrUnauthorized)

	err := newClient(t, server, "wrong").CheckAuth(t.Context())
	require.ErrorIs(t, err, registry.ErrUnauthorized)

	var apiErr *registry.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	require.NoError(t, newClient(t, server, "secret").CheckAuth(t.Context()))

	server.SetPushAllowed(false)
	require.ErrorIs(t, newClient(t, server, "secret").CheckAuth(t.Context()), registry.ErrUnauthorized)
}

// TestPublish verifies release creation, upload, clobber and deletion.
func TestPublish(t *testing.T) {
	t.Parallel()

	server := registrytest.New(t, "acme", "llama", "secret")
	client := newClient(t, server, "secret")

	release, err := client.EnsureRelease(t.Context(), "b7")
	require.NoError(t, err)
	require.Equal(t, "b7", release.Tag)

	again, err := client.EnsureRelease(t.Context(), "b7")
	require.NoError(t, err)
	require.Equal(t, release.ID, again.ID)

	path := filepath.Join(t.TempDir(), assetArch75)
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	asset, err := client.Upload(t.Context(), release, path, false)
	require.NoError(t, err)
	require.Equal(t, assetArch75, asset.Name)
	require.EqualValues(t, 2, asset.Size)

	release, err = client.Release(t.Context(), "b7")
	require.NoError(t, err)

	_, err = client.Upload(t.Context(), release, path, false)
	require.ErrorIs(t, err, registry.ErrAssetExists)

	require.NoError(t, os.WriteFile(path, []byte("v2!"), 0o600))

	replaced, err := client.Upload(t.Context(), release, path, true)
	require.NoError(t, err)
	require.NotEqual(t, asset.ID, replaced.ID)

	data, ok := server.Asset("b7", assetArch75)
	require.True(t, ok)
	require.Equal(t, "v2!", string(data))

	require.NoError(t, client.DeleteAsset(t.Context(), replaced.ID))
	require.Empty(t, server.AssetNames("b7"))

	err = client.DeleteAsset(t.Context(), replaced.ID)
	require.True(t, registry.IsNotFound(err))
}

// TestAPIError verifies non-2xx statuses surface as typed errors.
func TestAPIError(t *testing.T) {
	t.Parallel()

	server := registrytest.New(t, "acme", "llama", "secret")
	server.AddRelease("b1", nil)
	server.FailUpload(assetArch75)

	client := newClient(t, server, "secret")
	release, err := client.Release(t.Context(), "b1")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), assetArch75)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	_, err = client.Upload(t.Context(), release, path, false)

	var apiErr *registry.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "upload failed", apiErr.Message)
}
