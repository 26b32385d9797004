package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func buildOutput(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llama-cli"), []byte("#!/bin/sh\necho cli\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "libggml.so"), []byte("shared object"), 0o644))

	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink("llama-cli", filepath.Join(dir, "main")))
	}

	return dir
}

// TestCreateExtract_RoundTrip verifies every format restores the tree under its base name.
func TestCreateExtract_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{TarGz, TarZst} {
		t.Run(string(format), func(t *testing.T) {
			t.Parallel()

			src := buildOutput(t)
			dest := filepath.Join(t.TempDir(), "artifact."+string(format))

			require.NoError(t, Create(t.Context(), src, dest, format))
			require.NoFileExists(t, dest+".partial")
			require.NoError(t, Validate(dest))

			out := t.TempDir()
			require.NoError(t, Extract(t.Context(), dest, out))

			data, err := os.ReadFile(filepath.Join(out, "bin", "lib", "libggml.so"))
			require.NoError(t, err)
			require.Equal(t, "shared object", string(data))

			if runtime.GOOS == "windows" {
				return
			}

			info, err := os.Stat(filepath.Join(out, "bin", "llama-cli"))
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

			link, err := os.Readlink(filepath.Join(out, "bin", "main"))
			require.NoError(t, err)
			require.Equal(t, "llama-cli", link)
		})
	}
}

// TestCreate_Deterministic verifies identical inputs produce identical bytes.
func TestCreate_Deterministic(t *testing.T) {
	t.Parallel()

	src := buildOutput(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.tar.zst")
	second := filepath.Join(dir, "second.tar.zst")

	require.NoError(t, Create(t.Context(), src, first, TarZst))
	require.NoError(t, os.Chtimes(filepath.Join(src, "llama-cli"), epoch.AddDate(30, 0, 0), epoch.AddDate(30, 0, 0)))
	require.NoError(t, Create(t.Context(), src, second, TarZst))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

// TestCreate_Cancelled verifies no partial or final file is left behind.
func TestCreate_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	dest := filepath.Join(t.TempDir(), "artifact.tar.gz")
	err := Create(ctx, buildOutput(t), dest, TarGz)
	require.ErrorIs(t, err, context.Canceled)
	require.NoFileExists(t, dest)
	require.NoFileExists(t, dest+".partial")
}

// TestValidate_Corrupt verifies empty, truncated and foreign files are rejected.
func TestValidate_Corrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "artifact.tar.gz")
	require.NoError(t, Create(t.Context(), buildOutput(t), dest, TarGz))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)

	truncated := filepath.Join(dir, "truncated.tar.gz")
	require.NoError(t, os.WriteFile(truncated, data[:len(data)/2], 0o600))
	require.ErrorIs(t, Validate(truncated), ErrCorrupt)

	empty := filepath.Join(dir, "empty.tar.zst")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	require.ErrorIs(t, Validate(empty), ErrCorrupt)

	garbage := filepath.Join(dir, "garbage.tar.gz")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not gzip"), 0o600))
	require.ErrorIs(t, Validate(garbage), ErrCorrupt)

	require.ErrorIs(t, Validate(filepath.Join(dir, "artifact.zip")), ErrUnsupportedFormat)
}

// TestExtract_RejectsEscapes verifies traversal entries and outward symlinks fail.
func TestExtract_RejectsEscapes(t *testing.T) {
	t.Parallel()

	cases := map[string][]*tar.Header{
		"dotdot":   {{Name: "../evil", Typeflag: tar.TypeReg, Mode: 0o644}},
		"absolute": {{Name: "/etc/evil", Typeflag: tar.TypeReg, Mode: 0o644}},
		"symlink":  {{Name: "bin/link", Typeflag: tar.TypeSymlink, Linkname: "../../etc/passwd", Mode: 0o777}},
		"chained symlinks": {
			{Name: "s1", Typeflag: tar.TypeSymlink, Linkname: ".", Mode: 0o777},
			{Name: "s1/s2", Typeflag: tar.TypeSymlink, Linkname: "..", Mode: 0o777},
			{Name: "s1/s2/evil", Typeflag: tar.TypeReg, Mode: 0o644},
		},
	}

	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			gz := gzip.NewWriter(&buf)
			tw := tar.NewWriter(gz)

			for _, header := range headers {
				require.NoError(t, tw.WriteHeader(header))
			}

			require.NoError(t, tw.Close())
			require.NoError(t, gz.Close())

			parent := t.TempDir()
			path := filepath.Join(parent, "evil.tar.gz")
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

			err := Extract(t.Context(), path, filepath.Join(parent, "dest"))
			require.ErrorIs(t, err, ErrUnsafePath)
			require.NoFileExists(t, filepath.Join(parent, "evil"))
		})
	}
}

// TestFormats verifies format parsing and detection.
func TestFormats(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat(".TAR.ZST")
	require.NoError(t, err)
	require.Equal(t, TarZst, f)

	_, err = ParseFormat("zip")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	f, err = FormatOf("llama-b1-linux-toolchain12.4-arch86-gnu.tar.gz")
	require.NoError(t, err)
	require.Equal(t, TarGz, f)
}
