package checksum

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/archpack/internal/fsutil"
)

// SidecarExt is appended to an artifact path to form its sidecar path.
const SidecarExt = ".sha256"

const sidecarPermissions = 0o644

var (
	// ErrMismatch is wrapped by MismatchError.
	ErrMismatch = errors.New("checksum mismatch")
	// ErrMalformedSidecar is returned when a sidecar has no usable digest.
	ErrMalformedSidecar = errors.New("malformed checksum sidecar")
)

// MismatchError carries both digests of a failed verification.
type MismatchError struct {
	// Path is the verified file.
	Path string
	// Expected is the digest from the sidecar.
	Expected string
	// Actual is the digest computed from the file.
	Actual string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %v: expected %s, got %s", filepath.Base(e.Path), ErrMismatch, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error {
	return ErrMismatch
}

// File returns the hex sha256 digest of the file, streaming its content.
func File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for hashing: %w", path, err)
	}
	defer file.Close()

	return Reader(file)
}

// Reader returns the hex sha256 digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Bytes returns the hex sha256 digest of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// FormatSidecar renders a sidecar line for the named file.
func FormatSidecar(digest, name string) []byte {
	return []byte(digest + "  " + name + "\n")
}

// WriteSidecar hashes the artifact and atomically writes its sidecar.
func WriteSidecar(artifactPath string) (string, error) {
	digest, err := File(artifactPath)
	if err != nil {
		return "", err
	}

	data := FormatSidecar(digest, filepath.Base(artifactPath))
	if err = fsutil.WriteFileAtomic(artifactPath+SidecarExt, data, sidecarPermissions); err != nil {
		return "", fmt.Errorf("write sidecar for %s: %w", artifactPath, err)
	}

	return digest, nil
}

// ReadSidecar reads the sidecar next to artifactPath and returns its digest.
func ReadSidecar(artifactPath string) (string, error) {
	data, err := os.ReadFile(artifactPath + SidecarExt)
	if err != nil {
		return "", err
	}

	return ParseSidecar(data, filepath.Base(artifactPath))
}

// ParseSidecar extracts the digest for name from sidecar data.
// A bare digest and "digest  name" lines are both accepted; a line naming a
// different file is only used when it is the sole line.
func ParseSidecar(data []byte, name string) (string, error) {
	var (
		lines   []string
		scanner = bufio.NewScanner(bytes.NewReader(data))
	)

	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedSidecar, err)
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		if strings.TrimPrefix(fields[1], "*") == name {
			return normalize(fields[0])
		}
	}

	if len(lines) == 1 {
		return normalize(strings.Fields(lines[0])[0])
	}

	return "", fmt.Errorf("%w: no digest for %s", ErrMalformedSidecar, name)
}

// Verify compares the file's digest with expected.
func Verify(path, expected string) error {
	actual, err := File(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return &MismatchError{Path: path, Expected: expected, Actual: actual}
	}

	return nil
}

func normalize(digest string) (string, error) {
	digest = strings.ToLower(digest)

	decoded, err := hex.DecodeString(digest)
	if err != nil || len(decoded) != sha256.Size {
		return "", fmt.Errorf("%w: %q is not a sha256 digest", ErrMalformedSidecar, digest)
	}

	return digest, nil
}
