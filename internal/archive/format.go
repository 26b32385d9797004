package archive

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format is a supported archive format, named by its file extension.
type Format string

const (
	// TarGz is a gzip-compressed tarball.
	TarGz Format = "tar.gz"
	// TarZst is a zstd-compressed tarball.
	TarZst Format = "tar.zst"
)

// ErrUnsupportedFormat is returned for unknown archive extensions.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// ParseFormat validates a format name such as "tar.zst".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case TarGz, TarZst:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatOf detects the format from a file name.
func FormatOf(name string) (Format, error) {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, "."+string(TarGz)), strings.HasSuffix(lower, ".tgz"):
		return TarGz, nil
	case strings.HasSuffix(lower, "."+string(TarZst)):
		return TarZst, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

func (f Format) compressor(w io.Writer) (io.WriteCloser, error) {
	switch f {
	case TarGz:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case TarZst:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

func (f Format) decompressor(r io.Reader) (io.ReadCloser, error) {
	switch f {
	case TarGz:
		return gzip.NewReader(r)
	case TarZst:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}

		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}
