package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/archpack/internal/fsutil"
)

var (
	// ErrCorrupt is returned when an archive cannot be fully read.
	ErrCorrupt = errors.New("archive is corrupt")
	// ErrUnsafePath is returned for entries that would escape the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// epoch is the modification time stamped on every entry.
var epoch = time.Unix(0, 0).UTC()

// Create archives srcDir into dest. Entries are stored under the base name
// of srcDir, so archiving "build/bin" yields "bin/..." entries.
// The archive is written to dest+".partial" and renamed on success.
func Create(ctx context.Context, srcDir, dest string, format Format) (err error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", srcDir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", srcDir)
	}

	partial := dest + fsutil.PartialSuffix

	var compressor io.WriteCloser

	file, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", partial, err)
	}

	defer func() {
		if err != nil {
			if compressor != nil {
				_ = compressor.Close()
			}

			_ = file.Close()
			_ = os.Remove(partial)
		}
	}()

	compressor, err = format.compressor(file)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(compressor)
	root := filepath.Base(filepath.Clean(srcDir))

	err = filepath.WalkDir(srcDir, func(current string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(srcDir, current)
		if relErr != nil {
			return relErr
		}

		return addEntry(tw, current, path.Join(root, filepath.ToSlash(rel)), entry)
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", srcDir, err)
	}

	if err = tw.Close(); err != nil {
		return fmt.Errorf("finish tar stream: %w", err)
	}

	if err = compressor.Close(); err != nil {
		return fmt.Errorf("finish compression: %w", err)
	}

	if err = file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", partial, err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", partial, err)
	}

	if err = os.Rename(partial, dest); err != nil {
		return fmt.Errorf("rename %s: %w", partial, err)
	}

	return nil
}

func addEntry(tw *tar.Writer, source, name string, entry fs.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(source); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	header.Name = name
	if info.IsDir() {
		header.Name += "/"
	}

	header.ModTime = epoch
	header.AccessTime = time.Time{}
	header.ChangeTime = time.Time{}
	header.Uid, header.Gid = 0, 0
	header.Uname, header.Gname = "", ""
	header.Format = tar.FormatPAX

	if err = tw.WriteHeader(header); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	file, err := os.Open(source)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(tw, file)

	return err
}

// Validate reads the whole archive and reports ErrCorrupt on any structural failure.
func Validate(archivePath string) error {
	format, err := FormatOf(archivePath)
	if err != nil {
		return err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", archivePath, err)
	}

	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrCorrupt, filepath.Base(archivePath))
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer file.Close()

	decompressor, err := format.decompressor(file)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer decompressor.Close()

	tr := tar.NewReader(decompressor)
	entries := 0

	for {
		_, err = tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		if _, err = io.Copy(io.Discard, tr); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		entries++
	}

	if entries == 0 {
		return fmt.Errorf("%w: %s has no entries", ErrCorrupt, filepath.Base(archivePath))
	}

	return nil
}

// Extract unpacks the archive into destDir, which is created when missing.
// Absolute paths, ".." escapes and symlinks pointing outside destDir are rejected.
func Extract(ctx context.Context, archivePath, destDir string) error {
	format, err := FormatOf(archivePath)
	if err != nil {
		return err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer file.Close()

	decompressor, err := format.decompressor(file)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer decompressor.Close()

	if err = os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", destDir, err)
	}

	realDest, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", destDir, err)
	}

	// Every write goes through the root, so no symlink can redirect it outside.
	root, err := os.OpenRoot(realDest)
	if err != nil {
		return fmt.Errorf("open %s: %w", destDir, err)
	}
	defer root.Close()

	tr := tar.NewReader(decompressor)

	for {
		if err = ctx.Err(); err != nil {
			return err
		}

		header, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			return nil
		}

		if errors.Is(nextErr, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %q", ErrUnsafePath, header.Name)
		}

		if nextErr != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, nextErr)
		}

		if err = extractEntry(tr, header, root, realDest); err != nil {
			return err
		}
	}
}

func extractEntry(tr *tar.Reader, header *tar.Header, root *os.Root, realDest string) error {
	name := filepath.FromSlash(strings.TrimSuffix(header.Name, "/"))
	if name == "" || name == "." {
		return nil
	}

	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, header.Name)
	}

	if err := checkParents(realDest, name); err != nil {
		return err
	}

	mode := header.FileInfo().Mode().Perm()

	switch header.Typeflag {
	case tar.TypeDir:
		return root.MkdirAll(name, mode|0o700)
	case tar.TypeReg:
		if err := mkdirParent(root, name); err != nil {
			return err
		}

		// A regular entry replaces an earlier symlink instead of writing through it.
		if info, err := root.Lstat(name); err == nil && info.Mode()&fs.ModeSymlink != 0 {
			if err = root.Remove(name); err != nil {
				return err
			}
		}

		return writeFile(tr, root, name, mode)
	case tar.TypeSymlink:
		resolved := header.Linkname
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.Dir(name), filepath.FromSlash(resolved))
		}

		if filepath.IsAbs(resolved) || !filepath.IsLocal(resolved) {
			return fmt.Errorf("%w: symlink %q -> %q", ErrUnsafePath, header.Name, header.Linkname)
		}

		if err := mkdirParent(root, name); err != nil {
			return err
		}

		return root.Symlink(header.Linkname, name)
	default:
		return nil
	}
}

func mkdirParent(root *os.Root, name string) error {
	dir := filepath.Dir(name)
	if dir == "." {
		return nil
	}

	return root.MkdirAll(dir, 0o755)
}

// checkParents rejects entries whose existing parent directories resolve,
// through previously extracted symlinks, to a location outside realDest.
func checkParents(realDest, name string) error {
	for dir := filepath.Dir(name); dir != "."; dir = filepath.Dir(dir) {
		full := filepath.Join(realDest, dir)
		if _, err := os.Lstat(full); err != nil {
			continue
		}

		resolved, err := filepath.EvalSymlinks(full)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrUnsafePath, name, err)
		}

		rel, err := filepath.Rel(realDest, resolved)
		if err != nil || (rel != "." && !filepath.IsLocal(rel)) {
			return fmt.Errorf("%w: %q resolves outside the destination", ErrUnsafePath, name)
		}

		return nil
	}

	return nil
}

func writeFile(r io.Reader, root *os.Root, name string, mode fs.FileMode) error {
	file, err := root.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	if _, err = io.Copy(file, r); err != nil {
		_ = file.Close()

		return fmt.Errorf("%w: write %s: %w", ErrCorrupt, name, err)
	}

	if err = file.Close(); err != nil {
		return err
	}

	return root.Chmod(name, mode)
}
