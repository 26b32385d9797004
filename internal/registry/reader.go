package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/oshokin/archpack/internal/domain/artifact"
)

// LatestTag addresses the most recently published release.
const LatestTag = "latest"

// Release returns the release with the given tag, or the latest one for "latest".
func (c *Client) Release(ctx context.Context, tag string) (*artifact.Release, error) {
	endpoint := c.repoURL("/releases/tags/" + url.PathEscape(tag))
	if tag == "" || tag == LatestTag {
		endpoint = c.repoURL("/releases/latest")
	}

	var release artifact.Release
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &release); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%s %q: %w", c.Repository(), tag, ErrReleaseNotFound)
		}

		return nil, err
	}

	return &release, nil
}

// Tags lists release tags, newest first, up to limit (100 when not positive).
func (c *Client) Tags(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var releases []artifact.Release

	endpoint := c.repoURL("/releases?per_page=" + strconv.Itoa(limit))
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &releases); err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(releases))
	for _, release := range releases {
		tags = append(tags, release.Tag)
	}

	return tags, nil
}

// SelectAsset returns the archive built for archID on platform.
// The match uses the delimited tag, so "75" never selects an "arch750" asset.
func SelectAsset(release *artifact.Release, archID, platform string) (artifact.Asset, bool) {
	if release == nil || archID == "" {
		return artifact.Asset{}, false
	}

	tag := artifact.ArchTag(archID)
	platformMarker := "-" + platform + "-"

	for _, asset := range release.Assets {
		if artifact.IsSidecar(asset.Name) {
			continue
		}

		if !strings.Contains(asset.Name, tag) {
			continue
		}

		if platform != "" && !strings.Contains(asset.Name, platformMarker) {
			continue
		}

		return asset, true
	}

	return artifact.Asset{}, false
}

// SidecarFor returns the checksum sidecar published next to asset.
func SidecarFor(release *artifact.Release, asset artifact.Asset) (artifact.Asset, bool) {
	return release.Asset(asset.Name + artifact.SidecarExt)
}

// Download streams the asset into dest. A failed download removes dest.
func (c *Client) Download(
	ctx context.Context,
	asset artifact.Asset,
	dest string,
	progress func(delta int64),
) (written int64, err error) {
	body, err := c.open(ctx, asset)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	defer func() {
		closeErr := file.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", dest, closeErr)
		}

		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	var reader io.Reader = body
	if progress != nil {
		reader = &progressReader{reader: body, onProgress: progress}
	}

	written, err = io.Copy(file, reader)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return written, ctxErr
		}

		return written, fmt.Errorf("%w: download %s: %w", ErrNetwork, asset.Name, err)
	}

	if asset.Size > 0 && written != asset.Size {
		return written, fmt.Errorf("%w: download %s: got %d of %d bytes",
			ErrNetwork, asset.Name, written, asset.Size)
	}

	return written, nil
}

// Fetch downloads a small asset, such as a sidecar, into memory.
func (c *Client) Fetch(ctx context.Context, asset artifact.Asset) ([]byte, error) {
	body, err := c.open(ctx, asset)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxFetchedBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrNetwork, asset.Name, err)
	}

	if len(data) > maxFetchedBody {
		return nil, fmt.Errorf("fetch %s: asset exceeds %d bytes", asset.Name, maxFetchedBody)
	}

	return data, nil
}

func (c *Client) open(ctx context.Context, asset artifact.Asset) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// progressReader reports the number of bytes read on every Read.
type progressReader struct {
	reader     io.Reader
	onProgress func(delta int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.onProgress(int64(n))
	}

	return n, err
}
