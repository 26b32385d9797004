package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/archpack/internal/domain/artifact"
)

// CheckAuth verifies that the token exists and may push to the repository.
func (c *Client) CheckAuth(ctx context.Context) error {
	if c.token == "" {
		return fmt.Errorf("%w: no token configured", ErrUnauthorized)
	}

	var repo struct {
		Permissions struct {
			Push bool `json:"push"`
		} `json:"permissions"`
	}

	if err := c.doJSON(ctx, http.MethodGet, c.repoURL(""), nil, &repo); err != nil {
		return err
	}

	if !repo.Permissions.Push {
		return fmt.Errorf("%w: token cannot push to %s", ErrUnauthorized, c.Repository())
	}

	return nil
}

// EnsureRelease returns the release for tag, creating it when missing.
func (c *Client) EnsureRelease(ctx context.Context, tag string) (*artifact.Release, error) {
	release, err := c.Release(ctx, tag)
	if err == nil {
		return release, nil
	}

	if !errors.Is(err, ErrReleaseNotFound) {
		return nil, err
	}

	request := map[string]any{
		"tag_name": tag,
		"name":     tag,
	}

	var created artifact.Release
	if err = c.doJSON(ctx, http.MethodPost, c.repoURL("/releases"), request, &created); err != nil {
		return nil, fmt.Errorf("create release %s: %w", tag, err)
	}

	return &created, nil
}

// Upload attaches the file at path to the release under its base name.
// An existing asset with the same name is replaced when clobber is set.
func (c *Client) Upload(
	ctx context.Context,
	release *artifact.Release,
	path string,
	clobber bool,
) (artifact.Asset, error) {
	name := filepath.Base(path)

	if existing, ok := release.Asset(name); ok {
		if !clobber {
			return artifact.Asset{}, fmt.Errorf("%s: %w", name, ErrAssetExists)
		}

		if err := c.DeleteAsset(ctx, existing.ID); err != nil {
			return artifact.Asset{}, fmt.Errorf("replace %s: %w", name, err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return artifact.Asset{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return artifact.Asset{}, fmt.Errorf("stat %s: %w", path, err)
	}

	endpoint := uploadEndpoint(release.UploadURL) + "?name=" + url.QueryEscape(name)

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return artifact.Asset{}, err
	}

	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.send(req)
	if err != nil {
		return artifact.Asset{}, fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	var asset artifact.Asset
	if err = json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return artifact.Asset{}, fmt.Errorf("decode upload response for %s: %w", name, err)
	}

	return asset, nil
}

// DeleteAsset removes a release asset.
func (c *Client) DeleteAsset(ctx context.Context, id int64) error {
	endpoint := c.repoURL("/releases/assets/" + strconv.FormatInt(id, 10))

	return c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil)
}

// uploadEndpoint strips the URI template suffix, e.g. "{?name,label}".
func uploadEndpoint(template string) string {
	if i := strings.IndexByte(template, '{'); i >= 0 {
		return template[:i]
	}

	return template
}
