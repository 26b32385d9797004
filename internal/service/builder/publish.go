package builder

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/logger"
)

// publish uploads the artifact and then its sidecar.
// The release never keeps only one of the pair: a failed sidecar upload
// removes the artifact asset again.
func (b *Builder) publish(ctx context.Context, built *artifact.Artifact, tag string, clobber bool) error {
	release, err := b.deps.Publisher.EnsureRelease(ctx, tag)
	if err != nil {
		return fmt.Errorf("ensure release %s: %w", tag, err)
	}

	sidecarName := built.FileName() + artifact.SidecarExt

	// Drop a stale sidecar first so a failure below cannot leave it next to a new archive.
	if existing, ok := release.Asset(sidecarName); ok && clobber {
		if err = b.deps.Publisher.DeleteAsset(ctx, existing.ID); err != nil {
			return fmt.Errorf("remove previous sidecar: %w", err)
		}

		release = withoutAsset(release, existing.ID)
	}

	uploaded, err := b.deps.Publisher.Upload(ctx, release, built.Path, clobber)
	if err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}

	logger.InfoKV(ctx, "Uploaded artifact", "asset", uploaded.Name, "size", uploaded.Size)

	if _, err = b.deps.Publisher.Upload(ctx, release, built.SidecarPath(), clobber); err != nil {
		rollbackErr := b.deps.Publisher.DeleteAsset(ctx, uploaded.ID)
		if rollbackErr != nil {
			logger.ErrorKV(ctx, "Failed to remove artifact after sidecar upload failure",
				"asset", uploaded.Name, "error", rollbackErr)
		} else {
			logger.WarnKV(ctx, "Removed artifact after sidecar upload failure", "asset", uploaded.Name)
		}

		return errors.Join(fmt.Errorf("upload sidecar: %w", err), rollbackErr)
	}

	b.deps.Metrics.AddPublished(2)
	logger.InfoKV(ctx, "Published artifact with checksum", "release", release.Tag, "asset", uploaded.Name)

	return nil
}

func withoutAsset(release *artifact.Release, id int64) *artifact.Release {
	copied := *release
	copied.Assets = slices.DeleteFunc(slices.Clone(release.Assets), func(asset artifact.Asset) bool {
		return asset.ID == id
	})

	return &copied
}
