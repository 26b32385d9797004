package artifact

import (
	"path/filepath"
	"time"
)

// Artifact is a packaged, checksummed build output on local disk.
type Artifact struct {
	// Name holds the attributes the file name was derived from.
	Name Name
	// Path is the absolute location of the archive.
	Path string
	// Size is the archive size in bytes.
	Size int64
	// Checksum is the hex-encoded sha256 digest of the archive.
	Checksum string
}

// SidecarPath returns the location of the checksum sidecar next to the archive.
func (a *Artifact) SidecarPath() string {
	return a.Path + SidecarExt
}

// FileName returns the base name of the archive.
func (a *Artifact) FileName() string {
	return filepath.Base(a.Path)
}

// Asset is a named, URL-addressable file attached to a release.
type Asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"browser_download_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Release is a tagged collection of artifacts published together.
type Release struct {
	ID          int64     `json:"id"`
	Tag         string    `json:"tag_name"`
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"published_at"`
	UploadURL   string    `json:"upload_url"`
	Assets      []Asset   `json:"assets"`
}

// Asset returns the asset with exactly the given name.
func (r *Release) Asset(name string) (Asset, bool) {
	if r == nil {
		return Asset{}, false
	}

	for _, asset := range r.Assets {
		if asset.Name == name {
			return asset, true
		}
	}

	return Asset{}, false
}

// Installation records one installed (version, architecture) pair.
type Installation struct {
	// Version is the concrete release tag that was installed.
	Version string `yaml:"version"`
	// ArchID is the architecture identifier of the installed artifact.
	ArchID string `yaml:"arch"`
	// Path is the installation directory.
	Path string `yaml:"path"`
	// AssetName is the release asset the installation was extracted from.
	AssetName string `yaml:"asset"`
	// Checksum is the verified sha256 digest of that asset.
	Checksum string `yaml:"checksum"`
	// EntryPoints lists the runnable files exposed in the shared bin directory.
	EntryPoints []string `yaml:"entry_points"`
	// InstalledAt is when the installation completed.
	InstalledAt time.Time `yaml:"installed_at"`
	// InstalledBy identifies who performed the installation.
	InstalledBy *Actor `yaml:"installed_by,omitempty"`
}

// InstallKey returns the directory name for a (version, architecture) pair.
func InstallKey(project, version, archID string) string {
	return project + "-" + version + "-arch" + archID
}
