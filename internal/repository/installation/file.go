package installation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/fsutil"
)

// ReceiptsDir is the directory under the installation root holding receipts.
const ReceiptsDir = ".receipts"

const receiptPermissions = 0o644

// Repository defines persistence operations for installation receipts.
type Repository interface {
	Load(ctx context.Context, key string) (*artifact.Installation, error)
	Save(ctx context.Context, key string, installation *artifact.Installation) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*artifact.Installation, error)
}

// ErrNotFound is returned when no receipt exists for a key.
var ErrNotFound = errors.New("installation receipt not found")

// FileRepository stores receipts as YAML files on disk.
type FileRepository struct {
	// dir is the receipts directory.
	dir string
	// mu protects concurrent access within the process.
	mu sync.Mutex
}

// NewFileRepository creates a repository for receipts under root.
func NewFileRepository(root string) *FileRepository {
	return &FileRepository{
		dir: filepath.Join(filepath.Clean(root), ReceiptsDir),
	}
}

func (r *FileRepository) path(key string) string {
	return filepath.Join(r.dir, key+".yaml")
}

// Load reads the receipt for key.
func (r *FileRepository) Load(_ context.Context, key string) (*artifact.Installation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read(r.path(key))
}

// Save writes the receipt for key atomically.
func (r *FileRepository) Save(_ context.Context, key string, installation *artifact.Installation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(installation)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	if err = os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create receipts directory: %w", err)
	}

	if err = fsutil.WriteFileAtomic(r.path(key), data, receiptPermissions); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}

	return nil
}

// Delete removes the receipt for key. A missing receipt is not an error.
func (r *FileRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete receipt: %w", err)
	}

	return nil
}

// List returns every receipt ordered by version then architecture.
func (r *FileRepository) List(_ context.Context) ([]*artifact.Installation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read receipts directory: %w", err)
	}

	var result []*artifact.Installation

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		installation, err := r.read(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		result = append(result, installation)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Version != result[j].Version {
			return result[i].Version < result[j].Version
		}

		return result[i].ArchID < result[j].ArchID
	})

	return result, nil
}

func (r *FileRepository) read(path string) (*artifact.Installation, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read receipt: %w", err)
	}

	var installation artifact.Installation
	if err = yaml.Unmarshal(contents, &installation); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", filepath.Base(path), err)
	}

	return &installation, nil
}
