package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	domain "github.com/shercan/miapp/internal/domain/update"
)

// filePermissions keeps the record readable by operators inspecting a failed update.
const filePermissions = 0o644

// Repository defines persistence operations for the swap record.
type Repository interface {
	Load(ctx context.Context) (*domain.State, error)
	Save(ctx context.Context, state *domain.State) error
	Remove(ctx context.Context) error
	Path() string
}

// FileRepository stores the swap record in a single YAML file.
type FileRepository struct {
	// path is the marker file location, usually "<exe>.updating".
	path string
	// mu serialises access within the process.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no marker file exists.
	ErrNotFound = errors.New("marker not found")
	// errStateRequired is returned when Save receives nil.
	errStateRequired = errors.New("marker state must be provided")
)

// NewFileRepository creates a repository for the given marker path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the marker file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the record. A file that exists but cannot be decoded is returned
// as an empty record so callers still see that a swap was in progress.
func (r *FileRepository) Load(_ context.Context) (*domain.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read marker: %w", err)
	}

	state := new(domain.State)
	if err = yaml.Unmarshal(contents, state); err != nil {
		return new(domain.State), fmt.Errorf("decode marker: %w", err)
	}

	return state, nil
}

// Save writes the record, replacing any previous content.
func (r *FileRepository) Save(_ context.Context, state *domain.State) error {
	if state == nil {
		return errStateRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}

	if err = os.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}

	return nil
}

// Remove deletes the marker. A missing file is not an error.
func (r *FileRepository) Remove(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove marker: %w", err)
	}

	return nil
}
