package query

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edgard/holidaybot/internal/fsutil"
)

// artifactStore keeps rendered cards as <uuid>.png files.
type artifactStore struct {
	dir string
}

func newArtifactStore(dir string) (*artifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts dir %s: %w", dir, err)
	}
	return &artifactStore{dir: dir}, nil
}

func (a *artifactStore) name(id string) string {
	return id + ".png"
}

func (a *artifactStore) Save(id string, data []byte) error {
	return fsutil.WriteAtomic(a.dir, a.name(id), data)
}

func (a *artifactStore) Load(id string) ([]byte, error) {
	return os.ReadFile(filepath.Join(a.dir, a.name(id)))
}
