package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore keeps artifacts in a flat directory under the data dir.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

func (s *FSStore) Save(name string, r io.Reader) error {
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// A partial file would short-circuit future downloads of the
		// same name.
		if rmErr := os.Remove(filepath.Join(s.dir, name)); rmErr != nil {
			slog.Warn("failed to remove partial artifact.", slog.String("name", name),
				slog.String("err", rmErr.Error()))
		}
	}
	return err
}

func (s *FSStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}
