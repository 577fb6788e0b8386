package storage

import "io"

// ArtifactStore is the content store for downloaded course materials,
// keyed by sanitized filename. Exists backs the at-most-once-per-name
// download dedup; Path serves the filename-to-location lookup used by the
// serving layer.
type ArtifactStore interface {
	Exists(name string) bool
	Save(name string, r io.Reader) error
	Path(name string) string
}
