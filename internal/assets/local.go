package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalMarker is the URL path segment that identifies images stored on local disk.
const LocalMarker = "/uploads/experiences/"

// LocalBackend deletes images that were written to the local upload directory.
type LocalBackend struct {
	dir string
}

// NewLocalBackend returns a backend rooted at dir, the directory holding experience images.
func NewLocalBackend(dir string) *LocalBackend {
	return &LocalBackend{dir: dir}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Owns(ref string) bool {
	return strings.Contains(ref, LocalMarker)
}

func (b *LocalBackend) Delete(_ context.Context, ref string) (Outcome, error) {
	name := LocalFilename(ref)
	if name == "" {
		return OutcomeNotFound, nil
	}

	err := os.Remove(filepath.Join(b.dir, name))
	switch {
	case err == nil:
		return OutcomeDeleted, nil
	case errors.Is(err, fs.ErrNotExist):
		return OutcomeNotFound, nil
	default:
		return OutcomeFailed, fmt.Errorf("remove %s: %w", name, err)
	}
}

// LocalFilename extracts the stored file name from a local image URL. Only the base name is
// kept so a crafted reference cannot escape the upload directory.
func LocalFilename(ref string) string {
	idx := strings.Index(ref, LocalMarker)
	if idx < 0 {
		return ""
	}
	rest := ref[idx+len(LocalMarker):]
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	name := filepath.Base(filepath.FromSlash(rest))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
