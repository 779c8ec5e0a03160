// Package archive keeps the original uploads so indexed chunks can always
// be traced back to the document they came from. Local keeps copies on the
// filesystem, Minio keeps them in object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"paperchat/src/core/rag"
)

// Local archives uploads into a directory on the local filesystem.
type Local struct {
	dir string
}

var _ rag.Archive = (*Local)(nil)

// NewLocal creates the archive directory if needed and returns a store
// rooted there.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, &rag.ConfigurationError{Field: "archive.dir", Reason: "must not be empty"}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

// Store copies r into the archive under the base name of filename and
// returns the archived path. Any directory components in filename are
// stripped.
func (l *Local) Store(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	name := filepath.Base(filename)
	path := filepath.Join(l.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive copy %s: %w", path, err)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("failed to archive %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", name, err)
	}
	if size > 0 && written != size {
		return "", fmt.Errorf("failed to archive %s: wrote %d of %d bytes", name, written, size)
	}
	return path, nil
}

// List returns the archived documents, newest first.
func (l *Local) List(ctx context.Context) ([]rag.ArchivedDocument, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory %s: %w", l.dir, err)
	}

	docs := make([]rag.ArchivedDocument, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		docs = append(docs, rag.ArchivedDocument{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ModTime.After(docs[j].ModTime)
	})
	return docs, nil
}

// Remove deletes the archived copy of filename. Removing a file that is not
// archived is not an error.
func (l *Local) Remove(ctx context.Context, filename string) error {
	path := filepath.Join(l.dir, filepath.Base(filename))
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove archive copy %s: %w", path, err)
	}
	return nil
}

// Health verifies the archive directory still exists and is a directory.
func (l *Local) Health(ctx context.Context) error {
	info, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("failed to access archive directory %s: %w", l.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive path %s is not a directory", l.dir)
	}
	return nil
}
