package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/tracewell-health/ecg-cli/internal/imaging"
)

// Entry describes one scan image available in an inbox.
type Entry struct {
	Name      string
	SizeBytes int64
}

// Inbox lists and retrieves scan images from a drop location. Fetch returns
// the local filesystem path of the retrieved image.
type Inbox interface {
	List(ctx context.Context) ([]Entry, error)
	Fetch(ctx context.Context, name string) (string, error)
}

// DirInbox reads scan images from a local directory.
type DirInbox struct {
	dir string
}

// NewDirInbox creates an inbox over a local directory.
func NewDirInbox(dir string) *DirInbox {
	return &DirInbox{dir: dir}
}

// List returns the supported scan images in the directory, sorted by name.
func (d *DirInbox) List(_ context.Context) ([]Entry, error) {
	dirents, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read directory %s", d.dir)
	}

	var entries []Entry
	for _, de := range dirents {
		if de.IsDir() || !imaging.IsSupported(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: stat %s", de.Name())
		}
		entries = append(entries, Entry{Name: de.Name(), SizeBytes: info.Size()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Fetch returns the local path for a listed entry. Nothing is copied.
func (d *DirInbox) Fetch(_ context.Context, name string) (string, error) {
	path := filepath.Join(d.dir, filepath.Base(name))
	if _, err := os.Stat(path); err != nil {
		return "", eris.Wrapf(err, "fetcher: stat %s", path)
	}
	return path, nil
}
