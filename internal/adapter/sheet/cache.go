package sheet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// ownWriteWindow is how long a file written by the cache is ignored by the watcher.
const ownWriteWindow = 2 * time.Second

// FileCache stores sheets as xiv_bgm_<kind>.csv files in a directory.
//
// Thread-safety: This implementation is thread-safe.
type FileCache struct {
	dir string

	mu      sync.Mutex
	written map[string]time.Time
}

// NewFileCache creates a cache rooted at dir. The directory is created on first save.
func NewFileCache(dir string) *FileCache {
	return &FileCache{
		dir:     dir,
		written: make(map[string]time.Time),
	}
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

// Path returns the file path for a sheet kind.
func (c *FileCache) Path(kind domain.SheetKind) string {
	return filepath.Join(c.dir, fmt.Sprintf("xiv_bgm_%s.csv", kind))
}

// FetchSheet reads the cached copy of a sheet.
func (c *FileCache) FetchSheet(ctx context.Context, kind domain.SheetKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewSheetError("read", kind, err)
	}

	data, err := os.ReadFile(c.Path(kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.NewSheetError("read", kind, domain.ErrSheetNotCached)
		}
		return "", domain.NewSheetError("read", kind, err)
	}
	return string(data), nil
}

// SaveSheet writes the sheet through a temp file and rename so readers never
// see a half-written copy.
func (c *FileCache) SaveSheet(kind domain.SheetKind, text string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return domain.NewSheetError("write", kind, err)
	}

	tmp, err := os.CreateTemp(c.dir, ".sheet-*.tmp")
	if err != nil {
		return domain.NewSheetError("write", kind, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return domain.NewSheetError("write", kind, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return domain.NewSheetError("write", kind, err)
	}

	path := c.Path(kind)
	c.mu.Lock()
	c.written[path] = time.Now()
	c.mu.Unlock()

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return domain.NewSheetError("write", kind, err)
	}
	return nil
}

// WroteRecently reports whether path was written by this cache within the last
// couple of seconds.
func (c *FileCache) WroteRecently(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.written[filepath.Clean(path)]
	return ok && time.Since(t) < ownWriteWindow
}

var _ ports.SheetCache = (*FileCache)(nil)
