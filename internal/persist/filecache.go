package persist

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"InkBoard/internal/raster"
)

// FileCache keeps page rasters under <root>/pages/previews/{full,thumbs}/<id>.
type FileCache struct {
	root string
}

func NewFileCache(root string) *FileCache {
	return &FileCache{root: root}
}

func (c *FileCache) path(kind raster.Kind, pageID string) string {
	return filepath.Join(c.root, "pages", "previews", kind.String(), filepath.Base(pageID))
}

func (c *FileCache) Exists(kind raster.Kind, pageID string) bool {
	st, err := os.Stat(c.path(kind, pageID))
	return err == nil && st.Mode().IsRegular()
}

func (c *FileCache) Read(kind raster.Kind, pageID string) (io.ReadCloser, error) {
	return os.Open(c.path(kind, pageID))
}

// Write replaces the stored image atomically: readers see either the old
// file or the complete new one.
func (c *FileCache) Write(kind raster.Kind, pageID string, data []byte) error {
	path := c.path(kind, pageID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close image: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename image: %w", err)
	}
	return nil
}

var _ raster.CacheStore = (*FileCache)(nil)
