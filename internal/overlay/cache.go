package overlay

import (
	"fmt"
	"image"

	"refview/internal/imageio"
)

// CacheEntry pairs a decoded image with its device texture.
type CacheEntry struct {
	Image   image.Image
	Texture Texture
}

// TextureCache maps a source path to a decoded image and its uploaded
// texture so that repeated frames never re-decode or re-upload.
//
// It is not safe for concurrent use: all access happens on the drawing
// thread, the same context that owns the device (see Device).
type TextureCache struct {
	uploader Uploader
	loader   func(path string) (image.Image, error)
	entries  map[string]*CacheEntry
}

// NewTextureCache creates an empty cache that uploads through uploader and
// decodes files with imageio.Load.
func NewTextureCache(uploader Uploader) *TextureCache {
	return &TextureCache{
		uploader: uploader,
		loader:   imageio.Load,
		entries:  make(map[string]*CacheEntry),
	}
}

// SetLoader replaces the image decoder. Used by tests.
func (c *TextureCache) SetLoader(loader func(path string) (image.Image, error)) {
	c.loader = loader
}

// Resolve returns the cache entry for path, loading and uploading the image
// on first use. A load or upload failure caches nothing, so the next call
// retries from scratch.
func (c *TextureCache) Resolve(path string) (*CacheEntry, error) {
	if entry, ok := c.entries[path]; ok {
		return entry, nil
	}

	img, err := c.loader(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	tex, err := c.uploader.Upload(img)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}

	entry := &CacheEntry{Image: img, Texture: tex}
	c.entries[path] = entry
	return entry, nil
}

// Evict releases the texture cached for path. Absent keys are a no-op.
func (c *TextureCache) Evict(path string) {
	entry, ok := c.entries[path]
	if !ok {
		return
	}
	if entry.Texture != nil {
		entry.Texture.Release()
	}
	delete(c.entries, path)
}

// Clear evicts every entry. Called once at teardown to release all device
// resources.
func (c *TextureCache) Clear() {
	for path := range c.entries {
		c.Evict(path)
	}
}

// Contains reports whether path has a live entry.
func (c *TextureCache) Contains(path string) bool {
	_, ok := c.entries[path]
	return ok
}

// Len returns the number of live entries.
func (c *TextureCache) Len() int {
	return len(c.entries)
}
