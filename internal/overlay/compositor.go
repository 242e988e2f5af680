package overlay

import (
	"image/color"

	"refview/pkg/geometry"
)

// Source exposes the host document's overlay state to the compositor. The
// host owns the records; the compositor only reads them.
type Source interface {
	// Enabled reports the global overlay toggle.
	Enabled() bool
	// Records returns the overlay records in paint order (later records
	// draw on top).
	Records() []*Record
}

// Quad holds the four corner positions and texture coordinates of one
// overlay, counter-clockwise from the bottom-left corner.
type Quad struct {
	Pos [4]geometry.Point2D
	UV  [4]geometry.Point2D
}

// QuadIndices triangulates a quad into two triangles sharing the 0-2
// diagonal.
var QuadIndices = []int{0, 1, 2, 2, 3, 0}

// QuadFor computes the screen-space quad for a record and the pixel size of
// its image. The quad is anchored at the record position (bottom-left) and
// extends right and up by the scaled image size. Flips mirror the texture
// coordinates, not the geometry, and compose independently.
func QuadFor(rec *Record, imgWidth, imgHeight int) Quad {
	width := float64(imgWidth) * rec.Scale.X
	height := float64(imgHeight) * rec.Scale.Y
	x, y := rec.Position.X, rec.Position.Y

	q := Quad{
		Pos: [4]geometry.Point2D{
			{X: x, Y: y},
			{X: x + width, Y: y},
			{X: x + width, Y: y + height},
			{X: x, Y: y + height},
		},
		UV: [4]geometry.Point2D{
			{X: 0, Y: 0},
			{X: 1, Y: 0},
			{X: 1, Y: 1},
			{X: 0, Y: 1},
		},
	}

	if rec.FlipX {
		for i := range q.UV {
			q.UV[i].X = 1 - q.UV[i].X
		}
	}
	if rec.FlipY {
		for i := range q.UV {
			q.UV[i].Y = 1 - q.UV[i].Y
		}
	}
	return q
}

// Compositor draws every visible overlay record as a textured,
// alpha-blended quad. The host invokes Composite once per redraw on the
// drawing thread; there is no internal parallelism.
type Compositor struct {
	source Source
	dev    Device
	cache  *TextureCache
}

// NewCompositor creates a compositor reading records from source and
// drawing through dev.
func NewCompositor(source Source, dev Device) *Compositor {
	return &Compositor{
		source: source,
		dev:    dev,
		cache:  NewTextureCache(dev),
	}
}

// Cache returns the compositor's texture cache.
func (c *Compositor) Cache() *TextureCache {
	return c.cache
}

// Composite draws one frame. Records paint in store order, so later records
// end up on top. Every per-record failure (unreadable file, undecodable
// data, zero-size image) skips that record only; the frame always runs to
// completion. A failed load caches nothing and is retried on the next
// frame.
func (c *Compositor) Composite() {
	if !c.source.Enabled() {
		return
	}

	for _, rec := range c.source.Records() {
		if !rec.Visible {
			continue
		}

		entry, err := c.cache.Resolve(rec.SourcePath)
		if err != nil {
			continue
		}

		bounds := entry.Image.Bounds()
		if bounds.Dx() == 0 || bounds.Dy() == 0 {
			continue
		}

		quad := QuadFor(rec, bounds.Dx(), bounds.Dy())
		alpha := uint8(clamp01(rec.Opacity)*255 + 0.5)
		tint := color.NRGBA{R: 255, G: 255, B: 255, A: alpha}

		c.dev.SetBlend(BlendAlpha)
		c.dev.DrawTriangles(entry.Texture, quad.Pos[:], quad.UV[:], QuadIndices, tint)
		c.dev.SetBlend(BlendNone)
	}
}

// ReleasePath evicts the cached texture for path unless another record in
// the source still references it. Called by the host after a record is
// removed; records sharing a path share one cache entry, so eviction must
// re-scan rather than drop unconditionally.
func (c *Compositor) ReleasePath(path string) {
	for _, rec := range c.source.Records() {
		if rec.SourcePath == path {
			return
		}
	}
	c.cache.Evict(path)
}

// Teardown releases every cached texture. The owner unregisters the redraw
// callback; after Teardown the compositor must not draw again.
func (c *Compositor) Teardown() {
	c.cache.Clear()
}
