// Package overlay implements screen-space reference image overlays: the
// record data model, a path-keyed texture cache, and the per-frame
// compositor that draws textured quads into the viewport.
package overlay

import (
	"path/filepath"
	"strings"

	"refview/pkg/geometry"
)

// Default placement for newly added references.
var (
	DefaultPosition = geometry.Point2D{X: 100, Y: 100}
	DefaultScale    = geometry.Point2D{X: 0.2, Y: 0.2}
)

// Record is one configured reference image overlay. It is leaf data owned
// by the host document state; the compositor only reads it.
//
// SourcePath doubles as the texture cache key and is fixed at creation.
// Replacing the image behind a record is modeled as remove + add.
type Record struct {
	Name       string            `json:"name"`
	SourcePath string            `json:"source_path"`
	Visible    bool              `json:"visible"`
	Position   geometry.Point2D  `json:"position"` // bottom-left corner, viewport pixels, y up
	Scale      geometry.Point2D  `json:"scale"`    // per-axis factors applied to the image size
	Opacity    float64           `json:"opacity"`  // [0,1], multiplies the alpha channel
	FlipX      bool              `json:"flip_x"`
	FlipY      bool              `json:"flip_y"`
}

// NewRecord creates a record for the image at path with default placement.
// The display name is derived from the file name without its extension.
func NewRecord(path string) *Record {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		name = "Reference"
	}
	return &Record{
		Name:       name,
		SourcePath: path,
		Visible:    true,
		Position:   DefaultPosition,
		Scale:      DefaultScale,
		Opacity:    1.0,
	}
}

// clamp01 clamps v to the [0,1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
