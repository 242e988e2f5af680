package overlay

import (
	"image"
	"image/color"

	"refview/pkg/geometry"
)

// Texture is a device-resident copy of a decoded image.
type Texture interface {
	// Size returns the texture dimensions in pixels.
	Size() (width, height int)
	// Release frees the device resources backing the texture. The texture
	// must not be used afterwards.
	Release()
}

// BlendMode specifies how draws combine with the frame.
type BlendMode int

const (
	BlendNone  BlendMode = iota // source replaces destination
	BlendAlpha                  // straight alpha over destination
)

func (m BlendMode) String() string {
	switch m {
	case BlendNone:
		return "None"
	case BlendAlpha:
		return "Alpha"
	default:
		return "Unknown"
	}
}

// Uploader creates device textures from decoded images. It is the part of
// the graphics binding the texture cache needs.
type Uploader interface {
	Upload(img image.Image) (Texture, error)
}

// Device is the graphics backend the compositor issues draw calls through.
// All methods must be called from the drawing thread.
type Device interface {
	Uploader

	// SetBlend sets the blend state for subsequent draws.
	SetBlend(mode BlendMode)

	// DrawTriangles draws indexed triangles with the given texture bound.
	// pos holds vertex positions in viewport pixels with the origin at the
	// bottom-left corner and y growing upward. uv holds per-vertex texture
	// coordinates in the unit square with (0,0) at the texture's
	// bottom-left. tint is multiplied with every sampled texel.
	DrawTriangles(tex Texture, pos, uv []geometry.Point2D, indices []int, tint color.NRGBA)
}
