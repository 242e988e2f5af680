package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"gonum.org/v1/gonum/mat"

	"refview/pkg/geometry"
)

// rasterTexture holds decoded pixels in straight-alpha NRGBA for sampling.
type rasterTexture struct {
	pix    *image.NRGBA
	width  int
	height int
}

func (t *rasterTexture) Size() (int, int) {
	return t.width, t.height
}

func (t *rasterTexture) Release() {
	t.pix = nil
}

// RasterDevice is a software Device that rasterizes textured triangles into
// an RGBA frame. The frame is the viewport's pixel buffer; the device
// converts the compositor's y-up screen space to image rows when writing.
type RasterDevice struct {
	frame *image.RGBA
	blend BlendMode
}

// NewRasterDevice creates a device with no frame bound.
func NewRasterDevice() *RasterDevice {
	return &RasterDevice{}
}

// SetFrame binds the target pixel buffer for subsequent draws. Called once
// per redraw with the buffer handed out by the viewport widget.
func (d *RasterDevice) SetFrame(frame *image.RGBA) {
	d.frame = frame
}

// Upload converts img to straight-alpha NRGBA and keeps it as the texture.
func (d *RasterDevice) Upload(img image.Image) (Texture, error) {
	if img == nil {
		return nil, fmt.Errorf("upload: nil image")
	}
	bounds := img.Bounds()
	pix := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(pix, pix.Bounds(), img, bounds.Min, draw.Src)
	return &rasterTexture{pix: pix, width: bounds.Dx(), height: bounds.Dy()}, nil
}

// SetBlend sets the blend state for subsequent draws.
func (d *RasterDevice) SetBlend(mode BlendMode) {
	d.blend = mode
}

// DrawTriangles rasterizes indexed triangles with nearest-neighbor texture
// sampling. Vertex positions are in y-up viewport pixels; uv coordinates
// have (0,0) at the texture's bottom-left corner.
func (d *RasterDevice) DrawTriangles(tex Texture, pos, uv []geometry.Point2D, indices []int, tint color.NRGBA) {
	if d.frame == nil || tex == nil {
		return
	}
	rt, ok := tex.(*rasterTexture)
	if !ok || rt.pix == nil {
		return
	}

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if a >= len(pos) || b >= len(pos) || c >= len(pos) {
			continue
		}
		d.fillTriangle(rt,
			[3]geometry.Point2D{pos[a], pos[b], pos[c]},
			[3]geometry.Point2D{uv[a], uv[b], uv[c]},
			tint)
	}
}

// uvTransform solves the affine map from screen space to texture space
// defined by three vertex correspondences. Returns the u and v coefficient
// rows of the map u = cu[0]*x + cu[1]*y + cu[2] (and likewise for v), or an
// error for a degenerate triangle.
func uvTransform(p, t [3]geometry.Point2D) (cu, cv [3]float64, err error) {
	m := mat.NewDense(3, 3, []float64{
		p[0].X, p[0].Y, 1,
		p[1].X, p[1].Y, 1,
		p[2].X, p[2].Y, 1,
	})
	rhs := mat.NewDense(3, 2, []float64{
		t[0].X, t[0].Y,
		t[1].X, t[1].Y,
		t[2].X, t[2].Y,
	})

	var coef mat.Dense
	if err := coef.Solve(m, rhs); err != nil {
		return cu, cv, fmt.Errorf("degenerate triangle: %w", err)
	}

	for i := 0; i < 3; i++ {
		cu[i] = coef.At(i, 0)
		cv[i] = coef.At(i, 1)
	}
	return cu, cv, nil
}

// fillTriangle scans the triangle's bounding box and writes every covered
// pixel, sampling the texture through the solved affine map.
func (d *RasterDevice) fillTriangle(rt *rasterTexture, p, t [3]geometry.Point2D, tint color.NRGBA) {
	// Signed doubled area; zero means no coverage.
	area := (p[1].X-p[0].X)*(p[2].Y-p[0].Y) - (p[2].X-p[0].X)*(p[1].Y-p[0].Y)
	if area == 0 {
		return
	}
	ccw := area > 0

	// Fill-rule tie-break so pixels exactly on an edge shared by two
	// triangles (the quad diagonal) are covered exactly once.
	accept0 := acceptsZero(p[0], p[1], ccw)
	accept1 := acceptsZero(p[1], p[2], ccw)
	accept2 := acceptsZero(p[2], p[0], ccw)

	cu, cv, err := uvTransform(p, t)
	if err != nil {
		return
	}

	frameW := d.frame.Bounds().Dx()
	frameH := d.frame.Bounds().Dy()

	box := geometry.BoundsOf(p[:])
	minX := int(math.Floor(box.X))
	maxX := int(math.Ceil(box.X + box.Width))
	minY := int(math.Floor(box.Y))
	maxY := int(math.Ceil(box.Y + box.Height))
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > frameW {
		maxX = frameW
	}
	if maxY > frameH {
		maxY = frameH
	}

	tintA := float64(tint.A) / 255
	tintR := float64(tint.R) / 255
	tintG := float64(tint.G) / 255
	tintB := float64(tint.B) / 255

	for sy := minY; sy < maxY; sy++ {
		for sx := minX; sx < maxX; sx++ {
			// Sample at the pixel center, in y-up screen coordinates.
			x := float64(sx) + 0.5
			y := float64(sy) + 0.5

			e0 := (p[1].X-p[0].X)*(y-p[0].Y) - (x-p[0].X)*(p[1].Y-p[0].Y)
			e1 := (p[2].X-p[1].X)*(y-p[1].Y) - (x-p[1].X)*(p[2].Y-p[1].Y)
			e2 := (p[0].X-p[2].X)*(y-p[2].Y) - (x-p[2].X)*(p[0].Y-p[2].Y)
			if !covered(e0, ccw, accept0) || !covered(e1, ccw, accept1) || !covered(e2, ccw, accept2) {
				continue
			}

			u := cu[0]*x + cu[1]*y + cu[2]
			v := cv[0]*x + cv[1]*y + cv[2]
			sr, sg, sb, sa := rt.sample(u, v)

			// Screen row sy (y up) lands on frame row frameH-1-sy.
			fy := frameH - 1 - sy

			effA := (float64(sa) / 255) * tintA
			r := float64(sr) / 255 * tintR
			g := float64(sg) / 255 * tintG
			bl := float64(sb) / 255 * tintB

			if d.blend == BlendNone {
				d.frame.SetRGBA(sx, fy, color.RGBA{
					R: uint8(r*effA*255 + 0.5),
					G: uint8(g*effA*255 + 0.5),
					B: uint8(bl*effA*255 + 0.5),
					A: 255,
				})
				continue
			}

			if effA <= 0.001 {
				continue
			}
			dst := d.frame.RGBAAt(sx, fy)
			inv := 1 - effA
			d.frame.SetRGBA(sx, fy, color.RGBA{
				R: uint8(r*effA*255 + float64(dst.R)*inv + 0.5),
				G: uint8(g*effA*255 + float64(dst.G)*inv + 0.5),
				B: uint8(bl*effA*255 + float64(dst.B)*inv + 0.5),
				A: 255,
			})
		}
	}
}

// covered reports whether an edge function value counts as inside the
// triangle, given the winding and the edge's zero-acceptance.
func covered(e float64, ccw, acceptZero bool) bool {
	if e == 0 {
		return acceptZero
	}
	if ccw {
		return e > 0
	}
	return e < 0
}

// acceptsZero decides which of two triangles sharing an edge owns the
// pixels whose centers fall exactly on it: the one whose directed edge
// points upward, or leftward when horizontal.
func acceptsZero(a, b geometry.Point2D, ccw bool) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	if ccw {
		return dy > 0 || (dy == 0 && dx < 0)
	}
	return dy < 0 || (dy == 0 && dx > 0)
}

// sample returns the straight-alpha texel nearest to (u,v). v=0 addresses
// the bottom texture row, which is the last row of the pixel buffer.
func (t *rasterTexture) sample(u, v float64) (r, g, b, a uint8) {
	tx := int(u * float64(t.width))
	ty := int((1 - v) * float64(t.height))
	if tx < 0 {
		tx = 0
	}
	if tx >= t.width {
		tx = t.width - 1
	}
	if ty < 0 {
		ty = 0
	}
	if ty >= t.height {
		ty = t.height - 1
	}
	c := t.pix.NRGBAAt(tx, ty)
	return c.R, c.G, c.B, c.A
}
