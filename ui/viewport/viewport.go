// Package viewport provides the widget that hosts the overlay compositor.
package viewport

import (
	"image"
	"image/color"
	"image/draw"

	"refview/internal/app"
	"refview/internal/overlay"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// backColor is the viewport background.
var backColor = color.RGBA{40, 40, 40, 255}

// Viewport displays the reference overlays. Each repaint renders the frame
// through the software raster device: background fill, then one composited
// quad per visible record. Creating the viewport registers the redraw
// listeners (init); Teardown releases the cached textures.
type Viewport struct {
	widget.BaseWidget

	state      *app.State
	device     *overlay.RasterDevice
	compositor *overlay.Compositor
	raster     *fynecanvas.Raster
}

// New creates a viewport drawing the overlays held by state.
func New(state *app.State) *Viewport {
	v := &Viewport{
		state:  state,
		device: overlay.NewRasterDevice(),
	}
	v.compositor = overlay.NewCompositor(state, v.device)

	v.raster = fynecanvas.NewRaster(v.draw)
	v.raster.ScaleMode = fynecanvas.ImageScalePixels

	// Every document mutation is a redraw request; Fyne coalesces the
	// actual repaints.
	repaint := func(interface{}) { v.Refresh() }
	state.On(app.EventReferencesChanged, repaint)
	state.On(app.EventReferenceEdited, repaint)
	state.On(app.EventEnabledChanged, repaint)
	state.On(app.EventSelectionChanged, repaint)

	// Removal releases the texture unless another record still uses the
	// same file.
	state.On(app.EventReferenceRemoved, func(data interface{}) {
		if path, ok := data.(string); ok {
			v.compositor.ReleasePath(path)
		}
	})

	v.ExtendBaseWidget(v)
	return v
}

// draw is the raster drawing function, invoked by the host render loop on
// the drawing thread.
func (v *Viewport) draw(w, h int) image.Image {
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return frame
	}

	draw.Draw(frame, frame.Bounds(), &image.Uniform{backColor}, image.Point{}, draw.Src)

	v.device.SetFrame(frame)
	v.compositor.Composite()
	return frame
}

// Refresh repaints the viewport.
func (v *Viewport) Refresh() {
	v.raster.Refresh()
	v.BaseWidget.Refresh()
}

// Teardown releases all cached textures. Call once when the window closes.
func (v *Viewport) Teardown() {
	v.compositor.Teardown()
}

// Compositor returns the viewport's compositor.
func (v *Viewport) Compositor() *overlay.Compositor {
	return v.compositor
}

// CreateRenderer implements fyne.Widget.
func (v *Viewport) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.raster)
}

// MinSize implements fyne.Widget.
func (v *Viewport) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}
