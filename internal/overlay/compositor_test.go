package overlay

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refview/pkg/geometry"
)

type fakeTexture struct {
	width    int
	height   int
	released bool
}

func (t *fakeTexture) Size() (int, int) { return t.width, t.height }
func (t *fakeTexture) Release()         { t.released = true }

type drawCall struct {
	tex     Texture
	pos     []geometry.Point2D
	uv      []geometry.Point2D
	indices []int
	tint    color.NRGBA
}

type fakeDevice struct {
	uploads  int
	textures []*fakeTexture
	blends   []BlendMode
	calls    []drawCall
	failNext bool
}

func (d *fakeDevice) Upload(img image.Image) (Texture, error) {
	if d.failNext {
		d.failNext = false
		return nil, fmt.Errorf("upload rejected")
	}
	d.uploads++
	bounds := img.Bounds()
	tex := &fakeTexture{width: bounds.Dx(), height: bounds.Dy()}
	d.textures = append(d.textures, tex)
	return tex, nil
}

func (d *fakeDevice) SetBlend(mode BlendMode) {
	d.blends = append(d.blends, mode)
}

func (d *fakeDevice) DrawTriangles(tex Texture, pos, uv []geometry.Point2D, indices []int, tint color.NRGBA) {
	d.calls = append(d.calls, drawCall{
		tex:     tex,
		pos:     append([]geometry.Point2D(nil), pos...),
		uv:      append([]geometry.Point2D(nil), uv...),
		indices: append([]int(nil), indices...),
		tint:    tint,
	})
}

type fakeSource struct {
	enabled bool
	records []*Record
}

func (s *fakeSource) Enabled() bool      { return s.enabled }
func (s *fakeSource) Records() []*Record { return s.records }

// countingLoader serves in-memory images and counts loads per path.
type countingLoader struct {
	images map[string]image.Image
	loads  map[string]int
}

func newCountingLoader() *countingLoader {
	return &countingLoader{
		images: make(map[string]image.Image),
		loads:  make(map[string]int),
	}
}

func (l *countingLoader) add(path string, width, height int) {
	l.images[path] = image.NewNRGBA(image.Rect(0, 0, width, height))
}

func (l *countingLoader) load(path string) (image.Image, error) {
	l.loads[path]++
	img, ok := l.images[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return img, nil
}

func newTestCompositor(src *fakeSource, loader *countingLoader) (*Compositor, *fakeDevice) {
	dev := &fakeDevice{}
	comp := NewCompositor(src, dev)
	comp.Cache().SetLoader(loader.load)
	return comp, dev
}

func TestQuadGeometry(t *testing.T) {
	rec := NewRecord("ref.png")
	rec.Position = geometry.Point2D{X: 100, Y: 100}
	rec.Scale = geometry.Point2D{X: 0.2, Y: 0.2}

	quad := QuadFor(rec, 500, 300)

	assert.Equal(t, geometry.Point2D{X: 100, Y: 100}, quad.Pos[0])
	assert.Equal(t, geometry.Point2D{X: 200, Y: 100}, quad.Pos[1])
	assert.Equal(t, geometry.Point2D{X: 200, Y: 160}, quad.Pos[2])
	assert.Equal(t, geometry.Point2D{X: 100, Y: 160}, quad.Pos[3])
}

func TestQuadUVFlips(t *testing.T) {
	tests := []struct {
		name   string
		flipX  bool
		flipY  bool
		expect [4]geometry.Point2D
	}{
		{
			name:   "none",
			expect: [4]geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		},
		{
			name:   "flip x",
			flipX:  true,
			expect: [4]geometry.Point2D{{X: 1, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}},
		},
		{
			name:   "flip y",
			flipY:  true,
			expect: [4]geometry.Point2D{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}},
		},
		{
			name:   "flip both",
			flipX:  true,
			flipY:  true,
			expect: [4]geometry.Point2D{{X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord("ref.png")
			rec.FlipX = tt.flipX
			rec.FlipY = tt.flipY
			quad := QuadFor(rec, 10, 10)
			assert.Equal(t, tt.expect, quad.UV)
		})
	}
}

func TestCompositeDisabledDrawsNothing(t *testing.T) {
	loader := newCountingLoader()
	loader.add("a.png", 4, 4)
	src := &fakeSource{enabled: false, records: []*Record{NewRecord("a.png")}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()

	assert.Empty(t, dev.calls)
	assert.Empty(t, dev.blends)
	assert.Zero(t, dev.uploads)
	assert.Empty(t, loader.loads)
}

func TestCompositeSkipsInvisibleWithoutResolving(t *testing.T) {
	loader := newCountingLoader()
	loader.add("a.png", 4, 4)
	rec := NewRecord("a.png")
	rec.Visible = false
	src := &fakeSource{enabled: true, records: []*Record{rec}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()

	assert.Empty(t, dev.calls)
	assert.Zero(t, loader.loads["a.png"], "invisible record must not touch the cache")
	assert.Zero(t, comp.Cache().Len())
}

func TestCompositePaintOrderFollowsStoreOrder(t *testing.T) {
	loader := newCountingLoader()
	loader.add("a.png", 4, 4)
	loader.add("b.png", 4, 4)
	recA := NewRecord("a.png")
	recB := NewRecord("b.png")
	src := &fakeSource{enabled: true, records: []*Record{recA, recB}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()
	require.Len(t, dev.calls, 2)
	texA, texB := dev.calls[0].tex, dev.calls[1].tex

	// Reorder: b now paints first, a on top. Geometry and textures are
	// untouched.
	src.records = []*Record{recB, recA}
	dev.calls = nil
	comp.Composite()

	require.Len(t, dev.calls, 2)
	assert.Same(t, texB, dev.calls[0].tex)
	assert.Same(t, texA, dev.calls[1].tex)
	assert.Equal(t, 2, dev.uploads, "reordering must not re-upload")
}

func TestCompositeLoadFailureSkipsRecordOnly(t *testing.T) {
	loader := newCountingLoader()
	loader.add("good.png", 4, 4)
	bad := NewRecord("missing.png")
	good := NewRecord("good.png")
	src := &fakeSource{enabled: true, records: []*Record{bad, good}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()

	require.Len(t, dev.calls, 1, "the good record must still draw")
	assert.Equal(t, 1, dev.uploads)

	// Nothing was cached for the bad path, so the next frame retries.
	comp.Composite()
	assert.Equal(t, 2, loader.loads["missing.png"])
	assert.Equal(t, 1, loader.loads["good.png"])
}

func TestCompositeUploadFailureSkipsRecordOnly(t *testing.T) {
	loader := newCountingLoader()
	loader.add("a.png", 4, 4)
	src := &fakeSource{enabled: true, records: []*Record{NewRecord("a.png")}}
	comp, dev := newTestCompositor(src, loader)
	dev.failNext = true

	comp.Composite()
	assert.Empty(t, dev.calls)
	assert.Zero(t, comp.Cache().Len())

	// Retried and drawn on the next frame.
	comp.Composite()
	assert.Len(t, dev.calls, 1)
}

func TestCompositeSkipsDegenerateImage(t *testing.T) {
	loader := newCountingLoader()
	loader.add("empty.png", 0, 0)
	src := &fakeSource{enabled: true, records: []*Record{NewRecord("empty.png")}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()

	assert.Empty(t, dev.calls)
	assert.Equal(t, 1, comp.Cache().Len(), "degenerate images stay cached, they just never draw")
}

func TestResolveOncePerPathAcrossFrames(t *testing.T) {
	loader := newCountingLoader()
	loader.add("shared.png", 4, 4)
	recA := NewRecord("shared.png")
	recB := NewRecord("shared.png")
	src := &fakeSource{enabled: true, records: []*Record{recA, recB}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()
	comp.Composite()
	comp.Composite()

	assert.Equal(t, 1, loader.loads["shared.png"])
	assert.Equal(t, 1, dev.uploads)
	assert.Len(t, dev.calls, 6)
}

func TestCompositeBlendBracketing(t *testing.T) {
	loader := newCountingLoader()
	loader.add("a.png", 4, 4)
	loader.add("b.png", 4, 4)
	src := &fakeSource{enabled: true, records: []*Record{NewRecord("a.png"), NewRecord("b.png")}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()

	assert.Equal(t, []BlendMode{BlendAlpha, BlendNone, BlendAlpha, BlendNone}, dev.blends)
}

func TestCompositeOpacityTint(t *testing.T) {
	loader := newCountingLoader()
	loader.add("a.png", 4, 4)
	rec := NewRecord("a.png")
	src := &fakeSource{enabled: true, records: []*Record{rec}}
	comp, dev := newTestCompositor(src, loader)

	rec.Opacity = 0.5
	comp.Composite()
	require.Len(t, dev.calls, 1)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 128}, dev.calls[0].tint)

	// Out-of-range opacity is clamped at composition.
	rec.Opacity = 3
	dev.calls = nil
	comp.Composite()
	assert.Equal(t, uint8(255), dev.calls[0].tint.A)

	rec.Opacity = -1
	dev.calls = nil
	comp.Composite()
	assert.Equal(t, uint8(0), dev.calls[0].tint.A)
}

func TestReleasePathKeepsSharedEntries(t *testing.T) {
	loader := newCountingLoader()
	loader.add("shared.png", 4, 4)
	recA := NewRecord("shared.png")
	recB := NewRecord("shared.png")
	src := &fakeSource{enabled: true, records: []*Record{recA, recB}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()
	require.Equal(t, 1, comp.Cache().Len())

	// One of the two records is removed; the other still references the
	// path, so the entry survives and the next frame re-decodes nothing.
	src.records = []*Record{recB}
	comp.ReleasePath("shared.png")
	assert.True(t, comp.Cache().Contains("shared.png"))
	assert.False(t, dev.textures[0].released)

	comp.Composite()
	assert.Equal(t, 1, loader.loads["shared.png"])

	// Last reference gone: the entry is evicted and its texture released.
	src.records = nil
	comp.ReleasePath("shared.png")
	assert.False(t, comp.Cache().Contains("shared.png"))
	assert.True(t, dev.textures[0].released)
}

func TestReenableReproducesOutput(t *testing.T) {
	loader := newCountingLoader()
	loader.add("a.png", 8, 6)
	rec := NewRecord("a.png")
	src := &fakeSource{enabled: true, records: []*Record{rec}}
	comp, dev := newTestCompositor(src, loader)

	comp.Composite()
	require.Len(t, dev.calls, 1)
	first := dev.calls[0]

	src.enabled = false
	dev.calls = nil
	comp.Composite()
	assert.Empty(t, dev.calls)

	src.enabled = true
	comp.Composite()
	require.Len(t, dev.calls, 1)
	assert.Equal(t, first.pos, dev.calls[0].pos)
	assert.Equal(t, first.uv, dev.calls[0].uv)
	assert.Same(t, first.tex, dev.calls[0].tex)
	assert.Equal(t, 1, dev.uploads, "re-enable must reuse the cached texture")
}

func TestQuadIndicesTriangulation(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 2, 3, 0}, QuadIndices)
}
