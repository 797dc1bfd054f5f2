package engine

import (
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrogfx/internal/util"
)

func TestFitScale(t *testing.T) {
	tests := []struct {
		name           string
		bw, bh, dw, dh int
		want           float32
	}{
		{"exact", 320, 180, 1280, 720, 4},
		{"whole scale only", 320, 180, 1300, 700, 3},
		{"same size", 320, 180, 320, 180, 1},
		{"smaller display", 320, 180, 160, 90, 0.5},
		{"narrower display", 320, 180, 300, 180, 0.9375},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fitScale(tt.bw, tt.bh, tt.dw, tt.dh))
		})
	}
}

func apply(m mgl32.Mat3, x, y float32) (float32, float32) {
	v := m.Mul3x1(mgl32.Vec3{x, y, 1})
	return v.X(), v.Y()
}

func TestPresentTransform(t *testing.T) {
	tests := []struct {
		name                 string
		bw, bh, dw, dh       int
		zoom, angle, ox, oy  float32
		inX, inY, outX, outY float32
	}{
		{"identity", 320, 180, 320, 180, 1, 0, 0, 0, 5, 7, 5, 7},
		{"scaled origin", 320, 180, 1280, 720, 1, 0, 0, 0, 0, 0, 0, 0},
		{"scaled corner", 320, 180, 1280, 720, 1, 0, 0, 0, 320, 180, 1280, 720},
		{"letterboxed", 320, 180, 1300, 700, 1, 0, 0, 0, 0, 0, 170, 80},
		{"offset in buffer pixels", 320, 180, 1280, 720, 1, 0, 3, -1, 0, 0, 12, -4},
		{"zoom about centre", 320, 180, 320, 180, 2, 0, 0, 0, 0, 0, -160, -90},
		{"zoom keeps centre", 320, 180, 320, 180, 2, 0, 0, 0, 160, 90, 160, 90},
		{"quarter turn", 20, 20, 20, 20, 1, 90, 0, 0, 15, 10, 10, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := presentTransform(tt.bw, tt.bh, tt.dw, tt.dh, tt.zoom, tt.angle, tt.ox, tt.oy)
			x, y := apply(m, tt.inX, tt.inY)
			assert.InDelta(t, tt.outX, x, 1e-3)
			assert.InDelta(t, tt.outY, y, 1e-3)
		})
	}
}

func TestWipeRect(t *testing.T) {
	tests := []struct {
		name      string
		v         image.Point
		intensity float32
		want      image.Rectangle
	}{
		{"off", image.Pt(1, 0), 0, image.Rectangle{}},
		{"zero vector wipes right", image.Pt(0, 0), 0.5, image.Rect(0, 0, 5, 4)},
		{"right", image.Pt(1, 0), 0.5, image.Rect(0, 0, 5, 4)},
		{"left", image.Pt(-1, 0), 0.5, image.Rect(5, 0, 10, 4)},
		{"down", image.Pt(0, 1), 0.25, image.Rect(0, 0, 10, 1)},
		{"up", image.Pt(0, -2), 0.5, image.Rect(0, 2, 10, 4)},
		{"mostly horizontal", image.Pt(3, -2), 1, image.Rect(0, 0, 10, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wipeRect(tt.v, tt.intensity, 10, 4))
		})
	}
}

func TestCompositeParams(t *testing.T) {
	r, _ := newTestRendererOpts(t, 8, 8, func(o *Options) { o.ShakePixels = 4 })

	var s EffectSnapshot
	s[Zoom].Intensity = 1
	s[Pixelate].Intensity = 0.5
	s[ChromaticAberration].Intensity = 1
	s[Slide] = EffectParams{Intensity: 0.5, Vector: image.Pt(4, -2)}
	s[Wipe] = EffectParams{Intensity: 0.5, Vector: image.Pt(-1, 0), Color: red}

	p := r.compositeParams(&s, 8, 8, 8, 8)
	assert.Equal(t, 8, p.Pixelate)
	assert.Equal(t, float32(maxAberration), p.ChromaticAberration)
	assert.InDelta(t, 2, p.Transform[6], 1e-4)
	assert.InDelta(t, -1, p.Transform[7], 1e-4)
	assert.Equal(t, image.Rect(4, 0, 8, 8), p.Wipe)
	assert.Equal(t, red, p.WipeColor)
	assert.Equal(t, uint32(fizzleSeed), p.FizzleSeed)

	s[Pixelate].Intensity = 0
	assert.Equal(t, 1, r.compositeParams(&s, 8, 8, 8, 8).Pixelate)
	s[Pixelate].Intensity = 1
	assert.Equal(t, maxPixelate, r.compositeParams(&s, 8, 8, 8, 8).Pixelate)
}

func TestShakeOffsetIsBounded(t *testing.T) {
	r, _ := newTestRendererOpts(t, 8, 8, func(o *Options) { o.ShakePixels = 4 })

	var s EffectSnapshot
	s[Zoom].Intensity = 1
	s[Shake].Intensity = 1
	moved := false
	for tick := uint64(0); tick < 32; tick++ {
		r.tick = tick
		p := r.compositeParams(&s, 8, 8, 8, 8)
		assert.Equal(t, uint32(tick), p.NoiseSeed)
		x, y := p.Transform[6], p.Transform[7]
		assert.LessOrEqual(t, util.Abs(x), float32(4))
		assert.LessOrEqual(t, util.Abs(y), float32(4))
		if x != 0 || y != 0 {
			moved = true
		}
		again := r.compositeParams(&s, 8, 8, 8, 8)
		assert.Equal(t, p.Transform, again.Transform, "shake is a function of the tick")
	}
	assert.True(t, moved)
}

func TestPresentScalesToDisplay(t *testing.T) {
	r, dev := newTestRenderer(t, 8, 4)
	dev.Resize(16, 8)

	require.NoError(t, r.BeginFrame(0))
	r.DrawRectFill(R(0, 0, 2, 2), red)
	require.NoError(t, r.EndFrame())
	require.NoError(t, r.Present())

	img := dev.Image()
	assert.Equal(t, 16, countColor(img, red))
	assert.Equal(t, red, img.RGBAAt(3, 3))
	assert.Equal(t, black, img.RGBAAt(4, 4))
	_, _, presents := dev.Stats()
	assert.Equal(t, 1, presents)
}

func TestPresentLayersBuffersInOrder(t *testing.T) {
	r, dev := newTestRenderer(t, 8, 4)
	dev.Resize(16, 8)

	require.NoError(t, r.BeginFrame(0))
	r.DrawRectFill(R(0, 0, 8, 4), red)
	r.SetEffect(Negative, 1)
	require.NoError(t, r.ApplyEffectsNow())
	r.ResetEffects()
	r.DrawRectFill(R(0, 0, 2, 2), blue)
	require.NoError(t, r.EndFrame())
	require.NoError(t, r.Present())

	img := dev.Image()
	assert.Equal(t, blue, img.RGBAAt(0, 0))
	assert.Equal(t, blue, img.RGBAAt(3, 3))
	got := img.RGBAAt(10, 6)
	assert.Equal(t, uint8(0), got.R, "bottom buffer is inverted")
	assert.Equal(t, uint8(255), got.G)
	assert.Equal(t, uint8(255), got.B)
}

func TestPresentWithoutFrameClearsDisplay(t *testing.T) {
	r, dev := newTestRenderer(t, 4, 4)
	require.NoError(t, r.Present())
	assert.Equal(t, 16, countColor(dev.Image(), black))
}
