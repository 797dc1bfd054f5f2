package engine

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrogfx/pkg/gpu"
	"retrogfx/pkg/softgpu"
)

var (
	black = color.RGBA{0, 0, 0, 255}
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

func newTestRenderer(t *testing.T, w, h int) (*Renderer, *softgpu.Device) {
	t.Helper()
	return newTestRendererOpts(t, w, h, nil)
}

func newTestRendererOpts(t *testing.T, w, h int, tweak func(*Options)) (*Renderer, *softgpu.Device) {
	t.Helper()
	dev := softgpu.New(w, h)
	opts := DefaultOptions()
	opts.DisplayWidth, opts.DisplayHeight = w, h
	opts.ClearColor = black
	if tweak != nil {
		tweak(&opts)
	}
	r, err := New(dev, opts)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, dev
}

// frontPixels flushes and returns the contents of front buffer i
func frontPixels(t *testing.T, r *Renderer, dev *softgpu.Device, i int) *image.RGBA {
	t.Helper()
	r.Flush()
	tex, ok := r.FrontBuffer(i)
	require.True(t, ok)
	img := dev.Texture(tex.ID)
	require.NotNil(t, img)
	return img
}

func countColor(img *image.RGBA, c color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				n++
			}
		}
	}
	return n
}

func TestNewRejectsBadDisplay(t *testing.T) {
	_, err := New(softgpu.New(8, 8), Options{})
	assert.Error(t, err)
}

func TestNewFailsWhenMeshPoolCannotAllocate(t *testing.T) {
	dev := softgpu.New(8, 8)
	dev.MeshLimit = 1
	opts := DefaultOptions()
	opts.BatchVertices = 1024
	opts.PoolMinVertices = 64
	_, err := New(dev, opts)
	assert.Error(t, err)
}

func TestNewBatchVerticesRange(t *testing.T) {
	tests := []struct {
		name     string
		vertices int
		wantErr  bool
	}{
		{"default", 0, false},
		{"negative", -4, true},
		{"smaller than a quad", 3, true},
		{"one quad", 4, false},
		{"full index range", 1 << 16, false},
		{"past index range", 1<<16 + 1, true},
		{"far past index range", 100000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.DisplayWidth, opts.DisplayHeight = 8, 8
			opts.BatchVertices = tt.vertices
			opts.PoolMinVertices = 4
			r, err := New(softgpu.New(8, 8), opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			r.Close()
		})
	}
}

func TestPoolMinVerticesIsClampedToBatch(t *testing.T) {
	r, _ := newTestRendererOpts(t, 8, 8, func(o *Options) {
		o.BatchVertices = 64
		o.PoolMinVertices = 1
	})
	assert.Equal(t, 4, r.opts.PoolMinVertices)

	r2, _ := newTestRendererOpts(t, 8, 8, func(o *Options) {
		o.BatchVertices = 64
		o.PoolMinVertices = 1000
	})
	assert.Equal(t, 64, r2.opts.PoolMinVertices)
}

func TestFullIndexRangeBatchKeepsLaterQuads(t *testing.T) {
	r, dev := newTestRendererOpts(t, 8, 8, func(o *Options) {
		o.BatchVertices = 1 << 16
	})
	require.NoError(t, r.BeginFrame(0))

	for i := 0; i < 1<<14; i++ {
		r.DrawRectFill(R(0, 0, 2, 2), red)
	}
	assert.Equal(t, 1<<16, r.batch.nv)
	assert.Zero(t, r.Stats().Flushes[ReasonBatchFull])

	r.DrawRectFill(R(5, 5, 2, 2), blue)
	assert.Equal(t, 1, r.Stats().Flushes[ReasonBatchFull])
	img := frontPixels(t, r, dev, 0)
	assert.Equal(t, blue, img.RGBAAt(5, 5))
	assert.Equal(t, blue, img.RGBAAt(6, 6))
	assert.Equal(t, red, img.RGBAAt(1, 1))
}

func TestSmallestBatchHoldsOneQuad(t *testing.T) {
	r, dev := newTestRendererOpts(t, 8, 8, func(o *Options) {
		o.BatchVertices = 4
		o.PoolMinVertices = 4
	})
	require.NoError(t, r.BeginFrame(0))
	r.DrawRectFill(R(0, 0, 2, 2), red)
	r.DrawRectFill(R(4, 4, 2, 2), blue)
	assert.Equal(t, 1, r.Stats().Flushes[ReasonBatchFull])

	img := frontPixels(t, r, dev, 0)
	assert.Equal(t, 4, countColor(img, red))
	assert.Equal(t, 4, countColor(img, blue))
}

func TestFlushEmptyBatchIsNoop(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))

	r.Flush()
	assert.Zero(t, r.Stats().TotalFlushes())
	draws, uploads, _ := dev.Stats()
	assert.Zero(t, draws)
	assert.Zero(t, uploads)
}

func TestFlushResetsCursors(t *testing.T) {
	r, _ := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))

	r.DrawRectFill(R(2, 2, 4, 4), red)
	assert.Equal(t, 4, r.batch.nv)
	assert.Equal(t, 6, r.batch.ni)

	r.Flush()
	assert.Zero(t, r.batch.nv)
	assert.Zero(t, r.batch.ni)

	s := r.Stats()
	assert.Equal(t, 1, s.Flushes[ReasonForced])
	assert.Equal(t, 1, s.DrawCalls)
	assert.Equal(t, 4, s.Vertices)
	assert.Equal(t, 6, s.Indices)

	r.ResetStats()
	assert.Zero(t, r.Stats().TotalFlushes())
}

func TestCulledPrimitivesLeaveBatchUntouched(t *testing.T) {
	r, _ := newTestRenderer(t, 32, 32)
	require.NoError(t, r.BeginFrame(0))
	r.SetClip(R(0, 0, 10, 10))

	r.DrawPixel(20, 20, red)
	r.DrawRectFill(R(12, 12, 5, 5), red)
	r.DrawRect(R(12, 12, 5, 5), red)
	r.DrawLine(15, 15, 25, 25, red)
	r.DrawLineThick(15, 15, 25, 25, 3, red)
	r.DrawTriangleFill(image.Pt(20, 20), image.Pt(30, 20), image.Pt(25, 30), red)
	r.DrawCircleFill(image.Pt(25, 25), 4, red)

	assert.Zero(t, r.batch.nv)
	assert.Zero(t, r.batch.ni)
	assert.Equal(t, 7, r.Stats().Culled)
}

func TestDegenerateGeometryIsSilent(t *testing.T) {
	r, _ := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))

	r.DrawRectFill(R(2, 2, 0, 5), red)
	r.DrawRect(R(2, 2, 5, -1), red)
	r.DrawEllipse(image.Pt(4, 4), -1, 3, red)
	r.DrawRectThick(R(2, 2, 5, 5), 0, red)

	assert.Zero(t, r.batch.nv)
	assert.Zero(t, r.Stats().Culled)
}

func TestCameraOffsetsVerticesWithoutFlushing(t *testing.T) {
	r, _ := newTestRenderer(t, 32, 32)
	require.NoError(t, r.BeginFrame(0))

	r.DrawRectFill(R(10, 10, 4, 4), red)
	r.SetCamera(3, 4)
	r.DrawRectFill(R(10, 10, 4, 4), red)

	assert.Zero(t, r.Stats().TotalFlushes())
	require.Equal(t, 8, r.batch.nv)
	assert.Equal(t, float32(10), r.batch.vertices[0].X)
	assert.Equal(t, float32(7), r.batch.vertices[4].X)
	assert.Equal(t, float32(6), r.batch.vertices[4].Y)

	x, y := r.Camera()
	assert.Equal(t, 3, x)
	assert.Equal(t, 4, y)
}

func TestClipFlushesOnlyOnChange(t *testing.T) {
	r, _ := newTestRenderer(t, 32, 32)
	require.NoError(t, r.BeginFrame(0))

	r.DrawRectFill(R(0, 0, 4, 4), red)
	r.SetClip(R(0, 0, 32, 32))
	assert.Zero(t, r.Stats().Flushes[ReasonClipChange])

	r.SetClip(R(4, 4, 8, 8))
	assert.Equal(t, 1, r.Stats().Flushes[ReasonClipChange])
	assert.Equal(t, R(4, 4, 8, 8), r.Clip())

	r.DrawRectFill(R(4, 4, 4, 4), red)
	r.SetClip(R(4, 4, 8, 8))
	assert.Equal(t, 1, r.Stats().Flushes[ReasonClipChange])

	r.SetClip(R(20, 20, 40, 40))
	assert.Equal(t, R(20, 20, 12, 12), r.Clip(), "clip is bounded by the target")

	r.ResetClip()
	assert.Equal(t, R(0, 0, 32, 32), r.Clip())
}

func TestStateChangesFlushWithReason(t *testing.T) {
	tests := []struct {
		name   string
		change func(r *Renderer)
		reason FlushReason
	}{
		{"tint", func(r *Renderer) { r.SetTint(color.RGBA{128, 128, 128, 255}) }, ReasonStateChange},
		{"alpha", func(r *Renderer) { r.SetAlpha(100) }, ReasonStateChange},
		{"texture", func(r *Renderer) { r.SetTexture(r.systemFont.texture) }, ReasonStateChange},
		{"shader", func(r *Renderer) { r.SetShader(5) }, ReasonShaderChange},
		{"passes", func(r *Renderer) { r.SetMaterial(Material{Passes: 2}) }, ReasonShaderChange},
		{"target", func(r *Renderer) { r.bindTarget(gpu.Display) }, ReasonTargetChange},
		{"clear", func(r *Renderer) { r.Clear(black) }, ReasonForced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRenderer(t, 16, 16)
			require.NoError(t, r.BeginFrame(0))
			r.DrawRectFill(R(0, 0, 4, 4), red)

			tt.change(r)
			assert.Equal(t, 1, r.Stats().Flushes[tt.reason])
			assert.Zero(t, r.batch.nv)
		})
	}
}

func TestUnchangedStateDoesNotFlush(t *testing.T) {
	r, _ := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.DrawRectFill(R(0, 0, 4, 4), red)

	r.SetTint(white)
	r.SetAlpha(255)
	r.SetTexture(Texture{})
	r.SetMaterial(DefaultMaterial)
	r.SetCamera(1, 1)

	assert.Zero(t, r.Stats().TotalFlushes())
	assert.Equal(t, 4, r.batch.nv)
}

func TestBatchFullFlush(t *testing.T) {
	r, _ := newTestRendererOpts(t, 64, 64, func(o *Options) {
		o.BatchVertices = 64
		o.PoolMinVertices = 16
	})
	require.NoError(t, r.BeginFrame(0))

	for i := 0; i < 16; i++ {
		r.DrawRectFill(R(i, 0, 2, 2), red)
	}
	assert.Zero(t, r.Stats().Flushes[ReasonBatchFull])
	assert.Equal(t, 64, r.batch.nv)

	r.DrawRectFill(R(0, 10, 2, 2), red)
	assert.Equal(t, 1, r.Stats().Flushes[ReasonBatchFull])
	assert.Equal(t, 4, r.batch.nv)
	assert.Equal(t, 6, r.batch.ni)
}

func TestMeshPoolFitsSmallestClass(t *testing.T) {
	dev := softgpu.New(8, 8)
	p, err := newMeshPool(dev, 1000, 60)
	require.NoError(t, err)
	require.Len(t, p.meshes, 5)
	assert.Equal(t, 64, p.meshes[0].vCap)
	assert.Equal(t, 1024, p.largest().vCap)

	m, ok := p.fit(65, 10)
	require.True(t, ok)
	assert.Equal(t, 128, m.vCap)

	m, ok = p.fit(4, 6)
	require.True(t, ok)
	assert.Equal(t, 64, m.vCap)

	_, ok = p.fit(2048, 6)
	assert.False(t, ok)

	p.release(dev)
	assert.Empty(t, p.meshes)
}

func TestTintAndAlphaModulateVertices(t *testing.T) {
	r, _ := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))

	r.SetTint(color.RGBA{128, 255, 0, 7})
	r.SetAlpha(128)
	r.DrawRectFill(R(0, 0, 4, 4), color.RGBA{255, 100, 255, 255})

	v := r.batch.vertices[0]
	assert.Equal(t, uint8(128), v.R)
	assert.Equal(t, uint8(100), v.G)
	assert.Equal(t, uint8(0), v.B)
	assert.Equal(t, uint8(128), v.A)
	assert.Equal(t, color.RGBA{128, 255, 0, 255}, r.Tint(), "tint alpha is ignored")
}

func TestRenderingIsDeterministic(t *testing.T) {
	draw := func(r *Renderer) {
		r.DrawRectFill(R(1, 1, 10, 6), red)
		r.DrawLine(0, 0, 17, 9, blue)
		r.DrawCircle(image.Pt(12, 12), 5, white)
		r.DrawTriangleFill(image.Pt(2, 20), image.Pt(12, 28), image.Pt(20, 18), blue)
		r.DrawRectFillRotated(R(20, 4, 6, 6), image.Pt(3, 3), 33, white)
		r.PrintString(SystemFont, R(0, 16, 32, 13), white, 0, "ok")
	}

	r1, dev1 := newTestRenderer(t, 32, 32)
	r2, dev2 := newTestRenderer(t, 32, 32)
	for _, r := range []*Renderer{r1, r2} {
		require.NoError(t, r.BeginFrame(7))
		draw(r)
	}
	require.Equal(t, r1.batch.nv, r2.batch.nv)
	assert.Equal(t, r1.batch.vertices[:r1.batch.nv], r2.batch.vertices[:r2.batch.nv])
	assert.Equal(t, r1.batch.indices[:r1.batch.ni], r2.batch.indices[:r2.batch.ni])

	require.NoError(t, r1.EndFrame())
	require.NoError(t, r2.EndFrame())
	assert.Equal(t, frontPixels(t, r1, dev1, 0).Pix, frontPixels(t, r2, dev2, 0).Pix)
	assert.Equal(t, r1.Stats(), r2.Stats())
}

func TestDrawsOutsideFrameGoToDisplay(t *testing.T) {
	r, dev := newTestRenderer(t, 8, 8)
	r.DrawRectFill(R(0, 0, 2, 2), red)
	r.Flush()
	assert.Equal(t, red, dev.Image().RGBAAt(1, 1))
}

func TestSetDisplaySizeRecreatesBuffers(t *testing.T) {
	r, _ := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	require.NoError(t, r.EndFrame())

	r.SetDisplaySize(0, 10)
	w, h := r.DisplaySize()
	assert.Equal(t, 16, w)
	assert.Equal(t, 16, h)

	r.SetDisplaySize(24, 12)
	require.NoError(t, r.BeginFrame(1))
	tex, ok := r.FrontBuffer(0)
	require.True(t, ok)
	assert.Equal(t, 24, tex.Width)
	assert.Equal(t, 12, tex.Height)
	assert.Equal(t, R(0, 0, 24, 12), r.Clip())
}

func TestBeginFrameFlushesUnderPreviousState(t *testing.T) {
	r, dev := newTestRenderer(t, 8, 8)
	shaded := 0
	sh, err := r.NewShader(gpu.ShaderSource{Pixel: func(c color.RGBA, x, y, pass int) color.RGBA {
		shaded++
		return c
	}})
	require.NoError(t, err)

	r.SetShader(sh)
	r.DrawRectFill(R(0, 0, 4, 4), red)
	require.NoError(t, r.BeginFrame(0))

	assert.Equal(t, 16, shaded, "pending quad drawn with the shader it was batched under")
	assert.Equal(t, 1, r.Stats().Flushes[ReasonStateChange])
	assert.Equal(t, red, dev.Image().RGBAAt(3, 3))
	assert.Equal(t, DefaultMaterial, r.CurrentMaterial())
}

func TestReplacingBoundBufferFlushesFirst(t *testing.T) {
	r, dev := newTestRenderer(t, 8, 8)
	require.NoError(t, r.BeginFrame(0))
	require.NoError(t, r.EndFrame())
	old, ok := r.FrontBuffer(0)
	require.True(t, ok)

	r.SetDisplaySize(16, 16)
	// still bound to the 8x8 buffer
	r.DrawRectFill(R(0, 0, 2, 2), red)
	_, err := r.ensureBuffer(0)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Stats().Flushes[ReasonTargetChange])
	assert.Equal(t, gpu.Display, dev.Target())
	assert.Nil(t, dev.Texture(old.ID))
	r.Flush()
	assert.Zero(t, countColor(dev.Image(), red), "stale geometry must not land on the display")
}
