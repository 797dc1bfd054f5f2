package engine

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"

	"retrogfx/pkg/gpu"
)

type frontBuffer struct {
	tex      gpu.TextureID
	w, h     int
	snapshot EffectSnapshot
}

// frontChain is the list of buffers one frame is drawn into. active is the
// buffer being drawn, used is how many buffers the last frame finished.
type frontChain struct {
	buffers []*frontBuffer
	active  int
	used    int
}

func (c *frontChain) release(dev gpu.Device) {
	for _, b := range c.buffers {
		dev.DeleteTexture(b.tex)
	}
	c.buffers = nil
	c.active, c.used = 0, 0
}

// ensureBuffer makes buffer i exist at the display size. A buffer of the
// wrong size is replaced; when that fails the old buffer is kept. Failing to
// create a missing buffer is an error.
func (r *Renderer) ensureBuffer(i int) (*frontBuffer, error) {
	c := &r.chain
	w, h := r.displayW, r.displayH
	if i < len(c.buffers) {
		b := c.buffers[i]
		if b.w == w && b.h == h {
			return b, nil
		}
		tex, err := r.dev.NewRenderTarget(w, h)
		if err != nil {
			r.log.ErrorOncef("resize-front-buffer", "front buffer %d resize to %dx%d failed, keeping %dx%d: %v", i, w, h, b.w, b.h, err)
			return b, nil
		}
		// never delete the texture the device is drawing into
		if r.target == b.tex {
			r.bindTarget(gpu.Display)
		}
		r.dev.DeleteTexture(b.tex)
		b.tex, b.w, b.h = tex, w, h
		return b, nil
	}

	for len(c.buffers) <= i {
		tex, err := r.dev.NewRenderTarget(w, h)
		if err != nil {
			return nil, errors.Wrapf(err, "creating front buffer %d (%dx%d)", len(c.buffers), w, h)
		}
		c.buffers = append(c.buffers, &frontBuffer{tex: tex, w: w, h: h})
	}
	return c.buffers[i], nil
}

// activateBuffer switches drawing to buffer i and clears it
func (r *Renderer) activateBuffer(i int, clear color.RGBA) error {
	b, err := r.ensureBuffer(i)
	if err != nil {
		return err
	}
	r.chain.active = i
	r.onscreen = true
	r.bindTarget(b.tex)
	r.clip = r.fullClip()
	r.dev.Clear(clear)
	return nil
}

// BeginFrame starts drawing a frame. tick is a monotonic frame counter used to
// seed noise and shake. Draw state is reset to defaults and the first front
// buffer is cleared to the clear colour.
func (r *Renderer) BeginFrame(tick uint64) error {
	if r.inFrame {
		r.log.WarnOncef("begin-in-frame", "BeginFrame called before EndFrame; ending the open frame")
		if err := r.EndFrame(); err != nil {
			return err
		}
	}
	// geometry drawn outside a frame goes out under the state it was drawn with
	r.flush(ReasonStateChange)
	r.tick = tick
	if tick%uint64(r.opts.ShakeCadence) == 0 {
		r.shake.Roll(uint32(tick))
	}

	r.camX, r.camY = 0, 0
	r.tint = white
	r.alpha = 255
	r.material = DefaultMaterial

	r.chain.used = 0
	if err := r.activateBuffer(0, r.opts.ClearColor); err != nil {
		return errors.Wrap(err, "begin frame")
	}
	r.inFrame = true
	return nil
}

// ApplyEffectsNow bakes the current effect values into everything drawn so
// far in this frame and continues drawing on a fresh transparent buffer
// layered on top.
func (r *Renderer) ApplyEffectsNow() error {
	if !r.inFrame {
		r.log.WarnOncef("apply-outside-frame", "ApplyEffectsNow called outside a frame")
		return nil
	}
	r.finishBuffer(ReasonEffectApply)

	next := r.chain.active + 1
	if next >= r.opts.MaxFrontBuffers {
		r.log.WarnOncef("front-buffer-limit", "front buffer limit of %d reached; effects merge into the last buffer", r.opts.MaxFrontBuffers)
		return nil
	}
	if err := r.activateBuffer(next, color.RGBA{}); err != nil {
		return errors.Wrap(err, "apply effects")
	}
	return nil
}

// EndFrame finishes the active buffer. Present composites the result.
func (r *Renderer) EndFrame() error {
	if !r.inFrame {
		return errors.New("EndFrame called outside a frame")
	}
	r.finishBuffer(ReasonFrameEnd)
	r.inFrame = false
	return nil
}

// finishBuffer draws render-time effects into the active buffer, submits it
// and stores the effect snapshot it will be presented with.
func (r *Renderer) finishBuffer(reason FlushReason) {
	if !r.onscreen {
		r.Onscreen()
	}
	r.bakeRenderEffects()
	r.flush(reason)
	b := r.chain.buffers[r.chain.active]
	b.snapshot = r.effects.params
	r.chain.used = r.chain.active + 1
}

// bakeRenderEffects rasterises the pinholes as geometry on top of the buffer
func (r *Renderer) bakeRenderEffects() {
	ph := r.effects.params[Pinhole]
	iph := r.effects.params[InvertedPinhole]
	if ph.Intensity <= 0 && iph.Intensity <= 0 {
		return
	}

	camX, camY, clip := r.camX, r.camY, r.clip
	tint, alpha := r.tint, r.alpha
	r.camX, r.camY = 0, 0
	r.setClip(r.fullClip())
	r.SetTint(white)
	r.SetAlpha(255)

	if ph.Intensity > 0 {
		rad := int(math.Round(float64(1-ph.Intensity) * r.farthestCorner(ph.Vector)))
		r.pinhole(ph.Vector, rad, ph.Color)
	}
	if iph.Intensity > 0 {
		rad := int(math.Round(float64(iph.Intensity) * r.farthestCorner(iph.Vector)))
		r.DrawCircleFill(iph.Vector, rad, iph.Color)
	}

	r.camX, r.camY = camX, camY
	r.setClip(clip)
	r.SetTint(tint)
	r.SetAlpha(alpha)
}

func (r *Renderer) farthestCorner(p image.Point) float64 {
	w, h := float64(r.displayW), float64(r.displayH)
	dx := math.Max(float64(p.X), w-float64(p.X))
	dy := math.Max(float64(p.Y), h-float64(p.Y))
	return math.Ceil(math.Hypot(dx, dy))
}

// pinhole covers everything outside a circle of radius rad around p
func (r *Renderer) pinhole(p image.Point, rad int, c color.RGBA) {
	w, h := r.displayW, r.displayH
	if rad <= 0 {
		r.DrawRectFill(R(0, 0, w, h), c)
		if rad == 0 {
			return
		}
	}
	bx0, by0 := p.X-rad, p.Y-rad
	bx1, by1 := p.X+rad+1, p.Y+rad+1
	r.DrawRectFill(R(0, 0, w, by0), c)
	r.DrawRectFill(R(0, by1, w, h-by1), c)
	r.DrawRectFill(R(0, by0, bx0, by1-by0), c)
	r.DrawRectFill(R(bx1, by0, w-bx1, by1-by0), c)
	r.DrawEllipseInverseFill(p, rad, rad, c)
}

// Snapshots returns the effect snapshot of every buffer the last frame used
func (r *Renderer) Snapshots() []EffectSnapshot {
	out := make([]EffectSnapshot, r.chain.used)
	for i := range out {
		out[i] = r.chain.buffers[i].snapshot
	}
	return out
}

// FrontBuffer returns the texture of front buffer i, if it exists
func (r *Renderer) FrontBuffer(i int) (Texture, bool) {
	if i < 0 || i >= len(r.chain.buffers) {
		return Texture{}, false
	}
	b := r.chain.buffers[i]
	return Texture{ID: b.tex, Width: b.w, Height: b.h}, true
}

// OffscreenSetup creates (or recreates) offscreen surface index at w x h
func (r *Renderer) OffscreenSetup(index, w, h int) error {
	if old, ok := r.offscreen[index]; ok {
		if old.Width == w && old.Height == h {
			return nil
		}
		if r.target == old.ID {
			r.Onscreen()
		}
		if r.texture.ID == old.ID {
			r.SetTexture(Texture{})
		}
		r.dev.DeleteTexture(old.ID)
		delete(r.offscreen, index)
	}
	id, err := r.dev.NewRenderTarget(w, h)
	if err != nil {
		return errors.Wrapf(err, "creating offscreen surface %d", index)
	}
	r.offscreen[index] = Texture{ID: id, Width: w, Height: h}
	return nil
}

// Offscreen redirects drawing into offscreen surface index and resets the
// clip to cover it.
func (r *Renderer) Offscreen(index int) bool {
	t, ok := r.offscreen[index]
	if !ok {
		r.log.WarnOncef("offscreen-missing", "offscreen surface %d was not set up", index)
		return false
	}
	r.bindTarget(t.ID)
	r.onscreen = false
	r.setClip(r.fullClip())
	return true
}

// Onscreen returns drawing to the active front buffer
func (r *Renderer) Onscreen() {
	if r.onscreen {
		return
	}
	r.onscreen = true
	if r.chain.active < len(r.chain.buffers) {
		r.bindTarget(r.chain.buffers[r.chain.active].tex)
	} else {
		r.bindTarget(gpu.Display)
	}
	r.setClip(r.fullClip())
}

// OffscreenTexture returns offscreen surface index for use with SetTexture
func (r *Renderer) OffscreenTexture(index int) (Texture, bool) {
	t, ok := r.offscreen[index]
	return t, ok
}

// ClearOffscreen fills offscreen surface index with c
func (r *Renderer) ClearOffscreen(index int, c color.RGBA) {
	prevOn, prevTarget := r.onscreen, r.target
	if !r.Offscreen(index) {
		return
	}
	r.dev.Clear(c)
	if prevOn {
		r.Onscreen()
	} else {
		r.bindTarget(prevTarget)
		r.setClip(r.fullClip())
	}
}
