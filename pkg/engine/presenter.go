package engine

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"retrogfx/internal/noise"
	"retrogfx/internal/util"
	"retrogfx/pkg/gpu"
)

// fizzleSeed is fixed so a rising fizzle only ever covers more pixels
const fizzleSeed = 0x5eed

const (
	maxAberration = 3  // display pixels at intensity 1
	maxPixelate   = 16 // block size at intensity 1
)

// Present composites every buffer of the last frame onto the display in
// order, then shows the result.
func (r *Renderer) Present() error {
	if r.inFrame {
		return errors.New("Present called before EndFrame")
	}
	r.dev.SetTarget(gpu.Display)
	r.target = gpu.Display
	r.dev.Clear(color.RGBA{0, 0, 0, 255})

	dw, dh := r.dev.DisplaySize()
	for i := 0; i < r.chain.used; i++ {
		b := r.chain.buffers[i]
		p := r.compositeParams(&b.snapshot, b.w, b.h, dw, dh)
		if err := r.dev.Composite(b.tex, p); err != nil {
			return errors.Wrapf(err, "compositing front buffer %d", i)
		}
	}
	return errors.Wrap(r.dev.Present(), "present")
}

// fitScale is the largest whole scale at which a bw x bh buffer fits the
// display, or the fractional scale when the display is smaller.
func fitScale(bw, bh, dw, dh int) float32 {
	s := min(dw/bw, dh/bh)
	if s >= 1 {
		return float32(s)
	}
	return min(float32(dw)/float32(bw), float32(dh)/float32(bh))
}

// presentTransform maps buffer pixels to display pixels. The buffer is scaled,
// zoomed and rotated about its centre, which lands on the display centre
// moved by the slide and shake offsets given in buffer pixels.
func presentTransform(bw, bh, dw, dh int, zoom, angle, offX, offY float32) mgl32.Mat3 {
	s := fitScale(bw, bh, dw, dh)
	cx := float32(dw)/2 + offX*s
	cy := float32(dh)/2 + offY*s
	return mgl32.Translate2D(cx, cy).
		Mul3(mgl32.HomogRotate2D(mgl32.DegToRad(angle))).
		Mul3(mgl32.Scale2D(s*zoom, s*zoom)).
		Mul3(mgl32.Translate2D(-float32(bw)/2, -float32(bh)/2))
}

// wipeRect covers intensity of the buffer, entering from the side the
// direction vector points away from.
func wipeRect(v image.Point, intensity float32, w, h int) image.Rectangle {
	if intensity <= 0 {
		return image.Rectangle{}
	}
	if v.X == 0 && v.Y == 0 {
		v.X = 1
	}
	if util.Abs(v.X) >= util.Abs(v.Y) {
		n := int(math.Round(float64(intensity) * float64(w)))
		if v.X > 0 {
			return image.Rect(0, 0, n, h)
		}
		return image.Rect(w-n, 0, w, h)
	}
	n := int(math.Round(float64(intensity) * float64(h)))
	if v.Y > 0 {
		return image.Rect(0, 0, w, n)
	}
	return image.Rect(0, h-n, w, h)
}

func (r *Renderer) compositeParams(s *EffectSnapshot, bw, bh, dw, dh int) gpu.CompositeParams {
	slide := s[Slide]
	offX := float32(slide.Vector.X) * slide.Intensity
	offY := float32(slide.Vector.Y) * slide.Intensity

	if mag := s[Shake].Intensity * float32(r.opts.ShakePixels); mag > 0 {
		m := int(math.Ceil(float64(mag)))
		seed := uint32(r.tick)
		offX += float32(noise.Range(0, 0, 0, seed, -m, m)) * mag / float32(m)
		offY += float32(noise.Range(1, 0, 0, seed, -m, m)) * mag / float32(m)
	}

	p := gpu.CompositeParams{
		Transform: presentTransform(bw, bh, dw, dh, s[Zoom].Intensity, s[Rotation].Intensity, offX, offY),
		Filter:    s[Shader].Filter,
		Shader:    s[Shader].Shader,

		Scanlines:           s[Scanlines].Intensity,
		Noise:               s[Noise].Intensity,
		NoiseSeed:           uint32(r.tick),
		Saturation:          s[Saturation].Intensity,
		Curvature:           s[Curvature].Intensity,
		ChromaticAberration: s[ChromaticAberration].Intensity * maxAberration,
		Negative:            s[Negative].Intensity,
		Pixelate:            1 + int(s[Pixelate].Intensity*(maxPixelate-1)),

		Fade:      s[ColorFade].Intensity,
		FadeColor: s[ColorFade].Color,
		Tint:      s[ColorTint].Intensity,
		TintColor: s[ColorTint].Color,

		Fizzle:      s[Fizzle].Intensity,
		FizzleColor: s[Fizzle].Color,
		FizzleSeed:  fizzleSeed,

		Wipe:      wipeRect(s[Wipe].Vector, s[Wipe].Intensity, bw, bh),
		WipeColor: s[Wipe].Color,
	}
	return p
}
