package engine

import (
	"image"
	"image/color"
	"strings"

	"retrogfx/internal/util"
	"retrogfx/pkg/gpu"
)

// EffectKind selects one post-processing effect
type EffectKind int

const (
	Scanlines EffectKind = iota
	Noise
	Saturation
	Curvature
	Slide
	Wipe
	Shake
	Zoom
	Rotation
	ColorFade
	ColorTint
	Negative
	Pixelate
	Pinhole
	InvertedPinhole
	Fizzle
	ChromaticAberration
	Shader
	effectCount
)

var effectNames = [effectCount]string{
	"scanlines",
	"noise",
	"saturation",
	"curvature",
	"slide",
	"wipe",
	"shake",
	"zoom",
	"rotation",
	"color_fade",
	"color_tint",
	"negative",
	"pixelate",
	"pinhole",
	"inverted_pinhole",
	"fizzle",
	"chromatic_aberration",
	"shader",
}

func (k EffectKind) String() string {
	if k < 0 || k >= effectCount {
		return "unknown"
	}
	return effectNames[k]
}

// ParseEffectKind looks an effect up by name. Dashes and case are ignored.
func ParseEffectKind(name string) (EffectKind, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	for k, n := range effectNames {
		if n == name {
			return EffectKind(k), true
		}
	}
	return 0, false
}

// fizzleBump scales fizzle intensity so that 1 covers every pixel
const fizzleBump = 1.01

const minZoom = 0.01

// EffectParams is the state of one effect
type EffectParams struct {
	Intensity float32
	Vector    image.Point
	Color     color.RGBA
	Shader    gpu.ShaderID
	Filter    gpu.FilterMode
}

// EffectSnapshot is the value of every effect at one moment
type EffectSnapshot [effectCount]EffectParams

// Get returns the parameters of kind
func (s *EffectSnapshot) Get(kind EffectKind) EffectParams {
	if kind < 0 || kind >= effectCount {
		return EffectParams{}
	}
	return s[kind]
}

type effectStore struct {
	params EffectSnapshot
}

func (e *effectStore) reset(r *Renderer) {
	e.params = EffectSnapshot{}
	e.params[Zoom].Intensity = 1
	e.params[Shader].Filter = r.opts.Filter
	centre := image.Pt(r.displayW/2, r.displayH/2)
	e.params[Pinhole].Vector = centre
	e.params[InvertedPinhole].Vector = centre
	for kind, v := range r.opts.StartupEffects {
		e.setIntensity(kind, v)
	}
}

func clampIntensity(kind EffectKind, v float32) float32 {
	switch kind {
	case Saturation:
		return util.Clamp(v, -1, 1)
	case Zoom:
		return max(v, minZoom)
	case Rotation:
		return util.WrapAngle(v)
	case Fizzle:
		return util.Clamp(v, 0, 1) * fizzleBump
	case Slide, Shader:
		return v
	}
	return util.Clamp(v, 0, 1)
}

func (e *effectStore) setIntensity(kind EffectKind, v float32) {
	e.params[kind].Intensity = clampIntensity(kind, v)
}

func validEffect(kind EffectKind) bool {
	return kind >= 0 && kind < effectCount
}

// SetEffect sets an effect's intensity, keeping its vector and colour
func (r *Renderer) SetEffect(kind EffectKind, intensity float32) {
	if !validEffect(kind) {
		return
	}
	r.effects.setIntensity(kind, intensity)
}

// SetEffectVector sets intensity and vector. The vector is a position for
// the pinholes, an offset in display pixels for Slide and a direction for Wipe.
func (r *Renderer) SetEffectVector(kind EffectKind, intensity float32, v image.Point) {
	if !validEffect(kind) {
		return
	}
	r.effects.setIntensity(kind, intensity)
	r.effects.params[kind].Vector = v
}

// SetEffectColor sets intensity and colour, used by the fades, tints,
// pinholes, wipe and fizzle.
func (r *Renderer) SetEffectColor(kind EffectKind, intensity float32, c color.RGBA) {
	if !validEffect(kind) {
		return
	}
	r.effects.setIntensity(kind, intensity)
	r.effects.params[kind].Color = c
}

// SetEffectShader composites subsequent buffers through a custom shader.
// DefaultShader turns it off.
func (r *Renderer) SetEffectShader(s gpu.ShaderID) {
	r.effects.params[Shader].Shader = s
}

// SetEffectFilter selects how buffers are sampled when scaled to the display
func (r *Renderer) SetEffectFilter(f gpu.FilterMode) {
	r.effects.params[Shader].Filter = f
}

// Effect returns the current parameters of kind
func (r *Renderer) Effect(kind EffectKind) EffectParams {
	return r.effects.params.Get(kind)
}

// ResetEffects restores every effect to its default, then applies the
// configured start-up effects.
func (r *Renderer) ResetEffects() {
	r.effects.reset(r)
}
