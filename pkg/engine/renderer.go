// Package engine is an immediate mode, pixel exact 2D renderer. Drawing calls
// are turned into triangles written to a batch buffer which is submitted to a
// gpu.Device whenever it fills up or draw state changes. Each frame is drawn
// into a chain of front buffers that are composited through post-processing
// effects by the presenter.
package engine

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"retrogfx/internal/logger"
	"retrogfx/internal/noise"
	"retrogfx/internal/util"
	"retrogfx/pkg/config"
	"retrogfx/pkg/gpu"
)

// Options configure a Renderer
type Options struct {
	DisplayWidth, DisplayHeight int

	BatchVertices   int
	PoolMinVertices int
	MaxFrontBuffers int

	ClearColor color.RGBA
	Filter     gpu.FilterMode

	EscapeChar   rune
	ShakeCadence int
	ShakePixels  int

	// StartupEffects are applied after every ResetEffects
	StartupEffects map[EffectKind]float32

	Logger *logger.Logger
}

// DefaultOptions returns options matching config.DefaultConfig
func DefaultOptions() Options {
	opts, _ := OptionsFromConfig(config.DefaultConfig(), nil)
	return opts
}

// OptionsFromConfig builds renderer options from a validated configuration
func OptionsFromConfig(cfg *config.Config, log *logger.Logger) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	clear, err := config.ParseColor(cfg.Renderer.ClearColor)
	if err != nil {
		return Options{}, err
	}
	filter := gpu.FilterPoint
	if cfg.Renderer.Filter == "linear" {
		filter = gpu.FilterLinear
	}

	startup := make(map[EffectKind]float32, len(cfg.Effects.Startup))
	for name, v := range cfg.Effects.Startup {
		kind, ok := ParseEffectKind(name)
		if !ok {
			return Options{}, errors.Errorf("unknown startup effect %q", name)
		}
		startup[kind] = float32(v)
	}

	return Options{
		DisplayWidth:    cfg.Display.Width,
		DisplayHeight:   cfg.Display.Height,
		BatchVertices:   cfg.Renderer.BatchVertices,
		PoolMinVertices: cfg.Renderer.PoolMinVertices,
		MaxFrontBuffers: cfg.Renderer.MaxFrontBuffers,
		ClearColor:      color.RGBA{clear[0], clear[1], clear[2], clear[3]},
		Filter:          filter,
		EscapeChar:      []rune(cfg.Text.EscapeChar)[0],
		ShakeCadence:    cfg.Text.ShakeCadence,
		ShakePixels:     cfg.Effects.ShakePixels,
		StartupEffects:  startup,
		Logger:          log,
	}, nil
}

// Renderer owns all draw state. It must only be used from one goroutine.
type Renderer struct {
	dev  gpu.Device
	log  *logger.Logger
	opts Options

	batch *batch
	pool  *meshPool
	stats Stats

	displayW, displayH int

	// draw state
	clip     clipRect
	camX     int
	camY     int
	tint     color.RGBA
	alpha    uint8
	texture  Texture
	material Material
	target   gpu.TextureID

	effects   effectStore
	chain     frontChain
	offscreen map[int]Texture
	onscreen  bool

	fonts      map[int]*Font
	systemFont *Font
	text       textLayout
	shake      noise.ShakeTable
	stream     Texture

	tick    uint64
	inFrame bool
}

// New creates a renderer drawing through dev. Mesh pool allocation failure is
// returned as an error.
func New(dev gpu.Device, opts Options) (*Renderer, error) {
	if opts.DisplayWidth <= 0 || opts.DisplayHeight <= 0 {
		return nil, errors.Errorf("invalid display size %dx%d", opts.DisplayWidth, opts.DisplayHeight)
	}
	if opts.BatchVertices == 0 {
		opts.BatchVertices = 16384
	}
	if opts.BatchVertices < minBatchVertices || opts.BatchVertices > maxBatchVertices {
		return nil, errors.Errorf("batch vertices %d out of range [%d,%d]", opts.BatchVertices, minBatchVertices, maxBatchVertices)
	}
	if opts.PoolMinVertices <= 0 {
		opts.PoolMinVertices = 64
	}
	opts.PoolMinVertices = util.Clamp(opts.PoolMinVertices, minBatchVertices, opts.BatchVertices)
	if opts.MaxFrontBuffers <= 0 {
		opts.MaxFrontBuffers = 8
	}
	if opts.EscapeChar == 0 {
		opts.EscapeChar = '@'
	}
	if opts.ShakeCadence <= 0 {
		opts.ShakeCadence = 2
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewDiscardLogger()
	}

	pool, err := newMeshPool(dev, opts.BatchVertices, opts.PoolMinVertices)
	if err != nil {
		return nil, errors.Wrap(err, "creating mesh pool")
	}

	r := &Renderer{
		dev:       dev,
		log:       opts.Logger,
		opts:      opts,
		batch:     newBatch(pool.largest().vCap),
		pool:      pool,
		displayW:  opts.DisplayWidth,
		displayH:  opts.DisplayHeight,
		tint:      white,
		alpha:     255,
		material:  DefaultMaterial,
		offscreen: make(map[int]Texture),
		fonts:     make(map[int]*Font),
		onscreen:  true,
	}
	r.clip = r.fullClip()
	r.effects.reset(r)

	if err := r.setupSystemFont(); err != nil {
		pool.release(dev)
		return nil, errors.Wrap(err, "creating system font")
	}
	r.shake.Roll(0)
	return r, nil
}

// Close releases every device resource the renderer created
func (r *Renderer) Close() {
	r.dev.SetTarget(gpu.Display)
	r.chain.release(r.dev)
	for _, t := range r.offscreen {
		r.dev.DeleteTexture(t.ID)
	}
	r.offscreen = map[int]Texture{}
	if r.stream.ID != 0 {
		r.dev.DeleteTexture(r.stream.ID)
		r.stream = Texture{}
	}
	if r.systemFont != nil {
		r.dev.DeleteTexture(r.systemFont.texture.ID)
	}
	r.pool.release(r.dev)
}

// Device returns the device the renderer draws through
func (r *Renderer) Device() gpu.Device {
	return r.dev
}

// DisplaySize returns the virtual display resolution
func (r *Renderer) DisplaySize() (int, int) {
	return r.displayW, r.displayH
}

// SetDisplaySize changes the virtual display resolution. Front buffers are
// recreated at the new size when the next frame begins.
func (r *Renderer) SetDisplaySize(w, h int) {
	if w <= 0 || h <= 0 {
		r.log.WarnOncef("display-size", "ignoring display size %dx%d", w, h)
		return
	}
	if w == r.displayW && h == r.displayH {
		return
	}
	r.flush(ReasonTargetChange)
	r.displayW, r.displayH = w, h
	if r.onscreen {
		r.setClip(r.fullClip())
	}
}

// Tick returns the tick passed to the current or last BeginFrame
func (r *Renderer) Tick() uint64 {
	return r.tick
}

// targetSize is the size of whatever is currently drawn into
func (r *Renderer) targetSize() (int, int) {
	if !r.onscreen {
		w, h := r.dev.TextureSize(r.target)
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return r.displayW, r.displayH
}

func (r *Renderer) fullClip() clipRect {
	w, h := r.targetSize()
	return clipRect{0, 0, w - 1, h - 1}
}

// SetCamera sets the offset subtracted from every destination coordinate.
// Camera offsets are baked into vertices and never flush.
func (r *Renderer) SetCamera(x, y int) {
	r.camX, r.camY = x, y
}

// Camera returns the camera offset
func (r *Renderer) Camera() (int, int) {
	return r.camX, r.camY
}

// SetClip restricts drawing to rect, given in target pixels. The batch is
// flushed only when the value changes.
func (r *Renderer) SetClip(rect Rect) {
	w, h := r.targetSize()
	rect = rect.Intersect(R(0, 0, w, h))
	if rect.Empty() {
		// an inverted clip culls every primitive
		r.setClip(clipRect{0, 0, -1, -1})
		return
	}
	r.setClip(clipRect{rect.X, rect.Y, rect.X + rect.W - 1, rect.Y + rect.H - 1})
}

// ResetClip restores the clip to the whole target
func (r *Renderer) ResetClip() {
	r.setClip(r.fullClip())
}

// Clip returns the clip rectangle
func (r *Renderer) Clip() Rect {
	return r.clip.rect()
}

func (r *Renderer) setClip(c clipRect) {
	if c == r.clip {
		return
	}
	r.flush(ReasonClipChange)
	r.clip = c
}

// SetTint sets the colour every primitive's colour is multiplied by
func (r *Renderer) SetTint(c color.RGBA) {
	c.A = 255
	if c == r.tint {
		return
	}
	r.flush(ReasonStateChange)
	r.tint = c
}

// Tint returns the tint colour
func (r *Renderer) Tint() color.RGBA {
	return r.tint
}

// SetAlpha sets the alpha every primitive's alpha is multiplied by
func (r *Renderer) SetAlpha(a uint8) {
	if a == r.alpha {
		return
	}
	r.flush(ReasonStateChange)
	r.alpha = a
}

// Alpha returns the global alpha
func (r *Renderer) Alpha() uint8 {
	return r.alpha
}

// SetTexture selects the texture textured primitives sample
func (r *Renderer) SetTexture(t Texture) {
	if t == r.texture {
		return
	}
	r.flush(ReasonStateChange)
	r.texture = t
}

// SetSpriteSheet selects a sprite sheet's texture
func (r *Renderer) SetSpriteSheet(s *SpriteSheet) {
	r.SetTexture(s.Texture)
}

// CurrentTexture returns the selected texture
func (r *Renderer) CurrentTexture() Texture {
	return r.texture
}

// NewTexture uploads an image and returns it as a Texture
func (r *Renderer) NewTexture(img *image.RGBA) (Texture, error) {
	id, err := r.dev.NewTexture(img)
	if err != nil {
		return Texture{}, errors.Wrap(err, "creating texture")
	}
	b := img.Bounds()
	return Texture{ID: id, Width: b.Dx(), Height: b.Dy()}, nil
}

// UpdateTexture replaces a texture's pixels. Glyph metrics of fonts using
// the texture are recomputed on their next use.
func (r *Renderer) UpdateTexture(t Texture, img *image.RGBA) (Texture, error) {
	if t.ID == r.texture.ID {
		r.flush(ReasonStateChange)
	}
	if err := r.dev.UpdateTexture(t.ID, img); err != nil {
		return t, errors.Wrap(err, "updating texture")
	}
	b := img.Bounds()
	updated := Texture{ID: t.ID, Width: b.Dx(), Height: b.Dy()}
	for _, f := range r.fonts {
		if f.texture.ID == t.ID {
			f.texture = updated
			f.invalidate()
		}
	}
	if r.texture.ID == t.ID {
		r.texture = updated
	}
	return updated, nil
}

// SetMaterial selects the shader and pass count of subsequent flushes
func (r *Renderer) SetMaterial(m Material) {
	if m.Passes <= 0 {
		m.Passes = 1
	}
	if m == r.material {
		return
	}
	r.flush(ReasonShaderChange)
	r.material = m
}

// SetShader selects a single pass shader
func (r *Renderer) SetShader(s gpu.ShaderID) {
	r.SetMaterial(Material{Shader: s, Passes: 1})
}

// CurrentMaterial returns the selected material
func (r *Renderer) CurrentMaterial() Material {
	return r.material
}

// NewShader registers a shader program with the device
func (r *Renderer) NewShader(src gpu.ShaderSource) (gpu.ShaderID, error) {
	id, err := r.dev.NewShader(src)
	return id, errors.Wrap(err, "creating shader")
}

// bindTarget switches the device target, flushing geometry drawn for the old one
func (r *Renderer) bindTarget(id gpu.TextureID) {
	if id == r.target {
		return
	}
	r.flush(ReasonTargetChange)
	r.target = id
	r.dev.SetTarget(id)
}

// colorOf applies tint and global alpha to c
func (r *Renderer) colorOf(c color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8(uint32(c.R) * uint32(r.tint.R) / 255),
		G: uint8(uint32(c.G) * uint32(r.tint.G) / 255),
		B: uint8(uint32(c.B) * uint32(r.tint.B) / 255),
		A: uint8(uint32(c.A) * uint32(r.alpha) / 255),
	}
}

// Clear fills the current target with c, ignoring clip, tint and alpha
func (r *Renderer) Clear(c color.RGBA) {
	r.flush(ReasonForced)
	r.dev.Clear(c)
}
