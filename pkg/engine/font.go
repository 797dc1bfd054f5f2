package engine

import (
	"image"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SystemFont is the font index reserved for the built-in 7x13 font
const SystemFont = 99

// FontOptions tune glyph spacing
type FontOptions struct {
	// Monospace fonts skip the metrics scan and advance by the cell width
	Monospace bool
	// Spacing is added after every glyph
	Spacing int
	// LineSpacing is added between lines
	LineSpacing int
	// SpaceWidth is the advance of spaces and unmapped characters. Zero
	// picks the cell width for monospace fonts and a third of it otherwise.
	SpaceWidth int
}

type glyph struct {
	src     Rect // trimmed source rect in the atlas
	offX    int
	offY    int // trimmed rows above src inside the line
	advance int
	ok      bool
}

// Font is a bitmap font cut from an atlas texture, either as a grid of
// equally sized cells or as a set of packed sprites of equal height.
type Font struct {
	texture Texture
	opts    FontOptions

	cellW, cellH int
	first        rune
	packed       map[rune]Sprite

	lineHeight int
	spaceWidth int

	ascii        [256]glyph
	extra        map[rune]glyph
	metricsReady bool
}

// LineHeight is the height of one line of text without line spacing
func (f *Font) LineHeight() int {
	return f.lineHeight
}

// Monospace reports whether every glyph has the same advance
func (f *Font) Monospace() bool {
	return f.opts.Monospace
}

func (f *Font) invalidate() {
	f.metricsReady = false
	f.ascii = [256]glyph{}
	f.extra = nil
}

func (f *Font) lookup(r rune) glyph {
	if r >= 0 && r < 256 {
		return f.ascii[r]
	}
	return f.extra[r]
}

func (f *Font) set(r rune, g glyph) {
	if r >= 0 && r < 256 {
		f.ascii[r] = g
		return
	}
	if f.extra == nil {
		f.extra = make(map[rune]glyph)
	}
	f.extra[r] = g
}

func (f *Font) spaceAdvance() int {
	return f.spaceWidth + f.opts.Spacing
}

// frames lists every glyph with its untrimmed frame in the atlas
func (f *Font) frames(visit func(r rune, s Sprite)) {
	if f.packed != nil {
		for r, s := range f.packed {
			visit(r, s)
		}
		return
	}
	cols := f.texture.Width / f.cellW
	rows := f.texture.Height / f.cellH
	for i := 0; i < cols*rows; i++ {
		src := R((i%cols)*f.cellW, (i/cols)*f.cellH, f.cellW, f.cellH)
		visit(f.first+rune(i), SpriteFromRect(src))
	}
}

// buildMetrics fills the glyph table. Proportional fonts are measured from
// atlas pixels: each glyph is trimmed to its opaque bounding box. atlas may
// be nil for monospace fonts.
func (f *Font) buildMetrics(atlas *image.RGBA) {
	f.ascii = [256]glyph{}
	f.extra = nil
	f.frames(func(r rune, s Sprite) {
		if r == ' ' {
			return
		}
		if f.opts.Monospace || atlas == nil {
			f.set(r, glyph{
				src:     s.Src,
				offX:    s.OffsetX,
				offY:    s.OffsetY,
				advance: s.W + f.opts.Spacing,
				ok:      true,
			})
			return
		}
		ink, ok := opaqueBounds(atlas, s.Src)
		if !ok {
			return
		}
		f.set(r, glyph{
			src:     ink,
			offY:    s.OffsetY + ink.Y - s.Src.Y,
			advance: ink.W + f.opts.Spacing,
			ok:      true,
		})
	})
	f.metricsReady = true
}

// opaqueBounds returns the tightest box around pixels of src with alpha
func opaqueBounds(img *image.RGBA, src Rect) (Rect, bool) {
	area := src.Image().Intersect(img.Bounds())
	x0, y0, x1, y1 := area.Max.X, area.Max.Y, area.Min.X-1, area.Min.Y-1
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if img.Pix[img.PixOffset(x, y)+3] == 0 {
				continue
			}
			x0, x1 = min(x0, x), max(x1, x)
			y0, y1 = min(y0, y), max(y1, y)
		}
	}
	if x1 < x0 {
		return Rect{}, false
	}
	return R(x0, y0, x1-x0+1, y1-y0+1), true
}

func newFont(tex Texture, cellW, cellH int, opts FontOptions) *Font {
	f := &Font{texture: tex, opts: opts, cellW: cellW, cellH: cellH, lineHeight: cellH}
	f.spaceWidth = opts.SpaceWidth
	if f.spaceWidth <= 0 {
		f.spaceWidth = cellW
		if !opts.Monospace {
			f.spaceWidth = max(1, cellW/3)
		}
	}
	return f
}

// FontSetupGrid registers font index as a grid of cellW x cellH cells over
// tex, read left to right and top to bottom starting at rune first.
func (r *Renderer) FontSetupGrid(index int, tex Texture, cellW, cellH int, first rune, opts FontOptions) error {
	if index == SystemFont {
		return errors.Errorf("font index %d is reserved for the system font", SystemFont)
	}
	if cellW <= 0 || cellH <= 0 || tex.Width < cellW || tex.Height < cellH {
		return errors.Errorf("font %d: %dx%d cells do not fit a %dx%d texture", index, cellW, cellH, tex.Width, tex.Height)
	}
	f := newFont(tex, cellW, cellH, opts)
	f.first = first
	r.fonts[index] = f
	return nil
}

// FontSetupPacked registers font index from packed glyph sprites. All
// glyph frames must have the same height.
func (r *Renderer) FontSetupPacked(index int, tex Texture, glyphs map[rune]Sprite, opts FontOptions) error {
	if index == SystemFont {
		return errors.Errorf("font index %d is reserved for the system font", SystemFont)
	}
	if len(glyphs) == 0 {
		return errors.Errorf("font %d has no glyphs", index)
	}
	h, w := -1, 0
	for ch, s := range glyphs {
		if h >= 0 && s.H != h {
			r.log.ErrorOncef("font-heights", "font %d: glyph %q is %d pixels high, expected %d", index, ch, s.H, h)
			return errors.Errorf("font %d: inconsistent glyph heights %d and %d", index, h, s.H)
		}
		h = s.H
		w = max(w, s.W)
	}
	f := newFont(tex, w, h, opts)
	f.packed = make(map[rune]Sprite, len(glyphs))
	for ch, s := range glyphs {
		f.packed[ch] = s
	}
	r.fonts[index] = f
	return nil
}

// Font returns the font registered at index
func (r *Renderer) Font(index int) (*Font, bool) {
	if index == SystemFont {
		return r.systemFont, r.systemFont != nil
	}
	f, ok := r.fonts[index]
	return f, ok
}

// fontReady returns font index with its metrics built
func (r *Renderer) fontReady(index int) *Font {
	f, ok := r.Font(index)
	if !ok {
		r.log.WarnOncef("font-missing", "font %d is not set up", index)
		return nil
	}
	if f.metricsReady {
		return f
	}
	if f.opts.Monospace {
		f.buildMetrics(nil)
		return f
	}
	if r.target == f.texture.ID {
		r.flush(ReasonForced)
	}
	atlas, err := r.dev.ReadPixels(f.texture.ID)
	if err != nil {
		r.log.ErrorOncef("font-readback", "reading font %d atlas: %v; using cell metrics", index, err)
	}
	f.buildMetrics(atlas)
	return f
}

// setupSystemFont renders basicfont's 7x13 face into a 16 column atlas
func (r *Renderer) setupSystemFont() error {
	face := basicfont.Face7x13
	const first, last, cols = 32, 126, 16
	cw, ch := face.Advance, face.Height
	rows := (last - first + cols) / cols

	img := image.NewRGBA(image.Rect(0, 0, cols*cw, rows*ch))
	d := &font.Drawer{Dst: img, Src: image.White, Face: face}
	for c := first; c <= last; c++ {
		i := c - first
		d.Dot = fixed.P((i%cols)*cw, (i/cols)*ch+face.Ascent)
		d.DrawString(string(rune(c)))
	}

	tex, err := r.NewTexture(img)
	if err != nil {
		return err
	}
	f := newFont(tex, cw, ch, FontOptions{Monospace: true})
	f.first = first
	f.buildMetrics(nil)
	r.systemFont = f
	return nil
}
