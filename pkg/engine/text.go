package engine

import (
	"image/color"
	"math"

	"retrogfx/internal/util"
)

// Text is read-only indexed access to a character sequence
type Text interface {
	Len() int
	At(i int) rune
}

// Runes adapts a rune slice
type Runes []rune

func (t Runes) Len() int      { return len(t) }
func (t Runes) At(i int) rune { return t[i] }

// ASCII adapts a string whose bytes are each one character
type ASCII string

func (t ASCII) Len() int      { return len(t) }
func (t ASCII) At(i int) rune { return rune(t[i]) }

// Str adapts a UTF-8 string
func Str(s string) Text {
	return Runes([]rune(s))
}

// TextFlags control alignment, overflow and escape handling of Print
type TextFlags uint16

const (
	AlignHCenter TextFlags = 1 << iota
	AlignRight
	AlignVCenter
	AlignBottom
	OverflowWrap
	NoEscapeCodes
	MeasureOnly
)

// defaults, spelled out for readability at call sites
const (
	AlignLeft    TextFlags = 0
	AlignTop     TextFlags = 0
	OverflowClip TextFlags = 0
)

type wave struct {
	amp, period, speed int
}

func (w wave) offset(tick uint64, i int) int {
	if w.amp == 0 {
		return 0
	}
	// low amplitudes move faster so they don't look sluggish
	speed := float64(w.speed+1) * 0.2 / float64(w.amp+1)
	phase := 2 * math.Pi / float64((w.period+1)*2)
	return int(math.Round(float64(w.amp) * math.Sin(float64(tick)*speed+float64(i)*phase)))
}

type escKind int

const (
	escLiteral escKind = iota
	escColorReset
	escColor
	escFont
	escFontRevert
	escShake
	escWave
)

type escape struct {
	kind escKind
	n    int
	wave wave
	c    color.RGBA
}

func digits(t Text, i, n int) ([3]int, bool) {
	var d [3]int
	if i+n > t.Len() {
		return d, false
	}
	for k := 0; k < n; k++ {
		ch := t.At(i + k)
		if ch < '0' || ch > '9' {
			return d, false
		}
		d[k] = int(ch - '0')
	}
	return d, true
}

func hexVal(ch rune) (uint8, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return uint8(ch - '0'), true
	case ch >= 'a' && ch <= 'f':
		return uint8(ch-'a') + 10, true
	case ch >= 'A' && ch <= 'F':
		return uint8(ch-'A') + 10, true
	}
	return 0, false
}

// parseEscape decodes the code starting at t[i], just past an escape
// character. It returns how many characters the code used, or false when the
// code is malformed.
func parseEscape(t Text, i int, esc rune) (escape, int, bool) {
	if i >= t.Len() {
		return escape{}, 0, false
	}
	switch t.At(i) {
	case esc:
		return escape{kind: escLiteral}, 1, true
	case '-':
		return escape{kind: escColorReset}, 1, true
	case 'g':
		if i+1 < t.Len() && t.At(i+1) == '-' {
			return escape{kind: escFontRevert}, 2, true
		}
		d, ok := digits(t, i+1, 2)
		if !ok {
			return escape{}, 0, false
		}
		return escape{kind: escFont, n: d[0]*10 + d[1]}, 3, true
	case 's':
		d, ok := digits(t, i+1, 1)
		if !ok {
			return escape{}, 0, false
		}
		return escape{kind: escShake, n: d[0]}, 2, true
	case 'w':
		d, ok := digits(t, i+1, 3)
		if !ok {
			return escape{}, 0, false
		}
		return escape{kind: escWave, wave: wave{amp: d[0], period: d[1], speed: d[2]}}, 4, true
	}

	if i+6 > t.Len() {
		return escape{}, 0, false
	}
	var v [6]uint8
	for k := range v {
		h, ok := hexVal(t.At(i + k))
		if !ok {
			return escape{}, 0, false
		}
		v[k] = h
	}
	c := color.RGBA{v[0]<<4 | v[1], v[2]<<4 | v[3], v[4]<<4 | v[5], 255}
	return escape{kind: escColor, c: c}, 6, true
}

type textItem struct {
	x, w    int
	g       glyph
	font    *Font
	c       color.RGBA
	shake   int
	wave    wave
	visible bool
	space   bool
}

type textLine struct {
	start, end int
	width      int
}

type textLayout struct {
	items []textItem
	lines []textLine
}

type textCursor struct {
	lay       *textLayout
	wrap      bool
	limit     int
	lineStart int
	pen       int
}

func (tc *textCursor) breakLine(end int) {
	tc.lay.lines = append(tc.lay.lines, textLine{start: tc.lineStart, end: end})
	tc.lineStart = end
	tc.pen = 0
}

// lastSpace returns the index of the last break opportunity on the line
func (tc *textCursor) lastSpace() int {
	for k := len(tc.lay.items) - 1; k >= tc.lineStart; k-- {
		if tc.lay.items[k].space {
			return k
		}
	}
	return -1
}

func (tc *textCursor) add(it textItem, advance int) {
	for tc.wrap && tc.pen > 0 && tc.pen+it.w > tc.limit {
		if it.space {
			// a space that overflows ends the line and is dropped
			tc.breakLine(len(tc.lay.items))
			return
		}
		k := tc.lastSpace()
		if k < 0 {
			tc.breakLine(len(tc.lay.items))
			break
		}
		tc.lay.lines = append(tc.lay.lines, textLine{start: tc.lineStart, end: k})
		tc.lineStart = k + 1
		shift := tc.pen
		if tc.lineStart < len(tc.lay.items) {
			shift = tc.lay.items[tc.lineStart].x
		}
		for j := tc.lineStart; j < len(tc.lay.items); j++ {
			tc.lay.items[j].x -= shift
		}
		tc.pen -= shift
	}
	it.x = tc.pen
	tc.lay.items = append(tc.lay.items, it)
	tc.pen += advance
}

// layoutText breaks t into positioned glyphs and lines. Escape codes are
// resolved into per-glyph colour, font and animation.
func (r *Renderer) layoutText(base *Font, rect Rect, c color.RGBA, flags TextFlags, t Text) *textLayout {
	lay := &r.text
	lay.items = lay.items[:0]
	lay.lines = lay.lines[:0]

	tc := textCursor{lay: lay, wrap: flags&OverflowWrap != 0 && rect.W > 0, limit: rect.W}
	escapes := flags&NoEscapeCodes == 0
	esc := r.opts.EscapeChar

	cur := base
	col := c
	shake := 0
	var wv wave

	blank := func(f *Font, space bool) {
		tc.add(textItem{w: f.spaceWidth, space: space}, f.spaceAdvance())
	}

	for i := 0; i < t.Len(); i++ {
		ch := t.At(i)
		if escapes && ch == esc {
			e, n, ok := parseEscape(t, i+1, esc)
			if !ok {
				blank(cur, false)
				continue
			}
			i += n
			switch e.kind {
			case escColorReset:
				col = c
				continue
			case escColor:
				col = color.RGBA{e.c.R, e.c.G, e.c.B, c.A}
				continue
			case escFont:
				if f := r.fontReady(e.n); f != nil {
					if f.lineHeight == base.lineHeight {
						cur = f
					} else {
						r.log.WarnOncef("font-switch-height", "font %d is %d pixels high, text is %d; switch ignored", e.n, f.lineHeight, base.lineHeight)
					}
				}
				continue
			case escFontRevert:
				cur = base
				continue
			case escShake:
				shake = e.n
				continue
			case escWave:
				wv = e.wave
				continue
			}
			// escLiteral draws the escape character itself
		}

		switch {
		case ch == '\n':
			tc.breakLine(len(lay.items))
			continue
		case ch == ' ' || ch == '\t':
			blank(cur, true)
			continue
		}
		g := cur.lookup(ch)
		if !g.ok {
			blank(cur, false)
			continue
		}
		w := g.src.W
		if cur.opts.Monospace {
			w = g.advance - cur.opts.Spacing
		}
		tc.add(textItem{w: w, g: g, font: cur, c: col, shake: shake, wave: wv, visible: true}, g.advance)
	}
	lay.lines = append(lay.lines, textLine{start: tc.lineStart, end: len(lay.items)})

	for li := range lay.lines {
		ln := &lay.lines[li]
		for _, it := range lay.items[ln.start:ln.end] {
			ln.width = max(ln.width, it.x+it.w)
		}
	}
	return lay
}

func (lay *textLayout) size(f *Font) (int, int) {
	w := 0
	for _, ln := range lay.lines {
		w = max(w, ln.width)
	}
	n := len(lay.lines)
	return w, n*f.lineHeight + (n-1)*f.opts.LineSpacing
}

// Print draws text with font inside rect and returns the size of the laid
// out text. The escape character introduces inline codes unless
// NoEscapeCodes is set:
//
//	@-       reset to the base colour
//	@RRGGBB  colour, tinted like the base colour
//	@gNN     switch to font NN (same line height only), @g- reverts
//	@sN      shake glyphs by up to N pixels
//	@wAPS    vertical wave with amplitude A, period P and speed S
//	@@       a literal escape character
//
// Malformed codes draw a blank. With MeasureOnly nothing is drawn.
func (r *Renderer) Print(font int, rect Rect, c color.RGBA, flags TextFlags, t Text) (int, int) {
	base := r.fontReady(font)
	if base == nil || t == nil || t.Len() == 0 {
		return 0, 0
	}
	lay := r.layoutText(base, rect, c, flags, t)
	tw, th := lay.size(base)
	if flags&MeasureOnly != 0 {
		return tw, th
	}

	y := rect.Y
	switch {
	case flags&AlignBottom != 0:
		y = rect.Y + rect.H - th
	case flags&AlignVCenter != 0:
		y = rect.Y + (rect.H-th)/2
	}

	prevClip := r.clip
	// a rect without area does not clip
	if rect.W > 0 && rect.H > 0 && (tw > rect.W || th > rect.H) {
		cl := rect.Offset(-r.camX, -r.camY).Intersect(prevClip.rect())
		r.SetClip(cl)
	}
	prevTex := r.texture

	lh := base.lineHeight + base.opts.LineSpacing
	idx := 0
	for _, ln := range lay.lines {
		x := rect.X
		switch {
		case flags&AlignRight != 0:
			x = rect.X + rect.W - ln.width
		case flags&AlignHCenter != 0:
			off := (rect.W - ln.width) / 2
			if base.opts.Monospace {
				adv := base.cellW + base.opts.Spacing
				off = util.FloorDiv(off, adv) * adv
			}
			x = rect.X + off
		}
		for _, it := range lay.items[ln.start:ln.end] {
			if !it.visible {
				continue
			}
			gx, gy := x+it.x+it.g.offX, y+it.g.offY
			if it.shake > 0 {
				dx, dy := r.shake.At(idx, it.shake)
				gx, gy = gx+dx, gy+dy
			}
			gy += it.wave.offset(r.tick, idx)
			idx++

			r.SetTexture(it.font.texture)
			r.texturedQuad(it.g.src, R(gx, gy, it.g.src.W, it.g.src.H), 0, it.c, nil, 0)
		}
		y += lh
	}

	r.SetTexture(prevTex)
	r.setClip(prevClip)
	return tw, th
}

// PrintString is Print for a UTF-8 string
func (r *Renderer) PrintString(font int, rect Rect, c color.RGBA, flags TextFlags, s string) (int, int) {
	return r.Print(font, rect, c, flags, Str(s))
}

// Measure returns the size Print would lay t out at without drawing it
func (r *Renderer) Measure(font int, rect Rect, flags TextFlags, t Text) (int, int) {
	return r.Print(font, rect, white, flags|MeasureOnly, t)
}
