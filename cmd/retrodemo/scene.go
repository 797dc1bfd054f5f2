package main

import (
	"image"
	"image/color"
	"math"

	"retrogfx/pkg/engine"
)

const tile = 8

var (
	ink    = color.RGBA{255, 241, 232, 255}
	shadow = color.RGBA{29, 43, 83, 255}
	grass  = color.RGBA{0, 135, 81, 255}
	ember  = color.RGBA{255, 119, 168, 255}
	sky    = color.RGBA{41, 173, 255, 255}
	gold   = color.RGBA{255, 236, 39, 255}
)

// showcase cycles through these, a few seconds each at 60 ticks per second
var showcase = []struct {
	kind  engine.EffectKind
	value float32
}{
	{engine.Scanlines, 0.6},
	{engine.Curvature, 0.8},
	{engine.ChromaticAberration, 0.7},
	{engine.Noise, 0.3},
	{engine.Saturation, -1},
	{engine.Negative, 1},
	{engine.Pixelate, 0.2},
	{engine.Fizzle, 0.5},
	{engine.Rotation, 8},
	{engine.Zoom, 1.25},
	{engine.Shake, 0.5},
	{engine.Pinhole, 0.35},
}

const showcaseTicks = 180

// scene draws the demo frame
type scene struct {
	r     *engine.Renderer
	sheet *engine.SpriteSheet
	frame engine.NineSlice
	pick  int // showcase entries skipped by the user
}

// step moves the showcase by n entries
func (s *scene) step(n int) {
	s.pick += n
}

// atlas cells on the 6x2 grid
const (
	cellChecker = 6
	cellCoin    = 7
)

// frameCells maps the nine frame pieces to grid cells
var frameCells = [9]int{0, 1, 2, 3, 4, 5, 9, 10, 11}

// atlasImage builds the demo atlas: the nine-slice frame, a checker tile
// and a coin, all tile x tile.
func atlasImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 6*tile, 2*tile))
	cell := func(i int) (int, int) { return (i % 6) * tile, (i / 6) * tile }
	for piece, i := range frameCells {
		cx, cy := cell(i)
		for y := 0; y < tile; y++ {
			for x := 0; x < tile; x++ {
				img.SetRGBA(cx+x, cy+y, frameTexel(piece, x, y))
			}
		}
	}
	cx, cy := cell(cellChecker)
	kx, ky := cell(cellCoin)
	for y := 0; y < tile; y++ {
		for x := 0; x < tile; x++ {
			c := grass
			if (x/2+y/2)%2 == 0 {
				c = color.RGBA{0, 228, 54, 255}
			}
			img.SetRGBA(cx+x, cy+y, c)
			dx, dy := float64(x)-3.5, float64(y)-3.5
			if dx*dx+dy*dy < 12 {
				img.SetRGBA(kx+x, ky+y, gold)
			}
		}
	}
	return img
}

// frameTexel colours a frame piece: border pixels on its outer edges
func frameTexel(piece, x, y int) color.RGBA {
	col, row := piece%3, piece/3
	edge := (col == 0 && x < 2) || (col == 2 && x >= tile-2) || (row == 0 && y < 2) || (row == 2 && y >= tile-2)
	if edge {
		return gold
	}
	return color.RGBA{shadow.R, shadow.G, shadow.B, 220}
}

func newScene(r *engine.Renderer) (*scene, error) {
	tex, err := r.NewTexture(atlasImage())
	if err != nil {
		return nil, err
	}

	sheet := engine.NewSpriteSheet(tex, tile, tile)
	var pieces [9]engine.Sprite
	for i, c := range frameCells {
		pieces[i], _ = sheet.Sprite(c)
	}
	return &scene{
		r:     r,
		sheet: sheet,
		frame: engine.NineSlice{
			TopLeft: pieces[0], Top: pieces[1], TopRight: pieces[2],
			Left: pieces[3], Middle: pieces[4], Right: pieces[5],
			BottomLeft: pieces[6], Bottom: pieces[7], BottomRight: pieces[8],
		},
	}, nil
}

// draw renders one frame for tick
func (s *scene) draw(tick uint64) error {
	r := s.r
	if err := r.BeginFrame(tick); err != nil {
		return err
	}
	w, h := r.DisplaySize()
	r.ResetEffects()

	// world layer, scrolled by the camera
	r.DrawRectFill(engine.R(0, 0, w, h/2), sky)
	r.SetCamera(int(tick/2)%tile, 0)
	for x := -tile; x < w+tile; x += tile {
		r.DrawSprite(s.sheet, cellChecker, x, h-2*tile, 0)
		r.DrawSprite(s.sheet, cellChecker, x, h-tile, 0)
	}
	r.SetCamera(0, 0)

	t := float64(tick) / 30
	cx, cy := w/2, h/2
	r.DrawCircleFill(image.Pt(cx, cy-10), 18, ember)
	r.DrawEllipse(image.Pt(cx, cy-10), 30, 12, ink)
	r.DrawLineThick(20, h-30, 20+int(40*math.Cos(t)), h-30-int(20*math.Sin(t)), 3, gold)
	r.DrawTriangleFill(image.Pt(w-60, h-24), image.Pt(w-20, h-24), image.Pt(w-40, h-60), shadow)
	r.DrawRectFillRotated(engine.R(40, 30, 16, 16), image.Pt(8, 8), float32(tick%360), ink)
	r.DrawSprite(s.sheet, cellCoin, w-30, 20+int(4*math.Sin(t*2)), 0)

	// bake the showcased effect into the world before the UI goes on top
	i := (int(tick/showcaseTicks) + s.pick) % len(showcase)
	if i < 0 {
		i += len(showcase)
	}
	fx := showcase[i]
	if fx.kind == engine.Pinhole {
		r.SetEffectColor(fx.kind, fx.value, shadow)
	} else {
		r.SetEffect(fx.kind, fx.value)
	}
	if err := r.ApplyEffectsNow(); err != nil {
		return err
	}
	r.ResetEffects()

	box := engine.R(8, 8, w/2, 40)
	r.SetSpriteSheet(s.sheet)
	r.DrawNineSlice(box, s.frame)
	inner := engine.R(box.X+4, box.Y+4, box.W-8, box.H-8)
	r.PrintString(engine.SystemFont, inner, ink, engine.OverflowWrap,
		"@ff77a8retro@- renderer @s2shaky@s0 @w353wavy@w000 text")
	r.PrintString(engine.SystemFont, engine.R(0, h-13, w-2, 13), ink, engine.AlignRight,
		fx.kind.String())

	if err := r.EndFrame(); err != nil {
		return err
	}
	return r.Present()
}
