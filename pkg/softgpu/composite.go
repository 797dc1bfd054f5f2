package softgpu

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"retrogfx/internal/noise"
	"retrogfx/internal/util"
	"retrogfx/pkg/gpu"
)

// Composite applies the source-space effects to a copy of src, transforms it
// onto the display and applies the display-space effects on the covered area.
func (d *Device) Composite(src gpu.TextureID, p gpu.CompositeParams) error {
	img := d.textures[src]
	if img == nil {
		return errors.Errorf("unknown composite source %d", src)
	}
	work := d.sourcePass(img, p)

	layer := image.NewRGBA(d.display.Bounds())
	var interp xdraw.Interpolator = xdraw.NearestNeighbor
	if p.Filter == gpu.FilterLinear {
		interp = xdraw.BiLinear
	}
	m := p.Transform
	s2d := f64.Aff3{
		float64(m[0]), float64(m[3]), float64(m[6]),
		float64(m[1]), float64(m[4]), float64(m[7]),
	}
	interp.Transform(layer, s2d, work, work.Bounds(), xdraw.Src, nil)

	d.displayPass(layer, p)
	draw.Draw(d.display, d.display.Bounds(), layer, image.Point{}, draw.Over)
	return nil
}

func (d *Device) sourcePass(img *image.RGBA, p gpu.CompositeParams) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(b)

	var shade func(color.RGBA, int, int, int) color.RGBA
	if s, ok := d.shaders[p.Shader]; ok {
		shade = s.Pixel
	}
	block := p.Pixelate
	if block < 1 {
		block = 1
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, sy := float64(x)+0.5, float64(y)+0.5
			if block > 1 {
				sx = float64((x/block)*block) + 0.5
				sy = float64((y/block)*block) + 0.5
			}
			if p.Curvature > 0 {
				var inside bool
				sx, sy, inside = barrel(sx, sy, float64(w), float64(h), float64(p.Curvature))
				if !inside {
					continue
				}
			}
			c := fetch(img, sx, sy)
			if p.ChromaticAberration > 0 {
				shift := float64(p.ChromaticAberration)
				c.R = fetch(img, sx+shift, sy).R
				c.B = fetch(img, sx-shift, sy).B
			}
			c = colorPass(c, p)
			if p.Fizzle > 0 && noise.Unit(x, y, p.FizzleSeed) < float64(p.Fizzle) {
				c = p.FizzleColor
			}
			if image.Pt(x, y).In(p.Wipe) {
				c = p.WipeColor
			}
			if shade != nil {
				c = shade(c, x, y, 0)
			}
			i := out.PixOffset(x, y)
			pc := premultiply(c)
			out.Pix[i+0], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = pc.R, pc.G, pc.B, pc.A
		}
	}
	return out
}

// colorPass runs the per-pixel colour effects on a straight-alpha colour
func colorPass(c color.RGBA, p gpu.CompositeParams) color.RGBA {
	if c.A == 0 {
		return c
	}
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	if p.Saturation != 0 {
		gray := 0.299*r + 0.587*g + 0.114*b
		k := 1 + float64(p.Saturation)
		r = gray + (r-gray)*k
		g = gray + (g-gray)*k
		b = gray + (b-gray)*k
	}
	if p.Negative > 0 {
		n := float64(p.Negative)
		r = util.Lerp(r, 255-r, n)
		g = util.Lerp(g, 255-g, n)
		b = util.Lerp(b, 255-b, n)
	}
	if p.Tint > 0 {
		t := float64(p.Tint)
		r = util.Lerp(r, r*float64(p.TintColor.R)/255, t)
		g = util.Lerp(g, g*float64(p.TintColor.G)/255, t)
		b = util.Lerp(b, b*float64(p.TintColor.B)/255, t)
	}
	if p.Fade > 0 {
		f := float64(p.Fade)
		r = util.Lerp(r, float64(p.FadeColor.R), f)
		g = util.Lerp(g, float64(p.FadeColor.G), f)
		b = util.Lerp(b, float64(p.FadeColor.B), f)
	}
	return color.RGBA{util.ClampByte(r), util.ClampByte(g), util.ClampByte(b), c.A}
}

// displayPass darkens scanlines and adds noise on pixels the layer covers
func (d *Device) displayPass(layer *image.RGBA, p gpu.CompositeParams) {
	if p.Scanlines <= 0 && p.Noise <= 0 {
		return
	}
	// rows per source pixel, from the transform's vertical scale
	scale := int(math.Round(math.Hypot(float64(p.Transform[3]), float64(p.Transform[4]))))
	if scale < 1 {
		scale = 1
	}
	b := layer.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		dark := 1.0
		if p.Scanlines > 0 {
			row := y - int(p.Transform[7])
			if scale == 1 && row%2 == 1 || scale > 1 && (row%scale+scale)%scale == scale-1 {
				dark = 1 - 0.5*float64(p.Scanlines)
			}
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			i := layer.PixOffset(x, y)
			px := layer.Pix[i : i+4 : i+4]
			if px[3] == 0 {
				continue
			}
			n := 0.0
			if p.Noise > 0 {
				n = (noise.Unit(x, y, p.NoiseSeed) - 0.5) * 255 * float64(p.Noise)
			}
			for k := 0; k < 3; k++ {
				v := float64(px[k])*dark + n*float64(px[3])/255
				px[k] = util.ClampByte(math.Min(v, float64(px[3])))
			}
		}
	}
}

// barrel maps a pixel position through a curved-screen distortion. The second
// result is false when the position falls off the curved screen.
func barrel(x, y, w, h, k float64) (float64, float64, bool) {
	nx := x/w*2 - 1
	ny := y/h*2 - 1
	r2 := nx*nx + ny*ny
	f := 1 + k*0.25*r2
	nx *= f
	ny *= f
	if nx < -1 || nx > 1 || ny < -1 || ny > 1 {
		return 0, 0, false
	}
	return (nx + 1) * 0.5 * w, (ny + 1) * 0.5 * h, true
}

// fetch point-samples a premultiplied image and returns straight alpha
func fetch(img *image.RGBA, x, y float64) color.RGBA {
	px, py := int(math.Floor(x)), int(math.Floor(y))
	if !image.Pt(px, py).In(img.Bounds()) {
		return color.RGBA{}
	}
	i := img.PixOffset(px, py)
	return unpremultiply(color.RGBA{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]})
}
