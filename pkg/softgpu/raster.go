package softgpu

import (
	"image"
	"image/color"
	"math"

	"retrogfx/pkg/gpu"
)

type rasterizer struct {
	dst   *image.RGBA
	tex   *image.RGBA
	clip  image.Rectangle
	shade func(color.RGBA, int, int, int) color.RGBA
	pass  int
}

// edge evaluates which side of a->b the point p lies on. Positive is inside for
// triangles with positive area in y-down pixel space.
func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// ownsTie reports whether an edge keeps pixel centres lying exactly on it
// (top-left rule for clockwise-on-screen triangles).
func ownsTie(ax, ay, bx, by float64) bool {
	dy := by - ay
	return dy < 0 || (dy == 0 && bx > ax)
}

func (r *rasterizer) triangle(v0, v1, v2 *gpu.Vertex) {
	x0, y0 := float64(v0.X), float64(v0.Y)
	x1, y1 := float64(v1.X), float64(v1.Y)
	x2, y2 := float64(v2.X), float64(v2.Y)

	area := edge(x0, y0, x1, y1, x2, y2)
	if area <= 0 {
		// back facing or degenerate
		return
	}

	minX := int(math.Floor(math.Min(x0, math.Min(x1, x2))))
	maxX := int(math.Ceil(math.Max(x0, math.Max(x1, x2))))
	minY := int(math.Floor(math.Min(y0, math.Min(y1, y2))))
	maxY := int(math.Ceil(math.Max(y0, math.Max(y1, y2))))
	box := image.Rect(minX, minY, maxX+1, maxY+1).Intersect(r.clip)
	if box.Empty() {
		return
	}

	tie0 := ownsTie(x1, y1, x2, y2)
	tie1 := ownsTie(x2, y2, x0, y0)
	tie2 := ownsTie(x0, y0, x1, y1)

	base := color.RGBA{v0.R, v0.G, v0.B, v0.A}
	for py := box.Min.Y; py < box.Max.Y; py++ {
		cy := float64(py) + 0.5
		for px := box.Min.X; px < box.Max.X; px++ {
			cx := float64(px) + 0.5
			w0 := edge(x1, y1, x2, y2, cx, cy)
			if w0 < 0 || (w0 == 0 && !tie0) {
				continue
			}
			w1 := edge(x2, y2, x0, y0, cx, cy)
			if w1 < 0 || (w1 == 0 && !tie1) {
				continue
			}
			w2 := edge(x0, y0, x1, y1, cx, cy)
			if w2 < 0 || (w2 == 0 && !tie2) {
				continue
			}

			c := base
			if r.tex != nil && v0.U0 >= 0 {
				u := (w0*float64(v0.U) + w1*float64(v1.U) + w2*float64(v2.U)) / area
				v := (w0*float64(v0.V) + w1*float64(v1.V) + w2*float64(v2.V)) / area
				c = modulate(r.sample(v0, u, v), base)
			}
			if r.shade != nil {
				c = r.shade(c, px, py, r.pass)
			}
			blend(r.dst, px, py, c)
		}
	}
}

// sample reads the texel at local (u,v) wrapped into the vertex's atlas region
func (r *rasterizer) sample(v *gpu.Vertex, u, vv float64) color.RGBA {
	w, h := r.tex.Bounds().Dx(), r.tex.Bounds().Dy()
	fu := u - math.Floor(u)
	fv := vv - math.Floor(vv)

	u0, u1 := float64(v.U0)*float64(w), float64(v.U1)*float64(w)
	v0, v1 := float64(v.V0)*float64(h), float64(v.V1)*float64(h)

	tx := int(math.Floor(u0 + fu*(u1-u0)))
	ty := int(math.Floor(v0 + fv*(v1-v0)))
	tx = clampTexel(tx, u0, u1)
	ty = clampTexel(ty, v0, v1)
	if tx < 0 || ty < 0 || tx >= w || ty >= h {
		return color.RGBA{}
	}
	i := r.tex.PixOffset(tx, ty)
	p := r.tex.Pix[i : i+4 : i+4]
	return unpremultiply(color.RGBA{p[0], p[1], p[2], p[3]})
}

func clampTexel(t int, a, b float64) int {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	minT := int(math.Floor(lo + 1e-6))
	maxT := int(math.Ceil(hi-1e-6)) - 1
	if maxT < minT {
		maxT = minT
	}
	if t < minT {
		return minT
	}
	if t > maxT {
		return maxT
	}
	return t
}

func modulate(t, c color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8(uint32(t.R) * uint32(c.R) / 255),
		G: uint8(uint32(t.G) * uint32(c.G) / 255),
		B: uint8(uint32(t.B) * uint32(c.B) / 255),
		A: uint8(uint32(t.A) * uint32(c.A) / 255),
	}
}

// blend composites a straight-alpha colour over a premultiplied target pixel
func blend(dst *image.RGBA, x, y int, c color.RGBA) {
	if c.A == 0 {
		return
	}
	i := dst.PixOffset(x, y)
	p := dst.Pix[i : i+4 : i+4]
	if c.A == 255 {
		p[0], p[1], p[2], p[3] = c.R, c.G, c.B, 255
		return
	}
	sa := uint32(c.A)
	inv := 255 - sa
	p[0] = uint8((uint32(c.R)*sa + uint32(p[0])*inv) / 255)
	p[1] = uint8((uint32(c.G)*sa + uint32(p[1])*inv) / 255)
	p[2] = uint8((uint32(c.B)*sa + uint32(p[2])*inv) / 255)
	p[3] = uint8(sa + uint32(p[3])*inv/255)
}

func unpremultiply(c color.RGBA) color.RGBA {
	if c.A == 0 || c.A == 255 {
		return c
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(min(uint32(c.R)*255/a, 255)),
		G: uint8(min(uint32(c.G)*255/a, 255)),
		B: uint8(min(uint32(c.B)*255/a, 255)),
		A: c.A,
	}
}
