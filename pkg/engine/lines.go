package engine

import (
	"image"
	"image/color"
	"math"

	"retrogfx/internal/util"
	"retrogfx/pkg/gpu"
)

type lineCaps uint8

const (
	capStart lineCaps = 1 << iota
	capEnd
)

// lineBias moves 1px line quads off exact pixel centre ties on the minor
// axis. It is a power of two so it stays exact in float32.
const lineBias = 1.0 / 512

// uvInset keeps textured line sampling away from neighbouring atlas tiles
const uvInset = 1e-4

// DrawLine draws a 1 pixel line including both end points
func (r *Renderer) DrawLine(x0, y0, x1, y1 int, c color.RGBA) {
	r.line(x0, y0, x1, y1, c, capStart|capEnd)
}

// DrawLineStrip draws connected 1 pixel segments. Shared points are drawn once.
func (r *Renderer) DrawLineStrip(points []image.Point, c color.RGBA) {
	if len(points) == 1 {
		r.DrawPixel(points[0].X, points[0].Y, c)
		return
	}
	for i := 1; i < len(points); i++ {
		caps := capEnd
		if i == 1 {
			caps |= capStart
		}
		p, q := points[i-1], points[i]
		r.line(p.X, p.Y, q.X, q.Y, c, caps)
	}
}

// DrawPolygon draws a closed outline through points
func (r *Renderer) DrawPolygon(points []image.Point, c color.RGBA) {
	if len(points) < 3 {
		r.DrawLineStrip(points, c)
		return
	}
	r.DrawLineStrip(points, c)
	last, first := points[len(points)-1], points[0]
	r.line(last.X, last.Y, first.X, first.Y, c, 0)
}

func (r *Renderer) line(x0, y0, x1, y1 int, c color.RGBA, caps lineCaps) {
	x0, y0 = x0-r.camX, y0-r.camY
	x1, y1 = x1-r.camX, y1-r.camY
	if r.culled(min(x0, x1), min(y0, y1), max(x0, x1), max(y0, y1)) {
		return
	}
	c = r.colorOf(c)

	if x0 == x1 && y0 == y1 {
		if caps == capStart|capEnd {
			r.hrun(x0, y0, 1, c)
		}
		return
	}

	if y0 == y1 || x0 == x1 {
		r.orthoLine(x0, y0, x1, y1, c, caps)
		return
	}
	r.emitQuad(lineQuad(x0, y0, x1, y1, c, caps))
}

// orthoLine draws an axis aligned line as a single bracketing triangle
func (r *Renderer) orthoLine(x0, y0, x1, y1 int, c color.RGBA, caps lineCaps) {
	if y0 == y1 {
		step := util.Sign(x1 - x0)
		if caps&capStart == 0 {
			x0 += step
		}
		if caps&capEnd == 0 {
			x1 -= step
		}
		if (x1-x0)*step < 0 {
			return
		}
		r.hrun(min(x0, x1), y0, util.Abs(x1-x0)+1, c)
		return
	}
	step := util.Sign(y1 - y0)
	if caps&capStart == 0 {
		y0 += step
	}
	if caps&capEnd == 0 {
		y1 -= step
	}
	if (y1-y0)*step < 0 {
		return
	}
	r.vrun(x0, min(y0, y1), util.Abs(y1-y0)+1, c)
}

// lineQuad builds the parallelogram of a sloped 1px line. The quadrant of the
// line picks the major axis; the quad spans one pixel across the minor axis
// and its major axis ends sit on pixel borders, before the start pixel and
// after the end pixel when capped, after the start and before the end when not.
func lineQuad(x0, y0, x1, y1 int, c color.RGBA, caps lineCaps) [4]gpu.Vertex {
	dx, dy := float32(x1-x0), float32(y1-y0)
	cx0, cy0 := float32(x0)+0.5, float32(y0)+0.5
	cx1, cy1 := float32(x1)+0.5, float32(y1)+0.5

	startExt, endExt := float32(-0.5), float32(-0.5)
	if caps&capStart != 0 {
		startExt = 0.5
	}
	if caps&capEnd != 0 {
		endExt = 0.5
	}

	if util.Abs(dx) >= util.Abs(dy) {
		sx := util.Sign(dx)
		m := dy / dx
		xs := cx0 - startExt*sx
		xe := cx1 + endExt*sx
		ys := cy0 + m*(xs-cx0) - lineBias
		ye := cy0 + m*(xe-cx0) - lineBias
		return [4]gpu.Vertex{
			solid(xs, ys-0.5, c), solid(xe, ye-0.5, c),
			solid(xe, ye+0.5, c), solid(xs, ys+0.5, c),
		}
	}
	sy := util.Sign(dy)
	m := dx / dy
	ys := cy0 - startExt*sy
	ye := cy1 + endExt*sy
	xs := cx0 + m*(ys-cy0) - lineBias
	xe := cx0 + m*(ye-cy0) - lineBias
	return [4]gpu.Vertex{
		solid(xs-0.5, ys, c), solid(xs+0.5, ys, c),
		solid(xe+0.5, ye, c), solid(xe-0.5, ye, c),
	}
}

// thickCorners returns the quad of a line of thickness t between pixel
// centres. Odd thickness puts the extra pixel below the line (floor(t/2)
// above, the rest including the centre row below).
func thickCorners(x0, y0, x1, y1, t int) ([4][2]float32, float32) {
	cx0, cy0 := float64(x0)+0.5, float64(y0)+0.5
	cx1, cy1 := float64(x1)+0.5, float64(y1)+0.5
	dx, dy := cx1-cx0, cy1-cy0
	length := math.Hypot(dx, dy)
	if length == 0 {
		dx, dy = 1, 0
	} else {
		dx, dy = dx/length, dy/length
	}
	nx, ny := -dy, dx

	top := float64(t / 2)
	bottom := float64(t) - top
	up, down := -(top + 0.5), bottom-0.5

	sx, sy := cx0-dx*0.5, cy0-dy*0.5
	ex, ey := cx1+dx*0.5, cy1+dy*0.5
	return [4][2]float32{
		{float32(sx + nx*up), float32(sy + ny*up)},
		{float32(ex + nx*up), float32(ey + ny*up)},
		{float32(ex + nx*down), float32(ey + ny*down)},
		{float32(sx + nx*down), float32(sy + ny*down)},
	}, float32(length + 1)
}

func (r *Renderer) cornersCulled(p [4][2]float32) bool {
	minX, minY := p[0][0], p[0][1]
	maxX, maxY := minX, minY
	for _, q := range p[1:] {
		minX, maxX = min(minX, q[0]), max(maxX, q[0])
		minY, maxY = min(minY, q[1]), max(maxY, q[1])
	}
	return r.culled(
		int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX)))-1, int(math.Ceil(float64(maxY)))-1,
	)
}

// DrawLineThick draws a line of the given thickness
func (r *Renderer) DrawLineThick(x0, y0, x1, y1, thickness int, c color.RGBA) {
	if thickness <= 1 {
		r.DrawLine(x0, y0, x1, y1, c)
		return
	}
	x0, y0 = x0-r.camX, y0-r.camY
	x1, y1 = x1-r.camX, y1-r.camY
	if x0 == x1 && y0 == y1 {
		top := thickness / 2
		x, y := x0-top, y0-top
		if r.culled(x, y, x+thickness-1, y+thickness-1) {
			return
		}
		r.fillRect(x, y, thickness, thickness, r.colorOf(c))
		return
	}
	p, _ := thickCorners(x0, y0, x1, y1, thickness)
	if r.cornersCulled(p) {
		return
	}
	c = r.colorOf(c)
	r.emitQuad([4]gpu.Vertex{
		solid(p[0][0], p[0][1], c), solid(p[1][0], p[1][1], c),
		solid(p[2][0], p[2][1], c), solid(p[3][0], p[3][1], c),
	})
}

// DrawLineTextured draws a line whose length is covered by repeat copies of
// src from the current texture. A repeat of zero or less tiles src at its
// natural width, so the repeat count follows the line length.
func (r *Renderer) DrawLineTextured(x0, y0, x1, y1 int, src Rect, thickness int, repeat float32, c color.RGBA) {
	if src.Empty() || r.texture.Width == 0 || r.texture.Height == 0 {
		return
	}
	thickness = max(thickness, 1)
	x0, y0 = x0-r.camX, y0-r.camY
	x1, y1 = x1-r.camX, y1-r.camY
	p, length := thickCorners(x0, y0, x1, y1, thickness)
	if r.cornersCulled(p) {
		return
	}
	if repeat <= 0 {
		repeat = length / float32(src.W)
	}

	region := r.region(src, uvInset)
	uv := [4][2]float32{{0, 0}, {repeat, 0}, {repeat, 1}, {0, 1}}
	c = r.colorOf(c)
	var v [4]gpu.Vertex
	for i := range v {
		v[i] = textured(p[i][0], p[i][1], uv[i][0], uv[i][1], region, c)
	}
	r.emitQuad(v)
}

// region converts a source rect of the current texture into normalized
// atlas coordinates, pulled inward by inset.
func (r *Renderer) region(src Rect, inset float32) [4]float32 {
	tw, th := float32(r.texture.Width), float32(r.texture.Height)
	return [4]float32{
		float32(src.X)/tw + inset,
		float32(src.Y)/th + inset,
		float32(src.X+src.W)/tw - inset,
		float32(src.Y+src.H)/th - inset,
	}
}

func textured(x, y, u, v float32, region [4]float32, c color.RGBA) gpu.Vertex {
	return gpu.Vertex{
		X: x, Y: y,
		R: c.R, G: c.G, B: c.B, A: c.A,
		U: u, V: v,
		U0: region[0], V0: region[1], U1: region[2], V1: region[3],
	}
}
