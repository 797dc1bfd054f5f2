package engine

import (
	"image"
	"image/color"
	"math"

	"retrogfx/internal/util"
	"retrogfx/pkg/gpu"
)

// pixelNudge pushes bracketing triangle corners off pixel boundaries so
// coverage never depends on the device's fill rule tie breaking.
const pixelNudge = 0.1

func solid(x, y float32, c color.RGBA) gpu.Vertex {
	return gpu.Vertex{X: x, Y: y, R: c.R, G: c.G, B: c.B, A: c.A, U0: -1, V0: -1, U1: -1, V1: -1}
}

func signedArea(a, b, c *gpu.Vertex) float32 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// culled reports whether the inclusive box lies outside the clip and counts it
func (r *Renderer) culled(x0, y0, x1, y1 int) bool {
	if r.clip.outside(x0, y0, x1, y1) {
		r.stats.Culled++
		return true
	}
	return false
}

// emitTri writes one front facing triangle
func (r *Renderer) emitTri(a, b, c gpu.Vertex) {
	if signedArea(&a, &b, &c) < 0 {
		b, c = c, b
	}
	base := r.reserve(3, 3)
	bt := r.batch
	bt.vertices[base], bt.vertices[base+1], bt.vertices[base+2] = a, b, c
	bt.indices[bt.ni] = uint16(base)
	bt.indices[bt.ni+1] = uint16(base + 1)
	bt.indices[bt.ni+2] = uint16(base + 2)
	bt.nv += 3
	bt.ni += 3
}

// emitQuad writes four perimeter ordered corners as two front facing triangles
func (r *Renderer) emitQuad(v [4]gpu.Vertex) {
	base := r.reserve(4, 6)
	bt := r.batch
	copy(bt.vertices[base:base+4], v[:])
	order := [6]uint16{0, 1, 2, 0, 2, 3}
	if signedArea(&v[0], &v[1], &v[2])+signedArea(&v[0], &v[2], &v[3]) < 0 {
		order = [6]uint16{0, 2, 1, 0, 3, 2}
	}
	for i, o := range order {
		bt.indices[bt.ni+i] = uint16(base) + o
	}
	bt.nv += 4
	bt.ni += 6
}

// hrun draws w pixels starting at (x,y) in target space with one triangle
func (r *Renderer) hrun(x, y, w int, c color.RGBA) {
	fx, fy, fw := float32(x), float32(y), float32(w)
	r.emitTri(
		solid(fx-pixelNudge, fy-pixelNudge, c),
		solid(fx+1.6*fw-0.24, fy-pixelNudge, c),
		solid(fx-pixelNudge, fy+0.5+(fw+0.1)/(fw-0.4), c),
	)
}

// vrun draws h pixels downward from (x,y) in target space with one triangle
func (r *Renderer) vrun(x, y, h int, c color.RGBA) {
	fx, fy, fh := float32(x), float32(y), float32(h)
	r.emitTri(
		solid(fx-pixelNudge, fy-pixelNudge, c),
		solid(fx+0.5+(fh+0.1)/(fh-0.4), fy-pixelNudge, c),
		solid(fx-pixelNudge, fy+1.6*fh-0.24, c),
	)
}

// fillRect draws a solid rectangle in target space without culling
func (r *Renderer) fillRect(x, y, w, h int, c color.RGBA) {
	switch {
	case w <= 0 || h <= 0:
		return
	case h == 1:
		r.hrun(x, y, w, c)
		return
	case w == 1:
		r.vrun(x, y, h, c)
		return
	}
	x0, y0 := float32(x), float32(y)
	x1, y1 := float32(x+w), float32(y+h)
	r.emitQuad([4]gpu.Vertex{solid(x0, y0, c), solid(x1, y0, c), solid(x1, y1, c), solid(x0, y1, c)})
}

// DrawPixel sets a single pixel
func (r *Renderer) DrawPixel(x, y int, c color.RGBA) {
	x -= r.camX
	y -= r.camY
	if r.culled(x, y, x, y) {
		return
	}
	r.hrun(x, y, 1, r.colorOf(c))
}

// DrawRectFill fills rect
func (r *Renderer) DrawRectFill(rect Rect, c color.RGBA) {
	if rect.Empty() {
		return
	}
	x, y := rect.X-r.camX, rect.Y-r.camY
	if r.culled(x, y, x+rect.W-1, y+rect.H-1) {
		return
	}
	r.fillRect(x, y, rect.W, rect.H, r.colorOf(c))
}

// DrawRect outlines rect with a 1 pixel border
func (r *Renderer) DrawRect(rect Rect, c color.RGBA) {
	r.DrawRectThick(rect, 1, c)
}

// DrawRectThick outlines rect with a border of the given thickness growing
// inward. When the borders would meet the rect is filled instead.
func (r *Renderer) DrawRectThick(rect Rect, thickness int, c color.RGBA) {
	if rect.Empty() || thickness <= 0 {
		return
	}
	x, y := rect.X-r.camX, rect.Y-r.camY
	if r.culled(x, y, x+rect.W-1, y+rect.H-1) {
		return
	}
	c = r.colorOf(c)
	t := thickness
	if rect.W <= 2*t || rect.H <= 2*t {
		r.fillRect(x, y, rect.W, rect.H, c)
		return
	}
	r.fillRect(x, y, rect.W, t, c)
	r.fillRect(x, y+rect.H-t, rect.W, t, c)
	r.fillRect(x, y+t, t, rect.H-2*t, c)
	r.fillRect(x+rect.W-t, y+t, t, rect.H-2*t, c)
}

// DrawRectFillRotated fills rect rotated by angle degrees around pivot, which
// is relative to the rect's top-left corner.
func (r *Renderer) DrawRectFillRotated(rect Rect, pivot image.Point, angle float32, c color.RGBA) {
	if rect.Empty() {
		return
	}
	if util.WrapAngle(angle) == 0 {
		r.DrawRectFill(rect, c)
		return
	}
	x, y := float32(rect.X-r.camX), float32(rect.Y-r.camY)
	corners, ok := r.rotatedCorners(x, y, float32(rect.W), float32(rect.H), pivot, angle)
	if !ok {
		return
	}
	c = r.colorOf(c)
	var v [4]gpu.Vertex
	for i, p := range corners {
		v[i] = solid(p[0], p[1], c)
	}
	r.emitQuad(v)
}

// rotatedCorners rotates the corners of a target space rect around pivot and
// culls the result. Corners are returned TL, TR, BR, BL of the unrotated rect.
func (r *Renderer) rotatedCorners(x, y, w, h float32, pivot image.Point, angle float32) ([4][2]float32, bool) {
	m := util.PivotRotation(x+float32(pivot.X), y+float32(pivot.Y), angle)
	local := [4][2]float32{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
	var out [4][2]float32
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := -minX, -minY
	for i, p := range local {
		px, py := util.Transform2D(m, p[0], p[1])
		out[i] = [2]float32{px, py}
		minX, maxX = min(minX, px), max(maxX, px)
		minY, maxY = min(minY, py), max(maxY, py)
	}
	bx0, by0 := int(math.Floor(float64(minX))), int(math.Floor(float64(minY)))
	bx1, by1 := int(math.Ceil(float64(maxX)))-1, int(math.Ceil(float64(maxY)))-1
	if r.culled(bx0, by0, bx1, by1) {
		return out, false
	}
	return out, true
}

// DrawTriangle outlines the triangle p0, p1, p2
func (r *Renderer) DrawTriangle(p0, p1, p2 image.Point, c color.RGBA) {
	if r.culledPoints(p0, p1, p2) {
		return
	}
	r.line(p0.X, p0.Y, p1.X, p1.Y, c, capStart|capEnd)
	r.line(p1.X, p1.Y, p2.X, p2.Y, c, capEnd)
	r.line(p2.X, p2.Y, p0.X, p0.Y, c, 0)
}

// DrawTriangleFill fills the triangle p0, p1, p2. The triangle is submitted
// with both windings so one of them survives back face culling.
func (r *Renderer) DrawTriangleFill(p0, p1, p2 image.Point, c color.RGBA) {
	if r.culledPoints(p0, p1, p2) {
		return
	}
	c = r.colorOf(c)
	v := [3]gpu.Vertex{
		solid(float32(p0.X-r.camX)+0.5, float32(p0.Y-r.camY)+0.5, c),
		solid(float32(p1.X-r.camX)+0.5, float32(p1.Y-r.camY)+0.5, c),
		solid(float32(p2.X-r.camX)+0.5, float32(p2.Y-r.camY)+0.5, c),
	}
	base := r.reserve(3, 6)
	bt := r.batch
	copy(bt.vertices[base:base+3], v[:])
	b := uint16(base)
	copy(bt.indices[bt.ni:bt.ni+6], []uint16{b, b + 1, b + 2, b, b + 2, b + 1})
	bt.nv += 3
	bt.ni += 6
}

func (r *Renderer) culledPoints(pts ...image.Point) bool {
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for _, p := range pts {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return r.culled(minX-r.camX, minY-r.camY, maxX-r.camX, maxY-r.camY)
}
