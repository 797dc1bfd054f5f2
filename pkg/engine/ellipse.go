package engine

import (
	"image"
	"image/color"
)

// maxEllipseRadius bounds the per-row table; larger ellipses become rects
const maxEllipseRadius = 1024

// wideRadius is where the decision terms stop fitting in 32 bits
const wideRadius = 128

type ellipseInt interface {
	~int32 | ~int64
}

// midpointEllipse walks the first quadrant boundary of an ellipse with radii a
// (x) and b (y) from (0,b) to (a,0), calling plot for every point. The
// decision variables are kept scaled by 4 so everything stays integral.
func midpointEllipse[T ellipseInt](a, b T, plot func(x, y int)) {
	a2, b2 := a*a, b*b
	x, y := T(0), b
	dx, dy := T(0), 2*a2*y

	d1 := 4*b2 - 4*a2*b + a2
	for dx < dy {
		plot(int(x), int(y))
		x++
		dx += 2 * b2
		if d1 < 0 {
			d1 += 4 * (dx + b2)
		} else {
			y--
			dy -= 2 * a2
			d1 += 4 * (dx - dy + b2)
		}
	}

	d2 := b2*(2*x+1)*(2*x+1) + 4*a2*(y-1)*(y-1) - 4*a2*b2
	for y >= 0 {
		plot(int(x), int(y))
		y--
		dy -= 2 * a2
		if d2 > 0 {
			d2 += 4 * (a2 - dy)
		} else {
			x++
			dx += 2 * b2
			d2 += 4 * (dx - dy + a2)
		}
	}
}

// ellipseHalfWidths returns, for every row offset 0..ry from the centre, the
// half width of the ellipse on that row. The walk always runs along the longer
// axis; radii of wideRadius or more use 64 bit decision terms.
func ellipseHalfWidths(rx, ry int) []int {
	hw := make([]int, ry+1)
	for i := range hw {
		hw[i] = -1
	}
	swap := rx > ry
	a, b := rx, ry
	if swap {
		a, b = ry, rx
	}
	plot := func(x, y int) {
		if swap {
			x, y = y, x
		}
		if y >= 0 && y <= ry && x > hw[y] {
			hw[y] = x
		}
	}
	if max(rx, ry) >= wideRadius {
		midpointEllipse(int64(a), int64(b), plot)
	} else {
		midpointEllipse(int32(a), int32(b), plot)
	}

	if hw[0] < 0 {
		hw[0] = rx
	}
	for i := 1; i <= ry; i++ {
		if hw[i] < 0 {
			hw[i] = hw[i-1]
		}
	}
	return hw
}

// spanRun merges identical spans on consecutive rows into one rectangle
type spanRun struct {
	r          *Renderer
	c          color.RGBA
	x0, x1, y0 int
	rows       int
}

func (s *spanRun) add(y, x0, x1 int) {
	if s.rows > 0 && x0 == s.x0 && x1 == s.x1 && y == s.y0+s.rows {
		s.rows++
		return
	}
	s.done()
	s.x0, s.x1, s.y0, s.rows = x0, x1, y, 1
}

func (s *spanRun) done() {
	if s.rows == 0 {
		return
	}
	if !s.r.clip.outside(s.x0, s.y0, s.x1, s.y0+s.rows-1) {
		s.r.fillRect(s.x0, s.y0, s.x1-s.x0+1, s.rows, s.c)
	}
	s.rows = 0
}

type ellipseMode int

const (
	ellipseOutline ellipseMode = iota
	ellipseFill
	ellipseInverse
)

// DrawEllipse outlines the ellipse centred on center with radii rx, ry
func (r *Renderer) DrawEllipse(center image.Point, rx, ry int, c color.RGBA) {
	r.ellipse(center, rx, ry, c, ellipseOutline)
}

// DrawEllipseFill fills the ellipse
func (r *Renderer) DrawEllipseFill(center image.Point, rx, ry int, c color.RGBA) {
	r.ellipse(center, rx, ry, c, ellipseFill)
}

// DrawEllipseInverseFill fills the part of the ellipse's bounding box that
// lies outside the ellipse
func (r *Renderer) DrawEllipseInverseFill(center image.Point, rx, ry int, c color.RGBA) {
	r.ellipse(center, rx, ry, c, ellipseInverse)
}

// DrawCircle outlines a circle
func (r *Renderer) DrawCircle(center image.Point, radius int, c color.RGBA) {
	r.ellipse(center, radius, radius, c, ellipseOutline)
}

// DrawCircleFill fills a circle
func (r *Renderer) DrawCircleFill(center image.Point, radius int, c color.RGBA) {
	r.ellipse(center, radius, radius, c, ellipseFill)
}

func (r *Renderer) ellipse(center image.Point, rx, ry int, c color.RGBA, mode ellipseMode) {
	if rx < 0 || ry < 0 {
		return
	}
	cx, cy := center.X-r.camX, center.Y-r.camY
	if r.culled(cx-rx, cy-ry, cx+rx, cy+ry) {
		return
	}
	c = r.colorOf(c)

	if rx >= maxEllipseRadius || ry >= maxEllipseRadius {
		switch mode {
		case ellipseFill:
			r.fillRect(cx-rx, cy-ry, 2*rx+1, 2*ry+1, c)
		case ellipseOutline:
			r.fillRect(cx-rx, cy-ry, 2*rx+1, 1, c)
			r.fillRect(cx-rx, cy+ry, 2*rx+1, 1, c)
			r.fillRect(cx-rx, cy-ry+1, 1, 2*ry-1, c)
			r.fillRect(cx+rx, cy-ry+1, 1, 2*ry-1, c)
		}
		return
	}

	hw := ellipseHalfWidths(rx, ry)
	left := spanRun{r: r, c: c}
	right := spanRun{r: r, c: c}

	for dy := -ry; dy <= ry; dy++ {
		k := dy
		if k < 0 {
			k = -k
		}
		y := cy + dy
		w := hw[k]
		switch mode {
		case ellipseFill:
			left.add(y, cx-w, cx+w)
		case ellipseOutline:
			inner := -1
			if k < ry {
				inner = hw[k+1]
			}
			s := min(inner+1, w)
			if s <= 0 {
				left.add(y, cx-w, cx+w)
				continue
			}
			left.add(y, cx-w, cx-s)
			right.add(y, cx+s, cx+w)
		case ellipseInverse:
			if w < rx {
				left.add(y, cx-rx, cx-w-1)
				right.add(y, cx+w+1, cx+rx)
			}
		}
	}
	left.done()
	right.done()
}
