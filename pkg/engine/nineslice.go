package engine

// DrawNineSlice fills dst with a frame built from ns, sampled from the
// current texture. Corners are drawn whole; edges and the middle are tiled
// and the last tile in each direction is cut down to the space left, never
// scaled. Nothing is drawn when dst cannot hold two corners on either axis.
func (r *Renderer) DrawNineSlice(dst Rect, ns NineSlice) {
	tl, tr := ns.TopLeft, ns.TopRight
	bl, br := ns.BottomLeft, ns.BottomRight
	if dst.W < tl.W+tr.W || dst.H < tl.H+bl.H {
		return
	}
	x, y := dst.X-r.camX, dst.Y-r.camY
	if r.culled(x, y, x+dst.W-1, y+dst.H-1) {
		return
	}

	x0, y0 := dst.X, dst.Y
	x1, y1 := dst.X+dst.W, dst.Y+dst.H

	r.drawSprite(tl, x0, y0, 0, white)
	r.drawSprite(tr, x1-tr.W, y0, 0, white)
	r.drawSprite(bl, x0, y1-bl.H, 0, white)
	r.drawSprite(br, x1-br.W, y1-br.H, 0, white)

	r.tileSprite(ns.Top, x0+tl.W, y0, x1-tr.W, y0+ns.Top.H)
	r.tileSprite(ns.Bottom, x0+bl.W, y1-ns.Bottom.H, x1-br.W, y1)
	r.tileSprite(ns.Left, x0, y0+tl.H, x0+ns.Left.W, y1-bl.H)
	r.tileSprite(ns.Right, x1-ns.Right.W, y0+tr.H, x1, y1-br.H)
	r.tileSprite(ns.Middle, x0+ns.Left.W, y0+ns.Top.H, x1-ns.Right.W, y1-ns.Bottom.H)
}

// tileSprite repeats s over [x0,x1)x[y0,y1) from the top-left corner
func (r *Renderer) tileSprite(s Sprite, x0, y0, x1, y1 int) {
	if s.W <= 0 || s.H <= 0 || x1 <= x0 || y1 <= y0 {
		return
	}
	for ty := y0; ty < y1; ty += s.H {
		for tx := x0; tx < x1; tx += s.W {
			r.drawSpriteCut(s, tx, ty, min(s.W, x1-tx), min(s.H, y1-ty))
		}
	}
}

// drawSpriteCut draws the top-left maxW x maxH part of s's untrimmed frame at
// (x, y). The packed source rect is cut to whatever of it falls inside.
func (r *Renderer) drawSpriteCut(s Sprite, x, y, maxW, maxH int) {
	if maxW >= s.W && maxH >= s.H {
		r.drawSprite(s, x, y, 0, white)
		return
	}
	packed := R(s.OffsetX, s.OffsetY, s.Src.W, s.Src.H)
	vis := packed.Intersect(R(0, 0, maxW, maxH))
	if vis.Empty() {
		return
	}
	src := R(s.Src.X+vis.X-s.OffsetX, s.Src.Y+vis.Y-s.OffsetY, vis.W, vis.H)
	r.texturedQuad(src, R(x+vis.X, y+vis.Y, vis.W, vis.H), 0, white, nil, 0)
}
