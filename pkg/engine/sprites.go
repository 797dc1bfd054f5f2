package engine

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"retrogfx/internal/util"
	"retrogfx/pkg/gpu"
)

// quadUV returns local texture coordinates for the destination corners TL,
// TR, BR, BL after applying flips and the 90 degree rotation.
func quadUV(flags DrawFlags) [4][2]float32 {
	// source corners TL, TR, BR, BL
	src := [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if flags&FlipH != 0 {
		for i := range src {
			src[i][0] = 1 - src[i][0]
		}
	}
	if flags&FlipV != 0 {
		for i := range src {
			src[i][1] = 1 - src[i][1]
		}
	}
	if flags&Rot90 == 0 {
		return src
	}
	// rotating clockwise shows the source's bottom-left in the top-left corner
	return [4][2]float32{src[3], src[0], src[1], src[2]}
}

// DrawTexture draws src of the current texture into dst. Scaling is allowed;
// with Rot90 the source's width maps onto the destination's height.
func (r *Renderer) DrawTexture(src, dst Rect, flags DrawFlags) {
	r.texturedQuad(src, dst, flags, white, nil, 0)
}

// DrawTextureColor is DrawTexture with a modulating colour
func (r *Renderer) DrawTextureColor(src, dst Rect, flags DrawFlags, c color.RGBA) {
	r.texturedQuad(src, dst, flags, c, nil, 0)
}

// DrawTextureRotated draws src into dst rotated by angle degrees around pivot,
// which is relative to dst's top-left corner.
func (r *Renderer) DrawTextureRotated(src, dst Rect, pivot image.Point, angle float32, flags DrawFlags) {
	r.texturedQuad(src, dst, flags, white, &pivot, angle)
}

// DrawSprite draws sprite i of sheet at (x, y), honouring any atlas trim
func (r *Renderer) DrawSprite(sheet *SpriteSheet, i, x, y int, flags DrawFlags) {
	s, ok := sheet.Sprite(i)
	if !ok {
		return
	}
	r.SetTexture(sheet.Texture)
	r.drawSprite(s, x, y, flags, white)
}

func (r *Renderer) drawSprite(s Sprite, x, y int, flags DrawFlags, c color.RGBA) {
	ox, oy := s.OffsetX, s.OffsetY
	w, h := s.Src.W, s.Src.H
	if flags&FlipH != 0 {
		ox = s.W - ox - s.Src.W
	}
	if flags&FlipV != 0 {
		oy = s.H - oy - s.Src.H
	}
	if flags&Rot90 != 0 {
		// the trimmed rect turns with the frame
		ox, oy = s.H-oy-s.Src.H, ox
		w, h = h, w
	}
	r.texturedQuad(s.Src, R(x+ox, y+oy, w, h), flags, c, nil, 0)
}

func (r *Renderer) texturedQuad(src, dst Rect, flags DrawFlags, c color.RGBA, pivot *image.Point, angle float32) {
	if src.Empty() || dst.Empty() || r.texture.Width == 0 || r.texture.Height == 0 {
		return
	}
	x, y := float32(dst.X-r.camX), float32(dst.Y-r.camY)
	w, h := float32(dst.W), float32(dst.H)

	var corners [4][2]float32
	if pivot != nil && util.WrapAngle(angle) != 0 {
		var ok bool
		corners, ok = r.rotatedCorners(x, y, w, h, *pivot, angle)
		if !ok {
			return
		}
	} else {
		dx, dy := dst.X-r.camX, dst.Y-r.camY
		if r.culled(dx, dy, dx+dst.W-1, dy+dst.H-1) {
			return
		}
		corners = [4][2]float32{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
	}

	region := r.region(src, 0)
	uv := quadUV(flags)
	c = r.colorOf(c)
	var v [4]gpu.Vertex
	for i := range v {
		v[i] = textured(corners[i][0], corners[i][1], uv[i][0], uv[i][1], region, c)
	}
	r.emitQuad(v)
}

// DrawPixelBuffer uploads a w x h block of colours and draws it into dst.
// The upload goes through one streaming texture that grows as needed.
func (r *Renderer) DrawPixelBuffer(pixels []color.RGBA, w, h int, dst Rect) error {
	if w <= 0 || h <= 0 || dst.Empty() {
		return nil
	}
	if len(pixels) < w*h {
		return errors.Errorf("pixel buffer holds %d pixels, need %d", len(pixels), w*h)
	}
	dx, dy := dst.X-r.camX, dst.Y-r.camY
	if r.culled(dx, dy, dx+dst.W-1, dy+dst.H-1) {
		return nil
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, p := range pixels[:w*h] {
		img.Pix[i*4+0] = p.R
		img.Pix[i*4+1] = p.G
		img.Pix[i*4+2] = p.B
		img.Pix[i*4+3] = p.A
	}

	// pending geometry may still sample the old stream contents
	if r.stream.ID != 0 && r.texture.ID == r.stream.ID {
		r.flush(ReasonStateChange)
	}
	if r.stream.ID == 0 {
		id, err := r.dev.NewTexture(img)
		if err != nil {
			return errors.Wrap(err, "creating pixel buffer texture")
		}
		r.stream = Texture{ID: id, Width: w, Height: h}
	} else {
		if err := r.dev.UpdateTexture(r.stream.ID, img); err != nil {
			return errors.Wrap(err, "updating pixel buffer texture")
		}
		r.stream.Width, r.stream.Height = w, h
	}

	prev := r.texture
	r.SetTexture(r.stream)
	r.texturedQuad(R(0, 0, w, h), dst, 0, white, nil, 0)
	r.SetTexture(prev)
	return nil
}
