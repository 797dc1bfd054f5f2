package engine

import (
	"image"
	"image/color"

	"retrogfx/pkg/gpu"
)

// Rect is an integer rectangle given by its top-left corner and size
type Rect struct {
	X, Y, W, H int
}

// R is shorthand for Rect{x, y, w, h}
func R(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Empty reports whether the rectangle covers no pixels
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Image converts to an image.Rectangle (Max exclusive)
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Offset returns r moved by (dx, dy)
func (r Rect) Offset(dx, dy int) Rect {
	return Rect{r.X + dx, r.Y + dy, r.W, r.H}
}

// Intersect returns the overlap of r and o, or an empty Rect
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.W, o.X+o.W), min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

// clipRect is an inclusive pixel rectangle in target space
type clipRect struct {
	x0, y0, x1, y1 int
}

func (c clipRect) rect() Rect {
	return Rect{c.x0, c.y0, c.x1 - c.x0 + 1, c.y1 - c.y0 + 1}
}

func (c clipRect) scissor() image.Rectangle {
	return image.Rect(c.x0, c.y0, c.x1+1, c.y1+1)
}

// outside reports whether the inclusive box [x0,x1]x[y0,y1] misses the clip
func (c clipRect) outside(x0, y0, x1, y1 int) bool {
	return x1 < c.x0 || x0 > c.x1 || y1 < c.y0 || y0 > c.y1
}

// Texture is a device texture together with its pixel size
type Texture struct {
	ID            gpu.TextureID
	Width, Height int
}

// Sprite is one image in an atlas. Src is the packed region inside the
// texture; when the packer trimmed transparent borders, OffsetX/OffsetY place
// Src inside the untrimmed W x H frame.
type Sprite struct {
	Src              Rect
	OffsetX, OffsetY int
	W, H             int
}

// SpriteFromRect returns an untrimmed sprite covering src
func SpriteFromRect(src Rect) Sprite {
	return Sprite{Src: src, W: src.W, H: src.H}
}

// SpriteSheet is a texture cut into a grid of equally sized cells, or into an
// explicit list of packed sprites.
type SpriteSheet struct {
	Texture
	CellW, CellH int
	Sprites      []Sprite
}

// NewSpriteSheet wraps a texture as a grid sprite sheet
func NewSpriteSheet(tex Texture, cellW, cellH int) *SpriteSheet {
	return &SpriteSheet{Texture: tex, CellW: cellW, CellH: cellH}
}

// Sprite returns sprite i: an entry of the packed list, or grid cell i in
// row-major order.
func (s *SpriteSheet) Sprite(i int) (Sprite, bool) {
	if len(s.Sprites) > 0 {
		if i < 0 || i >= len(s.Sprites) {
			return Sprite{}, false
		}
		return s.Sprites[i], true
	}
	if s.CellW <= 0 || s.CellH <= 0 || i < 0 {
		return Sprite{}, false
	}
	cols := s.Width / s.CellW
	rows := s.Height / s.CellH
	if cols == 0 || i >= cols*rows {
		return Sprite{}, false
	}
	return SpriteFromRect(R((i%cols)*s.CellW, (i/cols)*s.CellH, s.CellW, s.CellH)), true
}

// NineSlice is the set of sprites a scalable frame is built from
type NineSlice struct {
	TopLeft, Top, TopRight          Sprite
	Left, Middle, Right             Sprite
	BottomLeft, Bottom, BottomRight Sprite
}

// DrawFlags modify how textured quads are mapped
type DrawFlags uint8

const (
	FlipH DrawFlags = 1 << iota
	FlipV
	Rot90 // rotate the source 90 degrees clockwise onto the destination
)

// Material is a shader and the number of passes each flush draws with it
type Material struct {
	Shader gpu.ShaderID
	Passes int
}

// DefaultMaterial is the built-in single pass program
var DefaultMaterial = Material{Shader: gpu.DefaultShader, Passes: 1}

var white = color.RGBA{255, 255, 255, 255}
