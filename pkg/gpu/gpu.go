package gpu

import (
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
)

// TextureID identifies a texture or render target owned by a Device.
// The zero value names the display surface.
type TextureID uint32

// MeshID identifies a fixed-capacity vertex/index buffer owned by a Device.
type MeshID uint32

// ShaderID identifies a shader program. The zero value is the built-in program.
type ShaderID uint32

// Display is the render target id of the presentation surface
const Display TextureID = 0

// DefaultShader is the built-in sprite or composite program
const DefaultShader ShaderID = 0

// Vertex is the layout shared by every primitive the engine emits.
// U,V are local coordinates used for repeat/tiling, U0..V1 is the atlas region
// sampling is clamped to. Colour and region are constant across one primitive.
// A negative U0 marks an untextured primitive drawn in its vertex colour only.
type Vertex struct {
	X, Y, Z    float32
	R, G, B, A uint8
	U, V       float32
	U0, V0     float32
	U1, V1     float32
}

// VertexStride is the size of Vertex in bytes as uploaded to the GPU
const VertexStride = 4*3 + 4 + 4*2 + 4*4

// FilterMode selects texture sampling for composite blits
type FilterMode int

const (
	FilterPoint FilterMode = iota
	FilterLinear
)

// DrawCall describes one indexed draw of a previously uploaded mesh
type DrawCall struct {
	Mesh       MeshID
	IndexCount int
	Texture    TextureID // 0 draws every primitive untextured
	Shader     ShaderID
	Pass       int
	Scissor    image.Rectangle // target pixels, Max exclusive
}

// ShaderSource carries one program in the forms the devices understand.
// The OpenGL device compiles Vertex/Fragment, the software device runs Pixel.
type ShaderSource struct {
	Vertex   string
	Fragment string
	Pixel    func(c color.RGBA, x, y int, pass int) color.RGBA
}

// CompositeParams is everything the presenter needs to blit one front buffer
// onto the display surface.
type CompositeParams struct {
	// Transform maps source pixel coordinates to display pixel coordinates
	Transform mgl32.Mat3
	Filter    FilterMode
	Shader    ShaderID

	Scanlines           float32
	Noise               float32
	NoiseSeed           uint32
	Saturation          float32
	Curvature           float32
	ChromaticAberration float32
	Negative            float32
	Pixelate            int

	Fade      float32
	FadeColor color.RGBA
	Tint      float32
	TintColor color.RGBA

	Fizzle      float32
	FizzleColor color.RGBA
	FizzleSeed  uint32

	// Wipe covers part of the source with WipeColor, in source pixels
	Wipe      image.Rectangle
	WipeColor color.RGBA
}

// Device is the narrow GPU surface the renderer draws through.
// All methods are called from the rendering goroutine only.
type Device interface {
	NewTexture(img *image.RGBA) (TextureID, error)
	UpdateTexture(id TextureID, img *image.RGBA) error
	NewRenderTarget(width, height int) (TextureID, error)
	DeleteTexture(id TextureID)
	TextureSize(id TextureID) (int, int)
	ReadPixels(id TextureID) (*image.RGBA, error)

	NewMesh(maxVertices, maxIndices int) (MeshID, error)
	UploadMesh(id MeshID, vertices []Vertex, indices []uint16) error
	DeleteMesh(id MeshID)

	NewShader(src ShaderSource) (ShaderID, error)

	SetTarget(id TextureID)
	Clear(c color.RGBA)
	Draw(call DrawCall) error

	DisplaySize() (int, int)
	Composite(src TextureID, params CompositeParams) error
	Present() error
}
