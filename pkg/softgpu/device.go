// Package softgpu is a CPU implementation of gpu.Device. It rasterises the
// engine's triangles with the same fill conventions as the OpenGL device and
// keeps every texture as an *image.RGBA, so frames can be read back, saved as
// PNG snapshots or shown in a terminal.
package softgpu

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/pkg/errors"

	"retrogfx/pkg/gpu"
)

type mesh struct {
	vertices []gpu.Vertex
	indices  []uint16
	vCap     int
	iCap     int
}

// Device is a software gpu.Device
type Device struct {
	display  *image.RGBA
	textures map[gpu.TextureID]*image.RGBA
	meshes   map[gpu.MeshID]*mesh
	shaders  map[gpu.ShaderID]gpu.ShaderSource

	nextTexture gpu.TextureID
	nextMesh    gpu.MeshID
	nextShader  gpu.ShaderID

	target gpu.TextureID

	// TextureLimit makes texture/target creation fail once that many are alive.
	// Zero means unlimited.
	TextureLimit int
	// MeshLimit does the same for meshes
	MeshLimit int

	draws    int
	uploads  int
	presents int
}

// New creates a software device whose display surface is width x height
func New(width, height int) *Device {
	return &Device{
		display:  image.NewRGBA(image.Rect(0, 0, width, height)),
		textures: make(map[gpu.TextureID]*image.RGBA),
		meshes:   make(map[gpu.MeshID]*mesh),
		shaders:  make(map[gpu.ShaderID]gpu.ShaderSource),
	}
}

// Resize replaces the display surface
func (d *Device) Resize(width, height int) {
	d.display = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Image returns the display surface. It is overwritten by the next frame.
func (d *Device) Image() *image.RGBA {
	return d.display
}

// Stats returns the number of draws, mesh uploads and presents so far
func (d *Device) Stats() (draws, uploads, presents int) {
	return d.draws, d.uploads, d.presents
}

// Texture returns the backing image of a texture or render target
func (d *Device) Texture(id gpu.TextureID) *image.RGBA {
	if id == gpu.Display {
		return d.display
	}
	return d.textures[id]
}

func (d *Device) allocTexture(img *image.RGBA) (gpu.TextureID, error) {
	if d.TextureLimit > 0 && len(d.textures) >= d.TextureLimit {
		return 0, errors.Errorf("texture limit of %d reached", d.TextureLimit)
	}
	d.nextTexture++
	d.textures[d.nextTexture] = img
	return d.nextTexture, nil
}

// NewTexture uploads a copy of img
func (d *Device) NewTexture(img *image.RGBA) (gpu.TextureID, error) {
	if img == nil {
		return 0, errors.New("nil texture image")
	}
	b := img.Bounds()
	cp := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(cp, cp.Bounds(), img, b.Min, draw.Src)
	return d.allocTexture(cp)
}

// UpdateTexture replaces the contents of a texture, resizing it if needed
func (d *Device) UpdateTexture(id gpu.TextureID, img *image.RGBA) error {
	if _, ok := d.textures[id]; !ok {
		return errors.Errorf("unknown texture %d", id)
	}
	b := img.Bounds()
	cp := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(cp, cp.Bounds(), img, b.Min, draw.Src)
	d.textures[id] = cp
	return nil
}

// NewRenderTarget creates a transparent target
func (d *Device) NewRenderTarget(width, height int) (gpu.TextureID, error) {
	if width <= 0 || height <= 0 {
		return 0, errors.Errorf("invalid render target size %dx%d", width, height)
	}
	return d.allocTexture(image.NewRGBA(image.Rect(0, 0, width, height)))
}

// DeleteTexture releases a texture. Deleting the bound target rebinds the display.
func (d *Device) DeleteTexture(id gpu.TextureID) {
	delete(d.textures, id)
	if d.target == id {
		d.target = gpu.Display
	}
}

// TextureSize returns the pixel size of a texture, or 0,0 if unknown
func (d *Device) TextureSize(id gpu.TextureID) (int, int) {
	img := d.Texture(id)
	if img == nil {
		return 0, 0
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

// ReadPixels returns a copy of a texture's contents
func (d *Device) ReadPixels(id gpu.TextureID) (*image.RGBA, error) {
	img := d.Texture(id)
	if img == nil {
		return nil, errors.Errorf("unknown texture %d", id)
	}
	cp := image.NewRGBA(img.Bounds())
	copy(cp.Pix, img.Pix)
	return cp, nil
}

// NewMesh allocates vertex and index storage
func (d *Device) NewMesh(maxVertices, maxIndices int) (gpu.MeshID, error) {
	if d.MeshLimit > 0 && len(d.meshes) >= d.MeshLimit {
		return 0, errors.Errorf("mesh limit of %d reached", d.MeshLimit)
	}
	d.nextMesh++
	d.meshes[d.nextMesh] = &mesh{
		vertices: make([]gpu.Vertex, 0, maxVertices),
		indices:  make([]uint16, 0, maxIndices),
		vCap:     maxVertices,
		iCap:     maxIndices,
	}
	return d.nextMesh, nil
}

// UploadMesh copies geometry into a mesh
func (d *Device) UploadMesh(id gpu.MeshID, vertices []gpu.Vertex, indices []uint16) error {
	m, ok := d.meshes[id]
	if !ok {
		return errors.Errorf("unknown mesh %d", id)
	}
	if len(vertices) > m.vCap || len(indices) > m.iCap {
		return errors.Errorf("mesh %d holds %d/%d, got %d/%d", id, m.vCap, m.iCap, len(vertices), len(indices))
	}
	m.vertices = append(m.vertices[:0], vertices...)
	m.indices = append(m.indices[:0], indices...)
	d.uploads++
	return nil
}

// DeleteMesh releases a mesh
func (d *Device) DeleteMesh(id gpu.MeshID) {
	delete(d.meshes, id)
}

// NewShader registers a program. Only the Pixel function is used here.
func (d *Device) NewShader(src gpu.ShaderSource) (gpu.ShaderID, error) {
	d.nextShader++
	d.shaders[d.nextShader] = src
	return d.nextShader, nil
}

// SetTarget binds the render target subsequent draws and clears go to
func (d *Device) SetTarget(id gpu.TextureID) {
	if id != gpu.Display && d.textures[id] == nil {
		id = gpu.Display
	}
	d.target = id
}

// Target returns the bound render target
func (d *Device) Target() gpu.TextureID {
	return d.target
}

// Clear fills the bound target, replacing alpha as well
func (d *Device) Clear(c color.RGBA) {
	img := d.Texture(d.target)
	draw.Draw(img, img.Bounds(), image.NewUniform(premultiply(c)), image.Point{}, draw.Src)
}

// Draw rasterises a mesh into the bound target
func (d *Device) Draw(call gpu.DrawCall) error {
	m, ok := d.meshes[call.Mesh]
	if !ok {
		return errors.Errorf("unknown mesh %d", call.Mesh)
	}
	if call.IndexCount > len(m.indices) {
		return errors.Errorf("draw of %d indices from mesh holding %d", call.IndexCount, len(m.indices))
	}
	dst := d.Texture(d.target)
	var tex *image.RGBA
	if call.Texture != 0 {
		tex = d.textures[call.Texture]
		if tex == nil {
			return errors.Errorf("unknown texture %d", call.Texture)
		}
	}
	var shade func(color.RGBA, int, int, int) color.RGBA
	if src, ok := d.shaders[call.Shader]; ok {
		shade = src.Pixel
	}

	clip := dst.Bounds()
	if !call.Scissor.Empty() {
		clip = clip.Intersect(call.Scissor)
	}
	r := rasterizer{dst: dst, tex: tex, clip: clip, shade: shade, pass: call.Pass}
	for i := 0; i+2 < call.IndexCount; i += 3 {
		r.triangle(&m.vertices[m.indices[i]], &m.vertices[m.indices[i+1]], &m.vertices[m.indices[i+2]])
	}
	d.draws++
	return nil
}

// DisplaySize returns the display surface size
func (d *Device) DisplaySize() (int, int) {
	return d.display.Bounds().Dx(), d.display.Bounds().Dy()
}

// Present finishes a frame. The display image stays readable until the next frame.
func (d *Device) Present() error {
	d.presents++
	return nil
}

func premultiply(c color.RGBA) color.RGBA {
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}
