// Package glgpu implements gpu.Device on OpenGL 4.1 core. Render targets are
// framebuffer objects whose texture row 0 is the top pixel row, the same
// orientation uploaded images have, so targets can be sampled like any other
// texture. Only the default framebuffer is flipped.
package glgpu

import (
	"image"
	"image/color"
	"math"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/pkg/errors"

	"retrogfx/internal/util"
	"retrogfx/pkg/gpu"
)

type texture struct {
	id   uint32
	fbo  uint32
	w, h int
}

type mesh struct {
	vao, vbo, ebo uint32
	vCap, iCap    int
}

type shaderRole int

const (
	roleSprite shaderRole = iota
	roleComposite
)

type shaderKey struct {
	id   gpu.ShaderID
	role shaderRole
}

// Device draws through the current OpenGL context. It must be created and
// used on the goroutine owning that context.
type Device struct {
	width, height int
	swap          func()

	textures map[gpu.TextureID]*texture
	meshes   map[gpu.MeshID]*mesh
	sources  map[gpu.ShaderID]gpu.ShaderSource
	programs map[shaderKey]*program

	nextTexture gpu.TextureID
	nextMesh    gpu.MeshID
	nextShader  gpu.ShaderID

	target gpu.TextureID

	quadVAO, quadVBO uint32
}

// New initialises OpenGL for the current context. width and height are the
// framebuffer size; swap is called by Present.
func New(width, height int, swap func()) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing OpenGL")
	}
	d := &Device{
		width:    width,
		height:   height,
		swap:     swap,
		textures: make(map[gpu.TextureID]*texture),
		meshes:   make(map[gpu.MeshID]*mesh),
		sources:  make(map[gpu.ShaderID]gpu.ShaderSource),
		programs: make(map[shaderKey]*program),
	}

	gl.Enable(gl.BLEND)
	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.ClearColor(0.0, 0.0, 0.0, 1.0)

	var err error
	if d.programs[shaderKey{gpu.DefaultShader, roleSprite}], err = createProgram(spriteVertexShaderSource, spriteFragmentShaderSource); err != nil {
		return nil, err
	}
	if d.programs[shaderKey{gpu.DefaultShader, roleComposite}], err = createProgram(compositeVertexShaderSource, compositeFragmentShaderSource); err != nil {
		return nil, err
	}
	d.setupQuad()
	d.SetTarget(gpu.Display)
	return d, nil
}

// setupQuad creates the streaming quad front buffers are composited with
func (d *Device) setupQuad() {
	gl.GenVertexArrays(1, &d.quadVAO)
	gl.GenBuffers(1, &d.quadVBO)

	gl.BindVertexArray(d.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, 4*4*4, nil, gl.STREAM_DRAW)

	// display position, source position
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(2*4))
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
}

// SetDisplaySize records a new framebuffer size, e.g. from a resize callback
func (d *Device) SetDisplaySize(width, height int) {
	d.width, d.height = width, height
	if d.target == gpu.Display {
		gl.Viewport(0, 0, int32(width), int32(height))
	}
}

// DisplaySize returns the framebuffer size
func (d *Device) DisplaySize() (int, int) {
	return d.width, d.height
}

func (d *Device) allocTexture(w, h int, pix []uint8) gpu.TextureID {
	t := &texture{w: w, h: h}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	var ptr unsafe.Pointer
	if len(pix) > 0 {
		ptr = gl.Ptr(pix)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, ptr)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	d.nextTexture++
	d.textures[d.nextTexture] = t
	return d.nextTexture
}

// tightPixels returns img's pixels without row padding
func tightPixels(img *image.RGBA) []uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if img.Stride == w*4 && b.Min == (image.Point{}) {
		return img.Pix[:w*h*4]
	}
	out := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*w*4:(y+1)*w*4], img.Pix[i:i+w*4])
	}
	return out
}

// NewTexture uploads img
func (d *Device) NewTexture(img *image.RGBA) (gpu.TextureID, error) {
	if img == nil {
		return 0, errors.New("nil texture image")
	}
	b := img.Bounds()
	if b.Empty() {
		return 0, errors.Errorf("empty texture image %v", b)
	}
	return d.allocTexture(b.Dx(), b.Dy(), tightPixels(img)), nil
}

// UpdateTexture replaces a texture's pixels, resizing it if needed
func (d *Device) UpdateTexture(id gpu.TextureID, img *image.RGBA) error {
	t, ok := d.textures[id]
	if !ok {
		return errors.Errorf("unknown texture %d", id)
	}
	b := img.Bounds()
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	if b.Dx() == t.w && b.Dy() == t.h {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(t.w), int32(t.h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(tightPixels(img)))
		return nil
	}
	t.w, t.h = b.Dx(), b.Dy()
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(t.w), int32(t.h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(tightPixels(img)))
	return nil
}

// NewRenderTarget creates a transparent texture with a framebuffer attached
func (d *Device) NewRenderTarget(width, height int) (gpu.TextureID, error) {
	if width <= 0 || height <= 0 {
		return 0, errors.Errorf("invalid render target size %dx%d", width, height)
	}
	id := d.allocTexture(width, height, nil)
	if _, err := d.framebuffer(d.textures[id]); err != nil {
		d.DeleteTexture(id)
		return 0, err
	}
	return id, nil
}

// framebuffer returns the FBO of t, creating it on first use
func (d *Device) framebuffer(t *texture) (uint32, error) {
	if t.fbo != 0 {
		return t.fbo, nil
	}
	gl.GenFramebuffers(1, &t.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.id, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	d.bindTarget()
	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &t.fbo)
		t.fbo = 0
		return 0, errors.Errorf("framebuffer not complete: 0x%x", status)
	}
	return t.fbo, nil
}

// DeleteTexture releases a texture. Deleting the bound target rebinds the display.
func (d *Device) DeleteTexture(id gpu.TextureID) {
	t, ok := d.textures[id]
	if !ok {
		return
	}
	if d.target == id {
		d.SetTarget(gpu.Display)
	}
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
	}
	gl.DeleteTextures(1, &t.id)
	delete(d.textures, id)
}

// TextureSize returns the pixel size of a texture, or 0,0 if unknown
func (d *Device) TextureSize(id gpu.TextureID) (int, int) {
	if id == gpu.Display {
		return d.width, d.height
	}
	if t, ok := d.textures[id]; ok {
		return t.w, t.h
	}
	return 0, 0
}

// ReadPixels reads a texture or the display back into memory
func (d *Device) ReadPixels(id gpu.TextureID) (*image.RGBA, error) {
	var fbo uint32
	w, h := d.width, d.height
	if id != gpu.Display {
		t, ok := d.textures[id]
		if !ok {
			return nil, errors.Errorf("unknown texture %d", id)
		}
		var err error
		if fbo, err = d.framebuffer(t); err != nil {
			return nil, err
		}
		w, h = t.w, t.h
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	d.bindTarget()

	if id == gpu.Display {
		// the default framebuffer has its first row at the bottom
		row := make([]uint8, w*4)
		for y := 0; y < h/2; y++ {
			a := img.Pix[y*img.Stride : y*img.Stride+w*4]
			b := img.Pix[(h-1-y)*img.Stride : (h-1-y)*img.Stride+w*4]
			copy(row, a)
			copy(a, b)
			copy(b, row)
		}
	}
	return img, nil
}

// NewMesh allocates a vertex array with fixed capacity buffers
func (d *Device) NewMesh(maxVertices, maxIndices int) (gpu.MeshID, error) {
	if maxVertices <= 0 || maxIndices <= 0 || maxVertices > 1<<16 {
		return 0, errors.Errorf("invalid mesh capacity %d/%d", maxVertices, maxIndices)
	}
	m := &mesh{vCap: maxVertices, iCap: maxIndices}
	gl.GenVertexArrays(1, &m.vao)
	gl.GenBuffers(1, &m.vbo)
	gl.GenBuffers(1, &m.ebo)

	gl.BindVertexArray(m.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, maxVertices*gpu.VertexStride, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, maxIndices*2, nil, gl.DYNAMIC_DRAW)

	// position, colour, local uv, atlas region
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, gpu.VertexStride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 4, gl.UNSIGNED_BYTE, true, gpu.VertexStride, gl.PtrOffset(12))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, gpu.VertexStride, gl.PtrOffset(16))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(3, 4, gl.FLOAT, false, gpu.VertexStride, gl.PtrOffset(24))
	gl.EnableVertexAttribArray(3)

	gl.BindVertexArray(0)

	d.nextMesh++
	d.meshes[d.nextMesh] = m
	return d.nextMesh, nil
}

// UploadMesh copies geometry into the start of a mesh's buffers
func (d *Device) UploadMesh(id gpu.MeshID, vertices []gpu.Vertex, indices []uint16) error {
	m, ok := d.meshes[id]
	if !ok {
		return errors.Errorf("unknown mesh %d", id)
	}
	if len(vertices) > m.vCap || len(indices) > m.iCap {
		return errors.Errorf("mesh %d holds %d/%d, got %d/%d", id, m.vCap, m.iCap, len(vertices), len(indices))
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return nil
	}
	gl.BindVertexArray(m.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertices)*gpu.VertexStride, gl.Ptr(&vertices[0]))
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, 0, len(indices)*2, gl.Ptr(&indices[0]))
	gl.BindVertexArray(0)
	return nil
}

// DeleteMesh releases a mesh
func (d *Device) DeleteMesh(id gpu.MeshID) {
	m, ok := d.meshes[id]
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &m.vao)
	gl.DeleteBuffers(1, &m.vbo)
	gl.DeleteBuffers(1, &m.ebo)
	delete(d.meshes, id)
}

// NewShader registers a program. Sources are compiled on first use, against
// the sprite or composite vertex shader when Vertex is empty.
func (d *Device) NewShader(src gpu.ShaderSource) (gpu.ShaderID, error) {
	if src.Fragment == "" {
		return 0, errors.New("shader has no fragment source")
	}
	d.nextShader++
	d.sources[d.nextShader] = src
	return d.nextShader, nil
}

func (d *Device) program(id gpu.ShaderID, role shaderRole) (*program, error) {
	key := shaderKey{id, role}
	if p, ok := d.programs[key]; ok {
		return p, nil
	}
	src, ok := d.sources[id]
	if !ok {
		return nil, errors.Errorf("unknown shader %d", id)
	}
	vs := src.Vertex
	if vs == "" {
		vs = spriteVertexShaderSource
		if role == roleComposite {
			vs = compositeVertexShaderSource
		}
	}
	p, err := createProgram(vs, src.Fragment)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %d", id)
	}
	d.programs[key] = p
	return p, nil
}

// SetTarget binds the render target subsequent draws and clears go to
func (d *Device) SetTarget(id gpu.TextureID) {
	if _, ok := d.textures[id]; !ok {
		id = gpu.Display
	}
	d.target = id
	d.bindTarget()
}

func (d *Device) bindTarget() {
	if d.target == gpu.Display {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.Viewport(0, 0, int32(d.width), int32(d.height))
		// the flip to a y-up framebuffer reverses winding
		gl.FrontFace(gl.CW)
		return
	}
	t := d.textures[d.target]
	fbo, err := d.framebuffer(t)
	if err != nil {
		d.target = gpu.Display
		d.bindTarget()
		return
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.Viewport(0, 0, int32(t.w), int32(t.h))
	gl.FrontFace(gl.CCW)
}

// Clear fills the bound target, replacing alpha as well
func (d *Device) Clear(c color.RGBA) {
	gl.Disable(gl.SCISSOR_TEST)
	a := float32(c.A) / 255
	gl.ClearColor(float32(c.R)/255*a, float32(c.G)/255*a, float32(c.B)/255*a, a)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// scissor sets the scissor box from a rectangle in target pixels
func (d *Device) scissor(r image.Rectangle) {
	w, h := d.TextureSize(d.target)
	r = r.Intersect(image.Rect(0, 0, w, h))
	gl.Enable(gl.SCISSOR_TEST)
	y := r.Min.Y
	if d.target == gpu.Display {
		y = h - r.Max.Y
	}
	gl.Scissor(int32(r.Min.X), int32(y), int32(r.Dx()), int32(r.Dy()))
}

// Draw draws indexed triangles from a mesh into the bound target
func (d *Device) Draw(call gpu.DrawCall) error {
	m, ok := d.meshes[call.Mesh]
	if !ok {
		return errors.Errorf("unknown mesh %d", call.Mesh)
	}
	if call.IndexCount > m.iCap {
		return errors.Errorf("draw of %d indices from mesh holding %d", call.IndexCount, m.iCap)
	}
	p, err := d.program(call.Shader, roleSprite)
	if err != nil {
		return err
	}

	w, h := d.TextureSize(d.target)
	flip := float32(1)
	if d.target == gpu.Display {
		flip = -1
	}
	gl.UseProgram(p.id)
	gl.Uniform2f(p.loc("targetSize"), float32(w), float32(h))
	gl.Uniform1f(p.loc("flipY"), flip)
	gl.Uniform1i(p.loc("pass"), int32(call.Pass))

	textured := int32(0)
	if call.Texture != 0 {
		t, ok := d.textures[call.Texture]
		if !ok {
			return errors.Errorf("unknown texture %d", call.Texture)
		}
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, t.id)
		gl.Uniform1i(p.loc("atlas"), 0)
		textured = 1
	}
	gl.Uniform1i(p.loc("textured"), textured)

	if call.Scissor.Empty() {
		gl.Disable(gl.SCISSOR_TEST)
	} else {
		d.scissor(call.Scissor)
	}
	// straight alpha in, premultiplied out
	gl.Enable(gl.CULL_FACE)
	gl.BlendFuncSeparate(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA, gl.ONE, gl.ONE_MINUS_SRC_ALPHA)

	gl.BindVertexArray(m.vao)
	gl.DrawElements(gl.TRIANGLES, int32(call.IndexCount), gl.UNSIGNED_SHORT, gl.PtrOffset(0))
	gl.BindVertexArray(0)
	return nil
}

// Composite draws a front buffer onto the display through the composite shader
func (d *Device) Composite(src gpu.TextureID, params gpu.CompositeParams) error {
	t, ok := d.textures[src]
	if !ok {
		return errors.Errorf("unknown composite source %d", src)
	}
	p, err := d.program(params.Shader, roleComposite)
	if err != nil {
		return err
	}
	if d.target != gpu.Display {
		d.SetTarget(gpu.Display)
	}

	sw, sh := float32(t.w), float32(t.h)
	corners := [4][2]float32{{0, 0}, {sw, 0}, {sw, sh}, {0, sh}}
	quad := make([]float32, 0, 16)
	for _, c := range corners {
		x, y := util.Transform2D(params.Transform, c[0], c[1])
		quad = append(quad, x, y, c[0], c[1])
	}

	gl.UseProgram(p.id)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	filter := int32(gl.NEAREST)
	if params.Filter == gpu.FilterLinear {
		filter = gl.LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	d.setCompositeUniforms(p, params, sw, sh)

	gl.Disable(gl.SCISSOR_TEST)
	gl.Disable(gl.CULL_FACE)
	gl.BlendFunc(gl.ONE, gl.ONE_MINUS_SRC_ALPHA)

	gl.BindVertexArray(d.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.quadVBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(quad)*4, gl.Ptr(quad))
	gl.DrawArrays(gl.TRIANGLE_FAN, 0, 4)
	gl.BindVertexArray(0)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	return nil
}

func uniformColor(loc int32, c color.RGBA) {
	gl.Uniform4f(loc, float32(c.R)/255, float32(c.G)/255, float32(c.B)/255, float32(c.A)/255)
}

func (d *Device) setCompositeUniforms(p *program, c gpu.CompositeParams, sw, sh float32) {
	m := c.Transform
	rows := max(math.Round(math.Hypot(float64(m[3]), float64(m[4]))), 1)
	pixelate := int32(max(c.Pixelate, 1))

	gl.Uniform1i(p.loc("screenTexture"), 0)
	gl.Uniform2f(p.loc("sourceSize"), sw, sh)
	gl.Uniform2f(p.loc("displaySize"), float32(d.width), float32(d.height))
	gl.Uniform1f(p.loc("scanlineRows"), float32(rows))
	gl.Uniform1f(p.loc("rowOffset"), m[7])

	gl.Uniform1f(p.loc("scanlines"), c.Scanlines)
	gl.Uniform1f(p.loc("noiseAmount"), c.Noise)
	gl.Uniform1ui(p.loc("noiseSeed"), c.NoiseSeed)
	gl.Uniform1f(p.loc("saturation"), c.Saturation)
	gl.Uniform1f(p.loc("curvature"), c.Curvature)
	gl.Uniform1f(p.loc("aberration"), c.ChromaticAberration)
	gl.Uniform1f(p.loc("negative"), c.Negative)
	gl.Uniform1i(p.loc("pixelSize"), pixelate)

	gl.Uniform1f(p.loc("fade"), c.Fade)
	uniformColor(p.loc("fadeColor"), c.FadeColor)
	gl.Uniform1f(p.loc("tintAmount"), c.Tint)
	uniformColor(p.loc("tintColor"), c.TintColor)

	gl.Uniform1f(p.loc("fizzle"), c.Fizzle)
	uniformColor(p.loc("fizzleColor"), c.FizzleColor)
	gl.Uniform1ui(p.loc("fizzleSeed"), c.FizzleSeed)

	w := c.Wipe
	gl.Uniform4f(p.loc("wipe"), float32(w.Min.X), float32(w.Min.Y), float32(w.Max.X), float32(w.Max.Y))
	uniformColor(p.loc("wipeColor"), c.WipeColor)
}

// Present swaps the window buffers
func (d *Device) Present() error {
	if d.swap != nil {
		d.swap()
	}
	if code := gl.GetError(); code != gl.NO_ERROR {
		return errors.Errorf("OpenGL error 0x%x", code)
	}
	return nil
}

// Close releases every GL object the device created
func (d *Device) Close() {
	for id := range d.textures {
		d.DeleteTexture(id)
	}
	for id := range d.meshes {
		d.DeleteMesh(id)
	}
	for _, p := range d.programs {
		p.delete()
	}
	d.programs = map[shaderKey]*program{}
	gl.DeleteVertexArrays(1, &d.quadVAO)
	gl.DeleteBuffers(1, &d.quadVBO)
}
