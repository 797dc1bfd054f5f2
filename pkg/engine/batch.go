package engine

import (
	"github.com/pkg/errors"

	"retrogfx/internal/util"
	"retrogfx/pkg/gpu"
)

// FlushReason tags why pending geometry was submitted
type FlushReason int

const (
	ReasonBatchFull FlushReason = iota
	ReasonStateChange
	ReasonClipChange
	ReasonTargetChange
	ReasonShaderChange
	ReasonFrameEnd
	ReasonForced
	ReasonEffectApply
	reasonCount
)

var reasonNames = [reasonCount]string{
	"batch-full",
	"state-change",
	"clip-change",
	"target-change",
	"shader-change",
	"frame-end",
	"forced",
	"effect-apply",
}

func (r FlushReason) String() string {
	if r < 0 || r >= reasonCount {
		return "unknown"
	}
	return reasonNames[r]
}

// Stats counts renderer work since the last ResetStats
type Stats struct {
	Flushes   [reasonCount]int
	DrawCalls int
	Vertices  int
	Indices   int
	Culled    int // primitives rejected by the clip test
}

// TotalFlushes sums the flush counters of every reason
func (s Stats) TotalFlushes() int {
	n := 0
	for _, f := range s.Flushes {
		n += f
	}
	return n
}

// batch is the CPU side vertex/index storage primitives are written into
type batch struct {
	vertices []gpu.Vertex
	indices  []uint16
	nv, ni   int
}

func newBatch(maxVertices int) *batch {
	return &batch{
		vertices: make([]gpu.Vertex, maxVertices),
		indices:  make([]uint16, maxVertices*indicesPerVertex),
	}
}

// filled triangles use six indices for three vertices
const indicesPerVertex = 2

const (
	// minBatchVertices holds the largest single primitive, a quad
	minBatchVertices = 4
	// maxBatchVertices is the uint16 index range
	maxBatchVertices = 1 << 16
)

func (b *batch) fits(nv, ni int) bool {
	return b.nv+nv <= len(b.vertices) && b.ni+ni <= len(b.indices)
}

func (b *batch) empty() bool {
	return b.ni == 0
}

func (b *batch) reset() {
	b.nv, b.ni = 0, 0
}

type pooledMesh struct {
	id         gpu.MeshID
	vCap, iCap int
}

// meshPool holds device meshes in power of two size classes, smallest first
type meshPool struct {
	meshes []pooledMesh
}

func newMeshPool(dev gpu.Device, maxVertices, minVertices int) (*meshPool, error) {
	maxVertices = util.NextPow2(maxVertices)
	minVertices = util.NextPow2(minVertices)
	p := &meshPool{}
	for v := minVertices; v <= maxVertices; v <<= 1 {
		id, err := dev.NewMesh(v, v*indicesPerVertex)
		if err != nil {
			p.release(dev)
			return nil, errors.Wrapf(err, "allocating %d vertex mesh", v)
		}
		p.meshes = append(p.meshes, pooledMesh{id: id, vCap: v, iCap: v * indicesPerVertex})
	}
	if len(p.meshes) == 0 {
		return nil, errors.New("empty mesh pool")
	}
	return p, nil
}

// fit returns the smallest mesh holding nv vertices and ni indices
func (p *meshPool) fit(nv, ni int) (pooledMesh, bool) {
	for _, m := range p.meshes {
		if m.vCap >= nv && m.iCap >= ni {
			return m, true
		}
	}
	return pooledMesh{}, false
}

func (p *meshPool) largest() pooledMesh {
	return p.meshes[len(p.meshes)-1]
}

func (p *meshPool) release(dev gpu.Device) {
	for _, m := range p.meshes {
		dev.DeleteMesh(m.id)
	}
	p.meshes = nil
}

// reserve makes room for one primitive, flushing first when it does not fit.
// It returns the index of the first vertex the primitive will write.
func (r *Renderer) reserve(nv, ni int) int {
	if !r.batch.fits(nv, ni) {
		r.flush(ReasonBatchFull)
	}
	return r.batch.nv
}

// flush submits pending geometry. It is a no-op on an empty batch and never
// changes draw state.
func (r *Renderer) flush(reason FlushReason) {
	if err := r.submit(reason); err != nil {
		r.log.ErrorOncef("flush:"+err.Error(), "flush (%s) failed: %v", reason, err)
	}
}

func (r *Renderer) submit(reason FlushReason) error {
	b := r.batch
	if b.empty() {
		return nil
	}
	defer b.reset()

	m, ok := r.pool.fit(b.nv, b.ni)
	if !ok {
		return errors.Errorf("no pooled mesh holds %d vertices", b.nv)
	}
	if err := r.dev.UploadMesh(m.id, b.vertices[:b.nv], b.indices[:b.ni]); err != nil {
		return errors.Wrap(err, "uploading batch")
	}

	passes := max(r.material.Passes, 1)
	for pass := 0; pass < passes; pass++ {
		err := r.dev.Draw(gpu.DrawCall{
			Mesh:       m.id,
			IndexCount: b.ni,
			Texture:    r.texture.ID,
			Shader:     r.material.Shader,
			Pass:       pass,
			Scissor:    r.clip.scissor(),
		})
		if err != nil {
			return errors.Wrapf(err, "drawing pass %d", pass)
		}
		r.stats.DrawCalls++
	}
	r.stats.Flushes[reason]++
	r.stats.Vertices += b.nv
	r.stats.Indices += b.ni
	return nil
}

// Flush forces pending geometry to the device
func (r *Renderer) Flush() {
	r.flush(ReasonForced)
}

// Stats returns the counters since the last ResetStats
func (r *Renderer) Stats() Stats {
	return r.stats
}

// ResetStats zeroes the counters
func (r *Renderer) ResetStats() {
	r.stats = Stats{}
}
