package glbackend

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// CommandList executes commands immediately against the GL context.
type CommandList struct {
	device *Device
	vao    uint32

	pile     *Pile
	rs       *RootSignature
	pipeline *Pipeline
	index    gpu.IndexBufferView
	vertex   []gpu.VertexBufferView
	enabled  int

	// Draws counts DrawIndexed calls since the last ResetStats.
	Draws int
}

// NewCommandList returns a command list with its own vertex array object.
func (d *Device) NewCommandList() *CommandList {
	cl := &CommandList{device: d}
	gl.GenVertexArrays(1, &cl.vao)
	return cl
}

// ResetStats clears the draw counter.
func (c *CommandList) ResetStats() { c.Draws = 0 }

// SetDescriptorPile implements gpu.CommandList.
func (c *CommandList) SetDescriptorPile(pile gpu.DescriptorPile) {
	p, ok := pile.(*Pile)
	if !ok {
		logger.Warn("foreign descriptor pile ignored")
		return
	}
	c.pile = p
}

// SetIndexBuffer implements gpu.CommandList.
func (c *CommandList) SetIndexBuffer(view gpu.IndexBufferView) {
	c.index = view
}

// SetVertexBuffers implements gpu.CommandList.
func (c *CommandList) SetVertexBuffers(first int, views []gpu.VertexBufferView) {
	if n := first + len(views); n > len(c.vertex) {
		c.vertex = append(c.vertex, make([]gpu.VertexBufferView, n-len(c.vertex))...)
	}
	copy(c.vertex[first:], views)
}

// SetRootSignature implements gpu.CommandList. Static samplers are bound to
// the texture unit of their register.
func (c *CommandList) SetRootSignature(rs gpu.RootSignature) {
	r, ok := rs.(*RootSignature)
	if !ok {
		logger.Warn("foreign root signature ignored")
		return
	}
	c.rs = r
	for reg, id := range r.samplers {
		gl.BindSampler(uint32(reg), id)
	}
}

func (c *CommandList) parameter(index int, kind gpu.ParameterKind) (gpu.RootParameter, bool) {
	if c.rs == nil || index < 0 || index >= len(c.rs.desc.Parameters) {
		return gpu.RootParameter{}, false
	}
	p := c.rs.desc.Parameters[index]
	return p, p.Kind == kind
}

// SetRootConstantBuffer implements gpu.CommandList.
func (c *CommandList) SetRootConstantBuffer(index int, addr gpu.Address) {
	p, ok := c.parameter(index, gpu.ParamConstantBuffer)
	if !ok || addr == 0 {
		return
	}
	id, offset := decodeAddress(addr)
	buf, ok := c.device.buffers[id]
	if !ok || offset >= buf.size {
		logger.Warn("constant buffer address not found", zap.Uint64("address", uint64(addr)))
		return
	}
	gl.BindBufferRange(gl.UNIFORM_BUFFER, uint32(p.Register), id, offset, min(buf.size-offset, maxUniformBlock))
}

// SetRootDescriptorTable implements gpu.CommandList.
func (c *CommandList) SetRootDescriptorTable(index int, handle gpu.DescriptorHandle) {
	p, ok := c.parameter(index, gpu.ParamDescriptorTable)
	if !ok || handle == 0 {
		return
	}
	pile, slot, ok := c.device.pile(handle)
	if !ok {
		logger.Warn("descriptor handle not found", zap.Uint64("handle", uint64(handle)))
		return
	}
	for i := range max(p.Count, 1) {
		var id uint32
		if s := slot + i; s < len(pile.slots) && pile.slots[s] != nil {
			id = pile.slots[s].id
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(p.Register+i))
		gl.BindTexture(gl.TEXTURE_2D, id)
	}
	gl.ActiveTexture(gl.TEXTURE0)
}

// SetPipeline implements gpu.CommandList.
func (c *CommandList) SetPipeline(p gpu.Pipeline) {
	pl, ok := p.(*Pipeline)
	if !ok {
		logger.Warn("foreign pipeline ignored")
		return
	}
	c.pipeline = pl
	gl.UseProgram(pl.program)
	applyState(pl.desc)
}

func applyState(d gpu.PipelineDesc) {
	switch d.Cull {
	case gpu.CullNone:
		gl.Disable(gl.CULL_FACE)
	case gpu.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	case gpu.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}

	if d.Blend {
		gl.Enable(gl.BLEND)
		gl.BlendFuncSeparate(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA, gl.ONE, gl.ONE_MINUS_SRC_ALPHA)
	} else {
		gl.Disable(gl.BLEND)
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthMask(d.DepthWrite)
	gl.DepthFunc(compareFunc(d.DepthFunc))
}

// DrawIndexed implements gpu.CommandList. Instances start at zero; GL 4.1
// has no base instance.
func (c *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance int) {
	if c.pipeline == nil {
		return
	}
	gl.BindVertexArray(c.vao)

	layout := c.pipeline.desc.InputLayout
	for loc, e := range layout {
		if e.Slot >= len(c.vertex) {
			gl.DisableVertexAttribArray(uint32(loc))
			continue
		}
		v := c.vertex[e.Slot]
		vf := vertexFormats[e.Format]
		id, offset := decodeAddress(v.Address)
		gl.BindBuffer(gl.ARRAY_BUFFER, id)
		gl.EnableVertexAttribArray(uint32(loc))
		if vf.integer {
			gl.VertexAttribIPointer(uint32(loc), vf.size, vf.xtype, int32(v.Stride), gl.PtrOffset(offset))
		} else {
			gl.VertexAttribPointer(uint32(loc), vf.size, vf.xtype, vf.normalized, int32(v.Stride), gl.PtrOffset(offset))
		}
	}
	for loc := len(layout); loc < c.enabled; loc++ {
		gl.DisableVertexAttribArray(uint32(loc))
	}
	c.enabled = len(layout)

	xtype, size := indexType(c.index.Format)
	id, offset := decodeAddress(c.index.Address)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, id)
	gl.DrawElementsInstancedBaseVertex(gl.TRIANGLES, int32(indexCount), xtype,
		gl.PtrOffset(offset+firstIndex*size), int32(max(instanceCount, 1)), int32(baseVertex))
	c.Draws++
}
