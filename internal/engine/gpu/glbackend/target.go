package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
)

// RenderTarget is an offscreen framebuffer with color textures in the
// formats a pass renders to and a depth texture.
type RenderTarget struct {
	fbo     uint32
	colors  []*Texture
	depth   *Texture
	ownsZ   bool
	formats []gpu.Format
	width   int32
	height  int32
}

// NewRenderTarget creates a framebuffer with one color texture per format.
// A nil depth allocates a D32 depth texture of the same size; a shared
// depth texture, like a shadow map, is attached as is.
func (d *Device) NewRenderTarget(width, height int, formats []gpu.Format, depth *Texture) (*RenderTarget, error) {
	rt := &RenderTarget{
		formats: formats,
		width:   int32(max(width, 1)),
		height:  int32(max(height, 1)),
		depth:   depth,
	}
	if err := rt.create(d); err != nil {
		return nil, fmt.Errorf("creating render target: %w", err)
	}
	return rt, nil
}

func (rt *RenderTarget) create(d *Device) error {
	gl.GenFramebuffers(1, &rt.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.fbo)

	rt.colors = rt.colors[:0]
	var buffers []uint32
	for i, f := range rt.formats {
		tf, ok := textureFormats[f]
		if !ok {
			rt.Destroy()
			return fmt.Errorf("%w: color format %d", gpu.ErrUnsupported, f)
		}
		t := &Texture{w: int(rt.width), h: int(rt.height), format: f}
		gl.GenTextures(1, &t.id)
		gl.BindTexture(gl.TEXTURE_2D, t.id)
		gl.TexImage2D(gl.TEXTURE_2D, 0, tf.internal, rt.width, rt.height, 0, tf.format, tf.xtype, nil)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0+uint32(i), gl.TEXTURE_2D, t.id, 0)
		rt.colors = append(rt.colors, t)
		buffers = append(buffers, gl.COLOR_ATTACHMENT0+uint32(i))
	}
	if len(buffers) > 0 {
		gl.DrawBuffers(int32(len(buffers)), &buffers[0])
	} else {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
	}

	if rt.depth == nil {
		depth, err := d.CreateDepthTexture(int(rt.width), int(rt.height))
		if err != nil {
			rt.Destroy()
			return err
		}
		rt.depth, rt.ownsZ = depth, true
	}
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, rt.depth.id, 0)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		rt.Destroy()
		return fmt.Errorf("framebuffer incomplete: 0x%x", status)
	}
	return nil
}

// Bind makes this framebuffer the current render target.
func (rt *RenderTarget) Bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.fbo)
	gl.Viewport(0, 0, rt.width, rt.height)
}

// BindViewport binds the target restricted to a sub-rectangle, as used for
// one tile of a shadow atlas.
func (rt *RenderTarget) BindViewport(x, y, w, h int32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.fbo)
	gl.Viewport(x, y, w, h)
}

// Unbind restores the default framebuffer.
func (rt *RenderTarget) Unbind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// Clear clears every color attachment to c and depth to the given value.
func (rt *RenderTarget) Clear(c [4]float32, depth float32) {
	gl.DepthMask(true)
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.ClearDepthf(depth)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Color returns color attachment i.
func (rt *RenderTarget) Color(i int) *Texture {
	return rt.colors[i]
}

// Depth returns the depth attachment.
func (rt *RenderTarget) Depth() *Texture {
	return rt.depth
}

// Size returns the framebuffer dimensions.
func (rt *RenderTarget) Size() (width, height int32) {
	return rt.width, rt.height
}

// Resize recreates the attachments if the dimensions have changed. A
// shared depth texture is kept and must be resized by its owner.
func (rt *RenderTarget) Resize(d *Device, width, height int) error {
	w, h := int32(max(width, 1)), int32(max(height, 1))
	if w == rt.width && h == rt.height {
		return nil
	}
	shared := rt.depth
	if rt.ownsZ {
		shared = nil
	}
	rt.Destroy()
	rt.width, rt.height, rt.depth = w, h, shared
	return rt.create(d)
}

// BlitToScreen copies color attachment 0 to the default framebuffer.
func (rt *RenderTarget) BlitToScreen(width, height int32) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, rt.fbo)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BlitFramebuffer(0, 0, rt.width, rt.height, 0, 0, width, height, gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// Destroy releases all OpenGL resources.
func (rt *RenderTarget) Destroy() {
	if rt.fbo != 0 {
		gl.DeleteFramebuffers(1, &rt.fbo)
		rt.fbo = 0
	}
	for _, t := range rt.colors {
		gl.DeleteTextures(1, &t.id)
	}
	rt.colors = nil
	if rt.ownsZ && rt.depth != nil {
		gl.DeleteTextures(1, &rt.depth.id)
		rt.depth, rt.ownsZ = nil, false
	}
}

// ClearScreen binds the default framebuffer over width x height and clears
// it.
func ClearScreen(width, height int32, c [4]float32, depth float32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, width, height)
	gl.DepthMask(true)
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.ClearDepthf(depth)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// ReadScreen returns the RGBA pixels of the default framebuffer, bottom
// row first.
func ReadScreen(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	if len(pixels) == 0 {
		return pixels
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels
}
