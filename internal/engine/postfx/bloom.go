// Package postfx renders the scene through a bloom post-processing chain.
package postfx

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/orbit-viewer/internal/engine/camera"
	"github.com/Faultbox/orbit-viewer/internal/engine/framebuffer"
	"github.com/Faultbox/orbit-viewer/internal/engine/renderer"
	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
	"github.com/Faultbox/orbit-viewer/internal/engine/shader"
	"github.com/Faultbox/orbit-viewer/internal/engine/shader/shaders"
	"github.com/Faultbox/orbit-viewer/internal/logger"
)

// BloomOptions tunes the bloom pass.
type BloomOptions struct {
	Strength  float32 // bloom contribution added to the scene
	Radius    float32 // blur spread, 0..1
	Threshold float32 // luminance above which pixels bloom
}

// Iterations of the horizontal+vertical blur pair.
const blurPasses = 3

// Composer renders the scene into an HDR target, extracts and blurs the
// highlights at half resolution, then composites and tone maps into the
// default framebuffer.
type Composer struct {
	r    *renderer.Renderer
	opts BloomOptions

	scene *framebuffer.Framebuffer
	ping  *framebuffer.Framebuffer
	pong  *framebuffer.Framebuffer

	bright    *shader.Program
	blur      *shader.Program
	composite *shader.Program
	quadVAO   uint32
}

// NewComposer creates the targets and programs for r's current size.
func NewComposer(r *renderer.Renderer, opts BloomOptions) (*Composer, error) {
	c := &Composer{r: r, opts: opts}

	var err error
	if c.bright, err = shader.New(shaders.FullscreenVertexShader, shaders.BrightFragmentShader); err != nil {
		return nil, fmt.Errorf("bright pass: %w", err)
	}
	if c.blur, err = shader.New(shaders.FullscreenVertexShader, shaders.BlurFragmentShader); err != nil {
		c.Close()
		return nil, fmt.Errorf("blur pass: %w", err)
	}
	if c.composite, err = shader.New(shaders.FullscreenVertexShader, shaders.CompositeFragmentShader); err != nil {
		c.Close()
		return nil, fmt.Errorf("composite pass: %w", err)
	}

	w, h := r.DrawableSize()
	if c.scene, err = framebuffer.New(w, h, framebuffer.Options{HDR: true, Depth: true}); err != nil {
		c.Close()
		return nil, fmt.Errorf("scene target: %w", err)
	}
	hw, hh := framebuffer.HalfSize(w, h)
	if c.ping, err = framebuffer.New(hw, hh, framebuffer.Options{HDR: true}); err != nil {
		c.Close()
		return nil, fmt.Errorf("blur target: %w", err)
	}
	if c.pong, err = framebuffer.New(hw, hh, framebuffer.Options{HDR: true}); err != nil {
		c.Close()
		return nil, fmt.Errorf("blur target: %w", err)
	}

	// Core profile needs a bound VAO even for attribute-less draws.
	gl.GenVertexArrays(1, &c.quadVAO)

	logger.Info("bloom enabled",
		zap.Float32("strength", opts.Strength),
		zap.Float32("radius", opts.Radius),
		zap.Float32("threshold", opts.Threshold),
	)
	return c, nil
}

// SetSize resizes every target. Sizes are logical pixels; the renderer's
// pixel ratio applies.
func (c *Composer) SetSize(width, height int) {
	w, h := c.r.DrawableSize()
	c.scene.Resize(w, h)
	hw, hh := framebuffer.HalfSize(w, h)
	c.ping.Resize(hw, hh)
	c.pong.Resize(hw, hh)
	logger.Debug("bloom targets resized", zap.Int32("width", w), zap.Int32("height", h))
}

// Render draws one frame through the chain.
func (c *Composer) Render(root *scene.Node, cam *camera.Perspective) {
	bg := c.r.ClearColor()
	c.scene.Bind()
	c.scene.Clear(bg[0], bg[1], bg[2], 1)
	c.r.DrawScene(root, cam, false)

	gl.Disable(gl.DEPTH_TEST)
	gl.BindVertexArray(c.quadVAO)

	c.ping.Bind()
	c.bright.Use()
	c.bright.SetInt("uScene", 0)
	c.bright.SetFloat("uThreshold", c.opts.Threshold)
	bindTexture(0, c.scene.ColorTexture())
	drawTriangle()

	hw, hh := c.ping.Size()
	spread := 1 + c.opts.Radius*4
	c.blur.Use()
	c.blur.SetInt("uSource", 0)
	for i := 0; i < blurPasses; i++ {
		c.pong.Bind()
		c.blur.SetVec2("uDirection", spread/float32(hw), 0)
		bindTexture(0, c.ping.ColorTexture())
		drawTriangle()

		c.ping.Bind()
		c.blur.SetVec2("uDirection", 0, spread/float32(hh))
		bindTexture(0, c.pong.ColorTexture())
		drawTriangle()
	}

	w, h := c.r.DrawableSize()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, w, h)
	c.composite.Use()
	c.composite.SetInt("uScene", 0)
	c.composite.SetInt("uBloom", 1)
	c.composite.SetFloat("uStrength", c.opts.Strength)
	c.composite.SetFloat("uExposure", c.r.Exposure())
	bindTexture(0, c.scene.ColorTexture())
	bindTexture(1, c.ping.ColorTexture())
	drawTriangle()

	gl.BindVertexArray(0)
	gl.Enable(gl.DEPTH_TEST)
}

func bindTexture(unit uint32, tex uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, tex)
}

func drawTriangle() {
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
}

// Close releases the targets and programs. The renderer is left open.
func (c *Composer) Close() {
	for _, fb := range []*framebuffer.Framebuffer{c.scene, c.ping, c.pong} {
		if fb != nil {
			fb.Destroy()
		}
	}
	for _, p := range []*shader.Program{c.bright, c.blur, c.composite} {
		if p != nil {
			p.Delete()
		}
	}
	if c.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &c.quadVAO)
		c.quadVAO = 0
	}
}
