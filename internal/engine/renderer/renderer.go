// Package renderer provides OpenGL rendering functionality.
package renderer

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/orbit-viewer/internal/engine/camera"
	"github.com/Faultbox/orbit-viewer/internal/engine/envmap"
	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
	"github.com/Faultbox/orbit-viewer/internal/engine/shader"
	"github.com/Faultbox/orbit-viewer/internal/engine/shader/shaders"
	"github.com/Faultbox/orbit-viewer/internal/logger"
)

// Config holds renderer configuration.
type Config struct {
	Exposure float32
	// Ambient lights meshes whose material has no environment map.
	Ambient [3]float32
}

// Texture units used by the mesh program.
const (
	unitEnvSharp   = 0
	unitEnvBlurred = 1
)

type gpuMesh struct {
	vao, vbo, ebo uint32
	count         int32
	indexed       bool
	version       uint64
}

type gpuEnvMap struct {
	sharp, blurred uint32
}

// Renderer draws the scene graph into the default framebuffer or into a
// target bound by the caller.
type Renderer struct {
	config Config

	width      int
	height     int
	pixelRatio float64
	clear      [3]float32

	program *shader.Program
	meshes  map[*scene.Geometry]*gpuMesh
	envMaps map[*envmap.Map]*gpuEnvMap
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	if cfg.Exposure <= 0 {
		cfg.Exposure = 1
	}

	r := &Renderer{
		config:     cfg,
		pixelRatio: 1,
		meshes:     make(map[*scene.Geometry]*gpuMesh),
		envMaps:    make(map[*envmap.Map]*gpuEnvMap),
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)

	program, err := shader.New(shaders.MeshVertexShader, shaders.MeshFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh program: %w", err)
	}
	r.program = program
	logger.Debug("shader program created", zap.Uint32("program", program.ID))

	return r, nil
}

// SetPixelRatio sets physical pixels per logical pixel.
func (r *Renderer) SetPixelRatio(ratio float64) {
	if ratio <= 0 {
		ratio = 1
	}
	r.pixelRatio = ratio
}

// SetClearColor sets the background color.
func (r *Renderer) SetClearColor(rgb [3]float32) {
	r.clear = rgb
}

// ClearColor returns the background color.
func (r *Renderer) ClearColor() [3]float32 {
	return r.clear
}

// SetSize handles a surface resize. Sizes are logical pixels.
func (r *Renderer) SetSize(width, height int) {
	r.width = width
	r.height = height
	w, h := r.DrawableSize()
	gl.Viewport(0, 0, w, h)
	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int32("drawable_width", w),
		zap.Int32("drawable_height", h),
	)
}

// DrawableSize returns the size in physical pixels.
func (r *Renderer) DrawableSize() (int32, int32) {
	return drawableSize(r.width, r.height, r.pixelRatio)
}

// Exposure returns the tone mapping exposure.
func (r *Renderer) Exposure() float32 {
	return r.config.Exposure
}

// Render draws one frame into the default framebuffer.
func (r *Renderer) Render(root *scene.Node, cam *camera.Perspective) {
	w, h := r.DrawableSize()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, w, h)
	gl.ClearColor(r.clear[0], r.clear[1], r.clear[2], 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	r.DrawScene(root, cam, true)
}

// DrawScene draws every mesh under root into the bound framebuffer. With
// toneMap false the output stays linear and unexposed for a later pass.
func (r *Renderer) DrawScene(root *scene.Node, cam *camera.Perspective, toneMap bool) {
	gl.Enable(gl.DEPTH_TEST)

	p := r.program
	p.Use()
	p.SetMat4("uView", cam.ViewMatrix())
	p.SetMat4("uProjection", cam.ProjectionMatrix())
	p.SetVec3("uCameraPos", cam.Position)
	p.SetVec3("uAmbient", mgl32.Vec3(r.config.Ambient))
	p.SetBool("uToneMap", toneMap)
	if toneMap {
		p.SetFloat("uExposure", r.config.Exposure)
	} else {
		p.SetFloat("uExposure", 1)
	}
	p.SetInt("uEnvSharp", unitEnvSharp)
	p.SetInt("uEnvBlurred", unitEnvBlurred)

	root.Walk(func(n *scene.Node, world mgl32.Mat4) bool {
		if n.Kind == scene.KindMesh && n.Mesh != nil && n.Mesh.Geometry != nil {
			r.drawMesh(n.Mesh, world)
		}
		return true
	})

	gl.BindVertexArray(0)
}

func (r *Renderer) drawMesh(m *scene.Mesh, world mgl32.Mat4) {
	gm := r.upload(m.Geometry)
	if gm.count == 0 {
		return
	}

	p := r.program
	p.SetMat4("uModel", world)
	p.SetMat3("uNormalMatrix", normalMatrix(world))

	mat := m.Material
	if mat == nil {
		mat = scene.NewStandardMaterial(0, 1)
	}
	p.SetVec3("uBaseColor", mgl32.Vec3(mat.Color))
	p.SetFloat("uMetalness", mat.Metalness)
	p.SetFloat("uRoughness", mat.Roughness)

	if mat.EnvMap != nil {
		env := r.uploadEnvMap(mat.EnvMap)
		gl.ActiveTexture(gl.TEXTURE0 + unitEnvSharp)
		gl.BindTexture(gl.TEXTURE_CUBE_MAP, env.sharp)
		gl.ActiveTexture(gl.TEXTURE0 + unitEnvBlurred)
		gl.BindTexture(gl.TEXTURE_CUBE_MAP, env.blurred)
		p.SetBool("uHasEnvMap", true)
	} else {
		p.SetBool("uHasEnvMap", false)
	}

	gl.BindVertexArray(gm.vao)
	if gm.indexed {
		gl.DrawElements(gl.TRIANGLES, gm.count, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, gm.count)
	}
}

// upload creates or refreshes the GPU buffers of g.
func (r *Renderer) upload(g *scene.Geometry) *gpuMesh {
	gm, ok := r.meshes[g]
	if ok && gm.version == g.Version {
		return gm
	}
	if !ok {
		gm = &gpuMesh{}
		gl.GenVertexArrays(1, &gm.vao)
		gl.GenBuffers(1, &gm.vbo)
		gl.GenBuffers(1, &gm.ebo)
		r.meshes[g] = gm
	}
	gm.version = g.Version

	vertices := interleave(g)
	gm.count = 0
	if len(vertices) == 0 {
		return gm
	}

	gl.BindVertexArray(gm.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, gm.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)

	stride := int32(vertexStride * 4)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, unsafe.Pointer(uintptr(3*4)))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, stride, unsafe.Pointer(uintptr(6*4)))
	gl.EnableVertexAttribArray(2)

	if len(g.Indices) > 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gm.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(g.Indices)*4, gl.Ptr(g.Indices), gl.STATIC_DRAW)
		gm.indexed = true
		gm.count = int32(len(g.Indices))
	} else {
		gm.indexed = false
		gm.count = int32(len(g.Positions))
	}

	gl.BindVertexArray(0)
	logger.Debug("mesh uploaded",
		zap.Int("vertices", len(g.Positions)),
		zap.Int("indices", len(g.Indices)),
		zap.Uint64("version", g.Version),
	)
	return gm
}

func (r *Renderer) uploadEnvMap(m *envmap.Map) *gpuEnvMap {
	if env, ok := r.envMaps[m]; ok {
		return env
	}
	env := &gpuEnvMap{
		sharp:   uploadCubeMap(m.Faces, m.FaceSize),
		blurred: uploadCubeMap(m.Blurred, m.FaceSize),
	}
	r.envMaps[m] = env
	logger.Debug("environment map uploaded", zap.Int("face_size", m.FaceSize))
	return env
}

func uploadCubeMap(faces [envmap.FaceCount]*image.RGBA, size int) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, tex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	for i, face := range faces {
		gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(i), 0, gl.SRGB8_ALPHA8,
			int32(size), int32(size), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(face.Pix))
	}
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	return tex
}

// ReadPixels reads the default framebuffer into a top-down RGBA image.
func (r *Renderer) ReadPixels() *image.RGBA {
	w, h := r.DrawableSize()
	pixels := make([]byte, int(w)*int(h)*4)

	var prevFBO int32
	gl.GetIntegerv(gl.FRAMEBUFFER_BINDING, &prevFBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(prevFBO))

	return flipRows(pixels, int(w), int(h))
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer")
	for g, gm := range r.meshes {
		gl.DeleteVertexArrays(1, &gm.vao)
		gl.DeleteBuffers(1, &gm.vbo)
		gl.DeleteBuffers(1, &gm.ebo)
		delete(r.meshes, g)
	}
	for m, env := range r.envMaps {
		gl.DeleteTextures(1, &env.sharp)
		gl.DeleteTextures(1, &env.blurred)
		delete(r.envMaps, m)
	}
	if r.program != nil {
		r.program.Delete()
		r.program = nil
	}
}
