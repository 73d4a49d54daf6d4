// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// MeshVertexShader transforms scene meshes.
//
//go:embed mesh.vert
var MeshVertexShader string

// MeshFragmentShader shades scene meshes with the metal/rough model.
//
//go:embed mesh.frag
var MeshFragmentShader string

// FullscreenVertexShader emits a screen covering triangle from gl_VertexID.
//
//go:embed fullscreen.vert
var FullscreenVertexShader string

// BrightFragmentShader keeps the parts of the frame above the bloom threshold.
//
//go:embed bright.frag
var BrightFragmentShader string

// BlurFragmentShader is one separable Gaussian blur pass.
//
//go:embed blur.frag
var BlurFragmentShader string

// CompositeFragmentShader adds bloom to the scene and tone maps the result.
//
//go:embed composite.frag
var CompositeFragmentShader string
