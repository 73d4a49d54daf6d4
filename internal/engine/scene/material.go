package scene

import "github.com/Faultbox/orbit-viewer/internal/engine/envmap"

// StandardMaterial is a metal/rough physically based material.
type StandardMaterial struct {
	Color     [3]float32
	Metalness float32
	Roughness float32

	// EnvMap is the reflection map sampled for specular lighting; nil renders
	// without image based lighting.
	EnvMap *envmap.Map
}

// NewStandardMaterial returns a white material with the given metalness and roughness.
func NewStandardMaterial(metalness, roughness float32) *StandardMaterial {
	return &StandardMaterial{
		Color:     [3]float32{1, 1, 1},
		Metalness: metalness,
		Roughness: roughness,
	}
}
