package thicket

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// ProgramHandle identifies a compiled GPU program inside a GPUContext.
type ProgramHandle uint32

// PassTarget selects the surface a pass draws into.
type PassTarget uint8

const (
	TargetCanvas    PassTarget = iota // the visible canvas
	TargetPick                        // offscreen id-color pick buffer
	TargetPickDepth                   // offscreen depth-encoded ray pick buffer
)

// DrawState is everything a single draw needs beyond the bound program,
// textures and geometry.
type DrawState struct {
	Model, View, Proj mgl32.Mat4
	Morph             *Morph // nil when the node has no morph targets
	Clips             []ClipPlane
	Backfaces         bool
	Uniforms          map[string]any
}

// GPUContext is the driver a Renderer executes its plan on. Calls are
// synchronous from the renderer's point of view.
type GPUContext interface {
	// CompileProgram compiles and links one program.
	CompileProgram(source []byte) (ProgramHandle, error)
	DeleteProgram(h ProgramHandle)

	// CanvasSize returns the canvas size in pixels.
	CanvasSize() (w, h int)

	// BeginPass binds a target and optionally clears it.
	BeginPass(target PassTarget, clear bool, clearColor Color)
	EndPass()

	UseProgram(h ProgramHandle)
	BindTextures(layers []TextureLayer)
	BindGeometry(g *Geometry)
	SetBlend(mode BlendMode)
	Draw(ds *DrawState)

	// ReadPixel returns the RGBA bytes of one pixel of a target.
	ReadPixel(target PassTarget, x, y int) [4]uint8
}

// TargetImager is implemented by GPU contexts that can expose a target as
// an image, for debugging dumps.
type TargetImager interface {
	TargetImage(target PassTarget) image.Image
}
