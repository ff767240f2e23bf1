package thicket

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at draw submission time.
type Color struct {
	R, G, B, A float32
}

// ColorWhite is the default base color.
var ColorWhite = Color{1, 1, 1, 1}

// ColorBlack is the default clear color.
var ColorBlack = Color{0, 0, 0, 1}

// RGBA converts c to a premultiplied color.RGBA for image.Fill and friends.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{
		R: uint8(clamp01(c.R*c.A) * 255),
		G: uint8(clamp01(c.G*c.A) * 255),
		B: uint8(clamp01(c.B*c.A) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

func (c Color) vec3() []float32 { return []float32{c.R, c.G, c.B} }

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// OwnerID identifies the upstream scene-graph node that exported a piece of
// state or geometry. NoOwner resets a category to its default.
type OwnerID uint32

// NoOwner is the zero OwnerID.
const NoOwner OwnerID = 0

// SceneID names a scene bound to a Renderer.
type SceneID string

// RecompileMode selects how much of a scene's compiled state is rebuilt when
// the scene is bound.
type RecompileMode uint8

const (
	RecompileFull   RecompileMode = iota // rebuild everything: new states, new nodes, programs re-acquired
	RecompileBranch                      // rebuild nodes whose hashed state changed, patch the rest
	RecompileNodes                       // reuse the state graph and programs, patch per-node attachments only
)

func (m RecompileMode) String() string {
	switch m {
	case RecompileFull:
		return "full"
	case RecompileBranch:
		return "branch"
	case RecompileNodes:
		return "nodes"
	default:
		return "unknown"
	}
}

// Category identifies one kind of exported state.
type Category uint8

const (
	CategoryFlags          Category = iota // enable, pick, transparency and backface switches
	CategoryLayer                          // layer priority and enable
	CategoryTag                            // tag matched against tag selectors
	CategoryName                           // name reported by pick
	CategoryRenderer                       // per-canvas renderer properties
	CategoryClips                          // user clip planes
	CategoryColorTransform                 // color scale/bias/saturation
	CategoryLights                         // light sources
	CategoryMorph                          // morph targets
	CategoryTexture                        // texture layers
	CategoryShader                         // custom shader hooks
	CategoryShaderParams                   // uniform values for custom shaders
	CategoryMaterial                       // surface material
	CategoryModelTransform                 // model matrix
	CategoryViewTransform                  // view matrix
	CategoryProjTransform                  // projection matrix
	CategoryGeometry                       // geometry buffers, owned by display nodes

	categoryCount
)

var categoryNames = [categoryCount]string{
	"flags", "layer", "tag", "name", "renderer", "clips", "colortrans",
	"lights", "morph", "texture", "shader", "shaderParams", "material",
	"xform", "lookAt", "camera", "geometry",
}

func (c Category) String() string {
	if c < categoryCount {
		return categoryNames[c]
	}
	return "unknown"
}

// hashOrder is the fixed order in which category hash fragments are joined
// into a program key. The canvas id precedes them.
var hashOrder = [...]Category{
	CategoryClips,
	CategoryColorTransform,
	CategoryLights,
	CategoryMorph,
	CategoryTexture,
	CategoryShader,
	CategoryRenderer,
	CategoryGeometry,
}

// hashSeparator joins hash fragments.
const hashSeparator = ";"

// Hashed reports whether the category contributes to program identity.
// Hashed categories are structural: they never change on an existing
// display node.
func (c Category) Hashed() bool {
	switch c {
	case CategoryClips, CategoryColorTransform, CategoryLights, CategoryMorph,
		CategoryTexture, CategoryShader, CategoryRenderer, CategoryGeometry:
		return true
	}
	return false
}

// BlendMode selects a compositing operation. Each maps to a specific ebiten.Blend value.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // source-over (standard alpha blending)
	BlendAdd                       // additive / lighter
	BlendMultiply                  // multiply (source * destination; only darkens)
	BlendScreen                    // screen (1 - (1-src)*(1-dst); only brightens)
	BlendNone                      // opaque copy (skip blending)
)

// addBlend combines source and destination with the given factors.
func addBlend(srcRGB, srcA, dstRGB, dstA ebiten.BlendFactor) ebiten.Blend {
	return ebiten.Blend{
		BlendFactorSourceRGB:        srcRGB,
		BlendFactorSourceAlpha:      srcA,
		BlendFactorDestinationRGB:   dstRGB,
		BlendFactorDestinationAlpha: dstA,
		BlendOperationRGB:           ebiten.BlendOperationAdd,
		BlendOperationAlpha:         ebiten.BlendOperationAdd,
	}
}

var ebitenBlends = [...]ebiten.Blend{
	BlendNormal:   ebiten.BlendSourceOver,
	BlendAdd:      ebiten.BlendLighter,
	BlendMultiply: addBlend(ebiten.BlendFactorDestinationColor, ebiten.BlendFactorDestinationAlpha, ebiten.BlendFactorOneMinusSourceAlpha, ebiten.BlendFactorOneMinusSourceAlpha),
	BlendScreen:   addBlend(ebiten.BlendFactorOne, ebiten.BlendFactorOne, ebiten.BlendFactorOneMinusSourceColor, ebiten.BlendFactorOneMinusSourceAlpha),
	BlendNone:     ebiten.BlendCopy,
}

// EbitenBlend returns the ebiten.Blend of b. Unknown modes blend source-over.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	if int(b) < len(ebitenBlends) {
		return ebitenBlends[b]
	}
	return ebiten.BlendSourceOver
}

// ParseBlendMode maps a config name to a BlendMode. Unknown names yield
// BlendNormal and false.
func ParseBlendMode(name string) (BlendMode, bool) {
	switch name {
	case "normal", "":
		return BlendNormal, true
	case "add":
		return BlendAdd, true
	case "multiply":
		return BlendMultiply, true
	case "screen":
		return BlendScreen, true
	case "none":
		return BlendNone, true
	}
	return BlendNormal, false
}
