package thicket

import (
	"image"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Payload is the exported data of one category. Payloads are treated as
// immutable once handed to SetState; in-place updates go through the Scene.
type Payload interface {
	Category() Category
	// hashFragment derives the program-identity fragment of the payload.
	// Non-hashed categories return "".
	hashFragment() string
}

// --- Attachment categories ---

// Flags toggles per-node behavior. None of these affect program identity.
type Flags struct {
	Enabled     bool // drawn at all
	Picking     bool // participates in pick passes
	Transparent bool // drawn in the blended pass after all opaque nodes
	Backfaces   bool // back faces are drawn
	Clipping    bool // user clip planes apply
	Texturing   bool // texture layers apply
	Specular    bool // specular lighting applies
}

func (*Flags) Category() Category   { return CategoryFlags }
func (*Flags) hashFragment() string { return "" }

// Layer assigns a draw priority. Lower priorities draw first.
type Layer struct {
	Name     string
	Priority int
	Enabled  bool
}

func (*Layer) Category() Category   { return CategoryLayer }
func (*Layer) hashFragment() string { return "" }

// Tag is matched against tag selectors in render and pick passes.
type Tag struct {
	Tag string
}

func (*Tag) Category() Category   { return CategoryTag }
func (*Tag) hashFragment() string { return "" }

// Name is reported by pick hits.
type Name struct {
	Name string
}

func (*Name) Category() Category   { return CategoryName }
func (*Name) hashFragment() string { return "" }

// Material describes the surface of a node.
type Material struct {
	BaseColor     Color
	Alpha         float32
	Emit          float32
	Specular      float32
	SpecularColor Color
	Shininess     float32
}

func (*Material) Category() Category   { return CategoryMaterial }
func (*Material) hashFragment() string { return "" }

// ShaderParams carries uniform values consumed by a custom Shader.
type ShaderParams struct {
	Params map[string]any
}

func (*ShaderParams) Category() Category   { return CategoryShaderParams }
func (*ShaderParams) hashFragment() string { return "" }

// --- Hashed categories ---

// RendererState holds per-canvas renderer properties.
type RendererState struct {
	ClearColor Color
	Clear      bool
	PointSize  float32
}

func (*RendererState) Category() Category { return CategoryRenderer }

func (r *RendererState) hashFragment() string {
	if r.PointSize > 0 {
		return "rps"
	}
	return "r"
}

// ClipMode selects which side of a clip plane is discarded.
type ClipMode uint8

const (
	ClipDisabled ClipMode = iota
	ClipInside            // discard fragments in front of the plane
	ClipOutside           // discard fragments behind the plane
)

// ClipPlane is a world-space plane dot(Normal, p) = Dist.
type ClipPlane struct {
	Mode   ClipMode
	Normal mgl32.Vec3
	Dist   float32
}

// Clips is a set of user clip planes.
type Clips struct {
	Planes []ClipPlane
}

func (*Clips) Category() Category { return CategoryClips }

func (c *Clips) hashFragment() string {
	if len(c.Planes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('c')
	for _, p := range c.Planes {
		switch p.Mode {
		case ClipInside:
			b.WriteByte('i')
		case ClipOutside:
			b.WriteByte('o')
		default:
			b.WriteByte('d')
		}
	}
	return b.String()
}

// active returns the number of enabled planes.
func (c *Clips) active() int {
	n := 0
	for _, p := range c.Planes {
		if p.Mode != ClipDisabled {
			n++
		}
	}
	return n
}

// ColorTransform scales, biases and desaturates the final color.
type ColorTransform struct {
	Scale      [4]float32
	Add        [4]float32
	Saturation float32
}

func (*ColorTransform) Category() Category   { return CategoryColorTransform }
func (*ColorTransform) hashFragment() string { return "ct" }

// LightKind distinguishes light sources.
type LightKind uint8

const (
	LightAmbient LightKind = iota
	LightDir
	LightPoint
)

func (k LightKind) letter() byte {
	switch k {
	case LightDir:
		return 'd'
	case LightPoint:
		return 'p'
	default:
		return 'a'
	}
}

// Light is a single world-space light source.
type Light struct {
	Kind  LightKind
	Color Color
	Dir   mgl32.Vec3 // LightDir: direction the light travels
	Pos   mgl32.Vec3 // LightPoint: world position
}

// Lights is the set of active lights.
type Lights struct {
	Lights []Light
}

func (*Lights) Category() Category { return CategoryLights }

func (l *Lights) hashFragment() string {
	if len(l.Lights) == 0 {
		return ""
	}
	b := make([]byte, 0, len(l.Lights)+1)
	b = append(b, 'l')
	for _, li := range l.Lights {
		b = append(b, li.Kind.letter())
	}
	return string(b)
}

// Texture is a GPU-side image. *ebiten.Image satisfies it.
type Texture interface {
	Bounds() image.Rectangle
}

// TexCoords selects the vertex attribute a texture layer is sampled with.
type TexCoords uint8

const (
	CoordsUV TexCoords = iota
	CoordsUV2
	CoordsNormal
)

// TexApply selects what a texture layer modulates.
type TexApply uint8

const (
	ApplyBaseColor TexApply = iota
	ApplyEmit
	ApplyAlpha
	ApplySpecular
)

// TexBlend selects how a texture layer combines with what it modulates.
type TexBlend uint8

const (
	TexBlendMultiply TexBlend = iota
	TexBlendAdd
)

// TextureLayer is one stage of a Texture payload.
type TextureLayer struct {
	Texture Texture
	Coords  TexCoords
	ApplyTo TexApply
	Blend   TexBlend
	Factor  float32
}

func (l TextureLayer) descriptor() string {
	var b [3]byte
	b[0] = "u2n"[l.Coords%3]
	b[1] = "beas"[l.ApplyTo%4]
	b[2] = "ma"[l.Blend%2]
	return string(b[:])
}

// Textures is a stack of texture layers applied in order.
type Textures struct {
	Layers []TextureLayer
}

func (*Textures) Category() Category { return CategoryTexture }

func (t *Textures) hashFragment() string {
	if len(t.Layers) == 0 {
		return ""
	}
	parts := make([]string, len(t.Layers))
	for i, l := range t.Layers {
		parts[i] = l.descriptor()
	}
	return "t" + strings.Join(parts, ",")
}

// Shader is a custom shading hook. Fragment is Kage code defining
// func customColor(c vec4) vec4; it is spliced into composed programs.
type Shader struct {
	ID       string
	Fragment string
	Uniforms []string // extra uniform declarations, e.g. "Time float"
}

func (*Shader) Category() Category { return CategoryShader }

func (s *Shader) hashFragment() string {
	if s.ID == "" && s.Fragment == "" {
		return ""
	}
	return "s:" + s.ID
}
