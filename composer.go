package thicket

import (
	"fmt"
	"strings"
)

// LayerFlags describes one active texture layer to a ShaderComposer.
type LayerFlags struct {
	Coords  TexCoords
	ApplyTo TexApply
	Blend   TexBlend
}

// ActiveStateFlags is what a program is composed from. Two display nodes
// whose state hashes match always produce equal flags.
type ActiveStateFlags struct {
	ClipPlanes     int          // enabled user clip planes
	Layers         []LayerFlags // texture layers whose coordinates exist
	Normals        bool         // geometry or morph provides normals
	Morphing       bool
	MorphNormals   bool
	Lights         []LightKind
	ColorTransform bool
	VertexColors   bool
	PointSize      bool
	Custom         *Shader // nil without a custom shader hook
}

// Clipping reports whether any clip plane is enabled.
func (f *ActiveStateFlags) Clipping() bool { return f.ClipPlanes > 0 }

// Texturing reports whether any texture layer applies.
func (f *ActiveStateFlags) Texturing() bool { return len(f.Layers) > 0 }

// ShaderSource is the composed source of a render/pick program pair.
type ShaderSource struct {
	Render []byte
	Pick   []byte
}

// ShaderComposer turns active-state flags into program source. It must be
// a pure function of its input.
type ShaderComposer interface {
	Compose(flags ActiveStateFlags) (ShaderSource, error)
}

// maxKageImages is the number of source images a Kage program can sample.
const maxKageImages = 4

// KageComposer composes Ebitengine Kage fragment programs. All programs use
// //kage:unit pixels. The custom vertex attribute carries the world-space
// normal in xyz and the [0,1] depth in w.
type KageComposer struct{}

// Compose implements ShaderComposer.
func (KageComposer) Compose(f ActiveStateFlags) (ShaderSource, error) {
	if len(f.Layers) > maxKageImages {
		return ShaderSource{}, fmt.Errorf("kage composer: %d texture layers, at most %d supported", len(f.Layers), maxKageImages)
	}
	return ShaderSource{
		Render: []byte(composeKageRender(&f)),
		Pick:   []byte(kagePickSrc),
	}, nil
}

// kagePickSrc writes the node's pick color, or the fragment depth packed
// into 24 bits of RGB when RayPick is set.
const kagePickSrc = `//kage:unit pixels
package main

var PickColor vec4
var RayPick float

func Fragment(dstPos vec4, srcPos vec2, color vec4, custom vec4) vec4 {
	if RayPick > 0 {
		d := clamp(custom.w, 0, 1) * 16777215.0
		b := floor(d / 65536.0)
		g := floor((d - b*65536.0) / 256.0)
		r := d - b*65536.0 - g*256.0
		return vec4(r/255.0, g/255.0, b/255.0, 1)
	}
	return PickColor
}
`

func composeKageRender(f *ActiveStateFlags) string {
	var b strings.Builder
	b.WriteString("//kage:unit pixels\npackage main\n\n")

	// Uniforms.
	b.WriteString("var BaseColor vec3\nvar Alpha float\nvar Emit float\n")
	if f.Texturing() {
		b.WriteString("var Texturing float\n")
		fmt.Fprintf(&b, "var LayerFactors [%d]float\n", len(f.Layers))
	}
	lit := countDirectional(f.Lights)
	if f.Normals && len(f.Lights) > 0 {
		b.WriteString("var AmbientColor vec3\n")
		if lit > 0 {
			fmt.Fprintf(&b, "var LightColors [%d]vec3\n", lit)
			fmt.Fprintf(&b, "var LightDirs [%d]vec3\n", lit)
		}
	}
	if f.ColorTransform {
		b.WriteString("var ColorScale vec4\nvar ColorAdd vec4\nvar Saturation float\n")
	}
	if f.Custom != nil {
		for _, u := range f.Custom.Uniforms {
			fmt.Fprintf(&b, "var %s\n", u)
		}
	}
	b.WriteString("\n")

	if f.Custom != nil && f.Custom.Fragment != "" {
		b.WriteString(f.Custom.Fragment)
		b.WriteString("\n\n")
	}

	b.WriteString("func Fragment(dstPos vec4, srcPos vec2, color vec4, custom vec4) vec4 {\n")
	if f.VertexColors {
		b.WriteString("\tbase := BaseColor * color.rgb\n\talpha := Alpha * color.a\n")
	} else {
		b.WriteString("\tbase := BaseColor\n\talpha := Alpha\n")
	}
	b.WriteString("\temit := Emit\n")

	if f.Texturing() && sampledLayers(f.Layers) > 0 {
		b.WriteString("\tif Texturing > 0 {\n")
		for i, l := range f.Layers {
			// Layers with nothing to modulate are bound but never sampled.
			t := kageLayerTarget(l.ApplyTo)
			if t == "" {
				continue
			}
			fmt.Fprintf(&b, "\t\tt%d := imageSrc%dAt(srcPos)\n", i, i)
			switch l.Blend {
			case TexBlendAdd:
				fmt.Fprintf(&b, "\t\t%s += t%d%s * LayerFactors[%d]\n", t, i, kageLayerSwizzle(l.ApplyTo), i)
			default:
				fmt.Fprintf(&b, "\t\t%s *= mix(%s, t%d%s, LayerFactors[%d])\n", t, kageOne(l.ApplyTo), i, kageLayerSwizzle(l.ApplyTo), i)
			}
		}
		b.WriteString("\t}\n")
	}

	if f.Normals && len(f.Lights) > 0 {
		b.WriteString("\tlight := AmbientColor\n")
		if lit > 0 {
			b.WriteString("\tn := normalize(custom.xyz)\n")
		}
		for i := 0; i < lit; i++ {
			fmt.Fprintf(&b, "\tlight += LightColors[%d] * max(dot(n, -LightDirs[%d]), 0)\n", i, i)
		}
		b.WriteString("\trgb := base*light + base*emit\n")
	} else {
		b.WriteString("\trgb := base + base*emit\n")
	}

	if f.ColorTransform {
		b.WriteString("\tc := vec4(rgb, alpha)*ColorScale + ColorAdd\n")
		b.WriteString("\tlum := dot(c.rgb, vec3(0.3, 0.59, 0.11))\n")
		b.WriteString("\trgb = mix(vec3(lum), c.rgb, Saturation)\n\talpha = c.a\n")
	}
	if f.Custom != nil && f.Custom.Fragment != "" {
		b.WriteString("\tout := customColor(vec4(rgb, alpha))\n\trgb = out.rgb\n\talpha = out.a\n")
	}
	b.WriteString("\talpha = clamp(alpha, 0, 1)\n\treturn vec4(clamp(rgb, 0, 1)*alpha, alpha)\n}\n")
	return b.String()
}

func kageLayerTarget(a TexApply) string {
	switch a {
	case ApplyBaseColor:
		return "base"
	case ApplyEmit:
		return "emit"
	case ApplyAlpha:
		return "alpha"
	}
	// Specular is not shaded by this composer.
	return ""
}

// sampledLayers counts layers the composer has a target for.
func sampledLayers(layers []LayerFlags) int {
	n := 0
	for _, l := range layers {
		if kageLayerTarget(l.ApplyTo) != "" {
			n++
		}
	}
	return n
}

func kageLayerSwizzle(a TexApply) string {
	switch a {
	case ApplyBaseColor:
		return ".rgb"
	case ApplyAlpha:
		return ".a"
	}
	return ".r"
}

func kageOne(a TexApply) string {
	if a == ApplyBaseColor {
		return "vec3(1)"
	}
	return "1.0"
}

// countDirectional counts lights that get a direction slot; ambient lights
// fold into AmbientColor.
func countDirectional(kinds []LightKind) int {
	n := 0
	for _, k := range kinds {
		if k != LightAmbient {
			n++
		}
	}
	return n
}
