package thicket

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// bindTracker elides redundant GPU binds between consecutive draws.
type bindTracker struct {
	program    ProgramHandle
	hasProgram bool
	textures   *StateObject
	texturing  bool
	geometry   *StateObject
}

func (t *bindTracker) reset() { *t = bindTracker{} }

func (t *bindTracker) useProgram(h ProgramHandle) bool {
	if t.hasProgram && t.program == h {
		return false
	}
	t.program, t.hasProgram = h, true
	return true
}

func (t *bindTracker) bindTextures(so *StateObject, texturing bool) bool {
	if t.textures == so && t.texturing == texturing {
		return false
	}
	t.textures, t.texturing = so, texturing
	return true
}

func (t *bindTracker) bindGeometry(so *StateObject) bool {
	if t.geometry == so {
		return false
	}
	t.geometry = so
	return true
}

// visibleTo reports whether n passes the enable, tag and layer filters.
func (s *Scene) visibleTo(n *displayNode) bool {
	if !n.flags().Enabled {
		return false
	}
	if s.tagRe != nil {
		if tag := n.tag(); tag != "" && !s.tagRe.MatchString(tag) {
			return false
		}
	}
	l := n.layer()
	enabled := l.Enabled
	if v, ok := s.layerOverrides[l.Name]; ok {
		enabled = v
	}
	return enabled
}

// walk calls fn for every visible node in bin order. When the visible cache
// is populated it is iterated directly; otherwise the full bin is walked,
// destroyed nodes are compacted out and the cache is rebuilt. Pick walks
// additionally skip unpickable nodes. It returns the number of compacted
// nodes.
func (s *Scene) walk(picking bool, fn func(idx nodeIndex, n *displayNode)) (compacted int) {
	if len(s.visible) > 0 {
		for _, idx := range s.visible {
			n := &s.nodes[idx]
			if n.destroyed || (picking && !n.flags().Picking) {
				continue
			}
			fn(idx, n)
		}
		return 0
	}

	live := s.bin[:0]
	for _, idx := range s.bin {
		n := &s.nodes[idx]
		if n.destroyed {
			s.freeNode(idx)
			compacted++
			continue
		}
		live = append(live, idx)
		if !s.visibleTo(n) {
			continue
		}
		s.visible = append(s.visible, idx)
		if picking && !n.flags().Picking {
			continue
		}
		fn(idx, n)
	}
	clear(s.bin[len(live):])
	s.bin = live
	return compacted
}

// prepare applies the frame's tag selector and re-sorts a dirty bin.
func (s *Scene) prepare(tagSelector string, st *FrameStats) error {
	if s.err != nil {
		return fmt.Errorf("scene %q: %w: %w", s.id, ErrSceneBroken, s.err)
	}
	if err := s.setTagSelector(tagSelector); err != nil {
		return err
	}
	t0 := time.Now()
	st.Resorted = s.sortBin()
	st.SortTime = time.Since(t0)
	return nil
}

// renderFrame draws opaque nodes in sort order as they are encountered,
// buffering transparent ones, then draws the buffer with blending in
// encounter order.
func (s *Scene) renderFrame(p RenderParams) (FrameStats, error) {
	var st FrameStats
	if err := s.prepare(p.TagSelector, &st); err != nil {
		return st, err
	}
	gpu := s.r.gpu
	s.tracker.reset()
	s.transparent = s.transparent[:0]

	t0 := time.Now()
	gpu.BeginPass(TargetCanvas, s.clearCanvas, s.ClearColor)
	gpu.SetBlend(BlendNone)
	st.Compacted = s.walk(false, func(idx nodeIndex, n *displayNode) {
		st.Visible++
		if n.flags().Transparent {
			s.transparent = append(s.transparent, idx)
			return
		}
		st.Opaque++
		s.drawNode(n, &st)
	})
	if len(s.transparent) > 0 {
		gpu.SetBlend(s.r.cfg.TransparentBlend)
		for _, idx := range s.transparent {
			st.Transparent++
			s.drawNode(&s.nodes[idx], &st)
		}
	}
	gpu.EndPass()
	st.WalkTime = time.Since(t0)
	st.Nodes = len(s.bin)
	s.callListDirty = false
	return st, nil
}

// drawNode binds what changed since the previous draw and issues the draw.
func (s *Scene) drawNode(n *displayNode, st *FrameStats) {
	gpu := s.r.gpu
	if s.tracker.useProgram(n.program.Render) {
		gpu.UseProgram(n.program.Render)
		st.ProgramBinds++
	}
	tex := n.states[CategoryTexture]
	texturing := n.flags().Texturing && len(n.layers) > 0
	if s.tracker.bindTextures(tex, texturing) {
		gpu.BindTextures(s.boundLayers(n, texturing))
		st.TextureBinds++
	}
	if geo := n.states[CategoryGeometry]; s.tracker.bindGeometry(geo) {
		gpu.BindGeometry(n.geometry())
		st.GeometryBinds++
	}
	ds := s.drawState(n)
	s.fillUniforms(n, texturing)
	ds.Uniforms = s.uniforms
	gpu.Draw(&ds)
	st.Draws++
}

// boundLayers returns the texture layers n samples, in program order.
func (s *Scene) boundLayers(n *displayNode, texturing bool) []TextureLayer {
	if !texturing {
		return nil
	}
	t := n.textures()
	layers := make([]TextureLayer, len(n.layers))
	for i, li := range n.layers {
		layers[i] = t.Layers[li]
	}
	return layers
}

func (s *Scene) drawState(n *displayNode) DrawState {
	f := n.flags()
	ds := DrawState{
		Model:     n.transform(CategoryModelTransform).Matrix,
		View:      n.transform(CategoryViewTransform).Matrix,
		Proj:      n.transform(CategoryProjTransform).Matrix,
		Backfaces: f.Backfaces,
	}
	if m := n.morph(); len(m.Targets) > 0 {
		ds.Morph = m
	}
	if f.Clipping {
		for _, p := range n.states[CategoryClips].Payload.(*Clips).Planes {
			if p.Mode != ClipDisabled {
				ds.Clips = append(ds.Clips, p)
			}
		}
	}
	return ds
}

// fillUniforms writes the render program uniforms of n into s.uniforms.
// Names follow KageComposer; contexts ignore names a program lacks.
func (s *Scene) fillUniforms(n *displayNode, texturing bool) {
	u := s.uniforms
	clear(u)

	mat := n.material()
	u["BaseColor"] = mat.BaseColor.vec3()
	u["Alpha"] = mat.Alpha
	u["Emit"] = mat.Emit

	if len(n.layers) > 0 {
		u["Texturing"] = boolFloat(texturing)
		t := n.textures()
		factors := make([]float32, len(n.layers))
		for i, li := range n.layers {
			factors[i] = t.Layers[li].Factor
		}
		u["LayerFactors"] = factors
	}

	if lights := n.states[CategoryLights].Payload.(*Lights).Lights; len(lights) > 0 {
		origin := n.transform(CategoryModelTransform).Matrix.Col(3).Vec3()
		var ambient mgl32.Vec3
		var colors, dirs []float32
		for _, l := range lights {
			c := mgl32.Vec3{l.Color.R, l.Color.G, l.Color.B}
			switch l.Kind {
			case LightAmbient:
				ambient = ambient.Add(c)
				continue
			case LightDir:
				d := l.Dir
				if d.Len() > 0 {
					d = d.Normalize()
				}
				dirs = append(dirs, d[:]...)
			case LightPoint:
				// Point lights shine from their position towards the node origin.
				d := origin.Sub(l.Pos)
				if d.Len() > 0 {
					d = d.Normalize()
				}
				dirs = append(dirs, d[:]...)
			}
			colors = append(colors, c[:]...)
		}
		u["AmbientColor"] = ambient[:]
		if len(colors) > 0 {
			u["LightColors"] = colors
			u["LightDirs"] = dirs
		}
	}

	if ct := n.states[CategoryColorTransform]; !ct.isDefault {
		c := ct.Payload.(*ColorTransform)
		u["ColorScale"] = c.Scale[:]
		u["ColorAdd"] = c.Add[:]
		u["Saturation"] = c.Saturation
	}

	for k, v := range n.states[CategoryShaderParams].Payload.(*ShaderParams).Params {
		u[k] = v
	}
}

func boolFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
