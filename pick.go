package thicket

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// maxPickID is the largest id a 24-bit pick color can carry.
const maxPickID = 1<<24 - 1

// PickParams selects the pixel to resolve.
type PickParams struct {
	SceneID          SceneID
	CanvasX, CanvasY int
	// RayPick additionally reconstructs the world-space hit position.
	RayPick bool
	// TagSelector filters pickable nodes like RenderParams.TagSelector.
	TagSelector string
}

// Hit is the node found under a pick coordinate.
type Hit struct {
	Name      string
	Owner     OwnerID
	NodeID    uint32
	CanvasPos [2]int
	// WorldPos is set for ray picks.
	WorldPos *mgl32.Vec3
}

// pickRef maps a pick id back to the node drawn with it. The node id guards
// against the slot having been reused since the pick buffer was drawn.
type pickRef struct {
	idx nodeIndex
	id  uint32
}

// EncodePickColor returns the pick color of the k-th node drawn in a pick
// pass. Id 0 is reserved for "nothing".
func EncodePickColor(k int) [4]uint8 {
	id := k + 1
	return [4]uint8{uint8(id), uint8(id >> 8), uint8(id >> 16), 0xff}
}

// DecodePickColor inverts EncodePickColor. It returns -1 for the reserved
// "nothing" color.
func DecodePickColor(px [4]uint8) int {
	id := int(px[0]) | int(px[1])<<8 | int(px[2])<<16
	return id - 1
}

// EncodeDepth packs a depth in [0, 1] into 24 bits of RGB, least
// significant byte first.
func EncodeDepth(d float32) [4]uint8 {
	v := uint32(math.Round(float64(clamp01(d)) * maxPickID))
	return [4]uint8{uint8(v), uint8(v >> 8), uint8(v >> 16), 0xff}
}

// DecodeDepth inverts EncodeDepth.
func DecodeDepth(px [4]uint8) float32 {
	v := uint32(px[0]) | uint32(px[1])<<8 | uint32(px[2])<<16
	return float32(v) / maxPickID
}

func pickColorUniform(c [4]uint8) []float32 {
	return []float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, 1}
}

// pick resolves the node under a canvas pixel, redrawing the pick buffer
// first if it is stale.
func (s *Scene) pick(p PickParams) (*Hit, error) {
	var st FrameStats
	if err := s.prepare(p.TagSelector, &st); err != nil {
		return nil, err
	}
	gpu := s.r.gpu
	w, h := gpu.CanvasSize()
	x, y := p.CanvasX, p.CanvasY
	if x < 0 || y < 0 || x >= w || y >= h {
		return nil, nil
	}
	if w != s.pickCanvasW || h != s.pickCanvasH {
		s.pickCanvasW, s.pickCanvasH = w, h
		s.pickBufferDirty = true
	}
	if s.pickBufferDirty || s.callListDirty {
		s.renderPickBuffer()
	}

	k := DecodePickColor(gpu.ReadPixel(TargetPick, x, y))
	if k < 0 || k >= len(s.pickNodes) {
		return nil, nil
	}
	ref := s.pickNodes[k]
	if int(ref.idx) >= len(s.nodes) {
		return nil, nil
	}
	n := &s.nodes[ref.idx]
	if !n.inUse || n.destroyed || n.id != ref.id {
		return nil, nil
	}

	hit := &Hit{
		Name:      n.name(),
		Owner:     n.owner,
		NodeID:    n.id,
		CanvasPos: [2]int{x, y},
	}
	if p.RayPick {
		wp := s.rayPick(n, x, y, w, h)
		hit.WorldPos = &wp
	}
	return hit, nil
}

// renderPickBuffer draws every visible pickable node in its id color and
// records which node each id stands for. Transparent nodes are drawn after
// the opaque ones, as the frame pass draws them, so the id on top of a pixel
// is the node drawn on top of it.
func (s *Scene) renderPickBuffer() {
	gpu := s.r.gpu
	s.tracker.reset()
	s.pickNodes = s.pickNodes[:0]
	s.transparent = s.transparent[:0]

	gpu.BeginPass(TargetPick, true, Color{})
	gpu.SetBlend(BlendNone)
	s.walk(true, func(idx nodeIndex, n *displayNode) {
		if n.flags().Transparent {
			s.transparent = append(s.transparent, idx)
			return
		}
		s.drawPickID(idx, n)
	})
	for _, idx := range s.transparent {
		s.drawPickID(idx, &s.nodes[idx])
	}
	gpu.EndPass()
	s.pickBufferDirty = false
	s.callListDirty = false
}

// drawPickID assigns n the next pick id and draws it.
func (s *Scene) drawPickID(idx nodeIndex, n *displayNode) {
	if len(s.pickNodes) == maxPickID {
		s.r.warnOnce("pick:overflow", "pick buffer full; remaining nodes are not pickable",
			"scene", s.id, "max", maxPickID)
		return
	}
	s.pickNodes = append(s.pickNodes, pickRef{idx: idx, id: n.id})
	s.drawPick(n, pickColorUniform(EncodePickColor(len(s.pickNodes)-1)), false)
}

// rayPick draws the depth pass over the same nodes as the pick buffer, in
// the same order, and unprojects the pixel through the hit node's view and
// projection.
func (s *Scene) rayPick(hit *displayNode, x, y, w, h int) mgl32.Vec3 {
	gpu := s.r.gpu
	s.tracker.reset()

	gpu.BeginPass(TargetPickDepth, true, Color{1, 1, 1, 1})
	gpu.SetBlend(BlendNone)
	for _, ref := range s.pickNodes {
		n := &s.nodes[ref.idx]
		if !n.inUse || n.destroyed || n.id != ref.id {
			continue
		}
		s.drawPick(n, nil, true)
	}
	gpu.EndPass()

	depth := DecodeDepth(gpu.ReadPixel(TargetPickDepth, x, y))
	view := hit.transform(CategoryViewTransform).Matrix
	proj := hit.transform(CategoryProjTransform).Matrix
	return rayPoint(view, proj, float32(x)+0.5, float32(y)+0.5, w, h, depth)
}

// drawPick draws n with its pick program.
func (s *Scene) drawPick(n *displayNode, color []float32, ray bool) {
	gpu := s.r.gpu
	if s.tracker.useProgram(n.program.Pick) {
		gpu.UseProgram(n.program.Pick)
	}
	if geo := n.states[CategoryGeometry]; s.tracker.bindGeometry(geo) {
		gpu.BindGeometry(n.geometry())
	}
	ds := s.drawState(n)
	u := s.uniforms
	clear(u)
	if color != nil {
		u["PickColor"] = color
	}
	u["RayPick"] = boolFloat(ray)
	ds.Uniforms = u
	gpu.Draw(&ds)
}
