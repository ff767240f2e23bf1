package thicket

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoOwner is returned by SetGeometry for geometry without an owner.
var ErrNoOwner = errors.New("thicket: geometry has no owner")

// nodeIndex is a stable index into a scene's display-node arena.
type nodeIndex int32

// displayNode is one geometry submission with a snapshot of the soup taken
// when it was built. Only destroyed and the attachment categories ever
// change after construction.
type displayNode struct {
	id        uint32
	owner     OwnerID
	sortKey   uint64
	program   *Program
	destroyed bool
	inUse     bool

	states [categoryCount]*StateObject
	// layers are the indices of texture layers whose coordinates exist,
	// resolved once at build time.
	layers []int
}

func (n *displayNode) flags() *Flags       { return n.states[CategoryFlags].Payload.(*Flags) }
func (n *displayNode) layer() *Layer       { return n.states[CategoryLayer].Payload.(*Layer) }
func (n *displayNode) tag() string         { return n.states[CategoryTag].Payload.(*Tag).Tag }
func (n *displayNode) name() string        { return n.states[CategoryName].Payload.(*Name).Name }
func (n *displayNode) geometry() *Geometry { return n.states[CategoryGeometry].Payload.(*Geometry) }
func (n *displayNode) textures() *Textures { return n.states[CategoryTexture].Payload.(*Textures) }
func (n *displayNode) material() *Material { return n.states[CategoryMaterial].Payload.(*Material) }
func (n *displayNode) morph() *Morph       { return n.states[CategoryMorph].Payload.(*Morph) }
func (n *displayNode) transform(c Category) *Transform {
	return n.states[c].Payload.(*Transform)
}

// allocNode returns a cleared arena slot, reusing freed slots first.
func (s *Scene) allocNode() nodeIndex {
	if k := len(s.free); k > 0 {
		idx := s.free[k-1]
		s.free = s.free[:k-1]
		s.nodes[idx] = displayNode{inUse: true}
		return idx
	}
	s.nodes = append(s.nodes, displayNode{inUse: true})
	return nodeIndex(len(s.nodes) - 1)
}

// freeNode returns a tombstoned slot to the free list.
func (s *Scene) freeNode(idx nodeIndex) {
	s.nodes[idx] = displayNode{}
	s.free = append(s.free, idx)
}

// SetGeometry finalizes a display node for owner from the current soup.
//
// Under RecompileFull a new node is always built. Under RecompileNodes an
// existing live node of owner is kept and only its attachment categories
// are re-pointed at the current soup; structural categories and the
// program are left untouched. RecompileBranch does the same unless a
// hashed category of the soup or the geometry's shape differs from what
// the node was built with, in which case the node is rebuilt. Owners
// without a live node get a new one in every mode.
func (s *Scene) SetGeometry(owner OwnerID, g *Geometry) error {
	if s.err != nil {
		return fmt.Errorf("set geometry: %w: %w", ErrSceneBroken, s.err)
	}
	if owner == NoOwner {
		return ErrNoOwner
	}
	if g == nil {
		return fmt.Errorf("set geometry %d: nil geometry", owner)
	}
	s.runMarshaller()

	if s.mode != RecompileFull {
		if idx, ok := s.liveNode(owner); ok {
			if s.mode == RecompileNodes || !s.structureChanged(&s.nodes[idx], g) {
				s.reattach(idx, g)
				return nil
			}
			s.retireNode(owner, idx)
		}
	}
	return s.buildNode(owner, g)
}

// structureChanged reports whether n was built from different hashed state
// than the current soup and g.
func (s *Scene) structureChanged(n *displayNode, g *Geometry) bool {
	for c := Category(0); c < categoryCount; c++ {
		if !c.Hashed() || c == CategoryGeometry {
			continue
		}
		if n.states[c] != s.soup[c] {
			return true
		}
	}
	return n.states[CategoryGeometry].Hash != g.hashFragment()
}

// retireNode releases one node of owner and drops it from the owner map.
func (s *Scene) retireNode(owner OwnerID, idx nodeIndex) {
	s.releaseNode(&s.nodes[idx])
	idxs := s.nodeMap[owner]
	for i, v := range idxs {
		if v == idx {
			idxs = append(idxs[:i], idxs[i+1:]...)
			break
		}
	}
	if len(idxs) == 0 {
		delete(s.nodeMap, owner)
	} else {
		s.nodeMap[owner] = idxs
	}
	s.invalidateBin()
}

func (s *Scene) runMarshaller() {
	if s.marshal == nil || s.marshalling {
		return
	}
	s.marshalling = true
	s.marshal()
	s.marshalling = false
}

// liveNode returns the first display node of owner not yet destroyed.
func (s *Scene) liveNode(owner OwnerID) (nodeIndex, bool) {
	for _, idx := range s.nodeMap[owner] {
		if !s.nodes[idx].destroyed {
			return idx, true
		}
	}
	return 0, false
}

func (s *Scene) buildNode(owner OwnerID, g *Geometry) error {
	geo, _ := s.store.fetch(CategoryGeometry, owner, g, s.mode == RecompileFull)
	if geo.Hash != s.lastGeoHash {
		s.lastGeoHash = geo.Hash
		s.hashValid = false
	}
	if !s.hashValid {
		s.stateHash = s.composeHash(geo)
		s.hashValid = true
	}

	layers := s.activeLayers(geo)
	prog, err := s.r.programs.acquire(s.stateHash, func() ActiveStateFlags {
		return s.activeFlags(geo, layers)
	})
	if err != nil {
		s.err = err
		s.r.log.Error("program build failed; scene is not renderable",
			"scene", s.id, "owner", owner, "hash", s.stateHash, "err", err)
		return fmt.Errorf("set geometry %d: %w", owner, err)
	}

	idx := s.allocNode()
	n := &s.nodes[idx]
	s.r.nextNodeID++
	n.id = s.r.nextNodeID
	n.owner = owner
	n.program = prog
	n.states = s.soup
	n.states[CategoryGeometry] = geo
	n.layers = layers
	for _, so := range n.states {
		s.store.acquire(so)
	}

	s.bin = append(s.bin, idx)
	s.nodeMap[owner] = append(s.nodeMap[owner], idx)
	s.invalidateBin()
	return nil
}

// reattach re-points the attachment categories of a live node at the
// current soup, moving references from the old objects to the new ones.
// Geometry of the same shape replaces the node's vertex data in place.
func (s *Scene) reattach(idx nodeIndex, g *Geometry) {
	n := &s.nodes[idx]
	if geo := n.states[CategoryGeometry]; geo.Payload != Payload(g) && geo.Hash == g.hashFragment() {
		geo.Payload = g
		s.pickBufferDirty = true
	}
	for c := Category(0); c < categoryCount; c++ {
		if c.Hashed() {
			continue
		}
		old, cur := n.states[c], s.soup[c]
		if old == cur {
			continue
		}
		s.store.acquire(cur)
		s.store.release(old)
		n.states[c] = cur
		s.stateChanged(c)
	}
}

// RemoveGeometry retires every display node of owner. The nodes are
// logically gone at once; their bin slots are reclaimed by the next full
// bin walk.
func (s *Scene) RemoveGeometry(owner OwnerID) {
	idxs, ok := s.nodeMap[owner]
	if !ok {
		return
	}
	for _, idx := range idxs {
		n := &s.nodes[idx]
		if n.destroyed {
			continue
		}
		s.releaseNode(n)
	}
	delete(s.nodeMap, owner)
	s.invalidateBin()
}

// releaseNode tombstones n and drops its program and state references.
func (s *Scene) releaseNode(n *displayNode) {
	n.destroyed = true
	s.r.programs.release(n.program)
	n.program = nil
	for c, so := range n.states {
		s.store.release(so)
		n.states[c] = nil
	}
}

// composeHash joins the canvas id and the hashed categories' fragments in
// their fixed order.
func (s *Scene) composeHash(geo *StateObject) string {
	parts := make([]string, 0, len(hashOrder)+1)
	parts = append(parts, s.canvasID)
	for _, c := range hashOrder {
		if c == CategoryGeometry {
			parts = append(parts, geo.Hash)
			continue
		}
		parts = append(parts, s.soup[c].Hash)
	}
	return strings.Join(parts, hashSeparator)
}

// activeLayers resolves which texture layers of the current texture state
// can be sampled with geo. Layers asking for an attribute the geometry and
// morph lack are skipped with a warning.
func (s *Scene) activeLayers(geo *StateObject) []int {
	tex := s.soup[CategoryTexture]
	t := tex.Payload.(*Textures)
	if len(t.Layers) == 0 {
		return nil
	}
	g := geo.Payload.(*Geometry)
	m := s.soup[CategoryMorph].Payload.(*Morph)
	limit := s.r.cfg.MaxTextureLayers

	layers := make([]int, 0, len(t.Layers))
	for i, l := range t.Layers {
		if limit > 0 && len(layers) == limit {
			s.r.warnOnce(fmt.Sprintf("cap:%d:%d", tex.StateID, i),
				"texture layer skipped: layer cap reached",
				"owner", tex.Owner, "layer", i, "cap", limit)
			continue
		}
		var have bool
		var attr string
		switch l.Coords {
		case CoordsUV:
			have, attr = g.HasUV() || m.hasUV(), "uv"
		case CoordsUV2:
			have, attr = g.HasUV2(), "uv2"
		case CoordsNormal:
			have, attr = g.HasNormals() || m.hasNormals(), "normals"
		}
		if !have {
			s.r.warnOnce(fmt.Sprintf("attr:%d:%d:%d", tex.StateID, geo.StateID, i),
				"texture layer skipped: geometry lacks attribute",
				"owner", tex.Owner, "geometry", geo.Owner, "layer", i, "attribute", attr)
			continue
		}
		layers = append(layers, i)
	}
	return layers
}

// activeFlags describes the current soup and geometry to the composer.
func (s *Scene) activeFlags(geo *StateObject, layers []int) ActiveStateFlags {
	g := geo.Payload.(*Geometry)
	m := s.soup[CategoryMorph].Payload.(*Morph)
	f := ActiveStateFlags{
		ClipPlanes:     s.soup[CategoryClips].Payload.(*Clips).active(),
		Normals:        g.HasNormals() || m.hasNormals(),
		Morphing:       len(m.Targets) > 0,
		MorphNormals:   m.hasNormals(),
		ColorTransform: !s.soup[CategoryColorTransform].isDefault,
		VertexColors:   len(g.Colors) > 0,
		PointSize:      s.soup[CategoryRenderer].Payload.(*RendererState).PointSize > 0,
	}
	t := s.soup[CategoryTexture].Payload.(*Textures)
	for _, i := range layers {
		l := t.Layers[i]
		f.Layers = append(f.Layers, LayerFlags{Coords: l.Coords, ApplyTo: l.ApplyTo, Blend: l.Blend})
	}
	for _, l := range s.soup[CategoryLights].Payload.(*Lights).Lights {
		f.Lights = append(f.Lights, l.Kind)
	}
	if sh := s.soup[CategoryShader]; !sh.isDefault {
		f.Custom = sh.Payload.(*Shader)
	}
	return f
}

// NodeCount returns the number of live display nodes.
func (s *Scene) NodeCount() int {
	n := 0
	for _, idxs := range s.nodeMap {
		for _, idx := range idxs {
			if !s.nodes[idx].destroyed {
				n++
			}
		}
	}
	return n
}

// NodeProgram returns the program of owner's live display node.
func (s *Scene) NodeProgram(owner OwnerID) (*Program, bool) {
	idx, ok := s.liveNode(owner)
	if !ok {
		return nil, false
	}
	return s.nodes[idx].program, true
}

// NodeState returns the state object owner's live display node holds for cat.
func (s *Scene) NodeState(owner OwnerID, cat Category) (*StateObject, bool) {
	idx, ok := s.liveNode(owner)
	if !ok {
		return nil, false
	}
	return s.nodes[idx].states[cat], true
}
