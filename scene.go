package thicket

import (
	"fmt"
	"regexp"
)

const defaultBinCap = 256

// Scene is the draw-list state of one scene: the state soup, the state
// store, the display-node arena and its bin, and the visible cache.
//
// Upstream traversal exports state with SetState and finalizes geometry with
// SetGeometry, in traversal order. Frames and picks are driven through the
// owning Renderer.
type Scene struct {
	r        *Renderer
	id       SceneID
	canvasID string
	mode     RecompileMode

	// ClearColor is the canvas clear color. Exporting a RendererState
	// overrides it.
	ClearColor  Color
	clearCanvas bool

	soup  [categoryCount]*StateObject
	store stateStore

	// Display-node arena. Bin entries are stable arena indices; destroyed
	// nodes are tombstoned until the next full bin walk frees their slot.
	nodes   []displayNode
	free    []nodeIndex
	bin     []nodeIndex
	visible []nodeIndex
	nodeMap map[OwnerID][]nodeIndex

	stateHash   string
	hashValid   bool
	lastGeoHash string

	sortDirty       bool
	sortKeysDirty   bool
	pickBufferDirty bool
	callListDirty   bool

	// Scratch buffers reused across frames.
	sortBuf      []nodeIndex
	identBuf     []identity
	identScratch []identity
	keyByID      map[uint32]uint64
	transparent  []nodeIndex
	pickNodes    []pickRef
	uniforms     map[string]any
	tracker      bindTracker

	tagPattern     string
	tagRe          *regexp.Regexp
	visiblePattern string
	layerOverrides map[string]bool
	pickCanvasW    int
	pickCanvasH    int

	marshal     func()
	marshalling bool

	// err is set when a program fails to build; the scene stays
	// unrenderable until the next full recompile.
	err error
}

func newScene(r *Renderer, id SceneID) *Scene {
	s := &Scene{
		r:              r,
		id:             id,
		ClearColor:     ColorBlack,
		clearCanvas:    true,
		store:          newStateStore(&r.nextStateID),
		bin:            make([]nodeIndex, 0, defaultBinCap),
		nodeMap:        make(map[OwnerID][]nodeIndex),
		keyByID:        make(map[uint32]uint64),
		uniforms:       make(map[string]any),
		layerOverrides: make(map[string]bool),
	}
	s.resetSoup()
	return s
}

// ID returns the scene id.
func (s *Scene) ID() SceneID { return s.id }

// Mode returns the recompilation mode of the current bind.
func (s *Scene) Mode() RecompileMode { return s.mode }

// Err returns the program build failure that made the scene unrenderable.
func (s *Scene) Err() error { return s.err }

func (s *Scene) resetSoup() {
	s.soup = defaultStates
	s.hashValid = false
}

// bind prepares a recompilation pass in the given mode.
func (s *Scene) bind(mode RecompileMode) {
	s.mode = mode
	s.resetSoup()
	if mode == RecompileFull {
		s.releaseAll()
		s.err = nil
		return
	}
	if n := s.store.sweep(); n > 0 {
		s.r.log.Debug("swept unreferenced state", "scene", s.id, "evicted", n)
	}
}

// releaseAll retires every display node and drops every state registration.
func (s *Scene) releaseAll() {
	for i := range s.nodes {
		n := &s.nodes[i]
		if n.inUse && !n.destroyed {
			s.releaseNode(n)
		}
	}
	s.nodes = s.nodes[:0]
	s.free = s.free[:0]
	s.bin = s.bin[:0]
	s.pickNodes = s.pickNodes[:0]
	clear(s.nodeMap)
	s.store.reset()
	s.lastGeoHash = ""
	s.invalidateBin()
}

// SetState makes p the current soup entry of cat on behalf of owner.
// NoOwner or a nil payload resets the category to its default.
//
// Under RecompileFull a fresh state object is always allocated and hashed.
// Under the partial modes the owner's existing object is reused and its
// payload swapped in place, so display nodes already attached to it see
// the new payload. A payload that would change the hash of a hashed object
// still in use gets a new object instead; live nodes pick it up when a
// RecompileBranch pass rebuilds them.
func (s *Scene) SetState(cat Category, owner OwnerID, p Payload) {
	if cat >= categoryCount || cat == CategoryGeometry {
		panic(fmt.Sprintf("thicket: SetState on category %s", cat))
	}
	if cat.Hashed() {
		s.hashValid = false
	}
	if owner == NoOwner || p == nil {
		s.soup[cat] = defaultStates[cat]
		return
	}
	if p.Category() != cat {
		panic(fmt.Sprintf("thicket: %s payload exported as %s", p.Category(), cat))
	}
	prev, had := s.store.lookup(cat, owner)
	so, created := s.store.fetch(cat, owner, p, s.mode == RecompileFull)
	s.soup[cat] = so
	if had && created && prev.refs > 0 && s.mode == RecompileNodes {
		s.r.warnOnce(fmt.Sprintf("structural:%d:%d", cat, owner),
			"structural state change needs a branch recompile; live nodes keep the old state",
			"scene", s.id, "category", cat, "owner", owner)
	}
	if rs, ok := p.(*RendererState); ok {
		s.ClearColor, s.clearCanvas = rs.ClearColor, rs.Clear
	}
	if !created && so.refs > 0 {
		s.stateChanged(cat)
	}
}

// Current returns the soup entry of a category.
func (s *Scene) Current(cat Category) *StateObject {
	return s.soup[cat]
}

// State returns the registered state object of (cat, owner).
func (s *Scene) State(cat Category, owner OwnerID) (*StateObject, bool) {
	return s.store.lookup(cat, owner)
}

// StateCount returns the number of registered state objects in a category.
func (s *Scene) StateCount(cat Category) int {
	return s.store.len(cat)
}

// stateChanged invalidates what an in-place payload swap can affect.
func (s *Scene) stateChanged(cat Category) {
	s.pickBufferDirty = true
	switch cat {
	case CategoryFlags, CategoryTag:
		s.invalidateVisible()
	case CategoryLayer:
		s.invalidateVisible()
		s.sortKeysDirty = true
		s.sortDirty = true
	}
}

// SetMorphFactor moves the morph factor of owner's morph state without a
// recompile. It reports false if the owner has no registered morph.
func (s *Scene) SetMorphFactor(owner OwnerID, factor float32) bool {
	so, ok := s.store.lookup(CategoryMorph, owner)
	if !ok {
		return false
	}
	m := *so.Payload.(*Morph)
	m.Factor = factor
	so.Payload = &m
	s.pickBufferDirty = true
	return true
}

// SetLayerEnabled overrides the enable state of every layer named name.
func (s *Scene) SetLayerEnabled(name string, enabled bool) {
	if cur, ok := s.layerOverrides[name]; ok && cur == enabled {
		return
	}
	s.layerOverrides[name] = enabled
	s.invalidateVisible()
	s.pickBufferDirty = true
}

// SetMarshaller installs the hook run at the start of every SetGeometry so
// external state producers can flush state not yet exported this frame.
func (s *Scene) SetMarshaller(fn func()) {
	s.marshal = fn
}

// --- Invalidation ---

// invalidateVisible forces the next walk to re-derive the visible cache.
func (s *Scene) invalidateVisible() {
	s.visible = s.visible[:0]
}

// invalidateBin records a bin membership change.
func (s *Scene) invalidateBin() {
	s.sortDirty = true
	s.sortKeysDirty = true
	s.pickBufferDirty = true
	s.callListDirty = true
	s.invalidateVisible()
}

// setTagSelector compiles a tag selector, invalidating the visible cache
// when it differs from the one the cache was built with.
func (s *Scene) setTagSelector(pattern string) error {
	if pattern != s.tagPattern {
		if pattern == "" {
			s.tagRe = nil
		} else {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("tag selector %q: %w", pattern, err)
			}
			s.tagRe = re
		}
		s.tagPattern = pattern
	}
	if s.visiblePattern != pattern {
		s.invalidateVisible()
		s.pickBufferDirty = true
		s.visiblePattern = pattern
	}
	return nil
}

// --- Introspection ---

// BinLen returns the number of bin entries, tombstones included.
func (s *Scene) BinLen() int { return len(s.bin) }

// VisibleLen returns the length of the visible cache.
func (s *Scene) VisibleLen() int { return len(s.visible) }

// SortDirty reports whether the bin must be re-sorted before drawing.
func (s *Scene) SortDirty() bool { return s.sortDirty }

// StateHash returns the current composite state hash, or "" if it is
// invalidated.
func (s *Scene) StateHash() string {
	if !s.hashValid {
		return ""
	}
	return s.stateHash
}
