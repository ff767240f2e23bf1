package thicket

import (
	"github.com/go-gl/mathgl/mgl32"
)

// StateObject is a reference-counted snapshot of one category's payload,
// shared by every display node built while it was the current soup entry.
type StateObject struct {
	Category Category
	Owner    OwnerID
	StateID  uint64 // unique per creation; 0 for category defaults
	Hash     string // program-identity fragment; "" for non-hashed categories
	Payload  Payload

	refs      int
	isDefault bool
}

// Refs returns the number of live display nodes referencing the object.
// Defaults always report 0.
func (so *StateObject) Refs() int { return so.refs }

// IsDefault reports whether so is the shared default of its category.
func (so *StateObject) IsDefault() bool { return so.isDefault }

// defaultStates is the read-only table of per-category defaults. Defaults
// are never reference counted, never evicted, and hash to "".
var defaultStates = [categoryCount]*StateObject{
	CategoryFlags: newDefault(&Flags{
		Enabled: true, Picking: true, Backfaces: true,
		Clipping: true, Texturing: true, Specular: true,
	}),
	CategoryLayer:          newDefault(&Layer{Enabled: true}),
	CategoryTag:            newDefault(&Tag{}),
	CategoryName:           newDefault(&Name{}),
	CategoryRenderer:       newDefault(&RendererState{ClearColor: ColorBlack, Clear: true}),
	CategoryClips:          newDefault(&Clips{}),
	CategoryColorTransform: newDefault(&ColorTransform{Scale: [4]float32{1, 1, 1, 1}, Saturation: 1}),
	CategoryLights:         newDefault(&Lights{}),
	CategoryMorph:          newDefault(&Morph{}),
	CategoryTexture:        newDefault(&Textures{}),
	CategoryShader:         newDefault(&Shader{}),
	CategoryShaderParams:   newDefault(&ShaderParams{}),
	CategoryMaterial: newDefault(&Material{
		BaseColor: ColorWhite, Alpha: 1, Specular: 1,
		SpecularColor: ColorWhite, Shininess: 70,
	}),
	CategoryModelTransform: newDefault(Model(mgl32.Ident4())),
	CategoryViewTransform:  newDefault(LookAt(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})),
	CategoryProjTransform:  newDefault(Perspective(60, 1, 0.1, 5000)),
	CategoryGeometry:       newDefault(&Geometry{}),
}

func newDefault(p Payload) *StateObject {
	return &StateObject{Category: p.Category(), Payload: p, isDefault: true}
}

// DefaultState returns the shared default for a category.
func DefaultState(cat Category) *StateObject {
	return defaultStates[cat]
}

// stateStore maps (category, owner) to state objects for one scene. All
// reference count changes go through acquire and release.
type stateStore struct {
	maps   [categoryCount]map[OwnerID]*StateObject
	nextID *uint64
}

func newStateStore(nextID *uint64) stateStore {
	st := stateStore{nextID: nextID}
	for i := range st.maps {
		st.maps[i] = make(map[OwnerID]*StateObject)
	}
	return st
}

// lookup returns the live object registered for (cat, owner).
func (st *stateStore) lookup(cat Category, owner OwnerID) (*StateObject, bool) {
	so, ok := st.maps[cat][owner]
	return so, ok
}

// fetch returns the object for (cat, owner). With fresh set, or when no
// object is registered, a new one is allocated with its hash computed and
// replaces the map entry. Otherwise the existing object is reused and only
// its payload is swapped. A hashed object still referenced by display nodes
// keeps its hash, and a payload with a different hash gets a new object
// instead: the nodes keep the old one until they are rebuilt.
func (st *stateStore) fetch(cat Category, owner OwnerID, p Payload, fresh bool) (so *StateObject, created bool) {
	if !fresh {
		if so, ok := st.maps[cat][owner]; ok {
			h := p.hashFragment()
			if so.refs == 0 {
				so.Hash, so.Payload = h, p
				return so, false
			}
			if !cat.Hashed() || so.Hash == h {
				so.Payload = p
				return so, false
			}
		}
	}
	*st.nextID++
	so = &StateObject{
		Category: cat,
		Owner:    owner,
		StateID:  *st.nextID,
		Hash:     p.hashFragment(),
		Payload:  p,
	}
	st.maps[cat][owner] = so
	return so, true
}

// acquire records one more display node referencing so.
func (st *stateStore) acquire(so *StateObject) {
	if so == nil || so.isDefault {
		return
	}
	so.refs++
}

// release drops one reference. At zero the object is evicted from its
// category map, unless a newer object has replaced it there. Releasing an
// object with no references is a no-op.
func (st *stateStore) release(so *StateObject) (evicted bool) {
	if so == nil || so.isDefault || so.refs <= 0 {
		return false
	}
	so.refs--
	if so.refs > 0 {
		return false
	}
	m := st.maps[so.Category]
	if m[so.Owner] == so {
		delete(m, so.Owner)
	}
	return true
}

// sweep evicts every registered object no display node references.
func (st *stateStore) sweep() (evicted int) {
	for i := range st.maps {
		for owner, so := range st.maps[i] {
			if so.refs == 0 {
				delete(st.maps[i], owner)
				evicted++
			}
		}
	}
	return evicted
}

// len returns the number of registered objects in a category.
func (st *stateStore) len(cat Category) int {
	return len(st.maps[cat])
}

// reset drops every registration. Callers release display nodes first.
func (st *stateStore) reset() {
	for i := range st.maps {
		clear(st.maps[i])
	}
}
