package thicket

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// MorphTarget is one keyframe of a morph. Slices use the Geometry layout.
type MorphTarget struct {
	Positions []float32
	Normals   []float32
	UV        []float32
}

// Morph blends between keyframed targets. Keys are ascending and pair with
// Targets; Factor selects a point on the key range.
type Morph struct {
	Keys    []float32
	Targets []MorphTarget
	Factor  float32
}

func (*Morph) Category() Category { return CategoryMorph }

func (m *Morph) hashFragment() string {
	if len(m.Targets) == 0 {
		return ""
	}
	b := []byte{'m'}
	if m.hasNormals() {
		b = append(b, 'n')
	}
	if m.hasUV() {
		b = append(b, 'u')
	}
	return string(b)
}

func (m *Morph) hasNormals() bool { return len(m.Targets) > 0 && len(m.Targets[0].Normals) > 0 }
func (m *Morph) hasUV() bool      { return len(m.Targets) > 0 && len(m.Targets[0].UV) > 0 }

// frame locates Factor on the key range: targets i0 and i1 blended by t.
func (m *Morph) frame() (i0, i1 int, t float32) {
	n := len(m.Targets)
	if n == 0 {
		return 0, 0, 0
	}
	if n == 1 || len(m.Keys) < n {
		return 0, 0, 0
	}
	f := m.Factor
	if f <= m.Keys[0] {
		return 0, 0, 0
	}
	if f >= m.Keys[n-1] {
		return n - 1, n - 1, 0
	}
	for i := 0; i < n-1; i++ {
		k0, k1 := m.Keys[i], m.Keys[i+1]
		if f >= k0 && f <= k1 {
			if k1 == k0 {
				return i, i + 1, 0
			}
			return i, i + 1, (f - k0) / (k1 - k0)
		}
	}
	return n - 1, n - 1, 0
}

// blend interpolates one attribute between the current frame's targets into
// dst, growing it as needed.
func (m *Morph) blend(attr func(*MorphTarget) []float32, dst []float32) []float32 {
	i0, i1, t := m.frame()
	a := attr(&m.Targets[i0])
	b := attr(&m.Targets[i1])
	if cap(dst) < len(a) {
		dst = make([]float32, len(a))
	}
	dst = dst[:len(a)]
	for i := range a {
		if i < len(b) {
			dst[i] = a[i] + (b[i]-a[i])*t
		} else {
			dst[i] = a[i]
		}
	}
	return dst
}

func morphPositions(t *MorphTarget) []float32 { return t.Positions }
func morphNormals(t *MorphTarget) []float32   { return t.Normals }

// MorphTween animates the morph factor of one owner's morph state.
// There is no global animation manager; call Update(dt) each frame.
type MorphTween struct {
	tween *gween.Tween
	scene *Scene
	owner OwnerID
	Done  bool
}

// TweenMorph creates a MorphTween moving the morph factor exported by owner
// to the target value over duration seconds using the easing function.
func TweenMorph(s *Scene, owner OwnerID, to float32, duration float32, fn ease.TweenFunc) *MorphTween {
	from := float32(0)
	if m, ok := s.State(CategoryMorph, owner); ok {
		from = m.Payload.(*Morph).Factor
	}
	return &MorphTween{
		tween: gween.New(from, to, duration, fn),
		scene: s,
		owner: owner,
	}
}

// Update advances the tween by dt seconds and writes the factor. If the
// owner's morph state has been evicted the tween stops.
func (mt *MorphTween) Update(dt float32) {
	if mt.Done {
		return
	}
	val, finished := mt.tween.Update(dt)
	if !mt.scene.SetMorphFactor(mt.owner, val) {
		mt.Done = true
		return
	}
	mt.Done = finished
}
