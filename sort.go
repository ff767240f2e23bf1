package thicket

import "math"

// Sort keys pack four dense 16-bit tiers, most significant first: layer
// priority, program, texture state, geometry state.
const (
	tierBits = 16
	tierMax  = 1<<tierBits - 1

	destroyedKey = math.MaxUint64
)

func packKey(layer, program, texture, geometry uint64) uint64 {
	return layer<<(3*tierBits) | program<<(2*tierBits) | texture<<tierBits | geometry
}

// identity is one node's sort identity before ranking.
type identity struct {
	priority int
	program  uint32
	texture  uint64
	geometry uint64
	id       uint32
}

func (s *Scene) identityOf(idx nodeIndex) identity {
	n := &s.nodes[idx]
	return identity{
		priority: n.layer().Priority,
		program:  n.program.ID,
		texture:  n.states[CategoryTexture].StateID,
		geometry: n.states[CategoryGeometry].StateID,
		id:       n.id,
	}
}

func identityLessOrEqual(a, b identity) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.program != b.program {
		return a.program < b.program
	}
	if a.texture != b.texture {
		return a.texture < b.texture
	}
	if a.geometry != b.geometry {
		return a.geometry < b.geometry
	}
	return a.id <= b.id
}

// rebuildSortKeys groups the live nodes by identity and assigns each tier a
// dense rank that increases whenever that tier's identity changes from the
// previous entry. Destroyed nodes sort last.
func (s *Scene) rebuildSortKeys() {
	ids := s.identBuf[:0]
	for _, idx := range s.bin {
		n := &s.nodes[idx]
		if n.destroyed {
			n.sortKey = destroyedKey
			continue
		}
		ids = append(ids, s.identityOf(idx))
	}
	ids, s.identScratch = mergeSort(ids, s.identScratch, identityLessOrEqual)
	s.identBuf = ids

	byID := s.keyByID
	clear(byID)
	var layer, program, texture, geometry uint64
	for i, id := range ids {
		if i > 0 {
			prev := ids[i-1]
			if id.priority != prev.priority {
				layer = min(layer+1, tierMax)
			}
			if id.program != prev.program {
				program = min(program+1, tierMax)
			}
			if id.texture != prev.texture {
				texture = min(texture+1, tierMax)
			}
			if id.geometry != prev.geometry {
				geometry = min(geometry+1, tierMax)
			}
		}
		byID[id.id] = packKey(layer, program, texture, geometry)
	}
	for _, idx := range s.bin {
		n := &s.nodes[idx]
		if !n.destroyed {
			n.sortKey = byID[n.id]
		}
	}
	s.sortKeysDirty = false
}

// sortBin re-sorts the bin by ascending key when it is dirty. It reports
// whether a sort happened.
func (s *Scene) sortBin() bool {
	if !s.sortDirty {
		return false
	}
	if s.sortKeysDirty {
		s.rebuildSortKeys()
	}
	nodes := s.nodes
	s.bin, s.sortBuf = mergeSort(s.bin, s.sortBuf, func(a, b nodeIndex) bool {
		ka, kb := nodes[a].sortKey, nodes[b].sortKey
		if ka != kb {
			return ka < kb
		}
		return nodes[a].id <= nodes[b].id
	})
	s.sortDirty = false
	s.callListDirty = true
	s.invalidateVisible()
	return true
}

// --- Merge sort ---

// mergeSort sorts a in place using buf as scratch space and returns both,
// buf possibly grown. Bottom-up and stable as long as lessOrEqual reports
// true for equal elements; allocation-free once buf reaches the high-water
// mark.
func mergeSort[T any](a, buf []T, lessOrEqual func(a, b T) bool) ([]T, []T) {
	n := len(a)
	if n <= 1 {
		return a, buf
	}
	if cap(buf) < n {
		buf = make([]T, n)
	}
	buf = buf[:n]

	src, dst := a, buf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeRun(src, dst, lo, mid, hi, lessOrEqual)
		}
		src, dst = dst, src
		swapped = !swapped
	}

	if swapped {
		copy(a, buf)
	}
	return a, buf
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun[T any](src, dst []T, lo, mid, hi int, lessOrEqual func(a, b T) bool) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if lessOrEqual(src[i], src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	for i < mid {
		dst[k] = src[i]
		i++
		k++
	}
	for j < hi {
		dst[k] = src[j]
		j++
		k++
	}
}
