package thicket

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Primitive selects how geometry indices are assembled.
type Primitive uint8

const (
	PrimitiveTriangles Primitive = iota
	PrimitiveLines
	PrimitivePoints
)

// Geometry is the vertex data of one display node. Attribute slices are
// flat: 3 floats per position/normal, 2 per UV, 4 per color.
type Geometry struct {
	Primitive Primitive
	Positions []float32
	Normals   []float32
	UV        []float32
	UV2       []float32
	Colors    []float32
	Indices   []uint32
}

func (*Geometry) Category() Category { return CategoryGeometry }

func (g *Geometry) hashFragment() string {
	b := make([]byte, 0, 8)
	b = append(b, 'g', "tlp"[g.Primitive%3])
	if g.HasNormals() {
		b = append(b, 'n')
	}
	if g.HasUV() {
		b = append(b, 'u')
	}
	if g.HasUV2() {
		b = append(b, 'U')
	}
	if len(g.Colors) > 0 {
		b = append(b, 'c')
	}
	return string(b)
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int { return len(g.Positions) / 3 }

func (g *Geometry) HasNormals() bool { return len(g.Normals) > 0 }
func (g *Geometry) HasUV() bool      { return len(g.UV) > 0 }
func (g *Geometry) HasUV2() bool     { return len(g.UV2) > 0 }

// Position returns vertex i.
func (g *Geometry) Position(i int) mgl32.Vec3 {
	return mgl32.Vec3{g.Positions[i*3], g.Positions[i*3+1], g.Positions[i*3+2]}
}

// Normal returns the normal of vertex i, or +Z when there are no normals.
func (g *Geometry) Normal(i int) mgl32.Vec3 {
	if !g.HasNormals() {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{g.Normals[i*3], g.Normals[i*3+1], g.Normals[i*3+2]}
}

// TriangleIndices returns the index list as triangles. Non-indexed geometry
// is treated as a sequential triangle list.
func (g *Geometry) TriangleIndices() []uint32 {
	if len(g.Indices) > 0 {
		return g.Indices
	}
	n := g.VertexCount()
	idx := make([]uint32, n-n%3)
	for i := range idx {
		idx[i] = uint32(i)
	}
	return idx
}

// NewQuad returns a w x h quad in the XY plane centered on the origin,
// facing +Z, with normals and UVs.
func NewQuad(w, h float32) *Geometry {
	hw, hh := w/2, h/2
	return &Geometry{
		Positions: []float32{
			-hw, -hh, 0,
			hw, -hh, 0,
			hw, hh, 0,
			-hw, hh, 0,
		},
		Normals: []float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		UV:      []float32{0, 1, 1, 1, 1, 0, 0, 0},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// NewBox returns an axis-aligned box with half extents (x, y, z), with
// per-face normals and UVs.
func NewBox(x, y, z float32) *Geometry {
	g := &Geometry{}
	// Each face: normal, and the two in-plane axes scaled by half extents.
	faces := [6][3]mgl32.Vec3{
		{{0, 0, 1}, {x, 0, 0}, {0, y, 0}},
		{{0, 0, -1}, {-x, 0, 0}, {0, y, 0}},
		{{1, 0, 0}, {0, 0, -z}, {0, y, 0}},
		{{-1, 0, 0}, {0, 0, z}, {0, y, 0}},
		{{0, 1, 0}, {x, 0, 0}, {0, 0, -z}},
		{{0, -1, 0}, {x, 0, 0}, {0, 0, z}},
	}
	ext := mgl32.Vec3{x, y, z}
	for _, f := range faces {
		n, u, v := f[0], f[1], f[2]
		center := mgl32.Vec3{n[0] * ext[0], n[1] * ext[1], n[2] * ext[2]}
		base := uint32(g.VertexCount())
		corners := [4]mgl32.Vec3{
			center.Sub(u).Sub(v),
			center.Add(u).Sub(v),
			center.Add(u).Add(v),
			center.Sub(u).Add(v),
		}
		for _, c := range corners {
			g.Positions = append(g.Positions, c[0], c[1], c[2])
			g.Normals = append(g.Normals, n[0], n[1], n[2])
		}
		g.UV = append(g.UV, 0, 1, 1, 1, 1, 0, 0, 0)
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}
