package thicket

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
)

func TestEbitenSamplesFirstLayerCoords(t *testing.T) {
	tex := ebiten.NewImage(4, 4)
	defer tex.Deallocate()

	g := NewQuad(2, 2)
	g.UV2 = []float32{0, 0, 0.5, 0, 0.25, 0.75, 0, 0.5}
	ds := &DrawState{Model: mgl32.Ident4(), View: mgl32.Ident4(), Proj: mgl32.Ident4()}

	tests := []struct {
		name   string
		coords TexCoords
		x, y   float32
	}{
		{"uv", CoordsUV, 4, 0},
		{"uv2", CoordsUV2, 1, 3},
		{"normal", CoordsNormal, 2, 2},
	}
	for _, tt := range tests {
		c := NewEbitenContext(64, 64)
		c.BindTextures([]TextureLayer{{Texture: tex, Coords: tt.coords}})
		c.BindGeometry(g)
		c.buildVertices(ds, g.Positions, g.Normals)
		if len(c.verts) != 4 {
			t.Fatalf("%s: vertices = %d, want 4", tt.name, len(c.verts))
		}
		if v := c.verts[2]; !approx(v.SrcX, tt.x, 1e-5) || !approx(v.SrcY, tt.y, 1e-5) {
			t.Errorf("%s: vertex 2 source = (%v, %v), want (%v, %v)", tt.name, v.SrcX, v.SrcY, tt.x, tt.y)
		}
	}
}
