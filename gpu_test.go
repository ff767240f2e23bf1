package thicket

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// fakeDraw records one Draw call.
type fakeDraw struct {
	target    PassTarget
	program   ProgramHandle
	blend     BlendMode
	geo       *Geometry
	baseColor []float32
	pickColor []float32
	rayPick   bool
}

// fakeGPU is a software GPUContext: it rasterizes triangles at pixel
// centers without a depth test, shading canvas draws with the BaseColor and
// Alpha uniforms and pick draws with the pick color or packed depth.
type fakeGPU struct {
	w, h int

	sources  map[ProgramHandle]string
	nextID   ProgramHandle
	failOn   string // sources containing this fail to compile
	compiles int
	deletes  int

	target  PassTarget
	program ProgramHandle
	geo     *Geometry
	blend   BlendMode
	layers  []TextureLayer
	pixels  [3][][4]float32
	passes  []PassTarget
	draws   []fakeDraw

	useCalls, textureCalls, geometryCalls int
}

func newFakeGPU(w, h int) *fakeGPU {
	f := &fakeGPU{w: w, h: h, sources: make(map[ProgramHandle]string)}
	for i := range f.pixels {
		f.pixels[i] = make([][4]float32, w*h)
	}
	return f
}

func (f *fakeGPU) CompileProgram(src []byte) (ProgramHandle, error) {
	f.compiles++
	if f.failOn != "" && strings.Contains(string(src), f.failOn) {
		return 0, errors.New("fake compile error")
	}
	f.nextID++
	f.sources[f.nextID] = string(src)
	return f.nextID, nil
}

func (f *fakeGPU) DeleteProgram(h ProgramHandle) {
	f.deletes++
	delete(f.sources, h)
}

func (f *fakeGPU) CanvasSize() (int, int) { return f.w, f.h }

func (f *fakeGPU) BeginPass(t PassTarget, clear bool, c Color) {
	f.target = t
	f.passes = append(f.passes, t)
	if clear {
		px := [4]float32{c.R * c.A, c.G * c.A, c.B * c.A, c.A}
		for i := range f.pixels[t] {
			f.pixels[t][i] = px
		}
	}
}

func (f *fakeGPU) EndPass()                           {}
func (f *fakeGPU) UseProgram(h ProgramHandle)         { f.program = h; f.useCalls++ }
func (f *fakeGPU) BindTextures(layers []TextureLayer) { f.layers = layers; f.textureCalls++ }
func (f *fakeGPU) BindGeometry(g *Geometry)           { f.geo = g; f.geometryCalls++ }
func (f *fakeGPU) SetBlend(mode BlendMode)            { f.blend = mode }

func (f *fakeGPU) Draw(ds *DrawState) {
	d := fakeDraw{target: f.target, program: f.program, blend: f.blend, geo: f.geo}
	if v, ok := ds.Uniforms["BaseColor"].([]float32); ok {
		d.baseColor = append([]float32(nil), v...)
	}
	if v, ok := ds.Uniforms["PickColor"].([]float32); ok {
		d.pickColor = append([]float32(nil), v...)
	}
	if v, ok := ds.Uniforms["RayPick"].(float32); ok {
		d.rayPick = v > 0
	}
	f.draws = append(f.draws, d)

	g := f.geo
	if g == nil || g.Primitive != PrimitiveTriangles {
		return
	}
	positions := g.Positions
	if ds.Morph != nil {
		if mp := ds.Morph.blend(morphPositions, nil); len(mp) == len(positions) {
			positions = mp
		}
	}
	mvp := ds.Proj.Mul4(ds.View).Mul4(ds.Model)
	idx := g.TriangleIndices()
	for t := 0; t+2 < len(idx); t += 3 {
		var sx, sy, sd [3]float32
		visible := true
		for j := 0; j < 3; j++ {
			v := idx[t+j]
			p := mgl32.Vec3{positions[v*3], positions[v*3+1], positions[v*3+2]}
			x, y, depth, ok := projectPoint(mvp, p, f.w, f.h)
			if !ok {
				visible = false
			}
			sx[j], sy[j], sd[j] = x, y, depth
		}
		if !visible {
			continue
		}
		area := edge(sx[0], sy[0], sx[1], sy[1], sx[2], sy[2])
		if area == 0 || (!ds.Backfaces && area > 0) {
			continue
		}
		minX := max(0, int(math.Floor(float64(min(sx[0], sx[1], sx[2])))))
		maxX := min(f.w-1, int(math.Ceil(float64(max(sx[0], sx[1], sx[2])))))
		minY := max(0, int(math.Floor(float64(min(sy[0], sy[1], sy[2])))))
		maxY := min(f.h-1, int(math.Ceil(float64(max(sy[0], sy[1], sy[2])))))
		for py := minY; py <= maxY; py++ {
			for px := minX; px <= maxX; px++ {
				cx, cy := float32(px)+0.5, float32(py)+0.5
				w0 := edge(sx[1], sy[1], sx[2], sy[2], cx, cy)
				w1 := edge(sx[2], sy[2], sx[0], sy[0], cx, cy)
				w2 := edge(sx[0], sy[0], sx[1], sy[1], cx, cy)
				inside := (w0 >= 0 && w1 >= 0 && w2 >= 0) || (w0 <= 0 && w1 <= 0 && w2 <= 0)
				if !inside {
					continue
				}
				depth := (w0*sd[0] + w1*sd[1] + w2*sd[2]) / area
				f.shade(px, py, ds, depth)
			}
		}
	}
}

func edge(ax, ay, bx, by, cx, cy float32) float32 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

func (f *fakeGPU) shade(x, y int, ds *DrawState, depth float32) {
	dst := &f.pixels[f.target][y*f.w+x]
	switch f.target {
	case TargetPick:
		if c, ok := ds.Uniforms["PickColor"].([]float32); ok {
			*dst = [4]float32{c[0], c[1], c[2], c[3]}
		}
		return
	case TargetPickDepth:
		e := EncodeDepth(depth)
		*dst = [4]float32{float32(e[0]) / 255, float32(e[1]) / 255, float32(e[2]) / 255, 1}
		return
	}

	base, _ := ds.Uniforms["BaseColor"].([]float32)
	alpha, _ := ds.Uniforms["Alpha"].(float32)
	if len(base) < 3 {
		base = []float32{1, 1, 1}
	}
	src := [4]float32{base[0] * alpha, base[1] * alpha, base[2] * alpha, alpha}
	switch f.blend {
	case BlendNone:
		*dst = src
	case BlendAdd:
		for i := range dst {
			dst[i] = min(1, dst[i]+src[i])
		}
	default:
		for i := range dst {
			dst[i] = src[i] + dst[i]*(1-alpha)
		}
	}
}

func (f *fakeGPU) ReadPixel(t PassTarget, x, y int) [4]uint8 {
	p := f.pixels[t][y*f.w+x]
	return [4]uint8{
		uint8(clamp01(p[0])*255 + 0.5),
		uint8(clamp01(p[1])*255 + 0.5),
		uint8(clamp01(p[2])*255 + 0.5),
		uint8(clamp01(p[3])*255 + 0.5),
	}
}

// canvasDraws returns the draws issued to the canvas.
func (f *fakeGPU) canvasDraws() []fakeDraw {
	var out []fakeDraw
	for _, d := range f.draws {
		if d.target == TargetCanvas {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeGPU) resetDraws() {
	f.draws = f.draws[:0]
	f.passes = f.passes[:0]
	f.useCalls, f.textureCalls, f.geometryCalls = 0, 0, 0
}

// --- Test helpers ---

const testCanvas = 64

func newTestRenderer(t *testing.T, cfg Config) (*Renderer, *fakeGPU) {
	t.Helper()
	gpu := newFakeGPU(testCanvas, testCanvas)
	return NewRenderer(gpu, cfg), gpu
}

func bindFull(t *testing.T, r *Renderer, id SceneID) *Scene {
	t.Helper()
	s, err := r.BindScene(BindParams{SceneID: id, CanvasID: "canvas"}, BindOptions{Mode: RecompileFull})
	if err != nil {
		t.Fatalf("BindScene: %v", err)
	}
	return s
}

func bindMode(t *testing.T, r *Renderer, id SceneID, mode RecompileMode) *Scene {
	t.Helper()
	s, err := r.BindScene(BindParams{SceneID: id, CanvasID: "canvas"}, BindOptions{Mode: mode})
	if err != nil {
		t.Fatalf("BindScene: %v", err)
	}
	return s
}

func mustSetGeometry(t *testing.T, s *Scene, owner OwnerID, g *Geometry) {
	t.Helper()
	if err := s.SetGeometry(owner, g); err != nil {
		t.Fatalf("SetGeometry(%d): %v", owner, err)
	}
}

// flagsWith returns the default flags modified by fn.
func flagsWith(fn func(*Flags)) *Flags {
	f := *DefaultState(CategoryFlags).Payload.(*Flags)
	fn(&f)
	return &f
}

func colorMaterial(c Color, alpha float32) *Material {
	m := *DefaultState(CategoryMaterial).Payload.(*Material)
	m.BaseColor = c
	m.Alpha = alpha
	return &m
}

// orthoCamera exports an orthographic camera looking down -Z from z=5 that
// maps [-1,1] in X and Y onto the canvas.
func orthoCamera(s *Scene, owner OwnerID) {
	s.SetState(CategoryViewTransform, owner, LookAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))
	s.SetState(CategoryProjTransform, owner, Ortho(-1, 1, -1, 1, 0.1, 100))
}

func approx(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}
