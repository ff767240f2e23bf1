package thicket

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
)

// EbitenContext is a GPUContext drawing through Ebitengine. Programs are
// Kage shaders; vertices are transformed on the CPU and drawn with
// DrawTrianglesShader32. The custom vertex attribute carries the world
// normal in Custom0..2 and the [0,1] depth in Custom3.
//
// Ebitengine has no depth test, so overlapping geometry resolves in draw
// order. Clip planes and backface culling are applied per triangle. Only
// triangle primitives are drawn. A vertex has one source position, so every
// bound layer is sampled with the coordinates of the first: UV, UV2, or a
// sphere map of the world normal.
type EbitenContext struct {
	// Logger receives warnings about geometry the context cannot draw.
	Logger *slog.Logger

	screen  *ebiten.Image
	w, h    int
	pool    targetPool
	targets [3]*ebiten.Image

	shaders map[ProgramHandle]*ebiten.Shader
	nextID  ProgramHandle

	target *ebiten.Image
	shader *ebiten.Shader
	images [maxKageImages]*ebiten.Image
	coords TexCoords
	geo    *Geometry
	blend  BlendMode
	op     ebiten.DrawTrianglesShaderOptions

	verts   []ebiten.Vertex
	inds    []uint32
	world   []mgl32.Vec3
	visible []bool
	posBuf  []float32
	nrmBuf  []float32
	warned  map[Primitive]bool
}

// NewEbitenContext returns a context with a w x h canvas. Call SetScreen
// each frame to draw into the game screen instead of the internal canvas.
func NewEbitenContext(w, h int) *EbitenContext {
	return &EbitenContext{
		Logger:  slog.Default(),
		w:       w,
		h:       h,
		shaders: make(map[ProgramHandle]*ebiten.Shader),
		warned:  make(map[Primitive]bool),
	}
}

// SetScreen sets the image canvas passes draw into and resizes the canvas
// to its bounds.
func (c *EbitenContext) SetScreen(screen *ebiten.Image) {
	c.screen = screen
	b := screen.Bounds()
	c.resize(b.Dx(), b.Dy())
}

func (c *EbitenContext) resize(w, h int) {
	if w == c.w && h == c.h {
		return
	}
	c.w, c.h = w, h
	for i := TargetPick; i <= TargetPickDepth; i++ {
		c.pool.release(c.targets[i])
		c.targets[i] = nil
	}
}

// Dispose deallocates the context's offscreen targets and shaders.
func (c *EbitenContext) Dispose() {
	for i, img := range c.targets {
		if img != nil && img != c.screen {
			img.Deallocate()
		}
		c.targets[i] = nil
	}
	c.pool.dispose()
	for h, s := range c.shaders {
		s.Deallocate()
		delete(c.shaders, h)
	}
}

// CompileProgram implements GPUContext.
func (c *EbitenContext) CompileProgram(source []byte) (ProgramHandle, error) {
	s, err := ebiten.NewShader(source)
	if err != nil {
		return 0, fmt.Errorf("compile kage program: %w", err)
	}
	c.nextID++
	c.shaders[c.nextID] = s
	return c.nextID, nil
}

// DeleteProgram implements GPUContext.
func (c *EbitenContext) DeleteProgram(h ProgramHandle) {
	if s, ok := c.shaders[h]; ok {
		s.Deallocate()
		delete(c.shaders, h)
	}
}

// CanvasSize implements GPUContext.
func (c *EbitenContext) CanvasSize() (int, int) { return c.w, c.h }

func (c *EbitenContext) image(t PassTarget) *ebiten.Image {
	if t == TargetCanvas && c.screen != nil {
		return c.screen
	}
	if c.targets[t] == nil {
		if t == TargetCanvas {
			c.targets[t] = ebiten.NewImage(c.w, c.h)
		} else {
			c.targets[t] = c.pool.acquire(c.w, c.h)
		}
	}
	return c.targets[t]
}

// BeginPass implements GPUContext.
func (c *EbitenContext) BeginPass(t PassTarget, clear bool, clearColor Color) {
	c.target = c.image(t)
	if clear {
		c.target.Fill(clearColor.RGBA())
	}
	c.shader = nil
	c.images = [maxKageImages]*ebiten.Image{}
	c.coords = CoordsUV
	c.geo = nil
}

// EndPass implements GPUContext.
func (c *EbitenContext) EndPass() { c.target = nil }

// UseProgram implements GPUContext.
func (c *EbitenContext) UseProgram(h ProgramHandle) { c.shader = c.shaders[h] }

// BindTextures implements GPUContext. Layers whose texture is not an
// *ebiten.Image, or whose size differs from the first layer's, are left
// unbound.
func (c *EbitenContext) BindTextures(layers []TextureLayer) {
	c.images = [maxKageImages]*ebiten.Image{}
	c.coords = CoordsUV
	if len(layers) > 0 {
		c.coords = layers[0].Coords
	}
	var size image.Point
	for i, l := range layers {
		if i == maxKageImages {
			break
		}
		img, ok := l.Texture.(*ebiten.Image)
		if !ok || img == nil {
			continue
		}
		if i == 0 {
			size = img.Bounds().Size()
		} else if img.Bounds().Size() != size {
			continue
		}
		c.images[i] = img
	}
}

// BindGeometry implements GPUContext.
func (c *EbitenContext) BindGeometry(g *Geometry) { c.geo = g }

// SetBlend implements GPUContext.
func (c *EbitenContext) SetBlend(mode BlendMode) { c.blend = mode }

// Draw implements GPUContext.
func (c *EbitenContext) Draw(ds *DrawState) {
	g := c.geo
	if c.target == nil || c.shader == nil || g == nil || g.VertexCount() == 0 {
		return
	}
	if g.Primitive != PrimitiveTriangles {
		if !c.warned[g.Primitive] {
			c.warned[g.Primitive] = true
			c.Logger.Warn("ebiten context draws triangles only; geometry skipped", "primitive", g.Primitive)
		}
		return
	}

	positions, normals := g.Positions, g.Normals
	if m := ds.Morph; m != nil {
		c.posBuf = m.blend(morphPositions, c.posBuf)
		positions = c.posBuf
		if m.hasNormals() {
			c.nrmBuf = m.blend(morphNormals, c.nrmBuf)
			normals = c.nrmBuf
		}
	}

	c.buildVertices(ds, positions, normals)
	c.buildIndices(ds)
	if len(c.inds) == 0 {
		return
	}

	c.op.Images = c.images
	c.op.Uniforms = ds.Uniforms
	c.op.Blend = c.blend.EbitenBlend()
	c.target.DrawTrianglesShader32(c.verts, c.inds, c.shader, &c.op)
}

func (c *EbitenContext) buildVertices(ds *DrawState, positions, normals []float32) {
	g := c.geo
	n := len(positions) / 3
	mvp := ds.Proj.Mul4(ds.View).Mul4(ds.Model)
	nm := normalMatrix(ds.Model)

	var tw, th float32
	if img := c.images[0]; img != nil {
		b := img.Bounds()
		tw, th = float32(b.Dx()), float32(b.Dy())
	}

	c.verts = c.verts[:0]
	c.world = c.world[:0]
	c.visible = c.visible[:0]
	for i := 0; i < n; i++ {
		p := mgl32.Vec3{positions[i*3], positions[i*3+1], positions[i*3+2]}
		sx, sy, depth, ok := projectPoint(mvp, p, c.w, c.h)

		nrm := mgl32.Vec3{0, 0, 1}
		if len(normals) >= (i+1)*3 {
			nrm = nm.Mul3x1(mgl32.Vec3{normals[i*3], normals[i*3+1], normals[i*3+2]})
			if nrm.Len() > 0 {
				nrm = nrm.Normalize()
			}
		}

		v := ebiten.Vertex{
			DstX: sx, DstY: sy,
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
			Custom0: nrm[0], Custom1: nrm[1], Custom2: nrm[2], Custom3: depth,
		}
		switch uv := g.UV; c.coords {
		case CoordsNormal:
			v.SrcX, v.SrcY = (nrm[0]*0.5+0.5)*tw, (0.5-nrm[1]*0.5)*th
		case CoordsUV2:
			uv = g.UV2
			fallthrough
		default:
			if len(uv) >= (i+1)*2 {
				v.SrcX, v.SrcY = uv[i*2]*tw, uv[i*2+1]*th
			}
		}
		if len(g.Colors) >= (i+1)*4 {
			v.ColorR, v.ColorG, v.ColorB, v.ColorA = g.Colors[i*4], g.Colors[i*4+1], g.Colors[i*4+2], g.Colors[i*4+3]
		}
		c.verts = append(c.verts, v)
		c.world = append(c.world, ds.Model.Mul4x1(p.Vec4(1)).Vec3())
		c.visible = append(c.visible, ok)
	}
}

// buildIndices keeps the triangles in front of the eye that survive
// backface culling and the clip planes.
func (c *EbitenContext) buildIndices(ds *DrawState) {
	c.inds = c.inds[:0]
	idx := c.geo.TriangleIndices()
	n := uint32(len(c.verts))
	for t := 0; t+2 < len(idx); t += 3 {
		a, b, d := idx[t], idx[t+1], idx[t+2]
		if a >= n || b >= n || d >= n {
			continue
		}
		if !c.visible[a] || !c.visible[b] || !c.visible[d] {
			continue
		}
		if !ds.Backfaces && frontArea(c.verts[a], c.verts[b], c.verts[d]) <= 0 {
			continue
		}
		if clipped(ds.Clips, c.world[a], c.world[b], c.world[d]) {
			continue
		}
		c.inds = append(c.inds, a, b, d)
	}
}

// frontArea returns twice the signed canvas-space area of a triangle,
// positive for triangles wound counter-clockwise in device space.
func frontArea(a, b, c ebiten.Vertex) float32 {
	return -((b.DstX-a.DstX)*(c.DstY-a.DstY) - (c.DstX-a.DstX)*(b.DstY-a.DstY))
}

// clipped reports whether a triangle's centroid is discarded by a plane.
func clipped(planes []ClipPlane, a, b, c mgl32.Vec3) bool {
	if len(planes) == 0 {
		return false
	}
	centroid := a.Add(b).Add(c).Mul(1.0 / 3)
	for _, p := range planes {
		if discards(p, centroid) {
			return true
		}
	}
	return false
}

func discards(p ClipPlane, pt mgl32.Vec3) bool {
	d := p.Normal.Dot(pt) - p.Dist
	switch p.Mode {
	case ClipInside:
		return d > 0
	case ClipOutside:
		return d < 0
	}
	return false
}

// ReadPixel implements GPUContext.
func (c *EbitenContext) ReadPixel(t PassTarget, x, y int) [4]uint8 {
	r, g, b, a := c.image(t).At(x, y).RGBA()
	return [4]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

// TargetImage implements TargetImager.
func (c *EbitenContext) TargetImage(t PassTarget) image.Image {
	return c.image(t).SubImage(image.Rect(0, 0, c.w, c.h))
}

var (
	_ GPUContext   = (*EbitenContext)(nil)
	_ TargetImager = (*EbitenContext)(nil)
)
