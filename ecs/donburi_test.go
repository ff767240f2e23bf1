package ecs

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/phanxgames/thicket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yohamta/donburi"
)

// flatGPU fills the whole pick target with the color of the last pick draw,
// so a pick anywhere hits the last pickable node.
type flatGPU struct {
	next thicket.ProgramHandle
	pick [4]uint8
}

func (g *flatGPU) CompileProgram([]byte) (thicket.ProgramHandle, error) {
	g.next++
	return g.next, nil
}

func (g *flatGPU) DeleteProgram(thicket.ProgramHandle) {}
func (g *flatGPU) CanvasSize() (int, int)              { return 16, 16 }
func (g *flatGPU) EndPass()                            {}
func (g *flatGPU) UseProgram(thicket.ProgramHandle)    {}
func (g *flatGPU) BindTextures([]thicket.TextureLayer) {}
func (g *flatGPU) BindGeometry(*thicket.Geometry)      {}
func (g *flatGPU) SetBlend(thicket.BlendMode)          {}

func (g *flatGPU) BeginPass(t thicket.PassTarget, clear bool, _ thicket.Color) {
	if t == thicket.TargetPick && clear {
		g.pick = [4]uint8{}
	}
}

func (g *flatGPU) Draw(ds *thicket.DrawState) {
	c, ok := ds.Uniforms["PickColor"].([]float32)
	if !ok {
		return
	}
	for i := range g.pick {
		g.pick[i] = uint8(c[i]*255 + 0.5)
	}
}

func (g *flatGPU) ReadPixel(t thicket.PassTarget, _, _ int) [4]uint8 {
	if t == thicket.TargetPick {
		return g.pick
	}
	return [4]uint8{}
}

func newScene(t *testing.T) (*thicket.Renderer, *thicket.Scene) {
	t.Helper()
	r := thicket.NewRenderer(&flatGPU{}, thicket.DefaultConfig())
	s, err := r.BindScene(thicket.BindParams{SceneID: "main"}, thicket.BindOptions{})
	require.NoError(t, err)
	return r, s
}

func newMesh(world donburi.World, name string) donburi.Entity {
	e := world.Create(Mesh, Name)
	entry := world.Entry(e)
	Mesh.Set(entry, thicket.NewQuad(1, 1))
	Name.SetValue(entry, name)
	return e
}

func TestExportMeshes(t *testing.T) {
	world := donburi.NewWorld()
	a := newMesh(world, "a")
	b := world.Create(Mesh)
	Mesh.Set(world.Entry(b), thicket.NewQuad(2, 2))
	world.Create(Name) // not renderable

	_, s := newScene(t)
	x := NewExporter(world)
	require.NoError(t, x.Export(s))
	assert.Equal(t, 2, s.NodeCount())

	name, ok := s.NodeState(ownerOf(a), thicket.CategoryName)
	require.True(t, ok)
	assert.Equal(t, "a", name.Payload.(*thicket.Name).Name)

	// b has no Name component and must not inherit a's.
	name, ok = s.NodeState(ownerOf(b), thicket.CategoryName)
	require.True(t, ok)
	assert.True(t, name.IsDefault())

	got, ok := x.Entity(ownerOf(a))
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestExportOptionalComponents(t *testing.T) {
	world := donburi.NewWorld()
	e := world.Create(Mesh, Transform, Material, Flags, Tag)
	entry := world.Entry(e)
	Mesh.Set(entry, thicket.NewQuad(1, 1))
	Transform.SetValue(entry, mgl32.Translate3D(1, 2, 3))
	Material.SetValue(entry, thicket.Material{BaseColor: thicket.Color{R: 1, A: 1}, Alpha: 0.5})
	Flags.SetValue(entry, thicket.Flags{Enabled: true, Transparent: true})
	Tag.SetValue(entry, "gizmo")

	cam := world.Create(Camera)
	Camera.SetValue(world.Entry(cam), CameraData{
		View: mgl32.Ident4(),
		Proj: mgl32.Ortho(-1, 1, -1, 1, 0.1, 10),
	})

	_, s := newScene(t)
	require.NoError(t, NewExporter(world).Export(s))

	owner := ownerOf(e)
	tr, _ := s.NodeState(owner, thicket.CategoryModelTransform)
	assert.Equal(t, mgl32.Translate3D(1, 2, 3), tr.Payload.(*thicket.Transform).Matrix)
	mat, _ := s.NodeState(owner, thicket.CategoryMaterial)
	assert.InDelta(t, 0.5, mat.Payload.(*thicket.Material).Alpha, 1e-6)
	flags, _ := s.NodeState(owner, thicket.CategoryFlags)
	assert.True(t, flags.Payload.(*thicket.Flags).Transparent)
	tag, _ := s.NodeState(owner, thicket.CategoryTag)
	assert.Equal(t, "gizmo", tag.Payload.(*thicket.Tag).Tag)
	proj, _ := s.NodeState(owner, thicket.CategoryProjTransform)
	assert.Equal(t, mgl32.Ortho(-1, 1, -1, 1, 0.1, 10), proj.Payload.(*thicket.Transform).Matrix)
}

func TestPickPublishesEvent(t *testing.T) {
	world := donburi.NewWorld()
	e := newMesh(world, "target")

	r, s := newScene(t)
	x := NewExporter(world)
	require.NoError(t, x.Export(s))

	var received []PickEvent
	PickEventType.Subscribe(world, func(w donburi.World, ev PickEvent) {
		received = append(received, ev)
	})

	hit, err := x.Pick(r, thicket.PickParams{SceneID: "main", CanvasX: 4, CanvasY: 4})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "target", hit.Name)

	// Events are queued until processed.
	assert.Empty(t, received)
	PickEventType.ProcessEvents(world)
	require.Len(t, received, 1)
	assert.Equal(t, e, received[0].Entity)
	assert.Equal(t, [2]int{4, 4}, received[0].Hit.CanvasPos)
}

func TestPickRemovedEntityPublishesNothing(t *testing.T) {
	world := donburi.NewWorld()
	e := newMesh(world, "gone")

	r, s := newScene(t)
	x := NewExporter(world)
	require.NoError(t, x.Export(s))
	world.Remove(e)

	var count int
	PickEventType.Subscribe(world, func(donburi.World, PickEvent) { count++ })

	hit, err := x.Pick(r, thicket.PickParams{SceneID: "main", CanvasX: 1, CanvasY: 1})
	require.NoError(t, err)
	assert.Nil(t, hit, "removed entity picked before the next export")
	PickEventType.ProcessEvents(world)
	assert.Zero(t, count)
}

func TestExportRetiresRemovedEntities(t *testing.T) {
	world := donburi.NewWorld()
	gone := newMesh(world, "gone")
	newMesh(world, "kept")

	r, s := newScene(t)
	x := NewExporter(world)
	require.NoError(t, x.Export(s))
	require.Equal(t, 2, s.NodeCount())

	world.Remove(gone)
	s, err := r.BindScene(thicket.BindParams{SceneID: "main"}, thicket.BindOptions{Mode: thicket.RecompileNodes})
	require.NoError(t, err)
	require.NoError(t, x.Export(s))

	assert.Equal(t, 1, s.NodeCount())
	_, ok := x.Entity(ownerOf(gone))
	assert.False(t, ok)

	hit, err := x.Pick(r, thicket.PickParams{SceneID: "main", CanvasX: 1, CanvasY: 1})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "kept", hit.Name)
}

func TestPickMissPublishesNothing(t *testing.T) {
	world := donburi.NewWorld()
	e := newMesh(world, "hidden")
	world.Entry(e).AddComponent(Flags)
	Flags.SetValue(world.Entry(e), thicket.Flags{Enabled: true})

	r, s := newScene(t)
	x := NewExporter(world)
	require.NoError(t, x.Export(s))

	hit, err := x.Pick(r, thicket.PickParams{SceneID: "main", CanvasX: 1, CanvasY: 1})
	require.NoError(t, err)
	assert.Nil(t, hit)
}
