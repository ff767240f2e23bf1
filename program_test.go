package thicket

import (
	"errors"
	"testing"
)

func TestProgramSharedAcrossEqualState(t *testing.T) {
	r, gpu := newTestRenderer(t, DefaultConfig())
	s := bindFull(t, r, "main")
	s.SetState(CategoryMaterial, 1, colorMaterial(Color{1, 0, 0, 1}, 1))
	mustSetGeometry(t, s, 2, NewQuad(1, 1))
	s.SetState(CategoryMaterial, 3, colorMaterial(Color{0, 1, 0, 1}, 1))
	mustSetGeometry(t, s, 4, NewQuad(3, 3))

	if r.ProgramCount() != 1 {
		t.Fatalf("ProgramCount = %d, want 1", r.ProgramCount())
	}
	p, _ := s.NodeProgram(2)
	if p.Refs() != 2 {
		t.Errorf("Refs = %d, want 2", p.Refs())
	}
	if gpu.compiles != 2 {
		t.Errorf("compiles = %d, want 2 (one render, one pick)", gpu.compiles)
	}
}

func TestProgramPerDistinctHash(t *testing.T) {
	r, _ := newTestRenderer(t, DefaultConfig())
	s := bindFull(t, r, "main")
	mustSetGeometry(t, s, 1, NewQuad(1, 1))
	mustSetGeometry(t, s, 2, &Geometry{Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}})
	s.SetState(CategoryClips, 3, &Clips{Planes: []ClipPlane{{Mode: ClipOutside, Normal: [3]float32{1, 0, 0}}}})
	mustSetGeometry(t, s, 4, NewQuad(1, 1))

	if r.ProgramCount() != 3 {
		t.Fatalf("ProgramCount = %d, want 3", r.ProgramCount())
	}
	a, _ := s.NodeProgram(1)
	b, _ := s.NodeProgram(2)
	c, _ := s.NodeProgram(4)
	if a == b || a == c || b == c {
		t.Error("distinct state hashes share a program")
	}
	if !(a.ID < b.ID && b.ID < c.ID) {
		t.Errorf("program ids %d %d %d, want increasing", a.ID, b.ID, c.ID)
	}
}

func TestCanvasIDLeadsHash(t *testing.T) {
	r, _ := newTestRenderer(t, DefaultConfig())
	a, _ := r.BindScene(BindParams{SceneID: "a", CanvasID: "left"}, BindOptions{})
	mustSetGeometry(t, a, 1, NewQuad(1, 1))
	b, _ := r.BindScene(BindParams{SceneID: "b", CanvasID: "right"}, BindOptions{})
	mustSetGeometry(t, b, 1, NewQuad(1, 1))
	if r.ProgramCount() != 2 {
		t.Errorf("ProgramCount = %d, want one program per canvas", r.ProgramCount())
	}
}

func TestProgramReleasedWithLastNode(t *testing.T) {
	r, gpu := newTestRenderer(t, DefaultConfig())
	s := bindFull(t, r, "main")
	mustSetGeometry(t, s, 1, NewQuad(1, 1))
	mustSetGeometry(t, s, 2, NewQuad(1, 1))

	s.RemoveGeometry(1)
	if r.ProgramCount() != 1 {
		t.Fatalf("ProgramCount after first remove = %d, want 1", r.ProgramCount())
	}
	s.RemoveGeometry(2)
	if r.ProgramCount() != 0 {
		t.Errorf("ProgramCount = %d, want 0", r.ProgramCount())
	}
	if gpu.deletes != 2 {
		t.Errorf("GPU deletes = %d, want 2", gpu.deletes)
	}
}

func TestKeepProgramsWarm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepProgramsWarm = true
	r, gpu := newTestRenderer(t, cfg)
	s := bindFull(t, r, "main")
	mustSetGeometry(t, s, 1, NewQuad(1, 1))
	first, _ := s.NodeProgram(1)

	s = bindFull(t, r, "main")
	if r.ProgramCount() != 1 {
		t.Fatalf("ProgramCount after rebind = %d, want 1 kept warm", r.ProgramCount())
	}
	mustSetGeometry(t, s, 1, NewQuad(1, 1))
	second, _ := s.NodeProgram(1)
	if first != second {
		t.Error("warm program not reused")
	}
	if gpu.compiles != 2 {
		t.Errorf("compiles = %d, want 2", gpu.compiles)
	}

	bindFull(t, r, "main")
	r.PurgePrograms()
	if r.ProgramCount() != 0 || len(gpu.sources) != 0 {
		t.Errorf("after purge: programs = %d, gpu programs = %d, want 0", r.ProgramCount(), len(gpu.sources))
	}
}

func TestProgramBuildFailureBreaksScene(t *testing.T) {
	r, gpu := newTestRenderer(t, DefaultConfig())
	gpu.failOn = "LightDirs"
	s := bindFull(t, r, "main")
	mustSetGeometry(t, s, 1, NewQuad(1, 1))

	s.SetState(CategoryLights, 2, &Lights{Lights: []Light{{Kind: LightDir, Dir: [3]float32{0, 0, -1}}}})
	err := s.SetGeometry(3, NewQuad(1, 1))
	if !errors.Is(err, ErrProgramBuild) {
		t.Fatalf("SetGeometry err = %v, want ErrProgramBuild", err)
	}
	if !errors.Is(s.Err(), ErrProgramBuild) {
		t.Errorf("Err() = %v, want ErrProgramBuild", s.Err())
	}
	if err := s.SetGeometry(4, NewQuad(1, 1)); !errors.Is(err, ErrSceneBroken) {
		t.Errorf("SetGeometry on broken scene err = %v, want ErrSceneBroken", err)
	}
	if err := r.RenderFrame(RenderParams{}); !errors.Is(err, ErrSceneBroken) {
		t.Errorf("RenderFrame err = %v, want ErrSceneBroken", err)
	}
	if _, err := r.Pick(PickParams{SceneID: "main"}); !errors.Is(err, ErrSceneBroken) {
		t.Errorf("Pick err = %v, want ErrSceneBroken", err)
	}

	gpu.failOn = ""
	s = bindFull(t, r, "main")
	if s.Err() != nil {
		t.Fatalf("Err() after full rebind = %v, want nil", s.Err())
	}
	mustSetGeometry(t, s, 1, NewQuad(1, 1))
	if err := r.RenderFrame(RenderParams{}); err != nil {
		t.Errorf("RenderFrame after recovery: %v", err)
	}
}

func TestPickProgramFailureDeletesRenderProgram(t *testing.T) {
	gpu := newFakeGPU(8, 8)
	gpu.failOn = "PickColor"
	c := newProgramCache(gpu, KageComposer{}, false)
	_, err := c.acquire("h", func() ActiveStateFlags { return ActiveStateFlags{} })
	if !errors.Is(err, ErrProgramBuild) {
		t.Fatalf("err = %v, want ErrProgramBuild", err)
	}
	if len(gpu.sources) != 0 {
		t.Errorf("live GPU programs = %d, want 0", len(gpu.sources))
	}
	if c.len() != 0 {
		t.Errorf("cached programs = %d, want 0", c.len())
	}
}

func TestFlagsOnlyComposedOnMiss(t *testing.T) {
	gpu := newFakeGPU(8, 8)
	c := newProgramCache(gpu, KageComposer{}, false)
	calls := 0
	flags := func() ActiveStateFlags { calls++; return ActiveStateFlags{} }
	p1, _ := c.acquire("h", flags)
	p2, _ := c.acquire("h", flags)
	if calls != 1 {
		t.Errorf("flags calls = %d, want 1", calls)
	}
	if p1 != p2 || p1.Refs() != 2 {
		t.Errorf("p1 == p2: %v, Refs = %d, want same program with 2 refs", p1 == p2, p1.Refs())
	}
	c.release(p1)
	c.release(p2)
	c.release(p2)
	if p1.Refs() != 0 {
		t.Errorf("Refs = %d, want 0 after over-release", p1.Refs())
	}
}
