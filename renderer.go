package thicket

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNoScene is returned by RenderFrame when no scene is bound.
	ErrNoScene = errors.New("thicket: no scene bound")
	// ErrUnknownScene is returned for operations naming a scene that was never bound.
	ErrUnknownScene = errors.New("thicket: unknown scene")
	// ErrSceneBroken is returned for scenes left unrenderable by a program build failure.
	ErrSceneBroken = errors.New("thicket: scene is not renderable")
)

// BindParams selects the scene to bind.
type BindParams struct {
	SceneID  SceneID
	CanvasID string // leads every program hash of the scene
}

// BindOptions controls how a bound scene is recompiled.
type BindOptions struct {
	Mode RecompileMode
}

// RenderParams configures one frame.
type RenderParams struct {
	// TagSelector is a regular expression; tagged nodes whose tag does not
	// match are skipped. Empty selects everything.
	TagSelector string
	// Profile, when set, receives the frame's statistics.
	Profile func(FrameStats)
}

// Renderer owns the program cache and the scenes bound to one GPU context.
// It is single-threaded: every method must be called from the goroutine
// that drives frames.
type Renderer struct {
	gpu      GPUContext
	cfg      Config
	log      *slog.Logger
	programs programCache

	scenes map[SceneID]*Scene
	active *Scene

	nextStateID uint64
	nextNodeID  uint32

	warned map[string]struct{}
}

// NewRenderer creates a Renderer drawing through gpu.
func NewRenderer(gpu GPUContext, cfg Config) *Renderer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Composer == nil {
		cfg.Composer = KageComposer{}
	}
	return &Renderer{
		gpu:      gpu,
		cfg:      cfg,
		log:      cfg.Logger.WithGroup("thicket"),
		programs: newProgramCache(gpu, cfg.Composer, cfg.KeepProgramsWarm),
		scenes:   make(map[SceneID]*Scene),
		warned:   make(map[string]struct{}),
	}
}

// BindScene makes the scene active and prepares it for recompilation. The
// scene is created on first bind. Every bind resets the state soup to the
// category defaults; RecompileFull additionally retires every display node
// and state object of the scene.
func (r *Renderer) BindScene(p BindParams, o BindOptions) (*Scene, error) {
	if p.SceneID == "" {
		return nil, fmt.Errorf("bind scene: empty scene id")
	}
	s, ok := r.scenes[p.SceneID]
	if !ok {
		s = newScene(r, p.SceneID)
		r.scenes[p.SceneID] = s
	}
	if s.canvasID != p.CanvasID {
		s.canvasID = p.CanvasID
		s.hashValid = false
	}
	s.bind(o.Mode)
	r.active = s
	return s, nil
}

// Scene returns a previously bound scene.
func (r *Renderer) Scene(id SceneID) (*Scene, bool) {
	s, ok := r.scenes[id]
	return s, ok
}

// Active returns the bound scene, or nil.
func (r *Renderer) Active() *Scene { return r.active }

// RemoveGeometry retires the display nodes built for owner in a scene.
// Unknown scenes and owners are ignored.
func (r *Renderer) RemoveGeometry(id SceneID, owner OwnerID) {
	if s, ok := r.scenes[id]; ok {
		s.RemoveGeometry(owner)
	}
}

// DestroyScene releases every node, state and program reference held by a
// scene and forgets it.
func (r *Renderer) DestroyScene(id SceneID) {
	s, ok := r.scenes[id]
	if !ok {
		return
	}
	s.releaseAll()
	delete(r.scenes, id)
	if r.active == s {
		r.active = nil
	}
}

// RenderFrame draws the bound scene to the canvas.
func (r *Renderer) RenderFrame(p RenderParams) error {
	if r.active == nil {
		return ErrNoScene
	}
	stats, err := r.active.renderFrame(p)
	if err != nil {
		return err
	}
	if p.Profile != nil {
		p.Profile(stats)
	}
	if r.cfg.Debug {
		r.debugLog(r.active.id, stats)
	}
	return nil
}

// Pick resolves the node under a canvas pixel. A nil Hit with a nil error
// means nothing was hit.
func (r *Renderer) Pick(p PickParams) (*Hit, error) {
	s, ok := r.scenes[p.SceneID]
	if !ok {
		return nil, fmt.Errorf("pick %q: %w", p.SceneID, ErrUnknownScene)
	}
	return s.pick(p)
}

// ProgramCount returns the number of cached programs.
func (r *Renderer) ProgramCount() int { return r.programs.len() }

// PurgePrograms deletes cached programs no display node uses. Only useful
// with Config.KeepProgramsWarm.
func (r *Renderer) PurgePrograms() { r.programs.purge() }

// warnOnce logs a warning the first time key is seen.
func (r *Renderer) warnOnce(key, msg string, args ...any) {
	if _, seen := r.warned[key]; seen {
		return
	}
	r.warned[key] = struct{}{}
	r.log.Warn(msg, args...)
}
