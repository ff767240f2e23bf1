// Package thicket is the rendering backend of a retained 3D scene graph.
//
// An upstream traversal walks its tree and exports state into a [Scene]: one
// [Scene.SetState] call per category it changes, then [Scene.SetGeometry] for
// each drawable leaf. Every geometry becomes a display node that captures
// the current state of every category. Nodes with the same program-relevant
// state share one compiled program.
//
// Frames and picks run against the compiled draw list without touching the
// scene graph again:
//
//	r := thicket.NewRenderer(thicket.NewEbitenContext(640, 480), thicket.DefaultConfig())
//	s, _ := r.BindScene(thicket.BindParams{SceneID: "main", CanvasID: "c"}, thicket.BindOptions{})
//	s.SetState(thicket.CategoryName, 1, &thicket.Name{Name: "floor"})
//	s.SetGeometry(1, thicket.NewQuad(10, 10))
//	r.RenderFrame(thicket.RenderParams{})
//	hit, _ := r.Pick(thicket.PickParams{SceneID: "main", CanvasX: 320, CanvasY: 240})
//
// # Recompilation
//
// [BindScene] starts a recompilation pass. [RecompileFull] discards every
// node and state object and rebuilds from scratch. [RecompileBranch] and
// [RecompileNodes] keep the state graph: exporting a category under an owner
// that already has a state object swaps its payload in place, and
// SetGeometry on a live owner reattaches per-node attachments without
// touching its program. A payload that changes the shape of hashed state
// gets a new state object; RecompileBranch rebuilds the nodes built from
// the old one, RecompileNodes leaves them as they were.
//
// # Draw order
//
// The bin is sorted by a packed key of layer priority, program, texture
// state and geometry state, so consecutive draws share as many bindings as
// possible. Opaque nodes draw first in that order; transparent nodes are
// deferred and drawn afterwards in encounter order.
//
// # Picking
//
// Picks draw every pickable node into an offscreen target in a unique id
// color and read back one pixel. A ray pick also draws a depth pass and
// unprojects the pixel into world space. The pick buffer is reused until
// the draw list or any pick-relevant state changes.
//
// # Backends
//
// Renderers drive a [GPUContext]. [EbitenContext] runs on [Ebitengine] with
// programs composed as Kage shaders by [KageComposer]. The [Donburi]
// exporter lives in thicket/ecs.
//
// [Ebitengine]: https://ebitengine.org
// [Donburi]: https://github.com/yohamta/donburi
package thicket
