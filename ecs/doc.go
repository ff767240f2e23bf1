// Package ecs exports a [Donburi] world into a thicket scene and reports
// picks back to it as typed events.
//
// Entities carrying a [Mesh] component become display nodes. [Name], [Tag],
// [Material], [Flags] and [Transform] are exported alongside when present.
// The first entity with a [Camera] supplies the view and projection.
//
// Usage:
//
//	x := ecs.NewExporter(world)
//	scene, _ := renderer.BindScene(thicket.BindParams{SceneID: "main"}, thicket.BindOptions{})
//	x.Export(scene)
//	...
//	x.Pick(renderer, thicket.PickParams{SceneID: "main", CanvasX: mx, CanvasY: my})
//	ecs.PickEventType.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
