package ecs

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/phanxgames/thicket"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

// CameraData is the view and projection of a Camera entity.
type CameraData struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

// Components read by Export.
var (
	Mesh      = donburi.NewComponentType[thicket.Geometry]()
	Transform = donburi.NewComponentType[mgl32.Mat4]()
	Name      = donburi.NewComponentType[string]()
	Tag       = donburi.NewComponentType[string]()
	Material  = donburi.NewComponentType[thicket.Material]()
	Flags     = donburi.NewComponentType[thicket.Flags]()
	Camera    = donburi.NewComponentType[CameraData]()
)

// PickEvent is published when a pick resolves to an exported entity.
type PickEvent struct {
	Entity donburi.Entity
	Hit    thicket.Hit
}

// PickEventType is the Donburi event type for pick hits. Subscribe to it in
// your ECS systems and drain it with ProcessEvents.
var PickEventType = events.NewEventType[PickEvent]()

// Exporter walks a Donburi world and exports its renderable entities.
type Exporter struct {
	world    donburi.World
	meshes   *donburi.Query
	cameras  *donburi.Query
	entities map[thicket.OwnerID]donburi.Entity
	previous map[thicket.OwnerID]donburi.Entity
}

// NewExporter creates an Exporter over world.
func NewExporter(world donburi.World) *Exporter {
	return &Exporter{
		world:    world,
		meshes:   donburi.NewQuery(filter.Contains(Mesh)),
		cameras:  donburi.NewQuery(filter.Contains(Camera)),
		entities: make(map[thicket.OwnerID]donburi.Entity),
		previous: make(map[thicket.OwnerID]donburi.Entity),
	}
}

// ownerOf maps an entity to its scene owner id. Zero is reserved for NoOwner.
func ownerOf(e donburi.Entity) thicket.OwnerID {
	return thicket.OwnerID(uint32(e.Id()) + 1)
}

// Export sends every mesh entity to s. Per-entity state is reset after each
// entity so it never leaks into the next. Entities exported by the previous
// Export that are gone from the world have their nodes removed.
func (x *Exporter) Export(s *thicket.Scene) error {
	x.entities, x.previous = x.previous, x.entities
	clear(x.entities)

	if entry, ok := x.cameras.First(x.world); ok {
		cam := Camera.Get(entry)
		owner := ownerOf(entry.Entity())
		s.SetState(thicket.CategoryViewTransform, owner, &thicket.Transform{Kind: thicket.CategoryViewTransform, Matrix: cam.View})
		s.SetState(thicket.CategoryProjTransform, owner, &thicket.Transform{Kind: thicket.CategoryProjTransform, Matrix: cam.Proj})
	}

	var err error
	x.meshes.Each(x.world, func(entry *donburi.Entry) {
		if err != nil {
			return
		}
		owner := ownerOf(entry.Entity())
		x.entities[owner] = entry.Entity()

		var set []thicket.Category
		state := func(cat thicket.Category, p thicket.Payload) {
			s.SetState(cat, owner, p)
			set = append(set, cat)
		}
		if entry.HasComponent(Name) {
			state(thicket.CategoryName, &thicket.Name{Name: *Name.Get(entry)})
		}
		if entry.HasComponent(Tag) {
			state(thicket.CategoryTag, &thicket.Tag{Tag: *Tag.Get(entry)})
		}
		if entry.HasComponent(Material) {
			m := *Material.Get(entry)
			state(thicket.CategoryMaterial, &m)
		}
		if entry.HasComponent(Flags) {
			f := *Flags.Get(entry)
			state(thicket.CategoryFlags, &f)
		}
		if entry.HasComponent(Transform) {
			state(thicket.CategoryModelTransform, thicket.Model(*Transform.Get(entry)))
		}

		g := *Mesh.Get(entry)
		if gerr := s.SetGeometry(owner, &g); gerr != nil {
			err = fmt.Errorf("ecs: export entity %v: %w", entry.Entity(), gerr)
		}
		for _, cat := range set {
			s.SetState(cat, thicket.NoOwner, nil)
		}
	})
	for owner := range x.previous {
		if _, ok := x.entities[owner]; !ok {
			s.RemoveGeometry(owner)
		}
	}
	return err
}

// Entity returns the entity exported under owner by the last Export.
func (x *Exporter) Entity(owner thicket.OwnerID) (donburi.Entity, bool) {
	e, ok := x.entities[owner]
	return e, ok
}

// Pick resolves p on r and publishes a PickEvent when the hit belongs to an
// exported entity. Hits on entities removed since the last Export are
// reported as misses.
func (x *Exporter) Pick(r *thicket.Renderer, p thicket.PickParams) (*thicket.Hit, error) {
	hit, err := r.Pick(p)
	if err != nil || hit == nil {
		return hit, err
	}
	e, ok := x.entities[hit.Owner]
	if !ok {
		return hit, nil
	}
	if !x.world.Valid(e) {
		return nil, nil
	}
	PickEventType.Publish(x.world, PickEvent{Entity: e, Hit: *hit})
	return hit, nil
}
