package component

// Position is an entity's location in the arena.
type Position struct {
	X float64
	Y float64
}

// Velocity is in units per second.
type Velocity struct {
	X float64
	Y float64
}

// Lifetime counts the frames an entity has left. Pure data, zero methods:
// the lifetime system decrements it and queues expired entities.
type Lifetime struct {
	Remaining int
}

// Centroid is the mean position of all live entities, refreshed once per
// frame. Stored as a world resource, not per entity.
type Centroid struct {
	X     float64
	Y     float64
	Count int
}
