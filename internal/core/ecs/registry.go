package ecs

import (
	"slices"

	"github.com/l1jgo/gamesys/internal/core/job"
)

// Registry indexes component stores by resource key. Destroying an entity
// clears it from every store; the key list tells the cleanup system what to
// fence before it does.
type Registry struct {
	byKey map[job.Key]Removable
	keys  []job.Key // sorted
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[job.Key]Removable, 16)}
}

// Register tracks store under its key. A second store for the same key
// replaces the first.
func (r *Registry) Register(store Removable) {
	k := store.Key()
	if _, ok := r.byKey[k]; !ok {
		at, _ := slices.BinarySearch(r.keys, k)
		r.keys = slices.Insert(r.keys, at, k)
	}
	r.byKey[k] = store
}

// Lookup returns the store registered for key.
func (r *Registry) Lookup(key job.Key) (Removable, bool) {
	s, ok := r.byKey[key]
	return s, ok
}

// Keys returns the keys of every registered store in sorted order.
func (r *Registry) Keys() []job.Key { return slices.Clone(r.keys) }

func (r *Registry) RemoveAll(id EntityID) {
	for _, k := range r.keys {
		r.byKey[k].Remove(id)
	}
}
