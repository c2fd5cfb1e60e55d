package ecs

import "github.com/l1jgo/gamesys/internal/core/job"

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
	Key() job.Key
}

// Store is a typed map of components. Systems that touch a store declare its
// Key; the scheduler then fences jobs so a store is never written while
// anything else reads or writes it. Structural changes (Set/Remove) belong on
// the scheduler goroutine.
type Store[T any] struct {
	key  job.Key
	data map[EntityID]*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		key:  job.KeyOf[T](),
		data: make(map[EntityID]*T, 256),
	}
}

// Key is the resource key of the component type.
func (s *Store[T]) Key() job.Key { return s.key }

func (s *Store[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}
