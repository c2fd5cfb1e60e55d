package ecs

import (
	"sync"

	"github.com/l1jgo/gamesys/internal/core/job"
)

// DestroyQueueKey fences access to the deferred destruction queue. Jobs that
// call MarkForDestruction declare it as a write, as does the flush.
const DestroyQueueKey job.Key = "ecs/destroy-queue"

// World is the entity container. It owns the entity pool, the component
// registry and a deferred destruction queue flushed once per frame.
type World struct {
	pool     *EntityPool
	registry *Registry

	mu           sync.Mutex // queue is appended from jobs
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Register creates a store for T and tracks it for bulk removal.
func Register[T any](w *World) *Store[T] {
	s := NewStore[T]()
	w.registry.Register(s)
	return s
}

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for end-of-frame cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.mu.Lock()
	w.destroyQueue = append(w.destroyQueue, id)
	w.mu.Unlock()
}

// Pending returns the number of queued destructions.
func (w *World) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.destroyQueue)
}

// FlushDestroyQueue destroys all queued entities, clears their components and
// returns how many were destroyed. Duplicate or stale ids are skipped.
func (w *World) FlushDestroyQueue() int {
	w.mu.Lock()
	queue := w.destroyQueue
	w.destroyQueue = make([]EntityID, 0, cap(queue))
	w.mu.Unlock()

	var n int
	for _, id := range queue {
		if !w.pool.Alive(id) {
			continue
		}
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		n++
	}
	return n
}
