package ecs

import (
	"testing"

	"github.com/l1jgo/gamesys/internal/core/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y float64 }
type velocity struct{ X, Y float64 }

func TestRecycledIdsInvalidateStaleReferences(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	p.Destroy(a)
	b := p.Create()

	assert.Equal(t, a.Index(), b.Index())
	assert.NotEqual(t, a, b)
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))

	p.Destroy(a)
	assert.True(t, p.Alive(b), "destroying a stale id is a no-op")
	assert.Equal(t, 1, p.Live())
}

func TestStoreKeyIsComponentType(t *testing.T) {
	s := NewStore[position]()
	assert.Equal(t, job.KeyOf[position](), s.Key())
}

func TestFlushRemovesComponents(t *testing.T) {
	w := NewWorld()
	pos := Register[position](w)
	vel := Register[velocity](w)

	e := w.CreateEntity()
	keep := w.CreateEntity()
	pos.Set(e, &position{})
	vel.Set(e, &velocity{})
	pos.Set(keep, &position{X: 1})

	w.MarkForDestruction(e)
	w.MarkForDestruction(e)
	require.Equal(t, 2, w.Pending())
	assert.Equal(t, 1, w.FlushDestroyQueue())

	assert.False(t, w.Alive(e))
	assert.False(t, pos.Has(e))
	assert.False(t, vel.Has(e))
	assert.True(t, pos.Has(keep))
	assert.Equal(t, 0, w.Pending())
	assert.ElementsMatch(t, []job.Key{job.KeyOf[position](), job.KeyOf[velocity]()}, w.Registry().Keys())
}

func TestEach2VisitsIntersection(t *testing.T) {
	w := NewWorld()
	pos := Register[position](w)
	vel := Register[velocity](w)
	for i := range 5 {
		e := w.CreateEntity()
		pos.Set(e, &position{X: float64(i)})
		if i%2 == 0 {
			vel.Set(e, &velocity{X: 1})
		}
	}

	var n int
	Each2(pos, vel, func(_ EntityID, p *position, v *velocity) {
		p.X += v.X
		n++
	})
	assert.Equal(t, 3, n)
}

func TestRegistryKeysAreSortedAndUnique(t *testing.T) {
	w := NewWorld()
	vel := Register[velocity](w)
	pos := Register[position](w)
	again := Register[position](w)

	assert.Equal(t, []job.Key{pos.Key(), vel.Key()}, w.Registry().Keys(), "position sorts before velocity")

	got, ok := w.Registry().Lookup(pos.Key())
	require.True(t, ok)
	assert.Same(t, again, got, "the newest store for a key wins")
}

