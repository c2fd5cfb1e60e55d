package system

import (
	"maps"
	"sync"

	"github.com/l1jgo/gamesys/internal/component"
	"github.com/l1jgo/gamesys/internal/config"
	"github.com/l1jgo/gamesys/internal/core/ecs"
	"github.com/l1jgo/gamesys/internal/core/job"
	"github.com/l1jgo/gamesys/internal/executor"
)

// Resource keys for data that is not an ECS component store.
var (
	CentroidKey   = job.KeyOf[component.Centroid]()
	BlackboardKey = job.KeyOf[Blackboard]()
)

// JournalKey fences the diagnostics journal flush.
const JournalKey job.Key = "journal"

// Sim is the shared state the demo systems operate on.
type Sim struct {
	Entities   *ecs.World
	Positions  *ecs.Store[component.Position]
	Velocities *ecs.Store[component.Velocity]
	Lifetimes  *ecs.Store[component.Lifetime]
	Centroid   component.Centroid
	Board      *Blackboard
	Exec       *executor.Pool
	Cfg        config.SimulationConfig
}

// NewSim registers the component stores on a fresh entity world.
func NewSim(cfg config.SimulationConfig, exec *executor.Pool) *Sim {
	ents := ecs.NewWorld()
	return &Sim{
		Entities:   ents,
		Positions:  ecs.Register[component.Position](ents),
		Velocities: ecs.Register[component.Velocity](ents),
		Lifetimes:  ecs.Register[component.Lifetime](ents),
		Board:      NewBlackboard(),
		Exec:       exec,
		Cfg:        cfg,
	}
}

// Blackboard is a set of named numbers shared between built-in and scripted
// systems. Access is fenced by BlackboardKey; the mutex covers job bodies.
type Blackboard struct {
	mu     sync.RWMutex
	values map[string]float64
}

func NewBlackboard() *Blackboard {
	return &Blackboard{values: make(map[string]float64)}
}

func (b *Blackboard) Set(name string, v float64) {
	b.mu.Lock()
	b.values[name] = v
	b.mu.Unlock()
}

func (b *Blackboard) Get(name string) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// Snapshot returns a copy of all values.
func (b *Blackboard) Snapshot() map[string]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.values)
}

// Merge sets every value in m.
func (b *Blackboard) Merge(m map[string]float64) {
	if len(m) == 0 {
		return
	}
	b.mu.Lock()
	maps.Copy(b.values, m)
	b.mu.Unlock()
}
