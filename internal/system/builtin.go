package system

import (
	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"github.com/l1jgo/gamesys/internal/persist"
)

// Builtin returns the built-in simulation systems, uncreated.
func Builtin(sim *Sim, journal *persist.Journal, flushEvery int) []coresys.System {
	return []coresys.System{
		NewSpawnSystem(sim),
		NewDragSystem(sim),
		NewMovementSystem(sim),
		NewBoundsSystem(sim),
		NewCentroidSystem(sim),
		NewLifetimeSystem(sim),
		NewCleanupSystem(sim),
		NewDiagnosticsSystem(sim, journal, flushEvery),
	}
}
