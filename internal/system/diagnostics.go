package system

import (
	"context"
	"time"

	"github.com/l1jgo/gamesys/internal/core/event"
	"github.com/l1jgo/gamesys/internal/core/job"
	coresys "github.com/l1jgo/gamesys/internal/core/system"
	"github.com/l1jgo/gamesys/internal/persist"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DiagnosticsSystem closes every frame: it delivers the frame's scheduler
// events, collects executor failures and periodically flushes the journal on
// a worker. journal may be nil.
type DiagnosticsSystem struct {
	coresys.Base
	sim        *Sim
	journal    *persist.Journal
	flushEvery int

	frames    int
	delivered int
	failures  int
	jobErrors int
}

func NewDiagnosticsSystem(sim *Sim, journal *persist.Journal, flushEvery int) *DiagnosticsSystem {
	if flushEvery < 1 {
		flushEvery = 1
	}
	return &DiagnosticsSystem{sim: sim, journal: journal, flushEvery: flushEvery}
}

func (s *DiagnosticsSystem) Declare() {
	_ = s.UpdateInGroup(coresys.TypeOf[coresys.LateUpdateGroup](), coresys.OrderLast())
	_ = s.UpdateAfter(coresys.TypeOf[CleanupSystem]())
	_ = s.WritesData(JournalKey)
}

func (s *DiagnosticsSystem) OnCreate() error {
	bus := s.World().Bus()
	if bus == nil {
		return nil
	}
	event.Subscribe(bus, func(e event.UpdateFailed) {
		s.failures++
		s.record(e)
	})
	event.Subscribe(bus, func(e event.SortFailed) { s.record(e) })
	event.Subscribe(bus, func(e event.SystemCreated) { s.record(e) })
	event.Subscribe(bus, func(e event.SystemDestroyed) { s.record(e) })
	return nil
}

func (s *DiagnosticsSystem) record(ev any) {
	if s.journal == nil {
		return
	}
	if e, ok := persist.EntryFromEvent(ev, time.Now()); ok {
		s.journal.Append(e)
	}
}

func (s *DiagnosticsSystem) OnSchedule(deps job.Token) (job.Token, error) {
	log := s.World().Logger()
	s.frames++

	if bus := s.World().Bus(); bus != nil {
		bus.SwapBuffers()
		s.delivered += bus.DispatchAll()
	}
	if s.sim.Exec != nil {
		if err := s.sim.Exec.Drain(); err != nil {
			errs := multierr.Errors(err)
			s.jobErrors += len(errs)
			log.Warn("jobs failed during frame",
				zap.Uint64("frame", s.World().Time().Frame),
				zap.Int("count", len(errs)),
				zap.Error(err),
			)
		}
	}

	if s.journal == nil || s.frames%s.flushEvery != 0 || s.journal.Pending() == 0 {
		return job.Completed(), nil
	}
	return s.sim.Exec.Dispatch(deps, "journal", s.journal.Flush), nil
}

// OnDestroy writes whatever the journal still holds.
func (s *DiagnosticsSystem) OnDestroy() error {
	if s.journal == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.journal.Flush(ctx)
}

// Failures returns the number of UpdateFailed events delivered so far.
func (s *DiagnosticsSystem) Failures() int { return s.failures }

// Delivered returns the number of bus events dispatched so far.
func (s *DiagnosticsSystem) Delivered() int { return s.delivered }

// JobErrors returns the number of executor failures collected so far.
func (s *DiagnosticsSystem) JobErrors() int { return s.jobErrors }
