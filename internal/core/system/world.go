package system

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/l1jgo/gamesys/internal/core/event"
	"github.com/l1jgo/gamesys/internal/core/job"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Time is the frame clock advanced by Tick.
type Time struct {
	Frame      uint64
	Delta      time.Duration
	FixedDelta time.Duration
	Elapsed    time.Duration
}

// World owns every system it creates and the dependency tracker they share.
// It is driven from a single goroutine; only job bodies run elsewhere.
type World struct {
	log     *zap.Logger
	bus     *event.Bus
	ctx     context.Context
	cancel  context.CancelFunc
	tracker *job.Tracker

	systems   []System
	lookup    map[TypeID]System
	factories map[TypeID]func() System
	roots     []System
	seq       uint64
	time      Time

	failEvery time.Duration
	failures  map[*Base]*failureLog
	disposed  bool
}

type failureLog struct {
	limiter    *rate.Limiter
	suppressed int
}

type Option func(*World)

func WithLogger(log *zap.Logger) Option { return func(w *World) { w.log = log } }

// WithEventBus makes the world emit lifecycle and failure events on bus.
func WithEventBus(bus *event.Bus) Option { return func(w *World) { w.bus = bus } }

// WithContext sets the parent context for dependency waits. Dispose cancels
// the derived context.
func WithContext(ctx context.Context) Option { return func(w *World) { w.ctx = ctx } }

// WithFailureLogInterval throttles repeated update-failure logs of the same
// system to one entry per interval. Zero logs every failure.
func WithFailureLogInterval(d time.Duration) Option {
	return func(w *World) { w.failEvery = d }
}

func NewWorld(opts ...Option) *World {
	w := &World{
		log:       zap.NewNop(),
		ctx:       context.Background(),
		tracker:   job.NewTracker(),
		lookup:    make(map[TypeID]System),
		factories: make(map[TypeID]func() System),
		failures:  make(map[*Base]*failureLog),
	}
	for _, o := range opts {
		o(w)
	}
	w.ctx, w.cancel = context.WithCancel(w.ctx)
	return w
}

func (w *World) Logger() *zap.Logger      { return w.log }
func (w *World) Bus() *event.Bus          { return w.bus }
func (w *World) Tracker() *job.Tracker    { return w.tracker }
func (w *World) Context() context.Context { return w.ctx }
func (w *World) Time() Time               { return w.time }
func (w *World) Systems() []System        { return slices.Clone(w.systems) }
func (w *World) RootGroups() []System     { return slices.Clone(w.roots) }

// SetFixedDelta records the step used by the fixed-update phase.
func (w *World) SetFixedDelta(d time.Duration) { w.time.FixedDelta = d }

// RegisterFactory binds a constructor to a type identity. Create uses it in
// preference to reflective construction.
func (w *World) RegisterFactory(id TypeID, fn func() System) {
	w.factories[id] = fn
}

// AddSystem creates an already-constructed system in this world and makes it
// the instance returned by lookups of its type. If OnCreate fails the system
// is torn down, the previous registration is restored and the error returned.
func (w *World) AddSystem(sys System) error {
	if isNil(sys) {
		return ErrNilSystem
	}
	b := sys.base()
	typ := typeOfSystem(sys)
	switch b.state {
	case Created:
		return fmt.Errorf("add %s: %w", typ, ErrAlreadyCreated)
	case Destroyed:
		return fmt.Errorf("add %s: %w", typ, ErrDestroyed)
	}

	prev, hadPrev := w.lookup[typ]
	w.seq++
	w.systems = append(w.systems, sys)
	w.lookup[typ] = sys

	if err := b.create(w, sys, typ, w.seq); err != nil {
		w.untrack(sys)
		if hadPrev {
			w.lookup[typ] = prev
		}
		return fmt.Errorf("create %s: %w", typ, err)
	}
	w.log.Debug("system created", zap.String("system", typ.String()), zap.Stringer("id", b.id))
	event.Emit(w.bus, event.SystemCreated{ID: b.id, Type: typ.String()})
	return nil
}

// Create constructs and creates a new instance of id.
func (w *World) Create(id TypeID) (System, error) {
	sys, err := w.construct(id)
	if err != nil {
		return nil, err
	}
	if err := w.AddSystem(sys); err != nil {
		return nil, err
	}
	return sys, nil
}

func (w *World) construct(id TypeID) (System, error) {
	if !id.IsSystem() {
		return nil, fmt.Errorf("create %s: %w", id, ErrNotSystem)
	}
	if fn, ok := w.factories[id]; ok {
		sys := fn()
		if isNil(sys) {
			return nil, fmt.Errorf("create %s: %w", id, ErrNilSystem)
		}
		return sys, nil
	}
	if id.rt == nil {
		return nil, fmt.Errorf("create %s: %w", id, ErrUnknownType)
	}
	sys, ok := reflect.New(id.rt).Interface().(System)
	if !ok {
		return nil, fmt.Errorf("create %s: %w", id, ErrNotSystem)
	}
	return sys, nil
}

// GetOrCreate returns the registered instance of id, creating one if needed.
func (w *World) GetOrCreate(id TypeID) (System, error) {
	if sys := w.Existing(id); sys != nil {
		return sys, nil
	}
	return w.Create(id)
}

// Existing returns the registered instance of id, or nil.
func (w *World) Existing(id TypeID) System {
	return w.lookup[id]
}

// DestroySystem destroys sys and detaches it from every group. The type
// lookup is cleared only if sys is the registered instance.
func (w *World) DestroySystem(sys System) error {
	if isNil(sys) {
		return ErrNilSystem
	}
	b := sys.base()
	if b.state == Destroyed {
		return fmt.Errorf("destroy %s: %w", b.typ, ErrDestroyed)
	}
	if b.world != w || !w.untrack(sys) {
		return fmt.Errorf("destroy %s: %w", b.typ, ErrNotInWorld)
	}
	w.detach(sys)
	err := b.destroy()
	event.Emit(w.bus, event.SystemDestroyed{ID: b.id, Type: b.typ.String()})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", b.typ, err)
	}
	return nil
}

// untrack forgets sys. It reports whether sys was tracked.
func (w *World) untrack(sys System) bool {
	i := indexOf(w.systems, sys)
	if i < 0 {
		return false
	}
	w.systems = slices.Delete(w.systems, i, i+1)
	b := sys.base()
	if cur, ok := w.lookup[b.typ]; ok && cur.base() == b {
		delete(w.lookup, b.typ)
	}
	if i := indexOf(w.roots, sys); i >= 0 {
		w.roots = slices.Delete(w.roots, i, i+1)
	}
	delete(w.failures, b)
	return true
}

func (w *World) detach(sys System) {
	for _, s := range w.systems {
		g, ok := asGroup(s)
		if !ok || g.state != Created {
			continue
		}
		if g.manual {
			if i := indexOf(g.members, sys); i >= 0 {
				g.members = slices.Delete(slices.Clone(g.members), i, i+1)
			}
			continue
		}
		_ = g.RemoveSystemFromUpdateList(sys)
	}
}

// AddRootGroup appends a created group to the list driven by Tick.
func (w *World) AddRootGroup(sys System) error {
	if isNil(sys) {
		return ErrNilSystem
	}
	b := sys.base()
	if _, ok := asGroup(sys); !ok {
		return fmt.Errorf("root %s: %w", b.typ, ErrNotGroup)
	}
	if b.world != w || indexOf(w.systems, sys) < 0 {
		return fmt.Errorf("root %s: %w", b.typ, ErrNotInWorld)
	}
	if indexOf(w.roots, sys) < 0 {
		w.roots = append(w.roots, sys)
	}
	return nil
}

// Advance moves the frame clock forward by dt.
func (w *World) Advance(dt time.Duration) {
	w.time.Frame++
	w.time.Delta = dt
	w.time.Elapsed += dt
}

// Tick advances the clock and updates every root group in order.
func (w *World) Tick(dt time.Duration) error {
	w.Advance(dt)
	var errs error
	for _, r := range slices.Clone(w.roots) {
		errs = multierr.Append(errs, w.UpdateRoot(r))
	}
	return errs
}

// UpdateRoot updates a single root group, reporting a failure the way groups
// report failing members.
func (w *World) UpdateRoot(r System) error {
	if err := safeUpdate(r); err != nil {
		w.reportUpdateFailure(nil, r, err)
		return fmt.Errorf("%s: %w", r.base().typ, err)
	}
	return nil
}

// Dispose destroys every system in reverse creation order. All systems stop
// running first, then all OnDestroy hooks run, then all are marked destroyed.
// Outstanding jobs are completed before the world context is cancelled.
func (w *World) Dispose() error {
	if w.disposed {
		return nil
	}
	w.disposed = true

	systems := slices.Clone(w.systems)
	slices.Reverse(systems)

	for _, s := range systems {
		s.base().beforeDestroy()
	}
	var errs error
	for _, s := range systems {
		b := s.base()
		if err := b.callOnDestroy(); err != nil {
			w.log.Error("system destroy failed", zap.String("system", b.typ.String()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("destroy %s: %w", b.typ, err))
		}
	}
	for _, s := range systems {
		b := s.base()
		b.afterDestroy()
		event.Emit(w.bus, event.SystemDestroyed{ID: b.id, Type: b.typ.String()})
	}

	errs = multierr.Append(errs, w.tracker.CompleteAll(w.ctx))
	w.cancel()

	w.systems = nil
	w.roots = nil
	clear(w.lookup)
	clear(w.failures)
	return errs
}

func (w *World) reportUpdateFailure(g *Group, s System, err error) {
	b := s.base()
	groupName := ""
	if g != nil {
		groupName = g.typ.String()
	}
	event.Emit(w.bus, event.UpdateFailed{
		Group:    groupName,
		SystemID: b.id,
		System:   b.typ.String(),
		Frame:    w.time.Frame,
		Err:      err,
	})

	fl, ok := w.failures[b]
	if !ok {
		limit := rate.Inf
		if w.failEvery > 0 {
			limit = rate.Every(w.failEvery)
		}
		fl = &failureLog{limiter: rate.NewLimiter(limit, 1)}
		w.failures[b] = fl
	}
	if !fl.limiter.Allow() {
		fl.suppressed++
		return
	}
	w.log.Error("system update failed",
		zap.String("group", groupName),
		zap.String("system", b.typ.String()),
		zap.Stringer("id", b.id),
		zap.Uint64("frame", w.time.Frame),
		zap.Int("suppressed", fl.suppressed),
		zap.Error(err))
	fl.suppressed = 0
}

// ── Typed helpers ────────────────────────────────────────────────

type systemPtr[T any] interface {
	*T
	System
}

// CreateSystem creates a new instance of T.
func CreateSystem[T any, P systemPtr[T]](w *World) (P, error) {
	sys, err := w.Create(TypeOf[T]())
	if err != nil {
		return nil, err
	}
	p, ok := sys.(P)
	if !ok {
		return nil, fmt.Errorf("create %s: factory returned %T", TypeOf[T](), sys)
	}
	return p, nil
}

// GetOrCreateSystem returns the registered instance of T, creating it if needed.
func GetOrCreateSystem[T any, P systemPtr[T]](w *World) (P, error) {
	if p := GetExistingSystem[T, P](w); p != nil {
		return p, nil
	}
	return CreateSystem[T, P](w)
}

// GetExistingSystem returns the registered instance of T, or nil.
func GetExistingSystem[T any, P systemPtr[T]](w *World) P {
	p, _ := w.Existing(TypeOf[T]()).(P)
	return p
}
