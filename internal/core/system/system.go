package system

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
	"github.com/l1jgo/gamesys/internal/core/job"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// State is the lifecycle state of a system.
type State uint8

const (
	Uninitialized State = iota
	Created
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Created:
		return "Created"
	case Destroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// System is the unit the scheduler updates. Implement it by embedding Base
// (or Group) in a struct and adding whichever lifecycle hooks are needed.
type System interface {
	base() *Base
}

// Lifecycle hooks. The world and groups look them up on the outer struct, so
// a type embedding Group may shadow OnUpdate and call Group.OnUpdate itself.
type (
	// Declarer runs right before creation while declarations are still open.
	Declarer interface{ Declare() }

	Creator interface{ OnCreate() error }

	// Starter runs before the first update after creation or re-enabling.
	Starter interface{ OnStartRunning() }

	// Updater does its work synchronously on the scheduler goroutine.
	Updater interface{ OnUpdate() error }

	// JobScheduler dispatches work to an executor. deps is satisfied once every
	// declared resource is safe to touch; the returned token marks completion.
	JobScheduler interface {
		OnSchedule(deps job.Token) (job.Token, error)
	}

	Stopper interface{ OnStopRunning() }

	Destroyer interface{ OnDestroy() error }
)

// SyncPolicy selects extra synchronization around an update.
type SyncPolicy uint8

const (
	// SyncSystem waits on the system's own dependencies before OnSchedule.
	SyncSystem SyncPolicy = 1 << iota
	// SyncWorld completes every outstanding job before the update.
	SyncWorld
	// CompleteWorldAfterUpdate completes every outstanding job after the update.
	CompleteWorldAfterUpdate
)

// Placement puts a system into a group, optionally at the front or back.
type Placement struct {
	Group      TypeID
	OrderFirst bool
	OrderLast  bool
}

type PlacementOption func(*Placement)

func OrderFirst() PlacementOption { return func(p *Placement) { p.OrderFirst = true } }
func OrderLast() PlacementOption  { return func(p *Placement) { p.OrderLast = true } }

type constraint struct {
	before bool
	target TypeID
}

func (c constraint) kind() string {
	if c.before {
		return "UpdateBefore"
	}
	return "UpdateAfter"
}

// Base carries the state every system shares. Embed it by value.
type Base struct {
	self  System
	world *World
	id    uuid.UUID
	typ   TypeID
	seq   uint64

	state   State
	enabled bool
	running bool

	reads       []job.Key
	writes      []job.Key
	placements  []Placement
	constraints []constraint
	sync        SyncPolicy
	noAutoReg   bool

	lastJob job.Token
}

func (b *Base) base() *Base { return b }

func (b *Base) check() error {
	switch b.state {
	case Uninitialized:
		return ErrUninitialized
	case Destroyed:
		return ErrDestroyed
	}
	return nil
}

func (b *Base) checkDeclare() error {
	switch b.state {
	case Created:
		return ErrDeclarationClosed
	case Destroyed:
		return ErrDestroyed
	}
	return nil
}

// ── Declarations ──────────────────────────────────────────────────

// ReadsData declares that the system reads the given resources.
func (b *Base) ReadsData(keys ...job.Key) error {
	if err := b.checkDeclare(); err != nil {
		return fmt.Errorf("reads data: %w", err)
	}
	for _, k := range keys {
		if !slices.Contains(b.reads, k) {
			b.reads = append(b.reads, k)
		}
	}
	return nil
}

// WritesData declares that the system writes the given resources.
func (b *Base) WritesData(keys ...job.Key) error {
	if err := b.checkDeclare(); err != nil {
		return fmt.Errorf("writes data: %w", err)
	}
	for _, k := range keys {
		if !slices.Contains(b.writes, k) {
			b.writes = append(b.writes, k)
		}
	}
	return nil
}

// UpdateInGroup places the system into the group of the given type. A later
// call for the same group replaces the earlier one.
func (b *Base) UpdateInGroup(group TypeID, opts ...PlacementOption) error {
	if err := b.checkDeclare(); err != nil {
		return fmt.Errorf("update in group %s: %w", group, err)
	}
	p := Placement{Group: group}
	for _, o := range opts {
		o(&p)
	}
	if p.OrderFirst && p.OrderLast {
		return fmt.Errorf("update in group %s: %w", group, ErrOrderFirstAndLast)
	}
	for i := range b.placements {
		if b.placements[i].Group == group {
			b.placements[i] = p
			return nil
		}
	}
	b.placements = append(b.placements, p)
	return nil
}

// UpdateBefore orders the system before its sibling of type target.
func (b *Base) UpdateBefore(target TypeID) error {
	if err := b.checkDeclare(); err != nil {
		return fmt.Errorf("update before %s: %w", target, err)
	}
	b.constraints = append(b.constraints, constraint{before: true, target: target})
	return nil
}

// UpdateAfter orders the system after its sibling of type target.
func (b *Base) UpdateAfter(target TypeID) error {
	if err := b.checkDeclare(); err != nil {
		return fmt.Errorf("update after %s: %w", target, err)
	}
	b.constraints = append(b.constraints, constraint{target: target})
	return nil
}

func (b *Base) SetSyncPolicy(p SyncPolicy) error {
	if err := b.checkDeclare(); err != nil {
		return fmt.Errorf("sync policy: %w", err)
	}
	b.sync = p
	return nil
}

// DisableAutoRegistration keeps the system out of Roots.Register placement.
func (b *Base) DisableAutoRegistration() error {
	if err := b.checkDeclare(); err != nil {
		return fmt.Errorf("disable auto registration: %w", err)
	}
	b.noAutoReg = true
	return nil
}

// ── Accessors ─────────────────────────────────────────────────────

func (b *Base) ID() uuid.UUID          { return b.id }
func (b *Base) State() State           { return b.state }
func (b *Base) World() *World          { return b.world }
func (b *Base) SyncPolicy() SyncPolicy { return b.sync }
func (b *Base) LastJob() job.Token     { return b.lastJob }
func (b *Base) Placements() []Placement {
	return slices.Clone(b.placements)
}

// Type returns the system's identity. It is known once the system is created.
func (b *Base) Type() TypeID { return b.typ }

// Enabled reports whether the system runs when its group updates.
func (b *Base) Enabled() (bool, error) {
	if err := b.check(); err != nil {
		return false, err
	}
	return b.enabled, nil
}

func (b *Base) SetEnabled(v bool) error {
	if err := b.check(); err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	b.enabled = v
	return nil
}

// Running reports whether OnStartRunning has fired without a matching stop.
func (b *Base) Running() bool { return b.running }

func (b *Base) Reads() ([]job.Key, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return slices.Clone(b.reads), nil
}

func (b *Base) Writes() ([]job.Key, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return slices.Clone(b.writes), nil
}

// ── Update ────────────────────────────────────────────────────────

// Update runs the system once: start/stop transitions first, then its update
// hook. A disabled system does nothing beyond stopping.
func (b *Base) Update() error {
	if err := b.check(); err != nil {
		return fmt.Errorf("update %s: %w", b.typ, err)
	}
	if !b.enabled {
		if b.running {
			b.running = false
			b.stopRunning()
		}
		return nil
	}
	if !b.running {
		b.running = true
		if s, ok := b.self.(Starter); ok {
			s.OnStartRunning()
		}
	}
	err := b.runUpdate()
	if b.sync&CompleteWorldAfterUpdate != 0 {
		err = multierr.Append(err, b.world.tracker.CompleteAll(b.world.ctx))
	}
	return err
}

func (b *Base) runUpdate() error {
	tr := b.world.tracker
	ctx := b.world.ctx

	if b.sync&SyncWorld != 0 {
		if err := tr.CompleteAll(ctx); err != nil {
			return err
		}
	}

	if js, ok := b.self.(JobScheduler); ok {
		deps := tr.Dependencies(b.reads, b.writes)
		if b.sync&SyncSystem != 0 {
			if err := deps.Wait(ctx); err != nil {
				return err
			}
		}
		out, err := js.OnSchedule(deps)
		if err != nil {
			return err
		}
		tr.Record(b.reads, b.writes, out)
		b.lastJob = out
		return nil
	}

	u, ok := b.self.(Updater)
	if !ok {
		return nil
	}
	// Synchronous work touches declared resources directly, so everything
	// pending on them has to land first.
	if len(b.reads)+len(b.writes) > 0 {
		if err := tr.Dependencies(b.reads, b.writes).Wait(ctx); err != nil {
			return err
		}
		tr.Record(b.reads, b.writes, job.Completed())
	}
	return u.OnUpdate()
}

// CompleteDependencies waits for all outstanding work on the declared
// resources.
func (b *Base) CompleteDependencies() error {
	if err := b.check(); err != nil {
		return err
	}
	keys := append(slices.Clone(b.reads), b.writes...)
	return b.world.tracker.Complete(b.world.ctx, keys...)
}

func (b *Base) stopRunning() {
	if s, ok := b.self.(Stopper); ok {
		b.guard("OnStopRunning", s.OnStopRunning)
	}
	if g, ok := asGroup(b.self); ok {
		for _, m := range g.members {
			mb := m.base()
			if mb.state != Created || !mb.running {
				continue
			}
			mb.running = false
			mb.stopRunning()
		}
	}
}

// guard runs a hook that has no error result and logs a panic from it.
func (b *Base) guard(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil && b.world != nil {
			b.world.log.Error("system hook panicked",
				zap.String("hook", hook),
				zap.String("system", b.typ.String()),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// ── Creation / destruction (driven by World) ──────────────────────

func (b *Base) create(w *World, self System, typ TypeID, seq uint64) (err error) {
	if d, ok := self.(Declarer); ok {
		d.Declare()
	}
	b.self = self
	b.world = w
	b.typ = typ
	b.seq = seq
	b.id = uuid.New()
	b.state = Created
	b.enabled = true

	c, ok := self.(Creator)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in OnCreate: %v", r)
		}
		if err != nil {
			b.state = Destroyed
			b.enabled = false
		}
	}()
	return c.OnCreate()
}

func (b *Base) beforeDestroy() {
	if b.running {
		b.running = false
		b.stopRunning()
	}
}

func (b *Base) callOnDestroy() (err error) {
	d, ok := b.self.(Destroyer)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in OnDestroy: %v", r)
		}
	}()
	return d.OnDestroy()
}

func (b *Base) afterDestroy() {
	b.state = Destroyed
	b.enabled = false
	b.lastJob = job.Completed()
}

func (b *Base) destroy() error {
	b.beforeDestroy()
	err := b.callOnDestroy()
	b.afterDestroy()
	return err
}

// safeUpdate updates s and converts a panic into an error.
func safeUpdate(s System) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", s.base().typ, r)
		}
	}()
	return s.base().Update()
}

func isNil(s System) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
