package system

import (
	"errors"
	"testing"
	"time"

	"github.com/l1jgo/gamesys/internal/core/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStopFollowsEnabledState(t *testing.T) {
	w, _ := newTestWorld(t)
	tr := &trace{}
	parent := &recorderGroup{name: "P", tr: tr}
	require.NoError(t, w.AddSystem(parent))
	a := newRecorder(t, w, tr, "A")
	b := newRecorder(t, w, tr, "B")
	c := newRecorder(t, w, tr, "C")
	require.NoError(t, c.SetEnabled(false))
	addAll(t, &parent.Group, a, b, c)

	require.NoError(t, parent.Update())
	assert.Equal(t, []string{"P:start", "A:start", "A:update", "B:start", "B:update"}, tr.take())

	require.NoError(t, parent.Update())
	assert.Equal(t, []string{"A:update", "B:update"}, tr.take())

	require.NoError(t, parent.SetEnabled(false))
	require.NoError(t, parent.Update())
	assert.Equal(t, []string{"P:stop", "A:stop", "B:stop"}, tr.take())
	assert.False(t, a.Running())

	require.NoError(t, parent.Update())
	assert.Empty(t, tr.take(), "a disabled group stays quiet")

	require.NoError(t, parent.SetEnabled(true))
	require.NoError(t, parent.Update())
	assert.Equal(t, []string{"P:start", "A:start", "A:update", "B:start", "B:update"}, tr.take())

	require.NoError(t, a.SetEnabled(false))
	require.NoError(t, parent.Update())
	assert.Equal(t, []string{"A:stop", "B:update"}, tr.take())
}

func TestToggleCyclesRepeatIdentically(t *testing.T) {
	w, _ := newTestWorld(t)
	tr := &trace{}
	parent := &recorderGroup{name: "P", tr: tr}
	require.NoError(t, w.AddSystem(parent))
	a := newRecorder(t, w, tr, "A")
	b := newRecorder(t, w, tr, "B")
	addAll(t, &parent.Group, a, b)
	require.NoError(t, parent.Update())
	tr.take()

	cycle := func() []string {
		for _, on := range []bool{false, true} {
			require.NoError(t, parent.SetEnabled(on))
			require.NoError(t, parent.Update())
		}
		return tr.take()
	}
	first := cycle()
	assert.Equal(t, []string{"P:stop", "A:stop", "B:stop", "P:start", "A:start", "A:update", "B:start", "B:update"}, first)
	assert.Equal(t, first, cycle())
}

func TestAddToOwnUpdateListFails(t *testing.T) {
	w, _ := newTestWorld(t)
	g := newGroup(t, w)
	assert.ErrorIs(t, g.AddSystemToUpdateList(g), ErrAddSelf)
}

func TestAddContainingGroupFails(t *testing.T) {
	w, _ := newTestWorld(t)
	outer := newGroup(t, w)
	inner := newGroup(t, w)
	require.NoError(t, outer.AddSystemToUpdateList(inner))
	assert.ErrorIs(t, inner.AddSystemToUpdateList(outer), ErrContainmentCycle)
}

func TestAddNilIsIgnored(t *testing.T) {
	w, _ := newTestWorld(t)
	g := newGroup(t, w)
	var p *recorder
	require.NoError(t, g.AddSystemToUpdateList(nil))
	require.NoError(t, g.AddSystemToUpdateList(p))
	assert.False(t, g.Dirty())
}

func TestAddUncreatedSystemFails(t *testing.T) {
	w, _ := newTestWorld(t)
	g := newGroup(t, w)
	assert.ErrorIs(t, g.AddSystemToUpdateList(&recorder{}), ErrUninitialized)
}

func TestMembershipChangesAreStaged(t *testing.T) {
	w, _ := newTestWorld(t)
	g := newGroup(t, w)
	tr := &trace{}
	a := newRecorder(t, w, tr, "A")
	b := newRecorder(t, w, tr, "B")

	addAll(t, &g.Group, a, a)
	assert.True(t, g.Dirty())
	assert.Empty(t, g.Systems(), "adds wait for the next sort")

	require.NoError(t, g.RemoveSystemFromUpdateList(a))
	require.NoError(t, g.SortSystems())
	assert.Empty(t, g.Systems(), "removal cancels a pending add")

	addAll(t, &g.Group, a, b)
	require.NoError(t, g.SortSystems())
	assert.Equal(t, []System{a, b}, g.Systems())

	require.NoError(t, g.RemoveSystemFromUpdateList(a))
	require.NoError(t, g.AddSystemToUpdateList(a))
	require.NoError(t, g.SortSystems())
	assert.Equal(t, []System{a, b}, g.Systems(), "add cancels a pending removal")

	require.NoError(t, g.RemoveSystemFromUpdateList(b))
	require.NoError(t, g.RemoveSystemFromUpdateList(b))
	assert.True(t, g.Dirty())
	require.NoError(t, g.SortSystems())
	assert.Equal(t, []System{a}, g.Systems())
	assert.False(t, g.Dirty())
}

func TestManualGroupKeepsInsertionOrder(t *testing.T) {
	w, _ := newTestWorld(t)
	g := create[manualGroup](t, w)
	tr := &trace{}
	b := newRecorder(t, w, tr, "B")
	a := newRecorder(t, w, tr, "A")
	addAll(t, &g.Group, b, a, b)

	assert.False(t, g.AutoSort())
	assert.Equal(t, []System{b, a}, g.Systems())
	assert.ErrorIs(t, g.RemoveSystemFromUpdateList(a), ErrManualRemove)
	assert.ErrorIs(t, g.RemoveSystemFromUpdateList(nil), ErrManualRemove)

	require.NoError(t, g.Update())
	assert.Equal(t, []string{"B:start", "B:update", "A:start", "A:update"}, tr.take())
}

func TestDirtyChildSortsThroughCleanParent(t *testing.T) {
	w, _ := newTestWorld(t)
	parent := newGroup(t, w)
	child := create[manualGroup](t, w)
	grandchild := newGroup(t, w)
	addAll(t, &parent.Group, child)
	addAll(t, &child.Group, grandchild)
	require.NoError(t, parent.SortSystems())

	s2 := create[sibling2](t, w)
	s1 := create[sibling1](t, w)
	addAll(t, &grandchild.Group, s1, s2)
	require.True(t, grandchild.Dirty())
	require.False(t, parent.Dirty())

	require.NoError(t, parent.SortSystems())
	assert.False(t, grandchild.Dirty())
	assert.Equal(t, []System{s2, s1}, grandchild.Systems())
}

func TestCleanChildIsNotResorted(t *testing.T) {
	bus := event.NewBus()
	w, logs := newTestWorld(t, WithEventBus(bus))
	var sortFailures []event.SortFailed
	event.Subscribe(bus, func(ev event.SortFailed) { sortFailures = append(sortFailures, ev) })

	parent := create[manualGroup](t, w)
	warned := newGroup(t, w)
	cyclic := newGroup(t, w)
	addAll(t, &parent.Group, warned, cyclic)
	addAll(t, &warned.Group, create[selfRef](t, w))
	addAll(t, &cyclic.Group, create[circle3](t, w), create[circle4](t, w), create[circle5](t, w))

	require.ErrorIs(t, parent.SortSystems(), ErrCycle)
	require.False(t, warned.Dirty())
	require.False(t, cyclic.Dirty())
	require.Len(t, constraintWarnings(logs), 1)

	for range 2 {
		require.NoError(t, parent.SortSystems())
	}
	assert.Len(t, constraintWarnings(logs), 1)

	bus.SwapBuffers()
	bus.DispatchAll()
	assert.Len(t, sortFailures, 1)
}

func TestSortFailureLeavesGroupUsable(t *testing.T) {
	bus := event.NewBus()
	w, _ := newTestWorld(t, WithEventBus(bus))
	g := newGroup(t, w)
	var sortFailures []event.SortFailed
	event.Subscribe(bus, func(ev event.SortFailed) { sortFailures = append(sortFailures, ev) })

	tr := &trace{}
	p := newRecorder(t, w, tr, "A")
	c3 := create[circle3](t, w)
	c4 := create[circle4](t, w)
	c5 := create[circle5](t, w)
	addAll(t, &g.Group, p, c3, c4, c5)

	err := g.Update()
	require.ErrorIs(t, err, ErrCycle)
	assert.False(t, g.Dirty())
	assert.Equal(t, []System{p, c3, c4, c5}, g.Systems())
	assert.Equal(t, []string{"A:start", "A:update"}, tr.take(), "members still run")

	require.NoError(t, g.Update(), "the failed sort is not retried until membership changes")
	assert.Equal(t, []string{"A:update"}, tr.take())

	bus.SwapBuffers()
	bus.DispatchAll()
	require.Len(t, sortFailures, 1)
	assert.Equal(t, TypeOf[testGroup]().String(), sortFailures[0].Group)
}

type failing struct {
	Base
	err error
}

func (f *failing) OnUpdate() error { return f.err }

type panicking struct{ Base }

func (p *panicking) OnUpdate() error { panic("boom") }

func TestFailingMemberDoesNotStopTheGroup(t *testing.T) {
	bus := event.NewBus()
	w, logs := newTestWorld(t, WithEventBus(bus))
	g := create[manualGroup](t, w)
	tr := &trace{}
	errBroken := errors.New("broken")
	f := &failing{err: errBroken}
	require.NoError(t, w.AddSystem(f))
	pn := create[panicking](t, w)
	after := newRecorder(t, w, tr, "after")
	addAll(t, &g.Group, f, pn, after)

	require.NoError(t, g.Update())
	assert.Equal(t, []string{"after:start", "after:update"}, tr.take())

	failures := logs.FilterMessage("system update failed").All()
	require.Len(t, failures, 2)
	assert.Equal(t, TypeOf[failing]().String(), failures[0].ContextMap()["system"])
	assert.Equal(t, TypeOf[panicking]().String(), failures[1].ContextMap()["system"])
	assert.Contains(t, failures[1].ContextMap()["error"], "boom")

	var events []event.UpdateFailed
	event.Subscribe(bus, func(ev event.UpdateFailed) { events = append(events, ev) })
	bus.SwapBuffers()
	bus.DispatchAll()
	require.Len(t, events, 2)
	assert.ErrorIs(t, events[0].Err, errBroken)
	assert.Equal(t, f.ID(), events[0].SystemID)
}

// flaky fails its first update only.
type flaky struct {
	recorder
	calls int
}

func (f *flaky) OnUpdate() error {
	f.calls++
	if f.calls == 1 {
		return errors.New("first update fails")
	}
	return f.recorder.OnUpdate()
}

func TestGroupRecoversAfterMemberFailure(t *testing.T) {
	w, logs := newTestWorld(t)
	g := create[manualGroup](t, w)
	tr := &trace{}
	a := newRecorder(t, w, tr, "A")
	b := &flaky{recorder: recorder{name: "B", tr: tr}}
	require.NoError(t, w.AddSystem(b))
	c := newRecorder(t, w, tr, "C")
	addAll(t, &g.Group, a, b, c)

	require.NoError(t, g.Update())
	assert.Equal(t, []string{"A:start", "A:update", "B:start", "C:start", "C:update"}, tr.take())
	assert.Equal(t, 1, logs.FilterMessage("system update failed").Len())

	require.NoError(t, g.Update())
	assert.Equal(t, []string{"A:update", "B:update", "C:update"}, tr.take())
	assert.True(t, b.Running())
}

func TestRepeatedFailuresAreThrottled(t *testing.T) {
	w, logs := newTestWorld(t, WithFailureLogInterval(time.Hour))
	g := create[manualGroup](t, w)
	f := &failing{err: errors.New("broken")}
	require.NoError(t, w.AddSystem(f))
	addAll(t, &g.Group, f)

	for range 3 {
		require.NoError(t, g.Update())
	}
	assert.Equal(t, 1, logs.FilterMessage("system update failed").Len())
}
