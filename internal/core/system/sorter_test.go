package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"
)

type (
	unconstrainedA struct{ Base }
	unconstrainedB struct{ Base }
	unconstrainedC struct{ Base }
)

type (
	sibling1 struct{ Base }
	sibling2 struct{ Base }
)

func (s *sibling1) Declare() { _ = s.UpdateAfter(TypeOf[sibling2]()) }

type (
	circle1 struct{ Base }
	circle2 struct{ Base }
	circle3 struct{ Base }
	circle4 struct{ Base }
	circle5 struct{ Base }
	circle6 struct{ Base }
)

func (s *circle1) Declare() { _ = s.UpdateBefore(TypeOf[circle2]()) }
func (s *circle2) Declare() { _ = s.UpdateBefore(TypeOf[circle3]()) }
func (s *circle3) Declare() { _ = s.UpdateBefore(TypeOf[circle4]()) }
func (s *circle4) Declare() { _ = s.UpdateBefore(TypeOf[circle5]()) }
func (s *circle5) Declare() { _ = s.UpdateBefore(TypeOf[circle3]()) }
func (s *circle6) Declare() { _ = s.UpdateAfter(TypeOf[circle5]()) }

type (
	firstA  struct{ Base }
	firstB  struct{ Base }
	middleA struct{ Base }
	lastA   struct{ Base }
	lastB   struct{ Base }
)

func (s *firstA) Declare() { _ = s.UpdateInGroup(TypeOf[testGroup](), OrderFirst()) }
func (s *firstB) Declare() {
	_ = s.UpdateInGroup(TypeOf[testGroup](), OrderFirst())
	_ = s.UpdateBefore(TypeOf[firstA]())
}
func (s *middleA) Declare() {
	_ = s.UpdateBefore(TypeOf[lastA]())
	_ = s.UpdateAfter(TypeOf[firstA]())
}
func (s *lastA) Declare() {
	_ = s.UpdateInGroup(TypeOf[testGroup](), OrderLast())
	_ = s.UpdateAfter(TypeOf[middleA]())
}
func (s *lastB) Declare() {
	_ = s.UpdateInGroup(TypeOf[testGroup](), OrderLast())
	_ = s.UpdateBefore(TypeOf[lastA]())
}

type (
	selfRef          struct{ Base }
	notSystemTarget  struct{ Base }
	notSiblingTarget struct{ Base }
	stranger         struct{ Base }
	firstAfterLast   struct{ Base }
	lastBeforeFirst  struct{ Base }
	firstTarget      struct{ Base }
	lastTarget       struct{ Base }
)

func (s *selfRef) Declare()          { _ = s.UpdateAfter(TypeOf[selfRef]()) }
func (s *notSystemTarget) Declare()  { _ = s.UpdateBefore(TypeOf[int]()) }
func (s *notSiblingTarget) Declare() { _ = s.UpdateAfter(TypeOf[stranger]()) }
func (s *firstAfterLast) Declare() {
	_ = s.UpdateInGroup(TypeOf[testGroup](), OrderFirst())
	_ = s.UpdateAfter(TypeOf[lastTarget]())
}
func (s *lastBeforeFirst) Declare() {
	_ = s.UpdateInGroup(TypeOf[testGroup](), OrderLast())
	_ = s.UpdateBefore(TypeOf[firstTarget]())
}
func (s *firstTarget) Declare() { _ = s.UpdateInGroup(TypeOf[testGroup](), OrderFirst()) }
func (s *lastTarget) Declare()  { _ = s.UpdateInGroup(TypeOf[testGroup](), OrderLast()) }

func newGroup(t *testing.T, w *World) *testGroup {
	t.Helper()
	g, err := CreateSystem[testGroup](w)
	require.NoError(t, err)
	return g
}

func addAll(t *testing.T, g *Group, systems ...System) {
	t.Helper()
	for _, s := range systems {
		require.NoError(t, g.AddSystemToUpdateList(s))
	}
}

func create[T any, P systemPtr[T]](t *testing.T, w *World) P {
	t.Helper()
	p, err := CreateSystem[T, P](w)
	require.NoError(t, err)
	return p
}

func constraintWarnings(logs *observer.ObservedLogs) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range logs.All() {
		if e.Message == "ignoring invalid [UpdateBefore] constraint" ||
			e.Message == "ignoring invalid [UpdateAfter] constraint" {
			out = append(out, e)
		}
	}
	return out
}

func TestUnconstrainedSystemsSortByTypeName(t *testing.T) {
	w, _ := newTestWorld(t)
	g := newGroup(t, w)
	c := create[unconstrainedC](t, w)
	a := create[unconstrainedA](t, w)
	b := create[unconstrainedB](t, w)
	addAll(t, &g.Group, c, b, a)

	require.NoError(t, g.SortSystems())
	assert.Equal(t, []System{a, b, c}, g.Systems())
}

func TestSameTypeInstancesSortByCreationOrder(t *testing.T) {
	w, _ := newTestWorld(t)
	g := newGroup(t, w)
	first := create[unconstrainedA](t, w)
	second := create[unconstrainedA](t, w)
	addAll(t, &g.Group, second, first)

	require.NoError(t, g.SortSystems())
	assert.Equal(t, []System{first, second}, g.Systems())
}

func TestUpdateAfterSibling(t *testing.T) {
	w, logs := newTestWorld(t)
	g := newGroup(t, w)
	s1 := create[sibling1](t, w)
	s2 := create[sibling2](t, w)
	addAll(t, &g.Group, s1, s2)

	require.NoError(t, g.SortSystems())
	assert.Equal(t, []System{s2, s1}, g.Systems())
	assert.Empty(t, constraintWarnings(logs))
}

func TestSortIsDeterministic(t *testing.T) {
	build := func() []string {
		w, _ := newTestWorld(t)
		g := newGroup(t, w)
		addAll(t, &g.Group,
			create[lastB](t, w), create[middleA](t, w), create[firstA](t, w),
			create[lastA](t, w), create[firstB](t, w), create[unconstrainedB](t, w))
		require.NoError(t, g.SortSystems())
		var names []string
		for _, s := range g.Systems() {
			names = append(names, s.base().Type().String())
		}
		return names
	}
	assert.Equal(t, build(), build())
}

func TestOrderFirstAndLastBuckets(t *testing.T) {
	w, logs := newTestWorld(t)
	g := newGroup(t, w)
	la := create[lastA](t, w)
	lb := create[lastB](t, w)
	m := create[middleA](t, w)
	fa := create[firstA](t, w)
	fb := create[firstB](t, w)
	addAll(t, &g.Group, la, lb, m, fa, fb)

	require.NoError(t, g.SortSystems())
	assert.Equal(t, []System{fb, fa, m, lb, la}, g.Systems())
	assert.Empty(t, constraintWarnings(logs), "constraints implied by buckets are not warnings")
}

func TestCycleReportsMinimalChain(t *testing.T) {
	w, _ := newTestWorld(t)
	g := newGroup(t, w)
	addAll(t, &g.Group,
		create[circle1](t, w), create[circle2](t, w), create[circle3](t, w),
		create[circle4](t, w), create[circle5](t, w), create[circle6](t, w))

	err := g.SortSystems()
	require.ErrorIs(t, err, ErrCycle)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, TypeOf[testGroup](), ce.Group)
	assert.Equal(t, []TypeID{TypeOf[circle3](), TypeOf[circle4](), TypeOf[circle5]()}, ce.Chain)
	assert.Contains(t, err.Error(), "system.circle3 -> system.circle4 -> system.circle5 -> system.circle3")
}

func TestInvalidConstraintsWarnOnce(t *testing.T) {
	cases := []struct {
		name   string
		sys    func(*testing.T, *World) System
		kind   string
		reason string
	}{
		{"self", func(t *testing.T, w *World) System { return create[selfRef](t, w) }, "UpdateAfter", reasonSelf},
		{"not a system", func(t *testing.T, w *World) System { return create[notSystemTarget](t, w) }, "UpdateBefore", reasonNotSystem},
		{"not a sibling", func(t *testing.T, w *World) System { return create[notSiblingTarget](t, w) }, "UpdateAfter", reasonNotSibling},
		{"first after last", func(t *testing.T, w *World) System { return create[firstAfterLast](t, w) }, "UpdateAfter", reasonPrecedence},
		{"last before first", func(t *testing.T, w *World) System { return create[lastBeforeFirst](t, w) }, "UpdateBefore", reasonPrecedence},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, logs := newTestWorld(t)
			g := newGroup(t, w)
			create[stranger](t, w)
			sys := tc.sys(t, w)
			addAll(t, &g.Group, sys, create[firstTarget](t, w), create[lastTarget](t, w))

			require.NoError(t, g.SortSystems())
			warnings := constraintWarnings(logs)
			require.Len(t, warnings, 1)
			assert.Equal(t, "ignoring invalid ["+tc.kind+"] constraint", warnings[0].Message)
			fields := warnings[0].ContextMap()
			assert.Equal(t, sys.base().Type().String(), fields["system"])
			assert.Equal(t, tc.reason, fields["reason"])
			assert.Len(t, g.Systems(), 3, "invalid constraints do not drop members")
		})
	}
}
