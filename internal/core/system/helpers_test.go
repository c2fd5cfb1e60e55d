package system

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestWorld(t *testing.T, opts ...Option) (*World, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	w := NewWorld(append([]Option{WithLogger(zap.New(core))}, opts...)...)
	t.Cleanup(func() { _ = w.Dispose() })
	return w, logs
}

// trace collects hook calls in order.
type trace struct{ events []string }

func (tr *trace) add(s string) { tr.events = append(tr.events, s) }

func (tr *trace) take() []string {
	out := tr.events
	tr.events = nil
	return out
}

type testGroup struct{ Group }

type manualGroup struct{ Group }

func (g *manualGroup) Declare() { _ = g.SetAutoSort(false) }

// recorder appends its lifecycle hooks to a trace.
type recorder struct {
	Base
	name string
	tr   *trace
}

func (p *recorder) OnStartRunning() { p.tr.add(p.name + ":start") }
func (p *recorder) OnStopRunning()  { p.tr.add(p.name + ":stop") }

func (p *recorder) OnUpdate() error {
	p.tr.add(p.name + ":update")
	return nil
}

func (p *recorder) OnDestroy() error {
	p.tr.add(p.name + ":destroy")
	return nil
}

type recorderGroup struct {
	Group
	name string
	tr   *trace
}

func (g *recorderGroup) OnStartRunning() { g.tr.add(g.name + ":start") }
func (g *recorderGroup) OnStopRunning()  { g.tr.add(g.name + ":stop") }

func newRecorder(t *testing.T, w *World, tr *trace, name string) *recorder {
	t.Helper()
	p := &recorder{name: name, tr: tr}
	if err := w.AddSystem(p); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	return p
}
