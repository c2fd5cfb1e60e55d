package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const wanderScript = `
wander = { ticks = 0 }

function wander:on_update(ctx)
  self.ticks = self.ticks + 1
  return { heading = ctx.values.heading + ctx.dt, ticks = self.ticks, label = "ignored" }
end

function wander:on_stop(ctx)
  log("wander stopped at frame " .. ctx.frame, "warn")
end
`

func newTestEngine(t *testing.T, files map[string]string) (*Engine, *observer.ObservedLogs) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "systems"), 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	core, logs := observer.New(zapcore.DebugLevel)
	e, err := NewEngine(dir, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, logs
}

func TestCallHookReturnsNumericFields(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"systems/wander.lua": wanderScript})
	require.True(t, e.HasTable("wander"))

	hc := HookContext{System: "wander", Frame: 7, Delta: 500 * time.Millisecond, Values: map[string]float64{"heading": 1}}
	out, err := e.CallHook("wander", HookUpdate, hc)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"heading": 1.5, "ticks": 1}, out)

	out, err = e.CallHook("wander", HookUpdate, hc)
	require.NoError(t, err)
	assert.Equal(t, 2.0, out["ticks"], "table state persists between calls")
}

func TestMissingHookIsNotAnError(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"wander.lua": wanderScript})
	out, err := e.CallHook("wander", HookCreate, HookContext{})
	assert.NoError(t, err)
	assert.Nil(t, out)

	_, err = e.CallHook("nobody", HookUpdate, HookContext{})
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestLuaErrorsAreReturned(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	require.NoError(t, e.DoString(`broken = {}
function broken:on_update(ctx) error("no luck") end`))

	_, err := e.CallHook("broken", HookUpdate, HookContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no luck")
}

func TestScriptsCanLog(t *testing.T) {
	e, logs := newTestEngine(t, map[string]string{"wander.lua": wanderScript})
	_, err := e.CallHook("wander", HookStop, HookContext{Frame: 3})
	require.NoError(t, err)

	entries := logs.FilterMessage("wander stopped at frame 3").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestBadScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("this is not lua"), 0o644))
	_, err := NewEngine(dir, nil)
	assert.ErrorContains(t, err, "load scripts")
}
