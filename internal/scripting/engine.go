package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Hook names a script system may define on its table.
const (
	HookCreate  = "on_create"
	HookStart   = "on_start"
	HookUpdate  = "on_update"
	HookStop    = "on_stop"
	HookDestroy = "on_destroy"
)

var ErrNoTable = errors.New("lua table not found")

// Engine wraps a single gopher-lua VM hosting scripted system hooks.
// Single-goroutine access only (the scheduler goroutine).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file in scriptsDir and
// its systems/ subdirectory. Missing directories are skipped.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "systems")} {
		if err := e.loadDir(dir); err != nil {
			e.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	return e
}

// luaLog exposes log(msg [, level]) to scripts.
func (e *Engine) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	switch L.OptString(2, "info") {
	case "debug":
		e.log.Debug(msg, zap.String("source", "lua"))
	case "warn":
		e.log.Warn(msg, zap.String("source", "lua"))
	case "error":
		e.log.Error(msg, zap.String("source", "lua"))
	default:
		e.log.Info(msg, zap.String("source", "lua"))
	}
	return 0
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source in the engine.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// HasTable reports whether a global table with the given name exists.
func (e *Engine) HasTable(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LTable)
	return ok
}

// HookContext is passed to every hook as its second argument.
type HookContext struct {
	System  string
	Frame   uint64
	Delta   time.Duration
	Elapsed time.Duration
	Values  map[string]float64 // blackboard snapshot
}

// CallHook calls table:hook(ctx). A missing hook is not an error. If the hook
// returns a table, its numeric fields are returned as blackboard updates.
func (e *Engine) CallHook(table, hook string, hc HookContext) (map[string]float64, error) {
	self, ok := e.vm.GetGlobal(table).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	fn, ok := self.RawGetString(hook).(*lua.LFunction)
	if !ok {
		return nil, nil
	}

	ctx := e.vm.NewTable()
	ctx.RawSetString("system", lua.LString(hc.System))
	ctx.RawSetString("frame", lua.LNumber(hc.Frame))
	ctx.RawSetString("dt", lua.LNumber(hc.Delta.Seconds()))
	ctx.RawSetString("elapsed", lua.LNumber(hc.Elapsed.Seconds()))
	values := e.vm.NewTable()
	for k, v := range hc.Values {
		values.RawSetString(k, lua.LNumber(v))
	}
	ctx.RawSetString("values", values)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, self, ctx); err != nil {
		return nil, fmt.Errorf("lua %s.%s: %w", table, hook, err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, nil
	}
	out := make(map[string]float64)
	rt.ForEach(func(k, v lua.LValue) {
		key, kok := k.(lua.LString)
		num, vok := v.(lua.LNumber)
		if kok && vok {
			out[string(key)] = float64(num)
		}
	})
	return out, nil
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
