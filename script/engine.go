package script

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// ErrClosed indicates the engine's Lua state has been released.
var ErrClosed = errors.New("script: engine is closed")

// Module is a set of Go functions exposed to scripts under one global
// table name.
type Module map[string]lua.LGFunction

// Engine executes commands and script files against one persistent Lua
// state. The state is created on construction and lives until Close, so
// globals assigned by one evaluation remain visible to the next.
type Engine struct {
	mu    sync.Mutex
	state *lua.LState
}

// NewEngine creates an engine with a fresh Lua state.
func NewEngine() *Engine {
	return &Engine{
		state: lua.NewState(),
	}
}

// Eval runs a command against the shared state and returns its first
// result converted to a Go value (nil when the command produces none).
//
// The source is compiled as an expression first and as a statement on
// compile failure, so bare expressions such as "x + 1" evaluate like
// they would in a Lua REPL. Runtime failures are returned with the
// interpreter's stack traceback in the error text.
func (e *Engine) Eval(src string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return nil, ErrClosed
	}

	L := e.state
	base := L.GetTop()
	defer L.SetTop(base)

	fn, err := L.LoadString("return " + src)
	if err != nil {
		fn, err = L.LoadString(src)
		if err != nil {
			return nil, fmt.Errorf("compile error: %w", err)
		}
	}

	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, err
	}

	if L.GetTop() > base {
		return luaToGo(L.Get(base + 1)), nil
	}
	return nil, nil
}

// ExecuteFile runs a script file in the shared state. It is the default
// executor for queued scripts and may run concurrently with Eval calls
// from the connection-handling goroutine.
func (e *Engine) ExecuteFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return ErrClosed
	}

	base := e.state.GetTop()
	defer e.state.SetTop(base)

	return e.state.DoFile(path)
}

// Register exposes a module of Go functions to scripts as a global
// table. Registering the same name again replaces the previous table.
func (e *Engine) Register(name string, m Module) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return
	}

	tbl := e.state.NewTable()
	e.state.SetFuncs(tbl, m)
	e.state.SetGlobal(name, tbl)
}

// SetGlobal assigns a Go value to a global variable in the shared state.
func (e *Engine) SetGlobal(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return
	}

	e.state.SetGlobal(name, goToLua(e.state, value))
}

// Global reads a global variable from the shared state, converted to a
// Go value. Unset globals return nil.
func (e *Engine) Global(name string) interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return nil
	}

	return luaToGo(e.state.GetGlobal(name))
}

// Close releases the Lua state. Further calls return ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != nil {
		e.state.Close()
		e.state = nil
	}
}

// goToLua converts a Go value to its Lua representation.
func goToLua(L *lua.LState, value interface{}) lua.LValue {
	if value == nil {
		return lua.LNil
	}

	switch v := value.(type) {
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(float64(v))
	case int64:
		return lua.LNumber(float64(v))
	case float64:
		return lua.LNumber(v)
	case bool:
		return lua.LBool(v)
	case []interface{}:
		tbl := L.NewTable()
		for i, item := range v {
			tbl.RawSetInt(i+1, goToLua(L, item)) // Lua arrays are 1-indexed
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for key, item := range v {
			tbl.RawSetString(key, goToLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// luaToGo converts a Lua value to a Go value.
func luaToGo(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		// Check if it's an integer
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		// Convert table to slice if it's array-like
		if isArrayLikeTable(v) {
			var result []interface{}
			v.ForEach(func(k, val lua.LValue) {
				result = append(result, luaToGo(val))
			})
			return result
		}
		// Convert to map for object-like tables
		result := make(map[string]interface{})
		v.ForEach(func(k, val lua.LValue) {
			result[k.String()] = luaToGo(val)
		})
		return result
	default:
		return lv.String()
	}
}

// isArrayLikeTable checks if a Lua table is array-like (consecutive integer
// keys starting from 1).
func isArrayLikeTable(table *lua.LTable) bool {
	length := table.Len()
	if length == 0 {
		// Distinguish the empty table from a purely hash-keyed one.
		empty := true
		table.ForEach(func(k, v lua.LValue) {
			empty = false
		})
		return empty
	}

	for i := 1; i <= length; i++ {
		if table.RawGetInt(i) == lua.LNil {
			return false
		}
	}

	// Check if there are any non-integer keys
	hasNonIntKeys := false
	table.ForEach(func(k, v lua.LValue) {
		num, ok := k.(lua.LNumber)
		if !ok {
			hasNonIntKeys = true
			return
		}
		idx := int(num)
		if float64(idx) != float64(num) || idx < 1 || idx > length {
			hasNonIntKeys = true
		}
	})

	return !hasNonIntKeys
}
