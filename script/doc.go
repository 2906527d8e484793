// Package script provides the Lua evaluation capability behind the
// command server's shared execution namespace.
//
// An Engine owns a single persistent Lua state. Every evaluated command
// and every executed script file runs against that state, so names
// defined by one command are visible to later ones until the engine is
// closed. Access is serialized internally; Eval and ExecuteFile may be
// called from different goroutines.
//
// The evaluation environment can be extended by the embedding host:
//
//	engine := script.NewEngine()
//	engine.Register("host", script.Module{
//		"version": func(L *lua.LState) int {
//			L.Push(lua.LString("1.0.0"))
//			return 1
//		},
//	})
//
// Commands are compiled in expression form first ("return <src>") and
// fall back to statement form, matching the usual Lua REPL behavior, so
// both `x = 41` and `x + 1` are accepted.
package script
