// Package server provides the TCP listener and command dispatcher for the
// remote scripting port.
//
// The listener accepts connections sequentially and reads a single bounded
// command from each one. Commands are routed by the dispatcher: control words
// map to lifecycle actions, paths to existing script files are queued for
// deferred execution, and everything else is evaluated immediately in the
// shared scripting namespace. Each connection receives exactly one response
// before it is closed.
//
// The packages under the module root wire a Listener and Dispatcher together;
// most callers should use the scriptport package instead of this one.
package server
