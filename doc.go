// Package scriptport provides a remote scripting port: a TCP server that
// executes Lua commands sent by remote clients.
//
// Each connection delivers one command. Control words stop or restart the
// server, paths to existing script files are queued and executed on the next
// drain tick, and any other text is evaluated immediately in a Lua namespace
// that persists for the lifetime of the server. A restart discards the
// namespace and the queue and binds the same port again after a short pause.
//
// Basic usage:
//
//	srv, err := scriptport.New(
//		scriptport.WithListenAddr("127.0.0.1:7777"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := srv.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop()
//
//	// Block until a client sends STOP
//	if err := srv.Wait(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// The library supports:
//
//   - Immediate evaluation with results kept in a persistent namespace
//   - Deferred execution of queued script files on a tick cycle
//   - STOP and RESTART lifecycle control over the wire
//   - Host function modules exposed to scripts
//   - Pluggable tick drivers for embedding in a host application loop
//   - Structured logging and metrics hooks
//
// The port trusts its callers completely: there is no authentication and no
// sandboxing. The default bind address is loopback only; exposing the port
// more widely is an explicit configuration choice.
//
// For more examples and advanced usage, see the examples/ directory.
package scriptport
