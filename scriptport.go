package scriptport

import (
	"context"
	"net"
	"sync"
	"time"

	"scriptport/queue"
	"scriptport/script"
	"scriptport/server"
)

// State represents the lifecycle state of a Server
type State int32

const (
	// StateInit means the server is constructed but not yet listening
	StateInit State = iota

	// StateListening means the server is accepting command connections
	StateListening

	// StateStopping means a shutdown is in progress
	StateStopping

	// StateRestarting means a restart cycle is in progress
	StateRestarting

	// StateStopped means the server has shut down for good
	StateStopped
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	case StateRestarting:
		return "restarting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server is a remote scripting port.
//
// It owns a TCP listener, a persistent Lua engine, and a queue of script
// files awaiting execution. Incoming commands are evaluated on the engine or
// queued; a periodic drain executes everything queued since the last pass.
// STOP and RESTART commands drive the lifecycle remotely.
type Server struct {
	// Configuration
	config *config

	// Components, replaced wholesale on restart
	queue      *queue.Queue
	engine     *script.Engine
	dispatcher *server.Dispatcher
	listener   *server.Listener

	// State
	mu        sync.RWMutex
	state     State
	boundAddr string
	tickToken TickToken
	tickReg   bool
	done      chan struct{}
	wg        sync.WaitGroup

	// Statistics
	statsMu         sync.RWMutex
	scriptsExecuted int64
	scriptFailures  int64
	drainPasses     int64
	restarts        int64

	// Callbacks
	stateCallbacks []func(State)
}

// New creates a new Server with the given options
//
// The server is created but not started. Use Start() to bind the port and
// begin accepting commands.
//
// Example:
//
//	srv, err := scriptport.New(
//		scriptport.WithListenAddr("127.0.0.1:7777"),
//		scriptport.WithScriptExt(".lua"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Since: v1.0.0
func New(opts ...Option) (*Server, error) {
	cfg := defaultConfig()

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.tickDriver == nil {
		cfg.tickDriver = newIntervalDriver(cfg.tickInterval)
	}

	s := &Server{
		config: cfg,
		state:  StateInit,
		done:   make(chan struct{}),
	}
	s.buildComponents()

	return s, nil
}

// Start binds the listening socket and begins serving commands
//
// Commands are served sequentially on a background goroutine. If the bind
// fails the server stays in StateInit and the error is returned; nothing is
// left running. Cancelling ctx stops the server.
//
// Example:
//
//	if err := srv.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// Since: v1.0.0
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case StateListening, StateRestarting:
		s.mu.Unlock()
		return nil // Already running
	case StateStopping, StateStopped:
		s.mu.Unlock()
		return ErrStopped
	}

	if err := s.listener.Start(); err != nil {
		addr := s.listener.Addr()
		s.mu.Unlock()
		return &BindError{Addr: addr, Err: err}
	}

	// Remember the resolved address so a restart binds the same port even
	// when the configured address asked for an ephemeral one.
	s.boundAddr = s.listener.Addr()
	s.registerTickLocked()
	s.state = StateListening

	s.wg.Add(1)
	go s.serveLoop(s.listener)

	done := s.done
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-done:
		}
	}()

	s.config.logger.Info("Command server listening", Field{Key: "addr", Value: s.boundAddr})
	if !isLoopback(s.boundAddr) {
		s.config.logger.Info("Listening on a non-loopback address; remote clients can execute arbitrary commands", Field{Key: "addr", Value: s.boundAddr})
	}
	s.mu.Unlock()

	s.notifyState(StateListening)
	return nil
}

// Stop shuts the server down and waits for its goroutines to finish
//
// The listening socket is closed, the drain cycle is unregistered, and the
// scripting engine is disposed. Stop is idempotent; a stopped server cannot
// be started again.
//
// Example:
//
//	defer srv.Stop()
//
// Since: v1.0.0
func (s *Server) Stop() error {
	s.mu.RLock()
	already := s.state == StateStopped
	s.mu.RUnlock()

	s.stopTransition()
	s.wg.Wait()

	if !already {
		s.config.logger.Info("Server stopped")
	}
	return nil
}

// Restart performs a full stop-and-start cycle on the same port
//
// All state is discarded: queued scripts are dropped and the scripting
// namespace starts empty. After the configured restart delay the port is
// bound again. Remote clients trigger the same cycle with the RESTART
// command.
//
// Returns ErrNotListening if the server is not currently listening. If the
// rebind fails the server ends up stopped and a BindError is returned.
//
// Since: v1.0.0
func (s *Server) Restart() error {
	return s.restartTransition()
}

// Wait blocks until the server has stopped or ctx is cancelled
//
// Example:
//
//	if err := srv.Wait(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// Since: v1.0.0
func (s *Server) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnStateChange registers a callback invoked on every lifecycle transition
//
// Callbacks run synchronously on the goroutine performing the transition and
// should return quickly.
//
// Example:
//
//	srv.OnStateChange(func(state scriptport.State) {
//		log.Printf("server is now %s", state)
//	})
//
// Since: v1.0.0
func (s *Server) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateCallbacks = append(s.stateCallbacks, fn)
}

// State returns the current lifecycle state
//
// Since: v1.0.0
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Addr returns the server's listening address
//
// Before the first successful Start this is the configured address; after
// that it is the resolved address, which is stable across restarts.
//
// Since: v1.0.0
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.config.listenAddr
}

// QueueLen returns the number of scripts waiting for the next drain pass
//
// Since: v1.0.0
func (s *Server) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Len()
}

// Engine returns the current scripting engine for direct access
//
// This allows hosts to seed globals or evaluate setup code outside the TCP
// surface. The engine is replaced on restart, so do not retain the returned
// pointer across restarts.
//
// Example:
//
//	srv.Engine().SetGlobal("build", scriptport.Version)
//
// Since: v1.0.0
func (s *Server) Engine() *script.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// GetInfo returns detailed information about the server
//
// This includes lifecycle state, queue depth, execution counters, and
// listener statistics.
//
// Example:
//
//	info := srv.GetInfo()
//	fmt.Printf("state: %v\n", info["state"])
//	fmt.Printf("queued: %v\n", info["queue_length"])
//
// Since: v1.0.0
func (s *Server) GetInfo() map[string]interface{} {
	s.mu.RLock()
	addr := s.boundAddr
	if addr == "" {
		addr = s.config.listenAddr
	}
	info := map[string]interface{}{
		"state":        s.state.String(),
		"addr":         addr,
		"queue_length": s.queue.Len(),
	}
	listener := s.listener
	dispatcher := s.dispatcher
	s.mu.RUnlock()

	s.statsMu.RLock()
	info["restarts"] = s.restarts
	info["scripts_executed"] = s.scriptsExecuted
	info["script_failures"] = s.scriptFailures
	info["drain_passes"] = s.drainPasses
	s.statsMu.RUnlock()

	info["server"] = listener.Stats()
	info["dispatch"] = dispatcher.Stats()
	info["version"] = VersionInfo()

	return info
}

// buildComponents creates a fresh queue, engine, dispatcher, and listener.
// A restart replaces all of them, so queued scripts and namespace state do
// not survive one.
func (s *Server) buildComponents() {
	s.queue = queue.New()

	s.engine = script.NewEngine()
	for _, m := range s.config.modules {
		s.engine.Register(m.name, m.fns)
	}

	d := server.NewDispatcher(s.queue, s.engine)
	d.SetScriptExt(s.config.scriptExt)
	d.SetLogger(&serverLogger{logger: s.config.logger})
	if s.config.metrics != nil {
		d.SetMetrics(&serverMetrics{metrics: s.config.metrics})
	}
	s.dispatcher = d

	addr := s.config.listenAddr
	if s.boundAddr != "" {
		addr = s.boundAddr
	}
	l := server.NewListener(addr, d)
	l.SetLogger(&serverLogger{logger: s.config.logger})
	if s.config.metrics != nil {
		l.SetMetrics(&serverMetrics{metrics: s.config.metrics})
	}
	l.SetReadTimeout(s.config.readTimeout)
	l.SetWriteTimeout(s.config.writeTimeout)
	l.SetReadLimit(s.config.readLimit)
	s.listener = l
}

// serveLoop runs the listener's accept loop and carries out the control
// action that ended it.
func (s *Server) serveLoop(l *server.Listener) {
	defer s.wg.Done()

	switch l.Serve() {
	case server.ControlStop:
		s.stopTransition()
	case server.ControlRestart:
		if err := s.restartTransition(); err != nil {
			s.config.logger.Error("Restart failed", Field{Key: "error", Value: err})
		}
	}
}

// stopTransition moves the server to StateStopped and tears everything down.
// It never blocks on the serve goroutines; Stop waits for those.
func (s *Server) stopTransition() {
	s.mu.Lock()

	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return
	case StateInit:
		s.state = StateStopped
		close(s.done)
		s.mu.Unlock()
		s.notifyState(StateStopped)
		return
	}

	s.state = StateStopping
	s.teardownLocked()
	s.state = StateStopped
	close(s.done)
	s.mu.Unlock()

	s.notifyState(StateStopping)
	s.notifyState(StateStopped)
}

// restartTransition tears the server down, pauses, and binds the same port
// again with fresh components. A stop that lands during the pause wins and
// the restart is abandoned.
func (s *Server) restartTransition() error {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return ErrNotListening
	}

	s.state = StateRestarting
	s.teardownLocked()
	s.buildComponents()
	delay := s.config.restartDelay
	s.mu.Unlock()

	s.notifyState(StateRestarting)
	s.config.logger.Info("Restarting command server", Field{Key: "delay", Value: delay})

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	if s.state != StateRestarting {
		// A concurrent stop won the race
		s.mu.Unlock()
		return nil
	}

	if err := s.listener.Start(); err != nil {
		addr := s.listener.Addr()
		s.state = StateStopped
		close(s.done)
		s.mu.Unlock()
		s.notifyState(StateStopped)
		return &BindError{Addr: addr, Err: err}
	}

	s.boundAddr = s.listener.Addr()
	s.registerTickLocked()
	s.state = StateListening

	s.wg.Add(1)
	go s.serveLoop(s.listener)
	addr := s.boundAddr
	s.mu.Unlock()

	s.statsMu.Lock()
	s.restarts++
	s.statsMu.Unlock()
	if s.config.metrics != nil {
		s.config.metrics.RecordRestart()
	}

	s.notifyState(StateListening)
	s.config.logger.Info("Command server restarted", Field{Key: "addr", Value: addr})
	return nil
}

// teardownLocked closes the listener, halts the drain cycle, and disposes
// the engine. Callers hold s.mu.
func (s *Server) teardownLocked() {
	_ = s.listener.Close()
	if s.tickReg {
		s.config.tickDriver.Unregister(s.tickToken)
		s.tickReg = false
	}
	s.engine.Close()
}

// registerTickLocked hooks the drain callback into the tick driver. Callers
// hold s.mu. Registration happens on every start so the cycle follows the
// lifecycle across restarts.
func (s *Server) registerTickLocked() {
	s.tickToken = s.config.tickDriver.Register(s.drainTick)
	s.tickReg = true
}

// drainTick executes every script queued since the previous pass. Failures
// are logged per script and never interrupt the rest of the batch.
func (s *Server) drainTick() {
	s.mu.RLock()
	if s.state != StateListening {
		s.mu.RUnlock()
		return
	}
	q := s.queue
	exec := Executor(s.engine)
	if s.config.executor != nil {
		exec = s.config.executor
	}
	s.mu.RUnlock()

	tasks := q.DrainAll()
	if len(tasks) == 0 {
		return
	}

	s.statsMu.Lock()
	s.drainPasses++
	s.statsMu.Unlock()

	for _, path := range tasks {
		s.config.logger.Info("Executing queued script", Field{Key: "path", Value: path})

		start := time.Now()
		if err := exec.ExecuteFile(path); err != nil {
			s.config.logger.Error("Script execution failed", Field{Key: "path", Value: path}, Field{Key: "error", Value: err})
			s.statsMu.Lock()
			s.scriptFailures++
			s.statsMu.Unlock()
			if s.config.metrics != nil {
				s.config.metrics.RecordError("script")
			}
			continue
		}

		s.statsMu.Lock()
		s.scriptsExecuted++
		s.statsMu.Unlock()
		if s.config.metrics != nil {
			s.config.metrics.RecordScriptExecuted(time.Since(start))
		}
	}
}

// notifyState calls the registered state callbacks outside any lock
func (s *Server) notifyState(state State) {
	s.mu.RLock()
	callbacks := make([]func(State), len(s.stateCallbacks))
	copy(callbacks, s.stateCallbacks)
	s.mu.RUnlock()

	for _, callback := range callbacks {
		callback(state)
	}
}

// isLoopback reports whether addr binds only a loopback interface
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
