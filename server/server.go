package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Logger interface for server logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector interface for server metrics
type MetricsCollector interface {
	RecordConnection()
	RecordCommandProcessed(kind string, duration time.Duration)
	RecordError(errorType string)
}

// Listener accepts command connections and serves them one at a time.
//
// Each connection carries a single command: the listener performs one bounded
// read, hands the trimmed text to the dispatcher, writes the response, and
// closes the connection. Oversized commands are truncated at the read limit
// and processed as received.
type Listener struct {
	addr       string
	dispatcher *Dispatcher

	// Connection handling
	readTimeout  time.Duration
	writeTimeout time.Duration
	readLimit    int

	logger  Logger
	metrics MetricsCollector

	// Socket state and metrics
	mu         sync.RWMutex
	ln         net.Listener
	closed     bool
	connCount  int64
	errorCount int64
}

// NewListener creates a listener for addr that routes commands through d
func NewListener(addr string, d *Dispatcher) *Listener {
	return &Listener{
		addr:         addr,
		dispatcher:   d,
		readTimeout:  30 * time.Second,
		writeTimeout: 10 * time.Second,
		readLimit:    1024,
		logger:       &defaultLogger{},
	}
}

// SetLogger sets the logger
func (l *Listener) SetLogger(logger Logger) {
	l.logger = logger
}

// SetMetrics sets the metrics collector
func (l *Listener) SetMetrics(metrics MetricsCollector) {
	l.metrics = metrics
}

// SetReadTimeout sets the per-connection read deadline
func (l *Listener) SetReadTimeout(timeout time.Duration) {
	l.readTimeout = timeout
}

// SetWriteTimeout sets the per-connection write deadline
func (l *Listener) SetWriteTimeout(timeout time.Duration) {
	l.writeTimeout = timeout
}

// SetReadLimit sets the maximum number of bytes read from one connection
func (l *Listener) SetReadLimit(n int) {
	if n > 0 {
		l.readLimit = n
	}
}

// Start binds the listening socket. It does not accept connections; call
// Serve for that.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}

	l.mu.Lock()
	l.ln = ln
	l.closed = false
	l.mu.Unlock()

	l.logger.Info("Listening for commands", "addr", ln.Addr().String())
	return nil
}

// Serve accepts and serves connections sequentially until a control command
// arrives or the listener is closed. It returns the control action that ended
// the loop; ControlNone means the socket was closed externally.
//
// Per-connection failures are logged and do not end the loop.
func (l *Listener) Serve() Control {
	ln := l.current()
	if ln == nil {
		return ControlNone
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ControlNone
			}
			l.recordError("accept")
			l.logger.Error("Accept failed", "error", err)
			continue
		}

		if ctl := l.serveConn(conn); ctl != ControlNone {
			return ctl
		}
	}
}

// Close closes the listening socket. It is safe to call multiple times and
// unblocks a concurrent Serve.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.ln == nil {
		return nil
	}
	l.closed = true
	return l.ln.Close()
}

// Addr returns the listener's bound address, or the configured address if
// the socket is not bound yet
func (l *Listener) Addr() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return l.addr
}

// Stats returns listener statistics
func (l *Listener) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return map[string]interface{}{
		"total_connections": l.connCount,
		"total_errors":      l.errorCount,
	}
}

// serveConn reads one command from conn, answers it, and closes conn
func (l *Listener) serveConn(conn net.Conn) Control {
	defer conn.Close()

	l.mu.Lock()
	l.connCount++
	l.mu.Unlock()
	if l.metrics != nil {
		l.metrics.RecordConnection()
	}

	remote := conn.RemoteAddr().String()
	l.logger.Debug("Accepted connection", "remote", remote)

	if l.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	}

	buf := make([]byte, l.readLimit)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			l.recordError("read")
			l.logger.Error("Read failed", "remote", remote, "error", err)
		}
		return ControlNone
	}

	data := buf[:n]
	if !utf8.Valid(data) {
		l.recordError("decode")
		l.logger.Error("Discarding command with invalid UTF-8", "remote", remote, "bytes", n)
		return ControlNone
	}

	command := strings.TrimSpace(string(data))
	l.logger.Info("Received command", "command", command, "remote", remote)

	resp, ctl := l.dispatcher.Dispatch(command)

	if l.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	}
	if _, err := conn.Write([]byte(resp)); err != nil {
		l.recordError("write")
		l.logger.Error("Write failed", "remote", remote, "error", err)
	}

	return ctl
}

func (l *Listener) current() net.Listener {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ln
}

func (l *Listener) recordError(kind string) {
	l.mu.Lock()
	l.errorCount++
	l.mu.Unlock()
	if l.metrics != nil {
		l.metrics.RecordError(kind)
	}
}

// defaultLogger is a simple logger implementation
type defaultLogger struct{}

func (l *defaultLogger) Debug(msg string, fields ...interface{}) {
	// fmt.Printf("DEBUG: %s %v\n", msg, fields)
}

func (l *defaultLogger) Info(msg string, fields ...interface{}) {
	// fmt.Printf("INFO: %s %v\n", msg, fields)
}

func (l *defaultLogger) Error(msg string, fields ...interface{}) {
	// fmt.Printf("ERROR: %s %v\n", msg, fields)
}
