package scriptport

import (
	"strings"
	"time"

	"scriptport/script"
)

// moduleDef is a named host module awaiting registration on the engine
type moduleDef struct {
	name string
	fns  script.Module
}

// config holds the configuration for a Server
type config struct {
	// Listener settings
	listenAddr string
	readLimit  int

	// Script handling
	scriptExt string

	// Timeouts and pacing
	readTimeout  time.Duration
	writeTimeout time.Duration
	tickInterval time.Duration
	restartDelay time.Duration

	// Observability
	logger  Logger
	metrics MetricsCollector

	// Extension points
	executor   Executor
	tickDriver TickDriver
	modules    []moduleDef
}

// defaultConfig returns a configuration with sensible defaults
//
// The default listen address is loopback only. Commands arrive unauthenticated
// and are executed as-is, so exposing the port beyond the local machine is an
// explicit decision made with WithListenAddr.
func defaultConfig() *config {
	return &config{
		listenAddr:   "127.0.0.1:7777",
		readLimit:    1024,
		scriptExt:    ".lua",
		readTimeout:  30 * time.Second,
		writeTimeout: 10 * time.Second,
		tickInterval: 100 * time.Millisecond,
		restartDelay: time.Second,
		logger:       &defaultLogger{},
	}
}

// Option represents a configuration option for a Server
type Option func(*config) error

// WithListenAddr sets the TCP address the server binds
//
// Example:
//
//	WithListenAddr("127.0.0.1:7777")
//	WithListenAddr("0.0.0.0:7777") // reachable from other machines
func WithListenAddr(addr string) Option {
	return func(c *config) error {
		if addr == "" {
			return &BindError{
				Addr: addr,
				Err:  ErrInvalidConfig,
			}
		}
		c.listenAddr = addr
		return nil
	}
}

// WithScriptExt sets the file extension that marks a command as a script
// path to queue rather than text to evaluate
//
// Example:
//
//	WithScriptExt(".lua")
func WithScriptExt(ext string) Option {
	return func(c *config) error {
		if ext == "" || !strings.HasPrefix(ext, ".") {
			return ErrInvalidConfig
		}
		c.scriptExt = ext
		return nil
	}
}

// WithReadLimit sets the maximum number of bytes read from one connection.
// Longer commands are truncated, not rejected.
//
// Example:
//
//	WithReadLimit(4096)
func WithReadLimit(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.readLimit = n
		return nil
	}
}

// WithReadTimeout sets how long the server waits for a connected client to
// send its command
//
// Example:
//
//	WithReadTimeout(30 * time.Second)
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithWriteTimeout sets how long the server waits to write a response
//
// Example:
//
//	WithWriteTimeout(10 * time.Second)
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.writeTimeout = timeout
		return nil
	}
}

// WithTickInterval sets how often the default driver drains the script
// queue. It has no effect when a custom TickDriver is supplied.
//
// Example:
//
//	WithTickInterval(50 * time.Millisecond)
func WithTickInterval(interval time.Duration) Option {
	return func(c *config) error {
		if interval <= 0 {
			return ErrInvalidConfig
		}
		c.tickInterval = interval
		return nil
	}
}

// WithRestartDelay sets the pause between tearing the server down and
// binding the port again during a restart
//
// Example:
//
//	WithRestartDelay(time.Second)
func WithRestartDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrInvalidConfig
		}
		c.restartDelay = delay
		return nil
	}
}

// WithLogger sets a custom logger for the server
//
// Example:
//
//	WithLogger(myCustomLogger)
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
//
// Example:
//
//	WithMetrics(myMetricsCollector)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}

// WithExecutor sets a custom executor for queued script files. By default
// queued scripts run on the server's own engine, sharing its namespace.
//
// Example:
//
//	WithExecutor(myExecutor)
func WithExecutor(executor Executor) Option {
	return func(c *config) error {
		if executor == nil {
			return ErrInvalidConfig
		}
		c.executor = executor
		return nil
	}
}

// WithTickDriver sets a custom driver for the queue drain cycle. Use this to
// tie draining to a host application's own loop instead of a fixed interval.
//
// Example:
//
//	WithTickDriver(myFrameLoop)
func WithTickDriver(driver TickDriver) Option {
	return func(c *config) error {
		if driver == nil {
			return ErrInvalidConfig
		}
		c.tickDriver = driver
		return nil
	}
}

// WithModule registers a named table of host functions in the scripting
// namespace. Modules survive restarts; they are registered again on every
// fresh engine.
//
// Example:
//
//	WithModule("host", script.Module{
//		"version": func(L *lua.LState) int {
//			L.Push(lua.LString(Version))
//			return 1
//		},
//	})
func WithModule(name string, fns script.Module) Option {
	return func(c *config) error {
		if name == "" {
			return ErrInvalidConfig
		}
		c.modules = append(c.modules, moduleDef{name: name, fns: fns})
		return nil
	}
}
