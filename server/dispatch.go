package server

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"scriptport/queue"
)

// Control identifies the lifecycle action a command requested, if any.
type Control int

const (
	// ControlNone means the command was fully handled by the dispatcher.
	ControlNone Control = iota
	// ControlStop means the server should shut down.
	ControlStop
	// ControlRestart means the server should restart.
	ControlRestart
)

// Command words and response payloads are part of the wire contract with
// remote clients and must not change.
const (
	cmdStop    = "STOP"
	cmdRestart = "RESTART"

	respQueued     = "Script queued for execution"
	respExecuted   = "Command executed successfully"
	respShutdown   = "Server shutting down..."
	respRestarting = "Server restarting..."
)

// Evaluator evaluates command text in a persistent namespace.
type Evaluator interface {
	Eval(src string) (interface{}, error)
}

// Dispatcher routes command text to control actions, the script queue, or
// immediate evaluation
type Dispatcher struct {
	queue *queue.Queue
	eval  Evaluator

	scriptExt string
	logger    Logger
	metrics   MetricsCollector

	// Metrics
	mu           sync.RWMutex
	commandCount int64
	queuedCount  int64
	evalErrors   int64
}

// NewDispatcher creates a dispatcher that queues script paths on q and
// evaluates everything else with eval.
func NewDispatcher(q *queue.Queue, eval Evaluator) *Dispatcher {
	return &Dispatcher{
		queue:     q,
		eval:      eval,
		scriptExt: ".lua",
		logger:    &defaultLogger{},
	}
}

// SetScriptExt sets the file extension that marks a command as a script path
func (d *Dispatcher) SetScriptExt(ext string) {
	d.scriptExt = ext
}

// SetLogger sets the logger
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetMetrics sets the metrics collector
func (d *Dispatcher) SetMetrics(metrics MetricsCollector) {
	d.metrics = metrics
}

// Dispatch handles one trimmed command and returns the response payload for
// the client along with the control action the caller must carry out.
//
// Control words are matched exactly. A command naming an existing file with
// the configured script extension is enqueued for the next drain pass and is
// not executed here. Any other command is evaluated immediately; evaluation
// failures are reported to the client with the failing command and error
// detail, and never affect the dispatcher itself.
func (d *Dispatcher) Dispatch(command string) (string, Control) {
	d.mu.Lock()
	d.commandCount++
	d.mu.Unlock()

	switch command {
	case cmdStop:
		d.logger.Info("Stop requested")
		return respShutdown, ControlStop
	case cmdRestart:
		d.logger.Info("Restart requested")
		return respRestarting, ControlRestart
	}

	if d.isScriptPath(command) {
		d.queue.Enqueue(command)
		d.mu.Lock()
		d.queuedCount++
		d.mu.Unlock()
		if d.metrics != nil {
			d.metrics.RecordCommandProcessed("queue", 0)
		}
		d.logger.Info("Queued script", "path", command)
		return respQueued, ControlNone
	}

	start := time.Now()
	_, err := d.eval.Eval(command)
	if d.metrics != nil {
		d.metrics.RecordCommandProcessed("eval", time.Since(start))
	}
	if err != nil {
		d.mu.Lock()
		d.evalErrors++
		d.mu.Unlock()
		if d.metrics != nil {
			d.metrics.RecordError("eval")
		}
		d.logger.Error("Command evaluation failed", "command", command, "error", err)
		return fmt.Sprintf("Error executing: %s\n%v", command, err), ControlNone
	}

	return respExecuted, ControlNone
}

// Stats returns dispatcher statistics
func (d *Dispatcher) Stats() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return map[string]interface{}{
		"total_commands": d.commandCount,
		"queued_scripts": d.queuedCount,
		"eval_errors":    d.evalErrors,
	}
}

// isScriptPath reports whether command names an existing regular file with
// the configured script extension.
func (d *Dispatcher) isScriptPath(command string) bool {
	if d.scriptExt == "" || !strings.HasSuffix(command, d.scriptExt) {
		return false
	}
	info, err := os.Stat(command)
	return err == nil && info.Mode().IsRegular()
}
