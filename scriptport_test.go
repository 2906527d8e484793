package scriptport_test

import (
	"context"
	"testing"
	"time"

	"scriptport"
)

func TestNew(t *testing.T) {
	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
		scriptport.WithScriptExt(".lua"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Stop()

	if srv == nil {
		t.Fatal("Expected server to be non-nil")
	}

	if srv.State() != scriptport.StateInit {
		t.Fatalf("Expected state init, got %v", srv.State())
	}
}

func TestNewWithInvalidOptions(t *testing.T) {
	// Test with empty listen address
	_, err := scriptport.New(
		scriptport.WithListenAddr(""),
	)
	if err == nil {
		t.Fatal("Expected error with empty listen address")
	}

	// Test with invalid timeout
	_, err = scriptport.New(
		scriptport.WithReadTimeout(-1 * time.Second),
	)
	if err == nil {
		t.Fatal("Expected error with invalid timeout")
	}

	// Test with extension missing the leading dot
	_, err = scriptport.New(
		scriptport.WithScriptExt("lua"),
	)
	if err == nil {
		t.Fatal("Expected error with malformed script extension")
	}

	// Test with nil logger
	_, err = scriptport.New(
		scriptport.WithLogger(nil),
	)
	if err == nil {
		t.Fatal("Expected error with nil logger")
	}

	// Test with zero tick interval
	_, err = scriptport.New(
		scriptport.WithTickInterval(0),
	)
	if err == nil {
		t.Fatal("Expected error with zero tick interval")
	}
}

func TestServerConfiguration(t *testing.T) {
	logger := &testLogger{}
	metrics := &testMetrics{}

	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
		scriptport.WithReadTimeout(5*time.Second),
		scriptport.WithWriteTimeout(5*time.Second),
		scriptport.WithReadLimit(2048),
		scriptport.WithLogger(logger),
		scriptport.WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Stop()

	// The engine exists before Start so hosts can seed the namespace
	engine := srv.Engine()
	if engine == nil {
		t.Fatal("Expected engine to be non-nil")
	}

	engine.SetGlobal("seeded", "yes")
	result, err := engine.Eval("seeded")
	if err != nil {
		t.Fatalf("Failed to evaluate: %v", err)
	}
	if result != "yes" {
		t.Fatalf("Expected 'yes', got '%v'", result)
	}
}

func TestServerAddr(t *testing.T) {
	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:7777"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Stop()

	// Before Start the configured address is reported
	if srv.Addr() != "127.0.0.1:7777" {
		t.Fatalf("Expected configured address, got '%s'", srv.Addr())
	}
}

func TestServerInfo(t *testing.T) {
	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Stop()

	info := srv.GetInfo()
	if info == nil {
		t.Fatal("Expected info to be non-nil")
	}

	// Check for expected keys
	expectedKeys := []string{"state", "addr", "queue_length", "restarts", "scripts_executed", "script_failures", "server", "dispatch", "version"}
	for _, key := range expectedKeys {
		if _, exists := info[key]; !exists {
			t.Fatalf("Expected info key '%s' to exist", key)
		}
	}

	if info["state"] != "init" {
		t.Fatalf("Expected state 'init', got '%v'", info["state"])
	}

	// Check version info
	if versionInfo, ok := info["version"].(map[string]string); ok {
		if version, exists := versionInfo["version"]; !exists || version == "" {
			t.Fatal("Expected version information")
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state scriptport.State
		want  string
	}{
		{scriptport.StateInit, "init"},
		{scriptport.StateListening, "listening"},
		{scriptport.StateStopping, "stopping"},
		{scriptport.StateRestarting, "restarting"},
		{scriptport.StateStopped, "stopped"},
		{scriptport.State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateCallback(t *testing.T) {
	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Stop()

	callbackCalled := false
	srv.OnStateChange(func(state scriptport.State) {
		callbackCalled = true
	})

	// Registration alone must not fire the callback
	if callbackCalled {
		t.Fatal("Callback should not be called immediately")
	}
}

func TestStartStop(t *testing.T) {
	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	if srv.State() != scriptport.StateListening {
		t.Fatalf("Expected state listening, got %v", srv.State())
	}

	addr := srv.Addr()
	if addr == "127.0.0.1:0" {
		t.Fatal("Expected a resolved address after start")
	}

	// Starting again is a no-op
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Second start failed: %v", err)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}

	if srv.State() != scriptport.StateStopped {
		t.Fatalf("Expected state stopped, got %v", srv.State())
	}

	// Stop is idempotent
	if err := srv.Stop(); err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}

	// A stopped server cannot be started again
	if err := srv.Start(context.Background()); err != scriptport.ErrStopped {
		t.Fatalf("Expected ErrStopped, got %v", err)
	}
}

func TestStartBindFailure(t *testing.T) {
	first, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer first.Stop()

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	// A second server on the same port must fail to bind and stay in init
	second, err := scriptport.New(
		scriptport.WithListenAddr(first.Addr()),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer second.Stop()

	err = second.Start(context.Background())
	if err == nil {
		t.Fatal("Expected bind error on occupied port")
	}
	if _, ok := err.(*scriptport.BindError); !ok {
		t.Fatalf("Expected *BindError, got %T", err)
	}
	if second.State() != scriptport.StateInit {
		t.Fatalf("Expected state init after failed bind, got %v", second.State())
	}
}

func TestStartContextCancel(t *testing.T) {
	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := srv.Wait(waitCtx); err != nil {
		t.Fatalf("Server did not stop after context cancel: %v", err)
	}

	if srv.State() != scriptport.StateStopped {
		t.Fatalf("Expected state stopped, got %v", srv.State())
	}
}

func TestWait(t *testing.T) {
	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// Wait honors its context while the server is running
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := srv.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Expected DeadlineExceeded, got %v", err)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}

	// After stop, Wait returns immediately
	if err := srv.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after stop returned %v", err)
	}
}

// Test helper types
type testLogger struct{}

func (l *testLogger) Debug(msg string, fields ...scriptport.Field) {}
func (l *testLogger) Info(msg string, fields ...scriptport.Field)  {}
func (l *testLogger) Error(msg string, fields ...scriptport.Field) {}

type testMetrics struct{}

func (m *testMetrics) RecordConnection()                                          {}
func (m *testMetrics) RecordCommandProcessed(kind string, duration time.Duration) {}
func (m *testMetrics) RecordScriptExecuted(duration time.Duration)                {}
func (m *testMetrics) RecordRestart()                                             {}
func (m *testMetrics) RecordError(errorType string)                               {}
