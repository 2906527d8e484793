package scriptport_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scriptport"
	"scriptport/client"
	"scriptport/script"

	lua "github.com/yuin/gopher-lua"
)

// newTestServer starts a server on a random loopback port with fast restart
// and drain cycles, and returns a channel of its state transitions.
func newTestServer(t *testing.T, opts ...scriptport.Option) (*scriptport.Server, chan scriptport.State) {
	t.Helper()

	base := []scriptport.Option{
		scriptport.WithListenAddr("127.0.0.1:0"),
		scriptport.WithTickInterval(20 * time.Millisecond),
		scriptport.WithRestartDelay(50 * time.Millisecond),
		scriptport.WithLogger(&testLogger{}),
	}
	srv, err := scriptport.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	states := make(chan scriptport.State, 16)
	srv.OnStateChange(func(state scriptport.State) {
		states <- state
	})

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })

	return srv, states
}

func waitState(t *testing.T, states <-chan scriptport.State, want scriptport.State) {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case state := <-states:
			if state == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func send(t *testing.T, addr, command string) string {
	t.Helper()

	resp, err := client.Send(addr, command)
	if err != nil {
		t.Fatalf("Send(%q) error = %v", command, err)
	}
	return resp
}

func TestLifecycle_CommandAndNamespace(t *testing.T) {
	srv, _ := newTestServer(t)
	addr := srv.Addr()

	if resp := send(t, addr, "x = 41"); resp != "Command executed successfully" {
		t.Fatalf("response = %q", resp)
	}

	// The namespace persists across connections.
	if resp := send(t, addr, "y = x + 1"); resp != "Command executed successfully" {
		t.Fatalf("response = %q", resp)
	}
	if resp := send(t, addr, "assert(y == 42)"); resp != "Command executed successfully" {
		t.Fatalf("assertion over the wire failed: %q", resp)
	}
}

func TestLifecycle_ErrorPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := send(t, srv.Addr(), "error('kaboom')")
	if !strings.HasPrefix(resp, "Error executing: error('kaboom')") {
		t.Errorf("response = %q, want prefix naming the command", resp)
	}
	if !strings.Contains(resp, "kaboom") {
		t.Errorf("response = %q, want the raised message", resp)
	}

	// A failed command leaves the server serving.
	if resp := send(t, srv.Addr(), "ok = 1"); resp != "Command executed successfully" {
		t.Fatalf("response after failure = %q", resp)
	}
}

func TestLifecycle_MissingScriptPath(t *testing.T) {
	srv, _ := newTestServer(t)

	// A path that does not exist is evaluated as Lua and fails there; the
	// payload still names the original command.
	resp := send(t, srv.Addr(), "/no/such/file.lua")
	if !strings.HasPrefix(resp, "Error executing: /no/such/file.lua") {
		t.Errorf("response = %q, want an error payload naming the path", resp)
	}
}

func TestLifecycle_QueuedScriptExecution(t *testing.T) {
	srv, _ := newTestServer(t)

	path := filepath.Join(t.TempDir(), "mark.lua")
	if err := os.WriteFile(path, []byte("mark = 'ran'\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if resp := send(t, srv.Addr(), path); resp != "Script queued for execution" {
		t.Fatalf("response = %q, want queued acknowledgement", resp)
	}

	// The drain cycle picks the script up and runs it on the shared engine.
	deadline := time.Now().Add(2 * time.Second)
	for srv.Engine().Global("mark") != "ran" {
		if time.Now().After(deadline) {
			t.Fatal("queued script did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Scripts and commands share one namespace.
	if resp := send(t, srv.Addr(), "assert(mark == 'ran')"); resp != "Command executed successfully" {
		t.Fatalf("namespace check failed: %q", resp)
	}

	info := srv.GetInfo()
	if info["scripts_executed"].(int64) < 1 {
		t.Errorf("scripts_executed = %v, want at least 1", info["scripts_executed"])
	}
}

func TestLifecycle_StopCommand(t *testing.T) {
	srv, states := newTestServer(t)
	addr := srv.Addr()

	if resp := send(t, addr, "STOP"); resp != "Server shutting down..." {
		t.Fatalf("response = %q", resp)
	}

	waitState(t, states, scriptport.StateStopped)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Wait(ctx); err != nil {
		t.Fatalf("Wait() after STOP error = %v", err)
	}

	// New connections are refused once the socket is closed.
	c := client.NewClient(addr)
	c.SetTimeout(500 * time.Millisecond)
	if _, err := c.Send("x = 1"); err == nil {
		t.Fatal("expected connection failure after STOP")
	}
}

func TestLifecycle_RestartCommand(t *testing.T) {
	srv, states := newTestServer(t)
	addr := srv.Addr()

	if resp := send(t, addr, "x = 1"); resp != "Command executed successfully" {
		t.Fatalf("response = %q", resp)
	}

	if resp := send(t, addr, "RESTART"); resp != "Server restarting..." {
		t.Fatalf("response = %q", resp)
	}

	waitState(t, states, scriptport.StateRestarting)
	waitState(t, states, scriptport.StateListening)

	// Same port after the restart.
	if got := srv.Addr(); got != addr {
		t.Fatalf("Addr() after restart = %q, want %q", got, addr)
	}

	// Fresh namespace: the old assignment is gone.
	if resp := send(t, addr, "assert(x == nil)"); resp != "Command executed successfully" {
		t.Fatalf("namespace was not reset: %q", resp)
	}

	info := srv.GetInfo()
	if info["restarts"].(int64) != 1 {
		t.Errorf("restarts = %v, want 1", info["restarts"])
	}
}

func TestLifecycle_ModulesSurviveRestart(t *testing.T) {
	srv, states := newTestServer(t,
		scriptport.WithModule("host", script.Module{
			"double": func(L *lua.LState) int {
				L.Push(lua.LNumber(L.ToNumber(1) * 2))
				return 1
			},
		}),
	)
	addr := srv.Addr()

	if resp := send(t, addr, "assert(host.double(21) == 42)"); resp != "Command executed successfully" {
		t.Fatalf("module call failed: %q", resp)
	}

	send(t, addr, "RESTART")
	waitState(t, states, scriptport.StateRestarting)
	waitState(t, states, scriptport.StateListening)

	// Host modules are registered again on the fresh engine.
	if resp := send(t, addr, "assert(host.double(2) == 4)"); resp != "Command executed successfully" {
		t.Fatalf("module call after restart failed: %q", resp)
	}
}

func TestLifecycle_ApiRestart(t *testing.T) {
	srv, states := newTestServer(t)
	addr := srv.Addr()

	send(t, addr, "x = 5")

	if err := srv.Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	waitState(t, states, scriptport.StateListening)

	if resp := send(t, addr, "assert(x == nil)"); resp != "Command executed successfully" {
		t.Fatalf("namespace was not reset: %q", resp)
	}
}

func TestLifecycle_RestartBeforeStart(t *testing.T) {
	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Stop()

	if err := srv.Restart(); err != scriptport.ErrNotListening {
		t.Fatalf("Restart() before start = %v, want ErrNotListening", err)
	}
}

func TestLifecycle_SequentialClients(t *testing.T) {
	srv, _ := newTestServer(t)
	addr := srv.Addr()

	// A burst of one-shot clients, each on its own connection.
	send(t, addr, "n = 0")
	for i := 0; i < 10; i++ {
		if resp := send(t, addr, "n = n + 1"); resp != "Command executed successfully" {
			t.Fatalf("response = %q", resp)
		}
	}
	if resp := send(t, addr, "assert(n == 10)"); resp != "Command executed successfully" {
		t.Fatalf("counter check failed: %q", resp)
	}
}
