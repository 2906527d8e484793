package client_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"scriptport"
	"scriptport/client"
)

func startServer(t *testing.T) *scriptport.Server {
	t.Helper()

	srv, err := scriptport.New(
		scriptport.WithListenAddr("127.0.0.1:0"),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func TestClient_Send(t *testing.T) {
	srv := startServer(t)

	c := client.NewClient(srv.Addr())
	resp, err := c.Send("v = 7")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp != "Command executed successfully" {
		t.Errorf("response = %q, want %q", resp, "Command executed successfully")
	}
}

func TestClient_SendErrorPayload(t *testing.T) {
	srv := startServer(t)

	c := client.NewClient(srv.Addr())
	resp, err := c.Send("error('nope')")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !strings.HasPrefix(resp, "Error executing: error('nope')") {
		t.Errorf("response = %q, want an error payload naming the command", resp)
	}
	if !strings.Contains(resp, "nope") {
		t.Errorf("response = %q, want the failure detail", resp)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	c := client.NewClient("127.0.0.1:1")
	c.SetTimeout(500 * time.Millisecond)

	if _, err := c.Send("x = 1"); err == nil {
		t.Fatal("expected connect error")
	}
}

func TestClient_Timeout(t *testing.T) {
	// A listener that accepts and never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			time.Sleep(time.Second)
		}
	}()

	c := client.NewClient(ln.Addr().String())
	c.SetTimeout(50 * time.Millisecond)

	if _, err := c.Send("x = 1"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestSend(t *testing.T) {
	srv := startServer(t)

	resp, err := client.Send(srv.Addr(), "w = 1")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp != "Command executed successfully" {
		t.Errorf("response = %q, want %q", resp, "Command executed successfully")
	}
}
