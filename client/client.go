package client

import (
	"fmt"
	"io"
	"net"
	"time"
)

// Client sends commands to a scriptport server
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient creates a client for the server at addr
func NewClient(addr string) *Client {
	return &Client{
		addr:    addr,
		timeout: 5 * time.Second,
	}
}

// SetTimeout sets the deadline covering connect, send, and response read
// for each command
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Send delivers one command and returns the server's response.
//
// Each command uses its own connection; the server writes one response and
// closes. An empty response with no error means the server dropped the
// command without answering.
func (c *Client) Send(command string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", err
	}

	if _, err := conn.Write([]byte(command)); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	resp, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	return string(resp), nil
}

// Send delivers one command to the server at addr using default settings
func Send(addr, command string) (string, error) {
	return NewClient(addr).Send(command)
}
