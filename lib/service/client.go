// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"sync"
	"time"

	"github.com/flowd-project/flowd/lib/codec"
)

// dialTimeout bounds the connect phase only.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long Call waits for a response after
// writing the request.
const responseReadTimeout = 45 * time.Second

// maxResponseSize bounds a single one-shot response. Snapshots of
// large trees travel compressed, so this is generous.
const maxResponseSize = 64 << 20

// ServiceError is returned when the server answers with ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ServiceClient talks to a SocketServer. Each Call or OpenStream uses
// a fresh connection.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient returns a client for the socket at socketPath.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// SocketPath returns the socket the client dials.
func (c *ServiceClient) SocketPath() string { return c.socketPath }

// Call sends a one-shot request and decodes the response data into
// result, if result is non-nil. fields must not contain "action".
// A server-side failure is returned as *ServiceError.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	conn, err := c.dial(ctx, action, fields)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Half-close so the server's read side sees EOF cleanly.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return fmt.Errorf("calling %q on %s: reading response: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// Stream is an open stream connection positioned after the ack.
type Stream struct {
	conn      net.Conn
	decoder   *codec.Decoder
	done      chan struct{}
	closeOnce sync.Once
}

// Decode reads the next value from the stream.
func (s *Stream) Decode(v any) error {
	return s.decoder.Decode(v)
}

// Close closes the connection, unblocking any pending Decode.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// OpenStream starts a stream action and waits for its ack. A refused
// stream is returned as *ServiceError. Cancelling ctx closes the
// stream.
func (c *ServiceClient) OpenStream(ctx context.Context, action string, fields map[string]any) (*Stream, error) {
	conn, err := c.dial(ctx, action, fields)
	if err != nil {
		return nil, err
	}

	stream := &Stream{conn: conn, decoder: codec.NewDecoder(conn), done: make(chan struct{})}
	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var ack StreamAck
	if err := stream.Decode(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening %q on %s: reading ack: %w", action, c.socketPath, err)
	}
	if !ack.OK {
		conn.Close()
		return nil, &ServiceError{Action: action, Message: ack.Error}
	}
	conn.SetReadDeadline(time.Time{})

	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-stream.done:
		}
	}()
	return stream, nil
}

// dial connects and writes the request.
func (c *ServiceClient) dial(ctx context.Context, action string, fields map[string]any) (net.Conn, error) {
	request := make(map[string]any, len(fields)+1)
	maps.Copy(request, fields)
	request["action"] = action

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("calling %q on %s: connecting: %w", action, c.socketPath, err)
	}
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("calling %q on %s: writing request: %w", action, c.socketPath, err)
	}
	return conn, nil
}
