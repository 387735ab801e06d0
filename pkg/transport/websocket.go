// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConnection reads bus bytes carried in binary WebSocket messages.
// A pump goroutine owns the read side so Read can honour a timeout.
type WebSocketConnection struct {
	conn *websocket.Conn
	url  string

	incoming chan []byte
	done     chan struct{}
	readErr  error

	buf       []byte
	bufOffset int

	writeMu   sync.Mutex
	mu        sync.Mutex
	timeout   time.Duration
	closeOnce sync.Once
}

// DialWebSocket opens a WebSocket connection with optional HTTP Basic auth
func DialWebSocket(ctx context.Context, wsURL string, opts Options) (*WebSocketConnection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: %s (use ws:// or wss://)", ErrUnsupportedScheme, u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.DialTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	dialCtx := ctx
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocketConnection(conn, wsURL), nil
}

// NewWebSocketConnection wraps an established WebSocket and starts its pump
func NewWebSocketConnection(conn *websocket.Conn, name string) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		url:      name,
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	go w.pump()
	return w
}

// pump forwards binary messages until the connection fails
func (w *WebSocketConnection) pump() {
	defer close(w.incoming)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.incoming <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	w.mu.Lock()
	timeout := w.timeout
	w.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case data, ok := <-w.incoming:
		if !ok {
			return 0, w.closedError()
		}
		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	case <-expired:
		return 0, nil
	case <-w.done:
		return 0, ErrClosed
	}
}

func (w *WebSocketConnection) closedError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.readErr != nil {
		return fmt.Errorf("%w: %v", ErrClosed, w.readErr)
	}
	return ErrClosed
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

// TurnTaking is true: the bridge relays raw bus traffic
func (w *WebSocketConnection) TurnTaking() bool {
	return true
}

func (w *WebSocketConnection) SetReadTimeout(d time.Duration) error {
	w.mu.Lock()
	w.timeout = d
	w.mu.Unlock()
	return nil
}

func (w *WebSocketConnection) String() string {
	return "WebSocket: " + w.url
}
