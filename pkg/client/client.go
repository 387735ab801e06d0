// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package client drives a live session with a spa controller.
//
// A Client reads frames from a transport, keeps the last known value of each
// configuration and status message, and sends commands. On turn-taking
// transports commands wait in a queue and one is written each time the
// controller sends Ready.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/bwactl/internal/backoff"
	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/transport"
)

var (
	// ErrReadRetriesExhausted is returned when the transport keeps returning
	// no data
	ErrReadRetriesExhausted = errors.New("client: read retries exhausted")

	// ErrStateUnavailable is returned by derived operations that need a
	// Status or the equipment inventory before one has arrived
	ErrStateUnavailable = errors.New("client: spa state not yet known")
)

// Defaults
const (
	DefaultToggleDelay   = 100 * time.Millisecond
	DefaultMaxEmptyReads = 5
	DefaultDrainTimeout  = 10 * time.Millisecond
)

// Options configures a Client
type Options struct {
	Source        uint8
	ToggleDelay   time.Duration
	MaxEmptyReads int
	Backoff       backoff.Config
	Statistics    *bwa.Statistics
}

func (o Options) withDefaults() Options {
	if o.Source == 0 {
		o.Source = bwa.SourceClient
	}
	if o.ToggleDelay <= 0 {
		o.ToggleDelay = DefaultToggleDelay
	}
	if o.MaxEmptyReads <= 0 {
		o.MaxEmptyReads = DefaultMaxEmptyReads
	}
	if o.Backoff == (backoff.Config{}) {
		o.Backoff = backoff.EmptyRead
	}
	if o.Statistics == nil {
		o.Statistics = bwa.NewStatistics()
	}
	return o
}

// Client is one session. A reconnect needs a new Client.
type Client struct {
	conn    transport.Conn
	opts    Options
	scanner *bwa.Scanner
	readBuf []byte
	sleep   func(context.Context, time.Duration) error

	writeMu sync.Mutex

	mu    sync.Mutex
	queue [][]byte
	state State
}

// New starts a session on an open connection
func New(conn transport.Conn, opts Options) *Client {
	return &Client{
		conn:    conn,
		opts:    opts.withDefaults(),
		scanner: bwa.NewScanner(),
		readBuf: make([]byte, bwa.ReadChunkSize),
		sleep:   backoff.Sleep,
	}
}

// Dial opens uri and starts a session on it
func Dial(ctx context.Context, uri string, topts transport.Options, opts Options) (*Client, error) {
	conn, err := transport.Open(ctx, uri, topts)
	if err != nil {
		return nil, err
	}
	logging.Info("Connected", zap.String("endpoint", conn.String()), zap.Bool("turn_taking", conn.TurnTaking()))
	return New(conn, opts), nil
}

// Conn returns the underlying connection
func (c *Client) Conn() transport.Conn {
	return c.conn
}

// Close closes the connection. A blocked Poll returns with an error.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Statistics returns the session counters. They are only updated by the
// polling goroutine.
func (c *Client) Statistics() *bwa.Statistics {
	return c.opts.Statistics
}

// ============================================================
// Receiving
// ============================================================

// Poll blocks until the next frame arrives and returns it with its decoded
// message. A frame whose payload length is wrong for its type returns the
// packet and a *bwa.InvalidMessageError; the session stays usable.
func (c *Client) Poll(ctx context.Context) (*bwa.Packet, bwa.Message, error) {
	return c.poll(ctx, false)
}

var errWouldBlock = errors.New("client: no data pending")

func (c *Client) poll(ctx context.Context, nonBlocking bool) (*bwa.Packet, bwa.Message, error) {
	emptyReads := 0
	for {
		discardedBefore := c.scanner.Discarded()
		p, err := c.scanner.Next()
		if skipped := c.scanner.Discarded() - discardedBefore; skipped > 0 {
			c.opts.Statistics.AddDiscarded(skipped)
			logging.Debug("Discarding invalid data prior to frame", zap.Uint64("bytes", skipped))
		}
		if err == nil {
			m, err := c.handle(p)
			return p, m, err
		}

		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		n, err := c.conn.Read(c.readBuf)
		if n > 0 {
			c.scanner.Write(c.readBuf[:n])
			emptyReads = 0
			continue
		}
		if nonBlocking && err == nil {
			return nil, nil, errWouldBlock
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, err
		}

		// Serial ports report EOF when they simply have nothing; a run of
		// them means the device is gone.
		emptyReads++
		if emptyReads >= c.opts.MaxEmptyReads {
			return nil, nil, fmt.Errorf("%w after %d empty reads", ErrReadRetriesExhausted, emptyReads)
		}
		if err := c.sleep(ctx, backoff.Delay(c.opts.Backoff, emptyReads, nil)); err != nil {
			return nil, nil, err
		}
	}
}

// handle decodes a frame, releases a queued command on Ready and updates the
// cached state
func (c *Client) handle(p *bwa.Packet) (bwa.Message, error) {
	m, err := bwa.DecodePacket(p)
	if err != nil {
		c.opts.Statistics.Update(p, nil, err, nil)
		logging.Debug("read", zap.String("hex", bwa.HexDump(p.Raw())))
		logging.Warn("Invalid message", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	caps := c.capabilitiesLocked()
	c.mu.Unlock()
	c.opts.Statistics.Update(p, m, nil, bwa.ValidateMessage(m, caps))

	if u, ok := m.(bwa.Unrecognized); ok {
		logging.Info("Unrecognized message type",
			zap.String("type", fmt.Sprintf("0x%04X", uint16(u.TypeCode))),
			zap.String("hex", bwa.HexDump(p.Raw())))
	} else {
		logging.LogFrame("from spa", p.Raw(), m)
	}

	if _, ok := m.(bwa.Ready); ok {
		if err := c.releaseOne(); err != nil {
			return m, err
		}
	}

	c.mu.Lock()
	c.state.apply(m)
	c.mu.Unlock()

	return m, nil
}

// releaseOne writes the oldest queued command, if any
func (c *Client) releaseOne() error {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return nil
	}
	frame := c.queue[0]
	c.queue = c.queue[1:]
	c.mu.Unlock()

	return c.write(frame)
}

// MessagesPending reports whether a complete frame is already buffered
func (c *Client) MessagesPending() bool {
	return c.scanner.Pending()
}

// DrainMessages processes every frame that can be read without waiting and
// returns how many there were
func (c *Client) DrainMessages(ctx context.Context) (int, error) {
	if err := c.conn.SetReadTimeout(DefaultDrainTimeout); err != nil {
		return 0, err
	}
	defer c.conn.SetReadTimeout(0)

	count := 0
	for {
		_, _, err := c.poll(ctx, true)
		if errors.Is(err, errWouldBlock) {
			return count, nil
		}
		var ime *bwa.InvalidMessageError
		if err != nil && !errors.As(err, &ime) {
			return count, err
		}
		count++
	}
}

// Handler receives every decoded message in Run
type Handler func(p *bwa.Packet, m bwa.Message)

// Run polls until ctx is cancelled or the connection fails. Cancelling ctx
// closes the connection to unblock the pending read.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-stop:
		}
	}()

	for {
		p, m, err := c.Poll(ctx)
		if err != nil {
			var ime *bwa.InvalidMessageError
			if errors.As(err, &ime) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if handler != nil {
			handler(p, m)
		}
	}
}

// WaitFor polls until cond holds for the cached state
func (c *Client) WaitFor(ctx context.Context, cond func(State) bool) error {
	for {
		if cond(c.Snapshot()) {
			return nil
		}
		_, _, err := c.Poll(ctx)
		var ime *bwa.InvalidMessageError
		if err != nil && !errors.As(err, &ime) {
			return err
		}
	}
}

// ============================================================
// Sending
// ============================================================

// Send encodes m from the client's source address. On turn-taking
// transports it is queued until the next Ready, otherwise it is written
// immediately.
func (c *Client) Send(m bwa.Message) error {
	frame, err := bwa.EncodeFrame(c.opts.Source, m)
	if err != nil {
		return err
	}

	if logging.ShouldLog(m) {
		logging.Info("to spa", zap.Stringer("message", m))
	}

	if c.conn.TurnTaking() {
		c.mu.Lock()
		c.queue = append(c.queue, frame)
		c.mu.Unlock()
		return nil
	}
	return c.write(frame)
}

func (c *Client) write(frame []byte) error {
	if !isControlConfigurationRequest(frame) || logging.Verbosity() >= 1 {
		logging.LogRawBytes("wrote", frame)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write to %s: %w", c.conn.String(), err)
	}
	return nil
}

func isControlConfigurationRequest(frame []byte) bool {
	if len(frame) < bwa.HeaderSize {
		return false
	}
	return bwa.MessageType(frame[3])<<8|bwa.MessageType(frame[4]) == bwa.TypeControlConfigurationRequest
}

// QueueLength returns the number of commands waiting for Ready
func (c *Client) QueueLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Queued returns copies of the queued frames, oldest first
func (c *Client) Queued() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.queue))
	for i, f := range c.queue {
		out[i] = bytes.Clone(f)
	}
	return out
}
