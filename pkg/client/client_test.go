// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/transport"
)

// ============================================================
// Test Helpers
// ============================================================

func mustHex(s string) []byte {
	data, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return data
}

var (
	frameReadyPanel  = mustHex("7e 05 10 bf 06 5c 7e")
	frameReady       = mustHex("7e 05 0a bf 06 79 7e")
	frameTogglePump1 = mustHex("7e 07 0a bf 11 04 00 85 7e")
	frameSetTemp     = mustHex("7e 06 0a bf 20 66 27 7e")
	frameStatus      = mustHex("7e 1d ff af 13 00 00 64 0c 1e 00 00 00 00 00 34 00 00 00 00 00 00 00 00 00 66 00 00 00 92 7e")
)

// fakeConn replays canned reads and records writes
type fakeConn struct {
	mu         sync.Mutex
	reads      [][]byte
	readErr    error
	block      bool
	turnTaking bool
	written    [][]byte
	closed     chan struct{}
	closeOnce  sync.Once
	timeout    time.Duration
}

func newFakeConn(turnTaking bool, reads ...[]byte) *fakeConn {
	return &fakeConn{
		reads:      reads,
		readErr:    io.EOF,
		turnTaking: turnTaking,
		closed:     make(chan struct{}),
	}
}

func (f *fakeConn) Read(p []byte) (int, error) {
	f.mu.Lock()
	select {
	case <-f.closed:
		f.mu.Unlock()
		return 0, transport.ErrClosed
	default:
	}
	if len(f.reads) == 0 {
		err, block := f.readErr, f.block
		f.mu.Unlock()
		if block {
			<-f.closed
			return 0, transport.ErrClosed
		}
		return 0, err
	}
	chunk := f.reads[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		f.reads[0] = chunk[n:]
	} else {
		f.reads = f.reads[1:]
	}
	f.mu.Unlock()
	return n, nil
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, bytes.Clone(p))
	return len(p), nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) TurnTaking() bool { return f.turnTaking }

func (f *fakeConn) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = d
	return nil
}

func (f *fakeConn) String() string { return "fake" }

func (f *fakeConn) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

// newTestClient returns a client whose sleeps are recorded instead of taken
func newTestClient(conn *fakeConn) (*Client, *[]time.Duration) {
	c := New(conn, Options{})
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return c, &sleeps
}

func mustFrame(t *testing.T, source uint8, m bwa.Message) []byte {
	t.Helper()
	frame, err := bwa.EncodeFrame(source, m)
	if err != nil {
		t.Fatalf("EncodeFrame(%s) failed: %v", m, err)
	}
	return frame
}

func mustDecode(t *testing.T, mt bwa.MessageType, payload []byte) bwa.Message {
	t.Helper()
	m, err := bwa.Decode(mt, payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return m
}

func testCapabilities() bwa.ControlConfiguration2 {
	return bwa.ControlConfiguration2{Capabilities: bwa.Capabilities{
		Pumps:  [6]uint8{2, 1, 0, 0, 0, 0},
		Lights: [2]bool{true, false},
		Blower: 3,
		Mister: true,
		Aux:    [2]bool{true, true},
	}}
}

// withState installs a known status and inventory
func withState(c *Client, s bwa.Status) {
	caps := testCapabilities()
	c.state.Status = &s
	c.state.Capabilities = &caps
}

// ============================================================
// Receiving Tests
// ============================================================

func TestPoll_SplitReadsAndGarbage(t *testing.T) {
	frame := append([]byte{0x00, 0x7e, 0x99}, frameStatus...)
	conn := newFakeConn(false, frame[:4], frame[4:17], frame[17:])
	c, _ := newTestClient(conn)

	p, m, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if p.Type() != bwa.TypeStatus {
		t.Errorf("Expected Status packet, got 0x%04X", uint16(p.Type()))
	}
	status, ok := m.(bwa.Status)
	if !ok {
		t.Fatalf("Expected bwa.Status, got %T", m)
	}
	if status.Hour != 12 || status.Minute != 30 {
		t.Errorf("Expected 12:30, got %d:%02d", status.Hour, status.Minute)
	}
	if got := c.Statistics().DiscardedBytes; got != 3 {
		t.Errorf("Expected 3 discarded bytes, got %d", got)
	}
	if c.Snapshot().Status == nil {
		t.Error("Status should be cached after Poll")
	}
}

func TestPoll_ReadRetriesExhausted(t *testing.T) {
	conn := newFakeConn(true)
	c, sleeps := newTestClient(conn)

	_, _, err := c.Poll(context.Background())
	if !errors.Is(err, ErrReadRetriesExhausted) {
		t.Fatalf("Expected ErrReadRetriesExhausted, got %v", err)
	}
	if len(*sleeps) != DefaultMaxEmptyReads-1 {
		t.Errorf("Expected %d backoff sleeps, got %d", DefaultMaxEmptyReads-1, len(*sleeps))
	}
}

func TestPoll_EmptyReadCounterResets(t *testing.T) {
	// Four empty reads, data, four more, then a frame: never five in a row
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)
	var reads int
	c.sleep = func(ctx context.Context, d time.Duration) error {
		reads++
		if reads == 4 {
			conn.mu.Lock()
			conn.reads = append(conn.reads, frameReady[:3])
			conn.mu.Unlock()
		}
		if reads == 8 {
			conn.mu.Lock()
			conn.reads = append(conn.reads, frameReady[3:])
			conn.mu.Unlock()
		}
		return nil
	}

	_, m, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if _, ok := m.(bwa.Ready); !ok {
		t.Errorf("Expected Ready, got %T", m)
	}
}

func TestPoll_TransportError(t *testing.T) {
	conn := newFakeConn(false)
	conn.readErr = errors.New("device unplugged")
	c, _ := newTestClient(conn)

	_, _, err := c.Poll(context.Background())
	if err == nil || errors.Is(err, ErrReadRetriesExhausted) {
		t.Fatalf("Expected the transport error, got %v", err)
	}
}

func TestPoll_InvalidMessageKeepsSession(t *testing.T) {
	bad, err := bwa.BuildFrame(bwa.SourceClient, bwa.TypeReady, []byte{0x01})
	if err != nil {
		t.Fatalf("BuildFrame failed: %v", err)
	}
	conn := newFakeConn(false, append(bad, frameReady...))
	c, _ := newTestClient(conn)

	p, _, err := c.Poll(context.Background())
	var ime *bwa.InvalidMessageError
	if !errors.As(err, &ime) {
		t.Fatalf("Expected InvalidMessageError, got %v", err)
	}
	if p == nil {
		t.Error("Packet should be returned with the decode error")
	}

	_, m, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("Second Poll failed: %v", err)
	}
	if _, ok := m.(bwa.Ready); !ok {
		t.Errorf("Expected Ready, got %T", m)
	}
	if got := c.Statistics().LengthMismatches; got != 1 {
		t.Errorf("Expected 1 length mismatch, got %d", got)
	}
}

func TestPoll_CancelledContext(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.Poll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// ============================================================
// Sending Tests
// ============================================================

func TestSend_QueuedUntilReady(t *testing.T) {
	conn := newFakeConn(true, frameStatus, frameReadyPanel, frameReady, frameReady)
	c, _ := newTestClient(conn)

	if err := c.TogglePump(0); err != nil {
		t.Fatalf("TogglePump failed: %v", err)
	}
	if err := c.Send(bwa.SetTargetTemperature{Temperature: 0x66}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(conn.writes()) != 0 {
		t.Fatal("Nothing should be written before Ready")
	}
	if c.QueueLength() != 2 {
		t.Fatalf("Expected 2 queued commands, got %d", c.QueueLength())
	}

	expectWrites := []int{0, 1, 2, 2}
	for i, want := range expectWrites {
		if _, _, err := c.Poll(context.Background()); err != nil {
			t.Fatalf("Poll %d failed: %v", i, err)
		}
		if got := len(conn.writes()); got != want {
			t.Fatalf("After poll %d expected %d writes, got %d", i, want, got)
		}
	}

	w := conn.writes()
	if !bytes.Equal(w[0], frameTogglePump1) {
		t.Errorf("First write = %s, want %s", bwa.HexDump(w[0]), bwa.HexDump(frameTogglePump1))
	}
	if !bytes.Equal(w[1], frameSetTemp) {
		t.Errorf("Second write = %s, want %s", bwa.HexDump(w[1]), bwa.HexDump(frameSetTemp))
	}
	if c.QueueLength() != 0 {
		t.Errorf("Queue should be empty, has %d", c.QueueLength())
	}
}

func TestSend_ImmediateWithoutTurnTaking(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)

	if err := c.TogglePump(0); err != nil {
		t.Fatalf("TogglePump failed: %v", err)
	}
	w := conn.writes()
	if len(w) != 1 || !bytes.Equal(w[0], frameTogglePump1) {
		t.Errorf("Expected one immediate write of %s, got %v", bwa.HexDump(frameTogglePump1), w)
	}
	if c.QueueLength() != 0 {
		t.Error("Queue should stay empty without turn taking")
	}
}

func TestSend_Queued(t *testing.T) {
	conn := newFakeConn(true)
	c, _ := newTestClient(conn)
	_ = c.RequestAll()

	q := c.Queued()
	if len(q) != 4 {
		t.Fatalf("Expected 4 queued frames, got %d", len(q))
	}
	if !bytes.Equal(q[1], mustHex("7e 08 0a bf 22 02 00 00 89 7e")) {
		t.Errorf("Control info request = %s", bwa.HexDump(q[1]))
	}
	q[0][0] = 0x00
	if c.Queued()[0][0] != bwa.Delimiter {
		t.Error("Queued should return copies")
	}
}

func TestIsControlConfigurationRequest(t *testing.T) {
	if !isControlConfigurationRequest(mustHex("7e 08 0a bf 22 02 00 00 89 7e")) {
		t.Error("Expected control configuration request to be detected")
	}
	if isControlConfigurationRequest(frameReady) {
		t.Error("Ready is not a control configuration request")
	}
	if isControlConfigurationRequest([]byte{0x7e}) {
		t.Error("Short frame is not a control configuration request")
	}
}

// ============================================================
// State Tests
// ============================================================

func TestState_FullConfiguration(t *testing.T) {
	frames := [][]byte{
		frameStatus,
		mustFrame(t, bwa.SourceController, mustDecode(t, bwa.TypeControlConfiguration, mustHex("64 dc 11 00 42 46 42 50 32 30 20 20 01 3d 12 38 2e 01 0a 04 00"))),
		mustFrame(t, bwa.SourceController, mustDecode(t, bwa.TypeControlConfiguration2, mustHex("0a 00 01 d0 00 44"))),
		mustFrame(t, bwa.SourceController, bwa.FilterCycles{Cycle1: bwa.FilterCycle{StartHour: 20, Duration: 120}}),
	}
	conn := newFakeConn(false, frames...)
	c, _ := newTestClient(conn)

	for i := range frames {
		if c.FullConfiguration() {
			t.Fatalf("FullConfiguration true after only %d frames", i)
		}
		if _, _, err := c.Poll(context.Background()); err != nil {
			t.Fatalf("Poll %d failed: %v", i, err)
		}
	}
	if !c.FullConfiguration() {
		t.Fatal("FullConfiguration should be true after all four kinds")
	}

	s := c.Snapshot()
	if s.ControlConfiguration.Model() != "BFBP20" {
		t.Errorf("Expected model BFBP20, got %q", s.ControlConfiguration.Model())
	}
	if s.Capabilities.Pumps[0] != 2 {
		t.Errorf("Expected pump 1 max speed 2, got %d", s.Capabilities.Pumps[0])
	}
	if s.Configuration != nil {
		t.Error("Configuration was never received")
	}
}

func TestState_SnapshotIsCopy(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)
	withState(c, bwa.DefaultStatus())

	s := c.Snapshot()
	s.Status.TargetTemperature = 50
	s.Capabilities.Pumps[0] = 9
	if c.Snapshot().Status.TargetTemperature != 100 {
		t.Error("Snapshot status shares memory with the client")
	}
	if c.Snapshot().Capabilities.Pumps[0] != 2 {
		t.Error("Snapshot capabilities share memory with the client")
	}
}

func TestWaitFor(t *testing.T) {
	conn := newFakeConn(false, frameReady, frameStatus)
	c, _ := newTestClient(conn)

	err := c.WaitFor(context.Background(), func(s State) bool { return s.Status != nil })
	if err != nil {
		t.Fatalf("WaitFor failed: %v", err)
	}
}

// ============================================================
// Drain and Run Tests
// ============================================================

func TestDrainMessages(t *testing.T) {
	chunk := append(append(append([]byte(nil), frameReady...), frameStatus...), frameReadyPanel...)
	conn := newFakeConn(false, chunk)
	conn.readErr = nil
	c, _ := newTestClient(conn)

	n, err := c.DrainMessages(context.Background())
	if err != nil {
		t.Fatalf("DrainMessages failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 drained messages, got %d", n)
	}
	if conn.timeout != 0 {
		t.Errorf("Read timeout should be restored, is %v", conn.timeout)
	}
	if c.MessagesPending() {
		t.Error("Nothing should be pending after drain")
	}
}

func TestRun_Cancel(t *testing.T) {
	conn := newFakeConn(false, frameStatus, frameReady)
	conn.block = true
	c, _ := newTestClient(conn)

	ctx, cancel := context.WithCancel(context.Background())
	var seen []bwa.MessageType
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(p *bwa.Packet, m bwa.Message) {
			seen = append(seen, m.Type())
			if len(seen) == 2 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(seen) != 2 || seen[0] != bwa.TypeStatus || seen[1] != bwa.TypeReady {
		t.Errorf("Unexpected message sequence %v", seen)
	}
}

// ============================================================
// Derived Operation Tests
// ============================================================

// toggled returns the item byte of every ToggleItem written
func toggled(t *testing.T, conn *fakeConn) []bwa.Item {
	t.Helper()
	var items []bwa.Item
	for _, w := range conn.writes() {
		p, _, err := bwa.FindFrame(w)
		if err != nil {
			t.Fatalf("Written frame invalid: %v", err)
		}
		if p.Type() == bwa.TypeToggleItem {
			items = append(items, bwa.Item(p.Payload()[0]))
		}
	}
	return items
}

func TestSetPump(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		current uint8
		desired int
		toggles int
	}{
		{"off to high", 0, 0, 2, 2},
		{"high to off", 0, 2, 0, 1},
		{"low to high", 0, 1, 2, 1},
		{"already there", 0, 1, 1, 0},
		{"clamped to max", 0, 0, 9, 2},
		{"single speed on", 1, 0, 1, 1},
		{"single speed clamp", 1, 0, 2, 1},
		{"absent pump", 2, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn(false)
			c, sleeps := newTestClient(conn)
			s := bwa.DefaultStatus()
			s.Pumps[tt.index] = tt.current
			withState(c, s)

			if err := c.SetPump(context.Background(), tt.index, tt.desired); err != nil {
				t.Fatalf("SetPump failed: %v", err)
			}
			items := toggled(t, conn)
			if len(items) != tt.toggles {
				t.Fatalf("Expected %d toggles, got %d", tt.toggles, len(items))
			}
			for _, item := range items {
				if item != bwa.Item(0x04+tt.index) {
					t.Errorf("Toggled %s, want pump %d", item, tt.index+1)
				}
			}
			wantSleeps := tt.toggles - 1
			if wantSleeps < 0 {
				wantSleeps = 0
			}
			if len(*sleeps) != wantSleeps {
				t.Errorf("Expected %d delays, got %d", wantSleeps, len(*sleeps))
			}
			for _, d := range *sleeps {
				if d != DefaultToggleDelay {
					t.Errorf("Expected %v delay, got %v", DefaultToggleDelay, d)
				}
			}
		})
	}
}

func TestSetBlower(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)
	s := bwa.DefaultStatus()
	s.Blower = 3
	withState(c, s)

	if err := c.SetBlower(context.Background(), 1); err != nil {
		t.Fatalf("SetBlower failed: %v", err)
	}
	items := toggled(t, conn)
	if len(items) != 2 {
		t.Fatalf("Expected 2 toggles from 3 to 1, got %d", len(items))
	}
	if items[0] != bwa.ItemBlower {
		t.Errorf("Expected blower toggle, got %s", items[0])
	}
}

func TestSetHeatingMode(t *testing.T) {
	tests := []struct {
		current bwa.HeatingMode
		desired bwa.HeatingMode
		toggles int
	}{
		{bwa.HeatingModeReady, bwa.HeatingModeReady, 0},
		{bwa.HeatingModeReady, bwa.HeatingModeRest, 1},
		{bwa.HeatingModeRest, bwa.HeatingModeReady, 1},
		{bwa.HeatingModeRest, bwa.HeatingModeRest, 0},
		{bwa.HeatingModeReadyInRest, bwa.HeatingModeRest, 1},
		{bwa.HeatingModeReadyInRest, bwa.HeatingModeReady, 2},
	}

	for _, tt := range tests {
		t.Run(tt.current.String()+"->"+tt.desired.String(), func(t *testing.T) {
			conn := newFakeConn(false)
			c, _ := newTestClient(conn)
			s := bwa.DefaultStatus()
			s.HeatingMode = tt.current
			withState(c, s)

			if err := c.SetHeatingMode(context.Background(), tt.desired); err != nil {
				t.Fatalf("SetHeatingMode failed: %v", err)
			}
			items := toggled(t, conn)
			if len(items) != tt.toggles {
				t.Errorf("Expected %d toggles, got %d", tt.toggles, len(items))
			}
			for _, item := range items {
				if item != bwa.ItemHeatingMode {
					t.Errorf("Expected heating mode toggle, got %s", item)
				}
			}
		})
	}
}

func TestSetHeatingMode_RejectsReadyInRest(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)
	withState(c, bwa.DefaultStatus())

	err := c.SetHeatingMode(context.Background(), bwa.HeatingModeReadyInRest)
	if !errors.Is(err, bwa.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestSetBinaryControls(t *testing.T) {
	s := bwa.DefaultStatus()
	s.Lights[0] = true
	s.Hold = false
	s.Mister = true
	s.Aux[1] = false
	s.TemperatureRange = bwa.RangeHigh

	tests := []struct {
		name string
		call func(c *Client) error
		want []bwa.Item
	}{
		{"light already on", func(c *Client) error { return c.SetLight(0, true) }, nil},
		{"light off", func(c *Client) error { return c.SetLight(0, false) }, []bwa.Item{bwa.ItemLight1}},
		{"light 2 on", func(c *Client) error { return c.SetLight(1, true) }, []bwa.Item{bwa.ItemLight2}},
		{"hold on", func(c *Client) error { return c.SetHold(true) }, []bwa.Item{bwa.ItemHold}},
		{"hold already off", func(c *Client) error { return c.SetHold(false) }, nil},
		{"mister already on", func(c *Client) error { return c.SetMister(true) }, nil},
		{"aux 2 on", func(c *Client) error { return c.SetAux(1, true) }, []bwa.Item{bwa.ItemAux2}},
		{"range low", func(c *Client) error { return c.SetTemperatureRange(bwa.RangeLow) }, []bwa.Item{bwa.ItemTemperatureRange}},
		{"range already high", func(c *Client) error { return c.SetTemperatureRange(bwa.RangeHigh) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn(false)
			c, _ := newTestClient(conn)
			withState(c, s)

			if err := tt.call(c); err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			items := toggled(t, conn)
			if len(items) != len(tt.want) {
				t.Fatalf("Expected toggles %v, got %v", tt.want, items)
			}
			for i := range items {
				if items[i] != tt.want[i] {
					t.Errorf("Toggle %d = %s, want %s", i, items[i], tt.want[i])
				}
			}
		})
	}
}

func TestSetTargetTemperature(t *testing.T) {
	tests := []struct {
		name    string
		scale   bwa.TemperatureScale
		current float64
		desired float64
		want    []byte
	}{
		{"fahrenheit", bwa.Fahrenheit, 100, 102, []byte{102}},
		{"unchanged", bwa.Fahrenheit, 100, 100, nil},
		{"celsius doubled", bwa.Celsius, 37, 38.5, []byte{77}},
		{"low value doubled", bwa.Fahrenheit, 100, 30, []byte{60}},
		{"rounded", bwa.Fahrenheit, 100, 101.6, []byte{102}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn(false)
			c, _ := newTestClient(conn)
			s := bwa.DefaultStatus()
			s.TemperatureScale = tt.scale
			s.TargetTemperature = tt.current
			withState(c, s)

			if err := c.SetTargetTemperature(tt.desired); err != nil {
				t.Fatalf("SetTargetTemperature failed: %v", err)
			}
			w := conn.writes()
			if tt.want == nil {
				if len(w) != 0 {
					t.Errorf("Expected no write, got %d", len(w))
				}
				return
			}
			if len(w) != 1 {
				t.Fatalf("Expected 1 write, got %d", len(w))
			}
			p, _, err := bwa.FindFrame(w[0])
			if err != nil {
				t.Fatalf("Written frame invalid: %v", err)
			}
			if p.Type() != bwa.TypeSetTargetTemperature || !bytes.Equal(p.Payload(), tt.want) {
				t.Errorf("Got %s, want payload %x", bwa.HexDump(w[0]), tt.want)
			}
		})
	}
}

func TestDerived_StateUnavailable(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)

	calls := map[string]func() error{
		"SetPump":              func() error { return c.SetPump(context.Background(), 0, 1) },
		"SetBlower":            func() error { return c.SetBlower(context.Background(), 1) },
		"SetLight":             func() error { return c.SetLight(0, true) },
		"SetHold":              func() error { return c.SetHold(true) },
		"SetTargetTemperature": func() error { return c.SetTargetTemperature(100) },
		"SetHeatingMode":       func() error { return c.SetHeatingMode(context.Background(), bwa.HeatingModeRest) },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrStateUnavailable) {
			t.Errorf("%s: expected ErrStateUnavailable, got %v", name, err)
		}
	}
	if len(conn.writes()) != 0 {
		t.Error("Nothing should be written without state")
	}
}

func TestDerived_InvalidIndex(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)
	withState(c, bwa.DefaultStatus())

	if err := c.SetPump(context.Background(), 6, 1); !errors.Is(err, bwa.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for pump 7, got %v", err)
	}
	if err := c.SetLight(2, true); !errors.Is(err, bwa.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for light 3, got %v", err)
	}
	if err := c.SetTime(24, 0, true); !errors.Is(err, bwa.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for hour 24, got %v", err)
	}
}

func TestSetTimeAndScale(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)

	if err := c.SetTime(13, 5, true); err != nil {
		t.Fatalf("SetTime failed: %v", err)
	}
	if err := c.SetTemperatureScale(bwa.Celsius); err != nil {
		t.Fatalf("SetTemperatureScale failed: %v", err)
	}
	w := conn.writes()
	if !bytes.Equal(w[0], mustHex("7e 07 0a bf 21 8d 05 74 7e")) {
		t.Errorf("SetTime wrote %s", bwa.HexDump(w[0]))
	}
	if !bytes.Equal(w[1], mustHex("7e 07 0a bf 27 01 01 5f 7e")) {
		t.Errorf("SetTemperatureScale wrote %s", bwa.HexDump(w[1]))
	}
}

func TestUpdateFilterCycles(t *testing.T) {
	conn := newFakeConn(false)
	c, _ := newTestClient(conn)
	fc := bwa.FilterCycles{
		Cycle1:        bwa.FilterCycle{StartHour: 20, Duration: 120},
		Cycle2Enabled: true,
		Cycle2:        bwa.FilterCycle{StartHour: 8, StartMinute: 30, Duration: 90},
	}

	if err := c.UpdateFilterCycles(fc); err != nil {
		t.Fatalf("UpdateFilterCycles failed: %v", err)
	}
	w := conn.writes()
	if len(w) != 2 {
		t.Fatalf("Expected 2 writes, got %d", len(w))
	}
	if !bytes.Equal(w[0], mustFrame(t, bwa.SourceClient, fc)) {
		t.Errorf("First write should be the schedule, got %s", bwa.HexDump(w[0]))
	}
	if !bytes.Equal(w[1], mustHex("7e 08 0a bf 22 01 00 00 34 7e")) {
		t.Errorf("Second write should request filter cycles, got %s", bwa.HexDump(w[1]))
	}
	if got := c.Snapshot().FilterCycles; got == nil || *got != fc {
		t.Errorf("Schedule should be cached, got %v", got)
	}

	fc.Cycle1.StartHour = 25
	if err := c.UpdateFilterCycles(fc); !errors.Is(err, bwa.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestCycleSteps(t *testing.T) {
	tests := []struct {
		current, desired, max uint8
		want                  int
	}{
		{0, 2, 2, 2},
		{2, 0, 2, 1},
		{1, 0, 2, 2},
		{0, 0, 0, 0},
		{3, 1, 3, 2},
		{5, 0, 2, 1},
	}
	for _, tt := range tests {
		if got := cycleSteps(tt.current, tt.desired, tt.max); got != tt.want {
			t.Errorf("cycleSteps(%d, %d, %d) = %d, want %d", tt.current, tt.desired, tt.max, got, tt.want)
		}
	}
}
