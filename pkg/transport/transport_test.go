// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================
// URI Tests
// ============================================================

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		kind    Kind
		address string
		wantErr bool
	}{
		{"tcp://192.168.1.20", KindTCP, "192.168.1.20:4257", false},
		{"tcp://spa.local:9999", KindTCP, "spa.local:9999", false},
		{"telnet://10.0.0.5", KindTelnet, "10.0.0.5:23", false},
		{"rfc2217://10.0.0.5:2000", KindTelnet, "10.0.0.5:2000", false},
		{"/dev/ttyUSB0", KindSerial, "/dev/ttyUSB0", false},
		{"serial:///dev/ttyUSB1", KindSerial, "/dev/ttyUSB1", false},
		{"ws://bridge.local/serial", KindWebSocket, "ws://bridge.local/serial", false},
		{"wss://bridge.local/serial", KindWebSocket, "wss://bridge.local/serial", false},
		{"http://example.com", 0, "", true},
		{"", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			ep, err := ParseURI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedScheme) {
					t.Errorf("Expected ErrUnsupportedScheme, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ep.Kind != tt.kind || ep.Address != tt.address {
				t.Errorf("Expected %s %s, got %s %s", tt.kind, tt.address, ep.Kind, ep.Address)
			}
		})
	}
}

// ============================================================
// TCP Tests
// ============================================================

// listen starts a loopback listener and hands the first accepted conn to serve
func listen(t *testing.T, serve func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()
	return ln.Addr().String()
}

func TestTCP_ReadWriteAndTimeout(t *testing.T) {
	frame := []byte{0x7e, 0x05, 0x0a, 0xbf, 0x06, 0x79, 0x7e}
	release := make(chan struct{})
	addr := listen(t, func(conn net.Conn) {
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n])
		<-release
	})
	defer close(release)

	c, err := Open(context.Background(), "tcp://"+addr, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if c.TurnTaking() {
		t.Error("TCP should not be turn taking")
	}
	if !strings.HasPrefix(c.String(), "TCP: ") {
		t.Errorf("Unexpected description %q", c.String())
	}

	if _, err := c.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got := make([]byte, len(frame))
	if _, err := io.ReadFull(c, got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("Expected echo, got % x", got)
	}

	c.SetReadTimeout(20 * time.Millisecond)
	n, err := c.Read(got)
	if n != 0 || err != nil {
		t.Errorf("Timed out read should return (0, nil), got (%d, %v)", n, err)
	}
}

func TestTCP_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := DialTCP(context.Background(), addr, time.Second); err == nil {
		t.Error("Expected dial to a closed port to fail")
	}
}

// ============================================================
// Telnet Tests
// ============================================================

func TestTelnetFilter(t *testing.T) {
	tests := []struct {
		name  string
		in    [][]byte
		data  []byte
		reply []byte
	}{
		{
			name: "plain data",
			in:   [][]byte{{0x7e, 0x05, 0x7e}},
			data: []byte{0x7e, 0x05, 0x7e},
		},
		{
			name: "escaped 0xff",
			in:   [][]byte{{0x01, telnetIAC, telnetIAC, 0x02}},
			data: []byte{0x01, 0xff, 0x02},
		},
		{
			name: "escape split across reads",
			in:   [][]byte{{0x01, telnetIAC}, {telnetIAC, 0x02}},
			data: []byte{0x01, 0xff, 0x02},
		},
		{
			name: "supported option accepted silently",
			in:   [][]byte{{telnetIAC, telnetDO, optBinary, 0x10}},
			data: []byte{0x10},
		},
		{
			name:  "unsupported DO refused",
			in:    [][]byte{{telnetIAC, telnetDO, 24}},
			reply: []byte{telnetIAC, telnetWONT, 24},
		},
		{
			name:  "unsupported WILL refused",
			in:    [][]byte{{telnetIAC, telnetWILL, 1}},
			reply: []byte{telnetIAC, telnetDONT, 1},
		},
		{
			name: "subnegotiation dropped",
			in: [][]byte{
				{0x11, telnetIAC, telnetSB, optComPort, 101, 0x00, telnetIAC},
				{telnetIAC, 0x01, telnetIAC, telnetSE, 0x22},
			},
			data: []byte{0x11, 0x22},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f telnetFilter
			var data, reply []byte
			for _, chunk := range tt.in {
				d, r := f.feed(chunk, nil)
				data = append(data, d...)
				reply = append(reply, r...)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("Expected data % x, got % x", tt.data, data)
			}
			if !bytes.Equal(reply, tt.reply) {
				t.Errorf("Expected reply % x, got % x", tt.reply, reply)
			}
		})
	}
}

func TestNegotiation_BaudRate(t *testing.T) {
	n := negotiation(115200)
	// 115200 = 0x0001C200
	want := []byte{telnetIAC, telnetSB, optComPort, comSetBaudRate, 0x00, 0x01, 0xC2, 0x00, telnetIAC, telnetSE}
	if !bytes.Contains(n, want) {
		t.Errorf("Negotiation missing baud rate subnegotiation: % x", n)
	}
}

func TestEscapeIAC(t *testing.T) {
	if got := escapeIAC([]byte{1, 0xff, 2}); !bytes.Equal(got, []byte{1, 0xff, 0xff, 2}) {
		t.Errorf("Unexpected escape % x", got)
	}
	in := []byte{1, 2, 3}
	if got := escapeIAC(in); !bytes.Equal(got, in) {
		t.Errorf("Unexpected escape % x", got)
	}
}

func TestTelnet_Connection(t *testing.T) {
	received := make(chan []byte, 1)
	addr := listen(t, func(conn net.Conn) {
		// negotiation, then an option request, then data with an escaped 0xff
		expected := len(negotiation(115200))
		buf := make([]byte, expected)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		conn.Write([]byte{telnetIAC, telnetDO, 24, 0x7e, telnetIAC, telnetIAC, 0x7e})

		reply := make([]byte, 3+4)
		if _, err := io.ReadFull(conn, reply); err != nil {
			return
		}
		received <- reply
	})

	c, err := Open(context.Background(), "telnet://"+addr, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()
	if !c.TurnTaking() {
		t.Error("Telnet should be turn taking")
	}

	got := make([]byte, 0, 3)
	buf := make([]byte, 16)
	for len(got) < 3 {
		n, err := c.Read(buf)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, []byte{0x7e, 0xff, 0x7e}) {
		t.Errorf("Unexpected data % x", got)
	}

	if _, err := c.Write([]byte{0x01, 0xff, 0x02}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	select {
	case reply := <-received:
		want := []byte{telnetIAC, telnetWONT, 24, 0x01, 0xff, 0xff, 0x02}
		if !bytes.Equal(reply, want) {
			t.Errorf("Expected % x, got % x", want, reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server never saw the reply")
	}
}

// ============================================================
// WebSocket Tests
// ============================================================

func TestWebSocket_Bridge(t *testing.T) {
	upgrader := websocket.Upgrader{}
	authorized := make(chan bool, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		authorized <- ok && user == "admin" && pass == "secret"
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			conn.WriteMessage(mt, data)
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	c, err := Open(context.Background(), wsURL, Options{
		Username:     "admin",
		PasswordFunc: func() (string, error) { return "secret", nil },
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if !<-authorized {
		t.Error("Expected Basic auth credentials")
	}

	frame := []byte{0x7e, 0x05, 0x0a, 0xbf, 0x07, 0x7e, 0x7e}
	if _, err := c.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := make([]byte, 4)
	var all []byte
	for len(all) < len(frame) {
		n, err := c.Read(got)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		all = append(all, got[:n]...)
	}
	if !bytes.Equal(all, frame) {
		t.Errorf("Expected echo, got % x", all)
	}

	c.SetReadTimeout(20 * time.Millisecond)
	if n, err := c.Read(got); n != 0 || err != nil {
		t.Errorf("Timed out read should return (0, nil), got (%d, %v)", n, err)
	}

	c.Close()
	if _, err := c.Read(got); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}
