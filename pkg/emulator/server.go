// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
)

// Defaults
const (
	DefaultListen         = ":4257"
	DefaultStatusInterval = time.Second
)

// Options configures a Server
type Options struct {
	Listen         string
	StatusInterval time.Duration
	Capabilities   *bwa.Capabilities
	MAC            net.HardwareAddr
}

// Server accepts TCP clients and drives each from a shared Spa
type Server struct {
	opts Options
	spa  *Spa
	ln   net.Listener

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New builds a server. Call Listen then Serve, or ListenAndServe.
func New(opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	caps := DefaultCapabilities
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	}
	return &Server{
		opts:  opts,
		spa:   NewSpa(caps, opts.MAC),
		conns: make(map[net.Conn]struct{}),
	}
}

// Spa returns the simulated controller
func (s *Server) Spa() *Spa {
	return s.spa
}

// Listen binds the listening socket
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("emulator: listen %s: %w", s.opts.Listen, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, nil before Listen
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe binds and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts clients until ctx is cancelled. Open sessions are closed
// before it returns.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("emulator: Serve called before Listen")
	}
	stop := context.AfterFunc(ctx, func() { s.ln.Close() })
	defer stop()

	logging.Info("Emulator listening", zap.String("addr", s.ln.Addr().String()))
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.closeAll()
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("emulator: accept: %w", err)
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// session is one connected client
type session struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func (ss *session) send(source uint8, m bwa.Message) error {
	frame, err := bwa.EncodeFrame(source, m)
	if err != nil {
		return err
	}
	if logging.ShouldLog(m) {
		logging.LogFrame("to client", frame, m)
	}
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	_, err = ss.conn.Write(frame)
	return err
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logging.Info("Received connection", zap.String("remote", conn.RemoteAddr().String()))

	ss := &session{conn: conn}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(s.opts.StatusInterval)
		defer ticker.Stop()
		for {
			if err := s.broadcast(ss); err != nil {
				logging.Debug("Status write failed", zap.Error(err))
				conn.Close()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	scanner := bwa.NewScanner()
	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			scanner.Write(buf[:n])
			s.drain(scanner, ss)
		}
		if err != nil {
			logging.Info("Connection closed", zap.String("remote", conn.RemoteAddr().String()))
			return
		}
	}
}

// broadcast sends the periodic Status and then gives the client its turn
func (s *Server) broadcast(ss *session) error {
	if err := ss.send(bwa.SourceController, s.spa.Tick()); err != nil {
		return err
	}
	return ss.send(bwa.SourceClient, bwa.Ready{})
}

func (s *Server) drain(scanner *bwa.Scanner, ss *session) {
	for {
		before := scanner.Discarded()
		p, err := scanner.Next()
		if skipped := scanner.Discarded() - before; skipped > 0 {
			logging.Debug("Discarding invalid data", zap.Uint64("bytes", skipped))
		}
		if err != nil {
			return
		}
		m, err := bwa.DecodePacket(p)
		if err != nil {
			logging.Warn("Invalid message", zap.Error(err))
			continue
		}
		logging.LogFrame("from client", p.Raw(), m)

		for _, reply := range s.spa.Apply(m) {
			if err := ss.send(bwa.SourceClient, reply); err != nil {
				logging.Debug("Reply write failed", zap.Error(err))
				return
			}
		}
	}
}
