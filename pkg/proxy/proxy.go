// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package proxy is a logging man in the middle between a client and a spa.
//
// Bytes are forwarded unchanged in both directions. Each direction also
// runs through its own scanner so every frame can be decoded, logged and
// optionally captured on the way past.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/capture"
	"github.com/Thermoquad/bwactl/pkg/transport"
)

// DefaultListen is the WiFi module port, so clients need no configuration
const DefaultListen = ":4257"

// FrameFunc observes each frame that passes through. err is set when the
// frame failed to decode.
type FrameFunc func(dir capture.Direction, p *bwa.Packet, m bwa.Message, err error)

// Options configures a Proxy
type Options struct {
	Listen    string
	Upstream  string
	Transport transport.Options
	Capture   *capture.Writer
	OnFrame   FrameFunc
}

// Proxy accepts clients and relays each to its own upstream connection
type Proxy struct {
	opts Options
	ln   net.Listener
	wg   sync.WaitGroup
}

// New builds a proxy. A bare host:port upstream is treated as tcp://.
func New(opts Options) *Proxy {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if !strings.Contains(opts.Upstream, "://") && !strings.HasPrefix(opts.Upstream, "/") {
		opts.Upstream = "tcp://" + opts.Upstream
	}
	return &Proxy{opts: opts}
}

// Listen binds the listening socket
func (p *Proxy) Listen() error {
	if _, err := transport.ParseURI(p.opts.Upstream); err != nil {
		return fmt.Errorf("proxy: upstream: %w", err)
	}
	ln, err := net.Listen("tcp", p.opts.Listen)
	if err != nil {
		return fmt.Errorf("proxy: listen %s: %w", p.opts.Listen, err)
	}
	p.ln = ln
	return nil
}

// Addr returns the bound address, nil before Listen
func (p *Proxy) Addr() net.Addr {
	if p.ln == nil {
		return nil
	}
	return p.ln.Addr()
}

// ListenAndServe binds and serves until ctx is cancelled
func (p *Proxy) ListenAndServe(ctx context.Context) error {
	if err := p.Listen(); err != nil {
		return err
	}
	return p.Serve(ctx)
}

// Serve accepts clients until ctx is cancelled
func (p *Proxy) Serve(ctx context.Context) error {
	if p.ln == nil {
		return errors.New("proxy: Serve called before Listen")
	}
	stop := context.AfterFunc(ctx, func() { p.ln.Close() })
	defer stop()

	logging.Info("Proxy listening", zap.String("addr", p.ln.Addr().String()), zap.String("upstream", p.opts.Upstream))
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			p.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("proxy: accept: %w", err)
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.relay(ctx, conn); err != nil {
				logging.Warn("Proxy session ended", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			}
		}()
	}
}

// relay runs one client session until either side closes
func (p *Proxy) relay(ctx context.Context, client net.Conn) error {
	defer client.Close()
	logging.Info("Client connected", zap.String("remote", client.RemoteAddr().String()))

	upstream, err := transport.Open(ctx, p.opts.Upstream, p.opts.Transport)
	if err != nil {
		return err
	}
	defer upstream.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		client.Close()
		upstream.Close()
	})
	defer stop()

	errc := make(chan error, 2)
	go func() { errc <- p.shuttle(client, upstream, capture.ToSpa) }()
	go func() { errc <- p.shuttle(upstream, client, capture.FromSpa) }()

	err = <-errc
	cancel()
	<-errc
	if isClosed(err) {
		return nil
	}
	return err
}

// shuttle copies src to dst, decoding the frames it sees
func (p *Proxy) shuttle(src io.Reader, dst io.Writer, dir capture.Direction) error {
	scanner := bwa.NewScanner()
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if p.opts.Capture != nil {
				if cerr := p.opts.Capture.Record(dir, chunk); cerr != nil {
					logging.Warn("Capture failed", zap.Error(cerr))
				}
			}
			if _, werr := dst.Write(chunk); werr != nil {
				return werr
			}
			scanner.Write(chunk)
			p.inspect(scanner, dir)
		}
		if err != nil {
			return err
		}
	}
}

func (p *Proxy) inspect(scanner *bwa.Scanner, dir capture.Direction) {
	tag := "Server"
	if dir == capture.ToSpa {
		tag = "Client"
	}
	for {
		before := scanner.Discarded()
		pkt, err := scanner.Next()
		if skipped := scanner.Discarded() - before; skipped > 0 {
			logging.Debug(tag+": discarded bytes", zap.Uint64("bytes", skipped))
		}
		if err != nil {
			return
		}
		m, err := bwa.DecodePacket(pkt)
		if err != nil {
			logging.Warn(tag+": invalid message", zap.Error(err))
		} else if logging.ShouldLog(m) {
			logging.Info(tag, zap.Stringer("message", m))
		}
		if p.opts.OnFrame != nil {
			p.opts.OnFrame(dir, pkt, m, err)
		}
	}
}

func isClosed(err error) bool {
	return err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, transport.ErrClosed)
}
