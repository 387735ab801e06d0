// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/client"
)

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// frameFunc sees every frame. err is a *bwa.InvalidMessageError when the
// payload did not fit its type.
type frameFunc func(p *bwa.Packet, m bwa.Message, err error)

// readFrames polls c until ctx ends or the connection fails. Unlike
// client.Run it also reports frames that failed to decode.
func readFrames(ctx context.Context, c *client.Client, fn frameFunc) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		p, m, err := c.Poll(ctx)
		if err != nil {
			var ime *bwa.InvalidMessageError
			if errors.As(err, &ime) {
				fn(p, nil, err)
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logging.Debug("Session ended", zap.Error(err))
			return err
		}
		fn(p, m, nil)
	}
}
