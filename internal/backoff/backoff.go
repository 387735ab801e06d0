// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package backoff computes retry delays.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config describes an exponential backoff schedule
type Config struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Reconnect is the schedule used when a connection to the spa is lost
var Reconnect = Config{
	InitialDelay: time.Second,
	Multiplier:   2,
	MaxDelay:     30 * time.Second,
}

// EmptyRead is the schedule used between reads that returned no data
var EmptyRead = Config{
	InitialDelay: 50 * time.Millisecond,
	Multiplier:   2,
	MaxDelay:     time.Second,
}

// Delay returns the retry delay for attempt N (1-based)
func Delay(cfg Config, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
