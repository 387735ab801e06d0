// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package backoff

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		if got := Delay(cfg, tt.attempt, nil); got != tt.want {
			t.Errorf("Attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestDelay_Jitter(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, Multiplier: 2, Jitter: true}
	rng := rand.New(rand.NewSource(1))
	for attempt := 2; attempt < 6; attempt++ {
		base := float64(100*time.Millisecond) * float64(int(1)<<(attempt-1))
		got := float64(Delay(cfg, attempt, rng))
		if got < base*0.5 || got > base*1.5 {
			t.Errorf("Attempt %d: %v outside jitter window", attempt, time.Duration(got))
		}
	}
}

func TestDelay_Disabled(t *testing.T) {
	if got := Delay(Config{}, 3, nil); got != 0 {
		t.Errorf("Expected zero delay, got %v", got)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
