// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Thermoquad/bwactl/pkg/bwa"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := logger
	SetLogger(zap.New(core))
	t.Cleanup(func() { logger = previous })
	return logs
}

func TestInitialize_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "off"} {
		if err := Initialize(level); err != nil {
			t.Errorf("Level %q should be accepted: %v", level, err)
		}
	}
	if err := Initialize("chatty"); err == nil {
		t.Error("Unknown level should be rejected")
	}
}

func TestInitialize_FromEnvironment(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "debug")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug level from environment")
	}
}

func TestSetVerbosity_FromEnvironment(t *testing.T) {
	t.Setenv(VerbosityEnvVar, "2")
	SetVerbosity(-1)
	if Verbosity() != 2 {
		t.Errorf("Expected verbosity 2, got %d", Verbosity())
	}
	SetVerbosity(0)
}

func TestLogFrame_VerbosityGate(t *testing.T) {
	logs := observe(t)
	raw := []byte{0x7e, 0x05, 0x0a, 0xbf, 0x06, 0x79, 0x7e}

	SetVerbosity(0)
	LogFrame("read", raw, bwa.Ready{})
	if logs.Len() != 0 {
		t.Errorf("Ready should be hidden at verbosity 0, got %d entries", logs.Len())
	}

	LogFrame("read", raw, bwa.ToggleItem{Item: bwa.ItemPump1})
	if logs.Len() != 2 {
		t.Fatalf("Expected raw and decoded entries, got %d", logs.Len())
	}
	entries := logs.TakeAll()
	if entries[0].Level != zapcore.DebugLevel || entries[1].Level != zapcore.InfoLevel {
		t.Errorf("Unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}
	if entries[0].ContextMap()["hex"] != "7e 05 0a bf 06 79 7e" {
		t.Errorf("Unexpected hex field %v", entries[0].ContextMap()["hex"])
	}

	SetVerbosity(2)
	defer SetVerbosity(0)
	LogFrame("read", raw, bwa.Ready{})
	if logs.Len() != 2 {
		t.Errorf("Ready should be shown at verbosity 2, got %d entries", logs.Len())
	}
}
