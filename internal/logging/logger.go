// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging holds the process wide zap logger and the frame
// verbosity gate.
package logging

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/bwactl/pkg/bwa"
)

var logger *zap.Logger

var verbosity atomic.Int32

// Environment variables consulted when no explicit value is given
const (
	LogLevelEnvVar  = "BWA_LOG_LEVEL"
	VerbosityEnvVar = "BWA_LOG_VERBOSITY"
	DefaultLogLevel = "warn"
)

// Initialize builds the logger. An empty level falls back to BWA_LOG_LEVEL
// and then to warn. "off" or "none" silences logging.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		level = DefaultLogLevel
	}

	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "off", "none":
		logger = zap.NewNop()
		return nil
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	built, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built
	return nil
}

// SetLogger replaces the global logger, used by tests
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// SetVerbosity sets the frame verbosity. A negative value reads
// BWA_LOG_VERBOSITY instead.
func SetVerbosity(v int) {
	if v < 0 {
		v, _ = strconv.Atoi(os.Getenv(VerbosityEnvVar))
	}
	verbosity.Store(int32(v))
}

// Verbosity returns the current frame verbosity
func Verbosity() int {
	return int(verbosity.Load())
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogRawBytes logs raw bytes at debug level
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", bwa.HexDump(data)),
	)
}

// ShouldLog reports whether frames of m pass the verbosity gate
func ShouldLog(m bwa.Message) bool {
	return Verbosity() >= bwa.Verbosity(m)
}

// LogFrame logs a frame travelling in direction, unless the verbosity gate
// hides it. The raw bytes go to debug and the decoded message to info.
func LogFrame(direction string, raw []byte, m bwa.Message) {
	if m != nil && !ShouldLog(m) {
		return
	}
	LogRawBytes(direction, raw)
	if m != nil {
		Info(direction,
			zap.String("type", bwa.TypeName(m.Type())),
			zap.Stringer("message", m),
		)
	}
}
