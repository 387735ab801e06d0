// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	DiscardedBytes   uint64
	DecodeErrors     uint64
	LengthMismatches uint64
	Unrecognized     uint64
	AnomalousValues  uint64
	InvalidTimes     uint64
	InvalidTemps     uint64
	InvalidModes     uint64
	OverCapability   uint64
	InvalidValues    uint64

	// Per type frame counts
	ByType map[MessageType]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		ByType:         make(map[MessageType]uint64),
	}
}

// AddDiscarded records bytes the scanner rejected
func (s *Statistics) AddDiscarded(n uint64) {
	s.DiscardedBytes += n
}

// Update updates statistics based on a frame, its decode result and anomalies
func (s *Statistics) Update(p *Packet, m Message, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()
	if p != nil {
		s.ByType[p.Type()]++
	}

	if decodeErr != nil {
		var ime *InvalidMessageError
		if errors.As(decodeErr, &ime) {
			s.LengthMismatches++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if _, ok := m.(Unrecognized); ok {
		s.Unrecognized++
	}

	if len(validationErrors) == 0 {
		s.ValidFrames++
		return
	}

	s.AnomalousValues++
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyInvalidTime:
			s.InvalidTimes++
		case AnomalyInvalidTemp:
			s.InvalidTemps++
		case AnomalyInvalidMode:
			s.InvalidModes++
		case AnomalyExceedsCapability:
			s.OverCapability++
		case AnomalyInvalidValue:
			s.InvalidValues++
		}
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
}

// ErrorCount returns the number of frames that failed to decode or carried
// anomalous values
func (s *Statistics) ErrorCount() uint64 {
	return s.DecodeErrors + s.LengthMismatches + s.AnomalousValues
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, mismatchPercent, anomalousPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		mismatchPercent = float64(s.LengthMismatches) * 100.0 / float64(s.TotalFrames)
		anomalousPercent = float64(s.AnomalousValues) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	result += fmt.Sprintf("Discarded Bytes: %8d\n", s.DiscardedBytes)

	if s.Unrecognized > 0 {
		result += fmt.Sprintf("Unrecognized:    %8d\n", s.Unrecognized)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.LengthMismatches > 0 {
		result += fmt.Sprintf("Length Mismatch: %8d (%.1f%%)\n", s.LengthMismatches, mismatchPercent)
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, anomalousPercent)
		if s.InvalidTimes > 0 {
			result += fmt.Sprintf("  Invalid Time:     %5d\n", s.InvalidTimes)
		}
		if s.InvalidTemps > 0 {
			result += fmt.Sprintf("  Invalid Temp:     %5d\n", s.InvalidTemps)
		}
		if s.InvalidModes > 0 {
			result += fmt.Sprintf("  Invalid Mode:     %5d\n", s.InvalidModes)
		}
		if s.OverCapability > 0 {
			result += fmt.Sprintf("  Over Capability:  %5d\n", s.OverCapability)
		}
		if s.InvalidValues > 0 {
			result += fmt.Sprintf("  Invalid Value:    %5d\n", s.InvalidValues)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
