// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import "fmt"

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyInvalidTime
	AnomalyInvalidTemp
	AnomalyInvalidMode
	AnomalyExceedsCapability
	AnomalyInvalidValue
	AnomalyDecodeError
)

// String returns a short name for the anomaly
func (a AnomalyType) String() string {
	switch a {
	case AnomalyLengthMismatch:
		return "length mismatch"
	case AnomalyInvalidTime:
		return "invalid time"
	case AnomalyInvalidTemp:
		return "invalid temperature"
	case AnomalyInvalidMode:
		return "invalid mode"
	case AnomalyExceedsCapability:
		return "exceeds capability"
	case AnomalyInvalidValue:
		return "invalid value"
	case AnomalyDecodeError:
		return "decode error"
	}
	return fmtUnknown(int(a))
}

// ValidationError represents a message that decoded but carries values the
// controller should never send
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Target temperature limits per range, in Fahrenheit
const (
	lowRangeMinF  = 50
	lowRangeMaxF  = 99
	highRangeMinF = 80
	highRangeMaxF = 106
)

// ValidateMessage checks a decoded message for anomalous values.
// caps may be nil when the equipment inventory is not known yet.
// Returns a slice of validation errors (empty if the message is valid)
func ValidateMessage(m Message, caps *Capabilities) []ValidationError {
	errors := []ValidationError{}

	switch m := m.(type) {
	case Status:
		errors = append(errors, validateStatus(m, caps)...)
	case SetTime:
		errors = append(errors, validateClock("SetTime", m.Hour, m.Minute)...)
	case FilterCycles:
		errors = append(errors, validateFilterCycles(m)...)
	case ControlConfigurationRequest:
		if m.Kind == RequestKindUnknown {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: "ControlConfigurationRequest with unknown request bytes",
			})
		}
	}

	return errors
}

func validateClock(what string, hour, minute uint8) []ValidationError {
	if hour <= 23 && minute <= 59 {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidTime,
		Message: fmt.Sprintf("%s time out of range: %02d:%02d", what, hour, minute),
		Details: map[string]interface{}{"hour": hour, "minute": minute},
	}}
}

// validateStatus validates a Status message
func validateStatus(s Status, caps *Capabilities) []ValidationError {
	errors := validateClock("Status", s.Hour, s.Minute)

	if s.HeatingMode > HeatingModeReadyInRest {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidMode,
			Message: fmt.Sprintf("Unknown heating mode %d", s.HeatingMode),
			Details: map[string]interface{}{"heating_mode": uint8(s.HeatingMode)},
		})
	}

	target := s.TargetTemperature
	if s.TemperatureScale == Celsius {
		target = CelsiusToFahrenheit(target)
	}
	minF, maxF := float64(lowRangeMinF), float64(lowRangeMaxF)
	if s.TemperatureRange == RangeHigh {
		minF, maxF = highRangeMinF, highRangeMaxF
	}
	if target < minF || target > maxF {
		errors = append(errors, ValidationError{
			Type: AnomalyInvalidTemp,
			Message: fmt.Sprintf("Target temperature %s outside %s range",
				formatDegrees(s.TargetTemperature), s.TemperatureRange),
			Details: map[string]interface{}{
				"target": s.TargetTemperature,
				"range":  s.TemperatureRange.String(),
				"scale":  s.TemperatureScale.String(),
			},
		})
	}

	if caps == nil {
		return errors
	}

	for i, speed := range s.Pumps {
		if speed > caps.Pumps[i] {
			errors = append(errors, ValidationError{
				Type:    AnomalyExceedsCapability,
				Message: fmt.Sprintf("Pump %d speed %d exceeds capability %d", i+1, speed, caps.Pumps[i]),
				Details: map[string]interface{}{"pump": i + 1, "speed": speed, "max": caps.Pumps[i]},
			})
		}
	}
	if s.Blower > caps.Blower {
		errors = append(errors, ValidationError{
			Type:    AnomalyExceedsCapability,
			Message: fmt.Sprintf("Blower speed %d exceeds capability %d", s.Blower, caps.Blower),
			Details: map[string]interface{}{"speed": s.Blower, "max": caps.Blower},
		})
	}
	for i, on := range s.Lights {
		if on && !caps.Lights[i] {
			errors = append(errors, ValidationError{
				Type:    AnomalyExceedsCapability,
				Message: fmt.Sprintf("Light %d on but not installed", i+1),
				Details: map[string]interface{}{"light": i + 1},
			})
		}
	}

	return errors
}

// validateFilterCycles validates a FilterCycles message
func validateFilterCycles(m FilterCycles) []ValidationError {
	errors := []ValidationError{}
	for i, c := range []FilterCycle{m.Cycle1, m.Cycle2} {
		errors = append(errors, validateClock(fmt.Sprintf("Filter cycle %d", i+1), c.StartHour, c.StartMinute)...)
		if c.Duration > 24*60 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Filter cycle %d duration %s exceeds a day", i+1, FormatDuration(c.Duration)),
				Details: map[string]interface{}{"cycle": i + 1, "duration": c.Duration},
			})
		}
	}
	return errors
}
