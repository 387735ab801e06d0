// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means the buffer ends before a whole frame is available.
	// The caller should read more data and scan again.
	ErrIncomplete = errors.New("bwa: incomplete frame")

	// ErrInvalidArgument is wrapped by every command constructor that rejects
	// its input.
	ErrInvalidArgument = errors.New("bwa: invalid argument")

	// ErrUnencodable is returned by Encode for values it has no wire form for.
	ErrUnencodable = errors.New("bwa: message cannot be encoded")
)

// InvalidMessageError reports a frame whose type is known but whose payload
// length does not match what that type declares.
type InvalidMessageError struct {
	Type     MessageType
	Length   int
	Expected string
	Raw      []byte
}

// Error implements the error interface
func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("bwa: invalid %s message: payload length %d, expected %s (%s)",
		TypeName(e.Type), e.Length, e.Expected, HexDump(e.Raw))
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func fmtUnknown(v int) string {
	return fmt.Sprintf("unknown(%d)", v)
}
