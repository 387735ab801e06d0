// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

// FindFrame returns the first valid frame in buf.
//
// skipped is the number of leading bytes that were rejected as frame starts.
// On success the frame occupies buf[skipped : skipped+len(p.Raw())]. When it
// returns ErrIncomplete the skipped bytes can be dropped but everything after
// them must be kept and rescanned once more data arrives.
func FindFrame(buf []byte) (p *Packet, skipped int, err error) {
	for o := 0; ; o++ {
		if len(buf)-o < MinLength {
			return nil, o, ErrIncomplete
		}
		if buf[o] != Delimiter {
			continue
		}

		length := int(buf[o+1])
		if length < MinLength || length > MaxLength {
			continue
		}
		if len(buf)-o < length+2 {
			return nil, o, ErrIncomplete
		}
		if buf[o+length+1] != Delimiter {
			continue
		}
		if Checksum(buf[o+1:o+length]) != buf[o+length] {
			continue
		}

		return NewPacket(buf[o : o+length+2]), o, nil
	}
}

// Scanner accumulates bytes from a stream and yields frames as they complete.
// Rejected bytes are dropped so they are never scanned twice.
type Scanner struct {
	buf       []byte
	discarded uint64
	frames    uint64
}

// NewScanner creates an empty scanner
func NewScanner() *Scanner {
	return &Scanner{buf: make([]byte, 0, MaxFrameSize*4)}
}

// Write appends stream data. It never fails.
func (s *Scanner) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame, or ErrIncomplete when more data is
// needed.
func (s *Scanner) Next() (*Packet, error) {
	p, skipped, err := FindFrame(s.buf)
	s.discarded += uint64(skipped)
	consumed := skipped
	if err == nil {
		consumed += len(p.raw)
		s.frames++
	}
	if consumed > 0 {
		s.buf = append(s.buf[:0], s.buf[consumed:]...)
	}
	return p, err
}

// Buffered returns the number of bytes waiting for more data
func (s *Scanner) Buffered() int {
	return len(s.buf)
}

// Pending reports whether a complete frame is already buffered
func (s *Scanner) Pending() bool {
	_, _, err := FindFrame(s.buf)
	return err == nil
}

// Discarded returns the total number of bytes rejected so far
func (s *Scanner) Discarded() uint64 {
	return s.discarded
}

// Frames returns the total number of frames returned so far
func (s *Scanner) Frames() uint64 {
	return s.frames
}

// Reset drops all buffered data and counters
func (s *Scanner) Reset() {
	s.buf = s.buf[:0]
	s.discarded = 0
	s.frames = 0
}
