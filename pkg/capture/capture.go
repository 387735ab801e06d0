// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw bus traffic as a CBOR sequence.
//
// Each record holds the bytes of one read or write with a timestamp and the
// direction they travelled. Records are appended back to back with no
// framing beyond CBOR itself, so a truncated file loses at most its last
// record.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction tells which way a record travelled
type Direction uint8

const (
	// FromSpa is traffic read from the controller
	FromSpa Direction = iota
	// ToSpa is traffic written to the controller
	ToSpa
)

func (d Direction) String() string {
	switch d {
	case FromSpa:
		return "from spa"
	case ToSpa:
		return "to spa"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// Record is one chunk of captured traffic
type Record struct {
	Time      time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Data      []byte    `cbor:"3,keyasint"`
}

var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends records to a stream. It is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	count int
	now   func() time.Time
}

// NewWriter returns a Writer appending to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: encMode.NewEncoder(w), now: time.Now}
}

// Record stores a copy of data stamped with the current time
func (w *Writer) Record(dir Direction, data []byte) error {
	return w.Write(Record{Time: w.now(), Direction: dir, Data: data})
}

// Write stores r as given
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("capture: encode record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Tap returns an io.Writer that records everything written to it in dir
func (w *Writer) Tap(dir Direction) io.Writer {
	return tap{w: w, dir: dir}
}

type tap struct {
	w   *Writer
	dir Direction
}

func (t tap) Write(p []byte) (int, error) {
	if err := t.w.Record(t.dir, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Reader reads records back from a stream
type Reader struct {
	dec *cbor.Decoder
}

// NewReader returns a Reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream. A record
// cut short by a truncated file returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("capture: decode record: %w", err)
	}
	return rec, nil
}

// ReadAll returns every record in r
func ReadAll(r io.Reader) ([]Record, error) {
	cr := NewReader(r)
	var out []Record
	for {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
