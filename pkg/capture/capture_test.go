// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	base := time.Date(2025, 6, 1, 12, 30, 0, 123456789, time.UTC)
	records := []Record{
		{Time: base, Direction: FromSpa, Data: []byte{0x7e, 0x05, 0x10, 0xbf, 0x06, 0x5c, 0x7e}},
		{Time: base.Add(time.Millisecond), Direction: ToSpa, Data: []byte{0x7e, 0x07, 0x0a, 0xbf, 0x11, 0x04, 0x00, 0x85, 0x7e}},
		{Time: base.Add(time.Second), Direction: FromSpa, Data: []byte{}},
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if w.Count() != len(records) {
		t.Errorf("Expected count %d, got %d", len(records), w.Count())
	}

	got, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("Expected %d records, got %d", len(records), len(got))
	}
	for i := range records {
		if !got[i].Time.Equal(records[i].Time) {
			t.Errorf("Record %d time = %v, want %v", i, got[i].Time, records[i].Time)
		}
		if got[i].Direction != records[i].Direction {
			t.Errorf("Record %d direction = %s, want %s", i, got[i].Direction, records[i].Direction)
		}
		if !bytes.Equal(got[i].Data, records[i].Data) {
			t.Errorf("Record %d data = %x, want %x", i, got[i].Data, records[i].Data)
		}
	}
}

func TestReader_Truncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_ = w.Record(FromSpa, []byte{1, 2, 3})
	_ = w.Record(ToSpa, []byte{4, 5, 6})
	data := buf.Bytes()[:buf.Len()-2]

	got, err := ReadAll(bytes.NewReader(data))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected the complete first record, got %d records", len(got))
	}
}

func TestReader_Empty(t *testing.T) {
	got, err := ReadAll(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("ReadAll of empty stream failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no records, got %d", len(got))
	}
}

func TestTap(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	n, err := w.Tap(ToSpa).Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("Tap write = %d, %v", n, err)
	}
	got, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 || got[0].Direction != ToSpa || string(got[0].Data) != "abc" || !got[0].Time.Equal(fixed) {
		t.Errorf("Unexpected record %+v", got)
	}
}

func TestWriter_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = w.Record(Direction(i%2), []byte{byte(i), byte(j)})
			}
		}(i)
	}
	wg.Wait()

	got, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 400 {
		t.Errorf("Expected 400 intact records, got %d", len(got))
	}
}

func TestDirection_String(t *testing.T) {
	if FromSpa.String() != "from spa" || ToSpa.String() != "to spa" {
		t.Errorf("Unexpected direction names %q %q", FromSpa, ToSpa)
	}
	if Direction(7).String() != "direction(7)" {
		t.Errorf("Unexpected unknown direction %q", Direction(7))
	}
}
