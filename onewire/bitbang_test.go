// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewire

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestNewBitBang_nilPin(t *testing.T) {
	if b, err := NewBitBang(nil); b != nil || err == nil {
		t.Fatal("nil pin must be rejected")
	}
}

// TestBitBang_slots verifies slot sequencing against a test pin. Releasing
// the line switches the pin to input with a pull-up, which the test pin
// latches as high: a reset therefore sees no presence pulse and read slots
// sample one bits, exactly like a real bus with nothing attached.
func TestBitBang_slots(t *testing.T) {
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()

	p := &gpiotest.Pin{N: "OW1", L: gpio.High}
	b, err := NewBitBang(p)
	if err != nil {
		t.Fatal(err)
	}
	if s := b.String(); s != "onewire(OW1)" {
		t.Fatal(s)
	}
	present, err := b.Reset()
	if err != nil || present {
		t.Fatalf("Reset() = %t, %v; an empty bus must answer no presence", present, err)
	}
	if err := b.WriteByte(0xCC); err != nil {
		t.Fatal(err)
	}
	if v, err := b.ReadByte(); err != nil || v != 0xFF {
		t.Fatalf("ReadByte() = %#02x, %v; a pulled-up line must read 0xFF", v, err)
	}
	if p.L != gpio.High {
		t.Fatal("the line must be left released")
	}
}
