// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewire

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

// initOps is the I2C traffic of a successful bridge bring-up.
func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: 0x18, W: []byte{cmdDeviceReset}},
		{Addr: 0x18, W: []byte{cmdSetReadPtr, regStatus}, R: []byte{0x18}},
		{Addr: 0x18, W: []byte{cmdWriteConfig, 0xE1}, R: []byte{0x01}},
	}
}

func TestNewDS2482_badAddress(t *testing.T) {
	if d, err := NewDS2482(&i2ctest.Playback{}, 0x33, nil); d != nil || err == nil {
		t.Fatal("unsupported address must be rejected")
	}
}

func TestNewDS2482_badStatus(t *testing.T) {
	bus := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x18, W: []byte{cmdDeviceReset}},
			{Addr: 0x18, W: []byte{cmdSetReadPtr, regStatus}, R: []byte{0x00}},
		},
		DontPanic: true,
	}
	if d, err := NewDS2482(&bus, 0x18, nil); d != nil || err == nil {
		t.Fatal("a bridge answering garbage must be rejected")
	}
}

func TestDS2482_transaction(t *testing.T) {
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()

	ops := append(initOps(), []i2ctest.IO{
		// 1-wire reset: bus idle, presence detected.
		{Addr: 0x18, W: []byte{cmd1WReset}},
		{Addr: 0x18, R: []byte{statusPPD}},
		// Skip ROM.
		{Addr: 0x18, W: []byte{cmd1WWrite, 0xCC}},
		{Addr: 0x18, R: []byte{0x00}},
		// Read one byte back.
		{Addr: 0x18, W: []byte{cmd1WRead}},
		{Addr: 0x18, R: []byte{0x00}},
		{Addr: 0x18, W: []byte{cmdSetReadPtr, regRDR}, R: []byte{0x28}},
	}...)
	bus := i2ctest.Playback{Ops: ops}
	d, err := NewDS2482(&bus, 0x18, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); s == "" {
		t.Fatal("empty String()")
	}
	present, err := d.Reset()
	if err != nil || !present {
		t.Fatalf("Reset() = %t, %v", present, err)
	}
	if err := d.WriteByte(0xCC); err != nil {
		t.Fatal(err)
	}
	if b, err := d.ReadByte(); err != nil || b != 0x28 {
		t.Fatalf("ReadByte() = %#02x, %v", b, err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDS2482_shortedBus(t *testing.T) {
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()

	ops := append(initOps(), []i2ctest.IO{
		{Addr: 0x18, W: []byte{cmd1WReset}},
		{Addr: 0x18, R: []byte{statusShorted}},
	}...)
	bus := i2ctest.Playback{Ops: ops}
	d, err := NewDS2482(&bus, 0x18, nil)
	if err != nil {
		t.Fatal(err)
	}
	if present, err := d.Reset(); err == nil || present {
		t.Fatalf("Reset() = %t, %v; a short must error", present, err)
	}
}
