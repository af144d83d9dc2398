// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package onewire exposes a bit-level view of a Dallas/Maxim 1-wire bus: a
// reset/presence primitive plus single byte transfers.
//
// This is deliberately lower level than a transaction oriented bus: the
// DS18B20 manager sequences resets and bytes itself, one poll at a time.
package onewire

// Bus is a half-duplex 1-wire master touched one byte at a time.
//
// Reset issues a bus reset pulse and reports whether any slave answered with
// a presence pulse. WriteByte and ReadByte transfer a single byte, least
// significant bit first. All three are synchronous and bounded: a byte is 8
// timed slots of under 100us each.
//
// Errors indicate a transceiver fault (for example a GPIO that cannot be
// driven), not a protocol condition. A missing device is not an error; it is
// Reset returning false.
type Bus interface {
	Reset() (present bool, err error)
	WriteByte(b byte) error
	ReadByte() (byte, error)
}

// busError implements error to mark transceiver level faults.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }
