// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

// crc8Bitwise is the shift-register definition of the Dallas/Maxim CRC8,
// used to validate the lookup table.
func crc8Bitwise(crc, b byte) byte {
	crc ^= b
	for i := 0; i < 8; i++ {
		if crc&1 != 0 {
			crc = (crc >> 1) ^ 0x8C
		} else {
			crc >>= 1
		}
	}
	return crc
}

func TestCRC8_vectors(t *testing.T) {
	var tests = []struct {
		bytes  []byte
		result byte
	}{
		// ROM code of a genuine DS18B20, datasheet layout.
		{bytes: []byte{0x28, 0xAA, 0xBB, 0xCC, 0xDD, 0x00, 0x00}, result: 0x90},
		// Scratchpad, 12 bit configuration, +25.0625C.
		{bytes: []byte{0x91, 0x01, 0x7D, 0xC9, 0x7F, 0xFF, 0x0C, 0x10}, result: 0x8B},
		// Power on reset scratchpad value (+85C).
		{bytes: []byte{0x50, 0x05, 0x7D, 0xC9, 0x7F, 0xFF, 0x0C, 0x10}, result: 0xE7},
		{bytes: []byte{0x01}, result: 94},
		{bytes: nil, result: 0},
	}
	for _, test := range tests {
		if res := CRC8(0, test.bytes); res != test.result {
			t.Errorf("CRC8(0, %#v)!=%#02x received %#02x", test.bytes, test.result, res)
		}
	}
}

func TestCRC8Update_table(t *testing.T) {
	// The table must agree with the bitwise definition for every
	// combination of running value and input byte.
	for crc := 0; crc < 256; crc++ {
		for b := 0; b < 256; b++ {
			want := crc8Bitwise(byte(crc), byte(b))
			if got := CRC8Update(byte(crc), byte(b)); got != want {
				t.Fatalf("CRC8Update(%#02x, %#02x) = %#02x, want %#02x", crc, b, got, want)
			}
		}
	}
}

func TestCheckCRC8_roundTrip(t *testing.T) {
	bufs := [][]byte{
		{0x28, 0xAA, 0xBB, 0xCC, 0xDD, 0x00, 0x00},
		{0x91, 0x01, 0x7D, 0xC9, 0x7F, 0xFF, 0x0C, 0x10},
		{0x00},
		{0xFF, 0xFF, 0xFF, 0xFF},
	}
	for _, b := range bufs {
		framed := append(append([]byte(nil), b...), CRC8(0, b))
		if !CheckCRC8(framed) {
			t.Errorf("CheckCRC8(%#v) = false, want true", framed)
		}
		// Appending a valid CRC makes the CRC of the whole frame zero.
		if res := CRC8(0, framed); res != 0 {
			t.Errorf("CRC8(0, %#v) = %#02x, want 0", framed, res)
		}
		// Any single bit flip must be caught.
		for i := range framed {
			for bit := 0; bit < 8; bit++ {
				bad := append([]byte(nil), framed...)
				bad[i] ^= 1 << bit
				if CheckCRC8(bad) {
					t.Errorf("CheckCRC8(%#v) = true after flipping bit %d of byte %d", bad, bit, i)
				}
			}
		}
	}
}

func TestCheckCRC8_short(t *testing.T) {
	if CheckCRC8(nil) || CheckCRC8([]byte{0x90}) {
		t.Error("CheckCRC8 must reject frames shorter than two bytes")
	}
}
