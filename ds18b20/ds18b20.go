// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds18b20 implements a polled manager for Dallas Semi / Maxim
// DS18B20 temperature sensors on a bit-level 1-wire bus.
//
// Unlike a blocking driver, the manager advances one bus transaction per
// Poll call and is meant to be driven by a cooperative scheduler. The last
// validated conversion result is cached and can be queried from other
// contexts without touching the bus.
package ds18b20

import (
	"errors"
	"strconv"
	"time"
)

// ROM commands, datasheet p.11.
const (
	cmdSearchROM   = 0xF0
	cmdReadROM     = 0x33
	cmdMatchROM    = 0x55
	cmdSkipROM     = 0xCC
	cmdAlarmSearch = 0xEC
)

// Function commands, datasheet p.12.
const (
	cmdConvertT        = 0x44
	cmdWriteScratchpad = 0x4E
	cmdReadScratchpad  = 0xBE
	cmdCopyScratchpad  = 0x48
	cmdRecallEEPROM    = 0xB8
	cmdReadPowerSupply = 0xB4
)

// Family code of a genuine DS18B20.
const familyDS18B20 = 0x28

// ROM code layout: family, 6 byte serial, CRC8.
const (
	romFamily = 0
	romSerial = 1
	romCRC    = 7
	romLen    = 8
)

// Scratchpad layout: temperature, trip points, configuration, reserved
// bytes, CRC8. A single byte buffer with named offsets, no overlay tricks.
const (
	spadTempLSB   = 0
	spadTempMSB   = 1
	spadTripHigh  = 2
	spadTripLow   = 3
	spadConfig    = 4
	spadReserved1 = 5
	spadReserved2 = 6
	spadReserved3 = 7
	spadCRC       = 8
	spadLen       = 9
)

// Fixed values of the reserved scratchpad bytes on genuine silicon.
// Clones routinely get these wrong, which makes them a cheap identity probe.
const (
	reserved1Value = 0xFF
	reserved3Value = 0x10
)

// Resolution selects the conversion precision and, with it, the conversion
// duration and the configuration register value.
type Resolution int

const (
	Bits9  Resolution = 9
	Bits10 Resolution = 10
	Bits11 Resolution = 11
	Bits12 Resolution = 12
)

func (r Resolution) String() string {
	if !r.valid() {
		return "invalid(" + strconv.Itoa(int(r)) + ")"
	}
	return strconv.Itoa(int(r)) + "bit"
}

func (r Resolution) valid() bool {
	return r >= Bits9 && r <= Bits12
}

// conversionTime returns the worst case conversion duration, datasheet p.3.
func (r Resolution) conversionTime() time.Duration {
	switch r {
	case Bits9:
		return 94 * time.Millisecond
	case Bits10:
		return 188 * time.Millisecond
	case Bits11:
		return 375 * time.Millisecond
	default:
		return 750 * time.Millisecond
	}
}

// configByte returns the configuration register value, datasheet p.9.
func (r Resolution) configByte() byte {
	switch r {
	case Bits9:
		return 0x1F
	case Bits10:
		return 0x3F
	case Bits11:
		return 0x5F
	default:
		return 0x7F
	}
}

// Outcome classifies the result of one protocol cycle. It is diagnostic
// only: callers observe readiness, not outcomes.
type Outcome int

const (
	// Success means a conversion result was read and validated.
	Success Outcome = iota
	// CrcError means a ROM or scratchpad block failed its CRC8.
	CrcError
	// NoPresenceError means no device answered the bus reset, or the
	// transceiver itself faulted mid transaction.
	NoPresenceError
	// FakeSensorError means the device identity does not match genuine
	// DS18B20 silicon.
	FakeSensorError

	numOutcomes
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case CrcError:
		return "CRC error"
	case NoPresenceError:
		return "no presence"
	case FakeSensorError:
		return "fake sensor"
	default:
		return "outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Stats is a snapshot of the per-outcome cycle counters.
type Stats struct {
	Success    uint32
	CrcError   uint32
	NoPresence uint32
	FakeSensor uint32
}

// Opts holds the manager configuration. The manager treats it as read only.
type Opts struct {
	// Resolution selects conversion precision. Anything outside 9..12 bits
	// is a contract violation rejected by New.
	Resolution Resolution
	// CheckCRC enables CRC8 validation of ROM and scratchpad transfers.
	CheckCRC bool
	// AllowFake tolerates devices that fail the genuine-silicon identity
	// checks. When false such a device parks the manager permanently.
	AllowFake bool
	// TripHigh and TripLow are the alarm trip points written to the
	// scratchpad, in whole degrees C.
	TripHigh int8
	TripLow  int8
	// PollPeriod is the period the manager registers itself with the
	// scheduler at. Defaults to 100ms.
	PollPeriod time.Duration
	// Logf receives diagnostic output. Nil silences it. It must not have
	// behavioral effects.
	Logf func(format string, v ...interface{})

	_ struct{}
}

// DefaultOpts is the recommended default configuration: full precision,
// validated transfers, genuine sensors only, alarms parked out of range.
var DefaultOpts = Opts{
	Resolution: Bits12,
	CheckCRC:   true,
	TripHigh:   125,
	TripLow:    -55,
}

const defaultPollPeriod = 100 * time.Millisecond

// ErrNoMeasurement is returned by LastTemp until the first validated
// conversion, and forever after the manager parks on a fatal identity error.
var ErrNoMeasurement = errors.New("ds18b20: no measurement available")

// FormatRaw renders a raw 1/16 degree reading as a decimal string, keeping
// the four fractional bits exact (each step is 625 ten-thousandths).
func FormatRaw(raw int16) string {
	mag := int32(raw)
	sign := ""
	if mag < 0 {
		sign = "-"
		mag = -mag
	}
	return sign + strconv.Itoa(int(mag>>4)) + "." + pad4(int(mag&0xF)*625) + "C"
}

func pad4(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
