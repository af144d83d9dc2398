// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewire

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Standard speed slot timings, DS18B20 datasheet p.15.
const (
	tResetLow    = 480 * time.Microsecond
	tPresenceWai = 70 * time.Microsecond
	tResetTail   = 410 * time.Microsecond
	tWrite0Low   = 60 * time.Microsecond
	tWrite1Low   = 6 * time.Microsecond
	tSlot        = 70 * time.Microsecond
	tReadSample  = 9 * time.Microsecond
	tRecovery    = 5 * time.Microsecond
)

// NewBitBang returns a software 1-wire master on a single GPIO.
//
// The pin must be wired open drain with an external pull-up: the master only
// ever drives the line low and releases it by switching the pin back to
// input. Timing relies on short sleeps, so on a non realtime host long slots
// may stretch; 1-wire tolerates stretched lows far better than shortened
// ones, which keeps this usable in practice.
func NewBitBang(p gpio.PinIO) (*BitBang, error) {
	if p == nil {
		return nil, busError("onewire: nil pin")
	}
	// Park the line released so attached slaves see an idle bus.
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, err
	}
	return &BitBang{p: p}, nil
}

// BitBang is a bit-banging 1-wire master over one GPIO pin.
//
// It implements Bus. Not safe for concurrent use; the manager owns the bus
// from a single poll context.
type BitBang struct {
	p gpio.PinIO
}

func (b *BitBang) String() string {
	return "onewire(" + b.p.Name() + ")"
}

// Reset drives the reset pulse and samples the presence answer.
func (b *BitBang) Reset() (bool, error) {
	if err := b.p.Out(gpio.Low); err != nil {
		return false, err
	}
	sleep(tResetLow)
	if err := b.release(); err != nil {
		return false, err
	}
	sleep(tPresenceWai)
	// A slave holding the line low here is the presence pulse.
	present := b.p.Read() == gpio.Low
	sleep(tResetTail)
	return present, nil
}

// WriteByte sends one byte, LSB first.
func (b *BitBang) WriteByte(v byte) error {
	for i := 0; i < 8; i++ {
		if err := b.writeBit(v&1 != 0); err != nil {
			return err
		}
		v >>= 1
	}
	return nil
}

// ReadByte receives one byte, LSB first.
func (b *BitBang) ReadByte() (byte, error) {
	var v byte
	for i := 0; i < 8; i++ {
		bit, err := b.readBit()
		if err != nil {
			return 0, err
		}
		if bit {
			v |= 1 << uint(i)
		}
	}
	return v, nil
}

func (b *BitBang) writeBit(bit bool) error {
	low := tWrite0Low
	if bit {
		low = tWrite1Low
	}
	if err := b.p.Out(gpio.Low); err != nil {
		return err
	}
	sleep(low)
	if err := b.release(); err != nil {
		return err
	}
	sleep(tSlot - low + tRecovery)
	return nil
}

func (b *BitBang) readBit() (bool, error) {
	if err := b.p.Out(gpio.Low); err != nil {
		return false, err
	}
	sleep(tWrite1Low)
	if err := b.release(); err != nil {
		return false, err
	}
	sleep(tReadSample)
	bit := b.p.Read() == gpio.High
	sleep(tSlot - tWrite1Low - tReadSample + tRecovery)
	return bit, nil
}

func (b *BitBang) release() error {
	return b.p.In(gpio.PullUp, gpio.NoEdge)
}

var sleep = time.Sleep

var _ Bus = &BitBang{}
