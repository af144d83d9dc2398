// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package onewire

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

// DS2482 bridge commands and read pointer codes.
const (
	cmdDeviceReset = 0xF0 // reset the bridge itself
	cmdSetReadPtr  = 0xE1 // set the read pointer
	cmdWriteConfig = 0xD2 // write the device configuration
	cmd1WReset     = 0xB4 // reset the 1-wire bus
	cmd1WWrite     = 0xA5 // byte write on the 1-wire bus
	cmd1WRead      = 0x96 // byte read on the 1-wire bus

	regStatus = 0xF0 // read ptr for the status register
	regRDR    = 0xE1 // read ptr for the read-data register

	// Status register bits.
	status1WBusy  = 0x01
	statusPPD     = 0x02
	statusShorted = 0x04
)

// DS2482Opts contains options to pass to the DS2482 constructor.
type DS2482Opts struct {
	// PassivePullup disables the bridge's active pull-up.
	PassivePullup bool

	_ struct{}
}

// NewDS2482 returns a 1-wire master backed by a DS2482-100 I2C bridge.
//
// This is an alternative to BitBang when the data line hangs off an I2C
// port expander instead of a directly wired GPIO. Valid I2C addresses are
// 0x18, 0x19, 0x20 and 0x21.
func NewDS2482(b i2c.Bus, addr uint16, opts *DS2482Opts) (*DS2482, error) {
	switch addr {
	case 0x18, 0x19, 0x20, 0x21:
	default:
		return nil, busError("onewire: address not supported by the ds2482")
	}
	if opts == nil {
		opts = &DS2482Opts{}
	}
	d := &DS2482{i2c: &i2c.Dev{Bus: b, Addr: addr}}
	if err := d.init(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// DS2482 is a handle to a DS2482-100 I2C to 1-wire bridge. It implements
// Bus.
//
// DS2482 uses a persistent error model: a fault on the I2C side parks the
// handle and every subsequent call returns the same error. Faults on the
// 1-wire side never park the handle.
type DS2482 struct {
	i2c conn.Conn
	err error
}

func (d *DS2482) String() string {
	return fmt.Sprintf("DS2482-100{%s}", d.i2c)
}

// Reset implements Bus.
func (d *DS2482) Reset() (bool, error) {
	d.tx([]byte{cmd1WReset}, nil)
	status := d.waitIdle(tResetLow * 2)
	if d.err != nil {
		return false, d.err
	}
	if status&statusShorted != 0 {
		return false, busError("onewire: bus has a short")
	}
	return status&statusPPD != 0, nil
}

// WriteByte implements Bus.
func (d *DS2482) WriteByte(b byte) error {
	d.tx([]byte{cmd1WWrite, b}, nil)
	d.waitIdle(8 * tSlot)
	return d.err
}

// ReadByte implements Bus.
func (d *DS2482) ReadByte() (byte, error) {
	d.tx([]byte{cmd1WRead}, nil)
	d.waitIdle(8 * tSlot)
	var data [1]byte
	d.tx([]byte{cmdSetReadPtr, regRDR}, data[:])
	return data[0], d.err
}

// init resets the bridge, verifies it answers and writes the configuration.
func (d *DS2482) init(opts *DS2482Opts) error {
	if err := d.i2c.Tx([]byte{cmdDeviceReset}, nil); err != nil {
		return fmt.Errorf("onewire: error while resetting the ds2482: %s", err)
	}
	var stat [1]byte
	if err := d.i2c.Tx([]byte{cmdSetReadPtr, regStatus}, stat[:]); err != nil {
		return fmt.Errorf("onewire: error while reading the ds2482 status: %s", err)
	}
	if stat[0] != 0x18 {
		return fmt.Errorf("onewire: invalid ds2482 status %#x, expected 0x18", stat[0])
	}
	// Standard speed, no strong pullup, no powerdown, active pull-up. The
	// top nibble must hold the ones complement of the bottom one.
	conf := byte(0xE1)
	if opts.PassivePullup {
		conf ^= 0x11
	}
	var dcr [1]byte
	if err := d.i2c.Tx([]byte{cmdWriteConfig, conf}, dcr[:]); err != nil {
		return fmt.Errorf("onewire: error while writing the ds2482 config: %s", err)
	}
	if dcr[0] != conf&0x0F {
		return fmt.Errorf("onewire: failed to write the ds2482 config, wrote %#x read %#x", conf, dcr[0])
	}
	return nil
}

// tx forwards to the I2C device under the persistent error model.
func (d *DS2482) tx(w, r []byte) {
	if d.err != nil {
		return
	}
	d.err = d.i2c.Tx(w, r)
}

// waitIdle sleeps for the expected duration of the 1-wire operation, then
// polls the status register until the bridge reports the bus idle. The last
// status byte is returned. An overall 3ms poll budget applies; blowing it is
// a bridge fault and parks the handle.
func (d *DS2482) waitIdle(delay time.Duration) byte {
	if d.err != nil {
		return 0
	}
	timeout := time.Now().Add(delay + 3*time.Millisecond)
	sleep(delay)
	for {
		var status [1]byte
		d.tx(nil, status[:])
		if status[0]&status1WBusy == 0 {
			return status[0]
		}
		if time.Now().After(timeout) {
			d.err = busError("onewire: timeout waiting for the ds2482 to go idle")
			return 0
		}
		sleep(delay / 10)
	}
}

var _ Bus = &DS2482{}
