// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"

	"github.com/a-d-v-e-n-t-u-r-o-u-s/1wire-mgr/common"
	"github.com/a-d-v-e-n-t-u-r-o-u-s/1wire-mgr/onewire"
)

// Scheduler periodically invokes a task from a single cooperative context.
// sched.Scheduler implements it; tests drive Poll by hand instead.
type Scheduler interface {
	Register(task func(), period time.Duration) error
}

// state enumerates the protocol engine states.
type state int

const (
	stateReadROM state = iota
	stateReadScratchpad
	stateWriteScratchpad
	stateStartConversion
	stateWaitConversion
	stateReadResult
	stateLogResult
	stateHalted
)

func (s state) String() string {
	switch s {
	case stateReadROM:
		return "read-rom"
	case stateReadScratchpad:
		return "read-scratchpad"
	case stateWriteScratchpad:
		return "write-scratchpad"
	case stateStartConversion:
		return "start-conversion"
	case stateWaitConversion:
		return "wait-conversion"
	case stateReadResult:
		return "read-result"
	case stateLogResult:
		return "log-result"
	case stateHalted:
		return "halted"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// phase distinguishes the first identification pass from the steady
// conversion loop. It decides where a failed cycle resumes.
type phase int

const (
	phaseIdentify phase = iota
	phaseSteady
)

// New returns a manager for a single DS18B20 on bus.
//
// An out of range resolution is a programming error and is rejected here;
// it is never silently defaulted. When sched is non nil, Poll is registered
// with it at opts.PollPeriod and the caller must not invoke Poll itself.
// With a nil sched the caller drives Poll directly.
func New(bus onewire.Bus, sched Scheduler, opts *Opts) (*Dev, error) {
	if bus == nil {
		return nil, errors.New("ds18b20: nil bus")
	}
	if opts == nil {
		return nil, errors.New("ds18b20: nil opts")
	}
	if !opts.Resolution.valid() {
		return nil, fmt.Errorf("ds18b20: invalid resolution %d", int(opts.Resolution))
	}
	d := &Dev{
		bus:      bus,
		opts:     *opts,
		convTime: opts.Resolution.conversionTime(),
		state:    stateReadROM,
	}
	if sched != nil {
		period := opts.PollPeriod
		if period <= 0 {
			period = defaultPollPeriod
		}
		if err := sched.Register(d.Poll, period); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Dev is the manager context for one sensor. All protocol state is confined
// to the Poll call path; only the cached reading and the counters are shared
// with other contexts, behind the mutex.
type Dev struct {
	bus      onewire.Bus
	opts     Opts
	convTime time.Duration

	state     state
	phase     phase
	outcome   Outcome
	rom       [romLen]byte
	spad      [spadLen]byte
	convStart time.Time

	mu     sync.Mutex
	counts [numOutcomes]uint32
	temp   int16
	ready  bool
}

func (d *Dev) String() string {
	return fmt.Sprintf("DS18B20{%v}", d.bus)
}

// Halt implements conn.Resource. It parks the protocol engine and withdraws
// the cached reading. Halt must not race a concurrent Poll; stop the
// scheduler first.
func (d *Dev) Halt() error {
	d.state = stateHalted
	d.setNotReady()
	return nil
}

// Poll advances the protocol engine by exactly one step. It never blocks
// beyond the bounded byte transfers of the underlying bus and never sleeps
// through a conversion: waiting states re-check the clock and yield.
//
// Poll must only be called from a single cooperative context.
func (d *Dev) Poll() {
	switch d.state {
	case stateReadROM:
		d.state = d.handleReadROM()
	case stateReadScratchpad:
		d.state = d.handleReadScratchpad()
	case stateWriteScratchpad:
		d.state = d.handleWriteScratchpad()
	case stateStartConversion:
		d.state = d.handleStartConversion()
	case stateWaitConversion:
		d.state = d.handleWaitConversion()
	case stateReadResult:
		d.state = d.handleReadResult()
	case stateLogResult:
		d.state = d.handleLogResult()
	case stateHalted:
		// Absorbing. The manager never retries out of a fatal identity
		// failure.
	}
}

// LastTemp returns the last validated temperature, or ErrNoMeasurement when
// none is available (yet, or ever again after a fatal identity failure).
// Safe to call from any context; never touches the bus.
func (d *Dev) LastTemp() (physic.Temperature, error) {
	raw, ok := d.TempRaw()
	if !ok {
		return 0, ErrNoMeasurement
	}
	return physic.Temperature(raw)*physic.Kelvin/16 + physic.ZeroCelsius, nil
}

// TempRaw returns the last validated raw register value in 1/16 degree C
// units and whether a validated reading exists.
func (d *Dev) TempRaw() (int16, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.temp, d.ready
}

// Stats returns a snapshot of the per-outcome cycle counters.
func (d *Dev) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Success:    d.counts[Success],
		CrcError:   d.counts[CrcError],
		NoPresence: d.counts[NoPresenceError],
		FakeSensor: d.counts[FakeSensorError],
	}
}

// reset gates every bus-touching state: no presence pulse (or a transceiver
// fault) routes straight to the log state without touching any buffer.
func (d *Dev) reset() bool {
	present, err := d.bus.Reset()
	if err != nil {
		d.logf("ds18b20: bus fault on reset: %v", err)
		d.outcome = NoPresenceError
		return false
	}
	if !present {
		d.outcome = NoPresenceError
		return false
	}
	return true
}

func (d *Dev) send(bytes ...byte) bool {
	for _, b := range bytes {
		if err := d.bus.WriteByte(b); err != nil {
			d.logf("ds18b20: bus fault on write: %v", err)
			d.outcome = NoPresenceError
			return false
		}
	}
	return true
}

func (d *Dev) recv(buf []byte) bool {
	for i := range buf {
		b, err := d.bus.ReadByte()
		if err != nil {
			d.logf("ds18b20: bus fault on read: %v", err)
			d.outcome = NoPresenceError
			return false
		}
		buf[i] = b
	}
	return true
}

func (d *Dev) handleReadROM() state {
	if !d.reset() {
		return stateLogResult
	}
	if !d.send(cmdReadROM) {
		return stateLogResult
	}
	// Stage the frame; the committed copy survives a failed read.
	var rom [romLen]byte
	if !d.recv(rom[:]) {
		return stateLogResult
	}
	if d.opts.CheckCRC && !common.CheckCRC8(rom[:]) {
		d.logf("ds18b20: ROM CRC mismatch: exp %#02x calc %#02x", rom[romCRC], common.CRC8(0, rom[:romCRC]))
		d.outcome = CrcError
		return stateLogResult
	}
	d.rom = rom
	if !genuineROM(&rom) {
		if !d.opts.AllowFake {
			d.outcome = FakeSensorError
			return stateLogResult
		}
		d.logf("ds18b20: tolerating foreign ROM % x", rom[:])
	}
	return stateReadScratchpad
}

func (d *Dev) handleReadScratchpad() state {
	if !d.reset() {
		return stateLogResult
	}
	if !d.send(cmdSkipROM, cmdReadScratchpad) {
		return stateLogResult
	}
	var spad [spadLen]byte
	if !d.recv(spad[:]) {
		return stateLogResult
	}
	if d.opts.CheckCRC && !common.CheckCRC8(spad[:]) {
		d.logf("ds18b20: scratchpad CRC mismatch: exp %#02x calc %#02x", spad[spadCRC], common.CRC8(0, spad[:spadCRC]))
		d.outcome = CrcError
		return stateLogResult
	}
	if spad[spadReserved1] != reserved1Value || spad[spadReserved3] != reserved3Value {
		if !d.opts.AllowFake {
			d.outcome = FakeSensorError
			return stateLogResult
		}
		d.logf("ds18b20: tolerating foreign scratchpad % x", spad[:])
	}
	d.spad = spad
	return stateWriteScratchpad
}

func (d *Dev) handleWriteScratchpad() state {
	if !d.reset() {
		return stateLogResult
	}
	if !d.send(cmdSkipROM, cmdWriteScratchpad, byte(d.opts.TripHigh), byte(d.opts.TripLow), d.opts.Resolution.configByte()) {
		return stateLogResult
	}
	// Identification is done; failed cycles now resume at the conversion
	// loop instead of re-identifying.
	d.phase = phaseSteady
	return stateStartConversion
}

func (d *Dev) handleStartConversion() state {
	if !d.reset() {
		return stateLogResult
	}
	if !d.send(cmdSkipROM, cmdConvertT) {
		return stateLogResult
	}
	d.convStart = now()
	return stateWaitConversion
}

func (d *Dev) handleWaitConversion() state {
	// Pure time check, no bus access. The task yields until the
	// resolution-mapped duration has strictly elapsed.
	if now().Sub(d.convStart) > d.convTime {
		return stateReadResult
	}
	return stateWaitConversion
}

func (d *Dev) handleReadResult() state {
	if !d.reset() {
		return stateLogResult
	}
	if !d.send(cmdSkipROM, cmdReadScratchpad) {
		return stateLogResult
	}
	var spad [spadLen]byte
	if !d.recv(spad[:]) {
		return stateLogResult
	}
	if d.opts.CheckCRC && !common.CheckCRC8(spad[:]) {
		d.logf("ds18b20: scratchpad CRC mismatch: exp %#02x calc %#02x", spad[spadCRC], common.CRC8(0, spad[:spadCRC]))
		d.outcome = CrcError
		return stateLogResult
	}
	d.spad = spad
	raw := int16(spad[spadTempMSB])<<8 | int16(spad[spadTempLSB])
	d.mu.Lock()
	d.temp = raw
	d.ready = true
	d.mu.Unlock()
	d.outcome = Success
	return stateLogResult
}

func (d *Dev) handleLogResult() state {
	d.mu.Lock()
	d.counts[d.outcome]++
	counts := d.counts
	d.mu.Unlock()

	switch d.outcome {
	case Success:
		raw, _ := d.TempRaw()
		d.logf("ds18b20: %s (raw %#04x)", FormatRaw(raw), uint16(raw))
	default:
		d.logf("ds18b20: %v", d.outcome)
	}
	d.logf("ds18b20: OK[%d] CRC[%d] PRE[%d] FAKE[%d]",
		counts[Success], counts[CrcError], counts[NoPresenceError], counts[FakeSensorError])

	if d.phase == phaseIdentify {
		if d.outcome == FakeSensorError {
			// Untolerated identity failure is terminal.
			d.setNotReady()
			return stateHalted
		}
		return stateReadROM
	}
	return stateStartConversion
}

func (d *Dev) setNotReady() {
	d.mu.Lock()
	d.ready = false
	d.mu.Unlock()
}

func (d *Dev) logf(format string, v ...interface{}) {
	if d.opts.Logf != nil {
		d.opts.Logf(format, v...)
	}
}

// genuineROM checks the identity marks of real DS18B20 silicon: the family
// code and the two most significant serial bytes, which the factory leaves
// zero. The CRC is validated separately.
func genuineROM(rom *[romLen]byte) bool {
	return rom[romFamily] == familyDS18B20 && rom[romCRC-1] == 0 && rom[romCRC-2] == 0
}

var now = time.Now

var _ conn.Resource = &Dev{}
