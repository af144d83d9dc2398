// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package onewiretest is meant to be used to test drivers over a fake
// 1-wire bus.
package onewiretest

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/a-d-v-e-n-t-u-r-o-u-s/1wire-mgr/onewire"
)

// IO registers one reset-delimited bus transaction.
type IO struct {
	// Present is the presence answer to the transaction's leading reset.
	Present bool
	// W are the bytes the driver is expected to send after the reset.
	W []byte
	// R are the bytes handed back to the driver's reads.
	R []byte
}

// Playback replays a scripted sequence of bus transactions and fails loudly
// when the driver deviates from the script.
//
// Every transaction starts with Reset. Zero values are valid: a Playback
// with no Ops fails the first access.
type Playback struct {
	sync.Mutex
	// Ops is the scripted sequence of transactions.
	Ops []IO
	// DontPanic makes accesses that deviate from the script return errors
	// instead of panicking.
	DontPanic bool

	// Count is the number of resets consumed so far.
	Count int
	w, r  int
}

// Close verifies that the whole script was consumed.
func (p *Playback) Close() error {
	p.Lock()
	defer p.Unlock()
	if p.Count < len(p.Ops) {
		return errorf(p.DontPanic, "onewiretest: expected %d more transactions", len(p.Ops)-p.Count)
	}
	if err := p.opDone(); err != nil {
		return err
	}
	return nil
}

// Reset implements onewire.Bus.
func (p *Playback) Reset() (bool, error) {
	p.Lock()
	defer p.Unlock()
	if err := p.opDone(); err != nil {
		return false, err
	}
	if p.Count >= len(p.Ops) {
		return false, errorf(p.DontPanic, "onewiretest: unexpected reset %d", p.Count)
	}
	p.Count++
	p.w = 0
	p.r = 0
	return p.Ops[p.Count-1].Present, nil
}

// WriteByte implements onewire.Bus.
func (p *Playback) WriteByte(b byte) error {
	p.Lock()
	defer p.Unlock()
	if p.Count == 0 || p.Count > len(p.Ops) {
		return errorf(p.DontPanic, "onewiretest: write %#02x outside of a transaction", b)
	}
	op := p.Ops[p.Count-1]
	if p.w >= len(op.W) {
		return errorf(p.DontPanic, "onewiretest: unexpected write %#02x in transaction %d", b, p.Count-1)
	}
	if op.W[p.w] != b {
		return errorf(p.DontPanic, "onewiretest: transaction %d write %d: got %#02x, expected %#02x", p.Count-1, p.w, b, op.W[p.w])
	}
	p.w++
	return nil
}

// ReadByte implements onewire.Bus.
func (p *Playback) ReadByte() (byte, error) {
	p.Lock()
	defer p.Unlock()
	if p.Count == 0 || p.Count > len(p.Ops) {
		return 0, errorf(p.DontPanic, "onewiretest: read outside of a transaction")
	}
	op := p.Ops[p.Count-1]
	if p.r >= len(op.R) {
		return 0, errorf(p.DontPanic, "onewiretest: unexpected read %d in transaction %d", p.r, p.Count-1)
	}
	b := op.R[p.r]
	p.r++
	return b, nil
}

// opDone verifies the current transaction was fully consumed.
func (p *Playback) opDone() error {
	if p.Count == 0 || p.Count > len(p.Ops) {
		return nil
	}
	op := p.Ops[p.Count-1]
	if p.w != len(op.W) {
		return errorf(p.DontPanic, "onewiretest: transaction %d: %d writes left", p.Count-1, len(op.W)-p.w)
	}
	if p.r != len(op.R) {
		return errorf(p.DontPanic, "onewiretest: transaction %d: %d reads left", p.Count-1, len(op.R)-p.r)
	}
	return nil
}

// Record records the transactions performed against a real bus, to be
// replayed later with Playback.
type Record struct {
	sync.Mutex
	// Bus is the real bus to forward to.
	Bus onewire.Bus
	// Ops is the recorded script.
	Ops []IO
}

// Reset implements onewire.Bus.
func (r *Record) Reset() (bool, error) {
	r.Lock()
	defer r.Unlock()
	present, err := r.Bus.Reset()
	if err != nil {
		return present, err
	}
	r.Ops = append(r.Ops, IO{Present: present})
	return present, nil
}

// WriteByte implements onewire.Bus.
func (r *Record) WriteByte(b byte) error {
	r.Lock()
	defer r.Unlock()
	if err := r.Bus.WriteByte(b); err != nil {
		return err
	}
	if len(r.Ops) == 0 {
		return errors.New("onewiretest: write before the first reset")
	}
	io := &r.Ops[len(r.Ops)-1]
	io.W = append(io.W, b)
	return nil
}

// ReadByte implements onewire.Bus.
func (r *Record) ReadByte() (byte, error) {
	r.Lock()
	defer r.Unlock()
	b, err := r.Bus.ReadByte()
	if err != nil {
		return b, err
	}
	if len(r.Ops) == 0 {
		return 0, errors.New("onewiretest: read before the first reset")
	}
	io := &r.Ops[len(r.Ops)-1]
	io.R = append(io.R, b)
	return b, nil
}

func errorf(dontPanic bool, format string, a ...interface{}) error {
	err := fmt.Errorf(format, a...)
	if !dontPanic {
		panic(err)
	}
	return err
}

// Equal reports whether two scripts are identical.
func Equal(a, b []IO) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Present != b[i].Present || !bytes.Equal(a[i].W, b[i].W) || !bytes.Equal(a[i].R, b[i].R) {
			return false
		}
	}
	return true
}

var _ onewire.Bus = &Playback{}
var _ onewire.Bus = &Record{}
