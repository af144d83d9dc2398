// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRegister_contract(t *testing.T) {
	s := New()
	if err := s.Register(nil, time.Millisecond); err == nil {
		t.Error("nil task must be rejected")
	}
	if err := s.Register(func() {}, 0); err == nil {
		t.Error("zero period must be rejected")
	}
	if err := s.Register(func() {}, -time.Second); err == nil {
		t.Error("negative period must be rejected")
	}
}

func TestScheduler_periodicInvocation(t *testing.T) {
	s := New()
	var n int32
	if err := s.Register(func() { atomic.AddInt32(&n, 1) }, 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	s.Start()
	time.Sleep(60 * time.Millisecond)
	if err := s.Halt(); err != nil {
		t.Fatal(err)
	}
	got := atomic.LoadInt32(&n)
	// Generous bounds: CI schedulers stall, they do not speed up.
	if got < 2 || got > 13 {
		t.Fatalf("task ran %d times in 60ms at a 5ms period", got)
	}
	after := atomic.LoadInt32(&n)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&n) != after {
		t.Fatal("task ran after Halt")
	}
}

func TestScheduler_tasksNeverOverlap(t *testing.T) {
	s := New()
	var running int32
	var overlapped int32
	busy := func() {
		if atomic.AddInt32(&running, 1) != 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
	}
	for i := 0; i < 3; i++ {
		if err := s.Register(busy, time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	s.Start()
	time.Sleep(40 * time.Millisecond)
	if err := s.Halt(); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&overlapped) != 0 {
		t.Fatal("tasks overlapped")
	}
}

func TestScheduler_registerAfterStart(t *testing.T) {
	s := New()
	s.Start()
	defer s.Halt()
	var n int32
	if err := s.Register(func() { atomic.AddInt32(&n, 1) }, 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&n) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("late registered task never ran")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHalt_unstarted(t *testing.T) {
	if err := New().Halt(); err != nil {
		t.Fatal(err)
	}
}
