// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sched implements a minimal cooperative task scheduler.
//
// All registered tasks run sequentially on one goroutine, each at its own
// fixed period. A task is never invoked concurrently with itself or with
// any other task, which lets single threaded pollers such as the ds18b20
// manager mutate their state without locking.
package sched

import (
	"errors"
	"sync"
	"time"
)

type task struct {
	run    func()
	period time.Duration
	next   time.Time
}

// Scheduler runs registered tasks at fixed periods from one goroutine.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []*task
	started bool
	stop    chan struct{}
	done    chan struct{}
	wake    chan struct{}
}

// New returns an idle scheduler. Register tasks, then Start it.
func New() *Scheduler {
	return &Scheduler{
		stop: make(chan struct{}),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}
}

// Register adds a periodic task. Tasks may be registered before or after
// Start; the first invocation happens one period after registration.
func (s *Scheduler) Register(run func(), period time.Duration) error {
	if run == nil {
		return errors.New("sched: nil task")
	}
	if period <= 0 {
		return errors.New("sched: period must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &task{run: run, period: period, next: time.Now().Add(period)})
	// Wake a parked loop so the new task's slot is taken into account.
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start launches the scheduling loop. It must be called at most once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

// Halt implements conn.Resource: it stops the loop and waits for the task
// in flight, if any, to return. Halting an unstarted scheduler is a no-op.
func (s *Scheduler) Halt() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
	return nil
}

func (s *Scheduler) loop() {
	defer close(s.done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		resetTimer(timer, s.untilNext(time.Now()))
		select {
		case <-s.stop:
			return
		case <-s.wake:
		case t := <-timer.C:
			s.runDue(t)
		}
	}
}

func (s *Scheduler) untilNext(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	// With no tasks, just park; Register wakes the loop.
	d := time.Hour
	for _, t := range s.tasks {
		if until := t.next.Sub(now); until < d {
			d = until
		}
	}
	return d
}

func (s *Scheduler) runDue(now time.Time) {
	s.mu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if !now.Before(t.next) {
			// Skip missed slots instead of bursting to catch up.
			t.next = now.Add(t.period)
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	// Run outside the lock so tasks may call Register.
	for _, t := range due {
		t.run()
	}
}

// resetTimer safely stops, drains, and resets a timer.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}
