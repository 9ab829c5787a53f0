// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// SyncHooks is the native call layer as seen by the dispatcher. It is told
// when the worker suspends in a synchronous call and keeps being pumped while
// the worker waits, so queries aimed at the worker are not starved.
type SyncHooks interface {
	BeginSynchronous()
	EndSynchronous()
	Wake() <-chan struct{}
	Service() bool
}

// Dispatcher runs jobs on the main thread on behalf of the worker thread and
// blocks the worker until they are done.
type Dispatcher struct {
	main   *MainThread
	hooks  SyncHooks
	logger *slog.Logger

	interrupts chan struct{}

	submitted   atomic.Uint64
	interrupted atomic.Uint64
}

// NewDispatcher creates a dispatcher posting to main. hooks may be nil.
func NewDispatcher(main *MainThread, hooks SyncHooks, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		main:       main,
		hooks:      hooks,
		logger:     logger,
		interrupts: make(chan struct{}, 1),
	}
}

// SubmitAndWait runs fn on the main thread and returns once it has finished.
// Everything fn wrote is visible to the caller after the return. It must not
// be called from the main thread. The wait cannot be cancelled: the job has
// already been handed over, so an interrupt only makes the caller wait again.
func (d *Dispatcher) SubmitAndWait(fn func()) error {
	if d.main.IsCurrent() {
		return ErrOnMainThread
	}

	j := newJob(fn)

	if d.hooks != nil {
		d.hooks.BeginSynchronous()
		defer d.hooks.EndSynchronous()
	}

	if err := d.main.enqueue(j); err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}
	d.submitted.Add(1)

	var wake <-chan struct{}
	if d.hooks != nil {
		wake = d.hooks.Wake()
	}

	for {
		select {
		case <-j.done:
			return j.err
		case <-wake:
			d.hooks.Service()
		case <-d.interrupts:
			d.interrupted.Add(1)
			if d.logger != nil {
				d.logger.Debug("Interrupted while waiting for the main thread, waiting again")
			}
		}
	}
}

// Interrupt wakes a caller blocked in SubmitAndWait. The caller resumes
// waiting; an interrupt never abandons a submitted job.
func (d *Dispatcher) Interrupt() {
	select {
	case d.interrupts <- struct{}{}:
	default:
	}
}

// Submitted returns the number of jobs handed to the main thread.
func (d *Dispatcher) Submitted() uint64 { return d.submitted.Load() }

// Interrupted returns the number of interrupts absorbed while waiting.
func (d *Dispatcher) Interrupted() uint64 { return d.interrupted.Load() }

// Call runs fn on the main thread through d and returns its value.
func Call[T any](d *Dispatcher, fn func() T) (T, error) {
	var result T
	err := d.SubmitAndWait(func() {
		result = fn()
	})
	return result, err
}
