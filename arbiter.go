// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// QueryState is the state of the process-wide selection query protocol.
//
// State Machine:
//
//	QueryIdle            → QueryWorkerAnswering  [TryBeginWorkerQuery, CAS, generation+1]
//	QueryWorkerAnswering → QueryIdle             [TryBeginWorkerQuery end, CAS on its generation]
//	QueryIdle            → QueryMainExclusive    [BeginExclusive, swap]
//	QueryWorkerAnswering → QueryMainExclusive    [BeginExclusive, swap; query finalised]
//	QueryMainExclusive   → QueryIdle             [EndExclusive, swap]
//
// Any other previous value seen by BeginExclusive or EndExclusive is a
// protocol violation.
//
// The arbiter stores the state together with a query generation in one
// word. Exclusive sections swap the state and keep the generation, so a
// preempted query can never release the state of a later one.
type QueryState int32

const (
	// QueryIdle means no cross-direction query is outstanding.
	QueryIdle QueryState = 0

	// QueryWorkerAnswering means a selection answer is being produced.
	QueryWorkerAnswering QueryState = 1

	// QueryMainExclusive means the main thread is inside an operation that a
	// selection query must not interleave with.
	QueryMainExclusive QueryState = 2
)

// String returns the string representation of a QueryState.
func (s QueryState) String() string {
	switch s {
	case QueryIdle:
		return "idle"
	case QueryWorkerAnswering:
		return "worker-answering"
	case QueryMainExclusive:
		return "main-exclusive"
	default:
		return "unknown"
	}
}

// QuerySpinner finalises an in-flight selection query without blocking.
type QuerySpinner interface {
	AnswerQuerySpin()
}

// spinnerHolder keeps the concrete type stored in atomic.Value stable.
type spinnerHolder struct {
	spinner QuerySpinner
}

// stateBits is the width of the QueryState in the arbiter's state word; the
// query generation takes the bits above it.
const stateBits = 8

func packState(s QueryState, gen uint64) uint64 {
	return gen<<stateBits | uint64(s)
}

func unpackState(word uint64) (QueryState, uint64) {
	return QueryState(word & (1<<stateBits - 1)), word >> stateBits
}

// Arbiter owns the QueryState. The state is only ever changed by
// CompareAndSwap, never by a load followed by a store.
type Arbiter struct {
	state   atomic.Uint64 // QueryState | generation<<stateBits
	spinner atomic.Value  // spinnerHolder
	logger  *slog.Logger
	abort   func(error)

	mu    sync.Mutex // Guards owner
	owner QuerySpinner

	declined  atomic.Uint64
	discarded atomic.Uint64
	preempted atomic.Uint64
}

// ArbiterOption configures an Arbiter.
type ArbiterOption func(*Arbiter)

// processArbiter is created at startup and lives for the whole process.
var processArbiter = NewArbiter()

// ProcessArbiter returns the process-wide arbiter.
func ProcessArbiter() *Arbiter {
	return processArbiter
}

// NewArbiter creates an arbiter in the QueryIdle state.
func NewArbiter(opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{
		logger: slog.Default(),
		abort:  func(err error) { panic(err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithSpinner sets the finaliser used when an exclusive section preempts a
// query in flight.
func WithSpinner(spinner QuerySpinner) ArbiterOption {
	return func(a *Arbiter) {
		a.SetSpinner(spinner)
	}
}

// WithArbiterLogger configures the logger for the arbiter.
func WithArbiterLogger(logger *slog.Logger) ArbiterOption {
	return func(a *Arbiter) {
		a.logger = logger
	}
}

// WithAbort replaces the reaction to a protocol violation. The default
// panics with the *ProtocolViolationError.
func WithAbort(abort func(error)) ArbiterOption {
	return func(a *Arbiter) {
		if abort != nil {
			a.abort = abort
		}
	}
}

// SetSpinner binds the finaliser used by BeginExclusive.
func (a *Arbiter) SetSpinner(spinner QuerySpinner) {
	a.spinner.Store(spinnerHolder{spinner: spinner})
}

// claim binds spinner for a running service and reports whether the claim is
// new. An arbiter serves one running service at a time; claiming it for
// another fails with ErrArbiterInUse.
func (a *Arbiter) claim(spinner QuerySpinner) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner == spinner {
		return false, nil
	}
	if a.owner != nil {
		return false, ErrArbiterInUse
	}
	a.owner = spinner
	a.SetSpinner(spinner)
	return true, nil
}

// release gives up a claim made with the same spinner.
func (a *Arbiter) release(spinner QuerySpinner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner == spinner {
		a.owner = nil
	}
}

// swapState replaces the state, keeps the generation and returns the
// previous state.
func (a *Arbiter) swapState(next QueryState) QueryState {
	for {
		word := a.state.Load()
		prev, gen := unpackState(word)
		if a.state.CompareAndSwap(word, packState(next, gen)) {
			return prev
		}
	}
}

// BeginExclusive marks the start of an operation that must not be reentered
// by a selection query. A query already in flight is finalised immediately
// rather than waited for. Exclusive sections do not nest.
func (a *Arbiter) BeginExclusive() {
	prev := a.swapState(QueryMainExclusive)
	switch prev {
	case QueryIdle:
	case QueryWorkerAnswering:
		a.preempted.Add(1)
		if h, ok := a.spinner.Load().(spinnerHolder); ok && h.spinner != nil {
			h.spinner.AnswerQuerySpin()
		}
	default:
		a.violation("BeginExclusive", prev)
	}
}

// EndExclusive marks the end of the exclusive section begun by BeginExclusive.
func (a *Arbiter) EndExclusive() {
	if prev := a.swapState(QueryIdle); prev != QueryMainExclusive {
		a.violation("EndExclusive", prev)
	}
}

// TryBeginWorkerQuery runs answer if no exclusive section or other query is
// active, and returns its result. It never waits: when the state is not idle
// it declines at once, and when an exclusive section preempts it while answer
// runs the result is discarded. In both cases ok is false.
func (a *Arbiter) TryBeginWorkerQuery(answer func() *Selection) (sel *Selection, ok bool) {
	var mine, idle uint64
	for {
		word := a.state.Load()
		state, gen := unpackState(word)
		if state != QueryIdle {
			a.declined.Add(1)
			return nil, false
		}
		mine = packState(QueryWorkerAnswering, gen+1)
		idle = packState(QueryIdle, gen+1)
		if a.state.CompareAndSwap(word, mine) {
			break
		}
	}

	finished := false
	defer func() {
		// answer panicked; release the state if nobody took it over
		if !finished {
			a.state.CompareAndSwap(mine, idle)
		}
	}()

	sel = answer()
	finished = true

	// Fails when an exclusive section took over, even if it has ended and
	// another query began since: that query carries a newer generation.
	if !a.state.CompareAndSwap(mine, idle) {
		a.discarded.Add(1)
		if a.logger != nil {
			a.logger.Debug("Selection answer discarded, exclusive section took over")
		}
		return nil, false
	}
	return sel, true
}

// State returns a snapshot of the current state, for diagnostics only.
func (a *Arbiter) State() QueryState {
	state, _ := unpackState(a.state.Load())
	return state
}

// Generation returns the number of queries begun so far.
func (a *Arbiter) Generation() uint64 {
	_, gen := unpackState(a.state.Load())
	return gen
}

// Declined returns how many queries found the state busy.
func (a *Arbiter) Declined() uint64 { return a.declined.Load() }

// Discarded returns how many computed answers were dropped after preemption.
func (a *Arbiter) Discarded() uint64 { return a.discarded.Load() }

// Preempted returns how many exclusive sections finalised a query in flight.
func (a *Arbiter) Preempted() uint64 { return a.preempted.Load() }

func (a *Arbiter) violation(op string, observed QueryState) {
	err := &ProtocolViolationError{Op: op, Observed: observed}
	if a.logger != nil {
		a.logger.Error("Query protocol violation", "op", op, "observed", observed.String(), "error", err)
	}
	a.abort(err)
}
