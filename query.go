// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// queryStatus is the lifecycle of a single selection query.
type queryStatus int32

const (
	queryPending  queryStatus = iota // Posted, not yet picked up by the worker
	queryTaken                       // The worker is computing the answer
	queryFinished                    // An answer (possibly none) was delivered
)

// query is one entry of the main-to-worker answer channel. Exactly one party
// moves it to queryFinished and that party alone sends on answer.
type query struct {
	window WindowID
	status atomic.Int32
	answer chan *Selection
}

func newQuery(window WindowID) *query {
	return &query{
		window: window,
		answer: make(chan *Selection, 1),
	}
}

// take claims a pending query for computation.
func (q *query) take() bool {
	return q.status.CompareAndSwap(int32(queryPending), int32(queryTaken))
}

// finish delivers the computed answer unless the query was finalised first.
func (q *query) finish(sel *Selection) bool {
	if !q.status.CompareAndSwap(int32(queryTaken), int32(queryFinished)) {
		return false
	}
	q.answer <- sel
	return true
}

// finalize completes the query with no answer, whatever the worker is doing.
// It never blocks.
func (q *query) finalize() bool {
	for {
		s := q.status.Load()
		if queryStatus(s) == queryFinished {
			return false
		}
		if q.status.CompareAndSwap(s, int32(queryFinished)) {
			q.answer <- nil
			return true
		}
	}
}

// QueryChannel is the native call layer between the two threads. It carries
// selection queries from the input-method side to the worker through a single
// slot, and learns from the dispatcher when the worker suspends in a
// synchronous call so pending queries are never left behind a blocked worker.
type QueryChannel struct {
	provider SelectionProvider
	logger   *slog.Logger

	askMu sync.Mutex            // Serialises askers; never taken by the worker
	slot  atomic.Pointer[query] // Current query, nil when none
	wake  chan struct{}         // Signals the worker that the slot is filled

	synchronous atomic.Int32  // Depth of synchronous calls the worker is in
	spinEpoch   atomic.Uint64 // Bumped by every AnswerQuerySpin, before it looks at slot

	answerer queryAnswerer // Nil when the provider is always available

	answered  atomic.Uint64
	discarded atomic.Uint64
	spun      atomic.Uint64
}

// queryAnswerer is the thread that services the channel.
type queryAnswerer interface {
	Running() bool
	Done() <-chan struct{}
}

// NewQueryChannel creates a query channel answered by provider.
func NewQueryChannel(provider SelectionProvider, logger *slog.Logger) *QueryChannel {
	return &QueryChannel{
		provider: provider,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Ask publishes a selection query for window and waits for the worker's
// answer. The wait ends early, with no answer, when AnswerQuerySpin finalises
// the query. If ctx ends first the query is abandoned and ctx.Err() returned.
// When the worker is not running Ask returns ErrWorkerStopped at once.
func (c *QueryChannel) Ask(ctx context.Context, window WindowID) (*Selection, error) {
	return c.AskSince(ctx, window, c.SpinEpoch())
}

// SpinEpoch returns a token for AskSince. Take it before the query is begun
// with the arbiter.
func (c *QueryChannel) SpinEpoch() uint64 {
	return c.spinEpoch.Load()
}

// AskSince is Ask for a query begun with the arbiter after epoch was taken.
// An AnswerQuerySpin since then may have run before the query was published
// and found the slot empty; the query is then finalised here instead.
func (c *QueryChannel) AskSince(ctx context.Context, window WindowID, epoch uint64) (*Selection, error) {
	if c.answerer != nil && !c.answerer.Running() {
		return nil, ErrWorkerStopped
	}

	c.askMu.Lock()
	defer c.askMu.Unlock()

	q := newQuery(window)
	c.slot.Store(q)
	defer c.slot.CompareAndSwap(q, nil)

	if c.spinEpoch.Load() != epoch {
		if q.finalize() {
			c.spun.Add(1)
		}
		return <-q.answer, nil
	}
	c.notify()

	var stopped <-chan struct{}
	if c.answerer != nil {
		stopped = c.answerer.Done()
	}

	select {
	case sel := <-q.answer:
		return sel, nil
	case <-stopped:
		if q.finalize() {
			return nil, ErrWorkerStopped
		}
		return <-q.answer, nil
	case <-ctx.Done():
		if q.finalize() {
			return nil, ctx.Err()
		}
		// Someone else finished it first and the answer is already buffered
		return <-q.answer, nil
	}
}

// Wake returns the channel signalled whenever a query is waiting.
func (c *QueryChannel) Wake() <-chan struct{} {
	return c.wake
}

// Service answers the pending query, if any. Worker thread only; it never
// waits for the asker.
func (c *QueryChannel) Service() bool {
	q := c.slot.Load()
	if q == nil || !q.take() {
		return false
	}

	var sel *Selection
	if c.provider != nil {
		var err error
		sel, err = c.provider.Selection(q.window)
		if err != nil {
			if c.logger != nil {
				c.logger.Error("Failed to compute selection", "window", q.window, "error", err)
			}
			sel = nil
		}
	}

	if !q.finish(sel) {
		c.discarded.Add(1)
		if c.logger != nil {
			c.logger.Debug("Discarding selection answer finalised by the main thread", "window", q.window)
		}
		return true
	}
	c.answered.Add(1)
	return true
}

// BeginSynchronous is called by the worker right before it suspends waiting
// for the main thread. A query already waiting is answered first.
func (c *QueryChannel) BeginSynchronous() {
	c.Service()
	c.synchronous.Add(1)
}

// EndSynchronous is called by the worker once the main thread released it.
func (c *QueryChannel) EndSynchronous() {
	c.synchronous.Add(-1)
}

// Synchronous reports whether the worker is suspended in a synchronous call.
func (c *QueryChannel) Synchronous() bool {
	return c.synchronous.Load() > 0
}

// AnswerQuerySpin finalises the query in flight so its asker returns at once.
// It never blocks: a query still pending is completed with no answer, and a
// query the worker is computing is abandoned, its late answer discarded.
func (c *QueryChannel) AnswerQuerySpin() {
	c.spinEpoch.Add(1)
	q := c.slot.Load()
	if q == nil || !q.finalize() {
		return
	}
	c.spun.Add(1)
	if c.logger != nil {
		c.logger.Debug("Finalised in-flight selection query", "window", q.window)
	}
}

// Answered returns the number of queries answered by the worker.
func (c *QueryChannel) Answered() uint64 { return c.answered.Load() }

// Discarded returns the number of worker answers dropped because the query
// had already been finalised.
func (c *QueryChannel) Discarded() uint64 { return c.discarded.Load() }

// Spun returns the number of queries finalised by AnswerQuerySpin.
func (c *QueryChannel) Spun() uint64 { return c.spun.Load() }

// notify wakes the worker without blocking.
func (c *QueryChannel) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
