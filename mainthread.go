// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// mainAction represents a control action for the main thread loop.
type mainAction int

const (
	mainActionStop mainAction = iota // Stop the loop once the job queue is empty
)

// String returns the string representation of a mainAction.
func (a mainAction) String() string {
	switch a {
	case mainActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// mainActionRequest represents a request to perform an action on the loop.
type mainActionRequest struct {
	action mainAction // The action to perform
	done   chan error // Channel to signal completion and return any error
}

// MainThread is the single thread allowed to run toolkit operations.
// Jobs posted to it run one at a time, in posting order, on an OS-locked
// goroutine.
type MainThread struct {
	name      string
	queueSize int
	logger    *slog.Logger

	jobs     chan *job               // FIFO job queue
	actions  chan *mainActionRequest // Control actions, run after queued jobs
	initCh   chan struct{}           // Closed once the loop goroutine is pinned
	loopDone chan struct{}           // Closed when the loop goroutine returns

	mu      sync.RWMutex // Guards stopped against concurrent Post
	stopped bool
	started atomic.Bool

	goid         atomic.Uint64 // Goroutine running the loop, 0 when not running
	lastUsedNano int64         // Timestamp of last job execution (atomic, nanoseconds)
	jobCount     uint32        // Number of jobs executed (atomic)
}

// MainThreadOption configures a MainThread.
type MainThreadOption func(*MainThread)

// NewMainThread creates a main thread loop. Call Start before posting jobs.
func NewMainThread(opts ...MainThreadOption) *MainThread {
	m := &MainThread{
		name:      "main",
		queueSize: 256,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.jobs = make(chan *job, m.queueSize)
	m.actions = make(chan *mainActionRequest, 1)
	m.initCh = make(chan struct{})
	m.loopDone = make(chan struct{})
	m.lastUsedNano = time.Now().UnixNano()
	return m
}

// WithMainQueueSize sets the capacity of the main thread job queue.
func WithMainQueueSize(size int) MainThreadOption {
	return func(m *MainThread) {
		if size > 0 {
			m.queueSize = size
		}
	}
}

// WithMainLogger configures the logger for the main thread.
func WithMainLogger(logger *slog.Logger) MainThreadOption {
	return func(m *MainThread) {
		m.logger = logger
	}
}

// Start launches the loop and waits until it is running on its own OS thread.
func (m *MainThread) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go m.run()
	<-m.initCh
	if m.logger != nil {
		m.logger.Debug("Main thread started", "thread", m.name, "queueSize", m.queueSize)
	}
	return nil
}

// Post enqueues fn without waiting for it. Jobs run in the order they were
// posted.
func (m *MainThread) Post(fn func()) error {
	return m.enqueue(newJob(fn))
}

// enqueue hands j to the loop.
func (m *MainThread) enqueue(j *job) error {
	if !m.started.Load() {
		return ErrNotStarted
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return ErrLoopStopped
	}
	m.jobs <- j
	return nil
}

// IsCurrent reports whether the caller is running on the main thread.
func (m *MainThread) IsCurrent() bool {
	id := m.goid.Load()
	return id != 0 && id == goroutineID()
}

// JobCount returns the number of jobs executed so far.
func (m *MainThread) JobCount() uint32 {
	return atomic.LoadUint32(&m.jobCount)
}

// LastUsed returns the time the last job finished.
func (m *MainThread) LastUsed() time.Time {
	return time.Unix(0, atomic.LoadInt64(&m.lastUsedNano))
}

// Stop refuses new jobs, lets the jobs already queued run, then ends the
// loop. It must not be called from the main thread itself.
func (m *MainThread) Stop() error {
	if !m.started.Load() {
		return ErrNotStarted
	}
	if m.IsCurrent() {
		return fmt.Errorf("stop main thread: %w", ErrOnMainThread)
	}

	// Lock waits out any Post still blocked on a full queue; the loop keeps
	// draining meanwhile.
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrLoopStopped
	}
	m.stopped = true
	m.mu.Unlock()

	req := &mainActionRequest{
		action: mainActionStop,
		done:   make(chan error, 1),
	}
	m.actions <- req
	err := <-req.done
	<-m.loopDone

	if m.logger != nil {
		m.logger.Debug("Main thread stopped", "thread", m.name, "jobs", m.JobCount())
	}
	return err
}

// run is the main thread loop.
func (m *MainThread) run() {
	// Toolkit state is bound to the OS thread that created it
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m.goid.Store(goroutineID())
	defer m.goid.Store(0)
	defer close(m.loopDone)

	close(m.initCh)

	var pendingActions []*mainActionRequest

	for {
		// Execute pending actions only once the job queue is empty
		for len(pendingActions) > 0 && len(m.jobs) == 0 {
			action := pendingActions[0]
			pendingActions = pendingActions[1:]
			if m.executeAction(action) {
				return
			}
		}

		select {
		case j := <-m.jobs:
			m.executeJob(j)
		case req := <-m.actions:
			pendingActions = append(pendingActions, req)
		}
	}
}

// executeAction runs a control action and reports whether the loop must exit.
func (m *MainThread) executeAction(req *mainActionRequest) bool {
	switch req.action {
	case mainActionStop:
		req.done <- nil
		return true
	default:
		if m.logger != nil {
			m.logger.Error("Unknown main thread action", "thread", m.name, "action", req.action.String())
		}
		req.done <- nil
		return false
	}
}

// executeJob runs a single job and releases its waiter.
func (m *MainThread) executeJob(j *job) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
			if m.logger != nil {
				m.logger.Error("Main thread job panic",
					"thread", m.name,
					"jobCount", m.JobCount(),
					"error", r)
			}
		}
		atomic.StoreInt64(&m.lastUsedNano, time.Now().UnixNano())
		atomic.AddUint32(&m.jobCount, 1)
		j.complete(err)
	}()

	j.status = jobStatusRunning
	j.fn()
}
