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

// DefaultSelectionService is the editor core function answering selection
// queries. It is called with the window id and returns {start, end} or null.
const DefaultSelectionService = "getSelection"

// workerAction represents an action that can be performed on the worker.
type workerAction int

const (
	actionStop   workerAction = iota // Stop the worker
	actionReload                     // Recreate the engine with the current scripts
)

// String returns the string representation of a workerAction.
func (a workerAction) String() string {
	switch a {
	case actionStop:
		return "stop"
	case actionReload:
		return "reload"
	default:
		return "unknown"
	}
}

// workerActionRequest represents a request to perform an action on the worker.
type workerActionRequest struct {
	action workerAction // The action to perform
	done   chan error   // Channel to signal completion and return any error
}

// taskResult represents the result of task execution.
type taskResult struct {
	response *Response // Core response (nil for function tasks or on error)
	err      error     // Error that occurred during execution
}

// task is a unit of work for the worker: either a core request or a Go
// function that needs the worker thread.
type task struct {
	request    *Request
	fn         func(Engine) error
	resultChan chan *taskResult // Buffered so the worker never blocks on it
}

func newRequestTask(req *Request) *task {
	return &task{request: req, resultChan: make(chan *taskResult, 1)}
}

func newFuncTask(fn func(Engine) error) *task {
	return &task{fn: fn, resultChan: make(chan *taskResult, 1)}
}

// Worker is the thread running the editor core. It owns the core's engine,
// runs tasks in order and answers selection queries between them.
type Worker struct {
	name             string
	engineFactory    EngineFactory
	selectionService string
	queueSize        int
	logger           *slog.Logger

	scripts atomic.Pointer[[]*Script] // Scripts loaded into every new engine
	queries *QueryChannel             // Pumped between tasks, may be nil

	taskQueue   chan *task                // Channel for receiving tasks to execute
	actionQueue chan *workerActionRequest // Channel for receiving control actions
	initCh      chan error                // Signals initialization completion
	loopDone    chan struct{}             // Closed when the worker goroutine returns

	mu      sync.RWMutex // Guards stopped against concurrent submission
	stopped bool
	started atomic.Bool

	goid         atomic.Uint64 // Goroutine running the worker, 0 when not running
	lastUsedNano int64         // Timestamp of last task execution (atomic, nanoseconds)
	taskCount    uint32        // Number of tasks executed (atomic)

	engine Engine // Only touched on the worker goroutine
}

// newWorker creates a worker. Scripts and the query channel are set by the
// service before Start.
func newWorker(name string, factory EngineFactory, queueSize int, logger *slog.Logger) *Worker {
	return &Worker{
		name:             name,
		engineFactory:    factory,
		selectionService: DefaultSelectionService,
		queueSize:        queueSize,
		logger:           logger,
		taskQueue:        make(chan *task, queueSize),
		actionQueue:      make(chan *workerActionRequest, 1),
		initCh:           make(chan error, 1),
		loopDone:         make(chan struct{}),
		lastUsedNano:     time.Now().UnixNano(),
	}
}

// getScripts returns the current scripts (no copy, read-only).
func (w *Worker) getScripts() []*Script {
	ptr := w.scripts.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// setScripts atomically replaces the scripts.
func (w *Worker) setScripts(scripts []*Script) {
	if len(scripts) == 0 {
		w.scripts.Store(nil)
		return
	}
	newScripts := make([]*Script, len(scripts))
	copy(newScripts, scripts)
	w.scripts.Store(&newScripts)
}

// TaskCount returns the number of tasks executed by the worker.
func (w *Worker) TaskCount() uint32 {
	return atomic.LoadUint32(&w.taskCount)
}

// LastUsed returns the time the last task finished.
func (w *Worker) LastUsed() time.Time {
	return time.Unix(0, atomic.LoadInt64(&w.lastUsedNano))
}

// IsCurrent reports whether the caller is running on the worker thread.
func (w *Worker) IsCurrent() bool {
	id := w.goid.Load()
	return id != 0 && id == goroutineID()
}

// Running reports whether the worker loop has been started and not exited.
func (w *Worker) Running() bool {
	if !w.started.Load() {
		return false
	}
	select {
	case <-w.loopDone:
		return false
	default:
		return true
	}
}

// Done returns a channel closed when the worker loop exits.
func (w *Worker) Done() <-chan struct{} {
	return w.loopDone
}

// start launches the worker goroutine and waits for its engine.
func (w *Worker) start() error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go w.run()
	if err := <-w.initCh; err != nil {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	return nil
}

// initEngine creates the engine and loads the scripts into it.
func (w *Worker) initEngine() error {
	engine, err := w.engineFactory()
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	w.engine = engine

	if err := w.engine.Load(w.getScripts()); err != nil {
		return fmt.Errorf("failed to load engine: %w", err)
	}
	return nil
}

// run is the worker loop.
func (w *Worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.goid.Store(goroutineID())
	defer w.goid.Store(0)
	defer close(w.loopDone)

	defer func() {
		if w.engine != nil {
			if err := w.engine.Close(); err != nil && w.logger != nil {
				w.logger.Error("Failed to close engine", "thread", w.name, "error", err)
			}
			w.engine = nil
		}
	}()

	var pendingActions []*workerActionRequest

	if err := w.initEngine(); err != nil {
		w.initCh <- err
		close(w.initCh)
		if w.logger != nil {
			w.logger.Error("Failed to initialize engine", "thread", w.name, "error", err)
		}
		return
	}
	w.initCh <- nil
	close(w.initCh)

	var wake <-chan struct{}
	if w.queries != nil {
		wake = w.queries.Wake()
	}

	for {
		// Execute all pending actions if task queue is empty
		for len(pendingActions) > 0 && len(w.taskQueue) == 0 {
			action := pendingActions[0]
			pendingActions = pendingActions[1:]
			if w.executeAction(action) {
				return
			}
		}

		select {
		case t := <-w.taskQueue:
			w.executeTask(t)
			w.serviceQueries()
		case req := <-w.actionQueue:
			// Queue all control actions, execute in order after tasks are done
			pendingActions = append(pendingActions, req)
		case <-wake:
			w.serviceQueries()
		}
	}
}

// serviceQueries answers a waiting selection query, if any.
func (w *Worker) serviceQueries() {
	if w.queries != nil {
		w.queries.Service()
	}
}

// executeAction executes a worker action and reports whether the loop must exit.
func (w *Worker) executeAction(req *workerActionRequest) (exit bool) {
	defer func() {
		if r := recover(); r != nil {
			if w.logger != nil {
				w.logger.Error("Panic recovered in executeAction", "thread", w.name, "action", req.action.String(), "error", r)
			}
			req.done <- fmt.Errorf("panic in executeAction: %v", r)
		}
	}()

	switch req.action {
	case actionReload:
		if w.engine != nil {
			if err := w.engine.Close(); err != nil && w.logger != nil {
				w.logger.Error("Failed to close engine", "thread", w.name, "error", err)
			}
			w.engine = nil
		}
		err := w.initEngine()
		if err != nil && w.logger != nil {
			w.logger.Error("Worker reload failed", "thread", w.name, "error", err)
		}
		req.done <- err
		return false

	case actionStop:
		var err error
		if w.engine != nil {
			err = w.engine.Close()
			if err != nil && w.logger != nil {
				w.logger.Error("Failed to close engine", "thread", w.name, "error", err)
			}
			w.engine = nil
		}
		req.done <- err
		return true

	default:
		req.done <- nil
		return false
	}
}

// executeTask executes a single task on the worker thread.
func (w *Worker) executeTask(t *task) {
	defer func() {
		if r := recover(); r != nil {
			t.resultChan <- &taskResult{
				err: fmt.Errorf("panic in thread %s: %v", w.name, r),
			}
			if w.logger != nil {
				w.logger.Error("Task execution panic",
					"thread", w.name,
					"taskCount", w.TaskCount(),
					"error", r)
			}
		}
		atomic.StoreInt64(&w.lastUsedNano, time.Now().UnixNano())
		atomic.AddUint32(&w.taskCount, 1)
	}()

	if w.engine == nil {
		t.resultChan <- &taskResult{err: ErrWorkerStopped}
		return
	}

	if t.fn != nil {
		t.resultChan <- &taskResult{err: t.fn(w.engine)}
		return
	}

	response, err := w.engine.Execute(t.request)
	t.resultChan <- &taskResult{response: response, err: err}
}

// submit queues t and waits for its result. Calls made on the worker thread
// itself run inline instead of queueing behind themselves.
func (w *Worker) submit(t *task) (*Response, error) {
	if !w.started.Load() {
		return nil, ErrNotStarted
	}
	if w.IsCurrent() {
		w.executeTask(t)
		result := <-t.resultChan
		return result.response, result.err
	}

	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return nil, ErrWorkerStopped
	}
	w.taskQueue <- t
	w.mu.RUnlock()

	result := <-t.resultChan
	return result.response, result.err
}

// Execute calls a core function on the worker thread.
func (w *Worker) Execute(req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	return w.submit(newRequestTask(req))
}

// Run calls fn on the worker thread with the core's engine and waits for it.
func (w *Worker) Run(fn func(Engine) error) error {
	if fn == nil {
		return fmt.Errorf("function cannot be nil")
	}
	_, err := w.submit(newFuncTask(fn))
	return err
}

// Selection answers a selection query by calling the core's selection
// service. It must run on the worker thread, which owns the engine.
func (w *Worker) Selection(window WindowID) (*Selection, error) {
	if !w.IsCurrent() {
		return nil, ErrNotWorkerThread
	}
	if w.engine == nil {
		return nil, ErrWorkerStopped
	}
	resp, err := w.engine.Execute(&Request{
		Id:      "selection",
		Service: w.selectionService,
		Args:    []interface{}{int(window)},
	})
	if err != nil {
		return nil, fmt.Errorf("selection service failed: %w", err)
	}
	if resp == nil {
		return nil, nil
	}
	return decodeSelection(resp.Result)
}

// reload recreates the engine once queued tasks are done.
func (w *Worker) reload() error {
	return w.sendAction(actionReload)
}

// stop refuses new tasks, finishes queued ones and ends the worker.
func (w *Worker) stop() error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	if w.IsCurrent() {
		return fmt.Errorf("stop: %w", ErrOnWorkerThread)
	}
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWorkerStopped
	}
	w.stopped = true
	w.mu.Unlock()

	err := w.sendAction(actionStop)
	<-w.loopDone
	return err
}

// sendAction sends a control action and waits for it to run.
func (w *Worker) sendAction(action workerAction) error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	if w.IsCurrent() {
		return fmt.Errorf("%s: %w", action, ErrOnWorkerThread)
	}
	req := &workerActionRequest{
		action: action,
		done:   make(chan error, 1),
	}
	select {
	case w.actionQueue <- req:
	case <-w.loopDone:
		return ErrWorkerStopped
	}
	select {
	case err := <-req.done:
		return err
	case <-w.loopDone:
		// The stop action answers before the loop exits
		select {
		case err := <-req.done:
			return err
		default:
			return ErrWorkerStopped
		}
	}
}
