// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"fmt"
	"log/slog"
	"sync"
)

// ServiceOption contains configuration options for a Service
type ServiceOption struct {
	queueSize        int    // Capacity of the main and worker queues
	threadChecks     bool   // Reject worker-only calls made on other threads
	invalidateInput  bool   // Toolkit supports the cheap input invalidation
	selectionService string // Editor core function answering selection queries
}

// Service wires the main thread, the worker thread and the protocol between
// them. A process has a single Service.
type Service struct {
	options       *ServiceOption
	engineFactory EngineFactory
	initScripts   []*Script

	main       *MainThread
	worker     *Worker
	dispatcher *Dispatcher
	queries    *QueryChannel
	arbiter    *Arbiter

	toolkit  Toolkit
	im       InputMethod
	renderer Renderer

	mu      sync.Mutex // Guards windows
	windows map[WindowID]*windowState

	logger *slog.Logger
}

// NewService creates a service with the given options
func NewService(opts ...func(*Service)) (*Service, error) {
	s := &Service{
		logger: slog.Default(),
		options: &ServiceOption{
			queueSize:        256,
			threadChecks:     false,
			invalidateInput:  true,
			selectionService: DefaultSelectionService,
		},
		windows: make(map[WindowID]*windowState),
	}

	for _, opt := range opts {
		opt(s)
	}

	// The editor core engine factory is required
	if s.engineFactory == nil {
		return nil, fmt.Errorf("editor core engine factory must be provided")
	}
	if s.arbiter == nil {
		s.arbiter = ProcessArbiter()
	}

	s.main = NewMainThread(
		WithMainQueueSize(s.options.queueSize),
		WithMainLogger(s.logger),
	)
	s.worker = newWorker("worker", s.engineFactory, s.options.queueSize, s.logger)
	s.worker.selectionService = s.options.selectionService
	s.worker.setScripts(s.initScripts)
	s.queries = NewQueryChannel(s.worker, s.logger)
	s.queries.answerer = s.worker
	s.worker.queries = s.queries
	s.dispatcher = NewDispatcher(s.main, workerHooks{queries: s.queries, worker: s.worker}, s.logger)

	return s, nil
}

// WithEngine configures the editor core engine factory
func WithEngine(factory EngineFactory) func(*Service) {
	return func(s *Service) {
		s.engineFactory = factory
	}
}

// WithLogger configures the logger for the service
func WithLogger(logger *slog.Logger) func(*Service) {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithScripts configures the editor core scripts
func WithScripts(scripts ...*Script) func(*Service) {
	return func(s *Service) {
		if len(scripts) > 0 {
			s.initScripts = scripts
		}
	}
}

// WithToolkit configures the GUI toolkit driven on the main thread
func WithToolkit(toolkit Toolkit) func(*Service) {
	return func(s *Service) {
		s.toolkit = toolkit
	}
}

// WithInputMethod configures the input method manager
func WithInputMethod(im InputMethod) func(*Service) {
	return func(s *Service) {
		s.im = im
	}
}

// WithRenderer configures the drawing primitives used by the worker
func WithRenderer(renderer Renderer) func(*Service) {
	return func(s *Service) {
		s.renderer = renderer
	}
}

// WithArbiter replaces the process-wide arbiter, mostly for tests
func WithArbiter(arbiter *Arbiter) func(*Service) {
	return func(s *Service) {
		s.arbiter = arbiter
	}
}

func WithQueueSize(size int) func(*Service) {
	return func(s *Service) {
		if size > 0 {
			s.options.queueSize = size
		}
	}
}

func WithThreadChecks(enabled bool) func(*Service) {
	return func(s *Service) {
		s.options.threadChecks = enabled
	}
}

func WithInvalidateInput(supported bool) func(*Service) {
	return func(s *Service) {
		s.options.invalidateInput = supported
	}
}

func WithSelectionService(name string) func(*Service) {
	return func(s *Service) {
		if name != "" {
			s.options.selectionService = name
		}
	}
}

// Start claims the arbiter, then starts the main thread and the worker
// thread. Only one running service may use an arbiter, the process-wide one
// included; Start fails with ErrArbiterInUse otherwise.
func (s *Service) Start() error {
	claimed, err := s.arbiter.claim(s.queries)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	if err := s.main.Start(); err != nil {
		if claimed {
			s.arbiter.release(s.queries)
		}
		return fmt.Errorf("failed to start main thread: %w", err)
	}
	if err := s.worker.start(); err != nil {
		if stopErr := s.main.Stop(); stopErr != nil && s.logger != nil {
			s.logger.Error("Failed to stop main thread", "error", stopErr)
		}
		s.arbiter.release(s.queries)
		return fmt.Errorf("failed to start worker thread: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("Service started",
			"queueSize", s.options.queueSize,
			"threadChecks", s.options.threadChecks,
			"invalidateInput", s.options.invalidateInput,
			"selectionService", s.options.selectionService,
		)
	}
	return nil
}

// Stop stops the worker first, since its last tasks may still need the main
// thread, then the main thread, and releases the arbiter
func (s *Service) Stop() error {
	workerErr := s.worker.stop()
	mainErr := s.main.Stop()
	if !s.worker.Running() {
		s.arbiter.release(s.queries)
	}
	if workerErr != nil {
		return fmt.Errorf("failed to stop worker thread: %w", workerErr)
	}
	if mainErr != nil {
		return fmt.Errorf("failed to stop main thread: %w", mainErr)
	}
	if s.logger != nil {
		s.logger.Debug("Service stopped",
			"jobs", s.main.JobCount(),
			"tasks", s.worker.TaskCount(),
		)
	}
	return nil
}

// Reload recreates the editor core, optionally with new scripts
func (s *Service) Reload(scripts ...*Script) error {
	if len(scripts) > 0 {
		s.worker.setScripts(scripts)
	}
	return s.worker.reload()
}

// Execute calls an editor core function on the worker thread
func (s *Service) Execute(req *Request) (*Response, error) {
	if s.main.IsCurrent() {
		return nil, fmt.Errorf("execute: %w", ErrOnMainThread)
	}
	return s.worker.Execute(req)
}

// Run calls fn on the worker thread. fn may use the service's synchronous
// calls into the main thread.
func (s *Service) Run(fn func(Engine) error) error {
	if s.main.IsCurrent() {
		return fmt.Errorf("run: %w", ErrOnMainThread)
	}
	return s.worker.Run(fn)
}

// Main returns the main thread.
func (s *Service) Main() *MainThread { return s.main }

// Worker returns the worker thread.
func (s *Service) Worker() *Worker { return s.worker }

// Dispatcher returns the call dispatcher.
func (s *Service) Dispatcher() *Dispatcher { return s.dispatcher }

// Queries returns the query channel.
func (s *Service) Queries() *QueryChannel { return s.queries }

// Arbiter returns the query arbiter.
func (s *Service) Arbiter() *Arbiter { return s.arbiter }

// checkWorkerThread rejects worker-only calls made elsewhere when thread
// checks are enabled.
func (s *Service) checkWorkerThread(op string) error {
	if s.options.threadChecks && !s.worker.IsCurrent() {
		return fmt.Errorf("%s: %w", op, ErrNotWorkerThread)
	}
	return nil
}

// onMain runs fn on the main thread, directly when already there.
func (s *Service) onMain(fn func()) error {
	if s.main.IsCurrent() {
		fn()
		return nil
	}
	return s.dispatcher.SubmitAndWait(fn)
}

// workerHooks hands the dispatcher's synchronous call hooks to the query
// channel only when the waiting caller is the worker thread. Other callers
// cannot answer selection queries and just wait.
type workerHooks struct {
	queries *QueryChannel
	worker  *Worker
}

func (h workerHooks) BeginSynchronous() {
	if h.worker.IsCurrent() {
		h.queries.BeginSynchronous()
	}
}

func (h workerHooks) EndSynchronous() {
	if h.worker.IsCurrent() {
		h.queries.EndSynchronous()
	}
}

// Wake returns nil, a channel that never fires, for other callers.
func (h workerHooks) Wake() <-chan struct{} {
	if h.worker.IsCurrent() {
		return h.queries.Wake()
	}
	return nil
}

func (h workerHooks) Service() bool {
	if h.worker.IsCurrent() {
		return h.queries.Service()
	}
	return false
}
