// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	uibridge "github.com/buke/ui-bridge"
)

// SessionConfig configures a simulated editing session.
type SessionConfig struct {
	Engine       uibridge.EngineFactory
	Windows      int  // Number of windows to open
	Queries      int  // Selection queries the input method issues concurrently
	ThreadChecks bool // Enable the bridge's worker thread checks
	Logger       *slog.Logger
	Arbiter      *uibridge.Arbiter // Defaults to the process arbiter
}

// Session is a bridge service wired to the simulated collaborators.
type Session struct {
	cfg SessionConfig

	Service     *uibridge.Service
	Toolkit     *Toolkit
	InputMethod *InputMethod
	Renderer    *Renderer
}

// Report summarizes a session run.
type Report struct {
	Windows    int
	Views      int
	Jobs       uint32 // Jobs run on the main thread
	Tasks      uint32 // Tasks run on the worker thread
	Submitted  uint64 // Synchronous calls into the main thread
	Answered   uint64 // Queries answered by the worker
	Spun       uint64 // Queries finalized by an exclusive section
	Declined   uint64 // Queries refused by the arbiter
	Discarded  uint64 // Answers dropped after preemption
	Preempted  uint64
	IM         InputMethodStats
	DrawOps    uint64
	Violations uint64 // Collaborator calls made on the wrong thread
	Selections map[uibridge.WindowID]*uibridge.Selection
	Clipboard  string
	Duration   time.Duration
}

// NewSession creates the service and the simulated collaborators.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("session requires an engine factory")
	}
	if cfg.Windows < 1 {
		return nil, fmt.Errorf("session requires at least one window, got %d", cfg.Windows)
	}

	s := &Session{
		cfg:         cfg,
		Toolkit:     NewToolkit(),
		InputMethod: NewInputMethod(),
		Renderer:    NewRenderer(),
	}
	opts := []func(*uibridge.Service){
		uibridge.WithEngine(cfg.Engine),
		uibridge.WithScripts(CoreScript()),
		uibridge.WithToolkit(s.Toolkit),
		uibridge.WithInputMethod(s.InputMethod),
		uibridge.WithRenderer(s.Renderer),
		uibridge.WithThreadChecks(cfg.ThreadChecks),
		uibridge.WithLogger(cfg.Logger),
	}
	if cfg.Arbiter != nil {
		opts = append(opts, uibridge.WithArbiter(cfg.Arbiter))
	}
	svc, err := uibridge.NewService(opts...)
	if err != nil {
		return nil, err
	}
	s.Service = svc
	s.Toolkit.SetThreadCheck(svc.Main().IsCurrent)
	s.Renderer.SetThreadCheck(svc.Worker().IsCurrent)
	s.InputMethod.SetQuerier(svc)
	return s, nil
}

// Run starts the service, drives the session and stops the service.
//
// The worker opens the windows and edits them while the input method queries
// selections from its own goroutine and the main side resets input
// connections, so every path of the query protocol gets exercised.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	if err := s.Service.Start(); err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	stopped := false
	defer func() {
		if !stopped {
			s.Service.Stop()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < s.cfg.Queries && ctx.Err() == nil; i++ {
			s.InputMethod.Query(ctx, s.window(i))
		}
	}()

	err := s.Service.Run(func(engine uibridge.Engine) error {
		for i := 0; i < s.cfg.Windows; i++ {
			if err := s.openWindow(engine, s.window(i)); err != nil {
				return err
			}
		}
		clipboard, err := s.Service.Clipboard()
		if err != nil {
			return err
		}
		return clipboard.SetText(fmt.Sprintf("%d windows", s.cfg.Windows))
	})
	if err != nil {
		wg.Wait()
		return nil, fmt.Errorf("session failed: %w", err)
	}

	for i := 0; i < s.cfg.Windows; i++ {
		if err := s.focusWindow(s.window(i)); err != nil {
			wg.Wait()
			return nil, err
		}
	}
	wg.Wait()

	report := &Report{
		Windows:    s.cfg.Windows,
		Selections: make(map[uibridge.WindowID]*uibridge.Selection, s.cfg.Windows),
	}
	for i := 0; i < s.cfg.Windows; i++ {
		w := s.window(i)
		report.Selections[w] = s.Service.ViewGetSelection(ctx, w)
	}
	clipboard, err := s.Service.Clipboard()
	if err != nil {
		return nil, err
	}
	if report.Clipboard, err = clipboard.Text(); err != nil {
		return nil, err
	}

	stopped = true
	if err := s.Service.Stop(); err != nil {
		return nil, err
	}

	arbiter := s.Service.Arbiter()
	queries := s.Service.Queries()
	report.Views = s.Toolkit.Views()
	report.Jobs = s.Service.Main().JobCount()
	report.Tasks = s.Service.Worker().TaskCount()
	report.Submitted = s.Service.Dispatcher().Submitted()
	report.Answered = queries.Answered()
	report.Spun = queries.Spun()
	report.Declined = arbiter.Declined()
	report.Discarded = arbiter.Discarded()
	report.Preempted = arbiter.Preempted()
	report.IM = s.InputMethod.Stats()
	report.DrawOps = s.Renderer.Ops()
	report.Violations = s.Toolkit.Violations() + s.Renderer.Violations()
	report.Duration = time.Since(started)
	return report, nil
}

func (s *Session) window(i int) uibridge.WindowID {
	return uibridge.WindowID(i%s.cfg.Windows + 1)
}

// openWindow runs on the worker: it creates the view, types into the buffer
// and paints the window.
func (s *Session) openWindow(engine uibridge.Engine, w uibridge.WindowID) error {
	if _, err := s.Service.CreateView(w, true, w == 1); err != nil {
		return err
	}
	if _, err := engine.Execute(&uibridge.Request{
		Id:      fmt.Sprintf("insert-%d", w),
		Service: "insert",
		Args:    []interface{}{int(w), fmt.Sprintf("hello from window %d", w)},
	}); err != nil {
		return fmt.Errorf("insert into window %d: %w", w, err)
	}
	if _, err := engine.Execute(&uibridge.Request{
		Id:      fmt.Sprintf("select-%d", w),
		Service: "setSelection",
		Args:    []interface{}{int(w), 6, 10},
	}); err != nil {
		return fmt.Errorf("select in window %d: %w", w, err)
	}
	view, _ := s.Service.View(w)
	if _, _, err := s.Service.LocationOnScreen(view); err != nil {
		return err
	}

	gc := &uibridge.GC{Foreground: 0x000000, Background: 0xffffff, LineWidth: 1}
	pixmap := Pixmap(w)
	for _, draw := range []func() error{
		func() error { return s.Service.ClearWindow(w) },
		func() error { return s.Service.FillRectangle(pixmap, gc, 0, 0, 640, 480) },
		func() error { return s.Service.DrawRectangle(pixmap, gc, 4, 4, 632, 472) },
		func() error { return s.Service.DrawLine(pixmap, gc, 4, 24, 636, 24) },
		func() error { return s.Service.DrawPoint(pixmap, gc, 60, 12) },
		func() error { return s.Service.ClearArea(w, 8, 28, 100, 16) },
	} {
		if err := draw(); err != nil {
			return fmt.Errorf("paint window %d: %w", w, err)
		}
	}
	return nil
}

// focusWindow drives the input method side of a window from the caller's
// goroutine: switch to text input twice, which restarts then invalidates,
// then report the selection and the caret.
func (s *Session) focusWindow(w uibridge.WindowID) error {
	if err := s.Service.ResetIC(w, uibridge.ICModeText); err != nil {
		return err
	}
	if err := s.Service.ResetIC(w, uibridge.ICModeText); err != nil {
		return err
	}
	if err := s.Service.UpdateIC(w, 6, 10, -1, -1); err != nil {
		return err
	}
	return s.Service.UpdateCursorAnchorInfo(w, 60, 4, 16, 20)
}
