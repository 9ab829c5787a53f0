// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"context"
	"fmt"
)

// ICMode is the kind of input connection a view offers the input method.
type ICMode int

const (
	ICModeNull   ICMode = 0
	ICModeAction ICMode = 1
	ICModeText   ICMode = 2
)

// String returns the string representation of an ICMode.
func (m ICMode) String() string {
	switch m {
	case ICModeNull:
		return "null"
	case ICModeAction:
		return "action"
	case ICModeText:
		return "text"
	default:
		return "unknown"
	}
}

// CursorAnchorInfo describes the insertion marker in screen coordinates.
type CursorAnchorInfo struct {
	OffsetX, OffsetY float32 // Screen position of the view
	X, Y             float32 // Insertion marker, view relative
	Baseline         float32
	Bottom           float32
}

// InputMethod is the toolkit's input method manager. Its methods hold an
// internal lock that is also taken before the input method asks for the
// selection, which is why they run inside exclusive sections.
type InputMethod interface {
	UpdateSelection(view View, selStart, selEnd, compStart, compEnd int)
	InvalidateInput(view View)
	RestartInput(view View)
	UpdateCursorAnchorInfo(view View, info CursorAnchorInfo)
}

// exclusive runs fn between BeginExclusive and EndExclusive.
func (s *Service) exclusive(fn func()) {
	s.arbiter.BeginExclusive()
	defer s.arbiter.EndExclusive()
	fn()
}

// windowFor returns the state of window or an error if it has no view.
func (s *Service) windowFor(window WindowID) (*windowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.windows[window]
	if !ok {
		return nil, fmt.Errorf("window %d has no view", window)
	}
	return st, nil
}

// UpdateIC tells the input method about a new selection and composing region.
func (s *Service) UpdateIC(window WindowID, selStart, selEnd, compStart, compEnd int) error {
	if s.im == nil {
		return ErrNoInputMethod
	}
	st, err := s.windowFor(window)
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug("updateIC", "window", window,
			"selStart", selStart, "selEnd", selEnd,
			"compStart", compStart, "compEnd", compEnd)
	}
	return s.onMain(func() {
		s.exclusive(func() {
			s.im.UpdateSelection(st.view, selStart, selEnd, compStart, compEnd)
		})
	})
}

// ResetIC switches window to mode and resets its input connection. When the
// mode does not change, is not null and the toolkit supports it, the input
// is only invalidated, which is much cheaper than a restart.
func (s *Service) ResetIC(window WindowID, mode ICMode) error {
	if s.im == nil {
		return ErrNoInputMethod
	}
	st, err := s.windowFor(window)
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug("resetIC", "window", window, "mode", mode.String())
	}

	return s.onMain(func() {
		s.mu.Lock()
		oldMode := st.mode
		s.mu.Unlock()

		if s.options.invalidateInput && oldMode == mode && oldMode != ICModeNull {
			s.exclusive(func() {
				s.im.InvalidateInput(st.view)
			})
			return
		}

		s.mu.Lock()
		st.mode = mode
		s.mu.Unlock()

		s.exclusive(func() {
			s.mu.Lock()
			st.generation++
			s.mu.Unlock()
			s.im.RestartInput(st.view)
		})
	})
}

// UpdateCursorAnchorInfo reports the insertion marker of window to the input
// method, translated by the view's position on screen.
func (s *Service) UpdateCursorAnchorInfo(window WindowID, x, y, yBaseline, yBottom float32) error {
	if s.im == nil {
		return ErrNoInputMethod
	}
	st, err := s.windowFor(window)
	if err != nil {
		return err
	}
	return s.onMain(func() {
		info := CursorAnchorInfo{X: x, Y: y, Baseline: yBaseline, Bottom: yBottom}
		if s.toolkit != nil {
			ox, oy := s.toolkit.LocationOnScreen(st.view)
			info.OffsetX, info.OffsetY = float32(ox), float32(oy)
		}
		if s.logger != nil {
			s.logger.Debug("updateCursorAnchorInfo", "window", window,
				"x", x, "y", y, "baseline", yBaseline, "bottom", yBottom)
		}
		s.exclusive(func() {
			s.im.UpdateCursorAnchorInfo(st.view, info)
		})
	})
}

// ICMode returns the current input connection mode of window.
func (s *Service) ICMode(window WindowID) ICMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.windows[window]; ok {
		return st.mode
	}
	return ICModeNull
}

// ICGeneration returns how many times the input of window was restarted.
func (s *Service) ICGeneration(window WindowID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.windows[window]; ok {
		return st.generation
	}
	return 0
}

// ViewGetSelection asks the editor core for the selection of window on
// behalf of the input method. It returns nil, without waiting, when an
// exclusive section is active or another query is in flight, and nil when an
// exclusive section preempts this query; input methods cope with a missing
// answer. It also returns nil at once when the worker is not running.
func (s *Service) ViewGetSelection(ctx context.Context, window WindowID) *Selection {
	epoch := s.queries.SpinEpoch()
	sel, _ := s.arbiter.TryBeginWorkerQuery(func() *Selection {
		// On the worker itself nobody else can answer
		if s.worker.IsCurrent() {
			sel, err := s.worker.Selection(window)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("Failed to compute selection", "window", window, "error", err)
				}
				return nil
			}
			return sel
		}

		sel, err := s.queries.AskSince(ctx, window, epoch)
		if err != nil {
			if s.logger != nil {
				s.logger.Debug("Selection query abandoned", "window", window, "error", err)
			}
			return nil
		}
		return sel
	})
	return sel
}
