// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import "fmt"

// View is a toolkit view handle. Views are created on the main thread.
type View interface {
	Window() WindowID
}

// Clipboard is the toolkit clipboard service.
type Clipboard interface {
	SetText(text string) error
	Text() (string, error)
}

// Toolkit is the GUI toolkit. Every method is called on the main thread only.
type Toolkit interface {
	CreateView(window WindowID, visible, focusedByDefault bool) (View, error)
	LocationOnScreen(view View) (x, y int)
	Clipboard() (Clipboard, error)
	RequestDirectoryAccess() error
}

// Drawable is a window or pixmap the renderer draws into.
type Drawable interface {
	Handle() int
}

// GC holds the drawing state for the primitives.
type GC struct {
	Foreground uint32
	Background uint32
	LineWidth  int
}

// Renderer provides the drawing primitives. Unlike the Toolkit, it is called
// on the worker thread.
type Renderer interface {
	FillRectangle(d Drawable, gc *GC, x, y, width, height int)
	DrawRectangle(d Drawable, gc *GC, x, y, width, height int)
	DrawLine(d Drawable, gc *GC, x, y, x2, y2 int)
	DrawPoint(d Drawable, gc *GC, x, y int)
	ClearWindow(window WindowID)
	ClearArea(window WindowID, x, y, width, height int)
}

// windowState is what the service remembers about a window's view.
type windowState struct {
	view       View
	mode       ICMode
	generation uint64
}

// CreateView creates the view of window on the main thread and returns it
// once it exists.
func (s *Service) CreateView(window WindowID, visible, focusedByDefault bool) (View, error) {
	if s.toolkit == nil {
		return nil, ErrNoToolkit
	}
	if err := s.checkWorkerThread("create view"); err != nil {
		return nil, err
	}

	var view View
	var createErr error
	err := s.onMain(func() {
		view, createErr = s.toolkit.CreateView(window, visible, focusedByDefault)
		if createErr == nil {
			s.mu.Lock()
			s.windows[window] = &windowState{view: view, mode: ICModeNull}
			s.mu.Unlock()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create view for window %d: %w", window, err)
	}
	if createErr != nil {
		return nil, fmt.Errorf("create view for window %d: %w", window, createErr)
	}
	return view, nil
}

// LocationOnScreen returns the screen position of view.
func (s *Service) LocationOnScreen(view View) (x, y int, err error) {
	if s.toolkit == nil {
		return 0, 0, ErrNoToolkit
	}
	if err := s.checkWorkerThread("location on screen"); err != nil {
		return 0, 0, err
	}
	err = s.onMain(func() {
		x, y = s.toolkit.LocationOnScreen(view)
	})
	return x, y, err
}

// Clipboard fetches the toolkit clipboard, which may only be looked up on
// the main thread.
func (s *Service) Clipboard() (Clipboard, error) {
	if s.toolkit == nil {
		return nil, ErrNoToolkit
	}
	var clipboard Clipboard
	var lookupErr error
	if err := s.onMain(func() {
		clipboard, lookupErr = s.toolkit.Clipboard()
	}); err != nil {
		return nil, err
	}
	return clipboard, lookupErr
}

// RequestDirectoryAccess asks the toolkit to show its directory picker.
func (s *Service) RequestDirectoryAccess() error {
	if s.toolkit == nil {
		return ErrNoToolkit
	}
	var requestErr error
	if err := s.onMain(func() {
		requestErr = s.toolkit.RequestDirectoryAccess()
	}); err != nil {
		return err
	}
	return requestErr
}

// View returns the view created for window, if any.
func (s *Service) View(window WindowID) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.windows[window]
	if !ok {
		return nil, false
	}
	return st.view, true
}

// These drawing functions must only be called from the worker thread.

func (s *Service) FillRectangle(d Drawable, gc *GC, x, y, width, height int) error {
	if err := s.drawCheck("fill rectangle"); err != nil {
		return err
	}
	s.renderer.FillRectangle(d, gc, x, y, width, height)
	return nil
}

func (s *Service) DrawRectangle(d Drawable, gc *GC, x, y, width, height int) error {
	if err := s.drawCheck("draw rectangle"); err != nil {
		return err
	}
	s.renderer.DrawRectangle(d, gc, x, y, width, height)
	return nil
}

func (s *Service) DrawLine(d Drawable, gc *GC, x, y, x2, y2 int) error {
	if err := s.drawCheck("draw line"); err != nil {
		return err
	}
	s.renderer.DrawLine(d, gc, x, y, x2, y2)
	return nil
}

func (s *Service) DrawPoint(d Drawable, gc *GC, x, y int) error {
	if err := s.drawCheck("draw point"); err != nil {
		return err
	}
	s.renderer.DrawPoint(d, gc, x, y)
	return nil
}

func (s *Service) ClearWindow(window WindowID) error {
	if err := s.drawCheck("clear window"); err != nil {
		return err
	}
	s.renderer.ClearWindow(window)
	return nil
}

func (s *Service) ClearArea(window WindowID, x, y, width, height int) error {
	if err := s.drawCheck("clear area"); err != nil {
		return err
	}
	s.renderer.ClearArea(window, x, y, width, height)
	return nil
}

func (s *Service) drawCheck(op string) error {
	if s.renderer == nil {
		return ErrNoRenderer
	}
	return s.checkWorkerThread(op)
}
