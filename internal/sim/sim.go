// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package sim provides an in-memory toolkit, input method and renderer that
// record how the bridge drives them, plus the demo editor core script.
package sim

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"sync/atomic"

	uibridge "github.com/buke/ui-bridge"
)

//go:embed core.js
var coreScript string

// CoreScript returns the demo editor core.
func CoreScript() *uibridge.Script {
	return &uibridge.Script{FileName: "core.js", Content: coreScript}
}

// ThreadCheck reports whether the caller runs on the expected thread.
type ThreadCheck func() bool

// View is a simulated view.
type View struct {
	id uibridge.WindowID
}

func (v *View) Window() uibridge.WindowID { return v.id }

// Clipboard is a simulated clipboard.
type Clipboard struct {
	mu   sync.Mutex
	text string
}

func (c *Clipboard) SetText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

func (c *Clipboard) Text() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

// Toolkit is a simulated GUI toolkit. Calls made off the main thread are
// counted as violations.
type Toolkit struct {
	onMain ThreadCheck

	mu        sync.Mutex
	views     map[uibridge.WindowID]*View
	clipboard Clipboard

	violations atomic.Uint64
}

// NewToolkit creates a toolkit; onMain may be nil until the service exists.
func NewToolkit() *Toolkit {
	return &Toolkit{views: make(map[uibridge.WindowID]*View)}
}

// SetThreadCheck installs the main thread check.
func (t *Toolkit) SetThreadCheck(onMain ThreadCheck) { t.onMain = onMain }

func (t *Toolkit) check() {
	if t.onMain != nil && !t.onMain() {
		t.violations.Add(1)
	}
}

func (t *Toolkit) CreateView(window uibridge.WindowID, visible, focusedByDefault bool) (uibridge.View, error) {
	t.check()
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.views[window]; ok {
		return nil, fmt.Errorf("window %d already has a view", window)
	}
	v := &View{id: window}
	t.views[window] = v
	return v, nil
}

// Views are laid out in a row, 640 pixels apart.
func (t *Toolkit) LocationOnScreen(view uibridge.View) (x, y int) {
	t.check()
	return int(view.Window()) * 640, 100
}

func (t *Toolkit) Clipboard() (uibridge.Clipboard, error) {
	t.check()
	return &t.clipboard, nil
}

func (t *Toolkit) RequestDirectoryAccess() error {
	t.check()
	return nil
}

// Views returns the number of views created.
func (t *Toolkit) Views() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.views)
}

// Violations returns the number of calls made off the main thread.
func (t *Toolkit) Violations() uint64 { return t.violations.Load() }

// SelectionQuerier is the bridge entry point an input method uses to read
// the selection.
type SelectionQuerier interface {
	ViewGetSelection(ctx context.Context, window uibridge.WindowID) *uibridge.Selection
}

// InputMethod is a simulated input method manager. Like a real one, it asks
// for the selection again when its input is restarted, which the bridge
// declines while the restart runs.
type InputMethod struct {
	querier SelectionQuerier

	restarts    atomic.Uint64
	invalidates atomic.Uint64
	updates     atomic.Uint64
	anchors     atomic.Uint64

	answered atomic.Uint64
	declined atomic.Uint64

	mu   sync.Mutex
	last map[uibridge.WindowID]uibridge.CursorAnchorInfo
}

// NewInputMethod creates an input method; the querier may be set later.
func NewInputMethod() *InputMethod {
	return &InputMethod{last: make(map[uibridge.WindowID]uibridge.CursorAnchorInfo)}
}

// SetQuerier installs the bridge used for selection queries.
func (im *InputMethod) SetQuerier(q SelectionQuerier) { im.querier = q }

func (im *InputMethod) UpdateSelection(view uibridge.View, selStart, selEnd, compStart, compEnd int) {
	im.updates.Add(1)
}

func (im *InputMethod) InvalidateInput(view uibridge.View) {
	im.invalidates.Add(1)
}

func (im *InputMethod) RestartInput(view uibridge.View) {
	im.restarts.Add(1)
	im.Query(context.Background(), view.Window())
}

func (im *InputMethod) UpdateCursorAnchorInfo(view uibridge.View, info uibridge.CursorAnchorInfo) {
	im.anchors.Add(1)
	im.mu.Lock()
	im.last[view.Window()] = info
	im.mu.Unlock()
}

// Query asks the bridge for the selection of window and records the outcome.
func (im *InputMethod) Query(ctx context.Context, window uibridge.WindowID) *uibridge.Selection {
	if im.querier == nil {
		return nil
	}
	sel := im.querier.ViewGetSelection(ctx, window)
	if sel == nil {
		im.declined.Add(1)
	} else {
		im.answered.Add(1)
	}
	return sel
}

// CursorAnchor returns the last cursor anchor reported for window.
func (im *InputMethod) CursorAnchor(window uibridge.WindowID) (uibridge.CursorAnchorInfo, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	info, ok := im.last[window]
	return info, ok
}

// InputMethodStats counts what the input method saw.
type InputMethodStats struct {
	Restarts    uint64
	Invalidates uint64
	Updates     uint64
	Anchors     uint64
	Answered    uint64 // Queries that got a selection
	Declined    uint64 // Queries that got nil
}

func (im *InputMethod) Stats() InputMethodStats {
	return InputMethodStats{
		Restarts:    im.restarts.Load(),
		Invalidates: im.invalidates.Load(),
		Updates:     im.updates.Load(),
		Anchors:     im.anchors.Load(),
		Answered:    im.answered.Load(),
		Declined:    im.declined.Load(),
	}
}

// Pixmap is a simulated drawable.
type Pixmap int

func (p Pixmap) Handle() int { return int(p) }

// Renderer counts drawing primitives. Calls made off the worker thread are
// counted as violations.
type Renderer struct {
	onWorker ThreadCheck

	ops        atomic.Uint64
	violations atomic.Uint64
}

func NewRenderer() *Renderer { return &Renderer{} }

// SetThreadCheck installs the worker thread check.
func (r *Renderer) SetThreadCheck(onWorker ThreadCheck) { r.onWorker = onWorker }

func (r *Renderer) record() {
	r.ops.Add(1)
	if r.onWorker != nil && !r.onWorker() {
		r.violations.Add(1)
	}
}

func (r *Renderer) FillRectangle(d uibridge.Drawable, gc *uibridge.GC, x, y, width, height int) {
	r.record()
}

func (r *Renderer) DrawRectangle(d uibridge.Drawable, gc *uibridge.GC, x, y, width, height int) {
	r.record()
}

func (r *Renderer) DrawLine(d uibridge.Drawable, gc *uibridge.GC, x, y, x2, y2 int) {
	r.record()
}

func (r *Renderer) DrawPoint(d uibridge.Drawable, gc *uibridge.GC, x, y int) {
	r.record()
}

func (r *Renderer) ClearWindow(window uibridge.WindowID) {
	r.record()
}

func (r *Renderer) ClearArea(window uibridge.WindowID, x, y, width, height int) {
	r.record()
}

// Ops returns the number of primitives drawn.
func (r *Renderer) Ops() uint64 { return r.ops.Load() }

// Violations returns the number of primitives drawn off the worker thread.
func (r *Renderer) Violations() uint64 { return r.violations.Load() }
