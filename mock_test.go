// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"errors"
	"sync"
	"sync/atomic"
)

// mockEngine is a simple mock implementation of Engine for testing.
type mockEngine struct {
	mu          sync.Mutex
	loadCalled  bool
	closeCalled bool
	scripts     []*Script // Scripts passed to Load
	executedReq *Request  // Last executed request
	executeResp *Response // Response to return from Execute
	executeErr  error     // Error to return from Execute

	loadFunc    func(scripts []*Script) error         // Custom Load behavior (if set)
	executeFunc func(req *Request) (*Response, error) // Custom Execute behavior (if set)
	closeFunc   func() error                          // Custom Close behavior (if set)
}

func (m *mockEngine) Load(scripts []*Script) error {
	m.mu.Lock()
	m.loadCalled = true
	m.scripts = scripts
	m.mu.Unlock()
	if m.loadFunc != nil {
		return m.loadFunc(scripts)
	}
	return nil
}

func (m *mockEngine) Execute(req *Request) (*Response, error) {
	m.mu.Lock()
	m.executedReq = req
	m.mu.Unlock()
	if m.executeFunc != nil {
		return m.executeFunc(req)
	}
	return m.executeResp, m.executeErr
}

func (m *mockEngine) Close() error {
	m.mu.Lock()
	m.closeCalled = true
	m.mu.Unlock()
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockEngine) closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalled
}

func (m *mockEngine) loadedScripts() []*Script {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scripts
}

// mockEngineFactory returns a factory handing out engine every time.
func mockEngineFactory(engine *mockEngine) EngineFactory {
	return func() (Engine, error) {
		return engine, nil
	}
}

// selectionEngine answers getSelection from a fixed table and echoes the
// service name for every other request.
func selectionEngine(selections map[WindowID]Selection) *mockEngine {
	return &mockEngine{
		executeFunc: func(req *Request) (*Response, error) {
			if req.Service != DefaultSelectionService {
				return &Response{Id: req.Id, Result: req.Service}, nil
			}
			window := WindowID(req.Args[0].(int))
			sel, ok := selections[window]
			if !ok {
				return &Response{Id: req.Id}, nil
			}
			return &Response{
				Id:     req.Id,
				Result: map[string]interface{}{"start": sel.Start, "end": sel.End},
			}, nil
		},
	}
}

// fakeView is the view handed out by fakeToolkit.
type fakeView struct {
	window WindowID
}

func (v *fakeView) Window() WindowID { return v.window }

// fakeClipboard keeps text in memory.
type fakeClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *fakeClipboard) SetText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

func (c *fakeClipboard) Text() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

// fakeToolkit records whether each call ran on the main thread.
type fakeToolkit struct {
	isMain func() bool

	created      atomic.Int32
	offMainCalls atomic.Int32
	clipboard    fakeClipboard
	x, y         int
	createErr    error

	onCreate func(window WindowID) // Runs inside CreateView, on the main thread
}

func (tk *fakeToolkit) check() {
	if tk.isMain != nil && !tk.isMain() {
		tk.offMainCalls.Add(1)
	}
}

func (tk *fakeToolkit) CreateView(window WindowID, visible, focusedByDefault bool) (View, error) {
	tk.check()
	if tk.createErr != nil {
		return nil, tk.createErr
	}
	if tk.onCreate != nil {
		tk.onCreate(window)
	}
	tk.created.Add(1)
	return &fakeView{window: window}, nil
}

func (tk *fakeToolkit) LocationOnScreen(view View) (int, int) {
	tk.check()
	return tk.x, tk.y
}

func (tk *fakeToolkit) Clipboard() (Clipboard, error) {
	tk.check()
	return &tk.clipboard, nil
}

func (tk *fakeToolkit) RequestDirectoryAccess() error {
	tk.check()
	return errors.New("access denied")
}

// imCall is one recorded input method call.
type imCall struct {
	op    string
	state QueryState // Arbiter state while the call ran
	info  CursorAnchorInfo
}

// fakeInputMethod records its calls and the arbiter state during each one.
type fakeInputMethod struct {
	arbiter *Arbiter

	mu    sync.Mutex
	calls []imCall

	during func() // Runs inside every call, like an input method reentering the view
}

func (im *fakeInputMethod) record(op string, info CursorAnchorInfo) {
	im.mu.Lock()
	im.calls = append(im.calls, imCall{op: op, state: im.arbiter.State(), info: info})
	im.mu.Unlock()
	if im.during != nil {
		im.during()
	}
}

func (im *fakeInputMethod) UpdateSelection(view View, selStart, selEnd, compStart, compEnd int) {
	im.record("updateSelection", CursorAnchorInfo{})
}

func (im *fakeInputMethod) InvalidateInput(view View) {
	im.record("invalidateInput", CursorAnchorInfo{})
}

func (im *fakeInputMethod) RestartInput(view View) {
	im.record("restartInput", CursorAnchorInfo{})
}

func (im *fakeInputMethod) UpdateCursorAnchorInfo(view View, info CursorAnchorInfo) {
	im.record("updateCursorAnchorInfo", info)
}

func (im *fakeInputMethod) ops() []string {
	im.mu.Lock()
	defer im.mu.Unlock()
	ops := make([]string, len(im.calls))
	for i, c := range im.calls {
		ops[i] = c.op
	}
	return ops
}

func (im *fakeInputMethod) last() imCall {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.calls[len(im.calls)-1]
}

// fakeRenderer counts drawing calls.
type fakeRenderer struct {
	calls atomic.Int32
}

func (r *fakeRenderer) FillRectangle(d Drawable, gc *GC, x, y, width, height int) { r.calls.Add(1) }
func (r *fakeRenderer) DrawRectangle(d Drawable, gc *GC, x, y, width, height int) { r.calls.Add(1) }
func (r *fakeRenderer) DrawLine(d Drawable, gc *GC, x, y, x2, y2 int)             { r.calls.Add(1) }
func (r *fakeRenderer) DrawPoint(d Drawable, gc *GC, x, y int)                    { r.calls.Add(1) }
func (r *fakeRenderer) ClearWindow(window WindowID)                               { r.calls.Add(1) }
func (r *fakeRenderer) ClearArea(window WindowID, x, y, width, height int)        { r.calls.Add(1) }

// fakeDrawable is a pixmap handle.
type fakeDrawable int

func (d fakeDrawable) Handle() int { return int(d) }
