//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package v8engine

import (
	_ "embed"
	"encoding/json"
	"fmt"

	uibridge "github.com/buke/ui-bridge"
	"github.com/tommie/v8go"
)

var (
	// Variables so tests can simulate V8 failures.
	v8NewIsolate  = v8go.NewIsolate
	v8NewContext  = v8go.NewContext
	jsonUnmarshal = json.Unmarshal
	v8NewValue    = v8go.NewValue
)

//go:embed engine_rpc.js
var rpcScript string

// Engine runs the editor core in a V8 isolate. An isolate may only be entered
// by one thread at a time, which the worker thread guarantees.
type Engine struct {
	Iso       *v8go.Isolate
	Ctx       *v8go.Context
	Option    *EngineOption
	RpcScript string // Entry point for every request
}

// NewFactory returns a factory creating V8 engines for the worker thread.
func NewFactory(opts ...uibridge.EngineOption) uibridge.EngineFactory {
	return func() (uibridge.Engine, error) {
		return newEngine(opts...)
	}
}

// newEngine applies the options, then creates the isolate and its context.
func newEngine(opts ...uibridge.EngineOption) (*Engine, error) {
	e := &Engine{
		Option:    &EngineOption{},
		RpcScript: rpcScript,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if e.Option.RpcScript != "" {
		e.RpcScript = e.Option.RpcScript
	}

	iso := v8NewIsolate()
	if iso == nil {
		return nil, fmt.Errorf("failed to create v8 isolate")
	}
	e.Iso = iso

	ctx := v8NewContext(iso)
	if ctx == nil {
		iso.Dispose()
		e.Iso = nil
		return nil, fmt.Errorf("failed to create v8 context")
	}
	e.Ctx = ctx

	return e, nil
}

// Load evaluates the core scripts in order.
func (e *Engine) Load(scripts []*uibridge.Script) error {
	for _, script := range scripts {
		if _, err := e.Ctx.RunScript(script.Content, script.FileName); err != nil {
			return fmt.Errorf("failed to execute init script %s: %w", script.FileName, err)
		}
	}
	return nil
}

// Execute calls a core function through the rpc shim and reads the settled
// promise. The request crosses into V8 as JSON.
func (e *Engine) Execute(req *uibridge.Request) (*uibridge.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if e.Ctx == nil {
		return nil, fmt.Errorf("engine is closed")
	}

	rpcVal, err := e.Ctx.RunScript(e.RpcScript, "engine_rpc.js")
	if err != nil {
		return nil, fmt.Errorf("failed to run rpc script: %w", err)
	}
	if !rpcVal.IsFunction() {
		return nil, fmt.Errorf("rpc script did not return a function")
	}

	jsonReq, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to json marshal request: %w", err)
	}
	jsReq, err := v8NewValue(e.Iso, string(jsonReq))
	if err != nil {
		return nil, fmt.Errorf("failed to create v8 value from json string: %w", err)
	}

	rpcFn, _ := rpcVal.AsFunction()
	promiseVal, err := rpcFn.Call(e.Ctx.Global(), jsReq)
	if err != nil {
		return nil, fmt.Errorf("rpc function call failed: %w", err)
	}
	promise, err := promiseVal.AsPromise()
	if err != nil {
		return nil, fmt.Errorf("rpc call did not return a promise: %w", err)
	}

	if promise.State() == v8go.Pending {
		e.Ctx.PerformMicrotaskCheckpoint()
	}
	switch promise.State() {
	case v8go.Pending:
		// V8 has no event loop here, so nothing else can settle it
		return nil, fmt.Errorf("core promise did not settle")
	case v8go.Rejected:
		return nil, fmt.Errorf("core execution error: %s", promise.Result().String())
	}

	jsonBytes, _ := promise.Result().MarshalJSON()
	// Circular results marshal to nothing
	if len(jsonBytes) == 0 {
		return nil, fmt.Errorf("failed to marshal response value to json: result is empty")
	}

	res := &uibridge.Response{}
	if err := jsonUnmarshal(jsonBytes, res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return res, nil
}

// Close releases the context and disposes of the isolate.
func (e *Engine) Close() error {
	if e.Ctx != nil {
		e.Ctx.Close()
		e.Ctx = nil
	}
	if e.Iso != nil {
		e.Iso.Dispose()
		e.Iso = nil
	}
	return nil
}
