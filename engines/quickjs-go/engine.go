// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	_ "embed"
	"fmt"

	uibridge "github.com/buke/ui-bridge"
	"github.com/buke/quickjs-go"
)

//go:embed engine_rpc.js
var rpcScript string

// Engine runs the editor core on QuickJS. QuickJS is not goroutine safe, which
// the worker thread guarantees by driving the engine from one locked thread.
type Engine struct {
	Runtime   *quickjs.Runtime
	Ctx       *quickjs.Context
	Option    *EngineOption
	RpcScript string // Entry point for every request
}

// Load evaluates the core scripts in order.
func (e *Engine) Load(scripts []*uibridge.Script) error {
	for _, script := range scripts {
		result := e.Ctx.Eval(script.Content, quickjs.EvalFileName(script.FileName), quickjs.EvalAwait(true))
		if result.IsException() {
			err := e.Ctx.Exception()
			result.Free()
			return fmt.Errorf("failed to execute init script %s: %w", script.FileName, err)
		}
		result.Free()
	}
	return nil
}

// Execute calls a core function through the rpc shim. The request is
// marshaled into the context and the settled response unmarshaled back.
func (e *Engine) Execute(req *uibridge.Request) (*uibridge.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if e.Ctx == nil {
		return nil, fmt.Errorf("engine is closed")
	}

	fn := e.Ctx.Eval(e.RpcScript, quickjs.EvalFileName("engine_rpc.js"))
	defer fn.Free()
	if fn.IsException() {
		return nil, fmt.Errorf("failed to evaluate RPC script: %w", e.Ctx.Exception())
	}

	jsReq, err := e.Ctx.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	defer jsReq.Free()

	jsResp := fn.Execute(e.Ctx.Null(), jsReq).Await()
	defer jsResp.Free()
	if jsResp.IsException() {
		return nil, fmt.Errorf("core execution error: %w", e.Ctx.Exception())
	}

	res := &uibridge.Response{}
	if err := e.Ctx.Unmarshal(jsResp, res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return res, nil
}

// Close releases the context and the runtime.
func (e *Engine) Close() error {
	if e.Ctx != nil {
		e.Ctx.Close()
		e.Ctx = nil
	}
	if e.Runtime != nil {
		e.Runtime.Close()
		e.Runtime = nil
	}
	return nil
}

func newEngine(options ...uibridge.EngineOption) (*Engine, error) {
	rt := quickjs.NewRuntime()
	ctx := rt.NewContext()

	engine := &Engine{
		Runtime: rt,
		Ctx:     ctx,
		Option: &EngineOption{
			MemoryLimit:        0,  // No limit
			GCThreshold:        -1, // No threshold
			Timeout:            0,  // No timeout
			MaxStackSize:       0,
			CanBlock:           false,
			EnableModuleImport: false,
			Strip:              1,
		},
		RpcScript: rpcScript,
	}

	for _, option := range options {
		if err := option(engine); err != nil {
			engine.Close()
			return nil, err
		}
	}
	return engine, nil
}

// NewFactory returns a factory creating QuickJS engines for the worker thread.
func NewFactory(options ...uibridge.EngineOption) uibridge.EngineFactory {
	return func() (uibridge.Engine, error) {
		return newEngine(options...)
	}
}
