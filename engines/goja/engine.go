// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package gojaengine

import (
	_ "embed"
	"fmt"

	uibridge "github.com/buke/ui-bridge"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

//go:embed engine_rpc.js
var rpcScript string

// Engine runs the editor core on Goja. The runtime belongs to an event loop,
// so core promises and timers settle between calls.
type Engine struct {
	Loop   *eventloop.EventLoop // Owns the runtime and serializes access to it
	Option *EngineOption
}

// NewFactory returns a factory creating Goja engines for the worker thread.
func NewFactory(opts ...uibridge.EngineOption) uibridge.EngineFactory {
	return func() (uibridge.Engine, error) {
		return newEngine(opts...)
	}
}

func newEngine(opts ...uibridge.EngineOption) (*Engine, error) {
	loop := eventloop.NewEventLoop()

	e := &Engine{
		Loop:   loop,
		Option: &EngineOption{},
	}

	// The loop must run before options, which apply on it
	loop.Start()

	// Core responses use the json names of the bridge types
	WithFieldNameMapper(goja.TagFieldNameMapper("json", true))(e)

	for _, opt := range opts {
		if err := opt(e); err != nil {
			loop.Stop()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// run executes fn on the loop and waits for it.
func (e *Engine) run(fn func(vm *goja.Runtime)) {
	done := make(chan struct{})
	e.Loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		fn(vm)
	})
	<-done
}

// Load evaluates the core scripts in order.
func (e *Engine) Load(scripts []*uibridge.Script) error {
	var err error
	e.run(func(vm *goja.Runtime) {
		for _, script := range scripts {
			if _, runErr := vm.RunScript(script.FileName, script.Content); runErr != nil {
				err = fmt.Errorf("failed to execute init script %s: %w", script.FileName, runErr)
				return
			}
		}
	})
	return err
}

// Execute calls a core function through the rpc shim and waits for its
// promise to settle.
func (e *Engine) Execute(req *uibridge.Request) (*uibridge.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	resultChan := make(chan *uibridge.Response, 1)
	errorChan := make(chan error, 1)

	e.Loop.RunOnLoop(func(vm *goja.Runtime) {
		fnValue, err := vm.RunScript("engine_rpc.js", rpcScript)
		if err != nil {
			errorChan <- fmt.Errorf("failed to load rpc script: %w", err)
			return
		}
		fn, ok := goja.AssertFunction(fnValue)
		if !ok {
			errorChan <- fmt.Errorf("rpc script did not return a function")
			return
		}

		resPromise, err := fn(goja.Undefined(), vm.ToValue(req))
		if err != nil {
			errorChan <- fmt.Errorf("failed to call rpc function: %w", err)
			return
		}
		if goja.IsUndefined(resPromise) || goja.IsNull(resPromise) {
			errorChan <- fmt.Errorf("rpc call did not return a promise-like object")
			return
		}

		promiseObj := resPromise.ToObject(vm)
		then, ok := goja.AssertFunction(promiseObj.Get("then"))
		if !ok {
			errorChan <- fmt.Errorf("rpc call did not return a promise (missing .then method)")
			return
		}

		onSuccess := func(call goja.FunctionCall) goja.Value {
			var response uibridge.Response
			if err := vm.ExportTo(call.Argument(0), &response); err != nil {
				errorChan <- fmt.Errorf("failed to export result: %w", err)
			} else {
				resultChan <- &response
			}
			return goja.Undefined()
		}
		onError := func(call goja.FunctionCall) goja.Value {
			errorChan <- fmt.Errorf("core execution error: %s", call.Argument(0).String())
			return goja.Undefined()
		}

		if _, err := then(promiseObj, vm.ToValue(onSuccess), vm.ToValue(onError)); err != nil {
			errorChan <- fmt.Errorf("failed to invoke promise.then: %w", err)
		}
	})

	select {
	case response := <-resultChan:
		return response, nil
	case err := <-errorChan:
		return nil, err
	}
}

// Close stops the event loop.
func (e *Engine) Close() error {
	if e.Loop != nil {
		e.Loop.Stop()
		e.Loop = nil
	}
	return nil
}
