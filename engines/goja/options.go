// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package gojaengine

import (
	"fmt"

	uibridge "github.com/buke/ui-bridge"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// EngineOption holds configuration for a Goja engine instance.
type EngineOption struct {
	MaxCallStackSize int
	EnableConsole    bool
	EnableRequire    bool
	FieldNameMapper  goja.FieldNameMapper
	Globals          []string // Names set with WithGlobal
}

// asEngine returns the Goja engine behind a bridge engine.
func asEngine(engine uibridge.Engine) (*Engine, error) {
	e, ok := engine.(*Engine)
	if !ok {
		return nil, fmt.Errorf("option requires a goja engine, got %T", engine)
	}
	return e, nil
}

// WithMaxCallStackSize sets the maximum call stack size for the runtime.
// A value of 0 or less means no limit.
func WithMaxCallStackSize(size int) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		e, err := asEngine(engine)
		if err != nil {
			return err
		}
		e.Option.MaxCallStackSize = size
		e.run(func(vm *goja.Runtime) {
			vm.SetMaxCallStackSize(size)
		})
		return nil
	}
}

// WithEnableConsole enables console.log and friends in the core.
func WithEnableConsole() uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		e, err := asEngine(engine)
		if err != nil {
			return err
		}
		e.Option.EnableConsole = true
		e.run(func(vm *goja.Runtime) {
			console.Enable(vm)
		})
		return nil
	}
}

// WithRequire enables require() for CommonJS modules.
func WithRequire() uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		e, err := asEngine(engine)
		if err != nil {
			return err
		}
		e.Option.EnableRequire = true
		e.run(func(vm *goja.Runtime) {
			new(require.Registry).Enable(vm)
		})
		return nil
	}
}

// WithFieldNameMapper sets how Go struct fields are named in the core.
func WithFieldNameMapper(mapper goja.FieldNameMapper) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		e, err := asEngine(engine)
		if err != nil {
			return err
		}
		if mapper != nil {
			e.Option.FieldNameMapper = mapper
			e.run(func(vm *goja.Runtime) {
				vm.SetFieldNameMapper(mapper)
			})
		}
		return nil
	}
}

// WithGlobal exposes a Go value, typically a host function, to the core.
// Host functions run on the engine's event loop, not on the worker thread.
func WithGlobal(name string, value interface{}) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		e, err := asEngine(engine)
		if err != nil {
			return err
		}
		if name == "" {
			return fmt.Errorf("global name cannot be empty")
		}
		var setErr error
		e.run(func(vm *goja.Runtime) {
			setErr = vm.Set(name, value)
		})
		if setErr != nil {
			return fmt.Errorf("failed to set global %s: %w", name, setErr)
		}
		e.Option.Globals = append(e.Option.Globals, name)
		return nil
	}
}
