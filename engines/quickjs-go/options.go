// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	"fmt"

	uibridge "github.com/buke/ui-bridge"
)

// EngineOption holds the runtime limits applied to a QuickJS engine.
type EngineOption struct {
	Timeout            uint64 `json:"timeout"`            // Core call timeout in seconds (0 = none)
	MemoryLimit        uint64 `json:"memoryLimit"`        // Bytes (0 = no limit)
	GCThreshold        int64  `json:"gcThreshold"`        // Bytes (-1 = disabled, 0 = default)
	MaxStackSize       uint64 `json:"maxStackSize"`       // Bytes (0 = default)
	CanBlock           bool   `json:"canBlock"`           // Allow Atomics.wait in the core
	EnableModuleImport bool   `json:"enableModuleImport"` // Allow ES module imports
	Strip              int    `json:"strip"`              // Debug info stripped from bytecode, 0 to 2
}

// configure applies fn to the QuickJS engine behind engine.
func configure(name string, engine uibridge.Engine, fn func(e *Engine) error) error {
	e, ok := engine.(*Engine)
	if !ok {
		return fmt.Errorf("invalid engine type for %s", name)
	}
	return fn(e)
}

// WithGCThreshold sets the allocation threshold that triggers a collection.
func WithGCThreshold(threshold int64) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		return configure("WithGCThreshold", engine, func(e *Engine) error {
			if threshold < -1 {
				return fmt.Errorf("invalid GC threshold: %d", threshold)
			}
			e.Option.GCThreshold = threshold
			e.Runtime.SetGCThreshold(threshold)
			return nil
		})
	}
}

// WithMemoryLimit caps the memory of the core's runtime.
func WithMemoryLimit(limit uint64) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		return configure("WithMemoryLimit", engine, func(e *Engine) error {
			e.Option.MemoryLimit = limit
			e.Runtime.SetMemoryLimit(limit)
			return nil
		})
	}
}

// WithTimeout interrupts core calls running longer than timeout seconds.
// A runaway core would otherwise hold the worker thread forever.
func WithTimeout(timeout uint64) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		return configure("WithTimeout", engine, func(e *Engine) error {
			e.Option.Timeout = timeout
			e.Runtime.SetExecuteTimeout(timeout)
			return nil
		})
	}
}

// WithMaxStackSize sets the runtime stack size.
func WithMaxStackSize(size uint64) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		return configure("WithMaxStackSize", engine, func(e *Engine) error {
			e.Option.MaxStackSize = size
			e.Runtime.SetMaxStackSize(size)
			return nil
		})
	}
}

func WithCanBlock(canBlock bool) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		return configure("WithCanBlock", engine, func(e *Engine) error {
			e.Option.CanBlock = canBlock
			e.Runtime.SetCanBlock(canBlock)
			return nil
		})
	}
}

func WithEnableModuleImport(enable bool) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		return configure("WithEnableModuleImport", engine, func(e *Engine) error {
			e.Option.EnableModuleImport = enable
			e.Runtime.SetModuleImport(enable)
			return nil
		})
	}
}

// WithStrip sets how much debug information is stripped from bytecode.
func WithStrip(strip int) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		return configure("WithStrip", engine, func(e *Engine) error {
			if strip < 0 || strip > 2 {
				return fmt.Errorf("invalid strip level: %d", strip)
			}
			e.Option.Strip = strip
			e.Runtime.SetStripInfo(strip)
			return nil
		})
	}
}

// WithRpcScript replaces the entry point every request goes through. The
// script must evaluate to a function taking the request.
func WithRpcScript(script string) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		return configure("WithRpcScript", engine, func(e *Engine) error {
			if script == "" {
				return fmt.Errorf("rpc script cannot be empty")
			}
			e.RpcScript = script
			return nil
		})
	}
}
