//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package v8engine

import (
	"fmt"

	uibridge "github.com/buke/ui-bridge"
)

// EngineOption holds specific configurations for the V8 engine. Options are
// applied before the isolate exists.
type EngineOption struct {
	RpcScript string
}

// WithRpcScript replaces the entry point every request goes through.
func WithRpcScript(script string) uibridge.EngineOption {
	return func(engine uibridge.Engine) error {
		e, ok := engine.(*Engine)
		if !ok {
			return fmt.Errorf("invalid engine type for WithRpcScript")
		}
		e.Option.RpcScript = script
		return nil
	}
}
