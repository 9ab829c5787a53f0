// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package cli

import (
	uibridge "github.com/buke/ui-bridge"
	v8engine "github.com/buke/ui-bridge/engines/v8go"
)

func init() {
	engines["v8"] = func() uibridge.EngineFactory { return v8engine.NewFactory() }
}
