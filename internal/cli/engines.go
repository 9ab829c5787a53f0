// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"sort"

	uibridge "github.com/buke/ui-bridge"
	gojaengine "github.com/buke/ui-bridge/engines/goja"
	quickjsengine "github.com/buke/ui-bridge/engines/quickjs-go"
)

// engines maps an engine name to its factory constructor.
var engines = map[string]func() uibridge.EngineFactory{
	"goja": func() uibridge.EngineFactory {
		return gojaengine.NewFactory(gojaengine.WithEnableConsole())
	},
	"quickjs": func() uibridge.EngineFactory {
		return quickjsengine.NewFactory(quickjsengine.WithMaxStackSize(1024 * 1024))
	},
}

// EngineNames returns the registered engine names, sorted.
func EngineNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// engineFactory returns the factory registered under name.
func engineFactory(name string) (uibridge.EngineFactory, error) {
	newFactory, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q: must be one of %v", name, EngineNames())
	}
	return newFactory(), nil
}
