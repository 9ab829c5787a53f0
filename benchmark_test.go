//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge_test

import (
	"context"
	"testing"

	uibridge "github.com/buke/ui-bridge"
	gojaengine "github.com/buke/ui-bridge/engines/goja"
	quickjsengine "github.com/buke/ui-bridge/engines/quickjs-go"
	v8engine "github.com/buke/ui-bridge/engines/v8go"
)

const benchmarkCoreScript = `
function getSelection(window) {
    return { start: window, end: window + 10 };
}
`

// BenchmarkSubmitAndWait measures a worker-to-main round trip.
func BenchmarkSubmitAndWait(b *testing.B) {
	mainThread := uibridge.NewMainThread(uibridge.WithMainLogger(nil))
	if err := mainThread.Start(); err != nil {
		b.Fatalf("Failed to start main thread: %v", err)
	}
	defer mainThread.Stop()
	d := uibridge.NewDispatcher(mainThread, nil, nil)

	counter := 0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.SubmitAndWait(func() { counter++ }); err != nil {
			b.Fatalf("SubmitAndWait failed: %v", err)
		}
	}
}

// BenchmarkTryBeginWorkerQuery measures the uncontended arbiter fast path.
func BenchmarkTryBeginWorkerQuery(b *testing.B) {
	a := uibridge.NewArbiter(uibridge.WithArbiterLogger(nil))
	sel := &uibridge.Selection{Start: 1, End: 2}
	answer := func() *uibridge.Selection { return sel }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.TryBeginWorkerQuery(answer)
	}
}

// runSelectionBenchmark measures input method selection queries answered by
// the core on the worker thread.
func runSelectionBenchmark(b *testing.B, factory uibridge.EngineFactory) {
	svc, err := uibridge.NewService(
		uibridge.WithEngine(factory),
		uibridge.WithScripts(&uibridge.Script{FileName: "benchmark.js", Content: benchmarkCoreScript}),
		uibridge.WithArbiter(uibridge.NewArbiter()),
		uibridge.WithLogger(nil),
	)
	if err != nil {
		b.Fatalf("Failed to create service: %v", err)
	}
	if err := svc.Start(); err != nil {
		b.Fatalf("Failed to start service: %v", err)
	}
	defer svc.Stop()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if sel := svc.ViewGetSelection(ctx, 1); sel == nil || sel.End != 11 {
			b.Fatalf("unexpected selection %v", sel)
		}
	}
}

func BenchmarkViewGetSelection_Goja(b *testing.B) {
	runSelectionBenchmark(b, gojaengine.NewFactory())
}

func BenchmarkViewGetSelection_QuickJS(b *testing.B) {
	runSelectionBenchmark(b, quickjsengine.NewFactory())
}

func BenchmarkViewGetSelection_V8(b *testing.B) {
	runSelectionBenchmark(b, v8engine.NewFactory())
}
