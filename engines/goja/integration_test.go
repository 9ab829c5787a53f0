// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package gojaengine

import (
	"context"
	"sync"
	"testing"

	uibridge "github.com/buke/ui-bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coreScript = `
	const selections = {};
	function setSelection(window, start, end) {
		selections[window] = { start: start, end: end };
		return true;
	}
	function getSelection(window) {
		return selections[window] || null;
	}
	async function describe(window) {
		await new Promise(resolve => setTimeout(resolve, 5));
		const sel = getSelection(window);
		return sel ? sel.start + ':' + sel.end : 'none';
	}
`

func newGojaService(t *testing.T) *uibridge.Service {
	t.Helper()
	svc, err := uibridge.NewService(
		uibridge.WithEngine(NewFactory()),
		uibridge.WithScripts(&uibridge.Script{FileName: "core.js", Content: coreScript}),
		uibridge.WithArbiter(uibridge.NewArbiter()),
	)
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	t.Cleanup(func() { svc.Stop() })
	return svc
}

// TestIntegration_GojaService_Execute calls the core from another goroutine.
func TestIntegration_GojaService_Execute(t *testing.T) {
	svc := newGojaService(t)

	_, err := svc.Execute(&uibridge.Request{Service: "setSelection", Args: []interface{}{3, 4, 9}})
	require.NoError(t, err)

	resp, err := svc.Execute(&uibridge.Request{Id: "d-1", Service: "describe", Args: []interface{}{3}})
	require.NoError(t, err)
	require.Equal(t, "4:9", resp.Result)
	require.Equal(t, "d-1", resp.Id)
}

// TestIntegration_GojaService_ViewGetSelection answers input method queries
// through the worker.
func TestIntegration_GojaService_ViewGetSelection(t *testing.T) {
	svc := newGojaService(t)

	_, err := svc.Execute(&uibridge.Request{Service: "setSelection", Args: []interface{}{1, 2, 5}})
	require.NoError(t, err)

	sel := svc.ViewGetSelection(context.Background(), 1)
	require.Equal(t, &uibridge.Selection{Start: 2, End: 5}, sel)

	require.Nil(t, svc.ViewGetSelection(context.Background(), 2))
	require.Equal(t, uibridge.QueryIdle, svc.Arbiter().State())
}

// TestIntegration_GojaService_SelectionOnWorker queries from the worker
// thread itself, which computes the answer directly.
func TestIntegration_GojaService_SelectionOnWorker(t *testing.T) {
	svc := newGojaService(t)

	var sel *uibridge.Selection
	err := svc.Run(func(engine uibridge.Engine) error {
		if _, err := engine.Execute(&uibridge.Request{Service: "setSelection", Args: []interface{}{7, 0, 3}}); err != nil {
			return err
		}
		sel = svc.ViewGetSelection(context.Background(), 7)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, &uibridge.Selection{Start: 0, End: 3}, sel)
}

// TestIntegration_GojaService_Concurrent mixes core calls and queries.
func TestIntegration_GojaService_Concurrent(t *testing.T) {
	svc := newGojaService(t)

	_, err := svc.Execute(&uibridge.Request{Service: "setSelection", Args: []interface{}{1, 1, 2}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp, err := svc.Execute(&uibridge.Request{Service: "describe", Args: []interface{}{1}})
			if assert.NoError(t, err) {
				assert.Equal(t, "1:2", resp.Result)
			}
		}()
		go func() {
			defer wg.Done()
			// Another query may be in flight, so nil is a valid answer
			if sel := svc.ViewGetSelection(context.Background(), 1); sel != nil {
				assert.Equal(t, uibridge.Selection{Start: 1, End: 2}, *sel)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, uibridge.QueryIdle, svc.Arbiter().State())
}
