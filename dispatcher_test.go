// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingHooks counts the calls the dispatcher makes into the call layer.
type recordingHooks struct {
	begins   atomic.Int32
	ends     atomic.Int32
	services atomic.Int32
	wake     chan struct{}
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{wake: make(chan struct{}, 1)}
}

func (h *recordingHooks) BeginSynchronous()     { h.begins.Add(1) }
func (h *recordingHooks) EndSynchronous()       { h.ends.Add(1) }
func (h *recordingHooks) Wake() <-chan struct{} { return h.wake }
func (h *recordingHooks) Service() bool         { h.services.Add(1); return true }

func TestDispatcher_SideEffectsVisible(t *testing.T) {
	m := startedMain(t)
	d := NewDispatcher(m, nil, nil)

	// Plain variables: the completion signal orders the write before the read
	values := make([]int, 0)
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, d.SubmitAndWait(func() { values = append(values, i) }))
		require.Len(t, values, i+1)
		require.Equal(t, i, values[i])
	}
	require.Equal(t, uint64(50), d.Submitted())
}

func TestDispatcher_RunsOnMainThread(t *testing.T) {
	m := startedMain(t)
	d := NewDispatcher(m, nil, nil)

	onMain, err := Call(d, m.IsCurrent)
	require.NoError(t, err)
	require.True(t, onMain)
}

func TestDispatcher_FromMainThread(t *testing.T) {
	m := startedMain(t)
	d := NewDispatcher(m, nil, nil)

	errCh := make(chan error, 1)
	require.NoError(t, m.Post(func() {
		errCh <- d.SubmitAndWait(func() {})
	}))
	require.ErrorIs(t, <-errCh, ErrOnMainThread)
}

func TestDispatcher_NotStarted(t *testing.T) {
	d := NewDispatcher(NewMainThread(), nil, nil)
	err := d.SubmitAndWait(func() {})
	require.ErrorIs(t, err, ErrNotStarted)
	require.Contains(t, err.Error(), "failed to submit job")
}

func TestDispatcher_InterruptKeepsWaiting(t *testing.T) {
	m := startedMain(t)
	d := NewDispatcher(m, nil, nil)

	release := make(chan struct{})
	var finished atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- d.SubmitAndWait(func() {
			<-release
			finished.Store(true)
		})
	}()

	require.Eventually(t, func() bool {
		d.Interrupt()
		return d.Interrupted() > 0
	}, time.Second, time.Millisecond)

	// Still waiting for the job
	select {
	case err := <-result:
		t.Fatalf("SubmitAndWait returned early: %v", err)
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-result)
	require.True(t, finished.Load())
}

func TestDispatcher_ServicesHooksWhileWaiting(t *testing.T) {
	m := startedMain(t)
	hooks := newRecordingHooks()
	d := NewDispatcher(m, hooks, nil)

	release := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- d.SubmitAndWait(func() { <-release })
	}()

	require.Eventually(t, func() bool { return hooks.begins.Load() == 1 }, time.Second, time.Millisecond)
	hooks.wake <- struct{}{}
	require.Eventually(t, func() bool { return hooks.services.Load() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, int32(0), hooks.ends.Load())

	close(release)
	require.NoError(t, <-result)
	require.Equal(t, int32(1), hooks.ends.Load())
}

func TestDispatcher_EndSynchronousOnSubmitError(t *testing.T) {
	hooks := newRecordingHooks()
	d := NewDispatcher(NewMainThread(), hooks, nil)

	require.Error(t, d.SubmitAndWait(func() {}))
	require.Equal(t, int32(1), hooks.begins.Load())
	require.Equal(t, int32(1), hooks.ends.Load())
}

func TestCall(t *testing.T) {
	m := startedMain(t)
	d := NewDispatcher(m, nil, nil)

	s, err := Call(d, func() string { return "hello" })
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}
