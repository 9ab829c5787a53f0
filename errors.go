// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"errors"
	"fmt"
)

var (
	ErrLoopStopped     = errors.New("main thread loop is stopped")
	ErrAlreadyStarted  = errors.New("already started")
	ErrNotStarted      = errors.New("not started")
	ErrOnMainThread    = errors.New("synchronous call issued from the main thread")
	ErrJobPanicked     = errors.New("job panicked on the main thread")
	ErrNotWorkerThread = errors.New("call must be made from the worker thread")
	ErrWorkerStopped   = errors.New("worker thread is stopped")
	ErrOnWorkerThread  = errors.New("control call issued from the worker thread")
	ErrNoToolkit       = errors.New("no toolkit configured")
	ErrNoInputMethod   = errors.New("no input method configured")
	ErrNoRenderer      = errors.New("no renderer configured")
	ErrArbiterInUse    = errors.New("query arbiter is in use by another running service")
)

// ProtocolViolationError reports that the query arbiter observed a state
// which the exclusive-section protocol makes impossible. Execution cannot
// continue soundly after one.
type ProtocolViolationError struct {
	Op       string     // Operation that observed the state
	Observed QueryState // State found when the operation swapped in its own
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("query protocol violation in %s: incorrect previous state %s", e.Op, e.Observed)
}
