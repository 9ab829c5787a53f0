// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

// jobStatus represents the current status of a job.
type jobStatus int

const (
	jobStatusPending   jobStatus = iota // Job is queued on the main thread
	jobStatusRunning                    // Job is executing on the main thread
	jobStatusCompleted                  // Job has finished, done is closed
)

// job is a unit of work handed from the worker thread to the main thread.
// It is owned by the call that created it; the main thread only borrows it
// while executing fn.
type job struct {
	fn     func()
	done   chan struct{} // Closed by the main thread once fn has returned
	err    error         // Set before done is closed if fn panicked or never ran
	status jobStatus
}

// newJob creates a pending job for fn.
func newJob(fn func()) *job {
	return &job{
		fn:     fn,
		done:   make(chan struct{}),
		status: jobStatusPending,
	}
}

// complete records err and releases the waiter. Called exactly once.
func (j *job) complete(err error) {
	j.err = err
	j.status = jobStatusCompleted
	close(j.done)
}
