// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

// Request is a call into the editor core running on the worker thread.
type Request struct {
	Id      string                 `json:"id" js:"id"`           // Unique identifier for the request
	Service string                 `json:"service" js:"service"` // Core function to call
	Args    []interface{}          `json:"args" js:"args"`       // Arguments to pass to the function
	Context map[string]interface{} `json:"context" js:"context"` // Additional context data
}

// Response is the result of a Request.
type Response struct {
	Id      string                 `json:"id" js:"id"`           // Request ID that this response corresponds to
	Result  interface{}            `json:"result" js:"result"`   // Execution result
	Context map[string]interface{} `json:"context" js:"context"` // Updated context data
}

// Script is a piece of editor core source loaded into an engine.
type Script struct {
	Content  string // Script content
	FileName string // Script file name for debugging purposes
}

// Engine is the scripting runtime that hosts the editor core.
// An engine is only ever driven from the worker thread.
type Engine interface {
	// Load evaluates the given scripts in order.
	Load(scripts []*Script) error

	// Execute calls a core function and returns its response.
	Execute(req *Request) (*Response, error)

	// Close releases the engine.
	Close() error
}

// EngineFactory creates the engine for a worker thread.
type EngineFactory func() (Engine, error)

// EngineOption configures an engine after it has been created.
type EngineOption func(Engine) error
