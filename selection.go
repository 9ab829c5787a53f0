// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package uibridge

import (
	"fmt"
	"math"
)

// WindowID is the toolkit handle of a window.
type WindowID int16

// Selection is the current text selection of a window, as character offsets.
// A nil *Selection means no answer is available.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SelectionProvider computes the selection of a window. It is only called on
// the worker thread.
type SelectionProvider interface {
	Selection(window WindowID) (*Selection, error)
}

// SelectionProviderFunc adapts a function to SelectionProvider.
type SelectionProviderFunc func(window WindowID) (*Selection, error)

// Selection calls f(window).
func (f SelectionProviderFunc) Selection(window WindowID) (*Selection, error) {
	return f(window)
}

// decodeSelection converts an editor core result into a Selection.
// The core answers either null or an object with numeric start and end.
func decodeSelection(v interface{}) (*Selection, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("selection result has type %T, want object", v)
	}
	start, err := toOffset(m["start"])
	if err != nil {
		return nil, fmt.Errorf("selection start: %w", err)
	}
	end, err := toOffset(m["end"])
	if err != nil {
		return nil, fmt.Errorf("selection end: %w", err)
	}
	if end < start {
		return nil, fmt.Errorf("selection end %d before start %d", end, start)
	}
	return &Selection{Start: start, End: end}, nil
}

// toOffset accepts the numeric types the different engines export.
func toOffset(v interface{}) (int, error) {
	var off int
	switch n := v.(type) {
	case int:
		off = n
	case int32:
		off = int(n)
	case int64:
		off = int(n)
	case uint32:
		off = int(n)
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("invalid offset %v", n)
		}
		off = int(n)
	case nil:
		return 0, fmt.Errorf("missing offset")
	default:
		return 0, fmt.Errorf("offset has type %T", v)
	}
	if off < 0 {
		return 0, fmt.Errorf("invalid offset %d", off)
	}
	return off, nil
}
