// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	"errors"
	"testing"

	uibridge "github.com/buke/ui-bridge"
	"github.com/stretchr/testify/require"
)

func TestEngine_Load_Success(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	scripts := []*uibridge.Script{
		{FileName: "init.js", Content: "function add(a, b) { return a + b; }"},
	}
	require.NoError(t, engine.Load(scripts))
}

func TestEngine_Load_ScriptError(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	scripts := []*uibridge.Script{
		{FileName: "bad.js", Content: "function () { syntax error }"},
	}
	err = engine.Load(scripts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad.js")
}

func TestEngine_Execute_Success(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Load([]*uibridge.Script{
		{FileName: "hello.js", Content: "function hello(name) { return 'Hello, ' + name; }"},
	}))

	resp, err := engine.Execute(&uibridge.Request{
		Id:      "1",
		Service: "hello",
		Args:    []interface{}{"World"},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, "1", resp.Id)
	require.Equal(t, "Hello, World", resp.Result)
}

func TestEngine_Execute_Selection(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Load([]*uibridge.Script{{
		FileName: "core.js",
		Content:  "function getSelection(window) { return window === 1 ? { start: 3, end: 8 } : null; }",
	}}))

	resp, err := engine.Execute(&uibridge.Request{Service: "getSelection", Args: []interface{}{1}})
	require.NoError(t, err)
	sel, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	require.EqualValues(t, 3, sel["start"])
	require.EqualValues(t, 8, sel["end"])

	resp, err = engine.Execute(&uibridge.Request{Service: "getSelection", Args: []interface{}{2}})
	require.NoError(t, err)
	require.Nil(t, resp.Result)
}

func TestEngine_Execute_Exception(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Load([]*uibridge.Script{{FileName: "empty.js", Content: ""}}))

	_, err = engine.Execute(&uibridge.Request{Id: "2", Service: "foo"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "core execution error")
}

func TestEngine_Execute_NilRequest(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Execute(nil)
	require.Error(t, err)
}

func TestEngine_Execute_Closed(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	_, err = engine.Execute(&uibridge.Request{Service: "foo"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "engine is closed")
}

func TestEngine_Close_Idempotent(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())
}

func TestEngine_NewEngine_OptionError(t *testing.T) {
	opt := func(e uibridge.Engine) error { return errors.New("option error") }
	engine, err := newEngine(opt)
	require.Error(t, err)
	require.Nil(t, engine)
}

func TestEngine_Execute_EvalRpcScriptException(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	engine.RpcScript = "throw new Error('bad rpc script');"

	_, err = engine.Execute(&uibridge.Request{Id: "1", Service: "add", Args: []interface{}{1, 2}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to evaluate RPC script")
}

func TestEngine_Execute_MarshalRequestError(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	engine.RpcScript = "(req) => req"

	type Unmarshalable struct {
		Ch chan int
	}
	_, err = engine.Execute(&uibridge.Request{
		Id:      "1",
		Service: "add",
		Args:    []interface{}{Unmarshalable{make(chan int)}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to marshal request")
}

func TestEngine_Execute_UnmarshalResponseError(t *testing.T) {
	engine, err := newEngine()
	require.NoError(t, err)
	defer engine.Close()

	engine.RpcScript = `(req) => Symbol("x")`

	_, err = engine.Execute(&uibridge.Request{Id: "1", Service: "add", Args: []interface{}{1, 2}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to unmarshal response")
}
