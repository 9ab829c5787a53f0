// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"testing"

	"github.com/buke/ui-bridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand(config.Default())
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--no-color"))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand(config.Default())
	for _, name := range []string{"run", "engines", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommand_Flags(t *testing.T) {
	cfg := config.Default()
	cfg.LogFile = "custom.log"
	cmd := NewRootCommand(cfg)

	flag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)

	flag = cmd.PersistentFlags().Lookup("log-file")
	require.NotNil(t, flag)
	assert.Equal(t, "custom.log", flag.DefValue)

	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "goja", run.Flags().Lookup("engine").DefValue)
	assert.Equal(t, "3", run.Flags().Lookup("windows").DefValue)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "uibridge-demo dev\n", out)
}

func TestEnginesCommand(t *testing.T) {
	out, _, err := execute(t, "engines")
	require.NoError(t, err)
	assert.Contains(t, out, "goja\n")
	assert.Contains(t, out, "quickjs\n")
	assert.Equal(t, EngineNames(), splitLines(out))
}

func splitLines(s string) []string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = string(l)
	}
	return names
}
