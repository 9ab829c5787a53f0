// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Command uibridge-demo drives the UI bridge against a simulated toolkit.
package main

import (
	"fmt"
	"os"

	"github.com/buke/ui-bridge/internal/cli"
	"github.com/buke/ui-bridge/internal/config"
	"github.com/fatih/color"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		color.Red("configuration error: %v", err)
		os.Exit(2)
	}
	if err := cli.NewRootCommand(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
