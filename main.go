// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// bwactl - Balboa spa controller tool
//
// A CLI tool for monitoring, controlling and emulating Balboa spa
// controllers over their RS-485 bus or WiFi module.

package main

import (
	"os"

	"github.com/Thermoquad/bwactl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
