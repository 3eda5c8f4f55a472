// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package trellis implements the application rendering templates with the
// store helpers.
package trellis

import (
	"os"

	"github.com/bhuisgen/trellis/pkg/log"
)

var (
	Name    string = "Trellis"
	Version string = "dev"
	Commit  string = "-"
	Date    string = "-"

	DEBUG       bool   = false
	CONFIG_FILE string = ""
)

// LoadEnv loads the settings from the environment.
func LoadEnv() {
	if v, ok := os.LookupEnv("CONFIG_FILE"); ok {
		CONFIG_FILE = v
	}
	if v, ok := os.LookupEnv("DEBUG"); ok && v != "0" {
		DEBUG = true
	}

	log.SetDebug(DEBUG)
}
