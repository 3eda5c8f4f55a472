// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package log

import (
	"io"
	"log"
	"log/slog"
	"os"
)

// ProgramLevel is the common log level.
var ProgramLevel = new(slog.LevelVar)

// output is the writer used by the loggers returned by New.
var output io.Writer = os.Stderr

// SetOutput sets the writer used by the loggers created afterwards.
func SetOutput(w io.Writer) {
	output = w
}

// New returns a logger tagged with the given component id.
func New(id string) *slog.Logger {
	return slog.New(NewHandler(output, id, nil))
}

// SetDebug switches the program level between debug and info.
func SetDebug(debug bool) {
	if debug {
		ProgramLevel.Set(slog.LevelDebug)
		return
	}
	ProgramLevel.Set(slog.LevelInfo)
}

// Fatal is equivalent to Print() followed by a call to os.Exit(1).
func Fatal(v ...any) {
	log.Default().Print(v...)
	os.Exit(1)
}

// Fatalf is equivalent to Printf() followed by a call to os.Exit(1).
func Fatalf(format string, v ...any) {
	log.Default().Printf(format, v...)
	os.Exit(1)
}
