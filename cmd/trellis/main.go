// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/bhuisgen/trellis/internal/app/trellis"
)

// command
type command interface {
	Name() string
	Description() string
	Parse(args []string) error
	Execute() error
}

// main is the entrypoint.
func main() {
	err := run(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
}

// run parses and executes the command line.
func run(args []string) error {
	commands := []command{
		NewInitCommand(),
		NewCheckCommand(),
		NewRenderCommand(),
		NewServeCommand(),
		NewVersionCommand(),
	}

	flagset := flag.NewFlagSet("trellis", flag.ContinueOnError)
	var version bool
	flagset.BoolVar(&version, "v", false, "Print version information and quit")
	flagset.Usage = func() {
		fmt.Println()
		fmt.Println("Usage: trellis [OPTIONS] COMMAND")
		fmt.Println()
		fmt.Println("Options:")
		flagset.PrintDefaults()
		fmt.Println()
		fmt.Println("Commands:")
		for _, c := range commands {
			fmt.Printf("  %-16s %s\n", c.Name(), c.Description())
		}
		fmt.Println()
		fmt.Println("Run 'trellis COMMAND --help' for more information on a command.")
	}
	if err := flagset.Parse(args); err != nil {
		return err
	}

	if version {
		fmt.Printf("%s version %s\n", trellis.Name, trellis.Version)
		return nil
	}
	if len(flagset.Args()) == 0 {
		flagset.Usage()
		return nil
	}

	trellis.LoadEnv()

	for _, c := range commands {
		if c.Name() != flagset.Arg(0) {
			continue
		}
		if err := c.Parse(flagset.Args()[1:]); err != nil {
			return err
		}
		if err := c.Execute(); err != nil {
			return err
		}
		return nil
	}

	flagset.Usage()
	return errors.New("invalid command")
}
