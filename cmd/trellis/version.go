package main

import (
	"errors"
	"flag"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/bhuisgen/trellis/internal/app/trellis"
)

// versionCommand implements the version command.
type versionCommand struct {
	flagset *flag.FlagSet
}

// NewVersionCommand creates a new version command.
func NewVersionCommand() *versionCommand {
	c := versionCommand{}
	c.flagset = flag.NewFlagSet("version", flag.ContinueOnError)
	c.flagset.Usage = func() {
		fmt.Println("Usage: trellis version")
		fmt.Println()
		fmt.Println("Show the version information.")
		fmt.Println()
	}

	return &c
}

// Name returns the command name.
func (c *versionCommand) Name() string {
	return c.flagset.Name()
}

// Description returns the command description.
func (c *versionCommand) Description() string {
	return "Show version information"
}

// Parse parses the command arguments.
func (c *versionCommand) Parse(args []string) error {
	if err := c.flagset.Parse(args); err != nil {
		return errors.New("parse arguments")
	}
	if len(c.flagset.Args()) > 0 {
		return errors.New("check arguments")
	}
	return nil
}

// Execute executes the command.
func (c *versionCommand) Execute() error {
	fmt.Printf("%s\n", trellis.Name)
	fmt.Printf(" %-19s%s\n", "Version:", trellis.Version)
	fmt.Printf(" %-19s%s\n", "Commit:", trellis.Commit)
	fmt.Printf(" %-19s%s\n", "Built:", trellis.Date)
	fmt.Printf(" %-19s%s\n", "OS/Arch:", strings.Join([]string{runtime.GOOS, runtime.GOARCH}, "/"))
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		fmt.Printf(" %-19s%s\n", "Go version:", buildInfo.GoVersion)
	}

	return nil
}

var _ command = (*versionCommand)(nil)
