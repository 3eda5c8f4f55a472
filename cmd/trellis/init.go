package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/bhuisgen/trellis/internal/app/trellis"
)

// initCommand implements the init command.
type initCommand struct {
	flagset *flag.FlagSet
	syntax  string
}

// NewInitCommand creates a new init command.
func NewInitCommand() *initCommand {
	c := initCommand{}
	c.flagset = flag.NewFlagSet("init", flag.ContinueOnError)
	c.flagset.StringVar(&c.syntax, "s", "yaml", "Syntax (yaml,toml,json)")
	c.flagset.Usage = func() {
		fmt.Println("Usage: trellis init [OPTIONS]")
		fmt.Println()
		fmt.Println("Generate a new configuration file and a starter project.")
		fmt.Println()
		fmt.Println("Options:")
		c.flagset.PrintDefaults()
		fmt.Println()
	}

	return &c
}

// Name returns the command name.
func (c *initCommand) Name() string {
	return c.flagset.Name()
}

// Description returns the command description.
func (c *initCommand) Description() string {
	return "Generate a new configuration file"
}

// Parse parses the command arguments.
func (c *initCommand) Parse(args []string) error {
	if err := c.flagset.Parse(args); err != nil {
		return errors.New("parse arguments")
	}
	if len(c.flagset.Args()) > 0 {
		return errors.New("check arguments")
	}
	return nil
}

// Execute executes the command.
func (c *initCommand) Execute() error {
	if err := trellis.GenerateConfig(c.syntax); err != nil {
		fmt.Printf("Failed to generate configuration: %v\n", err)
		return fmt.Errorf("generate config: %v", err)
	}

	fmt.Println("Configuration generated")

	return nil
}

var _ command = (*initCommand)(nil)
