package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bhuisgen/trellis/internal/app/trellis"
)

// renderCommand implements the render command.
type renderCommand struct {
	flagset  *flag.FlagSet
	data     string
	output   string
	timeout  int
	template string
	stdout   io.Writer
}

// NewRenderCommand creates a new render command.
func NewRenderCommand() *renderCommand {
	c := renderCommand{
		stdout: os.Stdout,
	}
	c.flagset = flag.NewFlagSet("render", flag.ContinueOnError)
	c.flagset.StringVar(&c.data, "data", "", "JSON file of the root context")
	c.flagset.StringVar(&c.output, "o", "", "Output file (default stdout)")
	c.flagset.IntVar(&c.timeout, "timeout", 30, "Render timeout in seconds (0 to disable)")
	c.flagset.Usage = func() {
		fmt.Println("Usage: trellis render [OPTIONS] TEMPLATE")
		fmt.Println()
		fmt.Println("Render a template.")
		fmt.Println()
		fmt.Println("Options:")
		c.flagset.PrintDefaults()
		fmt.Println()
	}

	return &c
}

// Name returns the command name.
func (c *renderCommand) Name() string {
	return c.flagset.Name()
}

// Description returns the command description.
func (c *renderCommand) Description() string {
	return "Render a template"
}

// Parse parses the command arguments.
func (c *renderCommand) Parse(args []string) error {
	if err := c.flagset.Parse(args); err != nil {
		return errors.New("parse arguments")
	}
	if len(c.flagset.Args()) != 1 {
		fmt.Println("The command requires one template name")
		return errors.New("check arguments")
	}
	if c.timeout < 0 {
		return errors.New("invalid timeout")
	}
	c.template = c.flagset.Arg(0)
	return nil
}

// Execute executes the command.
func (c *renderCommand) Execute() error {
	var data any
	if c.data != "" {
		raw, err := os.ReadFile(c.data)
		if err != nil {
			fmt.Printf("Failed to read data: %v\n", err)
			return fmt.Errorf("read data: %v", err)
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			fmt.Printf("Failed to parse data: %v\n", err)
			return fmt.Errorf("parse data: %v", err)
		}
	}

	config, err := trellis.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return fmt.Errorf("load config: %v", err)
	}

	app, err := trellis.New(config)
	if err != nil {
		fmt.Printf("Failed to create instance: %v\n", err)
		return fmt.Errorf("new: %v", err)
	}
	defer app.Close()

	w := c.stdout
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			fmt.Printf("Failed to create output: %v\n", err)
			return fmt.Errorf("create output: %v", err)
		}
		defer f.Close()
		w = f
	}

	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.timeout)*time.Second)
		defer cancel()
	}

	if err := app.Render(ctx, c.template, data, w); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render template: %v\n", err)
		return fmt.Errorf("render: %v", err)
	}

	return nil
}

var _ command = (*renderCommand)(nil)
