package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/coredb/coredb/cmd/coredb/command"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = append(args, "shell")
	}

	c := &cli.CLI{
		Name: "coredb",
		Args: args,
		Commands: map[string]cli.CommandFactory{
			"shell": func() (cli.Command, error) {
				return &command.ShellCommand{}, nil
			},
			"version": func() (cli.Command, error) {
				return &command.VersionCommand{}, nil
			},
		},
		HelpFunc:     cli.BasicHelpFunc("coredb"),
		Autocomplete: true,
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}
	os.Exit(exitCode)
}
