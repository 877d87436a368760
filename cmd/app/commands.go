package main

import (
	"github.com/urfave/cli/v3"
)

// getCommands groups the subcommands under help categories.
func getCommands(version string) []*cli.Command {
	groups := []struct {
		category string
		commands []*cli.Command
	}{
		{category: "service", commands: getSystemCommands(version)},
		{category: "keys", commands: getKeyCommands()},
	}

	var cmds []*cli.Command
	for _, group := range groups {
		for _, cmd := range group.commands {
			cmd.Category = group.category
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}
