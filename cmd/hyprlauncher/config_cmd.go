package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/hyprutils/hyprlauncher/internal/config"
)

// handleConfig dispatches config subcommands.
func (c *cli) handleConfig(args []string) int {
	if len(args) == 0 {
		c.printConfigHelp()
		return 2
	}

	switch args[0] {
	case "path":
		path, err := config.Path()
		if err != nil {
			return c.errorf("%v", err)
		}
		fmt.Fprintln(c.stdout, path)
		return 0
	case "init":
		path, created, err := config.CreateExample()
		if err != nil {
			return c.errorf("failed to write config: %v", err)
		}
		if created {
			fmt.Fprintf(c.stdout, "Created %s\n", path)
		} else {
			fmt.Fprintf(c.stdout, "Config already exists at %s\n", path)
		}
		return 0
	case "show":
		fs := c.newFlagSet("config show", "config show [options]")
		jsonOutput := fs.Bool("json", false, "Output as JSON")
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}
		cfg := c.loadConfig()
		if *jsonOutput {
			if err := writeJSON(c.stdout, cfg); err != nil {
				return c.errorf("%v", err)
			}
			return 0
		}
		if err := toml.NewEncoder(c.stdout).Encode(cfg); err != nil {
			return c.errorf("failed to encode config: %v", err)
		}
		return 0
	case "help", "--help", "-h":
		c.printConfigHelp()
		return 0
	default:
		fmt.Fprintf(c.stderr, "Error: unknown config command %q\n\n", args[0])
		c.printConfigHelp()
		return 2
	}
}

func (c *cli) printConfigHelp() {
	fmt.Fprintln(c.stderr, "Usage: hyprlauncher config <command>")
	fmt.Fprintln(c.stderr)
	fmt.Fprintln(c.stderr, "Commands:")
	fmt.Fprintln(c.stderr, "  path    Print the config file location")
	fmt.Fprintln(c.stderr, "  init    Write an example config if none exists")
	fmt.Fprintln(c.stderr, "  show    Print the effective configuration")
}
