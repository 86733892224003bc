package main

import (
	"flag"
	"fmt"
	"strings"
)

// newFlagSet returns a flag set that reports to the cli's stderr instead
// of exiting, so handlers can return an exit code.
func (c *cli) newFlagSet(name, usage string, examples ...string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: hyprlauncher %s\n\n", usage)
		fmt.Fprintln(c.stderr, "Options:")
		fs.PrintDefaults()
		if len(examples) > 0 {
			fmt.Fprintln(c.stderr)
			fmt.Fprintln(c.stderr, "Examples:")
			for _, ex := range examples {
				fmt.Fprintf(c.stderr, "  %s\n", ex)
			}
		}
	}
	return fs
}

// parseFlags parses args after moving flags ahead of positionals.
// It returns the exit code to use when parsing did not succeed.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

// normalizeArgs reorders args so flags come before positional arguments.
// The flag package stops at the first non-flag argument, which would make
// "search fire --json" ignore --json.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			return append(append(flags, "--"), positional...)
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}
			// Unknown flags are left for fs.Parse to reject.
			if fs.Lookup(name) != nil && !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// joinQuery turns positional arguments into a single query string.
func joinQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
