package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/hyprutils/hyprlauncher/internal/logging"
)

const Version = "0.4.0"

// init sets up the color profile for consistent terminal colors.
func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss from the environment.
// HYPRLAUNCHER_COLOR: truecolor, 256, 16, none. NO_COLOR disables color.
func initColorProfile() {
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	switch strings.ToLower(os.Getenv("HYPRLAUNCHER_COLOR")) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}
}

func main() {
	code := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	logging.Shutdown()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	if len(args) == 0 {
		c.printHelp()
		return 0
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "hyprlauncher v%s\n", Version)
		return 0
	case "help", "--help", "-h":
		c.printHelp()
		return 0
	case "search", "s":
		return c.handleSearch(args[1:])
	case "list", "ls":
		return c.handleList(args[1:])
	case "launch", "run":
		return c.handleLaunch(args[1:])
	case "stats":
		return c.handleStats(args[1:])
	case "reindex":
		return c.handleReindex(args[1:])
	case "interactive", "i":
		return c.handleInteractive(args[1:])
	case "config":
		return c.handleConfig(args[1:])
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		fmt.Fprintln(stderr, "Run 'hyprlauncher help' for usage.")
		return 2
	}
}

// cli carries the streams every subcommand writes to.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) errorf(format string, args ...any) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return 1
}

func (c *cli) printHelp() {
	fmt.Fprintf(c.stdout, `hyprlauncher v%s - application search and launch

Usage: hyprlauncher <command> [options]

Commands:
  search <query>     Rank applications for a query
  list               List every indexed application
  launch <query|id>  Launch the best match and record the launch
  stats              Show the most launched applications
  reindex            Scan application directories and report totals
  interactive        Read queries from stdin, one per line
  config <sub>       Configuration: path, init, show
  version            Show version
  help               Show this help

Run 'hyprlauncher <command> --help' for command options.
`, Version)
}
