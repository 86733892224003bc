package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/hyprutils/hyprlauncher/internal/desktop"
	"github.com/hyprutils/hyprlauncher/internal/search"
)

var (
	errEmptyCommand = errors.New("entry has no command")
	errNoTerminal   = errors.New("terminal entry but no terminal configured")
)

// handleLaunch starts the best match for a query (or an exact identity)
// and records the launch.
func (c *cli) handleLaunch(args []string) int {
	fs := c.newFlagSet("launch", "launch [options] <query|id>",
		"hyprlauncher launch firefox",
		"hyprlauncher launch org.mozilla.firefox.desktop:new-private-window",
		"hyprlauncher launch --dry-run term")
	dryRun := fs.Bool("dry-run", false, "Print the command instead of running it")
	noRecord := fs.Bool("no-record", false, "Do not record the launch")
	verbose := fs.Bool("verbose", false, "Log to stderr")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	query := joinQuery(fs.Args())
	if query == "" {
		fs.Usage()
		return 2
	}

	cfg := c.loadConfig()
	setupLogging(cfg, *verbose)

	e, err := openEngine(context.Background(), cfg, false)
	if err != nil {
		return c.errorf("failed to start engine: %v", err)
	}
	defer e.Close()

	target, ok := resolveTarget(e, query)
	if !ok {
		return c.errorf("no application matches %q", query)
	}
	if target.Kind == search.KindCalc {
		fmt.Fprintln(c.stdout, target.DisplayName)
		return 0
	}

	argv, err := buildCommand(target.Exec, target.Terminal, cfg.Launch.ResolveTerminal())
	if err != nil {
		return c.errorf("%s: %v", target.Identity, err)
	}

	if *dryRun {
		fmt.Fprintln(c.stdout, desktop.JoinExec(argv))
		return 0
	}

	if err := spawnDetached(argv); err != nil {
		cliLog.Warn("launch_failed", slog.String("id", target.Identity), slog.String("error", err.Error()))
		return c.errorf("failed to launch %s: %v", target.DisplayName, err)
	}
	cliLog.Info("launched", slog.String("id", target.Identity), slog.String("exec", target.Exec))

	if !*noRecord && recordable(target.Kind) {
		e.NotifyLaunch(target.Identity)
		if err := e.Heatmap().Flush(); err != nil {
			c.warnf("launch not saved: %v", err)
		}
	}
	fmt.Fprintf(c.stdout, "Launched %s\n", nameStyle.Render(target.DisplayName))
	return 0
}

// resolveTarget prefers an exact identity, then the top search result.
func resolveTarget(e *search.Engine, query string) (search.Result, bool) {
	if snap := e.Snapshot(); snap != nil {
		if ent, ok := snap.Get(query); ok {
			return search.Result{
				Kind:        search.KindEntry,
				Identity:    ent.ID,
				ParentID:    ent.ParentID,
				DisplayName: ent.Name,
				IconName:    ent.Icon,
				Path:        ent.Path,
				Exec:        ent.Exec,
				Terminal:    ent.Terminal,
			}, true
		}
	}
	results := e.Search(query, 1)
	if len(results) == 0 {
		return search.Result{}, false
	}
	return results[0], true
}

// recordable reports whether launches of kind feed the heatmap. Browsed
// files and folders do not.
func recordable(kind search.Kind) bool {
	return kind == search.KindEntry || kind == search.KindBinary
}

// buildCommand turns an Exec value into an argv. Terminal entries run
// inside terminal with "-e".
func buildCommand(execLine string, inTerminal bool, terminal string) ([]string, error) {
	argv := desktop.SplitExec(execLine)
	if len(argv) == 0 {
		return nil, errEmptyCommand
	}
	if inTerminal {
		termArgv := desktop.SplitExec(terminal)
		if len(termArgv) == 0 {
			return nil, errNoTerminal
		}
		argv = append(append(termArgv, "-e"), argv...)
	}
	return argv, nil
}

// spawnDetached starts argv in its own session with no inherited stdio
// and does not wait for it.
func spawnDetached(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	if home, err := os.UserHomeDir(); err == nil {
		cmd.Dir = home
	}
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
