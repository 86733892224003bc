package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hyprutils/hyprlauncher/internal/config"
	"github.com/hyprutils/hyprlauncher/internal/index"
	"github.com/hyprutils/hyprlauncher/internal/search"
)

// handleInteractive keeps one engine alive and answers a query per input
// line. Directory and config changes are picked up while it runs.
//
// Lines starting with ':' are commands:
//
//	:launch <id>   launch an identity and record it
//	:record <id>   record a launch without starting anything
//	:reindex       rescan now
//	:quit          exit
func (c *cli) handleInteractive(args []string) int {
	fs := c.newFlagSet("interactive", "interactive [options]",
		"printf 'fire\\nterm\\n' | hyprlauncher interactive --json")
	jsonOutput := fs.Bool("json", false, "Print one JSON array per query")
	maxEntries := fs.Int("max", 0, "Maximum results (default: window.max_entries)")
	noWatch := fs.Bool("no-watch", false, "Do not watch directories or the config file")
	verbose := fs.Bool("verbose", false, "Log to stderr")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg := c.loadConfig()
	setupLogging(cfg, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := openEngine(ctx, cfg, !*noWatch)
	if err != nil {
		return c.errorf("failed to start engine: %v", err)
	}
	defer e.Close()

	if !*noWatch {
		if w := c.watchConfig(e); w != nil {
			defer w.Close()
		}
	}

	scanner := bufio.NewScanner(c.stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, ":") {
			if quit := c.interactiveCommand(e, line); quit {
				break
			}
			continue
		}

		results := e.Search(line, *maxEntries)
		if *jsonOutput {
			data, err := json.Marshal(toJSON(results))
			if err != nil {
				return c.errorf("failed to format JSON output: %v", err)
			}
			fmt.Fprintln(c.stdout, string(data))
			continue
		}
		writeResults(c.stdout, results, false)
		fmt.Fprintln(c.stdout)
	}
	if err := scanner.Err(); err != nil {
		return c.errorf("read input: %v", err)
	}
	return 0
}

func (c *cli) interactiveCommand(e *search.Engine, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "quit", "q":
		return true
	case "reindex":
		e.RebuildIndex()
		fmt.Fprintln(c.stdout, "ok")
	case "record":
		if arg == "" {
			c.errorf("usage: :record <id>")
			return false
		}
		e.NotifyLaunch(arg)
		fmt.Fprintln(c.stdout, "ok")
	case "launch":
		target, ok := resolveTarget(e, arg)
		if !ok {
			c.errorf("no application matches %q", arg)
			return false
		}
		if target.Kind == search.KindCalc {
			fmt.Fprintln(c.stdout, target.DisplayName)
			return false
		}
		cfg, _ := config.Load()
		argv, err := buildCommand(target.Exec, target.Terminal, cfg.Launch.ResolveTerminal())
		if err == nil {
			err = spawnDetached(argv)
		}
		if err != nil {
			c.errorf("failed to launch %s: %v", target.Identity, err)
			return false
		}
		if recordable(target.Kind) {
			e.NotifyLaunch(target.Identity)
		}
		fmt.Fprintf(c.stdout, "launched %s\n", target.Identity)
	default:
		c.errorf("unknown command %q", cmd)
	}
	return false
}

// watchConfig hot-reloads config.toml into the running engine.
func (c *cli) watchConfig(e *search.Engine) *config.Watcher {
	path, err := config.Path()
	if err != nil {
		c.warnf("config watch disabled: %v", err)
		return nil
	}
	w, err := config.NewWatcher(path, 0, func(cfg *config.UserConfig, err error) {
		if err != nil {
			c.warnf("%v (using defaults)", err)
		}
		s := engineSettings(cfg, index.EnvFromOS())
		s.Watch = e.Settings().Watch
		e.ApplyConfig(s)
	})
	if err != nil {
		c.warnf("config watch disabled: %v", err)
		return nil
	}
	w.Start()
	return w
}
