// Command titan is the TITAN Forge IDE assistant backend. Run with no
// arguments it speaks a JSON-line protocol on stdio to the editor plugin;
// subcommands cover health checks and session management from a shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/config"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/llm"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/logging"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/session"
)

// Version is set via -ldflags at build time.
var Version = "dev"

var log = logging.Get()

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "titan",
		Usage:   "Editor-embedded coding assistant backend",
		Version: Version,
		Action: func(c *cli.Context) error {
			return runServer()
		},
		Commands: []*cli.Command{
			serveCmd(),
			healthCmd(),
			sessionsCmd(),
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Speak the editor protocol on stdio (default)",
		Action: func(c *cli.Context) error {
			return runServer()
		},
	}
}

func healthCmd() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the generation backend is reachable",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := llm.NewClient(cfg.BackendURL, cfg.RequestTimeout())

			ctx, cancel := context.WithTimeout(context.Background(), config.DefaultHealthTimeout)
			defer cancel()
			if err := client.CheckHealth(ctx); err != nil {
				return err
			}
			fmt.Printf("backend at %s is up (model: %s)\n", cfg.BackendURL, cfg.Model)
			return nil
		},
	}
}

func sessionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List or search saved conversation sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Filter by title or content"},
			&cli.BoolFlag{Name: "json", Usage: "Emit JSON instead of a table"},
		},
		Action: func(c *cli.Context) error {
			mgr, err := openSessions()
			if err != nil {
				return err
			}

			if query := c.String("search"); query != "" {
				results := mgr.Search(query)
				if c.Bool("json") {
					return json.NewEncoder(os.Stdout).Encode(results)
				}
				for _, r := range results {
					fmt.Printf("%s  %-40s  %s", r.ID, r.Title, r.MatchType)
					if r.Excerpt != "" {
						fmt.Printf("  %s", r.Excerpt)
					}
					fmt.Println()
				}
				return nil
			}

			list := mgr.List()
			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(list)
			}
			for _, s := range list {
				fmt.Printf("%s  %-40s  %3d messages  %s\n",
					s.ID, s.Title, s.Messages, s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

// dataDir is where sessions live, next to the debug sentinel and logs.
func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".titanforge"), nil
}

func openSessions() (*session.Manager, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	store, err := session.NewDiskStore(filepath.Join(dir, "sessions"))
	if err != nil {
		return nil, err
	}
	return session.NewManager(store)
}
