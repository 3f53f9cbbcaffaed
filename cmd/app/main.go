package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/arbor/internal"
	pkgconfig "github.com/starford/arbor/pkg/config"
)

func serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "arbor",
		Usage: "Hierarchical folder service with a tree viewer, shell, MCP server and directory mirror",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Folder service base URL (overrides client.base_url)",
				Sources: cli.EnvVars("ARBOR_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the folder service",
				Action: serve,
			},
			{
				Name:   "tree",
				Usage:  "Print the folder tree",
				Action: printTree,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "ids", Usage: "Show folder ids"},
				},
			},
			{
				Name:      "mkdir",
				Usage:     "Create a folder",
				ArgsUsage: "<name>",
				Action:    makeFolder,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "Parent folder id (default: top level)"},
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a folder and everything below it",
				ArgsUsage: "<id>",
				Action:    removeFolder,
			},
			{
				Name:   "shell",
				Usage:  "Browse and edit the folder tree interactively",
				Action: runShell,
			},
			{
				Name:   "mcp",
				Usage:  "Serve folder tools over MCP on stdio",
				Action: runMCP,
			},
			{
				Name:      "mirror",
				Usage:     "Import a local directory tree as folders",
				ArgsUsage: "<dir>",
				Action:    runMirror,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "Folder to import under", Value: "root"},
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Keep mirroring directory changes"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
