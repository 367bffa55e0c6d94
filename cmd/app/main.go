package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/skilldesk/internal"
	pkgconfig "github.com/starford/skilldesk/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	found, err := pkgconfig.LoadOptional(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found && cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	if dir := cmd.String("skills"); dir != "" {
		p, err := internal.ExpandHome(dir)
		if err != nil {
			return nil, err
		}
		cfg.Skills.Path = p
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func tree(ctx context.Context, cmd *cli.Command) error {
	skill := cmd.Args().First()
	if skill == "" {
		return errors.New("usage: skilldesk tree <skill>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.PrintTree(ctx, skill, internal.WithConfig(cfg), internal.WithOutput(cmd.Root().Writer))
}

func main() {
	cmd := &cli.Command{
		Name:    "skilldesk",
		Usage:   "Browse, edit and serve a local directory of agent skills",
		Version: version,
		Action:  serve,
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
				Name:    "skills",
				Aliases: []string{"s"},
				Usage:   "Skills root directory (overrides the config file)",
				Sources: cli.EnvVars("SKILLDESK_SKILLS_PATH"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the skills catalogue over MCP (stdio)",
				Action: serveMCP,
			},
			{
				Name:      "tree",
				Usage:     "Print the file tree of a skill",
				ArgsUsage: "<skill>",
				Action:    tree,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
