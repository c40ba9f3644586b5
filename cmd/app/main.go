package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notepress/internal"
	pkgconfig "github.com/starford/notepress/pkg/config"
)

var version = "dev"

// loadConfig reads the config file over the defaults and applies the global
// flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("site-root"); root != "" {
		cfg.Site.Root = root
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

func requireFile(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("%s: expected exactly one note file", cmd.Name)
	}
	return cmd.Args().First(), nil
}

func publish(ctx context.Context, cmd *cli.Command) error {
	src, err := requireFile(cmd)
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	var cats []string
	if c := cmd.String("category"); c != "" {
		cats = []string{c}
	}
	return internal.RunPublish(ctx, internal.PublishCommand{
		SourcePath: src,
		Title:      cmd.String("title"),
		NoGit:      cmd.Bool("no-git"),
		Tags:       cmd.StringSlice("tags"),
		Categories: cats,
		Excerpt:    cmd.String("excerpt"),
		Yes:        cmd.Bool("yes"),
	}, opts...)
}

func watch(ctx context.Context, cmd *cli.Command) error {
	src, err := requireFile(cmd)
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunWatch(ctx, internal.WatchCommand{
		SourcePath: src,
		Title:      cmd.String("title"),
		Push:       cmd.Bool("push"),
	}, opts...)
}

func tags(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunTags(ctx, opts...)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunServe(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, version, opts...)
}

func titleFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "title",
		Usage: "Post title (default: file name without extension)",
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "notepress",
		Usage:   "Publish Obsidian notes into a static site: migrate images, complete the header, push",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("NOTEPRESS_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "site-root",
				Usage:   "Blog project root (overrides site.root)",
				Sources: cli.EnvVars("NOTEPRESS_SITE_ROOT"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides app.log_level)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "publish",
				Usage:     "Publish one note",
				ArgsUsage: "<note.md>",
				Action:    publish,
				Flags: []cli.Flag{
					titleFlag(),
					&cli.BoolFlag{Name: "no-git", Usage: "Write the post without stage/commit/push"},
					&cli.StringSliceFlag{Name: "tags", Usage: "Tag names or ranked indices"},
					&cli.StringFlag{Name: "category", Usage: "Category name or ranked index"},
					&cli.StringFlag{Name: "excerpt", Usage: "Excerpt for notes without a header"},
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not prompt; leave unanswered fields out"},
				},
			},
			{
				Name:   "tags",
				Usage:  "Print tags and categories used by published posts",
				Action: tags,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:      "watch",
				Usage:     "Republish a note every time it is saved",
				ArgsUsage: "<note.md>",
				Action:    watch,
				Flags: []cli.Flag{
					titleFlag(),
					&cli.BoolFlag{Name: "push", Usage: "Stage, commit and push after each publish"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
