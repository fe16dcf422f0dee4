package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/texflow/internal"
	"github.com/starford/texflow/internal/latex"
	pkgconfig "github.com/starford/texflow/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func preview(_ context.Context, cmd *cli.Command) error {
	var src []byte
	var err error
	switch name := cmd.Args().First(); name {
	case "", "-":
		src, err = io.ReadAll(os.Stdin)
	default:
		src, err = os.ReadFile(name)
	}
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	_, err = io.WriteString(os.Stdout, latex.NewRenderer(cmd.String("author")).Render(string(src)))
	return err
}

func export(ctx context.Context, cmd *cli.Command) error {
	projectID := cmd.Args().Get(0)
	dir := cmd.Args().Get(1)
	if projectID == "" || dir == "" {
		return fmt.Errorf("usage: texflow export <project-id> <dir>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := internal.Export(ctx, projectID, dir, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(os.Stdout, "exported %d files to %s\n", n, dir)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "texflow",
		Usage:  "Collaborative LaTeX editing with live HTML preview",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the assistant tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:      "preview",
				Usage:     "Render a LaTeX file to the HTML preview on stdout",
				ArgsUsage: "[file.tex|-]",
				Action:    preview,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "author",
						Usage: "Author shown when the document has no \\author",
						Value: latex.DefaultAuthorCompile,
					},
				},
			},
			{
				Name:      "export",
				Usage:     "Write a project's files to a directory",
				ArgsUsage: "<project-id> <dir>",
				Action:    export,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
