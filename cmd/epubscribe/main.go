package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/yuanying/epubscribe/internal/config"
	"github.com/yuanying/epubscribe/internal/exporter"
	"github.com/yuanying/epubscribe/internal/importer"
	"github.com/yuanying/epubscribe/internal/model"
	"github.com/yuanying/epubscribe/internal/platform/logger"
	"github.com/yuanying/epubscribe/internal/session"
	"github.com/yuanying/epubscribe/internal/store"
)

// cliOptions is the resolved configuration for one command invocation.
type cliOptions struct {
	Config config.Config
	Output string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "epubscribe",
		Short: "Import EPUB books into editable projects and export them again",
		Long: `epubscribe imports EPUB packages into a page/style project model,
keeps them in a local project store and exports them back to EPUB or
Markdown.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "epubscribe.yaml", "Path to the YAML configuration file")
	pf.String("db", "", "Project database path (overrides database_path)")
	pf.String("owner", "", "Owner id recorded with saved projects (overrides owner_id)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: dev or prod")
	pf.BoolP("verbose", "v", false, "Shortcut for --log-level debug")

	root.AddCommand(
		newImportCmd(),
		newNewCmd(),
		newListCmd(),
		newShowCmd(),
		newExportCmd(),
		newMarkdownCmd(),
	)
	return root
}

// readCLIOptions merges the config file, environment and flags.
func readCLIOptions(cmd *cobra.Command) (cliOptions, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cliOptions{}, err
	}

	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DatabasePath = v
	}
	if v, _ := cmd.Flags().GetString("owner"); v != "" {
		cfg.OwnerID = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		var lvl zapcore.Level
		if err := lvl.Set(v); err != nil {
			return cliOptions{}, fmt.Errorf("invalid --log-level %q: %w", v, err)
		}
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		switch strings.ToLower(v) {
		case "dev", "prod", "production":
			cfg.LogMode = strings.ToLower(v)
		default:
			return cliOptions{}, fmt.Errorf("invalid --log-format %q: want dev or prod", v)
		}
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
	if cmd.Flags().Lookup("concurrency") != nil && cmd.Flags().Changed("concurrency") {
		cfg.Import.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if cmd.Flags().Lookup("max-image-width") != nil && cmd.Flags().Changed("max-image-width") {
		cfg.Import.MaxImageWidth, _ = cmd.Flags().GetInt("max-image-width")
	}
	if err := cfg.Validate(); err != nil {
		return cliOptions{}, err
	}

	opts := cliOptions{Config: cfg}
	if cmd.Flags().Lookup("output") != nil {
		opts.Output, _ = cmd.Flags().GetString("output")
	}
	return opts, nil
}

// app bundles what every subcommand needs.
type app struct {
	opts cliOptions
	log  *logger.Logger
	repo store.ProjectRepo
}

func newApp(cmd *cobra.Command) (*app, error) {
	opts, err := readCLIOptions(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(opts.Config.LogMode, opts.Config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	db, err := store.Open(opts.Config.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &app{opts: opts, log: log, repo: store.NewProjectRepo(db, log)}, nil
}

func (a *app) pipeline() *importer.Pipeline {
	c := a.opts.Config.Import
	return importer.NewPipeline(importer.Options{
		Concurrency:   c.Concurrency,
		MaxImageWidth: c.MaxImageWidth,
		JPEGQuality:   c.JPEGQuality,
		MaxEntryBytes: c.MaxEntryBytes,
	}, a.log)
}

func (a *app) loadProject(ctx context.Context, id string) (*model.Project, error) {
	p, _, err := a.repo.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return p, nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <book.epub>",
		Short: "Import an EPUB file as a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read EPUB: %w", err)
			}

			s := session.New(a.pipeline(), a.log)
			res, err := s.ImportEPUB(cmd.Context(), data)
			if err != nil {
				return fmt.Errorf("%s", s.Status())
			}
			if err := s.Save(cmd.Context(), a.repo, a.opts.Config.OwnerID); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, s.Status())
			fmt.Fprintf(out, "id: %s\npages: %d\nimages: %d\n", res.Project.ID, len(res.Project.Pages), len(res.Project.Images))
			for _, sk := range res.Skipped {
				fmt.Fprintf(out, "skipped %s %s: %s\n", sk.ID, sk.Path, sk.Reason)
			}
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 0, "Parallel image reads (overrides import.concurrency)")
	cmd.Flags().Int("max-image-width", 0, "Downscale images wider than this many pixels")
	return cmd
}

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			s := session.New(a.pipeline(), a.log)
			p, ok := s.CreateProject(args[0])
			if !ok {
				return fmt.Errorf("%s", s.Status())
			}
			if err := s.Save(cmd.Context(), a.repo, a.opts.Config.OwnerID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nid: %s\n", s.Status(), p.ID)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored projects of the current owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			projects, err := a.repo.ListProjects(cmd.Context(), a.opts.Config.OwnerID)
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			for _, p := range projects {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d pages\t%d images\n", p.ID, p.Name, len(p.Pages), len(p.Images))
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Print a project's pages and style sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			p, err := a.loadProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", p.Name, p.ID)
			for i, pg := range p.Pages {
				fmt.Fprintf(out, "%3d. %s\n", i+1, pg.Name)
			}
			fmt.Fprint(out, "\n", p.StyleSheet())
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write a project as an EPUB package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			p, err := a.loadProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			dest := a.opts.Output
			if dest == "" {
				dest = defaultOutputPath(p.Name, "epub")
			}
			if err := exporter.WriteEPUBFile(p, dest); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			a.log.Info("exported project", "project_id", p.ID, "path", dest)
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: project name with .epub extension)")
	return cmd
}

func newMarkdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markdown <project-id>",
		Short: "Write a project as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			p, err := a.loadProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			md, err := exporter.Markdown(p)
			if err != nil {
				return fmt.Errorf("markdown export failed: %w", err)
			}
			if a.opts.Output == "" || a.opts.Output == "-" {
				fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}
			return os.WriteFile(a.opts.Output, []byte(md), 0o644)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	return cmd
}

// defaultOutputPath derives a file name from a project name.
func defaultOutputPath(projectName, ext string) string {
	base := slug.Make(projectName)
	if base == "" {
		base = "project"
	}
	return filepath.Clean(base + "." + ext)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
