package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tuackng/internal/common/storage"
	"tuackng/internal/contest"
	"tuackng/internal/render"
	appErr "tuackng/pkg/errors"
	"tuackng/pkg/utils/logger"
)

type renOptions struct {
	day      string
	policy   string
	jobs     int
	output   string
	maxDepth int
	dir      string
}

func newRenCmd(a *app) *cobra.Command {
	opts := &renOptions{}
	cmd := &cobra.Command{
		Use:   "ren [TEMPLATE]",
		Short: "Render statement booklets",
		Long: `Render one PDF booklet per contest day with the named template
(default "template"). Templates are searched in render.template_dirs as a
directory or a .tar.zst archive.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return appErr.BadRequest(fmt.Sprintf("ren accepts at most one template name, got %d", len(args)))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := render.DefaultTemplate
			if len(args) == 1 {
				name = args[0]
			}
			return a.ren(cmd, name, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.day, "day", "d", "", "render only this day")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "failure policy: abort or best-effort (overrides render.policy)")
	cmd.Flags().IntVar(&opts.jobs, "jobs", 0, "days rendered in parallel (overrides render.jobs)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default <contest>/statements)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "parent directories searched for the contest root, 0 for no limit")
	cmd.Flags().StringVarP(&opts.dir, "dir", "C", "", "start the contest search here instead of the working directory")
	return cmd
}

func (a *app) ren(cmd *cobra.Command, templateName string, opts *renOptions) error {
	ctx := cmd.Context()
	cfg := a.cfg.Render

	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = opts.policy
	}
	if flags.Changed("jobs") {
		cfg.Jobs = opts.jobs
	}
	if flags.Changed("output") {
		cfg.OutputDir = opts.output
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = opts.maxDepth
	}
	policy, err := render.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}
	if cfg.MaxDepth < 0 {
		return appErr.BadRequest("--max-depth must not be negative")
	}

	dir, err := startDir(opts.dir)
	if err != nil {
		return err
	}
	c, err := contest.Load(ctx, dir, contest.LocateOptions{MaxDepth: cfg.MaxDepth})
	if err != nil {
		return err
	}
	days, err := c.SelectDays(opts.day)
	if err != nil {
		return err
	}

	tpl, err := render.Locator{Dirs: cfg.TemplateDirs}.Find(templateName)
	if err != nil {
		return err
	}
	logger.Info(ctx, "template found", zap.String("name", tpl.Name), zap.String("path", tpl.Path))

	compiler, err := render.NewTypstCompiler(render.CompilerConfig{
		Command:  cfg.Compiler,
		FontPath: cfg.FontPath,
		Timeout:  cfg.CompileTimeout,
	})
	if err != nil {
		return err
	}

	var publisher render.Publisher
	if a.cfg.Publish.Enabled {
		store, err := storage.NewMinIOStorage(a.cfg.Publish.MinIO())
		if err != nil {
			return appErr.Wrapf(err, appErr.PublishFailed, "failed to create object storage client")
		}
		publisher = render.NewObjectPublisher(store, a.cfg.Publish.Bucket, a.cfg.Publish.Prefix)
	}

	outputDir := cfg.OutputDir
	if outputDir != "" {
		if outputDir, err = filepath.Abs(outputDir); err != nil {
			return appErr.FilesystemFailure(err, "resolve", cfg.OutputDir)
		}
	}

	pipeline, err := render.NewPipeline(render.Options{
		Template:  tpl,
		OutputDir: outputDir,
		Compiler:  compiler,
		Policy:    policy,
		Jobs:      cfg.Jobs,
		Publisher: publisher,
	})
	if err != nil {
		return err
	}

	report, err := pipeline.Render(ctx, c, days)
	a.printReport(report)
	return err
}

func (a *app) printReport(report render.Report) {
	for _, d := range report.Days {
		switch {
		case d.Err == nil:
			fmt.Fprintf(a.outW, "%s\tok\t%s\n", d.Day, d.PDFPath)
		case d.StagingDir != "":
			fmt.Fprintf(a.outW, "%s\tfailed\t%v (staging kept at %s)\n", d.Day, d.Err, d.StagingDir)
		default:
			fmt.Fprintf(a.outW, "%s\tfailed\t%v\n", d.Day, d.Err)
		}
		if e := appErr.GetError(d.Err); e != nil && e.Detail("stderr") != "" {
			// compiler diagnostics are printed untouched
			fmt.Fprint(a.outW, e.Detail("stderr"))
		}
		for _, w := range d.Warnings {
			fmt.Fprintf(a.outW, "%s\twarning\t%s\n", d.Day, w)
		}
		if d.ObjectKey != "" {
			fmt.Fprintf(a.outW, "%s\tpublished\t%s\n", d.Day, d.ObjectKey)
		}
	}
}
