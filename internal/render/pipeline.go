package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tuackng/internal/contest"
	"tuackng/internal/manifest"
	"tuackng/internal/statement"
	appErr "tuackng/pkg/errors"
	"tuackng/pkg/utils/contextkey"
	"tuackng/pkg/utils/logger"
)

const (
	// StatementFileName is the markdown statement inside a problem directory.
	StatementFileName = "statement.md"
	// DefaultNoticeFile is the optional contest-wide notice.
	DefaultNoticeFile = "precaution.md"
	// DefaultOutputDir is created under the contest root when no output directory is set.
	DefaultOutputDir = "statements"
)

// FailurePolicy decides what happens to the remaining days after one fails.
type FailurePolicy string

const (
	// PolicyAbort stops at the first failing day.
	PolicyAbort FailurePolicy = "abort"
	// PolicyBestEffort renders every day and reports all failures.
	PolicyBestEffort FailurePolicy = "best-effort"
)

// ParsePolicy validates a policy name. Empty selects PolicyAbort.
func ParsePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(name) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyBestEffort:
		return PolicyBestEffort, nil
	default:
		return "", appErr.BadRequest(fmt.Sprintf("unknown failure policy %q (want abort or best-effort)", name))
	}
}

// Options configures a Pipeline.
type Options struct {
	Template  *Template
	OutputDir string
	Compiler  Compiler
	Converter *statement.Converter
	Policy    FailurePolicy
	Jobs      int
	Publisher Publisher
	// NoticeFile is looked up in the contest root.
	NoticeFile string
}

// Pipeline renders contest days through a staging directory.
type Pipeline struct {
	opts Options
}

// NewPipeline validates opts and fills in defaults.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Template == nil {
		return nil, appErr.BadRequest("template is required")
	}
	if opts.Compiler == nil {
		return nil, appErr.BadRequest("compiler is required")
	}
	if opts.Converter == nil {
		opts.Converter = statement.NewConverter(nil, nil)
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	opts.Policy = policy
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.NoticeFile == "" {
		opts.NoticeFile = DefaultNoticeFile
	}
	return &Pipeline{opts: opts}, nil
}

// DayResult is the outcome of rendering one day.
type DayResult struct {
	Day string
	// PDFPath is set when the booklet was promoted.
	PDFPath string
	// StagingDir is set when the staging directory was left for inspection.
	StagingDir string
	ObjectKey  string
	Warnings   []string
	Duration   time.Duration
	Err        error
}

// Report collects per-day results in selection order.
type Report struct {
	Days []DayResult
}

// Failed returns the results that carry an error.
func (r Report) Failed() []DayResult {
	var failed []DayResult
	for _, d := range r.Days {
		if d.Err != nil {
			failed = append(failed, d)
		}
	}
	return failed
}

// Err aggregates failures. The code of the first failure is kept so the exit
// status reflects it.
func (r Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	if len(failed) == 1 {
		return failed[0].Err
	}
	names := make([]string, 0, len(failed))
	for _, d := range failed {
		names = append(names, d.Day)
	}
	return appErr.Wrapf(failed[0].Err, appErr.GetCode(failed[0].Err), "%d of %d days failed: %v",
		len(failed), len(r.Days), names).
		WithDetail("days", names)
}

func (p *Pipeline) outputDir(c *contest.ContestConfig) string {
	if p.opts.OutputDir != "" {
		return p.opts.OutputDir
	}
	return filepath.Join(c.Path, DefaultOutputDir)
}

// Render checks the toolchain once and renders days according to the
// failure policy.
func (p *Pipeline) Render(ctx context.Context, c *contest.ContestConfig, days []*contest.ContestDayConfig) (Report, error) {
	version, err := p.opts.Compiler.Check(ctx)
	if err != nil {
		return Report{}, err
	}
	logger.Info(ctx, "toolchain ready", zap.String("version", version))

	results := make([]DayResult, len(days))
	if p.opts.Jobs <= 1 || len(days) <= 1 {
		err = p.renderSequential(ctx, c, days, results)
	} else {
		err = p.renderParallel(ctx, c, days, results)
	}

	report := Report{Days: compact(results)}
	if err != nil {
		return report, err
	}
	if err := report.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) renderSequential(ctx context.Context, c *contest.ContestConfig, days []*contest.ContestDayConfig, results []DayResult) error {
	for i, day := range days {
		res, err := p.RenderDay(ctx, c, day)
		results[i] = res
		if err != nil && p.opts.Policy == PolicyAbort {
			return err
		}
	}
	return nil
}

// renderParallel runs days on a bounded pool. Days write to disjoint
// directories, so only the result slots are shared.
func (p *Pipeline) renderParallel(ctx context.Context, c *contest.ContestConfig, days []*contest.ContestDayConfig, results []DayResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Jobs)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			dayCtx := gctx
			if p.opts.Policy == PolicyBestEffort {
				dayCtx = ctx
			}
			res, err := p.RenderDay(dayCtx, c, day)
			results[i] = res
			if p.opts.Policy == PolicyAbort {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// compact drops slots for days that never started.
func compact(results []DayResult) []DayResult {
	out := make([]DayResult, 0, len(results))
	for _, r := range results {
		if r.Day != "" {
			out = append(out, r)
		}
	}
	return out
}

// RenderDay stages, compiles and promotes one day's booklet.
func (p *Pipeline) RenderDay(ctx context.Context, c *contest.ContestConfig, day *contest.ContestDayConfig) (DayResult, error) {
	ctx = contextkey.WithDay(ctx, day.Name)
	start := time.Now()
	res := DayResult{Day: day.Name}

	err := p.renderDay(ctx, c, day, &res)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		logger.Error(ctx, "render day failed", zap.Error(err))
		return res, err
	}
	logger.Info(ctx, "render day finished", zap.String("pdf", res.PDFPath), zap.Duration("duration", res.Duration))
	return res, nil
}

func (p *Pipeline) renderDay(ctx context.Context, c *contest.ContestConfig, day *contest.ContestDayConfig, res *DayResult) error {
	if err := ctx.Err(); err != nil {
		return appErr.Wrap(err, appErr.Canceled)
	}
	if err := p.opts.Template.Validate(); err != nil {
		return err
	}

	layout := NewLayout(p.outputDir(c), day.Name)
	if err := layout.Prepare(); err != nil {
		return err
	}
	logger.Info(ctx, "staging directory created", zap.String("path", layout.StagingDir))

	if err := p.opts.Template.Seed(layout.StagingDir); err != nil {
		return err
	}
	logger.Debug(ctx, "template seeded", zap.String("template", p.opts.Template.Path))

	data, err := manifest.Build(ctx, c, day).Encode()
	if err != nil {
		return appErr.Wrap(err, appErr.InternalError)
	}
	if err := layout.WriteFile(layout.ManifestPath, data); err != nil {
		return err
	}

	if err := p.convertProblems(ctx, day, layout); err != nil {
		return err
	}
	if warning := p.convertNotice(ctx, c, layout); warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}

	logger.Info(ctx, "compiling booklet", zap.String("output", layout.PDFName))
	compiled, err := p.opts.Compiler.Compile(ctx, CompileRequest{
		WorkDir: layout.StagingDir,
		Input:   MainFile,
		Output:  layout.PDFName,
	})
	if err != nil {
		res.StagingDir = layout.StagingDir
		if compiled.Stderr != "" {
			logger.Error(ctx, "compiler reported errors", zap.String("stderr", compiled.Stderr))
		}
		logger.Warn(ctx, "staging directory preserved", zap.String("path", layout.StagingDir))
		return err
	}
	logger.Info(ctx, "compile succeeded", zap.Duration("duration", compiled.Duration))

	if err := layout.Promote(); err != nil {
		res.StagingDir = layout.StagingDir
		return err
	}
	res.PDFPath = layout.FinalPDF

	if p.opts.Publisher != nil {
		key, err := p.opts.Publisher.Publish(ctx, c.Name, day.Name, layout.FinalPDF)
		if err != nil {
			return err
		}
		res.ObjectKey = key
	}
	return nil
}

func (p *Pipeline) convertProblems(ctx context.Context, day *contest.ContestDayConfig, layout Layout) error {
	for idx, problem := range day.Problems {
		pctx := contextkey.WithProblem(ctx, problem.Name)
		source := filepath.Join(problem.Path, StatementFileName)
		out, err := p.opts.Converter.ConvertFile(source)
		if err != nil {
			return err
		}
		if err := layout.WriteFile(layout.StatementPath(idx), []byte(out)); err != nil {
			return err
		}
		logger.Info(pctx, "statement converted",
			zap.Int("index", idx+1), zap.Int("total", len(day.Problems)),
			zap.String("file", manifest.StatementFile(idx)))
	}
	return nil
}

// convertNotice converts the contest notice when present. Failures only
// produce a warning.
func (p *Pipeline) convertNotice(ctx context.Context, c *contest.ContestConfig, layout Layout) string {
	source := filepath.Join(c.Path, p.opts.NoticeFile)
	if _, err := os.Stat(source); err != nil {
		logger.Debug(ctx, "no contest notice", zap.String("path", source))
		return ""
	}

	out, err := p.opts.Converter.ConvertFile(source)
	if err == nil {
		err = layout.WriteFile(layout.NoticePath, []byte(out))
	}
	if err != nil {
		logger.Warn(ctx, "contest notice skipped", zap.String("path", source), zap.Error(err))
		return fmt.Sprintf("%s: %v", source, err)
	}
	logger.Info(ctx, "contest notice converted", zap.String("file", noticeTypst))
	return ""
}
