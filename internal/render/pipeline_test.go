package render

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuackng/internal/contest"
	"tuackng/internal/manifest"
	"tuackng/internal/statement"
	"tuackng/internal/testutil"
	appErr "tuackng/pkg/errors"
)

// fakeTypst stands in for the typst binary. Compile snapshots the staging
// directory and writes the requested PDF unless the output is set to fail.
type fakeTypst struct {
	mu          sync.Mutex
	calls       []ExecRequest
	staged      map[string][]string
	fail        map[string]string
	unavailable bool
}

func newFakeTypst() *fakeTypst {
	return &fakeTypst{staged: make(map[string][]string), fail: make(map[string]string)}
}

func (f *fakeTypst) exec(ctx context.Context, req ExecRequest) (ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)

	if req.Args[1] == "--version" {
		if f.unavailable {
			return ExecResult{}, errors.New("exec: \"typst\": executable file not found in $PATH")
		}
		return ExecResult{Stdout: []byte("typst 0.12.0\n")}, nil
	}

	output := req.Args[len(req.Args)-1]
	var files []string
	_ = filepath.WalkDir(req.Dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			rel, _ := filepath.Rel(req.Dir, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	sort.Strings(files)
	f.staged[output] = files

	if stderr, ok := f.fail[output]; ok {
		return ExecResult{ExitCode: 1, Stderr: []byte(stderr)}, nil
	}
	if err := os.WriteFile(filepath.Join(req.Dir, output), []byte("%PDF-1.7 "+output), 0644); err != nil {
		return ExecResult{}, err
	}
	return ExecResult{}, nil
}

func (f *fakeTypst) compileCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Args[1] == "compile" {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, contestName, day, pdfPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	key := ObjectKey("booklets", contestName, day)
	p.published = append(p.published, key)
	return key, nil
}

type harness struct {
	contest  *contest.ContestConfig
	template *Template
	out      string
	typst    *fakeTypst
}

func newHarness(t *testing.T, fixture testutil.ContestFixture) *harness {
	t.Helper()
	root := t.TempDir()
	testutil.WriteContest(t, root, fixture)
	cfg, err := contest.Load(context.Background(), root, contest.LocateOptions{})
	require.NoError(t, err)

	tplDir := testutil.WriteTemplate(t, filepath.Join(t.TempDir(), "template"))
	return &harness{
		contest:  cfg,
		template: &Template{Name: "template", Path: tplDir},
		out:      filepath.Join(t.TempDir(), "statements"),
		typst:    newFakeTypst(),
	}
}

func (h *harness) pipeline(t *testing.T, mutate func(*Options)) *Pipeline {
	t.Helper()
	compiler, err := NewTypstCompiler(CompilerConfig{Command: "typst", FontPath: "fonts", Exec: h.typst.exec})
	require.NoError(t, err)
	opts := Options{Template: h.template, OutputDir: h.out, Compiler: compiler}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := NewPipeline(opts)
	require.NoError(t, err)
	return p
}

func oneDay() testutil.ContestFixture {
	return testutil.ContestFixture{
		Days: []testutil.DayFixture{{
			Folder: "day1",
			Problems: []testutil.ProblemFixture{
				{Folder: "sum", Statement: "# Sum\n\nAdd $a$ and $b$.\n"},
				{Folder: "guess", Type: "interactive"},
			},
		}},
	}
}

func twoDays() testutil.ContestFixture {
	fixture := oneDay()
	fixture.Days = append(fixture.Days, testutil.DayFixture{
		Folder:   "day2",
		Problems: []testutil.ProblemFixture{{Folder: "path"}},
	})
	return fixture
}

func TestRenderDay_Success(t *testing.T) {
	h := newHarness(t, oneDay())
	day := h.contest.Days[0]

	res, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, day)
	require.NoError(t, err)

	final := filepath.Join(h.out, "day1", "day1.pdf")
	assert.Equal(t, final, res.PDFPath)
	assert.Empty(t, res.StagingDir)
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 day1.pdf", string(data))
	assert.NoDirExists(t, filepath.Join(h.out, "day1", "tmp"))

	assert.Equal(t, []string{
		"data.json", "fonts/README", "main.typ", "problem-0.typ", "problem-1.typ", "utils.typ",
	}, h.typst.staged["day1.pdf"])

	compile := h.typst.calls[len(h.typst.calls)-1]
	assert.Equal(t, []string{"typst", "compile", "--font-path=fonts", "main.typ", "day1.pdf"}, compile.Args)
	assert.Equal(t, filepath.Join(h.out, "day1", "tmp"), compile.Dir)
}

func TestRenderDay_StagedContents(t *testing.T) {
	h := newHarness(t, oneDay())
	h.typst.fail["day1.pdf"] = "boom"

	res, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.Error(t, err)
	staging := res.StagingDir
	require.NotEmpty(t, staging)

	problem, err := os.ReadFile(filepath.Join(staging, "problem-0.typ"))
	require.NoError(t, err)
	assert.Equal(t, statement.Preamble+"= Sum\n\nAdd $a$ and $b$.\n", string(problem))

	raw, err := os.ReadFile(filepath.Join(staging, manifest.FileName))
	require.NoError(t, err)
	var data manifest.DataJSON
	require.NoError(t, json.Unmarshal(raw, &data))
	require.Len(t, data.Problems, 2)
	assert.Equal(t, "sum", data.Problems[0].Name)
	assert.Equal(t, 1, data.Problems[1].Index)
	assert.Equal(t, "交互型", data.Problems[1].Type)
}

func TestRenderDay_RemovesStaleStaging(t *testing.T) {
	h := newHarness(t, oneDay())
	testutil.WriteFile(t, filepath.Join(h.out, "day1", "tmp", "stale.typ"), "old")

	_, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.NoError(t, err)
	assert.NotContains(t, h.typst.staged["day1.pdf"], "stale.typ")
}

func TestRenderDay_CompileFailureKeepsStaging(t *testing.T) {
	h := newHarness(t, oneDay())
	stderr := "error: unknown variable: title\n   ┌─ main.typ:4:2\n"
	h.typst.fail["day1.pdf"] = stderr

	res, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.CompileFailure))
	assert.Equal(t, stderr, appErr.GetError(err).Detail("stderr"))

	staging := filepath.Join(h.out, "day1", "tmp")
	assert.Equal(t, staging, res.StagingDir)
	assert.FileExists(t, filepath.Join(staging, manifest.FileName))
	assert.NoFileExists(t, filepath.Join(h.out, "day1", "day1.pdf"))
	assert.Equal(t, err, res.Err)
}

func TestRenderDay_MissingStatement(t *testing.T) {
	fixture := oneDay()
	fixture.Days[0].Problems[1].NoStatement = true
	h := newHarness(t, fixture)

	_, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.StatementMissing))
	assert.Equal(t, 0, h.typst.compileCalls())
}

func TestRenderDay_StatementParseError(t *testing.T) {
	fixture := oneDay()
	fixture.Days[0].Problems[0].Statement = "intro\n\n$$\nx + y\n"
	h := newHarness(t, fixture)

	_, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.StatementParseError))
	assert.Equal(t, 0, h.typst.compileCalls())
}

func TestRenderDay_Notice(t *testing.T) {
	fixture := oneDay()
	fixture.Precaution = "- bring ID\n"
	h := newHarness(t, fixture)

	res, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Contains(t, h.typst.staged["day1.pdf"], "precaution.typ")
}

func TestRenderDay_BrokenNoticeIsOnlyAWarning(t *testing.T) {
	fixture := oneDay()
	fixture.Precaution = "$$\nnever closed\n"
	h := newHarness(t, fixture)

	res, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "precaution.md")
	assert.NotContains(t, h.typst.staged["day1.pdf"], "precaution.typ")
}

func TestRenderDay_TemplateCheckedBeforeStaging(t *testing.T) {
	h := newHarness(t, oneDay())
	require.NoError(t, os.Remove(filepath.Join(h.template.Path, MainFile)))

	_, err := h.pipeline(t, nil).RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.TemplateMissingRequiredFile))
	assert.NoDirExists(t, filepath.Join(h.out, "day1"))
}

func TestRenderDay_Publishes(t *testing.T) {
	h := newHarness(t, oneDay())
	pub := &fakePublisher{}

	res, err := h.pipeline(t, func(o *Options) { o.Publisher = pub }).
		RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.NoError(t, err)
	assert.Equal(t, "booklets/demo/day1/day1.pdf", res.ObjectKey)
	assert.Equal(t, []string{"booklets/demo/day1/day1.pdf"}, pub.published)
}

func TestRenderDay_PublishFailure(t *testing.T) {
	h := newHarness(t, oneDay())
	pub := &fakePublisher{err: appErr.New(appErr.PublishFailed)}

	res, err := h.pipeline(t, func(o *Options) { o.Publisher = pub }).
		RenderDay(context.Background(), h.contest, h.contest.Days[0])
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.PublishFailed))
	assert.FileExists(t, res.PDFPath)
}

func TestRenderDay_Canceled(t *testing.T) {
	h := newHarness(t, oneDay())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline(t, nil).RenderDay(ctx, h.contest, h.contest.Days[0])
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.Canceled))
}

func TestRender_ToolchainUnavailable(t *testing.T) {
	h := newHarness(t, twoDays())
	h.typst.unavailable = true

	report, err := h.pipeline(t, nil).Render(context.Background(), h.contest, h.contest.Days)
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ToolchainUnavailable))
	assert.Empty(t, report.Days)
	assert.NoDirExists(t, h.out)
}

func TestRender_AbortStopsAtFirstFailure(t *testing.T) {
	h := newHarness(t, twoDays())
	h.typst.fail["day1.pdf"] = "bad"

	report, err := h.pipeline(t, nil).Render(context.Background(), h.contest, h.contest.Days)
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.CompileFailure))
	require.Len(t, report.Days, 1)
	assert.Equal(t, "day1", report.Days[0].Day)
	assert.Equal(t, 1, h.typst.compileCalls())
	assert.NoDirExists(t, filepath.Join(h.out, "day2"))
}

func TestRender_BestEffortContinues(t *testing.T) {
	h := newHarness(t, twoDays())
	h.typst.fail["day1.pdf"] = "bad"

	report, err := h.pipeline(t, func(o *Options) { o.Policy = PolicyBestEffort }).
		Render(context.Background(), h.contest, h.contest.Days)
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.CompileFailure))

	require.Len(t, report.Days, 2)
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "day1", report.Failed()[0].Day)
	assert.FileExists(t, filepath.Join(h.out, "day2", "day2.pdf"))
}

func TestRender_Parallel(t *testing.T) {
	fixture := twoDays()
	fixture.Days = append(fixture.Days, testutil.DayFixture{
		Folder:   "day3",
		Problems: []testutil.ProblemFixture{{Folder: "tree"}},
	})
	h := newHarness(t, fixture)

	report, err := h.pipeline(t, func(o *Options) { o.Jobs = 4 }).
		Render(context.Background(), h.contest, h.contest.Days)
	require.NoError(t, err)

	var days []string
	for _, d := range report.Days {
		days = append(days, d.Day)
		assert.FileExists(t, d.PDFPath)
	}
	assert.Equal(t, []string{"day1", "day2", "day3"}, days)
}

func TestRender_DefaultOutputDir(t *testing.T) {
	h := newHarness(t, oneDay())

	_, err := h.pipeline(t, func(o *Options) { o.OutputDir = "" }).
		Render(context.Background(), h.contest, h.contest.Days)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(h.contest.Path, DefaultOutputDir, "day1", "day1.pdf"))
}

func TestReport_ErrAggregates(t *testing.T) {
	first := appErr.New(appErr.StatementMissing)
	report := Report{Days: []DayResult{
		{Day: "day1", Err: first},
		{Day: "day2"},
		{Day: "day3", Err: appErr.New(appErr.CompileFailure)},
	}}

	err := report.Err()
	require.Error(t, err)
	assert.Equal(t, appErr.StatementMissing, appErr.GetCode(err))
	assert.True(t, strings.Contains(err.Error(), "2 of 3 days failed"))
	assert.Nil(t, Report{Days: []DayResult{{Day: "day1"}}}.Err())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)

	p, err = ParsePolicy("best-effort")
	require.NoError(t, err)
	assert.Equal(t, PolicyBestEffort, p)

	_, err = ParsePolicy("sometimes")
	assert.True(t, appErr.Is(err, appErr.InvalidParams))
}

func TestNewPipeline_Requires(t *testing.T) {
	_, err := NewPipeline(Options{})
	assert.True(t, appErr.Is(err, appErr.InvalidParams))
}
