package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"tuackng/internal/contest"
	"tuackng/pkg/utils/contextkey"
	"tuackng/pkg/utils/logger"
)

const (
	timeLimitUnit = "秒"
	pointEqualYes = "是"
)

var typeLabels = map[contest.ProblemType]string{
	contest.TypeProgram:     "传统型",
	contest.TypeOutput:      "提交答案型",
	contest.TypeInteractive: "交互型",
}

// Flags are the presentation switches consumed by the template.
type Flags struct {
	UsePretest bool
	NoiStyle   bool
	FileIO     bool
}

// DefaultFlags apply when neither the day nor the contest overrides a flag.
var DefaultFlags = Flags{UsePretest: false, NoiStyle: true, FileIO: true}

// ResolveFlags resolves each flag as day value, else contest value, else default.
func ResolveFlags(c *contest.ContestConfig, day *contest.ContestDayConfig) Flags {
	return Flags{
		UsePretest: pick(DefaultFlags.UsePretest, c.UsePretest, day.UsePretest),
		NoiStyle:   pick(DefaultFlags.NoiStyle, c.NoiStyle, day.NoiStyle),
		FileIO:     pick(DefaultFlags.FileIO, c.FileIO, day.FileIO),
	}
}

func pick(def bool, contestValue, dayValue *bool) bool {
	if dayValue != nil {
		return *dayValue
	}
	if contestValue != nil {
		return *contestValue
	}
	return def
}

// Build projects day into a manifest. It never fails: unknown problem types
// fall back to the traditional label with a warning.
func Build(ctx context.Context, c *contest.ContestConfig, day *contest.ContestDayConfig) DataJSON {
	flags := ResolveFlags(c, day)

	problems := make([]Problem, 0, len(day.Problems))
	for idx, p := range day.Problems {
		problems = append(problems, buildProblem(ctx, idx, p))
	}

	return DataJSON{
		Title:      c.Title,
		Subtitle:   c.ShortTitle,
		DayName:    day.Title,
		Date:       DateInfo{Start: day.StartTime, End: day.EndTime},
		UsePretest: flags.UsePretest,
		NoiStyle:   flags.NoiStyle,
		FileIO:     flags.FileIO,
		SupportLanguages: []SupportLanguage{
			{Name: "C++", CompileOptions: day.Compile.Cpp},
		},
		Problems: problems,
		Images:   []json.RawMessage{},
	}
}

func buildProblem(ctx context.Context, idx int, p *contest.ProblemConfig) Problem {
	typ, ok := contest.ParseProblemType(p.Type)
	if !ok {
		logger.Warn(contextkey.WithProblem(ctx, p.Name), "unknown problem type, using program",
			zap.String("type", p.Type))
	}

	return Problem{
		Index:          idx,
		Name:           p.Name,
		Title:          p.Title,
		Type:           typeLabels[typ],
		Dir:            p.Name,
		Exec:           p.Name,
		Input:          p.Name + ".in",
		Output:         p.Name + ".out",
		TimeLimit:      FormatTimeLimit(p.TimeLimit),
		MemoryLimit:    p.MemoryLimit,
		Testcase:       strconv.Itoa(len(p.Data)),
		PointEqual:     pointEqualYes,
		SubmitFilename: []string{p.Name + ".cpp"},
	}
}

// FormatTimeLimit renders seconds with one decimal and the unit suffix.
func FormatTimeLimit(seconds float64) string {
	return fmt.Sprintf("%.1f %s", seconds, timeLimitUnit)
}
