// Package contest resolves the three-level contest configuration tree
// (contest, contest day, problem) from conf.json files on disk.
package contest

const (
	// ConfigFileName is the fixed configuration file name at every level.
	ConfigFileName = "conf.json"
	// MinVersion is the lowest supported schema version. Older files come
	// from the legacy tool and are rejected rather than migrated.
	MinVersion = 3
	// RootFolder marks the configuration file of a contest root.
	RootFolder = "contest"
)

// ContestConfig is the contest-level record.
type ContestConfig struct {
	Version    int      `json:"version" yaml:"version"`
	Folder     string   `json:"folder" yaml:"folder"`
	Name       string   `json:"name" yaml:"name"`
	Subdir     []string `json:"subdir" yaml:"subdir"`
	Title      string   `json:"title" yaml:"title"`
	ShortTitle string   `json:"short title" yaml:"short_title"`
	UsePretest *bool    `json:"use-pretest,omitempty" yaml:"use_pretest,omitempty"`
	NoiStyle   *bool    `json:"noi-style,omitempty" yaml:"noi_style,omitempty"`
	FileIO     *bool    `json:"file-io,omitempty" yaml:"file_io,omitempty"`

	// Path is the absolute directory the record was loaded from.
	Path string              `json:"-" yaml:"path"`
	Days []*ContestDayConfig `json:"-" yaml:"days"`
}

// ContestDayConfig is one contest day.
type ContestDayConfig struct {
	Version    int           `json:"version" yaml:"version"`
	Folder     string        `json:"folder" yaml:"folder"`
	Name       string        `json:"name" yaml:"name"`
	Subdir     []string      `json:"subdir" yaml:"subdir"`
	Title      string        `json:"title" yaml:"title"`
	Compile    CompileConfig `json:"compile" yaml:"compile"`
	StartTime  [6]int        `json:"start time" yaml:"start_time,flow"`
	EndTime    [6]int        `json:"end time" yaml:"end_time,flow"`
	UsePretest *bool         `json:"use-pretest,omitempty" yaml:"use_pretest,omitempty"`
	NoiStyle   *bool         `json:"noi-style,omitempty" yaml:"noi_style,omitempty"`
	FileIO     *bool         `json:"file-io,omitempty" yaml:"file_io,omitempty"`

	Path     string           `json:"-" yaml:"path"`
	Problems []*ProblemConfig `json:"-" yaml:"problems"`
}

// CompileConfig maps a language to its compiler invocation.
type CompileConfig struct {
	Cpp string `json:"cpp" yaml:"cpp"`
	C   string `json:"c,omitempty" yaml:"c,omitempty"`
}

// ProblemConfig is one problem of a contest day.
type ProblemConfig struct {
	Version      int          `json:"version" yaml:"version"`
	Folder       string       `json:"folder" yaml:"folder"`
	Type         string       `json:"type" yaml:"type"`
	Name         string       `json:"name" yaml:"name"`
	Title        string       `json:"title" yaml:"title"`
	TimeLimit    float64      `json:"time limit" yaml:"time_limit"`
	MemoryLimit  string       `json:"memory limit" yaml:"memory_limit"`
	PartialScore bool         `json:"partial score" yaml:"partial_score"`
	Samples      []SampleItem `json:"samples" yaml:"samples"`
	Data         []DataItem   `json:"data" yaml:"data"`

	Path string `json:"-" yaml:"path"`
}

// ProblemType is the closed set of problem kinds.
type ProblemType string

const (
	TypeProgram     ProblemType = "program"
	TypeOutput      ProblemType = "output"
	TypeInteractive ProblemType = "interactive"
)

// ParseProblemType maps a type tag onto the closed set. Unknown tags map to
// TypeProgram and report ok == false so callers can warn.
func ParseProblemType(tag string) (ProblemType, bool) {
	switch ProblemType(tag) {
	case TypeProgram, TypeOutput, TypeInteractive:
		return ProblemType(tag), true
	default:
		return TypeProgram, false
	}
}
