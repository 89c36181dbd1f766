package contest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	appErr "tuackng/pkg/errors"
	"tuackng/pkg/utils/logger"
)

// Required keys per level. Lookups use gjson paths, so nested keys use dots.
var (
	contestKeys = []string{"version", "folder", "name", "subdir", "title", "short title"}
	dayKeys     = []string{"version", "folder", "name", "subdir", "title", "compile", "compile.cpp", "start time", "end time"}
	problemKeys = []string{"version", "folder", "type", "name", "title", "time limit", "memory limit", "partial score", "samples", "data"}
)

// Load locates the contest root above startDir and reads the whole tree.
// Any failure aborts the load; no partial tree is returned.
func Load(ctx context.Context, startDir string, opts LocateOptions) (*ContestConfig, error) {
	rootPath, err := Locate(ctx, startDir, opts)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "found contest config", zap.String("path", rootPath))

	var cfg ContestConfig
	if err := readRecord(rootPath, contestKeys, &cfg); err != nil {
		return nil, err
	}
	cfg.Path = filepath.Dir(rootPath)
	cfg.Days = make([]*ContestDayConfig, 0, len(cfg.Subdir))

	for _, dayFolder := range cfg.Subdir {
		if err := ctx.Err(); err != nil {
			return nil, appErr.Wrap(err, appErr.Canceled)
		}
		day, err := loadDay(ctx, rootPath, cfg.Path, dayFolder)
		if err != nil {
			return nil, err
		}
		cfg.Days = append(cfg.Days, day)
	}

	logger.Debug(ctx, "contest config loaded",
		zap.String("name", cfg.Name),
		zap.Int("days", len(cfg.Days)))
	return &cfg, nil
}

func loadDay(ctx context.Context, parentFile, parentDir, folder string) (*ContestDayConfig, error) {
	dir, err := childDir(parentFile, parentDir, folder)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, ConfigFileName)

	var day ContestDayConfig
	if err := readRecord(path, dayKeys, &day); err != nil {
		return nil, err
	}
	day.Path = dir
	day.Problems = make([]*ProblemConfig, 0, len(day.Subdir))

	for _, problemFolder := range day.Subdir {
		problem, err := loadProblem(path, dir, problemFolder)
		if err != nil {
			return nil, err
		}
		day.Problems = append(day.Problems, problem)
	}
	logger.Debug(ctx, "contest day loaded",
		zap.String("day", day.Name),
		zap.Int("problems", len(day.Problems)))
	return &day, nil
}

func loadProblem(parentFile, parentDir, folder string) (*ProblemConfig, error) {
	dir, err := childDir(parentFile, parentDir, folder)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, ConfigFileName)

	var problem ProblemConfig
	if err := readRecord(path, problemKeys, &problem); err != nil {
		return nil, err
	}
	problem.Path = dir
	problem.Finalize()
	return &problem, nil
}

// childDir resolves a subdir entry listed in parentFile. Entries must name a
// direct child directory.
func childDir(parentFile, parentDir, folder string) (string, error) {
	clean := filepath.Clean(folder)
	if folder == "" || clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", appErr.ParseFailure(parentFile, fmt.Sprintf("invalid subdir entry %q", folder))
	}
	return filepath.Join(parentDir, clean), nil
}

// readRecord reads path, checks required keys and the schema version, then
// decodes it into out. Unknown keys are ignored.
func readRecord(path string, required []string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return appErr.Wrapf(err, appErr.ConfigIOError, "configuration file %s does not exist", path).
				WithDetail("path", path)
		}
		return appErr.Wrapf(err, appErr.ConfigIOError, "read %s failed", path).WithDetail("path", path)
	}
	if !gjson.ValidBytes(data) {
		return appErr.ParseFailure(path, "invalid JSON")
	}

	// Version first: a legacy file is reported as such even if its keys differ.
	if version := gjson.GetBytes(data, "version"); version.Type == gjson.Number && version.Int() < MinVersion {
		return versionTooOld(path, version.Int())
	}
	for _, key := range required {
		if !gjson.GetBytes(data, key).Exists() {
			return appErr.ParseFailure(path, fmt.Sprintf("missing key %q", key))
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return appErr.Wrapf(err, appErr.ConfigParseError, "malformed configuration %s: %v", path, err).
			WithDetail("path", path)
	}
	return nil
}
