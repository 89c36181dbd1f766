package contest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	appErr "tuackng/pkg/errors"
	"tuackng/pkg/utils/logger"
)

// LocateOptions bounds the upward search for the contest root.
type LocateOptions struct {
	// MaxDepth is the number of parent directories to try above the start
	// directory. Zero means unbounded (stop at the filesystem root).
	MaxDepth int
}

// Locate walks upward from startDir and returns the path of the nearest
// conf.json that declares folder == "contest".
func Locate(ctx context.Context, startDir string, opts LocateOptions) (string, error) {
	dir, err := canonicalDir(startDir)
	if err != nil {
		return "", err
	}

	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return "", appErr.Wrap(err, appErr.Canceled)
		}
		logger.Debug(ctx, "searching for contest config", zap.String("dir", dir))

		candidate := filepath.Join(dir, ConfigFileName)
		found, err := isContestRoot(candidate)
		if err != nil {
			return "", err
		}
		if found {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", appErr.Newf(appErr.ConfigNotFound, "no %s with folder %q found above %s", ConfigFileName, RootFolder, startDir).
				WithDetail("start", startDir)
		}
		if opts.MaxDepth > 0 && depth+1 > opts.MaxDepth {
			return "", appErr.Newf(appErr.ConfigNotFound, "no contest root within %d levels of %s", opts.MaxDepth, startDir).
				WithDetail("start", startDir)
		}
		dir = parent
	}
}

func canonicalDir(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ConfigIOError, "resolve %s failed", startDir)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ConfigIOError, "resolve %s failed", startDir)
	}
	return resolved, nil
}

// isContestRoot probes path without decoding it into a typed record. A
// version below MinVersion anywhere on the walk ends the search: a legacy
// file means this tree needs migration, not a different root.
func isContestRoot(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, appErr.Wrapf(err, appErr.ConfigIOError, "read %s failed", path).WithDetail("path", path)
	}
	if !gjson.ValidBytes(data) {
		return false, appErr.ParseFailure(path, "invalid JSON")
	}

	version := gjson.GetBytes(data, "version")
	if !version.Exists() || version.Type != gjson.Number {
		return false, nil
	}
	if version.Int() < MinVersion {
		return false, versionTooOld(path, version.Int())
	}
	return gjson.GetBytes(data, "folder").String() == RootFolder, nil
}

func versionTooOld(path string, version int64) error {
	return appErr.Newf(appErr.ConfigVersionTooOld,
		"%s has version %d, below the minimum %d; this looks like a legacy tuack configuration, migrate it to the tuack-ng format first",
		path, version, MinVersion).
		WithDetail("path", path).
		WithDetail("version", version)
}
