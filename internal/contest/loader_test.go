package contest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuackng/internal/testutil"
	appErr "tuackng/pkg/errors"
)

func canon(t *testing.T, dir string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return resolved
}

func twoDayContest() testutil.ContestFixture {
	return testutil.ContestFixture{
		Days: []testutil.DayFixture{
			{Folder: "day2", Problems: []testutil.ProblemFixture{{Folder: "zeta"}, {Folder: "alpha"}}},
			{Folder: "day1", Problems: []testutil.ProblemFixture{{Folder: "mid", DataCount: 4}}},
		},
	}
}

func TestLocate_FromDeepDirectory(t *testing.T) {
	root := canon(t, t.TempDir())
	testutil.WriteContest(t, root, twoDayContest())
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0755))

	path, err := Locate(context.Background(), deep, LocateOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ConfigFileName), path)
}

func TestLocate_SkipsNonContestConfigs(t *testing.T) {
	root := canon(t, t.TempDir())
	testutil.WriteContest(t, root, twoDayContest())

	// day2/zeta carries a problem-level conf.json; the walk passes it and the day.
	path, err := Locate(context.Background(), filepath.Join(root, "day2", "zeta"), LocateOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ConfigFileName), path)
}

func TestLocate_MaxDepth(t *testing.T) {
	root := canon(t, t.TempDir())
	testutil.WriteContest(t, root, twoDayContest())
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0755))

	_, err := Locate(context.Background(), deep, LocateOptions{MaxDepth: 3})
	require.NoError(t, err)

	_, err = Locate(context.Background(), deep, LocateOptions{MaxDepth: 2})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigNotFound))
}

func TestLocate_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Locate(context.Background(), dir, LocateOptions{})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigNotFound))
}

func TestLocate_OldVersionAbortsWalk(t *testing.T) {
	root := canon(t, t.TempDir())
	testutil.WriteContest(t, root, twoDayContest())
	// A legacy file between start and root stops the search.
	testutil.WriteJSON(t, filepath.Join(root, "legacy", "conf.json"), map[string]interface{}{"version": 2, "folder": "day"})
	start := filepath.Join(root, "legacy", "sub")
	require.NoError(t, os.MkdirAll(start, 0755))

	_, err := Locate(context.Background(), start, LocateOptions{})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigVersionTooOld))
}

func TestLocate_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, ConfigFileName), "{not json")
	_, err := Locate(context.Background(), dir, LocateOptions{})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigParseError))
}

func TestLocate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Locate(ctx, t.TempDir(), LocateOptions{})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.Canceled))
}

func TestLoad_PreservesListedOrder(t *testing.T) {
	root := canon(t, t.TempDir())
	testutil.WriteContest(t, root, twoDayContest())
	// An unlisted directory with a valid config is never loaded.
	testutil.WriteJSON(t, filepath.Join(root, "day3", "conf.json"), map[string]interface{}{"version": 3, "folder": "day3"})

	cfg, err := Load(context.Background(), filepath.Join(root, "day1"), LocateOptions{})
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Path)
	require.Len(t, cfg.Days, 2)
	assert.Equal(t, "day2", cfg.Days[0].Name)
	assert.Equal(t, "day1", cfg.Days[1].Name)
	assert.Equal(t, filepath.Join(root, "day2"), cfg.Days[0].Path)

	require.Len(t, cfg.Days[0].Problems, 2)
	assert.Equal(t, "zeta", cfg.Days[0].Problems[0].Name)
	assert.Equal(t, "alpha", cfg.Days[0].Problems[1].Name)
	assert.Equal(t, filepath.Join(root, "day2", "alpha"), cfg.Days[0].Problems[1].Path)

	mid := cfg.Days[1].Problems[0]
	require.Len(t, mid.Data, 4)
	assert.Equal(t, "3.in", mid.Data[2].Input)
	assert.Equal(t, "1.ans", mid.Samples[0].Output)
	assert.Equal(t, "-O2 -std=c++14", cfg.Days[1].Compile.Cpp)
	assert.Equal(t, [6]int{2024, 7, 1, 8, 0, 0}, cfg.Days[1].StartTime)
}

func TestLoad_OptionalFlags(t *testing.T) {
	root := canon(t, t.TempDir())
	fixture := twoDayContest()
	fixture.Flags = map[string]bool{"file-io": false}
	fixture.Days[0].Flags = map[string]bool{"use-pretest": true}
	testutil.WriteContest(t, root, fixture)

	cfg, err := Load(context.Background(), root, LocateOptions{})
	require.NoError(t, err)
	require.NotNil(t, cfg.FileIO)
	assert.False(t, *cfg.FileIO)
	assert.Nil(t, cfg.UsePretest)
	require.NotNil(t, cfg.Days[0].UsePretest)
	assert.True(t, *cfg.Days[0].UsePretest)
	assert.Nil(t, cfg.Days[1].UsePretest)
}

func TestLoad_VersionTooOldAtAnyLevel(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *testutil.ContestFixture)
	}{
		{"day", func(f *testutil.ContestFixture) { f.Days[1].Version = 2 }},
		{"problem", func(f *testutil.ContestFixture) { f.Days[0].Problems[1].Version = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			fixture := twoDayContest()
			tt.mutate(&fixture)
			testutil.WriteContest(t, root, fixture)

			cfg, err := Load(context.Background(), root, LocateOptions{})
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, appErr.Is(err, appErr.ConfigVersionTooOld), "got %v", err)
		})
	}
}

func TestLoad_RootVersionTooOld(t *testing.T) {
	root := t.TempDir()
	fixture := twoDayContest()
	fixture.Version = 2
	testutil.WriteContest(t, root, fixture)

	cfg, err := Load(context.Background(), root, LocateOptions{})
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, appErr.Is(err, appErr.ConfigVersionTooOld))
}

func TestLoad_MissingChildConfig(t *testing.T) {
	root := t.TempDir()
	testutil.WriteContest(t, root, twoDayContest())
	require.NoError(t, os.Remove(filepath.Join(root, "day1", "mid", ConfigFileName)))

	cfg, err := Load(context.Background(), root, LocateOptions{})
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, appErr.Is(err, appErr.ConfigIOError))
}

func TestLoad_MissingRequiredKey(t *testing.T) {
	root := t.TempDir()
	testutil.WriteContest(t, root, twoDayContest())
	testutil.WriteJSON(t, filepath.Join(root, "day1", "mid", ConfigFileName), map[string]interface{}{
		"version": 3, "folder": "mid", "type": "program", "name": "mid",
	})

	_, err := Load(context.Background(), root, LocateOptions{})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigParseError))
	assert.Contains(t, err.Error(), "title")
}

func TestLoad_MalformedField(t *testing.T) {
	root := t.TempDir()
	testutil.WriteContest(t, root, twoDayContest())
	testutil.WriteJSON(t, filepath.Join(root, "day1", "mid", ConfigFileName), map[string]interface{}{
		"version": 3, "folder": "mid", "type": "program", "name": "mid", "title": "Mid",
		"time limit": "one second", "memory limit": "1 GiB", "partial score": false,
		"samples": []interface{}{}, "data": []interface{}{},
	})

	_, err := Load(context.Background(), root, LocateOptions{})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigParseError))
}

func TestLoad_RejectsEscapingSubdir(t *testing.T) {
	root := t.TempDir()
	testutil.WriteJSON(t, filepath.Join(root, ConfigFileName), map[string]interface{}{
		"version": 3, "folder": "contest", "name": "c", "subdir": []string{"../elsewhere"},
		"title": "C", "short title": "C",
	})

	_, err := Load(context.Background(), root, LocateOptions{})
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigParseError))
}

func TestSelectDays(t *testing.T) {
	root := t.TempDir()
	testutil.WriteContest(t, root, twoDayContest())
	cfg, err := Load(context.Background(), root, LocateOptions{})
	require.NoError(t, err)

	all, err := cfg.SelectDays("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := cfg.SelectDays("day1")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "day1", one[0].Name)

	_, err = cfg.SelectDays("day9")
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.DayNotFound))
}
