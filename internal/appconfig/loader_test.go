package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "tuackng/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_DefaultsWhenDefaultFileAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "typst", cfg.Render.Compiler)
	assert.Equal(t, "fonts", cfg.Render.FontPath)
	assert.Equal(t, "abort", cfg.Render.Policy)
	assert.Equal(t, 1, cfg.Render.Jobs)
	assert.Equal(t, 0, cfg.Render.MaxDepth)
	assert.Equal(t, time.Duration(0), cfg.Render.CompileTimeout)
	require.Len(t, cfg.Render.TemplateDirs, 3)
	assert.Equal(t, "templates", cfg.Render.TemplateDirs[0])
	assert.Equal(t, filepath.Join("/data", "tuack-ng", "templates"), cfg.Render.TemplateDirs[1])
	assert.False(t, cfg.Publish.Enabled)
}

func TestLoad_DefaultFileFromXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "tuack-ng", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("render:\n  jobs: 3\n"), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Render.Jobs)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
render:
  template_dirs: [/opt/templates, ./local]
  compiler: "nice typst"
  policy: best-effort
  jobs: 4
  max_depth: 6
  output_dir: out
  compile_timeout: 90s
publish:
  enabled: true
  endpoint: localhost:9000
  access_key: minio
  secret_key: minio123
  bucket: booklets
  prefix: contests
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"/opt/templates", "./local"}, cfg.Render.TemplateDirs)
	assert.Equal(t, "nice typst", cfg.Render.Compiler)
	assert.Equal(t, "best-effort", cfg.Render.Policy)
	assert.Equal(t, 4, cfg.Render.Jobs)
	assert.Equal(t, 6, cfg.Render.MaxDepth)
	assert.Equal(t, "out", cfg.Render.OutputDir)
	assert.Equal(t, 90*time.Second, cfg.Render.CompileTimeout)
	assert.True(t, cfg.Publish.Enabled)
	assert.Equal(t, "booklets", cfg.Publish.Bucket)

	minio := cfg.Publish.MinIO()
	assert.Equal(t, "localhost:9000", minio.Endpoint)
	assert.Equal(t, "minio123", minio.SecretKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "render:\n  jobs: 2\n  font_path: assets/fonts\n")
	t.Setenv("TUACK_RENDER_JOBS", "8")
	t.Setenv("TUACK_LOG_LEVEL", "warn")
	t.Setenv("TUACK_RENDER_TEMPLATE_DIRS", "/a"+string(os.PathListSeparator)+"/b")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Render.Jobs)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "assets/fonts", cfg.Render.FontPath)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Render.TemplateDirs)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigIOError))
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "render: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, appErr.Is(err, appErr.ConfigParseError))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{}
		applyDefaults(&cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"policy", func(c *Config) { c.Render.Policy = "sometimes" }, "policy"},
		{"jobs", func(c *Config) { c.Render.Jobs = -1 }, "render.jobs"},
		{"max depth", func(c *Config) { c.Render.MaxDepth = -2 }, "render.max_depth"},
		{"publish", func(c *Config) { c.Publish.Enabled = true; c.Publish.Endpoint = "x" }, "publish.access_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, appErr.Is(err, appErr.InvalidParams))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())
}

func TestEnvKey(t *testing.T) {
	key, value := envKey("TUACK_PUBLISH_ACCESS_KEY", "k")
	assert.Equal(t, "publish.access_key", key)
	assert.Equal(t, "k", value)

	key, _ = envKey("TUACK_VERBOSE", "1")
	assert.Equal(t, "", key)
}
