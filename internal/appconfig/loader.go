package appconfig

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"tuackng/internal/render"
	appErr "tuackng/pkg/errors"
)

const (
	// EnvPrefix starts every environment override, e.g. TUACK_RENDER_JOBS.
	EnvPrefix = "TUACK_"

	maxConfigFileSize = 1024 * 1024
)

// DefaultPath returns ~/.config/tuack-ng/config.yaml, honouring XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tuack-ng", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tuack-ng", "config.yaml"), nil
}

// Load reads configuration from the YAML file at configPath, then applies
// TUACK_* environment overrides, defaults and validation.
//
// An empty configPath selects DefaultPath, which may be absent. An explicit
// path must exist.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	explicit := configPath != ""
	if !explicit {
		path, err := DefaultPath()
		if err != nil {
			return nil, appErr.Wrap(err, appErr.ConfigIOError)
		}
		configPath = path
	}

	content, err := readConfigFile(configPath, explicit)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, appErr.Wrapf(err, appErr.ConfigParseError, "failed to load config file %s", configPath)
		}
	}

	// TUACK_RENDER_FONT_PATH -> render.font_path: the first segment after the
	// prefix names the section, the rest is the field.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigParseError, "failed to load environment variables")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigParseError, "failed to unmarshal config")
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(path string, required bool) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		return nil, appErr.Wrapf(err, appErr.ConfigIOError, "failed to open config file %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigIOError, "failed to stat config file %s", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, appErr.Newf(appErr.ConfigIOError, "config file too large: %d bytes (max %d)",
			info.Size(), maxConfigFileSize)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigIOError, "failed to read config file %s", path)
	}
	return content, nil
}

func envKey(name, value string) (string, interface{}) {
	lower := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", nil
	}
	key := parts[0] + "." + parts[1]
	if key == "render.template_dirs" {
		return key, filepath.SplitList(value)
	}
	return key, value
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if len(cfg.Render.TemplateDirs) == 0 {
		cfg.Render.TemplateDirs = render.DefaultDirs()
	}
	if cfg.Render.Compiler == "" {
		cfg.Render.Compiler = "typst"
	}
	if cfg.Render.FontPath == "" {
		cfg.Render.FontPath = "fonts"
	}
	if cfg.Render.Policy == "" {
		cfg.Render.Policy = string(render.PolicyAbort)
	}
	if cfg.Render.Jobs == 0 {
		cfg.Render.Jobs = 1
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return appErr.BadRequest(fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return appErr.BadRequest(fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}

	if _, err := render.ParsePolicy(c.Render.Policy); err != nil {
		return err
	}
	if c.Render.Jobs < 1 {
		return appErr.BadRequest(fmt.Sprintf("render.jobs must be at least 1, got %d", c.Render.Jobs))
	}
	if c.Render.MaxDepth < 0 {
		return appErr.BadRequest(fmt.Sprintf("render.max_depth must not be negative, got %d", c.Render.MaxDepth))
	}
	if c.Render.CompileTimeout < 0 {
		return appErr.BadRequest("render.compile_timeout must not be negative")
	}

	if c.Publish.Enabled {
		required := []struct{ name, value string }{
			{"endpoint", c.Publish.Endpoint},
			{"access_key", c.Publish.AccessKey},
			{"secret_key", c.Publish.SecretKey},
			{"bucket", c.Publish.Bucket},
		}
		var missing []string
		for _, r := range required {
			if r.value == "" {
				missing = append(missing, "publish."+r.name)
			}
		}
		if len(missing) > 0 {
			return appErr.BadRequest("publishing is enabled but these settings are empty: " + strings.Join(missing, ", "))
		}
	}
	return nil
}
