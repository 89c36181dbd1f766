// Package appconfig loads the tool's own settings: logging, rendering and
// publishing. Contest data lives in conf.json files and is handled by the
// contest package.
package appconfig

import (
	"time"

	"tuackng/internal/common/storage"
	"tuackng/pkg/utils/logger"
)

// Config is the resolved tool configuration.
type Config struct {
	Log     LogConfig     `koanf:"log" yaml:"log"`
	Render  RenderConfig  `koanf:"render" yaml:"render"`
	Publish PublishConfig `koanf:"publish" yaml:"publish"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	Output string `koanf:"output" yaml:"output"`
}

// Logger converts the section into logger settings.
func (c LogConfig) Logger() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, OutputPath: c.Output}
}

// RenderConfig controls template lookup, the compiler and the day loop.
type RenderConfig struct {
	TemplateDirs   []string      `koanf:"template_dirs" yaml:"template_dirs"`
	Compiler       string        `koanf:"compiler" yaml:"compiler"`
	FontPath       string        `koanf:"font_path" yaml:"font_path"`
	Policy         string        `koanf:"policy" yaml:"policy"`
	Jobs           int           `koanf:"jobs" yaml:"jobs"`
	MaxDepth       int           `koanf:"max_depth" yaml:"max_depth"`
	OutputDir      string        `koanf:"output_dir" yaml:"output_dir"`
	CompileTimeout time.Duration `koanf:"compile_timeout" yaml:"compile_timeout"`
}

// PublishConfig enables uploading booklets to S3-compatible storage.
type PublishConfig struct {
	Enabled   bool   `koanf:"enabled" yaml:"enabled"`
	Endpoint  string `koanf:"endpoint" yaml:"endpoint"`
	AccessKey string `koanf:"access_key" yaml:"access_key"`
	SecretKey string `koanf:"secret_key" yaml:"-"`
	UseSSL    bool   `koanf:"use_ssl" yaml:"use_ssl"`
	Region    string `koanf:"region" yaml:"region"`
	Bucket    string `koanf:"bucket" yaml:"bucket"`
	Prefix    string `koanf:"prefix" yaml:"prefix"`
}

// MinIO converts the section into storage client settings.
func (c PublishConfig) MinIO() storage.MinIOConfig {
	return storage.MinIOConfig{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		UseSSL:    c.UseSSL,
		Region:    c.Region,
	}
}
