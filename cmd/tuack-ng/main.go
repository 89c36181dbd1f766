// Command tuack-ng renders contest statement booklets with Typst.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tuackng/internal/appconfig"
	appErr "tuackng/pkg/errors"
	"tuackng/pkg/utils/contextkey"
	"tuackng/pkg/utils/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(appErr.GetCode(err).ExitCode())
	}
}

// run builds a fresh command tree so tests can call it repeatedly.
func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	root := newRootCmd(outW, errW)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app carries state shared by subcommands once the persistent pre-run has
// loaded the tool configuration.
type app struct {
	outW io.Writer
	errW io.Writer

	configPath string
	logLevel   string
	logFormat  string

	cfg *appconfig.Config
}

func newRootCmd(outW, errW io.Writer) *cobra.Command {
	a := &app{outW: outW, errW: errW}

	rootCmd := &cobra.Command{
		Use:   "tuack-ng",
		Short: "Contest statement toolkit",
		Long: `tuack-ng turns a contest tree of conf.json files and markdown statements
into one PDF booklet per contest day.

Run it anywhere inside the contest directory; the root is found by walking
upward to the conf.json whose folder is "contest".`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	rootCmd.SetOut(outW)
	rootCmd.SetErr(errW)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return appErr.BadRequest(err.Error())
	})

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "tool config file (default ~/.config/tuack-ng/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: console or json")

	rootCmd.AddCommand(newRenCmd(a))
	rootCmd.AddCommand(newConfCmd(a))
	return rootCmd
}

// setup loads the tool config, applies the global flags and installs the
// logger. Every command context gets a run id.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var l *logger.Logger
	if cfg.Log.Output == "" {
		l, err = logger.NewWriterLogger(cfg.Log.Logger(), a.errW)
	} else {
		l, err = logger.NewLogger(cfg.Log.Logger())
	}
	if err != nil {
		return appErr.Wrapf(err, appErr.InvalidParams, "failed to initialize logger")
	}
	logger.SetLogger(l)
	a.cfg = cfg

	ctx := contextkey.WithRunID(cmd.Context(), uuid.NewString())
	cmd.SetContext(ctx)
	logger.Debug(ctx, "configuration loaded",
		zap.String("config", a.configPath),
		zap.Strings("template_dirs", cfg.Render.TemplateDirs),
	)
	return nil
}

// startDir resolves the directory the contest search starts from.
func startDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", appErr.FilesystemFailure(err, "getwd", ".")
	}
	return wd, nil
}
