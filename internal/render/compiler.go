package render

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	appErr "tuackng/pkg/errors"
	"tuackng/pkg/utils/logger"
)

// ExecRequest describes one external process invocation.
type ExecRequest struct {
	Args []string
	Dir  string
}

// ExecResult is the outcome of a process that started.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// ExecFunc runs a process to completion. It returns an error only when the
// process could not be started or was interrupted; a non-zero exit is
// reported through ExecResult.ExitCode.
type ExecFunc func(ctx context.Context, req ExecRequest) (ExecResult, error)

// SystemExec runs req with os/exec. Cancelling ctx kills the process.
func SystemExec(ctx context.Context, req ExecRequest) (ExecResult, error) {
	if len(req.Args) == 0 {
		return ExecResult{}, appErr.BadRequest("command is empty")
	}
	cmd := exec.CommandContext(ctx, req.Args[0], req.Args[1:]...)
	cmd.Dir = req.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// CompileRequest describes one document compilation.
type CompileRequest struct {
	WorkDir string
	Input   string
	Output  string
}

// CompileResult carries the compiler's captured output.
type CompileResult struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Compiler checks for and runs the document toolchain.
type Compiler interface {
	Check(ctx context.Context) (string, error)
	Compile(ctx context.Context, req CompileRequest) (CompileResult, error)
}

// CompilerConfig configures a TypstCompiler.
type CompilerConfig struct {
	// Command is split shell-style, so wrappers such as "nice typst" work.
	Command  string
	FontPath string
	Timeout  time.Duration
	Exec     ExecFunc
}

// TypstCompiler invokes the typst command line.
type TypstCompiler struct {
	command  []string
	fontPath string
	timeout  time.Duration
	exec     ExecFunc
}

// NewTypstCompiler creates a compiler. A nil Exec selects SystemExec.
func NewTypstCompiler(cfg CompilerConfig) (*TypstCompiler, error) {
	fields, err := shlex.Split(cfg.Command)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse compiler command failed")
	}
	if len(fields) == 0 {
		return nil, appErr.BadRequest("compiler command is empty")
	}
	execFn := cfg.Exec
	if execFn == nil {
		execFn = SystemExec
	}
	return &TypstCompiler{
		command:  fields,
		fontPath: cfg.FontPath,
		timeout:  cfg.Timeout,
		exec:     execFn,
	}, nil
}

func (c *TypstCompiler) args(extra ...string) []string {
	args := make([]string, 0, len(c.command)+len(extra))
	args = append(args, c.command...)
	return append(args, extra...)
}

// Check runs "<command> --version" and returns its first output line.
func (c *TypstCompiler) Check(ctx context.Context) (string, error) {
	res, err := c.exec(ctx, ExecRequest{Args: c.args("--version")})
	if err != nil {
		if ctx.Err() != nil {
			return "", appErr.Wrap(ctx.Err(), appErr.Canceled)
		}
		return "", appErr.Wrapf(err, appErr.ToolchainUnavailable, "%s is not available", c.command[0]).
			WithDetail("command", strings.Join(c.command, " "))
	}
	if res.ExitCode != 0 {
		return "", appErr.Newf(appErr.ToolchainUnavailable, "%s --version exited with code %d", c.command[0], res.ExitCode).
			WithDetail("stderr", string(res.Stderr))
	}
	version := strings.TrimSpace(string(res.Stdout))
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = version[:i]
	}
	return version, nil
}

// Compile runs "<command> compile --font-path=<fonts> <input> <output>" in
// req.WorkDir. A non-zero exit is a CompileFailure whose "stderr" detail holds
// the compiler's diagnostics verbatim.
func (c *TypstCompiler) Compile(ctx context.Context, req CompileRequest) (CompileResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := c.args("compile")
	if c.fontPath != "" {
		args = append(args, "--font-path="+c.fontPath)
	}
	args = append(args, req.Input, req.Output)

	logger.Debug(ctx, "running compiler", zap.Strings("args", args), zap.String("dir", req.WorkDir))
	start := time.Now()
	res, err := c.exec(ctx, ExecRequest{Args: args, Dir: req.WorkDir})
	result := CompileResult{
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
		Duration: time.Since(start),
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, appErr.Wrapf(err, appErr.CompileFailure, "compiler timed out after %s", c.timeout).
				WithDetail("stderr", result.Stderr)
		}
		if ctx.Err() != nil {
			return result, appErr.Wrap(ctx.Err(), appErr.Canceled)
		}
		return result, appErr.Wrapf(err, appErr.CompileFailure, "start compiler failed").
			WithDetail("stderr", result.Stderr)
	}
	if res.ExitCode != 0 {
		return result, appErr.Newf(appErr.CompileFailure, "compiler exited with code %d", res.ExitCode).
			WithDetail("stderr", result.Stderr).
			WithDetail("exit_code", res.ExitCode)
	}
	return result, nil
}
