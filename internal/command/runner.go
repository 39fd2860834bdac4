// Package command runs a task's primary command in the foreground and
// persists its output streams.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/google/shlex"
	"github.com/netlabtools/tracecreator/internal/artifact"
	"github.com/netlabtools/tracecreator/internal/lg"
)

// Runner executes task commands synchronously. The command's exit ends
// the interesting window of the capture, so callers start the capture
// before Run and stop it only after Run returns.
type Runner struct {
	log lg.Logger
}

func NewRunner(log lg.Logger) *Runner {
	return &Runner{log: log}
}

// Run executes cmdline, blocking until the process exits. Stdout is
// written to {outputDir}/{identity}.log and stderr to
// {outputDir}/{identity}.err, each only when non-empty. A non-zero exit
// code is not an error; only failure to launch the process is.
func (r *Runner) Run(ctx context.Context, cmdline, identity, outputDir string) error {
	r.log.Info("running command", lg.String("command", cmdline))

	args, err := shlex.Split(cmdline)
	if err != nil {
		return fmt.Errorf("split command %q: %w", cmdline, err)
	}
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("run command %q: %w", cmdline, err)
	}

	if stdout.Len() > 0 {
		r.log.Info("command output", lg.String("stdout", stdout.String()))
		logPath := filepath.Join(outputDir, identity+".log")
		if err := artifact.WriteIfNonEmpty(logPath, stdout.Bytes()); err != nil {
			return err
		}
	}
	if stderr.Len() > 0 {
		r.log.Warn("command error output", lg.String("stderr", stderr.String()))
		errPath := filepath.Join(outputDir, identity+".err")
		if err := artifact.WriteIfNonEmpty(errPath, stderr.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
