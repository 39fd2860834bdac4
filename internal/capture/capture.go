// Package capture controls the external packet-capture process for one
// task run.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/netlabtools/tracecreator/internal/lg"
)

// DefaultTool is the capture binary used unless overridden.
const DefaultTool = "tshark"

// FileExtension is the suffix of every capture file.
const FileExtension = ".pcapng"

// Controller launches and terminates capture processes. Tool may be
// overridden, mainly by tests.
type Controller struct {
	Tool string
	log  lg.Logger
}

func NewController(log lg.Logger) *Controller {
	return &Controller{Tool: DefaultTool, log: log}
}

// Handle is the owned reference to one running capture process. Exactly
// one exists per task; it is terminated, never restarted.
type Handle struct {
	File string

	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// Args builds the capture tool invocation: quiet mode, bound to iface,
// writing a pcapng container to file, with the capture filter passed
// through verbatim when present. Malformed filters are the tool's
// problem, not ours.
func Args(iface, file, filter string) []string {
	args := []string{"-i", iface, "-q", "-w", file, "-F", "pcapng"}
	if filter != "" {
		args = append(args, "-f", filter)
	}
	return args
}

// Start launches the capture process asynchronously, writing to
// {workspace}/{identity}.pcapng, and returns its handle immediately.
// The process's own output is retained for diagnostics but not
// inspected unless termination fails.
func (c *Controller) Start(identity, iface, filter, workspace string) (*Handle, error) {
	file := filepath.Join(workspace, identity+FileExtension)
	c.log.Info("starting capture",
		lg.String("interface", iface),
		lg.String("file", file),
		lg.String("filter", filter))

	h := &Handle{File: file}
	h.cmd = exec.Command(c.Tool, Args(iface, file, filter)...)
	h.cmd.Stdout = &h.stdout
	h.cmd.Stderr = &h.stderr

	if err := h.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture process %s: %w", c.Tool, err)
	}
	return h, nil
}

// Stop requests graceful termination so the tool flushes and finalizes
// its capture file, then reaps the process. The output file is only
// complete once Stop returns.
func (c *Controller) Stop(h *Handle) error {
	err := h.cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("terminate capture process: %w", err)
	}

	err = h.cmd.Wait()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("wait for capture process: %w", err)
	}
	// Exit via our SIGTERM reports no exit code; an actual code means the
	// tool died on its own before Stop, so surface what it complained about.
	if exitErr.ExitCode() != -1 {
		c.log.Warn("capture process exited before stop",
			lg.String("file", h.File),
			lg.Int("code", exitErr.ExitCode()),
			lg.String("stderr", h.stderr.String()))
	}
	return nil
}
