// Package orchestrator sequences the per-task recording lifecycle:
// remote host configuration, capture start, command execution, settle
// delay, capture stop, artifact collection.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/netlabtools/tracecreator/internal/artifact"
	"github.com/netlabtools/tracecreator/internal/capture"
	"github.com/netlabtools/tracecreator/internal/lg"
	"github.com/netlabtools/tracecreator/internal/task"
)

// HostConfigurator runs one remote pre-step command on one host.
type HostConfigurator interface {
	Configure(ctx context.Context, host, command, identity, outputDir string) error
}

// CaptureController starts and gracefully stops the capture process.
type CaptureController interface {
	Start(identity, iface, filter, workspace string) (*capture.Handle, error)
	Stop(h *capture.Handle) error
}

// CommandRunner executes the task's primary command to completion.
type CommandRunner interface {
	Run(ctx context.Context, cmdline, identity, outputDir string) error
}

// Collector moves all workspace contents to the output directory.
type Collector func(sourceDir, destinationDir string) error

// Config is the immutable run context shared by every task.
type Config struct {
	Interface   string        `validate:"required"`
	OutputDir   string        `validate:"required"`
	Workspace   string        `validate:"required"`
	SettleDelay time.Duration `validate:"gte=0"`
}

var validate = validator.New()

// Orchestrator processes the declared task list strictly sequentially.
// The capture process is the only thing that runs concurrently with
// anything, and only within a task.
type Orchestrator struct {
	cfg     Config
	remote  HostConfigurator
	capture CaptureController
	runner  CommandRunner
	collect Collector
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	log     lg.Logger
}

func New(cfg Config, remote HostConfigurator, controller CaptureController, runner CommandRunner, log lg.Logger) (*Orchestrator, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	return &Orchestrator{
		cfg:     cfg,
		remote:  remote,
		capture: controller,
		runner:  runner,
		collect: artifact.MoveAll,
		now:     time.Now,
		sleep:   sleepCtx,
		log:     log,
	}, nil
}

// Run processes every task in order. The first failure aborts the
// remaining run; artifacts already collected for prior tasks stay put.
func (o *Orchestrator) Run(ctx context.Context, tasks []task.Task) error {
	log := o.log.With(lg.String("run", uuid.New().String()))

	if err := os.MkdirAll(o.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory %s: %w", o.cfg.OutputDir, err)
	}
	// The workspace is shared with the capture tool, which may run under
	// different privileges.
	if err := os.MkdirAll(o.cfg.Workspace, 0777); err != nil {
		return fmt.Errorf("create capture workspace %s: %w", o.cfg.Workspace, err)
	}

	log.Info("starting commands execution and packet capture", lg.Int("tasks", len(tasks)))
	for _, t := range tasks {
		if err := o.runTask(ctx, log, t); err != nil {
			return fmt.Errorf("task %q: %w", t.Name, err)
		}
	}
	log.Info("all data exported")
	return nil
}

func (o *Orchestrator) runTask(ctx context.Context, log lg.Logger, t task.Task) error {
	log.Info("processing task", lg.String("task", t.Name))
	identity := task.DeriveIdentity(t.Name, o.now())

	for _, hc := range t.Configuration {
		if err := o.remote.Configure(ctx, hc.IP, hc.Command, identity, o.cfg.OutputDir); err != nil {
			return err
		}
	}

	handle, err := o.capture.Start(identity, o.cfg.Interface, t.Filter, o.cfg.Workspace)
	if err != nil {
		return err
	}

	if err := o.runner.Run(ctx, t.Command, identity, o.cfg.OutputDir); err != nil {
		// Best effort: do not leak the capture process on the way out.
		_ = o.capture.Stop(handle)
		return err
	}

	// Keep capturing briefly so trailing traffic makes it into the file.
	if err := o.sleep(ctx, o.cfg.SettleDelay); err != nil {
		_ = o.capture.Stop(handle)
		return err
	}

	if err := o.capture.Stop(handle); err != nil {
		return err
	}

	if err := o.collect(o.cfg.Workspace, o.cfg.OutputDir); err != nil {
		return err
	}

	log.Info("finished task", lg.String("task", t.Name), lg.String("identity", identity))
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
