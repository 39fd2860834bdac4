// Package cli wires the run-level flags to the task orchestrator.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/netlabtools/tracecreator/internal/capture"
	"github.com/netlabtools/tracecreator/internal/command"
	"github.com/netlabtools/tracecreator/internal/lg"
	"github.com/netlabtools/tracecreator/internal/orchestrator"
	"github.com/netlabtools/tracecreator/internal/remote"
	"github.com/netlabtools/tracecreator/internal/task"
)

var version = "dev"

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trace-creator",
		Short: "Record repeatable network-experiment traces with tshark",
	}

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(
		newRunCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

type runOptions struct {
	configPath     string
	outputDir      string
	iface          string
	delaySeconds   uint
	username       string
	password       string
	workspace      string
	verifyHostKeys bool
	knownHostsPath string
	debug          bool
	logFormat      string
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the configured task list: configure hosts, capture traffic, run commands, collect artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTasks(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "configuration", "c", "/vagrant/configuration/trace-creator.yml", "Path to the task configuration file")
	cmd.Flags().StringVarP(&opts.outputDir, "output-directory", "o", "/vagrant/capture/", "Output directory for captured files")
	cmd.Flags().StringVarP(&opts.iface, "interface", "i", "enp0s8", "Capture network interface")
	cmd.Flags().UintVarP(&opts.delaySeconds, "delay", "d", 3, "Delay in seconds before stopping capture after the command finished")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "vagrant", "Username for SSH connections to remote hosts")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "vagrant", "Password for SSH connections to remote hosts")
	cmd.Flags().StringVar(&opts.workspace, "workspace", "/tmp/capture", "Temporary capture workspace shared with the capture tool")
	cmd.Flags().BoolVar(&opts.verifyHostKeys, "verify-host-keys", false, "Verify remote host keys against a known_hosts file instead of trusting on first use")
	cmd.Flags().StringVar(&opts.knownHostsPath, "known-hosts", "", "known_hosts file used with --verify-host-keys")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")

	return cmd
}

func runTasks(cmd *cobra.Command, opts runOptions) error {
	log := lg.New(&lg.Config{ServiceName: "trace-creator", Debug: opts.debug, Format: opts.logFormat})
	defer log.Sync()

	tasks, err := task.Load(opts.configPath)
	if err != nil {
		return err
	}

	policy := remote.TrustAll
	if opts.verifyHostKeys {
		policy = remote.VerifyKnownHosts
	}
	configurator, err := remote.NewConfigurator(remote.Config{
		Credentials:    remote.Credentials{Username: opts.username, Password: opts.password},
		Policy:         policy,
		KnownHostsPath: opts.knownHostsPath,
	}, log)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Interface:   opts.iface,
		OutputDir:   opts.outputDir,
		Workspace:   opts.workspace,
		SettleDelay: time.Duration(opts.delaySeconds) * time.Second,
	}, configurator, capture.NewController(log), command.NewRunner(log), log)
	if err != nil {
		return err
	}

	return orch.Run(cmd.Context(), tasks)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print trace-creator version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trace-creator %s\n", version)
		},
	}
}
