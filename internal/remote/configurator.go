// Package remote prepares hosts for a task by executing one command per
// host over SSH and persisting whatever the command prints.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sync/errgroup"

	"github.com/netlabtools/tracecreator/internal/artifact"
	"github.com/netlabtools/tracecreator/internal/lg"
)

// Credentials is the single username/password pair shared by every host
// in a run.
type Credentials struct {
	Username string
	Password string
}

// HostKeyPolicy selects how remote host identities are checked.
type HostKeyPolicy int

const (
	// TrustAll accepts any host key. A convenience for controlled lab
	// networks, not for anything untrusted.
	TrustAll HostKeyPolicy = iota
	// VerifyKnownHosts checks keys against an OpenSSH known_hosts file.
	VerifyKnownHosts
)

// Config carries the run-level connection settings shared by all hosts.
type Config struct {
	Credentials    Credentials
	Policy         HostKeyPolicy
	KnownHostsPath string
	DialTimeout    time.Duration
}

const defaultDialTimeout = 10 * time.Second

// Configurator opens one SSH session per host configuration entry.
type Configurator struct {
	cfg  Config
	dial dialFunc
	log  lg.Logger
}

type dialFunc func(addr string, clientCfg *ssh.ClientConfig) (shell, error)

// shell is one connected remote session: execute a single command, then
// close.
type shell interface {
	exec(ctx context.Context, command string) (stdout, stderr []byte, err error)
	close() error
}

func NewConfigurator(cfg Config, log lg.Logger) (*Configurator, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	c := &Configurator{cfg: cfg, dial: dialSSH, log: log}
	if cfg.Policy == VerifyKnownHosts && cfg.KnownHostsPath == "" {
		return nil, fmt.Errorf("known_hosts path is required for host key verification")
	}
	return c, nil
}

// Configure runs command on host and writes {host}.log and {host}.err
// under {outputDir}/{identity}/ for whichever streams are non-empty.
// Connection and authentication failures propagate; a command that
// fails remotely does not.
func (c *Configurator) Configure(ctx context.Context, host, command, identity, outputDir string) error {
	c.log.Info("configuring host", lg.String("host", host), lg.String("command", command))

	callback, err := c.hostKeyCallback()
	if err != nil {
		return err
	}
	clientCfg := &ssh.ClientConfig{
		User:            c.cfg.Credentials.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(c.cfg.Credentials.Password)},
		HostKeyCallback: callback,
		Timeout:         c.cfg.DialTimeout,
	}

	sh, err := c.dial(hostAddr(host), clientCfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", host, err)
	}
	defer sh.close()

	stdout, stderr, err := sh.exec(ctx, command)
	if err != nil {
		return fmt.Errorf("execute on %s: %w", host, err)
	}

	if len(stdout) > 0 {
		c.log.Info("host command output", lg.String("host", host), lg.String("stdout", string(stdout)))
		logPath := filepath.Join(outputDir, identity, host+".log")
		if err := artifact.WriteIfNonEmpty(logPath, stdout); err != nil {
			return err
		}
	}
	if len(stderr) > 0 {
		c.log.Warn("host command error output", lg.String("host", host), lg.String("stderr", string(stderr)))
		errPath := filepath.Join(outputDir, identity, host+".err")
		if err := artifact.WriteIfNonEmpty(errPath, stderr); err != nil {
			return err
		}
	}
	return nil
}

func (c *Configurator) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.cfg.Policy == VerifyKnownHosts {
		callback, err := knownhosts.New(c.cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %s: %w", c.cfg.KnownHostsPath, err)
		}
		return callback, nil
	}
	return ssh.InsecureIgnoreHostKey(), nil
}

func hostAddr(host string) string {
	if strings.Contains(host, ":") {
		return host
	}
	return host + ":22"
}

// sshShell wraps a connected ssh.Client as a single-command shell.
type sshShell struct {
	client *ssh.Client
}

func dialSSH(addr string, clientCfg *ssh.ClientConfig) (shell, error) {
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	return &sshShell{client: client}, nil
}

func (s *sshShell) exec(ctx context.Context, command string) ([]byte, []byte, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, nil, fmt.Errorf("new session: %w", err)
	}
	defer sess.Close()

	stdoutPipe, err := sess.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := sess.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := sess.Start(command); err != nil {
		return nil, nil, fmt.Errorf("start command: %w", err)
	}

	// Both pipes must drain concurrently or a chatty command can fill
	// one and stall the session.
	var stdout, stderr []byte
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stdout, err = io.ReadAll(stdoutPipe)
		return err
	})
	g.Go(func() error {
		var err error
		stderr, err = io.ReadAll(stderrPipe)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("read command output: %w", err)
	}

	// A remote command failing is not distinguished from success; its
	// output was captured either way.
	err = sess.Wait()
	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	if err != nil && !errors.As(err, &exitErr) && !errors.As(err, &missingErr) {
		return nil, nil, fmt.Errorf("wait for command: %w", err)
	}
	return stdout, stderr, nil
}

func (s *sshShell) close() error {
	return s.client.Close()
}
