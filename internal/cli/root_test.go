package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "trace-creator")
}

func TestRunFailsOnMissingConfiguration(t *testing.T) {
	_, err := execute(t, "run",
		"-c", filepath.Join(t.TempDir(), "missing.yml"),
		"--log-format", "json")
	assert.Error(t, err)
}

func TestRunFailsOnInvalidConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yml")
	require.NoError(t, os.WriteFile(path, []byte("- name: no command here\n"), 0644))

	_, err := execute(t, "run", "-c", path, "--log-format", "json")
	assert.Error(t, err)
}

func TestRunRequiresKnownHostsWithVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yml")
	require.NoError(t, os.WriteFile(path, []byte("- name: t\n  command: \"true\"\n"), 0644))

	_, err := execute(t, "run", "-c", path, "--verify-host-keys", "--log-format", "json")
	assert.Error(t, err)
}
