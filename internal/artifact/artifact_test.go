package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netlabtools/tracecreator/internal/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIfNonEmpty(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		expectFile bool
	}{
		{name: "non-empty data", data: []byte("captured output\n"), expectFile: true},
		{name: "empty data", data: nil, expectFile: false},
		{name: "zero length data", data: []byte{}, expectFile: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "nested", "host.log")

			require.NoError(t, artifact.WriteIfNonEmpty(path, tt.data))

			if tt.expectFile {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, tt.data, content)
			} else {
				_, err := os.Stat(filepath.Join(dir, "nested"))
				assert.True(t, os.IsNotExist(err), "no directory should be created for empty output")
			}
		})
	}
}

func TestWriteIfNonEmptyEmptyFilename(t *testing.T) {
	assert.Error(t, artifact.WriteIfNonEmpty("", []byte("x")))
}

func TestMoveAll(t *testing.T) {
	source := t.TempDir()
	destination := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(source, "run.pcapng"), []byte("capture bytes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(source, "run.log"), []byte("stdout"), 0644))
	hostDir := filepath.Join(source, "run")
	require.NoError(t, os.Mkdir(hostDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(hostDir, "10.0.0.1.log"), []byte("remote out"), 0644))

	require.NoError(t, artifact.MoveAll(source, destination))

	// Everything arrived, by name and bytes.
	content, err := os.ReadFile(filepath.Join(destination, "run.pcapng"))
	require.NoError(t, err)
	assert.Equal(t, "capture bytes", string(content))

	content, err = os.ReadFile(filepath.Join(destination, "run.log"))
	require.NoError(t, err)
	assert.Equal(t, "stdout", string(content))

	content, err = os.ReadFile(filepath.Join(destination, "run", "10.0.0.1.log"))
	require.NoError(t, err)
	assert.Equal(t, "remote out", string(content))

	// The workspace is empty but still present for the next task.
	entries, err := os.ReadDir(source)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMoveAllOverwritesConflicts(t *testing.T) {
	source := t.TempDir()
	destination := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(destination, "run.log"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(source, "run.log"), []byte("new"), 0644))

	require.NoError(t, artifact.MoveAll(source, destination))

	content, err := os.ReadFile(filepath.Join(destination, "run.log"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestMoveAllEmptySource(t *testing.T) {
	assert.NoError(t, artifact.MoveAll(t.TempDir(), t.TempDir()))
}

func TestMoveAllMissingSource(t *testing.T) {
	assert.Error(t, artifact.MoveAll(filepath.Join(t.TempDir(), "missing"), t.TempDir()))
}
