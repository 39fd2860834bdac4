// Package artifact persists task outputs and collects them from the
// capture workspace into the final output directory.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteIfNonEmpty writes data to filename, creating parent directories
// lazily. Empty data produces no file and no directory.
func WriteIfNonEmpty(filename string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if filename == "" {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", filename, err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

// MoveAll moves every entry directly inside sourceDir into
// destinationDir. Directories move as whole units. Conflicting names at
// the destination are overwritten, last writer wins. The source
// directory itself is left in place, empty, for reuse.
func MoveAll(sourceDir, destinationDir string) error {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return fmt.Errorf("read source directory %s: %w", sourceDir, err)
	}

	for _, entry := range entries {
		source := filepath.Join(sourceDir, entry.Name())
		destination := filepath.Join(destinationDir, entry.Name())
		if err := move(source, destination); err != nil {
			return err
		}
	}
	return nil
}

func move(source, destination string) error {
	if err := os.RemoveAll(destination); err != nil {
		return fmt.Errorf("clear destination %s: %w", destination, err)
	}
	if err := os.Rename(source, destination); err == nil {
		return nil
	}
	// Rename fails across filesystems; the workspace commonly lives on
	// tmpfs while the output directory does not. Copy and remove.
	if err := copyTree(source, destination); err != nil {
		return fmt.Errorf("move %s to %s: %w", source, destination, err)
	}
	if err := os.RemoveAll(source); err != nil {
		return fmt.Errorf("remove %s after copy: %w", source, err)
	}
	return nil
}

func copyTree(source, destination string) error {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return copyFile(source, destination, info.Mode())
	}

	if err := os.MkdirAll(destination, info.Mode()); err != nil {
		return err
	}
	entries, err := os.ReadDir(source)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		err := copyTree(filepath.Join(source, entry.Name()), filepath.Join(destination, entry.Name()))
		if err != nil {
			return err
		}
	}
	return nil
}

func copyFile(source, destination string, mode os.FileMode) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
