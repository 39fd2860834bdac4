// Package task defines the declared units of work for a recording run
// and the identity scheme that names their artifacts.
package task

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Task is one declared unit of orchestration. It is immutable once
// loaded; nothing mutates it during processing.
type Task struct {
	Name          string       `yaml:"name" validate:"required"`
	Command       string       `yaml:"command" validate:"required"`
	Filter        string       `yaml:"filter,omitempty"`
	Configuration []HostConfig `yaml:"configuration,omitempty" validate:"dive"`
}

// HostConfig is one remote pre-step: a single command executed on a
// single host before the task's capture starts.
type HostConfig struct {
	IP      string `yaml:"ip" validate:"required,hostaddr"`
	Command string `yaml:"command" validate:"required"`
}

var validate = validator.New()

var hostAddrPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

func init() {
	_ = validate.RegisterValidation("hostaddr", validateHostAddr)
}

func validateHostAddr(fl validator.FieldLevel) bool {
	return hostAddrPattern.MatchString(fl.Field().String())
}

// Load reads an ordered task list from a YAML file.
func Load(path string) ([]Task, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: failed to read file %s: %w", path, err)
	}

	if len(bytes) == 0 {
		return nil, fmt.Errorf("load: task file %s is empty", path)
	}

	var tasks []Task
	if err := yaml.Unmarshal(bytes, &tasks); err != nil {
		return nil, fmt.Errorf("load: failed to parse YAML in %s: %w", path, err)
	}

	if err := ValidateAll(tasks); err != nil {
		return nil, fmt.Errorf("load: invalid task list in %s: %w", path, err)
	}

	return tasks, nil
}

// ValidateAll checks every task in declared order and reports the first
// violation.
func ValidateAll(tasks []Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("task list is empty")
	}
	for i, t := range tasks {
		if err := validate.Struct(t); err != nil {
			return fmt.Errorf("task %d (%q): %w", i, t.Name, err)
		}
	}
	return nil
}
