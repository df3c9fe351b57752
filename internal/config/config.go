// Package config defines the Config a run is driven by. The values are
// filled in by cmd/pbala's cobra flags, the same way a cobra-based CLI
// wires flags to a config struct.
package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oscarsaleta/pbala/internal/task"
)

// Config is the full set of knobs a single run is invoked with.
type Config struct {
	RunID string

	TaskType    task.Type
	ProgramFile string
	DataFile    string
	NodeFile    string
	OutDir      string

	MaxMemSize      int64 // KiB; <=0 means Generic memcheck mode
	MapleSingleCore bool
	CreateErrFiles  bool
	CreateMemFiles  bool
	CreateSlaveFile bool
	CustomProcess   string
	Kill            bool
}

// New fills in a Config's derived fields (currently just RunID) on top of
// the flag-parsed values.
func New() *Config {
	return &Config{RunID: uuid.NewString()}
}

// Validate checks the required positional arguments and flag combinations,
// returning an error whose presence should map to ExitArgs.
func (c *Config) Validate() error {
	if c.ProgramFile == "" {
		return fmt.Errorf("config: program file is required")
	}
	if c.DataFile == "" {
		return fmt.Errorf("config: data file is required")
	}
	if c.NodeFile == "" {
		return fmt.Errorf("config: node file is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("config: output directory is required")
	}
	if c.MaxMemSize < 0 {
		return fmt.Errorf("config: max-mem-size must not be negative")
	}
	if c.CustomProcess != "" && c.TaskType != task.C {
		return fmt.Errorf("config: --custom-process is only valid for C tasks")
	}
	return nil
}
