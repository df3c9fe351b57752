package config

import (
	"testing"

	"github.com/oscarsaleta/pbala/internal/task"
)

func validConfig() *Config {
	return &Config{
		TaskType:    task.C,
		ProgramFile: "/bin/prog",
		DataFile:    "data.txt",
		NodeFile:    "nodes.txt",
		OutDir:      "/tmp/out",
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateMissingField(t *testing.T) {
	c := validConfig()
	c.DataFile = ""
	if err := c.Validate(); err == nil {
		t.Error("got nil error, want non-nil")
	}
}

func TestValidateCustomProcessRequiresC(t *testing.T) {
	c := validConfig()
	c.TaskType = task.Python
	c.CustomProcess = "/bin/override"
	if err := c.Validate(); err == nil {
		t.Error("got nil error, want non-nil")
	}
}

func TestExitCodeString(t *testing.T) {
	if got, want := ExitSpawn.String(), "E_PVM_SPAWN"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
