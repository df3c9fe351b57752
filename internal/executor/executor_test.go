package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oscarsaleta/pbala/internal/protocol"
	"github.com/oscarsaleta/pbala/internal/task"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "script.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestRunSuccessCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "echo hello $2\n")

	res, err := Run(context.Background(), Request{
		TaskType:    task.C,
		ProgramPath: script,
		TaskNumber:  1,
		ArgsCSV:     "world",
		OutDir:      dir,
	})
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
	if got, want := res.Status, protocol.StatusOK; got != want {
		t.Errorf("Status = %s, want %s", got, want)
	}

	out, err := os.ReadFile(filepath.Join(dir, "1_out.txt"))
	if err != nil {
		t.Fatalf("reading stdout file: %v", err)
	}
	if got, want := strings.TrimSpace(string(out)), "hello world"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

func TestRunNonZeroExitReportsTaskKilled(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "exit 3\n")

	res, err := Run(context.Background(), Request{
		TaskType:    task.C,
		ProgramPath: script,
		TaskNumber:  2,
		OutDir:      dir,
	})
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
	if got, want := res.Status, protocol.StatusTaskKilled; got != want {
		t.Errorf("Status = %s, want %s", got, want)
	}
	if got, want := res.ExitCode, 3; got != want {
		t.Errorf("ExitCode = %d, want %d", got, want)
	}
}

func TestRunMissingProgramIsForkErr(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(context.Background(), Request{
		TaskType:    task.C,
		ProgramPath: filepath.Join(dir, "does-not-exist"),
		TaskNumber:  3,
		OutDir:      dir,
	})
	if err == nil {
		t.Fatal("Run: got nil error, want non-nil for a missing program")
	}
	if got, want := res.Status, protocol.StatusForkErr; got != want {
		t.Errorf("Status = %s, want %s", got, want)
	}
}

func TestRunWritesStderrWhenRequested(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "echo oops 1>&2\n")

	if _, err := Run(context.Background(), Request{
		TaskType:    task.C,
		ProgramPath: script,
		TaskNumber:  4,
		OutDir:      dir,
		CreateErr:   true,
	}); err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}

	errPath := filepath.Join(dir, "4_err.txt")
	data, err := os.ReadFile(errPath)
	if err != nil {
		t.Fatalf("reading stderr file: %v", err)
	}
	if got, want := strings.TrimSpace(string(data)), "oops"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestRunWritesUsageRecordWhenRequested(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "exit 0\n")

	if _, err := Run(context.Background(), Request{
		TaskType:    task.C,
		ProgramPath: script,
		TaskNumber:  5,
		OutDir:      dir,
		CreateMem:   true,
	}); err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "5_mem.txt")); err != nil {
		t.Errorf("expected usage record file to exist: %v", err)
	}
}
