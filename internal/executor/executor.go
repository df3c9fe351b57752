// Package executor runs one task's target program as a child process: it
// opens the per-task stdio files, builds argv for the task's type, execs,
// waits for the exact child, and derives a Status and resource-usage figure
// from the exit. os/exec plays the role of fork+exec+wait, the same way a
// managed child process supervises its Node/Bun children, generalized from
// a long-lived HTTP worker to a one-shot batch task.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/oscarsaleta/pbala/internal/protocol"
	"github.com/oscarsaleta/pbala/internal/task"
)

// Request bundles everything the executor needs to run one task.
type Request struct {
	TaskType    task.Type
	ProgramPath string // already resolved: greeting's customPath or the task's programFile
	TaskNumber  int
	ArgsCSV     string
	AuxPath     string // set only when TaskType.NeedsAuxScript()
	OutDir      string
	CreateErr   bool
	CreateMem   bool
	SingleCore  bool // --maple-single-core; only meaningful for TaskType == task.Maple
}

// Result is what the worker loop needs to build a ResultMessage.
type Result struct {
	Status      protocol.Status
	ExecSeconds float64
	ExitCode    int
}

// Run forks the child, waits for it, and reports its outcome. The returned
// error is non-nil only when the fork/exec attempt itself failed (Result.Status
// will be StatusForkErr in that case) — a child that ran and exited non-zero,
// or was killed, is reported via Result.Status, not via error, so that a
// task failure never unwinds the worker loop.
func Run(ctx context.Context, req Request) (Result, error) {
	outFile, err := os.OpenFile(filepath.Join(req.OutDir, fmt.Sprintf("%d_out.txt", req.TaskNumber)),
		os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return Result{Status: protocol.StatusForkErr}, fmt.Errorf("executor: opening stdout file: %w", err)
	}
	defer outFile.Close()

	var errFile *os.File
	if req.CreateErr {
		errFile, err = os.OpenFile(filepath.Join(req.OutDir, fmt.Sprintf("%d_err.txt", req.TaskNumber)),
			os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return Result{Status: protocol.StatusForkErr}, fmt.Errorf("executor: opening stderr file: %w", err)
		}
		defer errFile.Close()
	}

	argv := req.TaskType.BuildArgv(req.ProgramPath, req.TaskNumber, req.ArgsCSV, req.AuxPath)
	if len(argv) == 0 {
		return Result{Status: protocol.StatusForkErr}, fmt.Errorf("executor: no argv for task type %s", req.TaskType)
	}

	if interp := req.TaskType.Interpreter(); interp != "" {
		if _, err := exec.LookPath(interp); err != nil {
			return Result{Status: protocol.StatusForkErr}, fmt.Errorf("executor: resolving interpreter %q for task %d: %w", interp, req.TaskNumber, err)
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = outFile
	if req.CreateErr {
		cmd.Stderr = errFile
	}
	applyPlatformSettings(cmd)

	if err := cmd.Start(); err != nil {
		return Result{Status: protocol.StatusForkErr}, fmt.Errorf("executor: starting task %d: %w", req.TaskNumber, err)
	}

	if req.SingleCore && req.TaskType == task.Maple {
		throttleSingleCore(cmd.Process.Pid)
	}

	waitErr := cmd.Wait()

	status := protocol.StatusOK
	exitCode := 0
	if waitErr != nil {
		status = protocol.StatusTaskKilled
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	execSeconds := childCPUSeconds(cmd.ProcessState)

	if req.CreateMem {
		rec := UsageRecord{
			TaskNumber:  req.TaskNumber,
			UserSysSecs: execSeconds,
			MaxRSSKiB:   childMaxRSSKiB(cmd.ProcessState),
			ExitCode:    exitCode,
		}
		// Best-effort: a usage-record write failure doesn't change the
		// task's terminal status, it just means nobody can read it back.
		_ = WriteUsageRecord(req.OutDir, rec)
	}

	return Result{Status: status, ExecSeconds: execSeconds, ExitCode: exitCode}, nil
}
