// Command pbala spawns one worker per CPU across a node list, streams a
// data file of tasks to them, and reports progress and final resource
// usage. See internal/master for the scheduling algorithm and
// internal/worker for what each spawned process does.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oscarsaleta/pbala/internal/config"
	"github.com/oscarsaleta/pbala/internal/master"
	"github.com/oscarsaleta/pbala/internal/nodefile"
	"github.com/oscarsaleta/pbala/internal/report"
	"github.com/oscarsaleta/pbala/internal/task"
	"github.com/oscarsaleta/pbala/internal/transport"
	"github.com/oscarsaleta/pbala/internal/worker"
)

// runFile is the name of the small file a running master drops in outDir
// recording its PID, so a later `pbala ... --kill` invocation against the
// same outDir has something to act on — there is no separate daemon
// registry in this design.
const runFile = ".pbala.run"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pbala: %v\n", err)
		os.Exit(int(config.ExitArgs))
	}
}

func newRootCmd() *cobra.Command {
	var (
		maxMemSize      int64
		mapleSingleCore bool
		createErrFiles  bool
		createMemFiles  bool
		createSlaveFile bool
		customProcess   string
		kill            bool
	)

	root := &cobra.Command{
		Use:           "pbala <taskType> <programFile> <dataFile> <nodeFile> <outDir>",
		Short:         "Distributed SPMD job dispatcher",
		Args:          cobra.ExactArgs(5),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			taskTypeN, err := strconv.Atoi(args[0])
			if err != nil {
				return exitErr(config.ExitArgs, fmt.Errorf("task type %q is not numeric: %w", args[0], err))
			}
			taskType, err := task.ParseType(taskTypeN)
			if err != nil {
				return exitErr(config.ExitTaskType, err)
			}
			cfg.TaskType = taskType
			cfg.ProgramFile = args[1]
			cfg.DataFile = args[2]
			cfg.NodeFile = args[3]
			cfg.OutDir = args[4]
			cfg.MaxMemSize = maxMemSize
			cfg.MapleSingleCore = mapleSingleCore
			cfg.CreateErrFiles = createErrFiles
			cfg.CreateMemFiles = createMemFiles
			cfg.CreateSlaveFile = createSlaveFile
			cfg.CustomProcess = customProcess
			cfg.Kill = kill

			if err := cfg.Validate(); err != nil {
				return exitErr(config.ExitArgs, err)
			}

			if kill {
				return doKill(cfg.OutDir)
			}
			return doRun(cmd.Context(), cfg)
		},
	}

	root.Flags().Int64Var(&maxMemSize, "max-mem-size", 0, "per-task memory budget in KB (enables Specific admission mode)")
	root.Flags().BoolVar(&mapleSingleCore, "maple-single-core", false, "throttle Maple tasks to a single core")
	root.Flags().BoolVar(&createErrFiles, "create-errfiles", false, "capture per-task stderr")
	root.Flags().BoolVar(&createMemFiles, "create-memfiles", false, "emit per-task resource usage records")
	root.Flags().BoolVar(&createSlaveFile, "create-slavefile", false, "emit node_info.txt")
	root.Flags().StringVar(&customProcess, "custom-process", "", "override the resolved program path (C tasks only)")
	root.Flags().BoolVar(&kill, "kill", false, "tear down a running cluster for this output directory")

	root.AddCommand(newWorkerCmd())
	return root
}

// newWorkerCmd is the re-exec entry point transport.Spawn launches under,
// locally or over ssh. It carries no cobra help text of its own, the same
// way joshuarubin-teleport-job-worker's reexec mode stays off the public
// command surface.
func newWorkerCmd() *cobra.Command {
	var (
		workerID   int
		masterAddr string
	)
	cmd := &cobra.Command{
		Use:    "__worker",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return worker.Run(cmd.Context(), worker.Config{
				WorkerID:   workerID,
				MasterAddr: masterAddr,
			})
		},
	}
	cmd.Flags().IntVar(&workerID, "worker-id", -1, "")
	cmd.Flags().StringVar(&masterAddr, "master-addr", "", "")
	return cmd
}

func doRun(ctx context.Context, cfg *config.Config) error {
	// Remote (ssh-spawned) workers run in their own working directory, so
	// every path the master hands them has to be absolute before spawn.
	for _, p := range []*string{&cfg.ProgramFile, &cfg.DataFile, &cfg.NodeFile, &cfg.OutDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return exitErr(config.ExitWorkDir, fmt.Errorf("resolving %q: %w", *p, err))
		}
		*p = abs
	}

	nf, err := os.Open(cfg.NodeFile)
	if err != nil {
		return exitErr(config.ExitNodeFile, err)
	}
	nodes, err := nodefile.Parse(nf)
	nf.Close()
	if err != nil {
		return exitErr(config.ExitNodeFile, err)
	}

	df, err := os.Open(cfg.DataFile)
	if err != nil {
		return exitErr(config.ExitDataFile, err)
	}
	items, err := task.ReadDataFile(df)
	df.Close()
	if err != nil {
		return exitErr(config.ExitDataFile, err)
	}

	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return exitErr(config.ExitOutDir, err)
	}

	self, err := os.Executable()
	if err != nil {
		return exitErr(config.ExitClusterInit, err)
	}

	ln, err := transport.Listen(":0")
	if err != nil {
		return exitErr(config.ExitClusterInit, err)
	}
	defer ln.Close()

	if err := writeRunFile(cfg.OutDir); err != nil {
		return exitErr(config.ExitOutDir, err)
	}
	defer os.Remove(filepath.Join(cfg.OutDir, runFile))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := &master.Scheduler{
		Cfg:      cfg,
		Nodes:    nodes,
		Items:    items,
		Listener: ln,
		Report:   report.New(os.Stdout),
		SelfExe:  self,
	}

	summary, err := sched.Run(ctx)
	if err != nil {
		return exitErr(config.ExitSpawn, err)
	}

	fmt.Printf("wall=%s combinedComputing=%.3fs unfinished=%d\n",
		summary.Wall, summary.CombinedComputing, summary.UnfinishedTasks)

	// A run that journals unfinished tasks still completed the batch
	// successfully; unfinished_tasks.txt, not the exit code, is how that
	// gets surfaced.
	return nil
}

func writeRunFile(outDir string) error {
	return os.WriteFile(filepath.Join(outDir, runFile), []byte(strconv.Itoa(os.Getpid())), 0644)
}

func doKill(outDir string) error {
	data, err := os.ReadFile(filepath.Join(outDir, runFile))
	if err != nil {
		return exitErr(config.ExitOutDir, fmt.Errorf("no running cluster recorded for %s: %w", outDir, err))
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return exitErr(config.ExitOutDir, fmt.Errorf("corrupt run file: %w", err))
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return exitErr(config.ExitOutDir, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return exitErr(config.ExitOutDir, fmt.Errorf("signaling master pid %d: %w", pid, err))
	}
	fmt.Printf("sent SIGTERM to master pid %d\n", pid)
	return nil
}

// exitErr prints err, then makes main() exit with the given code via
// os.Exit — cobra's own RunE-returned error only sets a generic failure,
// so the exit-code enumeration has to be driven explicitly here.
func exitErr(code config.ExitCode, err error) error {
	fmt.Fprintf(os.Stderr, "pbala: %s: %v\n", code, err)
	os.Exit(int(code))
	return nil
}
