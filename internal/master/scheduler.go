// Package master implements the master-side scheduler: spawn a fixed
// worker pool, saturate it with an initial batch, then run a
// recv-reply-dispatch loop until the data file is drained and the pool is
// quiesced. It is a single-threaded synchronous scheduler — one goroutine
// owns all scheduling decisions, no mutex discipline because there is no
// concurrent mutation of scheduler state. Each worker connection is read
// by its own fan-in goroutine (one reader per connection) that feeds one
// shared channel — that channel realizes a recv(ANY, RESULT) primitive,
// since net.Conn has no portable "wait on N sockets" select.
package master

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/oscarsaleta/pbala/internal/config"
	"github.com/oscarsaleta/pbala/internal/journal"
	"github.com/oscarsaleta/pbala/internal/nodefile"
	"github.com/oscarsaleta/pbala/internal/protocol"
	"github.com/oscarsaleta/pbala/internal/report"
	"github.com/oscarsaleta/pbala/internal/task"
	"github.com/oscarsaleta/pbala/internal/transport"
)

// WorkerHandle is one spawned worker's process and connection, addressed
// by the consecutive workerId the spawn phase assigned it.
type WorkerHandle struct {
	ID   int
	Host string
	Conn *transport.Conn
	Cmd  *exec.Cmd
}

// Summary is the close-out figure the scheduler returns: wall time and
// combined computing time across every task, plus whether anything was
// left unfinished.
type Summary struct {
	Wall              time.Duration
	CombinedComputing float64
	UnfinishedTasks   int
}

type resultEnvelope struct {
	res protocol.ResultMessage
	w   *WorkerHandle
	err error
}

// Scheduler drives one run end to end.
type Scheduler struct {
	Cfg      *config.Config
	Nodes    []nodefile.Spec
	Items    []task.WorkItem
	Listener *transport.Listener
	Report   *report.Reporter
	SelfExe  string // path to this binary, for re-exec on spawn

	workers []*WorkerHandle
	results chan resultEnvelope
}

// Run executes spawn, prime, steady, drain, and close-out in sequence.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	if err := s.spawnPhase(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "spawn phase")
	}
	defer s.closeAll()

	return s.runScheduled(ctx, start)
}

// runScheduled drives prime, steady, drain, and close-out over whatever
// worker pool s.workers/s.results already holds. Splitting this out of Run
// lets a test populate that pool directly — over an in-process net.Pipe
// pair, say — without going through the real spawn phase's exec/ssh path.
func (s *Scheduler) runScheduled(ctx context.Context, start time.Time) (Summary, error) {
	jrn, err := journal.New(s.Cfg.OutDir)
	if err != nil {
		return Summary{}, errors.Wrap(err, "opening unfinished-tasks journal")
	}

	var nodeLog []report.NodeAssignment
	if s.Cfg.CreateSlaveFile {
		nodeLog = s.nodeAssignmentSkeleton()
	}

	taskType := s.Cfg.TaskType
	b := len(s.workers)
	if b > len(s.Items) {
		b = len(s.Items)
	}

	// Prime phase: saturate every worker with one task each.
	for k := 0; k < b; k++ {
		if err := s.dispatch(s.workers[k], s.Items[k], taskType); err != nil {
			return Summary{}, errors.Wrap(err, "prime phase dispatch")
		}
		s.Report.Event(report.TaskSent, "worker %d <- task %d", k, s.Items[k].TaskNumber)
	}

	var combinedComputing float64
	next := b

	// Steady phase: one recv-reply-dispatch per remaining item. The
	// invariant held here is that in-flight tasks == b at every step: one
	// result in, one dispatch out, to the same workerId that just replied.
	for j := b; j < len(s.Items); j++ {
		res, w, err := s.recvResult(ctx)
		if err != nil {
			return Summary{}, errors.Wrap(err, "steady phase recv")
		}
		s.settleResult(res, jrn, &combinedComputing)

		item := s.Items[next]
		next++
		if err := s.dispatch(w, item, taskType); err != nil {
			return Summary{}, errors.Wrap(err, "steady phase dispatch")
		}
		s.Report.Event(report.TaskSent, "worker %d <- task %d", w.ID, item.TaskNumber)
	}

	// Drain phase: exactly b results are outstanding now.
	for i := 0; i < b; i++ {
		res, w, err := s.recvResult(ctx)
		if err != nil {
			return Summary{}, errors.Wrap(err, "drain phase recv")
		}
		s.settleResult(res, jrn, &combinedComputing)
		if err := s.stopWorker(w); err != nil {
			return Summary{}, err
		}
	}

	// Workers beyond b were spawned and greeted but never primed (N < W,
	// including N == 0): they still owe a STOP each so every spawned
	// worker receives exactly one.
	for i := b; i < len(s.workers); i++ {
		if err := s.stopWorker(s.workers[i]); err != nil {
			return Summary{}, err
		}
	}

	if err := jrn.Finalize(); err != nil {
		return Summary{}, errors.Wrap(err, "finalizing journal")
	}
	if s.Cfg.CreateSlaveFile {
		if err := s.writeSlaveFile(nodeLog); err != nil {
			return Summary{}, errors.Wrap(err, "writing node_info.txt")
		}
	}
	if err := cleanupAuxScripts(s.Cfg.OutDir); err != nil {
		s.Report.Event(report.Error, "cleaning up auxiliary scripts: %v", err)
	}

	return Summary{
		Wall:              time.Since(start),
		CombinedComputing: combinedComputing,
		UnfinishedTasks:   jrn.EntryCount(),
	}, nil
}

func (s *Scheduler) settleResult(res protocol.ResultMessage, jrn *journal.Journal, combined *float64) {
	*combined += res.TotalSeconds
	if res.Status.Failed() {
		if err := jrn.Append(res.TaskNumber, res.ArgsCSV); err != nil {
			s.Report.Event(report.Error, "journaling task %d: %v", res.TaskNumber, err)
		}
		s.Report.Event(report.Error, "task %d failed: %s", res.TaskNumber, res.Status)
		return
	}
	s.Report.Event(report.TaskCompleted, "task %d done in %.3fs", res.TaskNumber, res.ExecSeconds)
}

// recvResult blocks until any worker's fan-in goroutine delivers a result,
// realizing the master's recv(ANY, RESULT) primitive.
func (s *Scheduler) recvResult(ctx context.Context) (protocol.ResultMessage, *WorkerHandle, error) {
	select {
	case env := <-s.results:
		if env.err != nil {
			return protocol.ResultMessage{}, env.w, env.err
		}
		return env.res, env.w, nil
	case <-ctx.Done():
		return protocol.ResultMessage{}, nil, ctx.Err()
	}
}

func (s *Scheduler) stopWorker(w *WorkerHandle) error {
	if err := w.Conn.Send(protocol.TagWork, protocol.WorkMessage{WorkCode: protocol.WorkCodeStop}); err != nil {
		return errors.Wrapf(err, "sending stop to worker %d", w.ID)
	}
	return nil
}

func (s *Scheduler) dispatch(w *WorkerHandle, item task.WorkItem, taskType task.Type) error {
	work := protocol.WorkMessage{
		WorkCode:    protocol.WorkCodeWork,
		TaskNumber:  item.TaskNumber,
		ProgramFile: s.Cfg.ProgramFile,
		OutDir:      s.Cfg.OutDir,
		ArgsCSV:     item.ArgsCSV,
	}
	if taskType.NeedsAuxScript() {
		auxPath, err := task.WriteAuxScript(taskType, s.Cfg.OutDir, s.Cfg.RunID, item.TaskNumber, s.Cfg.ProgramFile, item.ArgsCSV)
		if err != nil {
			return errors.Wrapf(err, "writing auxiliary script for task %d", item.TaskNumber)
		}
		work.AuxPath = auxPath
		s.Report.Event(report.CreatedScript, "task %d aux script %s", item.TaskNumber, auxPath)
	}
	return w.Conn.Send(protocol.TagWork, work)
}

func (s *Scheduler) nodeAssignmentSkeleton() []report.NodeAssignment {
	var out []report.NodeAssignment
	for _, w := range s.workers {
		if n := len(out); n > 0 && out[n-1].Host == w.Host {
			out[n-1].Workers++
			continue
		}
		out = append(out, report.NodeAssignment{Host: w.Host, Workers: 1})
	}
	return out
}

func (s *Scheduler) writeSlaveFile(nodeLog []report.NodeAssignment) error {
	f, err := os.Create(filepath.Join(s.Cfg.OutDir, "node_info.txt"))
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteNodeLog(f, nodeLog)
}

func cleanupAuxScripts(outDir string) error {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", outDir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), "auxprog") {
			if err := os.Remove(filepath.Join(outDir, e.Name())); err != nil {
				return fmt.Errorf("removing %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

func (s *Scheduler) closeAll() {
	for _, w := range s.workers {
		_ = w.Conn.Close()
	}
}
