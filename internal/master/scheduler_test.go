package master

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/oscarsaleta/pbala/internal/config"
	"github.com/oscarsaleta/pbala/internal/protocol"
	"github.com/oscarsaleta/pbala/internal/report"
	"github.com/oscarsaleta/pbala/internal/task"
	"github.com/oscarsaleta/pbala/internal/transport"
)

// fakeWorker drives the far end of a net.Pipe the way a real worker would:
// reply OK to every WORK message, echoing its ArgsCSV back, and record
// whether it ever saw a STOP.
type fakeWorker struct {
	conn     *transport.Conn
	id       int
	stopped  chan struct{}
	received []int
}

func newFakeWorker(id int, nc net.Conn) *fakeWorker {
	return &fakeWorker{conn: transport.NewConn(nc), id: id, stopped: make(chan struct{})}
}

func (fw *fakeWorker) run() {
	for {
		tag, payload, err := fw.conn.Recv()
		if err != nil {
			close(fw.stopped)
			return
		}
		if tag != protocol.TagWork {
			close(fw.stopped)
			return
		}
		work, err := transport.Unmarshal[protocol.WorkMessage](payload)
		if err != nil {
			close(fw.stopped)
			return
		}
		if work.WorkCode == protocol.WorkCodeStop {
			close(fw.stopped)
			return
		}
		fw.received = append(fw.received, work.TaskNumber)
		res := protocol.ResultMessage{
			WorkerID:     fw.id,
			TaskNumber:   work.TaskNumber,
			Status:       protocol.StatusOK,
			ArgsCSV:      work.ArgsCSV,
			TotalSeconds: 0.01,
		}
		if err := fw.conn.Send(protocol.TagResult, res); err != nil {
			return
		}
	}
}

// newWorkerPool builds n WorkerHandles wired to n fakeWorkers over
// in-process net.Pipe connections, along with a results channel fed by a
// fanIn goroutine per worker, exactly as spawnPhase would wire them up
// without any real process spawn.
func newWorkerPool(t *testing.T, n int) ([]*WorkerHandle, chan resultEnvelope, []*fakeWorker) {
	t.Helper()
	workers := make([]*WorkerHandle, n)
	fakes := make([]*fakeWorker, n)
	results := make(chan resultEnvelope, n)
	for i := 0; i < n; i++ {
		serverSide, clientSide := net.Pipe()
		w := &WorkerHandle{ID: i, Host: "localhost", Conn: transport.NewConn(serverSide)}
		workers[i] = w
		fw := newFakeWorker(i, clientSide)
		fakes[i] = fw
		go fw.run()

		sched := &Scheduler{results: results}
		go sched.fanIn(w)
	}
	return workers, results, fakes
}

func waitStopped(t *testing.T, fw *fakeWorker) {
	t.Helper()
	select {
	case <-fw.stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker %d never received stop", fw.id)
	}
}

func items(n int) []task.WorkItem {
	out := make([]task.WorkItem, n)
	for i := 0; i < n; i++ {
		out[i] = task.WorkItem{TaskNumber: i + 1, ArgsCSV: "x"}
	}
	return out
}

func TestRunScheduledHappyPath(t *testing.T) {
	outDir := t.TempDir()
	const numWorkers = 3
	const numItems = 3

	workers, results, fakes := newWorkerPool(t, numWorkers)
	s := &Scheduler{
		Cfg:     &config.Config{OutDir: outDir, TaskType: task.Maple},
		Items:   items(numItems),
		Report:  report.New(io.Discard),
		workers: workers,
		results: results,
	}

	summary, err := s.runScheduled(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("runScheduled: %v", err)
	}
	if summary.UnfinishedTasks != 0 {
		t.Errorf("UnfinishedTasks = %d, want 0", summary.UnfinishedTasks)
	}

	for _, fw := range fakes {
		waitStopped(t, fw)
		if len(fw.received) != 1 {
			t.Errorf("worker %d handled %d tasks, want 1 (N == W saturation)", fw.id, len(fw.received))
		}
	}
}

func TestRunScheduledFewerItemsThanWorkers(t *testing.T) {
	outDir := t.TempDir()
	const numWorkers = 4
	const numItems = 2

	workers, results, fakes := newWorkerPool(t, numWorkers)
	s := &Scheduler{
		Cfg:     &config.Config{OutDir: outDir, TaskType: task.Maple},
		Items:   items(numItems),
		Report:  report.New(io.Discard),
		workers: workers,
		results: results,
	}

	summary, err := s.runScheduled(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("runScheduled: %v", err)
	}
	if summary.UnfinishedTasks != 0 {
		t.Errorf("UnfinishedTasks = %d, want 0", summary.UnfinishedTasks)
	}

	// Every worker, primed or not, must receive exactly one STOP: the two
	// that ran a task see it through fakeWorker.run's own loop, the two
	// that were never primed must be torn down the same way.
	for _, fw := range fakes {
		waitStopped(t, fw)
	}
	primed := 0
	for _, fw := range fakes {
		primed += len(fw.received)
	}
	if primed != numItems {
		t.Errorf("total tasks handled = %d, want %d", primed, numItems)
	}
}

func TestRunScheduledNoItems(t *testing.T) {
	outDir := t.TempDir()
	const numWorkers = 2

	workers, results, fakes := newWorkerPool(t, numWorkers)
	s := &Scheduler{
		Cfg:     &config.Config{OutDir: outDir, TaskType: task.Maple},
		Items:   nil,
		Report:  report.New(io.Discard),
		workers: workers,
		results: results,
	}

	summary, err := s.runScheduled(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("runScheduled: %v", err)
	}
	if summary.UnfinishedTasks != 0 {
		t.Errorf("UnfinishedTasks = %d, want 0", summary.UnfinishedTasks)
	}

	for _, fw := range fakes {
		waitStopped(t, fw)
		if len(fw.received) != 0 {
			t.Errorf("worker %d handled %d tasks, want 0", fw.id, len(fw.received))
		}
	}
}
