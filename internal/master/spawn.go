package master

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/oscarsaleta/pbala/internal/nodefile"
	"github.com/oscarsaleta/pbala/internal/protocol"
	"github.com/oscarsaleta/pbala/internal/report"
	"github.com/oscarsaleta/pbala/internal/transport"
)

// spawnPhase spawns cores[i] workers per node in order, assigning
// consecutive workerIds 0..W-1, greets each one, and starts its fan-in
// reader goroutine. A failure at any point halts the whole phase — the
// caller maps that to the spawn-error exit code.
func (s *Scheduler) spawnPhase(ctx context.Context) error {
	total := nodefile.TotalCores(s.Nodes)
	s.results = make(chan resultEnvelope, total)
	s.workers = make([]*WorkerHandle, 0, total)

	workerID := 0
	for _, node := range s.Nodes {
		for c := 0; c < node.Cores; c++ {
			w, err := s.spawnOne(ctx, workerID, node.Host)
			if err != nil {
				s.closeAll()
				return errors.Wrapf(err, "spawning worker %d on %s", workerID, node.Host)
			}
			s.workers = append(s.workers, w)
			s.Report.Event(report.CreatedSlave, "worker %d ready on %s", w.ID, w.Host)
			go s.fanIn(w)
			workerID++
		}
	}
	return nil
}

func (s *Scheduler) spawnOne(ctx context.Context, workerID int, host string) (*WorkerHandle, error) {
	addr := s.Listener.Addr()
	if host != "" && host != "localhost" && host != "127.0.0.1" {
		addr = s.Listener.DialableAddr()
	}
	args := []string{
		"__worker",
		"--worker-id", strconv.Itoa(workerID),
		"--master-addr", addr,
	}
	cfg := transport.SpawnConfig{
		Self: s.SelfExe,
		Host: host,
		Args: args,
	}
	cmd, err := transport.Spawn(ctx, cfg)
	if err != nil {
		return nil, err
	}

	conn, err := s.Listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting worker %d connection: %w", workerID, err)
	}

	greeting := protocol.GreetingMessage{
		WorkerID:        workerID,
		RunID:           s.Cfg.RunID,
		TaskType:        int(s.Cfg.TaskType),
		MaxTaskSize:     s.Cfg.MaxMemSize,
		CreateErr:       s.Cfg.CreateErrFiles,
		CreateMem:       s.Cfg.CreateMemFiles,
		CustomPath:      s.Cfg.CustomProcess != "",
		ProgramPath:     s.Cfg.CustomProcess,
		MapleSingleCore: s.Cfg.MapleSingleCore,
	}
	if err := conn.Send(protocol.TagGreeting, greeting); err != nil {
		conn.Close()
		return nil, fmt.Errorf("greeting worker %d: %w", workerID, err)
	}

	w := &WorkerHandle{ID: workerID, Host: host, Conn: conn, Cmd: cmd}
	go func() {
		// Reap the child once it exits after STOP; a non-nil error here
		// just means it didn't exit cleanly, which close-out doesn't block on.
		_ = cmd.Wait()
	}()
	return w, nil
}

// fanIn reads results from one worker's connection and feeds them to the
// shared results channel until the connection closes. It is the only
// reader of w.Conn, so Recv's single-reader requirement holds.
func (s *Scheduler) fanIn(w *WorkerHandle) {
	for {
		tag, payload, err := w.Conn.Recv()
		if err != nil {
			return
		}
		if tag != protocol.TagResult {
			s.results <- resultEnvelope{w: w, err: fmt.Errorf("worker %d: unexpected tag %s", w.ID, tag)}
			continue
		}
		res, err := transport.Unmarshal[protocol.ResultMessage](payload)
		if err != nil {
			s.results <- resultEnvelope{w: w, err: fmt.Errorf("worker %d: decoding result: %w", w.ID, err)}
			continue
		}
		s.results <- resultEnvelope{res: res, w: w}
	}
}
