// Package worker implements the worker side of a run: connect to the
// master, greet, then loop receiving WorkMessages and reporting results
// until told to stop. This is the re-exec'd process started by
// transport.Spawn in "worker mode" (cmd/pbala's hidden __worker subcommand).
//
// The state machine mirrors a managed-process WorkerState enum,
// generalized from a long-lived respawning service process to a one-shot
// batch worker that runs exactly one state transition at a time on a single
// goroutine — there's no concurrent work to coordinate, so there's no
// mutex-guarded state field.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oscarsaleta/pbala/internal/executor"
	"github.com/oscarsaleta/pbala/internal/memcheck"
	"github.com/oscarsaleta/pbala/internal/protocol"
	"github.com/oscarsaleta/pbala/internal/task"
	"github.com/oscarsaleta/pbala/internal/transport"
)

// State is the worker's position in its lifecycle.
type State int

const (
	AwaitingGreeting State = iota
	AwaitingWork
	Gating
	Executing
	Reporting
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingGreeting:
		return "AwaitingGreeting"
	case AwaitingWork:
		return "AwaitingWork"
	case Gating:
		return "Gating"
	case Executing:
		return "Executing"
	case Reporting:
		return "Reporting"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Config is what the worker needs to know before it dials the master; it
// is filled in from the command-line re-exec arguments, not negotiated
// over the wire (the wire greeting carries the master's view, see below).
type Config struct {
	WorkerID   int
	MasterAddr string
}

// Run drives the worker loop to completion. It returns nil when the master
// sends a WorkCodeStop, or an error if the connection or protocol breaks.
func Run(ctx context.Context, cfg Config) error {
	conn, err := transport.Dial(cfg.MasterAddr)
	if err != nil {
		return fmt.Errorf("worker %d: dialing master %s: %w", cfg.WorkerID, cfg.MasterAddr, err)
	}
	defer conn.Close()

	state := AwaitingGreeting
	var greeting protocol.GreetingMessage
	var gate memcheck.Gate

	for state != Terminated {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch state {
		case AwaitingGreeting:
			tag, payload, err := conn.Recv()
			if err != nil {
				return fmt.Errorf("worker %d: awaiting greeting: %w", cfg.WorkerID, err)
			}
			if tag != protocol.TagGreeting {
				return fmt.Errorf("worker %d: expected greeting, got %s", cfg.WorkerID, tag)
			}
			greeting, err = transport.Unmarshal[protocol.GreetingMessage](payload)
			if err != nil {
				return fmt.Errorf("worker %d: decoding greeting: %w", cfg.WorkerID, err)
			}
			mode := memcheck.Generic
			if greeting.MaxTaskSize > 0 {
				mode = memcheck.Specific
			}
			gate = memcheck.NewGate(mode, greeting.MaxTaskSize)
			state = AwaitingWork

		case AwaitingWork:
			tag, payload, err := conn.Recv()
			if err != nil {
				return fmt.Errorf("worker %d: awaiting work: %w", cfg.WorkerID, err)
			}
			if tag != protocol.TagWork {
				return fmt.Errorf("worker %d: expected work, got %s", cfg.WorkerID, tag)
			}
			work, err := transport.Unmarshal[protocol.WorkMessage](payload)
			if err != nil {
				return fmt.Errorf("worker %d: decoding work: %w", cfg.WorkerID, err)
			}
			if work.WorkCode == protocol.WorkCodeStop {
				state = Terminated
				continue
			}
			state = Gating
			if err := handleTask(ctx, cfg, &greeting, &gate, work, conn); err != nil {
				return err
			}
			state = AwaitingWork

		default:
			return fmt.Errorf("worker %d: unreachable state %s", cfg.WorkerID, state)
		}
	}

	log.Printf("worker %d: terminated", cfg.WorkerID)
	return nil
}

// handleTask runs the Gating -> Executing -> Reporting leg of one work
// item and sends the result back over conn. Errors returned here are
// transport/protocol failures; a task that fails to run is still reported
// as a ResultMessage with a failing Status, not as a Go error.
func handleTask(ctx context.Context, cfg Config, greeting *protocol.GreetingMessage, gate *memcheck.Gate, work protocol.WorkMessage, conn *transport.Conn) error {
	// Gating: on refuse, back off and re-gate in place rather than report
	// failure — the master's recv loop tolerates arbitrary per-worker
	// latency for exactly this reason. A probe failure (the OS call
	// itself erroring, not a refusal) is the one path that produces
	// MEM_ERR: it can't be retried away like a refusal can.
	for {
		decision, err := gate.Check()
		if err != nil {
			log.Printf("worker %d: memory probe failed: %v", cfg.WorkerID, err)
			result := protocol.ResultMessage{
				WorkerID:   cfg.WorkerID,
				TaskNumber: work.TaskNumber,
				Status:     protocol.StatusMemErr,
				ArgsCSV:    work.ArgsCSV,
			}
			return conn.Send(protocol.TagResult, result)
		}
		if decision == memcheck.Admit {
			break
		}
		log.Printf("worker %d: admission refused, backing off %s", cfg.WorkerID, memcheck.BackoffDelay)
		select {
		case <-time.After(memcheck.BackoffDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	taskType, err := task.ParseType(greeting.TaskType)
	if err != nil {
		return fmt.Errorf("worker %d: %w", cfg.WorkerID, err)
	}

	programPath := work.ProgramFile
	if greeting.CustomPath && greeting.ProgramPath != "" {
		programPath = greeting.ProgramPath
	}

	req := executor.Request{
		TaskType:    taskType,
		ProgramPath: programPath,
		TaskNumber:  work.TaskNumber,
		ArgsCSV:     work.ArgsCSV,
		AuxPath:     work.AuxPath,
		OutDir:      work.OutDir,
		CreateErr:   greeting.CreateErr,
		CreateMem:   greeting.CreateMem,
		SingleCore:  greeting.MapleSingleCore,
	}

	res, execErr := executor.Run(ctx, req)
	if execErr != nil {
		log.Printf("worker %d: task %d: %v", cfg.WorkerID, work.TaskNumber, execErr)
	}

	result := protocol.ResultMessage{
		WorkerID:     cfg.WorkerID,
		TaskNumber:   work.TaskNumber,
		Status:       res.Status,
		ArgsCSV:      work.ArgsCSV,
		ExecSeconds:  res.ExecSeconds,
		TotalSeconds: res.ExecSeconds,
	}
	return conn.Send(protocol.TagResult, result)
}
