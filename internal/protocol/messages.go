// Package protocol defines the wire messages exchanged between the PBala
// master and its workers. Field sequences here are the contract: sender and
// receiver must agree on them — a change to a message's shape is a breaking
// protocol change, not a refactor.
package protocol

// Tag identifies the kind of frame carried by a transport.Conn. Workers and
// the master dispatch on Tag before unmarshaling the payload.
type Tag int

const (
	TagGreeting Tag = iota
	TagWork
	TagResult
)

func (t Tag) String() string {
	switch t {
	case TagGreeting:
		return "GREETING"
	case TagWork:
		return "WORK"
	case TagResult:
		return "RESULT"
	default:
		return "UNKNOWN"
	}
}

// WorkCode distinguishes a real work assignment from the pool-quiesce signal.
type WorkCode int

const (
	WorkCodeWork WorkCode = iota
	WorkCodeStop
)

// GreetingMessage is sent once, master to worker, right after spawn.
type GreetingMessage struct {
	WorkerID        int    `json:"worker_id"`
	RunID           string `json:"run_id"`
	TaskType        int    `json:"task_type"`
	MaxTaskSize     int64  `json:"max_task_size_kib"`
	CreateErr       bool   `json:"create_err"`
	CreateMem       bool   `json:"create_mem"`
	CustomPath      bool   `json:"custom_path"`
	ProgramPath     string `json:"program_path,omitempty"`
	MapleSingleCore bool   `json:"maple_single_core"`
}

// WorkMessage is sent master to worker: either a task to run, or a stop order.
type WorkMessage struct {
	WorkCode    WorkCode `json:"work_code"`
	TaskNumber  int      `json:"task_number"`
	ProgramFile string   `json:"program_file"`
	OutDir      string   `json:"out_dir"`
	ArgsCSV     string   `json:"args_csv"`
	// AuxPath is pre-generated by the master during the prime/steady phases
	// for task types that need one (Pari/Sage/Octave) and handed to the
	// worker ready to use — the worker never writes its own aux scripts.
	AuxPath string `json:"aux_path,omitempty"`
}

// Status is the terminal outcome of one task, as observed by its worker.
type Status int

const (
	StatusOK Status = iota
	StatusForkErr
	StatusMemErr
	StatusTaskKilled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusForkErr:
		return "FORK_ERR"
	case StatusMemErr:
		return "MEM_ERR"
	case StatusTaskKilled:
		return "TASK_KILLED"
	default:
		return "UNKNOWN"
	}
}

// Failed reports whether this status requires journaling the task as
// unfinished (every non-OK terminal status).
func (s Status) Failed() bool {
	return s != StatusOK
}

// ResultMessage is sent worker to master after a task (or fork attempt)
// concludes. ArgsCSV is echoed back so the master can journal the item
// without re-reading the data file.
type ResultMessage struct {
	WorkerID     int     `json:"worker_id"`
	TaskNumber   int     `json:"task_number"`
	Status       Status  `json:"status"`
	ArgsCSV      string  `json:"args_csv"`
	ExecSeconds  float64 `json:"exec_seconds,omitempty"`
	TotalSeconds float64 `json:"total_seconds"`
}
