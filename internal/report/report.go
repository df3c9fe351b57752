// Package report prints the colorized, labeled event stream a run emits to
// the terminal, using github.com/fatih/color for status output and
// github.com/mattn/go-isatty to decide whether color escapes are safe to
// emit at all.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Label identifies the kind of event being reported.
type Label int

const (
	CreatedSlave Label = iota
	CreatedScript
	TaskSent
	TaskCompleted
	Info
	Error
)

func (l Label) String() string {
	switch l {
	case CreatedSlave:
		return "CREATED_SLAVE"
	case CreatedScript:
		return "CREATED_SCRIPT"
	case TaskSent:
		return "TASK_SENT"
	case TaskCompleted:
		return "TASK_COMPLETED"
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Label) color() *color.Color {
	switch l {
	case CreatedSlave:
		return color.New(color.FgCyan)
	case CreatedScript:
		return color.New(color.FgBlue)
	case TaskSent:
		return color.New(color.FgYellow)
	case TaskCompleted:
		return color.New(color.FgGreen)
	case Error:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

// Reporter prints one labeled line per event to w, with color enabled only
// when w is a terminal.
type Reporter struct {
	w       io.Writer
	colored bool
}

// New builds a Reporter writing to w. Pass os.Stdout for normal run output.
func New(w io.Writer) *Reporter {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{w: w, colored: colored}
}

// Event prints one labeled event line: "[HH:MM:SS] LABEL message".
func (r *Reporter) Event(l Label, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("15:04:05")
	if r.colored {
		l.color().Fprintf(r.w, "[%s] %-15s %s\n", ts, l.String(), msg)
		return
	}
	fmt.Fprintf(r.w, "[%s] %-15s %s\n", ts, l.String(), msg)
}

// NodeAssignment is one line of the per-node worker-count log written at
// the end of a run, so a user can audit how cores were distributed across
// the nodefile.
type NodeAssignment struct {
	Host    string
	Workers int
}

// WriteNodeLog writes the node-assignment log to w, one "host: N workers"
// line per entry, in spawn order.
func WriteNodeLog(w io.Writer, assignments []NodeAssignment) error {
	for _, a := range assignments {
		if _, err := fmt.Fprintf(w, "%s: %d workers\n", a.Host, a.Workers); err != nil {
			return err
		}
	}
	return nil
}
