// Package task implements the data model and argv-construction rules for
// one work item: parsing a line of the data file, and building the argv a
// worker execs for it, per task type.
package task

import (
	"fmt"
	"strings"
)

// Type is the tagged variant selecting argv assembly and whether an
// auxiliary script must be pre-generated before exec.
type Type int

const (
	Maple Type = iota
	C
	Python
	Pari
	Sage
	Octave
)

func (t Type) String() string {
	switch t {
	case Maple:
		return "maple"
	case C:
		return "c"
	case Python:
		return "python"
	case Pari:
		return "pari"
	case Sage:
		return "sage"
	case Octave:
		return "octave"
	default:
		return "unknown"
	}
}

// ParseType maps the CLI's numeric taskType argument onto a Type.
func ParseType(n int) (Type, error) {
	switch Type(n) {
	case Maple, C, Python, Pari, Sage, Octave:
		return Type(n), nil
	default:
		return 0, fmt.Errorf("task type %d is not one of 0..5", n)
	}
}

// NeedsAuxScript reports whether this task type requires an interpreter
// script to be pre-generated (by WriteAuxScript, on the master) before
// the worker execs it.
func (t Type) NeedsAuxScript() bool {
	switch t {
	case Pari, Sage, Octave:
		return true
	default:
		return false
	}
}

// splitArgs is an explicit, empty-field-rejecting comma tokenizer. Commas
// remain the argv field separator by design — an argsCsv value containing
// a literal comma inside one logical field
// will misparse, and that limitation is inherent to the wire format, not
// to this function.
func splitArgs(argsCSV string) []string {
	if argsCSV == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(argsCSV, ",") {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// BuildArgv returns the argv a worker should exec for this task, given the
// resolved program path (customPath-aware — resolution happens before this
// call), the task number, and the raw argsCsv from the data file. For Pari,
// Sage and Octave, auxPath is the path of the pre-generated auxiliary
// script and is used in place of prog's direct argv slot.
func (t Type) BuildArgv(prog string, taskNumber int, argsCSV string, auxPath string) []string {
	tn := fmt.Sprintf("%d", taskNumber)
	switch t {
	case Maple:
		return []string{
			"maple",
			fmt.Sprintf("-tc \"taskId:=%d\"", taskNumber),
			fmt.Sprintf("-c \"taskArgs:=[%s]\"", argsCSV),
			prog,
		}
	case C:
		return append([]string{prog, tn}, splitArgs(argsCSV)...)
	case Python:
		return append([]string{"python", prog, tn}, splitArgs(argsCSV)...)
	case Pari:
		return []string{"gp", "-q", auxPath}
	case Sage:
		return []string{"sage", auxPath}
	case Octave:
		return []string{"octave", "--no-gui", auxPath}
	default:
		return nil
	}
}

// Interpreter returns the name of the binary that argv[0] invokes, for
// logging and for resolving the program via exec.LookPath before Spawn.
func (t Type) Interpreter() string {
	switch t {
	case Maple:
		return "maple"
	case Python:
		return "python"
	case Pari:
		return "gp"
	case Sage:
		return "sage"
	case Octave:
		return "octave"
	case C:
		return ""
	default:
		return ""
	}
}
