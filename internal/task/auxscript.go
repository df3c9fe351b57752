package task

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAuxScript emits the small interpreter snippet that binds the task id
// and argument list for task types whose program file is a library loaded
// by an auxiliary driver script (Pari, Sage, Octave), rather than executed
// directly. This is the minimal form of each driver script a worker needs
// before it can gp/sage/octave the result.
//
// The returned path's base name contains the sentinel "auxprog" so the
// master's close-out phase can find and remove it.
func WriteAuxScript(t Type, outDir, runID string, taskNumber int, prog, argsCSV string) (string, error) {
	if !t.NeedsAuxScript() {
		return "", fmt.Errorf("task type %s does not use an auxiliary script", t)
	}

	name := fmt.Sprintf("%d_%s_auxprog_%s%s", taskNumber, t, runID, auxExt(t))
	path := filepath.Join(outDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("writing auxiliary script %s: %w", path, err)
	}
	defer f.Close()

	var writeErr error
	switch t {
	case Pari:
		_, writeErr = fmt.Fprintf(f, "taskId = %d;\ntaskArgs = [%s];\nread(\"%s\");\n", taskNumber, argsCSV, prog)
	case Sage:
		_, writeErr = fmt.Fprintf(f, "taskId = %d\ntaskArgs = [%s]\nload('%s')\n", taskNumber, argsCSV, prog)
	case Octave:
		_, writeErr = fmt.Fprintf(f, "taskId = %d;\ntaskArgs = {%s};\nrun('%s');\n", taskNumber, argsCSV, prog)
	}
	if writeErr != nil {
		return "", fmt.Errorf("writing auxiliary script %s: %w", path, writeErr)
	}
	return path, nil
}

func auxExt(t Type) string {
	switch t {
	case Pari:
		return ".gp"
	case Sage:
		return ".sage"
	case Octave:
		return ".m"
	default:
		return ""
	}
}
