// Package journal implements the unfinished-task journal: an append-only
// record of failed/killed items so a run can be retried.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
)

const fileName = "unfinished_tasks.txt"

// Journal tracks the unfinished-tasks file for one run. It is created empty
// before the prime phase and opened-appended-closed on every
// failure — there is no buffered writer kept open across calls, since
// durability happens at Close, not at flush.
type Journal struct {
	path    string
	entries int
}

// New creates (or truncates) outDir/unfinished_tasks.txt and returns a
// Journal ready for Append calls.
func New(outDir string) (*Journal, error) {
	path := filepath.Join(outDir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("journal: creating %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("journal: creating %s: %w", path, err)
	}
	return &Journal{path: path}, nil
}

// Append records one failed item: "<taskNumber>,<argsCsv>\n", opened for
// append and closed immediately.
func (j *Journal) Append(taskNumber int, argsCSV string) error {
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("journal: appending to %s: %w", j.path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d,%s\n", taskNumber, argsCSV); err != nil {
		return fmt.Errorf("journal: appending to %s: %w", j.path, err)
	}
	j.entries++
	return nil
}

// Empty reports whether nothing has been journaled this run.
func (j *Journal) Empty() bool {
	return j.entries == 0
}

// EntryCount returns how many items have been appended this run.
func (j *Journal) EntryCount() int {
	return j.entries
}

// Finalize removes the journal file if it stayed empty for the whole run;
// otherwise it leaves the accumulated records in place for a re-run.
func (j *Journal) Finalize() error {
	if !j.Empty() {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("journal: removing empty %s: %w", j.path, err)
	}
	return nil
}
