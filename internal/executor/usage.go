package executor

import (
	"fmt"
	"os"
	"path/filepath"
)

// UsageRecord is the per-task resource-usage figure emitted when memory
// usage tracking is enabled for a run. The on-disk format here is a
// minimal, self-contained rendering rather than delegating to an external
// usage-reporting tool.
type UsageRecord struct {
	TaskNumber  int
	UserSysSecs float64
	MaxRSSKiB   int64
	ExitCode    int
}

// WriteUsageRecord writes outDir/<taskNumber>_mem.txt.
func WriteUsageRecord(outDir string, rec UsageRecord) error {
	path := filepath.Join(outDir, fmt.Sprintf("%d_mem.txt", rec.TaskNumber))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("executor: writing usage record: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "task=%d exit=%d user+sys=%.3fs maxrss=%dKiB\n",
		rec.TaskNumber, rec.ExitCode, rec.UserSysSecs, rec.MaxRSSKiB)
	return err
}
