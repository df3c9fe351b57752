package task

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WorkItem is one line of the data file: a task number and the verbatim
// argument string handed to the target program.
type WorkItem struct {
	TaskNumber int
	ArgsCSV    string
}

// ParseLine parses one data-file line: "<taskNumber>,<argsCsv...>". The
// first comma-separated field is the task number; everything after the
// first comma is passed through untouched, including embedded commas,
// since ArgsCSV is only split apart downstream by BuildArgv for the task
// types that need that (C, Python).
func ParseLine(line string) (WorkItem, error) {
	idx := strings.IndexByte(line, ',')
	var numField, rest string
	if idx < 0 {
		numField, rest = line, ""
	} else {
		numField, rest = line[:idx], line[idx+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(numField))
	if err != nil {
		return WorkItem{}, fmt.Errorf("bad task number field %q: %w", numField, err)
	}
	return WorkItem{TaskNumber: n, ArgsCSV: rest}, nil
}

// ReadDataFile reads every non-blank line from r in order, in the shape the
// master's prime/steady phases consume: the full ordered slice up front.
// A run is bounded to a fixed N known before dispatch begins, so streaming
// line-by-line buys nothing here — the whole file is small text and is
// read once.
func ReadDataFile(r io.Reader) ([]WorkItem, error) {
	var items []WorkItem
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		item, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("data file line %d: %w", lineNo, err)
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
