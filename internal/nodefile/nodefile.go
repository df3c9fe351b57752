// Package nodefile parses the cluster node list: one "hostname cores" pair
// per line.
package nodefile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Spec pairs a hostname with the number of workers to spawn there.
type Spec struct {
	Host  string
	Cores int
}

// Parse reads an ordered sequence of Specs from r. Blank lines are skipped.
func Parse(r io.Reader) ([]Spec, error) {
	var specs []Spec
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("node file line %d: expected \"hostname cores\", got %q", lineNo, line)
		}
		cores, err := strconv.Atoi(fields[1])
		if err != nil || cores <= 0 {
			return nil, fmt.Errorf("node file line %d: cores field %q is not a positive integer", lineNo, fields[1])
		}
		specs = append(specs, Spec{Host: fields[0], Cores: cores})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("node file contains no nodes")
	}
	return specs, nil
}

// TotalCores sums the declared core counts across every node, giving the
// total worker pool size W.
func TotalCores(specs []Spec) int {
	total := 0
	for _, s := range specs {
		total += s.Cores
	}
	return total
}
