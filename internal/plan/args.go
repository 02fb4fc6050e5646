package plan

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Arg is a single flag=value pair passed to a task.
type Arg struct {
	Flag  string
	Value string
}

// TaskArgs is the ordered argument list of one task.
type TaskArgs []Arg

// CommandLine renders the arguments as a flag list, e.g.
// ["--state", "CA", "--scenario", "low_booster"].
func (t TaskArgs) CommandLine() []string {
	out := make([]string, 0, 2*len(t))
	for _, a := range t {
		out = append(out, "--"+a.Flag, a.Value)
	}
	return out
}

// Label returns a short human-readable tag for the task, the first argument
// value when present.
func (t TaskArgs) Label() string {
	if len(t) == 0 {
		return "task"
	}
	return t[0].Value
}

// ImplicitArgs builds the default argument set: one task per region code,
// each receiving a single `--state <code>` argument.
func ImplicitArgs(regionCodes []string) []TaskArgs {
	tasks := make([]TaskArgs, 0, len(regionCodes))
	for _, code := range regionCodes {
		tasks = append(tasks, TaskArgs{{Flag: "state", Value: code}})
	}
	return tasks
}

// Table is an explicit-mode argument matrix: the header row carries flag
// names without dashes, each data row is one task.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ReadExplicitCSV loads an explicit-mode task CSV. Rows may cover any subset
// of regions, in any multiplicity; partial coverage is allowed so launches
// can re-run selected regions.
func ReadExplicitCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("opening explicit task csv %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parsing explicit task csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("explicit task csv %s is empty", path)
	}
	return Table{Headers: records[0], Rows: records[1:]}, nil
}

// Tasks converts the table into per-task argument lists, column order
// preserved. Empty cells are omitted from their task.
func (t Table) Tasks() []TaskArgs {
	tasks := make([]TaskArgs, 0, len(t.Rows))
	for _, row := range t.Rows {
		var args TaskArgs
		for i, cell := range row {
			if i >= len(t.Headers) || cell == "" {
				continue
			}
			args = append(args, Arg{Flag: t.Headers[i], Value: cell})
		}
		tasks = append(tasks, args)
	}
	return tasks
}
