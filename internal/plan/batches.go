// Package plan derives the task plan for an experiment launch: the ordered
// execution stages of postprocessing scripts and the per-task argument sets,
// either one task per region (implicit) or one task per CSV row (explicit).
// The plan is handed to the batch client as-is; nothing here executes tasks.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidScriptName reports a postprocessing script whose filename does
// not start with an integer stage prefix.
var ErrInvalidScriptName = errors.New("invalid postprocessing script name")

// DeriveExecutionBatches groups postprocessing script filenames into
// dependency stages. The substring before the first underscore is parsed as
// an integer stage key; scripts sharing a key form one stage and may run
// concurrently, stages run in ascending key order. Ties within a stage keep
// filename-lexicographic order.
func DeriveExecutionBatches(scriptNames []string) ([][]string, error) {
	if len(scriptNames) == 0 {
		return nil, nil
	}
	names := make([]string, len(scriptNames))
	copy(names, scriptNames)
	sort.Strings(names)

	keys := make(map[string]int, len(names))
	for _, name := range names {
		head, _, _ := strings.Cut(name, "_")
		key, err := strconv.Atoi(head)
		if err != nil {
			return nil, fmt.Errorf("%w: %q has no integer prefix before the first underscore",
				ErrInvalidScriptName, name)
		}
		keys[name] = key
	}
	sort.SliceStable(names, func(i, j int) bool { return keys[names[i]] < keys[names[j]] })

	var batches [][]string
	for _, name := range names {
		if n := len(batches); n > 0 && keys[batches[n-1][0]] == keys[name] {
			batches[n-1] = append(batches[n-1], name)
			continue
		}
		batches = append(batches, []string{name})
	}
	return batches, nil
}
