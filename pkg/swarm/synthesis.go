// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package swarm

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SynthesisStrategy controls how completed subtask results fold into
// one output.
type SynthesisStrategy string

const (
	SynthesisConcatenate     SynthesisStrategy = "concatenate"
	SynthesisMerge           SynthesisStrategy = "merge"
	SynthesisVote            SynthesisStrategy = "vote"
	SynthesisWeightedAverage SynthesisStrategy = "weighted_average"
)

// ConflictResolution picks one result among subtasks sharing a
// description before synthesis.
type ConflictResolution string

const (
	ConflictNone     ConflictResolution = ""
	ConflictFirst    ConflictResolution = "first"
	ConflictLast     ConflictResolution = "last"
	ConflictMajority ConflictResolution = "majority"
)

// Synthesize folds the completed subtasks into a single output.
// Concatenation orders by subtask id; merge, vote and averaging work in
// completion order. Conflict resolution, when set, collapses subtasks
// that share a description down to one representative first.
func Synthesize(subtasks []*SubTask, strategy SynthesisStrategy, conflict ConflictResolution) (any, error) {
	completed := make([]*SubTask, 0, len(subtasks))
	for _, st := range subtasks {
		if st.Status == SubTaskCompleted {
			completed = append(completed, st)
		}
	}
	if conflict != ConflictNone {
		completed = resolveConflicts(completed, conflict)
	}
	if len(completed) == 0 {
		return nil, nil
	}

	switch strategy {
	case SynthesisConcatenate, "":
		byID := append([]*SubTask(nil), completed...)
		sort.Slice(byID, func(i, j int) bool { return byID[i].ID < byID[j].ID })
		out := make([]any, 0, len(byID))
		for _, st := range byID {
			out = append(out, st.Result)
		}
		return out, nil

	case SynthesisMerge:
		return mergeResults(completionOrder(completed)), nil

	case SynthesisVote:
		return voteResults(completionOrder(completed)), nil

	case SynthesisWeightedAverage:
		return averageResults(completionOrder(completed))

	default:
		return nil, fmt.Errorf("unknown synthesis strategy %q", strategy)
	}
}

// completionOrder sorts by CompletedAt, ties broken by id to stay
// deterministic within one millisecond.
func completionOrder(subtasks []*SubTask) []*SubTask {
	out := append([]*SubTask(nil), subtasks...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt != out[j].CompletedAt {
			return out[i].CompletedAt < out[j].CompletedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// mergeResults spread-merges object results in completion order;
// scalars fall back to last-wins.
func mergeResults(subtasks []*SubTask) any {
	merged := make(map[string]any)
	sawObject := false
	var lastScalar any
	for _, st := range subtasks {
		if obj, ok := asObject(st.Result); ok {
			sawObject = true
			for k, v := range obj {
				merged[k] = v
			}
			continue
		}
		lastScalar = st.Result
	}
	if sawObject {
		return merged
	}
	return lastScalar
}

// voteResults returns the mode of results under JSON equality; ties go
// to the earliest completion.
func voteResults(subtasks []*SubTask) any {
	counts := make(map[string]int)
	first := make(map[string]any)
	order := make([]string, 0, len(subtasks))
	for _, st := range subtasks {
		key := jsonKey(st.Result)
		if _, seen := counts[key]; !seen {
			first[key] = st.Result
			order = append(order, key)
		}
		counts[key]++
	}

	winner := ""
	for _, key := range order {
		if winner == "" || counts[key] > counts[winner] {
			winner = key
		}
	}
	return first[winner]
}

// averageResults returns the mean of numeric results with equal
// weights.
func averageResults(subtasks []*SubTask) (any, error) {
	var sum float64
	n := 0
	for _, st := range subtasks {
		v, ok := asNumber(st.Result)
		if !ok {
			return nil, fmt.Errorf("weighted_average needs numeric results, got %T", st.Result)
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return sum / float64(n), nil
}

// resolveConflicts collapses subtasks sharing a description to one
// representative per group, in completion order.
func resolveConflicts(subtasks []*SubTask, conflict ConflictResolution) []*SubTask {
	ordered := completionOrder(subtasks)
	groups := make(map[string][]*SubTask)
	var descOrder []string
	for _, st := range ordered {
		if _, seen := groups[st.Description]; !seen {
			descOrder = append(descOrder, st.Description)
		}
		groups[st.Description] = append(groups[st.Description], st)
	}

	out := make([]*SubTask, 0, len(descOrder))
	for _, desc := range descOrder {
		group := groups[desc]
		switch conflict {
		case ConflictFirst:
			out = append(out, group[0])
		case ConflictLast:
			out = append(out, group[len(group)-1])
		case ConflictMajority:
			out = append(out, majorityOf(group))
		default:
			out = append(out, group...)
		}
	}
	return out
}

// majorityOf picks the subtask whose result is the mode of its group,
// earliest completion on ties.
func majorityOf(group []*SubTask) *SubTask {
	counts := make(map[string]int)
	for _, st := range group {
		counts[jsonKey(st.Result)]++
	}
	var picked *SubTask
	for _, st := range group {
		if picked == nil || counts[jsonKey(st.Result)] > counts[jsonKey(picked.Result)] {
			picked = st
		}
	}
	return picked
}

func asObject(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func jsonKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}
