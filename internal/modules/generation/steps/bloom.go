package steps

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is one tier of Bloom's taxonomy.
type Level string

const (
	Remember   Level = "remember"
	Understand Level = "understand"
	Apply      Level = "apply"
	Analyze    Level = "analyze"
	Evaluate   Level = "evaluate"
	Create     Level = "create"
)

// Levels lists every tier from lowest to highest order of thinking.
var Levels = []Level{Remember, Understand, Apply, Analyze, Evaluate, Create}

func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Levels {
		if v == l {
			return l, true
		}
	}
	return "", false
}

func levelNames() []string {
	out := make([]string, len(Levels))
	for i, l := range Levels {
		out[i] = string(l)
	}
	return out
}

// Quota is the requested number of questions per level.
type Quota map[Level]int

const DefaultQuotaSpec = "3 remember, 3 understand, 1 apply, 1 analyze, 1 evaluate, 1 create"

func DefaultQuota() Quota {
	q, err := ParseQuota(DefaultQuotaSpec)
	if err != nil {
		panic(err)
	}
	return q
}

type QuotaError struct {
	Spec   string
	Reason string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("invalid bloom quota %q: %s", e.Spec, e.Reason)
}

// ParseQuota reads a comma-separated list of "<count> <level>" pairs such as
// "3 remember, 1 apply".
func ParseQuota(spec string) (Quota, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, &QuotaError{Spec: spec, Reason: "empty"}
	}
	q := Quota{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) != 2 {
			return nil, &QuotaError{Spec: spec, Reason: fmt.Sprintf("%q is not \"<count> <level>\"", part)}
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, &QuotaError{Spec: spec, Reason: fmt.Sprintf("%q is not a count", fields[0])}
		}
		if n <= 0 {
			return nil, &QuotaError{Spec: spec, Reason: fmt.Sprintf("count for %s must be positive", fields[1])}
		}
		lvl, ok := ParseLevel(fields[1])
		if !ok {
			return nil, &QuotaError{Spec: spec, Reason: fmt.Sprintf("unknown level %q (want one of %s)", fields[1], strings.Join(levelNames(), ", "))}
		}
		if _, dup := q[lvl]; dup {
			return nil, &QuotaError{Spec: spec, Reason: fmt.Sprintf("level %s given twice", lvl)}
		}
		q[lvl] = n
	}
	if len(q) == 0 {
		return nil, &QuotaError{Spec: spec, Reason: "empty"}
	}
	return q, nil
}

// String renders the quota in canonical level order, e.g. "2 remember, 1 create".
func (q Quota) String() string {
	parts := make([]string, 0, len(Levels))
	for _, l := range Levels {
		if n := q[l]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, l))
		}
	}
	return strings.Join(parts, ", ")
}

func (q Quota) Total() int {
	total := 0
	for _, l := range Levels {
		if n := q[l]; n > 0 {
			total += n
		}
	}
	return total
}

// Counts returns the quota keyed by level name, the shape persisted on an
// assessment.
func (q Quota) Counts() map[string]int {
	out := make(map[string]int, len(q))
	for _, l := range Levels {
		if n := q[l]; n > 0 {
			out[string(l)] = n
		}
	}
	return out
}
