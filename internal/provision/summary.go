package provision

// Summary counts outcomes by kind.
type Summary struct {
	Total  int          `json:"total"`
	Counts map[Kind]int `json:"counts"`
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes), Counts: map[Kind]int{}}
	for _, out := range outcomes {
		s.Counts[out.Kind]++
	}
	return s
}

// NeedsAttention returns outcomes an operator should follow up on manually.
func NeedsAttention(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		switch o.Kind {
		case KindFailed, KindSkippedDependencyMissing, KindDeclined:
			out = append(out, o)
		}
	}
	return out
}
