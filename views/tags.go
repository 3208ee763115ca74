package views

import (
	"sort"
	"strings"

	rake "github.com/afjoseph/RAKE.Go"
)

const maxTags = 5

// Keywords picks tags for a question that has none on the ledger, best scoring
// first.
func Keywords(title, description string) []string {
	text := strings.TrimSpace(title + ". " + description)
	out := []string{}
	if text == "." {
		return out
	}
	candidates := rake.RunRake(text)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Value != candidates[j].Value {
			return candidates[i].Value > candidates[j].Value
		}
		return candidates[i].Key < candidates[j].Key
	})
	seen := make(map[string]bool)
	for _, candidate := range candidates {
		if candidate.Key == "" || len(candidate.Key) >= 50 || seen[candidate.Key] {
			continue
		}
		seen[candidate.Key] = true
		out = append(out, candidate.Key)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
