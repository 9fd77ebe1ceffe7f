package compare

import "strings"

// RemapThreshold is the lowest match score accepted when moving a phrase's
// ground truth to a new chunk.
const RemapThreshold = 0.3

// Match is the best chunk for a piece of expected content.
type Match struct {
	Index int
	Score float64
}

// normalize lowercases text and collapses runs of whitespace.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// FindBestChunkMatch scores every candidate against the expected content and
// returns the best one. A chunk containing the whole expected text scores 1.
// A chunk that is a piece of the expected text scores its share of the
// expected length. Anything else scores the number of its words found in the
// expected text over the larger of the two vocabularies. The earliest
// candidate wins ties. ok is false when no candidate scores above zero.
func FindBestChunkMatch(expected string, candidates []string) (m Match, ok bool) {
	want := normalize(expected)
	if want == "" || len(candidates) == 0 {
		return Match{}, false
	}

	wantWords := make(map[string]struct{})
	for _, w := range strings.Fields(want) {
		wantWords[w] = struct{}{}
	}

	best := Match{Index: -1}
	for i, candidate := range candidates {
		got := normalize(candidate)
		if got == "" {
			continue
		}

		var score float64
		switch {
		case strings.Contains(got, want):
			score = 1
		case strings.Contains(want, got):
			score = float64(len(got)) / float64(len(want))
		default:
			words := strings.Fields(got)
			overlap := 0
			for _, w := range words {
				if _, found := wantWords[w]; found {
					overlap++
				}
			}
			score = float64(overlap) / float64(max(len(wantWords), len(words)))
		}

		if score > best.Score {
			best = Match{Index: i, Score: score}
		}
	}
	if best.Index < 0 {
		return Match{}, false
	}
	return best, true
}
