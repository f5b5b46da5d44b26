package receipt

import "strings"

// BestAmountFromLines selects the most likely receipt total from candidate
// lines. Lines carrying a total keyword beat bare amounts; among equal
// scores the larger amount wins (item lines are smaller than the total).
func BestAmountFromLines(lines []string) (int64, string, bool) {
	type cand struct {
		cents int64
		raw   string
		score int
	}
	scoreFor := func(raw string) int {
		s := 0
		low := strings.ToLower(raw)
		if strings.Contains(low, "grand total") {
			s += 12
		} else if strings.Contains(low, "total") {
			s += 8
		}
		if strings.Contains(low, "amount due") || strings.Contains(low, "balance due") {
			s += 8
		}
		if strings.Contains(low, "subtotal") {
			s -= 3 // subtotal is close to, but not, the figure we want
		}
		if strings.Contains(low, "change") || strings.Contains(low, "cash") {
			s -= 5
		}
		if strings.Contains(raw, ".") || strings.Contains(raw, ",") {
			s += 3
		}
		return s
	}
	var cands []cand
	for _, line := range lines {
		cents, err := ParseAmountCents(line)
		if err != nil || !plausibleCents(cents) {
			continue
		}
		cands = append(cands, cand{cents: cents, raw: line, score: scoreFor(line)})
	}
	if len(cands) == 0 {
		return 0, "", false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score || (c.score == best.score && c.cents > best.cents) {
			best = c
		}
	}
	return best.cents, best.raw, true
}

// plausibleCents bounds a candidate to sane grocery-receipt territory.
func plausibleCents(cents int64) bool {
	return cents >= 100 && cents <= 100_000_000
}
