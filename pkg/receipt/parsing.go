package receipt

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoAmount is returned when no plausible monetary amount can be extracted.
var ErrNoAmount = errors.New("no amount detected")

// amountRE matches money tokens in OCR text: optionally grouped digits with
// an optional two-digit decimal part, e.g. "1,234.56", "1234", "45.00".
var amountRE = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?|\d+(?:[.,]\d{2})?`)

// FindAmountTokens returns the money-looking substrings of a line of OCR
// text, each prefixed with its surrounding words so keyword scoring can see
// "TOTAL" context.
func FindAmountTokens(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, m := range amountRE.FindAllString(line, -1) {
			if len(onlyDigits(m)) >= 2 { // single digits are noise (quantities, dates)
				out = append(out, line)
				break
			}
		}
	}
	return out
}

// ParseAmountCents turns a line or token into cents. Receipts put the money
// figure at the end of the line, so the last amount-looking token wins. A
// trailing two-digit decimal part is kept as cents; an amount without one is
// whole currency units ("45" -> 4500).
func ParseAmountCents(found string) (int64, error) {
	found = strings.TrimSpace(found)
	if found == "" {
		return 0, ErrNoAmount
	}
	var m string
	for _, cand := range amountRE.FindAllString(found, -1) {
		if len(onlyDigits(cand)) < 2 {
			continue
		}
		m = cand
	}
	if m == "" {
		return 0, ErrNoAmount
	}
	hasCents := regexp.MustCompile(`[.,]\d{2}$`).MatchString(m)
	var intPart, centPart string
	if hasCents {
		intPart = onlyDigits(m[:len(m)-3])
		centPart = m[len(m)-2:]
	} else {
		intPart = onlyDigits(m)
		centPart = "00"
	}
	if intPart == "" {
		return 0, ErrNoAmount
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, err
	}
	cents, err := strconv.ParseInt(centPart, 10, 64)
	if err != nil {
		return 0, err
	}
	return whole*100 + cents, nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeText collapses whitespace inside lines but keeps line breaks so
// token context stays per-line.
func normalizeText(t string) string {
	lines := strings.Split(t, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}
