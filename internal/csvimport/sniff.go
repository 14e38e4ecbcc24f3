package csvimport

import "strings"

// delimiterCandidates in order of preference when several fit.
var delimiterCandidates = []rune{',', '\t', ';', '|', ':'}

// consistencyThreshold is the share of sample lines that must agree on a
// delimiter's count for it to be accepted.
const consistencyThreshold = 0.9

// SniffDelimiter guesses the field delimiter of a CSV sample. A candidate
// qualifies when it occurs, outside quotes, the same non-zero number of
// times on enough lines. It reports false when nothing qualifies.
func SniffDelimiter(sample string) (rune, bool) {
	return sniff(sample, false)
}

func sniff(sample string, truncated bool) (rune, bool) {
	lines := sampleLines(sample, truncated)
	if len(lines) == 0 {
		return 0, false
	}

	for _, cand := range delimiterCandidates {
		counts := make(map[int]int)
		for _, line := range lines {
			counts[countOutsideQuotes(line, cand)]++
		}
		mode, freq := 0, 0
		for n, f := range counts {
			if n > 0 && (f > freq || (f == freq && n > mode)) {
				mode, freq = n, f
			}
		}
		if mode == 0 {
			continue
		}
		if float64(freq)/float64(len(lines)) >= consistencyThreshold {
			return cand, true
		}
	}
	return 0, false
}

// sampleLines splits the sample into non-blank lines. The last line is
// dropped when the sample was cut mid-line, unless it is the only one.
func sampleLines(sample string, truncated bool) []string {
	sample = strings.ReplaceAll(sample, "\r\n", "\n")
	truncated = truncated && !strings.HasSuffix(sample, "\n")
	raw := strings.Split(sample, "\n")

	var lines []string
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if truncated && len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func countOutsideQuotes(line string, delim rune) int {
	n := 0
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			n++
		}
	}
	return n
}
