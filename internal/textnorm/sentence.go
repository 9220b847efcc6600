package textnorm

import (
	"strings"
	"unicode"
)

const similarityThreshold = 0.6

var badEndTokens = map[string]bool{
	"ve": true, "ile": true, "gibi": true, "ancak": true, "fakat": true,
	"ama": true, "çünkü": true, "veya": true, "vb": true, "ya da": true,
}

var badEndRunes = map[rune]bool{
	',': true, ':': true, ';': true, '—': true, '–': true, '-': true,
	'…': true, '“': true, '‘': true, '\'': true, '"': true,
}

// splitTerminated splits after '.', '!' or '?' when whitespace follows.
func splitTerminated(s string) []string {
	rs := []rune(strings.TrimSpace(s))
	var out []string
	start := 0
	for i := 0; i < len(rs); i++ {
		if !isTerminator(rs[i]) || i+1 >= len(rs) || !unicode.IsSpace(rs[i+1]) {
			continue
		}
		if part := strings.TrimSpace(string(rs[start : i+1])); part != "" {
			out = append(out, part)
		}
		for i+1 < len(rs) && unicode.IsSpace(rs[i+1]) {
			i++
		}
		start = i + 1
	}
	if start < len(rs) {
		if part := strings.TrimSpace(string(rs[start:])); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// SplitSentences segments s into sentences and strips links from each one.
func SplitSentences(s string) []string {
	var out []string
	for _, p := range splitTerminated(s) {
		p = NormalizeSpaces(StripURLs(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsCompleteSentence is a rough check that s does not stop mid-thought.
func IsCompleteSentence(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	rs := []rune(s)
	if badEndRunes[rs[len(rs)-1]] {
		return false
	}

	words := strings.Fields(strings.TrimRight(s, ".!?"))
	if len(words) > 0 {
		last := Lower(words[len(words)-1])
		if badEndTokens[last] {
			return false
		}
		if len(words) > 1 && badEndTokens[Lower(words[len(words)-2])+" "+last] {
			return false
		}
	}

	if len(rs) < 20 && !strings.Contains(s, " ") {
		return false
	}
	return unicode.IsUpper(rs[0]) || unicode.IsDigit(rs[0])
}

// EnsurePeriod terminates s with a period unless it already ends a sentence.
func EnsurePeriod(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}

// Jaccard returns the token-set overlap of a and b on folded words.
func Jaccard(a, b string) float64 {
	A, B := tokenSet(a), tokenSet(b)
	if len(A) == 0 || len(B) == 0 {
		return 0
	}
	inter := 0
	for w := range A {
		if _, ok := B[w]; ok {
			inter++
		}
	}
	union := len(A) + len(B) - inter
	return float64(inter) / float64(union)
}

// TooSimilar reports near-duplicate wording between a and b.
func TooSimilar(a, b string) bool {
	return Jaccard(a, b) >= similarityThreshold
}
