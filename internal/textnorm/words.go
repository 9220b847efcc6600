package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func lowerRune(r rune) rune {
	return unicode.TurkishCase.ToLower(r)
}

// Lower lowercases s using Turkish dotted/dotless i rules.
func Lower(s string) string {
	return cases.Lower(language.Turkish).String(s)
}

// Upper is the Turkish counterpart of Lower.
func Upper(s string) string {
	return cases.Upper(language.Turkish).String(s)
}

// Fold lowercases s and strips diacritics so "Başkanı" and "baskani" compare equal.
func Fold(s string) string {
	lower := Lower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		out = lower
	}
	return strings.ReplaceAll(out, "ı", "i")
}

// RuneLen counts characters the way the posting APIs do.
func RuneLen(s string) int {
	return len([]rune(s))
}

// isAllUpper mirrors "has at least one cased letter and none of them lower".
func isAllUpper(w string) bool {
	cased := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func capitalizeFirst(s string) string {
	rs := []rune(s)
	if len(rs) == 0 {
		return s
	}
	rs[0] = unicode.TurkishCase.ToUpper(rs[0])
	return string(rs)
}

// matchAt reports whether phrase p occurs at rune offset i of rs as whole words.
func matchAt(rs []rune, i int, p []rune) bool {
	if len(p) == 0 || i+len(p) > len(rs) {
		return false
	}
	for k, pr := range p {
		if lowerRune(rs[i+k]) != lowerRune(pr) {
			return false
		}
	}
	if i > 0 && isWordRune(rs[i-1]) && isWordRune(p[0]) {
		return false
	}
	if end := i + len(p); end < len(rs) && isWordRune(rs[end]) && isWordRune(p[len(p)-1]) {
		return false
	}
	return true
}

// ContainsPhrase is a case-insensitive whole-word search that understands
// Turkish letters.
func ContainsPhrase(s, phrase string) bool {
	rs, p := []rune(s), []rune(phrase)
	for i := range rs {
		if matchAt(rs, i, p) {
			return true
		}
	}
	return false
}

// ReplacePhrase replaces every whole-word, case-insensitive occurrence of phrase.
func ReplacePhrase(s, phrase, repl string) string {
	rs, p := []rune(s), []rune(phrase)
	var b strings.Builder
	for i := 0; i < len(rs); {
		if matchAt(rs, i, p) {
			b.WriteString(repl)
			i += len(p)
			continue
		}
		b.WriteRune(rs[i])
		i++
	}
	return b.String()
}

// tokenSet splits folded text on whitespace.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Fold(s)) {
		set[w] = struct{}{}
	}
	return set
}
