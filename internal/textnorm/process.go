package textnorm

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var safeAcronyms = map[string]bool{
	"ABD": true, "BM": true, "AB": true, "NATO": true, "TBMM": true, "TÜİK": true,
	"YÖK": true, "IMF": true, "UN": true, "UNESCO": true, "G20": true, "OECD": true,
	"ECB": true, "FED": true, "WHO": true, "UNHCR": true, "UEFA": true, "FIFA": true,
	"ASEAN": true, "G7": true, "G8": true, "G77": true, "OPEC": true, "BRICS": true,
}

var sayVerbs = []string{
	"dedi", "açıkladı", "belirtti", "ifade etti", "konuştu",
	"söyledi", "ekledi", "vurguladı", "yanıtladı", "aktardı",
}

var (
	acronymSuffixRe = regexp.MustCompile(`([A-ZÇĞİÖŞÜ0-9]{2,})\s+(den|dan|de|da|ye|ya|nin|nın|nun|nün|ne|na|yla|yle|yi|yı|yu|yü|e|a)`)
	entityRe        = regexp.MustCompile(`[A-ZÇĞİÖŞÜ][a-zçğıöşü]+|[A-ZÇĞİÖŞÜ]{2,}`)
)

// Summary is one topic-sized excerpt of a longer text.
type Summary struct {
	Text  string
	Topic string
}

// Result is the outcome of ProcessItem.
type Result struct {
	Summaries []Summary
	Cleaned   string
}

// FixAcronymApostrophes joins a known acronym and a detached Turkish case
// suffix: "ABD den" becomes "ABD'den". Unknown acronyms are left alone.
func FixAcronymApostrophes(s string) string {
	matches := acronymSuffixRe.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		ac, suffix := s[m[2]:m[3]], s[m[4]:m[5]]
		if !safeAcronyms[ac] || !boundaryBefore(s, start) || !boundaryAfter(s, end) {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(ac + "'" + suffix)
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := []rune(s[:i])
	return !isWordRune(r[len(r)-1])
}

func boundaryAfter(s string, i int) bool {
	for _, r := range s[i:] {
		return !isWordRune(r)
	}
	return true
}

// CompleteMissingTitles adds an institution to "Başkanı <Name>" when that
// institution's acronym already appears earlier in the same sentence.
func CompleteMissingTitles(s string) string {
	sents := splitTerminated(s)
	for i, sent := range sents {
		sents[i] = completeTitle(sent)
	}
	return strings.Join(sents, " ")
}

func completeTitle(sent string) string {
	before, after, found := strings.Cut(sent, "Başkanı ")
	if !found {
		return sent
	}
	acronym, pos := "", -1
	for ac := range safeAcronyms {
		if i := lastWordIndex(before, ac); i > pos {
			acronym, pos = ac, i
		}
	}
	if acronym == "" {
		return sent
	}
	if regexp.MustCompile(regexp.QuoteMeta(acronym) + `\s+Başkanı`).MatchString(sent) {
		return sent
	}
	return before + acronym + " Başkanı " + after
}

// lastWordIndex returns the byte offset of the last whole-word occurrence of w
// in s, or -1.
func lastWordIndex(s, w string) int {
	for i := len(s); i >= 0; {
		j := strings.LastIndex(s[:i], w)
		if j < 0 {
			return -1
		}
		if boundaryBefore(s, j) && boundaryAfter(s, j+len(w)) {
			return j
		}
		i = j
	}
	return -1
}

// InsertMissingQuotes wraps reported speech in quotes: `Biz hazırız dedi.`
// becomes `"Biz hazırız." dedi.` Sentences that already quote, or whose
// speech part is longer than 220 characters, are not touched.
func InsertMissingQuotes(s string) string {
	sents := splitTerminated(s)
	for i, sent := range sents {
		sents[i] = quoteSentence(sent)
	}
	return strings.Join(sents, " ")
}

func quoteSentence(sent string) string {
	end := sayVerbOffset(sent)
	if end < 0 {
		return sent
	}
	said := strings.TrimSpace(sent[:end])
	if said == "" || strings.Contains(said, `"`) || RuneLen(said) > 220 {
		return sent
	}
	return `"` + strings.TrimRight(said, " .!?,;:") + `."` + sent[end:]
}

// sayVerbOffset returns the offset of the whitespace that precedes the first
// speech verb followed by a space or punctuation, or -1.
func sayVerbOffset(sent string) int {
	for i, r := range sent {
		if i == 0 || !unicode.IsSpace(r) {
			continue
		}
		j := i
		for j < len(sent) && unicode.IsSpace(rune(sent[j])) {
			j++
		}
		rest := sent[j:]
		for _, v := range sayVerbs {
			if len(rest) <= len(v) || !strings.EqualFold(rest[:len(v)], v) {
				continue
			}
			next := []rune(rest[len(v):])[0]
			if unicode.IsSpace(next) || strings.ContainsRune(".,;:!?", next) {
				return i
			}
		}
	}
	return -1
}

func containsSayVerb(s string) bool {
	for _, v := range sayVerbs {
		if ContainsPhrase(s, v) {
			return true
		}
	}
	return false
}

func sentenceEntities(s string) []string {
	set := make(map[string]struct{})
	for _, tok := range entityRe.FindAllString(s, -1) {
		set[tok] = struct{}{}
		if up := Upper(tok); safeAcronyms[up] {
			set[up] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SplitIntoTopics groups sentences that mention the same proper names and
// returns the largest maxGroups groups.
func SplitIntoTopics(s string, maxGroups int) []string {
	sents := splitTerminated(s)
	if len(sents) == 0 {
		return nil
	}

	var keys []string
	buckets := make(map[string][]string)
	for _, sent := range sents {
		key := "_genel_"
		if ents := sentenceEntities(sent); len(ents) > 0 {
			key = strings.Join(ents, ",")
		}
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], sent)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return len(buckets[keys[i]]) > len(buckets[keys[j]])
	})
	if maxGroups > 0 && len(keys) > maxGroups {
		keys = keys[:maxGroups]
	}

	chunks := make([]string, len(keys))
	for i, k := range keys {
		chunks[i] = strings.Join(buckets[k], " ")
	}

	for _, sent := range sents {
		if !containsSayVerb(sent) {
			continue
		}
		if !strings.Contains(chunks[0], sent) {
			chunks[0] = strings.TrimRight(sent, " .") + ". " + chunks[0]
		}
		break
	}

	for i := range chunks {
		chunks[i] = NormalizeSpaces(chunks[i])
	}
	return chunks
}

// CompressSentences keeps leading sentences while both caps allow.
func CompressSentences(s string, maxSent, maxChars int) string {
	var out []string
	total := 0
	for _, sent := range splitTerminated(s) {
		if len(out) >= maxSent {
			break
		}
		n := RuneLen(sent)
		if total+n > maxChars {
			break
		}
		out = append(out, sent)
		total += n
	}
	return strings.Join(out, " ")
}

// ProcessItem cleans a raw feed text conservatively and returns one to three
// short summaries. Nothing is invented: only known acronyms, in-sentence
// titles and short reported speech are touched.
func ProcessItem(raw string) Result {
	text := NormalizeSpaces(raw)
	text = SoftFixes(text)
	text = FixAcronymApostrophes(text)
	text = CompleteMissingTitles(text)
	text = InsertMissingQuotes(text)

	var summaries []Summary
	for _, chunk := range SplitIntoTopics(text, 3) {
		if c := CompressSentences(chunk, 2, 220); c != "" {
			summaries = append(summaries, Summary{Text: c})
		}
	}
	return Result{Summaries: summaries, Cleaned: text}
}
