package textnorm

import (
	"strings"
	"unicode"
)

// DefaultLimit is the length budget for a rewritten news line, leaving room
// for a link on a 280 character post.
const DefaultLimit = 240

// Candidate is one scored rewrite option.
type Candidate struct {
	Text   string
	Score  int
	Origin string
}

// RewriteOptions tunes Rewrite.
type RewriteOptions struct {
	Limit int
	// Extra candidates, such as an AI rewrite, compete with the rule-based ones.
	Extra []string
}

// PickTitleSpeaker recognizes "Speaker Name: quote" headlines.
func PickTitleSpeaker(title string) (speaker, quote string, ok bool) {
	left, right, found := strings.Cut(title, ":")
	if !found {
		return "", "", false
	}
	left = strings.TrimSpace(left)
	right = strings.Trim(strings.TrimSpace(right), `"'`)
	n := len(strings.Fields(left))
	if n < 2 || n > 6 {
		return "", "", false
	}
	if first := []rune(left)[0]; !unicode.IsUpper(first) {
		return "", "", false
	}
	return left, right, true
}

// RemoveRepeatedName drops the last two words of speaker's name from text so
// the follow-up sentence does not repeat who is talking.
func RemoveRepeatedName(text, speaker string) string {
	parts := strings.Fields(speaker)
	if len(parts) < 2 {
		return text
	}
	name := parts[len(parts)-2] + " " + parts[len(parts)-1]
	out := NormalizeSpaces(ReplacePhrase(text, name, ""))
	out = strings.TrimLeft(out, ",;: ")
	if out == "" {
		return text
	}
	return capitalizeFirst(out)
}

// TrimToLimit cuts text to limit characters at a word boundary and marks the
// cut with an ellipsis.
func TrimToLimit(text string, limit int) string {
	rs := []rune(text)
	if limit <= 1 || len(rs) <= limit {
		return text
	}
	cut := string(rs[:limit-1])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	cut = strings.TrimRight(cut, ",;:—–- ")
	return strings.TrimRight(cut+"…", " ")
}

// ScoreCandidate rates a rewrite; higher is better.
func ScoreCandidate(text string) int {
	t := strings.TrimSpace(text)
	score := 0
	if IsCompleteSentence(t) {
		score += 5
	}
	if n := RuneLen(t); n >= 120 && n <= 240 {
		score += 3
	}
	if strings.Count(t, `"`)+strings.Count(t, "'") > 4 {
		score -= 2
	}
	shouting := 0
	for _, w := range strings.Fields(t) {
		if isAllUpper(w) && RuneLen(w) > 2 {
			shouting++
		}
	}
	if shouting > 2 {
		score -= 2
	}
	return score
}

// CleanTitle applies the headline-specific cleanup: HTML, site trailer and
// breaking-news prefix.
func CleanTitle(title string) string {
	t := StripSiteTrailer(CleanHTMLText(title))
	return strings.TrimSpace(StripBreakingPrefix(t))
}

// Candidates builds the rule-based rewrite options for a headline and its
// summary, in preference order.
func Candidates(title, summary string, limit int) []Candidate {
	if limit <= 0 {
		limit = DefaultLimit
	}
	t := CleanTitle(title)
	s := CleanHTMLText(summary)

	var out []Candidate
	add := func(text, origin string) {
		if text == "" {
			return
		}
		out = append(out, Candidate{Text: text, Score: ScoreCandidate(text), Origin: origin})
	}

	if speaker, quote, ok := PickTitleSpeaker(t); ok {
		q := quote
		if qs := SplitSentences(quote); len(qs) > 0 {
			q = qs[0]
		}
		base := TrimToLimit(speaker+": "+EnsurePeriod(q), limit)
		extra := ""
		if s != "" && !strings.HasSuffix(base, "…") && !TooSimilar(base, s) {
			if first := firstComplete(SplitSentences(s)); first != "" {
				try := RemoveRepeatedName(first, speaker)
				if !TooSimilar(base, try) {
					extra = " " + EnsurePeriod(try)
				}
			}
		}
		add(TrimToLimit(strings.TrimSpace(base+extra), limit), "speaker")
	}

	if ts := SplitSentences(t); len(ts) > 0 {
		t1 := TrimToLimit(EnsurePeriod(ts[0]), limit)
		extra := ""
		// a cut title takes no summary after it
		if s != "" && !strings.HasSuffix(t1, "…") && !TooSimilar(t1, s) {
			if first := firstComplete(SplitSentences(s)); first != "" && !TooSimilar(t1, first) {
				extra = " " + EnsurePeriod(first)
			}
		}
		add(TrimToLimit(strings.TrimSpace(t1+extra), limit), "title+summary")
	}

	add(TrimToLimit(EnsurePeriod(t), limit), "title")
	return out
}

// Rewrite returns the best-scoring candidate; earlier candidates win ties.
func Rewrite(title, summary string, opts RewriteOptions) string {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	cands := Candidates(title, summary, limit)
	for _, e := range opts.Extra {
		e = NormalizeSpaces(NormalizeQuotes(e))
		if e == "" {
			continue
		}
		e = TrimToLimit(e, limit)
		cands = append(cands, Candidate{Text: e, Score: ScoreCandidate(e), Origin: "extra"})
	}
	return Best(cands).Text
}

// Best picks the highest score, keeping the first on ties.
func Best(cands []Candidate) Candidate {
	var best Candidate
	for i, c := range cands {
		if i == 0 || c.Score > best.Score {
			best = c
		}
	}
	return best
}

func firstComplete(sentences []string) string {
	for _, s := range sentences {
		if IsCompleteSentence(s) {
			return s
		}
	}
	return ""
}
