package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/autopost/internal/metrics"
	"github.com/deusflow/autopost/internal/ratelimit"
	"github.com/deusflow/autopost/internal/textnorm"
)

// ErrBudgetExhausted is returned once the per-run request budget is spent.
var ErrBudgetExhausted = errors.New("ai request budget exhausted")

// Request is one headline to rewrite.
type Request struct {
	Title     string
	Summary   string
	Limit     int
	StyleHint string
}

// Rewriter proposes a rewrite candidate. Its output competes with the
// rule-based candidates; it never replaces them.
type Rewriter interface {
	Rewrite(ctx context.Context, req Request) (string, error)
}

const maxPromptChars = 3000

// BuildPrompt renders the Turkish instruction shared by all providers.
func BuildPrompt(req Request) string {
	summary := strings.Join(strings.Fields(strings.ReplaceAll(req.Summary, "\r", "")), " ")
	if utf8.RuneCountInString(summary) > maxPromptChars {
		// cut on rune boundary then try to end at sentence
		trimmed := string([]rune(summary)[:maxPromptChars])
		if idx := strings.LastIndex(trimmed, ". "); idx > 600 {
			trimmed = trimmed[:idx+1]
		}
		summary = trimmed
	}
	limit := req.Limit
	if limit <= 0 {
		limit = textnorm.DefaultLimit
	}

	return fmt.Sprintf(`Aşağıdaki haberi tek bir kısa sosyal medya gönderisi olarak yeniden yaz.

BAŞLIK: %s
ÖZET: %s

KURALLAR:
- En fazla %d karakter.
- Tam cümlelerle bitir, yarım cümle bırakma.
- Bağlantı, etiket (hashtag) ve emoji kullanma.
- %s

Yalnızca gönderi metnini yaz, açıklama ekleme.`, req.Title, summary, limit, req.StyleHint)
}

var (
	labelRe       = regexp.MustCompile(`(?i)^\s*(gönderi|tweet|metin|özet|yanıt|cevap|post)\s*:\s*`)
	parenNoteRe   = regexp.MustCompile(`(?i)[\(\[]\s*(not|note)\s*:[^\)\]]*[\)\]]`)
	noteLineRe    = regexp.MustCompile(`(?i)^\s*(not|note)\s*:`)
	hashtagTailRe = regexp.MustCompile(`(\s+#[\p{L}\p{N}_]+)+\s*$`)
	punctSpaceRe  = regexp.MustCompile(`\s+([.,!?;:])`)
)

// Sanitize strips what models add around the answer: a leading label,
// surrounding quotes, disclaimers and trailing hashtags.
func Sanitize(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || noteLineRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, " ")
	out = parenNoteRe.ReplaceAllString(out, "")
	out = labelRe.ReplaceAllString(out, "")
	out = strings.Trim(strings.TrimSpace(textnorm.NormalizeQuotes(out)), `"'`)
	out = hashtagTailRe.ReplaceAllString(out, "")
	return textnorm.NormalizeSpaces(punctSpaceRe.ReplaceAllString(out, "$1"))
}

// Guarded spends one unit of budget per call and counts requests.
type Guarded struct {
	Rewriter Rewriter
	Budget   *ratelimit.Budget
}

func (g *Guarded) Rewrite(ctx context.Context, req Request) (string, error) {
	if g.Budget != nil {
		if !g.Budget.Allow() {
			return "", ErrBudgetExhausted
		}
		if err := g.Budget.Use(ctx); err != nil {
			return "", err
		}
	}
	metrics.Global.IncrementAIRequests()

	out, err := g.Rewriter.Rewrite(ctx, req)
	if err != nil {
		return "", err
	}
	out = Sanitize(out)
	if out == "" {
		return "", errors.New("empty rewrite")
	}
	return out, nil
}
