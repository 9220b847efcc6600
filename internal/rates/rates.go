package rates

import (
	"context"
	"strings"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/textnorm"
	"github.com/shopspring/decimal"
)

// MaxTextLen is the length guard for the daily summary post.
const MaxTextLen = 270

var troyOunceGrams = decimal.RequireFromString("31.1034768")

// Snapshot holds the rates of one run. Nil means unavailable.
type Snapshot struct {
	USDTRY *decimal.Decimal
	EURTRY *decimal.Decimal
	GBPTRY *decimal.Decimal
	GAU    *decimal.Decimal // gram gold in TRY
	XAUUSD *decimal.Decimal // gold ounce in USD, used to derive GAU
}

// Complete reports whether every published value is present.
func (s Snapshot) Complete() bool {
	return s.USDTRY != nil && s.EURTRY != nil && s.GBPTRY != nil && s.GAU != nil
}

// merge fills the gaps of s from o.
func (s *Snapshot) merge(o Snapshot) {
	fill := func(dst **decimal.Decimal, src *decimal.Decimal) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}
	fill(&s.USDTRY, o.USDTRY)
	fill(&s.EURTRY, o.EURTRY)
	fill(&s.GBPTRY, o.GBPTRY)
	fill(&s.GAU, o.GAU)
	fill(&s.XAUUSD, o.XAUUSD)
}

// deriveGram computes gram gold from the ounce price when only that is known.
func (s *Snapshot) deriveGram() {
	if s.GAU != nil || s.XAUUSD == nil || s.USDTRY == nil {
		return
	}
	g := s.XAUUSD.Div(troyOunceGrams).Mul(*s.USDTRY)
	s.GAU = &g
}

// Provider is one rate source. A provider may return a partial snapshot.
type Provider interface {
	Name() string
	Rates(ctx context.Context) (Snapshot, error)
}

// Chain asks providers in order until the snapshot is complete.
type Chain []Provider

func (c Chain) Name() string { return "chain" }

func (c Chain) Rates(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	for _, p := range c {
		if snap.Complete() {
			break
		}
		got, err := p.Rates(ctx)
		if err != nil {
			logger.Warn("Rate provider failed", "provider", p.Name(), "error", err)
		}
		snap.merge(got)
		snap.deriveGram()
	}
	return snap, ctx.Err()
}

// Format renders v with Turkish grouping, e.g. 1.234,56. Nil renders as —.
func Format(v *decimal.Decimal) string {
	if v == nil {
		return "—"
	}
	s := v.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i+1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// BuildText renders the end-of-day summary.
func BuildText(s Snapshot) string {
	lines := []string{
		"Gün sonu piyasa özeti:",
		"Dolar: " + Format(s.USDTRY) + " • Euro: " + Format(s.EURTRY) + " • Sterlin: " + Format(s.GBPTRY),
		"Gram altın: " + Format(s.GAU),
	}
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if textnorm.RuneLen(text) > MaxTextLen {
		text = strings.TrimRight(string([]rune(text)[:MaxTextLen-3]), " ") + "..."
	}
	return text
}
