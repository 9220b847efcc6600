package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	spaceRe            = regexp.MustCompile(`\s+`)
	spaceBeforePunctRe = regexp.MustCompile(`\s+([,.!?;:])`)
	spaceBeforeDotRe   = regexp.MustCompile(`\s+\.`)
	urlRe              = regexp.MustCompile(`https?://\S+`)
	siteTrailerRe      = regexp.MustCompile(`\s*\|\s*[^|]+$`)
	breakingPrefixRe   = regexp.MustCompile(`^\s*(?:SON|Son|son)\s+(?:DAKİKA|DAKIKA|Dakika|dakika)\s*[:\-–—]?\s*`)
)

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'",
)

// NormalizeSpaces collapses whitespace runs and trims.
func NormalizeSpaces(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// NormalizeQuotes maps typographic quotes to their ASCII forms.
func NormalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// SoftFixes normalizes smart double quotes and removes spaces before a period.
func SoftFixes(s string) string {
	s = strings.NewReplacer("“", `"`, "”", `"`).Replace(s)
	return spaceBeforeDotRe.ReplaceAllString(s, ".")
}

// HTMLToText returns the visible text of an HTML fragment, entities decoded.
// Plain text passes through unchanged apart from entity decoding.
func HTMLToText(s string) string {
	if s == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// CleanHTMLText turns a feed title or summary into one tidy line.
func CleanHTMLText(s string) string {
	s = NormalizeQuotes(HTMLToText(s))
	s = NormalizeSpaces(s)
	return spaceBeforePunctRe.ReplaceAllString(s, "$1")
}

// StripSiteTrailer drops a trailing "| Site Name".
func StripSiteTrailer(title string) string {
	return strings.TrimSpace(siteTrailerRe.ReplaceAllString(title, ""))
}

// StripBreakingPrefix drops a leading "SON DAKİKA:" marker.
func StripBreakingPrefix(title string) string {
	return breakingPrefixRe.ReplaceAllString(title, "")
}

// StripURLs removes http(s) links.
func StripURLs(s string) string {
	return urlRe.ReplaceAllString(s, "")
}
