package edgar

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// entityReplacer maps the named HTML entities that show up in EDGAR
// filings to their text equivalents. Older filings carry these in raw
// text, outside any attribute the tokenizer would decode.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&mdash;", "—",
	"&ndash;", "–",
	"&ldquo;", "“",
	"&rdquo;", "”",
	"&lsquo;", "‘",
	"&rsquo;", "’",
	"&hellip;", "...",
	"&bull;", "•",
	"&middot;", "·",
	"&trade;", "™",
	"&reg;", "®",
	"&copy;", "©",
	"&sect;", "§",
	"&para;", "¶",
	"&cent;", "¢",
	"&pound;", "£",
	"&euro;", "€",
	"&deg;", "°",
	"&frac12;", "½",
)

var numericEntityRE = regexp.MustCompile(`&#(x?[0-9a-fA-F]+);`)

// NormalizeText cleans the Unicode and entity noise SEC filings carry
// before the parse pipeline sees them: named and numeric HTML entities,
// exotic whitespace, zero-width characters, and CRLF line endings.
func NormalizeText(data []byte) []byte {
	text := entityReplacer.Replace(string(data))
	text = decodeNumericEntities(text)
	text = foldRunes(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return []byte(text)
}

// decodeNumericEntities resolves &#NNN; and &#xNN; references.
// Unparseable or out-of-range references are left as written.
func decodeNumericEntities(text string) string {
	return numericEntityRE.ReplaceAllStringFunc(text, func(m string) string {
		body := m[2 : len(m)-1]
		base := 10
		if body[0] == 'x' || body[0] == 'X' {
			body, base = body[1:], 16
		}
		code, err := strconv.ParseInt(body, base, 32)
		if err != nil || code <= 0 || code > unicode.MaxRune {
			return m
		}
		if code == 160 {
			return " "
		}
		return string(rune(code))
	})
}

// foldRunes maps Unicode space variants to plain spaces and drops
// zero-width and other format characters, in one pass.
func foldRunes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		switch {
		case r == '\u00a0' || r == '\u202f' || r == '\u205f' || r == '\u3000' ||
			(r >= '\u2000' && r <= '\u200a'):
			b.WriteByte(' ')
		case r == '\u200b' || r == '\ufeff' || r == '\u180e' || unicode.Is(unicode.Cf, r):
			// invisible
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var (
	runsOfSpaceRE = regexp.MustCompile(`\s+`)
	pageMarkerRE  = regexp.MustCompile(`Page \d+ of \d+`)
)

// CleanExtractedText collapses whitespace and strips pagination noise
// from text pulled out of an already-parsed document.
func CleanExtractedText(text string) string {
	text = runsOfSpaceRE.ReplaceAllString(text, " ")
	text = pageMarkerRE.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
