package utils

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	titleMarker    = "**"
	titleSeparator = "\n\n"
)

// EncodePostCell packs a title and body into the single "post" cell:
// "**Title**\n\nText" when a title is present, the bare text otherwise.
func EncodePostCell(title, text string) string {
	if title == "" {
		return text
	}
	return titleMarker + title + titleMarker + titleSeparator + text
}

// DecodePostCell reverses EncodePostCell. Cells that do not have the
// "**Title**" shape are returned whole as text with an empty title.
func DecodePostCell(cell string) (title, text string) {
	if !strings.HasPrefix(cell, titleMarker) {
		return "", cell
	}

	end := strings.Index(cell[len(titleMarker):], titleMarker)
	if end == -1 {
		return "", cell
	}
	end += len(titleMarker)

	title = strings.TrimSpace(cell[len(titleMarker):end])
	text = strings.TrimPrefix(cell[end+len(titleMarker):], titleSeparator)
	return title, text
}

var (
	singleEmphasis = regexp.MustCompile(`\*([^\s*](?:[^*\n]*[^\s*])?)\*`)
	tripleQuotes   = regexp.MustCompile(`"""|'''`)
)

// SanitizeText makes free text safe to store next to the title markers:
// straight quotes become curly ones, *emphasis* becomes _emphasis_ and
// stray single asterisks are dropped. Double asterisks are kept as is.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = tripleQuotes.ReplaceAllStringFunc(s, func(m string) string { return m[:1] })
	s = curlyQuotes(s)

	parts := strings.Split(s, titleMarker)
	for i, part := range parts {
		part = singleEmphasis.ReplaceAllString(part, "_${1}_")
		parts[i] = strings.ReplaceAll(part, "*", "")
	}
	return strings.Join(parts, titleMarker)
}

// SanitizeTitle is SanitizeText for titles. The title marker is removed
// so the encoded cell decodes back to the same title.
func SanitizeTitle(s string) string {
	return strings.TrimSpace(SanitizeText(strings.ReplaceAll(s, titleMarker, "")))
}

func curlyQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prev := ' '
	for _, r := range s {
		switch r {
		case '"':
			if opensQuote(prev) {
				b.WriteRune('“')
			} else {
				b.WriteRune('”')
			}
		case '\'':
			if opensQuote(prev) {
				b.WriteRune('‘')
			} else {
				b.WriteRune('’')
			}
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}

func opensQuote(prev rune) bool {
	return unicode.IsSpace(prev) || strings.ContainsRune("([{«—-", prev)
}
