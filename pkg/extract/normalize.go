package extract

import (
	"strings"
	"unicode"
)

// normalizeText cleans extracted page text while keeping line structure, so
// the chunker can still prefer paragraph and line breaks.
func normalizeText(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\ufeff', r == '\u00ad', r == '\u200b', r == '\u200c', r == '\u200d', r == '\u2060':
			// invisible
		case r == 0, r == '\t', r == '\f', r == '\v', r == ' ':
			b.WriteByte(' ')
		case unicode.IsControl(r):
			// drop
		default:
			b.WriteRune(r)
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
