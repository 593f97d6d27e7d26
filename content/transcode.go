package content

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenMarker
)

type token struct {
	kind   tokenKind
	marker markerKind
	text   string
}

// tokenize splits s into marker tokens and the text between them.
func tokenize(s string) []token {
	var tokens []token
	start := 0
	for i := 0; i < len(s); {
		if s[i] != '<' {
			i++
			continue
		}
		m, ok := matchMarker(s[i:])
		if !ok {
			i++
			continue
		}
		if i > start {
			tokens = append(tokens, token{kind: tokenText, text: s[start:i]})
		}
		tokens = append(tokens, token{kind: tokenMarker, marker: m.kind, text: m.text})
		i += len(m.text)
		start = i
	}
	if start < len(s) {
		tokens = append(tokens, token{kind: tokenText, text: s[start:]})
	}
	return tokens
}

func matchMarker(s string) (marker, bool) {
	for _, m := range vocabulary {
		if strings.HasPrefix(s, m.text) {
			return m, true
		}
	}
	return marker{}, false
}

// ToPublishable converts editor output into the body sent to WordPress using
// Word Balloon blocks.
func ToPublishable(edited string) string {
	return Convert(edited, StyleBalloon)
}

// Convert drops newlines, strips whitespace runs that sit against a tag
// boundary and then substitutes markers according to style. Replacements start
// with '<' and end with '>' like the markers they replace. Convert is
// idempotent on marker-free input.
func Convert(edited string, style Style) string {
	flat := strings.NewReplacer("\r\n", "", "\n", "", "\r", "").Replace(edited)
	flat = collapseTagWhitespace(flat)

	var b strings.Builder
	b.Grow(len(flat))
	for _, t := range tokenize(flat) {
		switch t.kind {
		case tokenMarker:
			b.WriteString(style.replacement(t.marker))
		case tokenText:
			b.WriteString(t.text)
		}
	}
	return b.String()
}

// collapseTagWhitespace removes every maximal run of two or more whitespace
// characters that is preceded by '>' or followed by '<' (or touches either end
// of the document). Runs inside text, e.g. "a  b", are kept.
func collapseTagWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			b.WriteString(s[i : i+size])
			i += size
			continue
		}
		j, runes := i, 0
		for j < len(s) {
			r2, sz := utf8.DecodeRuneInString(s[j:])
			if !unicode.IsSpace(r2) {
				break
			}
			j += sz
			runes++
		}
		touchesTag := i == 0 || s[i-1] == '>' || j == len(s) || s[j] == '<'
		if runes < 2 || !touchesTag {
			b.WriteString(s[i:j])
		}
		i = j
	}
	return b.String()
}
