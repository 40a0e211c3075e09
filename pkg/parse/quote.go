package parse

import (
	"bytes"
	"unicode"
)

// Quote returns a valid marsh expression that evaluates to the given
// string. If s is a valid bareword, it is returned as is; otherwise it is
// quoted, preferring the use of single quotes.
func Quote(s string) string {
	if s == "" {
		return "''"
	}

	// Keep track of whether it is a valid bareword.
	bare := true
	for _, r := range s {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			// Contains invalid UTF-8 sequence or unprintable character;
			// force double quote.
			return quoteDouble(s)
		}
		if !allowedInBareword(r) {
			bare = false
		}
	}

	if bare {
		return s
	}
	return quoteSingle(s)
}

func quoteSingle(s string) string {
	var buf bytes.Buffer
	buf.WriteByte('\'')
	for _, r := range s {
		buf.WriteRune(r)
		if r == '\'' {
			buf.WriteByte('\'')
		}
	}
	buf.WriteByte('\'')
	return buf.String()
}

var doubleEscape = map[rune]rune{
	'"': '"', '\\': '\\', '$': '$', '\n': 'n', '\t': 't', '\r': 'r', '\033': 'e',
}

func quoteDouble(s string) string {
	var buf bytes.Buffer
	buf.WriteByte('"')
	for _, r := range s {
		if e, ok := doubleEscape[r]; ok {
			buf.WriteByte('\\')
			buf.WriteRune(e)
		} else {
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
	return buf.String()
}
