package glob

import (
	"bytes"
	"unicode/utf8"
)

// Segment is either a Literal or a Wild.
type Segment interface {
	isSegment()
}

// Literal is a literal run of text.
type Literal struct {
	Data string
}

// WildType is the type of a Wild segment.
type WildType int

// Values for WildType.
const (
	// Question matches exactly one codepoint.
	Question WildType = iota
	// Star matches any number of codepoints.
	Star
)

// Wild is a wildcard.
type Wild struct {
	Type WildType
}

func (Literal) isSegment() {}
func (Wild) isSegment()    {}

// Pattern is a parsed glob pattern.
type Pattern struct {
	Segments []Segment
}

// Parse parses a pattern. Consecutive stars collapse into one; a backslash
// escapes the rune after it.
func Parse(s string) Pattern {
	segments := []Segment{}
	add := func(seg Segment) {
		segments = append(segments, seg)
	}
	p := &parser{s, 0, 0}

rune:
	for {
		r := p.next()
		switch r {
		case eof:
			break rune
		case '?':
			add(Wild{Question})
		case '*':
			for p.next() == '*' {
			}
			p.backup()
			add(Wild{Star})
		default:
			var literal bytes.Buffer
		literal:
			for {
				switch r {
				case '?', '*', eof:
					break literal
				case '\\':
					r = p.next()
					if r == eof {
						break literal
					}
					literal.WriteRune(r)
				default:
					literal.WriteRune(r)
				}
				r = p.next()
			}
			p.backup()
			add(Literal{literal.String()})
		}
	}
	return Pattern{segments}
}

type parser struct {
	src     string
	pos     int
	overEOF int
}

const eof rune = -1

func (ps *parser) next() rune {
	if ps.pos == len(ps.src) {
		ps.overEOF++
		return eof
	}
	r, s := utf8.DecodeRuneInString(ps.src[ps.pos:])
	ps.pos += s
	return r
}

func (ps *parser) backup() {
	if ps.overEOF > 0 {
		ps.overEOF--
		return
	}
	_, s := utf8.DecodeLastRuneInString(ps.src[:ps.pos])
	ps.pos -= s
}
