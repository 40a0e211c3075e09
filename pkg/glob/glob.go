// Package glob implements glob-pattern matching over plain strings. Unlike
// filesystem globbing, a pattern is matched against a candidate string as a
// whole; there is no path-separator special casing.
package glob

import "unicode/utf8"

// Match reports whether the pattern matches the whole of name.
func Match(pattern, name string) bool {
	return Parse(pattern).Match(name)
}

// Match reports whether the pattern matches the whole of name.
func (p Pattern) Match(name string) bool {
	segs := p.Segments
	if len(segs) == 0 {
		return name == ""
	}

segs:
	for len(segs) > 0 {
		// Find a chunk. A chunk is an optional Star followed by a run of
		// fixed-length segments (Literal and Question).
		var i int
		for i = 1; i < len(segs); i++ {
			if isWild(segs[i], Star) {
				break
			}
		}

		chunk := segs[:i]
		startsWithStar := isWild(chunk[0], Star)
		if startsWithStar {
			chunk = chunk[1:]
		}
		segs = segs[i:]

		// Match at the current position. If this is the last chunk, the
		// match must exhaust name.
		ok, rest := matchFixedLength(chunk, name)
		if ok && (rest == "" || len(segs) > 0) {
			name = rest
			continue
		}

		if startsWithStar {
			// Let the star eat one more codepoint at a time and retry the
			// fixed-length chunk after it.
			for i, r := range name {
				j := i + len(string(r))
				ok, rest := matchFixedLength(chunk, name[j:])
				if ok && (rest == "" || len(segs) > 0) {
					name = rest
					continue segs
				}
			}
		}
		return false
	}
	return name == ""
}

func isWild(seg Segment, t WildType) bool {
	w, ok := seg.(Wild)
	return ok && w.Type == t
}

// matchFixedLength matches a run of fixed-length segments (Literal and
// Question) against a prefix of name. It returns whether the match is
// successful and, if it is, the remaining part of name.
func matchFixedLength(segs []Segment, name string) (bool, string) {
	for _, seg := range segs {
		if name == "" {
			return false, ""
		}
		switch seg := seg.(type) {
		case Literal:
			n := len(seg.Data)
			if len(name) < n || name[:n] != seg.Data {
				return false, ""
			}
			name = name[n:]
		case Wild:
			if seg.Type != Question {
				panic("matchFixedLength given non-question wild segment")
			}
			_, n := utf8.DecodeRuneInString(name)
			name = name[n:]
		default:
			panic("matchFixedLength given non-literal non-wild segment")
		}
	}
	return true, name
}
