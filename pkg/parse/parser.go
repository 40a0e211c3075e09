package parse

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/marsh-shell/marsh/pkg/ast"
	"github.com/marsh-shell/marsh/pkg/diag"
)

// parser maintains some mutable states of parsing.
//
// NOTE: The src member is assumed to be valid UTF-8.
type parser struct {
	srcName string
	src     string
	pos     int
	overEOF int
	cfg     Config
	errors  []*diag.Error
}

const eof rune = -1

func (ps *parser) peek() rune {
	if ps.pos == len(ps.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(ps.src[ps.pos:])
	return r
}

func (ps *parser) hasPrefix(prefix string) bool {
	return strings.HasPrefix(ps.src[ps.pos:], prefix)
}

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

func isInlineWhitespace(r rune) bool { return r == ' ' || r == '\t' }

func isFormSep(r rune) bool { return r == '\n' || r == '\r' || r == ';' }

func allowedInBareword(r rune) bool {
	switch r {
	case eof, '(', ')', '{', '}', '$', '\'', '"', '#', ';', '=', '|', '&':
		return false
	}
	return !unicode.IsSpace(r)
}

func allowedInVariableName(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// skipInline skips inline whitespace and comments.
func (ps *parser) skipInline() {
	for {
		r := ps.peek()
		if isInlineWhitespace(r) {
			ps.next()
		} else if r == '#' {
			for !isFormSep(ps.peek()) && ps.peek() != eof {
				ps.next()
			}
		} else {
			return
		}
	}
}

// skipSeps skips inline whitespace, comments and form separators.
func (ps *parser) skipSeps() {
	for {
		ps.skipInline()
		if isFormSep(ps.peek()) {
			ps.next()
		} else {
			return
		}
	}
}

func (ps *parser) parseChunk() []ast.Node {
	var forms []ast.Node
	for {
		ps.skipSeps()
		if ps.peek() == eof || len(ps.errors) > 0 {
			return forms
		}
		if n := ps.parseForm(); n != nil {
			forms = append(forms, n)
		}
	}
}

// parseForm parses an assignment or a run of expressions up to the next
// form separator.
func (ps *parser) parseForm() ast.Node {
	if n := ps.parseAssignment(); n != nil {
		return n
	}
	return ps.parseExprSeq()
}

// parseAssignment tries to parse "name = expr"; it returns nil (and
// consumes nothing) if the form is not an assignment.
func (ps *parser) parseAssignment() ast.Node {
	begin := ps.pos
	if !allowedInBareword(ps.peek()) {
		return nil
	}
	name := ps.parseBarewordText()
	nameEnd := ps.pos
	ps.skipInline()
	if ps.peek() != '=' {
		ps.pos = begin
		ps.overEOF = 0
		return nil
	}
	ps.next()
	ps.skipInline()
	if !startsExpr(ps.peek()) {
		ps.error("should be expression after '='")
		return nil
	}
	rhs := ps.parseExprSeq()
	return &ast.Assignment{
		Ranging: diag.Ranging{From: begin, To: ps.pos},
		Name:    ast.NameWithPosition{Name: name, Ranging: diag.Ranging{From: begin, To: nameEnd}},
		RHS:     rhs,
	}
}

// parseExprSeq parses one or more expressions on the same line. A single
// expression is returned as is; several are wrapped in a
// list-concatenation.
func (ps *parser) parseExprSeq() ast.Node {
	begin := ps.pos
	var exprs []ast.Node
	for {
		ps.skipInline()
		if !startsExpr(ps.peek()) {
			break
		}
		exprs = append(exprs, ps.parseExpr())
		if len(ps.errors) > 0 {
			break
		}
	}
	switch len(exprs) {
	case 0:
		ps.error("should be expression")
		return nil
	case 1:
		return exprs[0]
	}
	return &ast.ListConcatenate{
		Ranging: diag.Ranging{From: begin, To: ps.pos},
		Nodes:   exprs,
	}
}

func startsExpr(r rune) bool {
	return r == '(' || r == '$' || r == '\'' || r == '"' || allowedInBareword(r)
}

func (ps *parser) parseExpr() ast.Node {
	switch r := ps.peek(); {
	case r == '(':
		return ps.parseList()
	case r == '$':
		if ps.hasPrefix("${") {
			return ps.parseImmediate()
		}
		return ps.parseVariable()
	case r == '\'':
		return ps.parseSingleQuoted()
	case r == '"':
		return ps.parseDoubleQuoted()
	default:
		return ps.parseBareword()
	}
}

func (ps *parser) parseList() ast.Node {
	begin := ps.pos
	ps.next() // (
	var nodes []ast.Node
	for {
		ps.skipSeps()
		r := ps.peek()
		if r == ')' {
			ps.next()
			return &ast.ListConcatenate{
				Ranging: diag.Ranging{From: begin, To: ps.pos},
				Nodes:   nodes,
			}
		}
		if r == eof {
			ps.error("should be ')'")
			return &ast.ListConcatenate{
				Ranging: diag.Ranging{From: begin, To: ps.pos},
				Nodes:   nodes,
			}
		}
		if !startsExpr(r) {
			ps.error("unexpected rune %q in list", r)
			return &ast.ListConcatenate{
				Ranging: diag.Ranging{From: begin, To: ps.pos},
				Nodes:   nodes,
			}
		}
		nodes = append(nodes, ps.parseExpr())
		if len(ps.errors) > 0 {
			return &ast.ListConcatenate{
				Ranging: diag.Ranging{From: begin, To: ps.pos},
				Nodes:   nodes,
			}
		}
	}
}

func (ps *parser) parseVariable() ast.Node {
	begin := ps.pos
	ps.next() // $
	nameBegin := ps.pos
	for allowedInVariableName(ps.peek()) {
		ps.next()
	}
	if ps.pos == nameBegin {
		ps.error("should be variable name")
	}
	return &ast.SimpleVariable{
		Ranging: diag.Ranging{From: begin, To: ps.pos},
		Name:    ps.src[nameBegin:ps.pos],
	}
}

func (ps *parser) parseImmediate() ast.Node {
	begin := ps.pos
	ps.next() // $
	ps.next() // {
	ps.skipInline()
	nameBegin := ps.pos
	for allowedInBareword(ps.peek()) {
		ps.next()
	}
	name := ps.src[nameBegin:ps.pos]
	nameRange := diag.Ranging{From: nameBegin, To: ps.pos}
	if name == "" {
		ps.error("should be immediate function name")
	} else if ps.cfg.IsImmediateFunction != nil && !ps.cfg.IsImmediateFunction(name) {
		ps.errorp(nameRange, "unknown immediate function %s", name)
	}

	var args []ast.Node
	for {
		ps.skipSeps()
		r := ps.peek()
		if r == '}' {
			ps.next()
			break
		}
		if r == eof {
			ps.error("should be '}'")
			break
		}
		if !startsExpr(r) {
			ps.error("unexpected rune %q in immediate expression", r)
			break
		}
		args = append(args, ps.parseExpr())
		if len(ps.errors) > 0 {
			break
		}
	}
	return &ast.ImmediateExpression{
		Ranging:  diag.Ranging{From: begin, To: ps.pos},
		Function: ast.NameWithPosition{Name: name, Ranging: nameRange},
		Args:     args,
	}
}

func (ps *parser) parseSingleQuoted() ast.Node {
	begin := ps.pos
	ps.next() // '
	var b strings.Builder
	for {
		r := ps.next()
		switch r {
		case eof:
			ps.error("string not terminated")
			return &ast.StringLiteral{
				Ranging: diag.Ranging{From: begin, To: ps.pos},
				Text:    b.String(),
			}
		case '\'':
			if ps.peek() == '\'' {
				// Two consecutive quotes: one literal quote.
				ps.next()
				b.WriteRune('\'')
				continue
			}
			return &ast.StringLiteral{
				Ranging: diag.Ranging{From: begin, To: ps.pos},
				Text:    b.String(),
			}
		default:
			b.WriteRune(r)
		}
	}
}

func (ps *parser) parseDoubleQuoted() ast.Node {
	begin := ps.pos
	ps.next() // "
	var b strings.Builder
	for {
		r := ps.next()
		switch r {
		case eof:
			ps.error("string not terminated")
			return &ast.StringLiteral{
				Ranging: diag.Ranging{From: begin, To: ps.pos},
				Text:    b.String(),
			}
		case '"':
			return &ast.StringLiteral{
				Ranging: diag.Ranging{From: begin, To: ps.pos},
				Text:    b.String(),
			}
		case '\\':
			switch e := ps.next(); e {
			case '\\', '"', '$':
				b.WriteRune(e)
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case 'e':
				b.WriteRune('\033')
			case eof:
				ps.error("string not terminated")
				return &ast.StringLiteral{
					Ranging: diag.Ranging{From: begin, To: ps.pos},
					Text:    b.String(),
				}
			default:
				ps.backup()
				ps.error("invalid escape sequence")
				ps.next()
			}
		default:
			b.WriteRune(r)
		}
	}
}

func (ps *parser) parseBareword() ast.Node {
	begin := ps.pos
	text := ps.parseBarewordText()
	return &ast.Bareword{
		Ranging: diag.Ranging{From: begin, To: ps.pos},
		Text:    text,
	}
}

func (ps *parser) parseBarewordText() string {
	begin := ps.pos
	for allowedInBareword(ps.peek()) {
		ps.next()
	}
	return ps.src[begin:ps.pos]
}
