// Package parse implements the marsh parser.
//
// The surface syntax is small: barewords, single- and double-quoted
// strings, $name variable references, (a b c) list concatenations,
// ${fn arg ...} immediate expressions, and name = expr assignments.
// A source is a sequence of forms separated by newlines or semicolons;
// each form is either an assignment or a run of expressions.
package parse

import (
	"fmt"

	"github.com/marsh-shell/marsh/pkg/ast"
	"github.com/marsh-shell/marsh/pkg/diag"
)

// Source describes a piece of source code.
type Source struct {
	Name string
	Code string
}

// Config keeps configuration options when parsing.
type Config struct {
	// Interactive makes constructs left unterminated at the end of the
	// source report incomplete-input errors, so that a REPL can prompt for
	// continuation lines instead of giving up.
	Interactive bool
	// IsImmediateFunction, if non-nil, is consulted for every ${...} head
	// so that unknown immediate functions are rejected at parse time.
	IsImmediateFunction func(name string) bool
}

// Parse parses the given source into a sequence of forms. The returned
// error, if not nil, has type *diag.Error with type "parse error".
func Parse(src Source, cfg Config) ([]ast.Node, error) {
	ps := &parser{srcName: src.Name, src: src.Code, cfg: cfg}
	forms := ps.parseChunk()
	if len(ps.errors) > 0 {
		return forms, ps.errors[0]
	}
	return forms, nil
}

// ParseExpr parses the given source as a single expression, wrapping
// multiple top-level expressions in a list-concatenation.
func ParseExpr(src Source, cfg Config) (ast.Node, error) {
	forms, err := Parse(src, cfg)
	if err != nil {
		return nil, err
	}
	switch len(forms) {
	case 0:
		return &ast.ListConcatenate{Ranging: diag.PointRanging(0)}, nil
	case 1:
		return forms[0], nil
	}
	return &ast.ListConcatenate{
		Ranging: diag.MixedRanging(forms[0], forms[len(forms)-1]),
		Nodes:   forms,
	}, nil
}

// errorType is the diagnostic type of all parse errors.
const errorType = "parse error"

// incompleteSuffix marks incomplete-input errors; see IsIncomplete.
const incompleteSuffix = " (incomplete input)"

// IsIncomplete reports whether the error is a parse error caused by the
// source ending in the middle of a construct, under Config.Interactive.
func IsIncomplete(err error) bool {
	de, ok := err.(*diag.Error)
	if !ok || de.Type != errorType {
		return false
	}
	return len(de.Message) > len(incompleteSuffix) &&
		de.Message[len(de.Message)-len(incompleteSuffix):] == incompleteSuffix
}

func (ps *parser) errorp(r diag.Ranger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if ps.cfg.Interactive && ps.pos == len(ps.src) {
		msg += incompleteSuffix
	}
	ps.errors = append(ps.errors, &diag.Error{
		Type:    errorType,
		Message: msg,
		Context: *diag.NewContext(ps.srcName, ps.src, r),
	})
}

func (ps *parser) error(format string, args ...any) {
	end := ps.pos
	if end < len(ps.src) {
		end++
	}
	ps.errorp(diag.Ranging{From: ps.pos, To: end}, format, args...)
}
