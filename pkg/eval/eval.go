// Package eval handles evaluation of parsed marsh code and provides runtime
// facilities, most importantly the immediate-function dispatcher.
package eval

import (
	"errors"
	"fmt"

	"github.com/marsh-shell/marsh/pkg/ast"
	"github.com/marsh-shell/marsh/pkg/diag"
	"github.com/marsh-shell/marsh/pkg/logutil"
	"github.com/marsh-shell/marsh/pkg/parse"
)

var logger = logutil.GetLogger("[eval] ")

// ErrorType is the diagnostic type of all errors raised during evaluation.
const ErrorType = "evaluated syntax error"

// Options are toggles that change evaluation behavior. They are normally
// populated from the rc file.
type Options struct {
	// KeepEmptySegments makes ${split} keep empty segments between
	// consecutive delimiters instead of dropping them.
	KeepEmptySegments bool
}

// Evaler provides methods for evaluating code, and maintains the variable
// frames and the diagnostic sink that persist between evaluations.
// Evaluation is synchronous and single-threaded; an Evaler must not be used
// concurrently.
type Evaler struct {
	frames      []*frame
	diags       []*diag.Error
	src         parse.Source
	interactive bool

	Options Options

	// HistoryExpander, if non-nil, rewrites a line of source before parsing
	// when history expansion is requested. ${reexpand} never requests it.
	HistoryExpander func(line string) (string, error)
}

// NewEvaler creates a new Evaler with a single global variable frame.
func NewEvaler() *Evaler {
	return &Evaler{frames: []*frame{newFrame("global")}}
}

// SetInteractive sets whether the Evaler is serving an interactive session.
// The flag is preserved across re-entrant parses (${reexpand}).
func (ev *Evaler) SetInteractive(interactive bool) {
	ev.interactive = interactive
}

// Eval parses and evaluates a piece of source code, returning the values
// its forms produced. Evaluation stops at the first failed form; values
// produced before the failure are still returned.
func (ev *Evaler) Eval(src parse.Source) ([]ast.Value, error) {
	ev.src = src
	forms, err := parse.Parse(src, parse.Config{
		Interactive:         ev.interactive,
		IsImmediateFunction: HasImmediateFunction,
	})
	if err != nil {
		return nil, err
	}
	var values []ast.Value
	for _, form := range forms {
		v, err := form.Run(ev)
		if err != nil {
			return values, err
		}
		if v != nil {
			values = append(values, v)
		}
	}
	return values, nil
}

// reexpandSourceName names re-entrant parses in diagnostics.
const reexpandSourceName = "[reexpand]"

// Parse is the re-entry point used by ${reexpand}: it parses source text
// into a brand-new node without evaluating it. The interactive flag
// controls incomplete-input reporting; runHistoryExpansion runs the
// installed history expander over the text first.
func (ev *Evaler) Parse(code string, interactive, runHistoryExpansion bool) (ast.Node, error) {
	if runHistoryExpansion && ev.HistoryExpander != nil {
		expanded, err := ev.HistoryExpander(code)
		if err != nil {
			return nil, err
		}
		code = expanded
	}
	return parse.ParseExpr(parse.Source{Name: reexpandSourceName, Code: code}, parse.Config{
		Interactive:         interactive,
		IsImmediateFunction: HasImmediateFunction,
	})
}

// raiseError records a diagnostic in the sink, anchored at the given range
// of the current source, and returns it. The returned error satisfies
// IsDiagnosed; any other error reaching a caller is an infrastructure
// failure that was not raised here.
func (ev *Evaler) raiseError(r diag.Ranger, format string, args ...any) error {
	err := &diag.Error{
		Type:    ErrorType,
		Message: fmt.Sprintf(format, args...),
		Context: *diag.NewContext(ev.src.Name, ev.src.Code, r),
	}
	ev.diags = append(ev.diags, err)
	return err
}

// IsDiagnosed reports whether the error is a diagnosed script error that
// has already been recorded in a sink, as opposed to a propagated
// infrastructure failure.
func IsDiagnosed(err error) bool {
	var de *diag.Error
	return errors.As(err, &de)
}

// Diagnostics returns the diagnostics recorded so far, oldest first.
func (ev *Evaler) Diagnostics() []*diag.Error {
	return ev.diags
}

// ClearDiagnostics empties the diagnostic sink.
func (ev *Evaler) ClearDiagnostics() {
	ev.diags = nil
}
