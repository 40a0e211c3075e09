package shell

import (
	"os"

	"github.com/marsh-shell/marsh/pkg/diag"
	"github.com/marsh-shell/marsh/pkg/eval"
	"github.com/marsh-shell/marsh/pkg/parse"
	"github.com/marsh-shell/marsh/pkg/prog"
)

// Script evaluates a whole piece of code non-interactively, printing the
// values it produces. A diagnosed error aborts the script with exit
// status 2.
func Script(fds [3]*os.File, ev *eval.Evaler, name, code string) error {
	values, err := ev.Eval(parse.Source{Name: name, Code: code})
	printValues(fds[1], values)
	if err != nil {
		diag.ShowError(fds[2], err)
		return prog.Exit(2)
	}
	return nil
}
