// Command marsh is an interactive command-language interpreter built
// around immediate expressions.
package main

import (
	"os"

	"github.com/marsh-shell/marsh/pkg/prog"
	"github.com/marsh-shell/marsh/pkg/shell"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args, shell.Program{}))
}
