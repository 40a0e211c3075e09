// Package shell is the entry point for the terminal interface of marsh.
package shell

import (
	"os"

	"github.com/marsh-shell/marsh/pkg/eval"
	"github.com/marsh-shell/marsh/pkg/logutil"
	"github.com/marsh-shell/marsh/pkg/prog"
	"github.com/marsh-shell/marsh/pkg/sys"
)

var logger = logutil.GetLogger("[shell] ")

// Version is the version of marsh, set at build time.
var Version = "unknown"

// Program is the shell subprogram.
type Program struct{}

// Run runs the shell: a -c one-liner, a script file, or an interactive
// session, in that order of preference.
func (p Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if f.Version {
		fds[1].WriteString(Version + "\n")
		return nil
	}

	cfg, err := loadConfig(f)
	if err != nil {
		// A broken rc file should not make the shell unusable.
		logger.Println("rc file:", err)
		fds[2].WriteString("warning: " + err.Error() + "\n")
	}

	ev := eval.NewEvaler()
	ev.Options.KeepEmptySegments = cfg.KeepEmptySegments

	if f.CodeInArg {
		if len(args) == 0 {
			return prog.BadUsage("code required when -c is given")
		}
		return Script(fds, ev, "[code arg]", args[0])
	}
	if len(args) > 0 {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return Script(fds, ev, args[0], string(code))
	}

	interactive := sys.IsATTY(fds[0])
	ev.SetInteractive(interactive)
	return Interact(fds, ev, &cfg, f.DB)
}

func loadConfig(f *prog.Flags) (Config, error) {
	if f.NoRc {
		return defaultConfig(), nil
	}
	path := f.RC
	if path == "" {
		path = rcPath()
	}
	return LoadConfig(path)
}
