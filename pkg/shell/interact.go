package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marsh-shell/marsh/pkg/ast"
	"github.com/marsh-shell/marsh/pkg/diag"
	"github.com/marsh-shell/marsh/pkg/eval"
	"github.com/marsh-shell/marsh/pkg/parse"
	"github.com/marsh-shell/marsh/pkg/store"
)

const valuePrefix = "▶ "

// Interact runs an interactive shell session: read a line (with
// continuation lines while the input is incomplete), expand history,
// record the line, evaluate it, and print the produced values.
func Interact(fds [3]*os.File, ev *eval.Evaler, cfg *Config, dbOverride string) error {
	st := openStore(fds[2], cfg, dbOverride)
	if st != nil {
		defer st.Close()
		ev.HistoryExpander = func(line string) (string, error) {
			return expandHistory(st, line)
		}
	}

	in := bufio.NewReader(fds[0])
	cmdNum := 0
	for {
		cmdNum++
		line, err := readCode(in, fds[1], cfg.Prompt, ev)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		if st != nil {
			expanded, err := expandHistory(st, line)
			if err != nil {
				fmt.Fprintln(fds[2], err)
				continue
			}
			if expanded != line {
				// Show the expansion the way the line will run.
				fmt.Fprintln(fds[1], expanded)
				line = expanded
			}
			if _, err := st.AddCmd(line); err != nil {
				logger.Println("failed to record history:", err)
			}
		}

		src := parse.Source{Name: fmt.Sprintf("[tty %d]", cmdNum), Code: line}
		values, err := ev.Eval(src)
		printValues(fds[1], values)
		if err != nil {
			diag.ShowError(fds[2], err)
		}
	}
}

// readCode reads one logical line, prompting for continuation lines while
// the parse reports incomplete input.
func readCode(in *bufio.Reader, out *os.File, prompt string, ev *eval.Evaler) (string, error) {
	fmt.Fprint(out, prompt)
	code := ""
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			if err == io.EOF && code+line != "" {
				return code + line, nil
			}
			return "", err
		}
		code += line
		if _, perr := ev.Parse(code, true, false); perr == nil || !parse.IsIncomplete(perr) {
			// Strip the final newline; positions in diagnostics stay
			// aligned since the newline is last.
			return code[:len(code)-1], nil
		}
		fmt.Fprint(out, "... ")
	}
}

func printValues(w io.Writer, values []ast.Value) {
	for _, v := range values {
		fmt.Fprintln(w, valuePrefix+parse.Format(&ast.Synthetic{Value: v}))
	}
}

func openStore(stderr *os.File, cfg *Config, dbOverride string) store.Store {
	path := dbOverride
	if path == "" {
		path = cfg.HistoryDB
	}
	if path == "" {
		path = dbPath()
	}
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fmt.Fprintln(stderr, "warning: no command history:", err)
		return nil
	}
	st, err := store.NewStore(path)
	if err != nil {
		fmt.Fprintln(stderr, "warning: no command history:", err)
		return nil
	}
	return st
}
