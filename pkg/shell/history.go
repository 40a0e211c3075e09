package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marsh-shell/marsh/pkg/store"
)

// expandHistory performs history expansion on an interactive line: a line
// whose first word is a history designator has that word replaced by the
// matching history entry. Supported designators:
//
//	!!       the previous command
//	!N       the command with sequence number N
//	!prefix  the most recent command starting with prefix
//
// Any other line is returned unchanged. Note that ${reexpand} never goes
// through this function.
func expandHistory(st store.Store, line string) (string, error) {
	if st == nil || !strings.HasPrefix(line, "!") {
		return line, nil
	}
	word := line
	var rest string
	if i := strings.IndexAny(line, " \t"); i != -1 {
		word, rest = line[:i], line[i:]
	}

	next, err := st.NextCmdSeq()
	if err != nil {
		return "", err
	}

	var cmd store.Cmd
	switch {
	case word == "!!":
		cmd, err = st.PrevCmd(next, "")
	case isSeq(word[1:]):
		seq, _ := strconv.Atoi(word[1:])
		var text string
		text, err = st.Cmd(seq)
		cmd = store.Cmd{Text: text, Seq: seq}
	default:
		cmd, err = st.PrevCmd(next, word[1:])
	}
	if err != nil {
		return "", fmt.Errorf("history expansion %s: %w", word, err)
	}
	return cmd.Text + rest, nil
}

func isSeq(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
