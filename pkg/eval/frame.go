package eval

import "github.com/marsh-shell/marsh/pkg/ast"

// frame is one lexical variable frame. Frames form a stack; the last
// element of Evaler.frames is the innermost.
type frame struct {
	name string
	vars map[string]ast.Value
}

func newFrame(name string) *frame {
	return &frame{name, make(map[string]ast.Value)}
}

// PushFrame pushes a new innermost variable frame.
func (ev *Evaler) PushFrame(name string) {
	ev.frames = append(ev.frames, newFrame(name))
}

// PopFrame pops the innermost variable frame. The global frame is never
// popped.
func (ev *Evaler) PopFrame() {
	if len(ev.frames) > 1 {
		ev.frames = ev.frames[:len(ev.frames)-1]
	}
}

// findFrameContainingLocalVariable returns the innermost frame that
// defines the name, or nil if no frame does.
func (ev *Evaler) findFrameContainingLocalVariable(name string) *frame {
	for i := len(ev.frames) - 1; i >= 0; i-- {
		if _, ok := ev.frames[i].vars[name]; ok {
			return ev.frames[i]
		}
	}
	return nil
}

// LocalVariable looks up a variable, innermost frame first.
func (ev *Evaler) LocalVariable(name string) (ast.Value, bool) {
	if f := ev.findFrameContainingLocalVariable(name); f != nil {
		return f.vars[name], true
	}
	return nil, false
}

// LocalVariableOr returns the variable's value reduced to a string, or the
// default if no frame defines it.
func (ev *Evaler) LocalVariableOr(name, def string) string {
	v, ok := ev.LocalVariable(name)
	if !ok {
		return def
	}
	return ast.AsString(v)
}

// SetLocalVariable assigns a variable in the frame that already defines
// it, or in the innermost frame otherwise.
func (ev *Evaler) SetLocalVariable(name string, v ast.Value) {
	f := ev.findFrameContainingLocalVariable(name)
	if f == nil {
		f = ev.frames[len(ev.frames)-1]
	}
	f.vars[name] = v
}
