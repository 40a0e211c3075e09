package ast

import "github.com/marsh-shell/marsh/pkg/diag"

// Context is the set of capabilities a node needs from its evaluator. It is
// borrowed for the duration of one evaluation; nodes never own or retain it.
type Context interface {
	// LocalVariable looks up a variable across the lexical frames, innermost
	// first. The second return value is false if no frame defines the name.
	LocalVariable(name string) (Value, bool)
	// SetLocalVariable assigns a variable in the frame that already defines
	// it, or in the innermost frame otherwise.
	SetLocalVariable(name string, v Value)
	// RunImmediateFunction dispatches an immediate function, returning the
	// replacement node to evaluate in place of the invoking expression.
	RunImmediateFunction(name string, invoking *ImmediateExpression, args []Node) (Node, error)
}

// Node is a node of the syntax tree. Nodes are immutable once constructed
// and strictly hierarchical; each carries the source range it was parsed
// from (or, for rewrite output, the range of the node it replaces), used
// only for diagnostics.
//
// Run evaluates the node against ctx. A nil Value with a nil error means
// the node produced no value, which is distinct from failure.
type Node interface {
	diag.Ranger
	Run(ctx Context) (Value, error)
}

// NameWithPosition is a name tagged with its own source range, narrower
// than that of the node carrying it.
type NameWithPosition struct {
	Name string
	diag.Ranging
}

// Bareword is an unquoted literal word.
type Bareword struct {
	diag.Ranging
	Text string
}

// StringLiteral is a quoted literal string.
type StringLiteral struct {
	diag.Ranging
	Text string
}

// SimpleVariable is a reference to a variable by name.
type SimpleVariable struct {
	diag.Ranging
	Name string
}

// ListConcatenate is an ordered collection of child nodes that evaluates to
// one list.
type ListConcatenate struct {
	diag.Ranging
	Nodes []Node
}

// Synthetic wraps an already-computed value so that it can be spliced into
// a tree that will be re-evaluated. It is the one node kind that owns a
// value rather than child nodes.
type Synthetic struct {
	diag.Ranging
	Value Value
}

// ImmediateExpression is a named immediate-function call over unevaluated
// argument nodes.
type ImmediateExpression struct {
	diag.Ranging
	Function NameWithPosition
	Args     []Node
}

// Assignment assigns the value of a child expression to a variable and
// produces no value.
type Assignment struct {
	diag.Ranging
	Name NameWithPosition
	RHS  Node
}

func (n *Bareword) Run(ctx Context) (Value, error) {
	return StringValue{n.Text}, nil
}

func (n *StringLiteral) Run(ctx Context) (Value, error) {
	return StringValue{n.Text}, nil
}

func (n *SimpleVariable) Run(ctx Context) (Value, error) {
	if v, ok := ctx.LocalVariable(n.Name); ok {
		return v, nil
	}
	return StringValue{""}, nil
}

func (n *ListConcatenate) Run(ctx Context) (Value, error) {
	values := make([]Value, 0, len(n.Nodes))
	for _, child := range n.Nodes {
		v, err := child.Run(ctx)
		if err != nil {
			return nil, err
		}
		if v != nil {
			values = append(values, v)
		}
	}
	return ListValue{values}, nil
}

func (n *Synthetic) Run(ctx Context) (Value, error) {
	return n.Value, nil
}

func (n *ImmediateExpression) Run(ctx Context) (Value, error) {
	replacement, err := ctx.RunImmediateFunction(n.Function.Name, n, n.Args)
	if err != nil {
		return nil, err
	}
	return replacement.Run(ctx)
}

func (n *Assignment) Run(ctx Context) (Value, error) {
	v, err := n.RHS.Run(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = StringValue{""}
	}
	ctx.SetLocalVariable(n.Name.Name, v)
	return nil, nil
}

// EachEntry evaluates n and calls f once per entry it produces, without
// flattening the entries themselves. For a list-concatenation this is one
// call per child node, so a child that is itself list-shaped arrives as one
// intact group. Iteration stops at the first error from f.
func EachEntry(ctx Context, n Node, f func(Value) error) error {
	if list, ok := n.(*ListConcatenate); ok {
		for _, child := range list.Nodes {
			v, err := child.Run(ctx)
			if err != nil {
				return err
			}
			if v == nil {
				continue
			}
			if err := f(v); err != nil {
				return err
			}
		}
		return nil
	}

	v, err := n.Run(ctx)
	if err != nil || v == nil {
		return err
	}
	if list, ok := v.(ListValue); ok {
		for _, elem := range list.Values {
			if err := f(elem); err != nil {
				return err
			}
		}
		return nil
	}
	return f(v)
}
