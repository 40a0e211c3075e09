package parse

import (
	"strings"

	"github.com/marsh-shell/marsh/pkg/ast"
)

// Format renders a node back into source text that parses to an equivalent
// node. It is used for diagnostics that quote the offending expression and
// for suggesting rewrites.
func Format(n ast.Node) string {
	var b strings.Builder
	formatNode(&b, n)
	return b.String()
}

func formatNode(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Bareword:
		b.WriteString(n.Text)
	case *ast.StringLiteral:
		b.WriteString(Quote(n.Text))
	case *ast.SimpleVariable:
		b.WriteByte('$')
		b.WriteString(n.Name)
	case *ast.ListConcatenate:
		b.WriteByte('(')
		for i, child := range n.Nodes {
			if i > 0 {
				b.WriteByte(' ')
			}
			formatNode(b, child)
		}
		b.WriteByte(')')
	case *ast.Synthetic:
		formatValue(b, n.Value)
	case *ast.ImmediateExpression:
		b.WriteString("${")
		b.WriteString(n.Function.Name)
		for _, arg := range n.Args {
			b.WriteByte(' ')
			formatNode(b, arg)
		}
		b.WriteByte('}')
	case *ast.Assignment:
		b.WriteString(n.Name.Name)
		b.WriteString(" = ")
		formatNode(b, n.RHS)
	}
}

func formatValue(b *strings.Builder, v ast.Value) {
	switch v := v.(type) {
	case ast.StringValue:
		b.WriteString(Quote(v.Text))
	case ast.ListValue:
		b.WriteByte('(')
		for i, elem := range v.Values {
			if i > 0 {
				b.WriteByte(' ')
			}
			formatValue(b, elem)
		}
		b.WriteByte(')')
	}
}
