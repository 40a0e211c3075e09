// Package ast defines the syntax tree of the marsh language, and the values
// that evaluating it produces.
//
// A value is either a single string or an ordered list of values; the two
// shapes are deliberately a closed set, and consumers dispatch with type
// switches. Any value can be flattened into an ordered sequence of strings,
// which is the common representation for iteration and multi-value
// operations.
package ast

import "strings"

// Value is the result of evaluating a Node: either a StringValue or a
// ListValue.
type Value interface {
	value()
}

// StringValue is a scalar string value.
type StringValue struct {
	Text string
}

// ListValue is an ordered list of values. Elements may themselves be
// list-shaped, supporting nested list construction.
type ListValue struct {
	Values []Value
}

func (StringValue) value() {}
func (ListValue) value()   {}

// IsList reports whether v is list-shaped.
func IsList(v Value) bool {
	_, ok := v.(ListValue)
	return ok
}

// Flatten reduces v to an ordered sequence of strings. A string value
// flattens to a one-element sequence; a list value flattens to the
// concatenation of its flattened elements.
func Flatten(v Value) []string {
	switch v := v.(type) {
	case StringValue:
		return []string{v.Text}
	case ListValue:
		out := make([]string, 0, len(v.Values))
		for _, elem := range v.Values {
			out = append(out, Flatten(elem)...)
		}
		return out
	}
	panic("unreachable value kind")
}

// AsString reduces v to a single string. A value flattening to one element
// yields that element; an empty flatten yields ""; anything else is joined
// with single spaces.
func AsString(v Value) string {
	flat := Flatten(v)
	switch len(flat) {
	case 0:
		return ""
	case 1:
		return flat[0]
	}
	return strings.Join(flat, " ")
}

// StringsToList builds a ListValue with one string element per input.
func StringsToList(strs []string) ListValue {
	values := make([]Value, len(strs))
	for i, s := range strs {
		values[i] = StringValue{s}
	}
	return ListValue{values}
}
