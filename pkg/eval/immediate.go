package eval

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/marsh-shell/marsh/pkg/ast"
	"github.com/marsh-shell/marsh/pkg/diag"
	"github.com/marsh-shell/marsh/pkg/glob"
	"github.com/marsh-shell/marsh/pkg/parse"
)

// An immediateFunc runs an immediate function: it may evaluate argument
// nodes, and returns the replacement node to be evaluated in place of the
// invoking expression. On failure the replacement is nil and the error is
// either diagnosed (already in the sink) or a propagated failure from a
// nested evaluation.
type immediateFunc func(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error)

// immediateFuncs is the full registry of immediate functions. The parser's
// name check (HasImmediateFunction) and the dispatcher consult the same
// map, so the two can never disagree. The map is populated in init rather
// than in the declaration: reexpand re-enters the parser, whose config
// calls back into HasImmediateFunction, and a static initializer would
// cycle through that chain.
var immediateFuncs map[string]immediateFunc

func init() {
	immediateFuncs = map[string]immediateFunc{
		"length":                       immediateLength,
		"length_across":                immediateLengthAcross,
		"length_of_variable":           immediateLengthOfVariable,
		"split":                        immediateSplit,
		"join":                         immediateJoin,
		"remove_prefix":                immediateRemovePrefix,
		"remove_suffix":                immediateRemoveSuffix,
		"regex_replace":                immediateRegexReplace,
		"filter_glob":                  immediateFilterGlob,
		"concat_lists":                 immediateConcatLists,
		"value_or_default":             immediateValueOrDefault,
		"assign_default":               immediateAssignDefault,
		"error_if_empty":               immediateErrorIfEmpty,
		"null_or_alternative":          immediateNullOrAlternative,
		"defined_value_or_default":     immediateDefinedValueOrDefault,
		"assign_defined_default":       immediateAssignDefinedDefault,
		"error_if_unset":               immediateErrorIfUnset,
		"null_if_unset_or_alternative": immediateNullIfUnsetOrAlternative,
		"reexpand":                     immediateReexpand,
	}
}

// HasImmediateFunction reports whether name names an immediate function.
// The parser uses this to validate ${...} heads at parse time.
func HasImmediateFunction(name string) bool {
	_, ok := immediateFuncs[name]
	return ok
}

// RunImmediateFunction dispatches an immediate function by name. The
// invoking node supplies the position for diagnostics.
func (ev *Evaler) RunImmediateFunction(name string, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if fn, ok := immediateFuncs[name]; ok {
		return fn(ev, invoking, args)
	}
	return nil, ev.raiseError(invoking, "unknown immediate function %s", name)
}

type lengthMode int

const (
	modeInfer lengthMode = iota
	modeString
	modeList
)

func immediateLengthImpl(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node, across bool) (ast.Node, error) {
	name := "length"
	if across {
		name = "length_across"
	}
	if len(args) < 1 || len(args) > 2 {
		return nil, ev.raiseError(invoking, "Expected one or two arguments to `%s'", name)
	}

	mode := modeInfer
	isInferred := false

	var exprNode ast.Node
	if len(args) == 2 {
		// length string <expr>
		// length list <expr>
		modeArg := args[0]
		bareword, ok := modeArg.(*ast.Bareword)
		if !ok {
			return nil, ev.raiseError(modeArg, "Expected a bareword (either 'string' or 'list') in the two-argument form of the `%s' immediate", name)
		}
		switch bareword.Text {
		case "list":
			mode = modeList
		case "string":
			mode = modeString
		case "infer":
			mode = modeInfer
		default:
			return nil, ev.raiseError(modeArg, "Expected either 'string' or 'list' (and not %s) in the two-argument form of the `%s' immediate", bareword.Text, name)
		}
		exprNode = args[1]
	} else {
		exprNode = args[0]
	}

	if mode == modeInfer {
		isInferred = true
		switch exprNode.(type) {
		case *ast.ListConcatenate:
			mode = modeList
		case *ast.SimpleVariable:
			// Look inside variables.
			v, err := exprNode.Run(ev)
			if err != nil {
				return nil, err
			}
			if v != nil && ast.IsList(v) {
				mode = modeList
			} else {
				mode = modeString
			}
		case *ast.ImmediateExpression:
			mode = modeList
		default:
			mode = modeString
		}
	}

	valueWithNumber := func(n int) ast.Node {
		return &ast.Bareword{Ranging: invoking.Range(), Text: strconv.Itoa(n)}
	}

	doAcross := func(modeName string, values []ast.Value) ast.Node {
		if isInferred {
			modeName = "infer"
		}
		// Translate to a list of applications of `length <modeName>`.
		nodes := make([]ast.Node, 0, len(values))
		for _, entry := range values {
			// ImmediateExpression(length <modeName> <entry>)
			nodes = append(nodes, &ast.ImmediateExpression{
				Ranging:  exprNode.Range(),
				Function: ast.NameWithPosition{Name: "length", Ranging: invoking.Function.Range()},
				Args: []ast.Node{
					&ast.Bareword{Ranging: exprNode.Range(), Text: modeName},
					&ast.Synthetic{Ranging: exprNode.Range(), Value: entry},
				},
			})
		}
		return &ast.ListConcatenate{Ranging: invoking.Range(), Nodes: nodes}
	}

	raiseNoListAllowed := func() error {
		if isInferred {
			return ev.raiseError(invoking,
				"Could not infer expression type, please explicitly use `%[1]s string' or `%[1]s list'", name)
		}
		source := parse.Format(exprNode)
		if source == "" {
			return ev.raiseError(exprNode, "Invalid application of `length' to a list")
		}
		return ev.raiseError(exprNode,
			"Invalid application of `length' to a list\nperhaps you meant `%[2]slength \"%[1]s\"%[3]s' or `%[2]slength_across %[1]s%[3]s'?",
			source, "\x1b[32m", "\x1b[0m")
	}

	switch mode {
	case modeList:
		value, err := exprNode.Run(ev)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return valueWithNumber(0), nil
		}

		if list, ok := value.(ast.ListValue); ok {
			if across {
				return doAcross("list", list.Values), nil
			}
			return valueWithNumber(len(list.Values)), nil
		}

		flat := ast.Flatten(value)
		if !across {
			return valueWithNumber(len(flat)), nil
		}

		logger.Printf("length_across: list has %d entries", len(flat))
		return doAcross("list", ast.StringsToList(flat).Values), nil

	case modeString:
		// 'across' will only accept lists, and '!across' will only accept
		// non-lists here.
		_, syntacticList := exprNode.(*ast.ListConcatenate)
		if syntacticList && !across {
			return nil, raiseNoListAllowed()
		}

		value, err := exprNode.Run(ev)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return valueWithNumber(0), nil
		}

		if list, ok := value.(ast.ListValue); ok {
			if !across {
				return nil, raiseNoListAllowed()
			}
			return doAcross("string", list.Values), nil
		}

		if across {
			source := parse.Format(exprNode)
			return nil, ev.raiseError(exprNode,
				"Invalid application of `length_across' to a non-list\nperhaps you meant `%[2]slength %[1]s%[3]s'?",
				source, "\x1b[32m", "\x1b[0m")
		}

		// Only a plain string reaches here: a syntactic list was rejected
		// up front and a list value was handled or raised.
		return valueWithNumber(len(ast.Flatten(value)[0])), nil
	}
	panic("unreachable length mode")
}

func immediateLength(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	return immediateLengthImpl(ev, invoking, args, false)
}

func immediateLengthAcross(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	return immediateLengthImpl(ev, invoking, args, true)
}

func immediateLengthOfVariable(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 1 {
		return nil, ev.raiseError(invoking, "Expected exactly 1 argument to length_of_variable")
	}

	name, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	variable := &ast.SimpleVariable{Ranging: invoking.Range(), Name: name}

	return immediateLengthImpl(ev, invoking, []ast.Node{variable}, false)
}

func immediateSplit(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to split")
	}

	delimiter, err := args[0].Run(ev)
	if err != nil {
		return nil, err
	}
	value, err := args[1].Run(ev)
	if err != nil {
		return nil, err
	}

	if delimiter == nil || ast.IsList(delimiter) {
		return nil, ev.raiseError(args[0], "Expected the split delimiter string to be a string")
	}
	delimiterStr := ast.Flatten(delimiter)[0]

	transform := func(values []ast.Value) ast.Node {
		// Translate to a list of applications of `split <delimiter>`.
		nodes := make([]ast.Node, 0, len(values))
		for _, entry := range values {
			// ImmediateExpression(split <delimiter> <entry>)
			nodes = append(nodes, &ast.ImmediateExpression{
				Ranging:  args[1].Range(),
				Function: invoking.Function,
				Args: []ast.Node{
					args[0],
					&ast.Synthetic{Ranging: args[1].Range(), Value: entry},
				},
			})
		}
		return &ast.ListConcatenate{Ranging: invoking.Range(), Nodes: nodes}
	}

	if value == nil {
		return &ast.ListConcatenate{Ranging: invoking.Range()}, nil
	}
	if list, ok := value.(ast.ListValue); ok {
		return transform(list.Values), nil
	}

	// Otherwise, resolve to a sequence and split or distribute over that.
	flat := ast.Flatten(value)
	switch len(flat) {
	case 0:
		return &ast.ListConcatenate{Ranging: invoking.Range()}, nil
	case 1:
		var split []string
		if delimiterStr == "" {
			for _, r := range flat[0] {
				split = append(split, string(r))
			}
		} else {
			for _, seg := range strings.Split(flat[0], delimiterStr) {
				if seg == "" && !ev.Options.KeepEmptySegments {
					continue
				}
				split = append(split, seg)
			}
		}
		return &ast.Synthetic{Ranging: invoking.Range(), Value: ast.StringsToList(split)}, nil
	}

	// A multi-valued non-list value; distribute element-wise.
	return transform(ast.StringsToList(flat).Values), nil
}

func immediateJoin(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to join")
	}

	delimiter, err := args[0].Run(ev)
	if err != nil {
		return nil, err
	}
	if delimiter == nil || ast.IsList(delimiter) {
		return nil, ev.raiseError(args[0], "Expected the join delimiter string to be a string")
	}

	value, err := args[1].Run(ev)
	if err != nil {
		return nil, err
	}
	if value == nil || !ast.IsList(value) {
		return nil, ev.raiseError(args[1], "Expected the joined list to be a list")
	}

	delimiterStr := ast.Flatten(delimiter)[0]
	joined := strings.Join(ast.Flatten(value), delimiterStr)

	return &ast.StringLiteral{Ranging: invoking.Range(), Text: joined}, nil
}

func immediateRemovePrefix(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	return removeAffix(ev, invoking, args, "remove_prefix", "prefix", strings.HasPrefix,
		func(s, prefix string) string { return s[len(prefix):] })
}

func immediateRemoveSuffix(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	return removeAffix(ev, invoking, args, "remove_suffix", "suffix", strings.HasSuffix,
		func(s, suffix string) string { return s[:len(s)-len(suffix)] })
}

// removeAffix strips a literal affix, byte-exact, from every element of the
// target. Elements without the affix pass through untouched; even a single
// element comes back wrapped in a list-concatenation.
func removeAffix(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node,
	fname, argName string, has func(s, affix string) bool, strip func(s, affix string) string) (ast.Node, error) {

	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to %s", fname)
	}

	affix, err := args[0].Run(ev)
	if err != nil {
		return nil, err
	}
	if affix == nil || ast.IsList(affix) {
		return nil, ev.raiseError(args[0], "Expected the %s %s string to be a string", fname, argName)
	}
	affixStr := ast.Flatten(affix)[0]

	value, err := args[1].Run(ev)
	if err != nil {
		return nil, err
	}
	var values []string
	if value != nil {
		values = ast.Flatten(value)
	}

	nodes := make([]ast.Node, 0, len(values))
	for _, s := range values {
		removed := s
		if has(s, affixStr) {
			removed = strip(s, affixStr)
		}
		nodes = append(nodes, &ast.StringLiteral{Ranging: invoking.Range(), Text: removed})
	}

	return &ast.ListConcatenate{Ranging: invoking.Range(), Nodes: nodes}, nil
}

func immediateRegexReplace(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 3 {
		return nil, ev.raiseError(invoking, "Expected exactly 3 arguments to regex_replace")
	}

	pattern, err := args[0].Run(ev)
	if err != nil {
		return nil, err
	}
	replacement, err := args[1].Run(ev)
	if err != nil {
		return nil, err
	}
	value, err := args[2].Run(ev)
	if err != nil {
		return nil, err
	}

	if pattern == nil || ast.IsList(pattern) {
		return nil, ev.raiseError(args[0], "Expected the regex_replace pattern to be a string")
	}
	if replacement == nil || ast.IsList(replacement) {
		return nil, ev.raiseError(args[1], "Expected the regex_replace replacement string to be a string")
	}
	if value == nil || ast.IsList(value) {
		return nil, ev.raiseError(args[2], "Expected the regex_replace target value to be a string")
	}

	// POSIX ERE with leftmost-longest matching; replacement is applied
	// globally. References in the replacement use Go's $1 form.
	re, err := regexp.CompilePOSIX(ast.Flatten(pattern)[0])
	if err != nil {
		return nil, ev.raiseError(args[0], "regex_replace: %v", err)
	}
	result := re.ReplaceAllString(ast.Flatten(value)[0], ast.Flatten(replacement)[0])

	return &ast.StringLiteral{Ranging: invoking.Range(), Text: result}, nil
}

func immediateFilterGlob(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	// filter_glob string list
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly two arguments to filter_glob (<glob> <list>)")
	}

	globValue, err := args[0].Run(ev)
	if err != nil {
		return nil, err
	}
	var globList []string
	if globValue != nil {
		globList = ast.Flatten(globValue)
	}
	if len(globList) != 1 {
		return nil, ev.raiseError(args[0], "Expected the <glob> argument to filter_glob to be a single string")
	}
	pattern := glob.Parse(globList[0])
	listNode := args[1]

	var result []ast.Node

	err = ast.EachEntry(ev, listNode, func(entry ast.Value) error {
		value := ast.Flatten(entry)
		if len(value) == 0 {
			return nil
		}
		if len(value) == 1 {
			if !pattern.Match(value[0]) {
				return nil
			}
			result = append(result, &ast.StringLiteral{Ranging: listNode.Range(), Text: value[0]})
			return nil
		}

		// A word group: the first matching element keeps the whole group
		// intact, and the remaining elements are not tested.
		for _, s := range value {
			if pattern.Match(s) {
				nodes := make([]ast.Node, 0, len(value))
				for _, member := range value {
					nodes = append(nodes, &ast.StringLiteral{Ranging: listNode.Range(), Text: member})
				}
				result = append(result, &ast.ListConcatenate{Ranging: listNode.Range(), Nodes: nodes})
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ast.ListConcatenate{Ranging: invoking.Range(), Nodes: result}, nil
}

func immediateConcatLists(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	var result []ast.Node

	for _, argument := range args {
		if list, ok := argument.(*ast.ListConcatenate); ok {
			// Structural fast path: splice the children in directly without
			// evaluating them.
			result = append(result, list.Nodes...)
			continue
		}
		value, err := argument.Run(ev)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		if list, ok := value.(ast.ListValue); ok {
			for _, entry := range list.Values {
				result = append(result, &ast.Synthetic{Ranging: argument.Range(), Value: entry})
			}
		} else {
			for _, entry := range ast.Flatten(value) {
				result = append(result, &ast.StringLiteral{Ranging: argument.Range(), Text: entry})
			}
		}
	}

	return &ast.ListConcatenate{Ranging: invoking.Range(), Nodes: result}, nil
}

// runToString evaluates a node and reduces its value to a string. It is how
// the defaulting family obtains the variable name from its first argument.
func runToString(ev *Evaler, n ast.Node) (string, error) {
	v, err := n.Run(ev)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return ast.AsString(v), nil
}

func immediateValueOrDefault(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to value_or_default")
	}

	name, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	if ev.LocalVariableOr(name, "") != "" {
		return &ast.SimpleVariable{Ranging: invoking.Range(), Name: name}, nil
	}

	return args[1], nil
}

func immediateAssignDefault(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to assign_default")
	}

	name, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	if ev.LocalVariableOr(name, "") != "" {
		return &ast.SimpleVariable{Ranging: invoking.Range(), Name: name}, nil
	}

	value, err := args[1].Run(ev)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = ast.StringValue{}
	}
	ev.SetLocalVariable(name, value)

	return &ast.Synthetic{Ranging: invoking.Range(), Value: value}, nil
}

func immediateErrorIfEmpty(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to error_if_empty")
	}

	name, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	if ev.LocalVariableOr(name, "") != "" {
		return &ast.SimpleVariable{Ranging: invoking.Range(), Name: name}, nil
	}

	message, err := runToString(ev, args[1])
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = "Expected " + name + " to be non-empty"
	}

	return nil, ev.raiseError(invoking, "%s", message)
}

func immediateNullOrAlternative(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to null_or_alternative")
	}

	value, err := args[0].Run(ev)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = ast.StringValue{}
	}
	switch v := value.(type) {
	case ast.StringValue:
		if v.Text == "" {
			return &ast.Synthetic{Ranging: invoking.Range(), Value: value}, nil
		}
	case ast.ListValue:
		if len(v.Values) == 0 {
			return &ast.Synthetic{Ranging: invoking.Range(), Value: value}, nil
		}
	}

	return args[1], nil
}

func immediateDefinedValueOrDefault(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to defined_value_or_default")
	}

	name, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	if ev.findFrameContainingLocalVariable(name) == nil {
		return args[1], nil
	}

	return &ast.SimpleVariable{Ranging: invoking.Range(), Name: name}, nil
}

func immediateAssignDefinedDefault(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to assign_defined_default")
	}

	name, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	if ev.findFrameContainingLocalVariable(name) != nil {
		return &ast.SimpleVariable{Ranging: invoking.Range(), Name: name}, nil
	}

	value, err := args[1].Run(ev)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = ast.StringValue{}
	}
	ev.SetLocalVariable(name, value)

	return &ast.Synthetic{Ranging: invoking.Range(), Value: value}, nil
}

func immediateErrorIfUnset(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to error_if_unset")
	}

	name, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	if ev.findFrameContainingLocalVariable(name) != nil {
		return &ast.SimpleVariable{Ranging: invoking.Range(), Name: name}, nil
	}

	message, err := runToString(ev, args[1])
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = "Expected " + name + " to be set"
	}

	return nil, ev.raiseError(invoking, "%s", message)
}

func immediateNullIfUnsetOrAlternative(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 2 {
		return nil, ev.raiseError(invoking, "Expected exactly 2 arguments to null_if_unset_or_alternative")
	}

	name, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	if ev.findFrameContainingLocalVariable(name) == nil {
		return args[1], nil
	}

	return &ast.SimpleVariable{Ranging: invoking.Range(), Name: name}, nil
}

func immediateReexpand(ev *Evaler, invoking *ast.ImmediateExpression, args []ast.Node) (ast.Node, error) {
	if len(args) != 1 {
		return nil, ev.raiseError(invoking, "Expected exactly 1 argument to reexpand")
	}

	value, err := runToString(ev, args[0])
	if err != nil {
		return nil, err
	}
	// No recursion bound is enforced here: a reexpansion yielding another
	// reexpand is re-entered by the caller's next evaluation step, so the
	// effective limit is the Go stack.
	node, err := ev.Parse(value, ev.interactive, false)
	if err != nil {
		return nil, err
	}
	return &reexpandedNode{
		Ranging: invoking.Range(),
		src:     parse.Source{Name: reexpandSourceName, Code: value},
		node:    node,
	}, nil
}

// reexpandedNode runs a tree parsed from reexpanded text. Node ranges in
// that tree are offsets into the reexpanded text, so the Evaler's current
// source is swapped for the duration; diagnostics raised inside then
// anchor in the right source.
type reexpandedNode struct {
	diag.Ranging
	src  parse.Source
	node ast.Node
}

func (n *reexpandedNode) Run(ctx ast.Context) (ast.Value, error) {
	ev, ok := ctx.(*Evaler)
	if !ok {
		return n.node.Run(ctx)
	}
	saved := ev.src
	ev.src = n.src
	defer func() { ev.src = saved }()
	return n.node.Run(ev)
}
