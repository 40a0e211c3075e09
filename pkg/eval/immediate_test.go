package eval_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/marsh-shell/marsh/pkg/ast"
	"github.com/marsh-shell/marsh/pkg/diag"
	"github.com/marsh-shell/marsh/pkg/eval"
	"github.com/marsh-shell/marsh/pkg/parse"
)

// evalFlat evaluates code on ev and flattens all produced values into one
// string sequence. Assignments produce no value and contribute nothing.
func evalFlat(t *testing.T, ev *eval.Evaler, code string) []string {
	t.Helper()
	values, err := ev.Eval(parse.Source{Name: "[test]", Code: code})
	if err != nil {
		t.Fatalf("eval %q: unexpected error: %v", code, err)
	}
	out := []string{}
	for _, v := range values {
		out = append(out, ast.Flatten(v)...)
	}
	return out
}

func testFlat(t *testing.T, code string, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	got := evalFlat(t, eval.NewEvaler(), code)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("eval %q: (-want +got):\n%s", code, diff)
	}
}

// testDiagnosed evaluates code expecting a diagnosed error whose message
// contains wantSubstr, and checks that the error landed in the sink.
func testDiagnosed(t *testing.T, code, wantSubstr string) {
	t.Helper()
	ev := eval.NewEvaler()
	_, err := ev.Eval(parse.Source{Name: "[test]", Code: code})
	if err == nil {
		t.Fatalf("eval %q: want diagnosed error, got nil", code)
	}
	if !eval.IsDiagnosed(err) {
		t.Fatalf("eval %q: error not diagnosed: %v", code, err)
	}
	if !strings.Contains(err.Error(), wantSubstr) {
		t.Errorf("eval %q: error %q does not contain %q", code, err.Error(), wantSubstr)
	}
	if len(ev.Diagnostics()) == 0 {
		t.Errorf("eval %q: diagnostic sink is empty", code)
	}
}

func TestLength(t *testing.T) {
	testFlat(t, "${length foobar}", "6")
	testFlat(t, "${length ''}", "0")
	testFlat(t, "${length 'αβγ'}", "6") // byte length
	testFlat(t, "${length (a b c)}", "3")
	testFlat(t, "${length ()}", "0")
	testFlat(t, "${length (a (b c) d)}", "3")
	testFlat(t, "${length list (a b)}", "2")
	testFlat(t, "${length string foobar}", "6")
	testFlat(t, "${length infer foobar}", "6")
	// Inference looks inside variables.
	testFlat(t, "x = (a b c); ${length $x}", "3")
	testFlat(t, "x = foobar; ${length $x}", "6")
	// An unset variable reads as the empty string.
	testFlat(t, "${length $nonexistent}", "0")
	// A nested immediate expression is inferred to be a list.
	testFlat(t, "${length ${split : a:b:c}}", "3")
}

func TestLengthAcross(t *testing.T) {
	testFlat(t, "${length_across (foo ab c)}", "3", "2", "1")
	testFlat(t, "${length_across ()}")
	testFlat(t, "x = (foo ab c); ${length_across $x}", "3", "2", "1")
	testFlat(t, "${length_across string (ab c)}", "2", "1")
	testFlat(t, "${length_across list ((a b) c)}", "2", "1")
}

func TestLengthErrors(t *testing.T) {
	testDiagnosed(t, "${length}", "Expected one or two arguments to `length'")
	testDiagnosed(t, "${length a b c}", "Expected one or two arguments to `length'")
	testDiagnosed(t, "${length_across}", "Expected one or two arguments to `length_across'")
	testDiagnosed(t, "${length foo bar}",
		"Expected either 'string' or 'list' (and not foo) in the two-argument form of the `length' immediate")
	testDiagnosed(t, "${length $x bar}",
		"Expected a bareword (either 'string' or 'list') in the two-argument form of the `length' immediate")
	testDiagnosed(t, "${length string (a b)}", "Invalid application of `length' to a list")
	testDiagnosed(t, "${length string (a b)}", "length_across (a b)")
	testDiagnosed(t, "x = (a b); ${length string $x}", "perhaps you meant")
	testDiagnosed(t, "${length_across foo}", "Invalid application of `length_across' to a non-list")
	testDiagnosed(t, "${length_across foo}", "length foo")
}

func TestLengthOfVariable(t *testing.T) {
	testFlat(t, "x = foobar; ${length_of_variable x}", "6")
	testFlat(t, "x = (a b); ${length_of_variable x}", "2")
	testFlat(t, "${length_of_variable nonexistent}", "0")
	testDiagnosed(t, "${length_of_variable x y}", "Expected exactly 1 argument to length_of_variable")
}

func TestSplit(t *testing.T) {
	testFlat(t, "${split : a:b:c}", "a", "b", "c")
	// Empty segments are dropped by default.
	testFlat(t, "${split : a::b}", "a", "b")
	testFlat(t, "${split : :a:}", "a")
	testFlat(t, "${split : ''}")
	// An empty delimiter splits into code points, not bytes.
	testFlat(t, "${split '' abc}", "a", "b", "c")
	testFlat(t, "${split '' 'αβ'}", "α", "β")
	// Splitting a list splits each element.
	testFlat(t, "${split : (a:b c:d)}", "a", "b", "c", "d")
	testFlat(t, "${split : ()}")

	testDiagnosed(t, "${split a}", "Expected exactly 2 arguments to split")
	testDiagnosed(t, "${split (a b) x}", "Expected the split delimiter string to be a string")
}

func TestSplitKeepEmptySegments(t *testing.T) {
	ev := eval.NewEvaler()
	ev.Options.KeepEmptySegments = true
	got := evalFlat(t, ev, "${split : :a::b:}")
	want := []string{"", "a", "", "b", ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	got = evalFlat(t, ev, "${split : ''}")
	if diff := cmp.Diff([]string{""}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestJoin(t *testing.T) {
	testFlat(t, "${join , (a b c)}", "a,b,c")
	testFlat(t, "${join '' (a b)}", "ab")
	testFlat(t, "${join , ()}", "")
	// Nested lists are flattened before joining.
	testFlat(t, "${join - (a (b c))}", "a-b-c")
	testFlat(t, "x = (a b); ${join , $x}", "a,b")
	// join undoes split.
	testFlat(t, "${join : ${split : a:b:c}}", "a:b:c")

	testDiagnosed(t, "${join ,}", "Expected exactly 2 arguments to join")
	testDiagnosed(t, "${join , abc}", "Expected the joined list to be a list")
	testDiagnosed(t, "${join (a b) (c)}", "Expected the join delimiter string to be a string")
}

func TestRemovePrefix(t *testing.T) {
	testFlat(t, "${remove_prefix foo foobar}", "bar")
	testFlat(t, "${remove_prefix x abc}", "abc")
	testFlat(t, "${remove_prefix fix (fixa fixb nope)}", "a", "b", "nope")
	testFlat(t, "${remove_prefix foo foo}", "")
	// Only one leading occurrence is removed.
	testFlat(t, "${remove_prefix a aab}", "ab")

	testDiagnosed(t, "${remove_prefix foo}", "Expected exactly 2 arguments to remove_prefix")
	testDiagnosed(t, "${remove_prefix (a b) x}", "Expected the remove_prefix prefix string to be a string")
}

func TestRemoveSuffix(t *testing.T) {
	testFlat(t, "${remove_suffix bar foobar}", "foo")
	testFlat(t, "${remove_suffix x abc}", "abc")
	testFlat(t, "${remove_suffix .cpp (a.cpp b.h)}", "a", "b.h")
	testFlat(t, "${remove_suffix bar bar}", "")

	testDiagnosed(t, "${remove_suffix bar}", "Expected exactly 2 arguments to remove_suffix")
	testDiagnosed(t, "${remove_suffix (a b) x}", "Expected the remove_suffix suffix string to be a string")
}

// The affix removers always produce a list, even for a single string.
func TestRemoveAffixResultIsList(t *testing.T) {
	ev := eval.NewEvaler()
	values, err := ev.Eval(parse.Source{Name: "[test]", Code: "${remove_prefix foo foobar}"})
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 || !ast.IsList(values[0]) {
		t.Errorf("got %v, want a single list value", values)
	}
}

func TestRegexReplace(t *testing.T) {
	// POSIX leftmost-longest matching, applied globally.
	testFlat(t, "${regex_replace o+ 0 foobooo}", "f0b0")
	testFlat(t, "${regex_replace x y abc}", "abc")
	testFlat(t, "${regex_replace '(f.)' '<$1>' fafb}", "<fa><fb>")
	testFlat(t, "${regex_replace a '' aaa}", "")

	testDiagnosed(t, "${regex_replace a b}", "Expected exactly 3 arguments to regex_replace")
	testDiagnosed(t, "${regex_replace (a b) r v}", "Expected the regex_replace pattern to be a string")
	testDiagnosed(t, "${regex_replace p (a b) v}", "Expected the regex_replace replacement string to be a string")
	testDiagnosed(t, "${regex_replace p r (a b)}", "Expected the regex_replace target value to be a string")
	testDiagnosed(t, "${regex_replace '(' r v}", "regex_replace:")
}

func TestFilterGlob(t *testing.T) {
	testFlat(t, "${filter_glob '*.cpp' (a.cpp b.h c.cpp)}", "a.cpp", "c.cpp")
	testFlat(t, "${filter_glob '?.h' (a.h ab.h)}", "a.h")
	testFlat(t, "${filter_glob nomatch (a b)}")
	testFlat(t, "${filter_glob '*' ()}")
	// A backslash escapes the following rune in the pattern.
	testFlat(t, `${filter_glob '\*' (* a)}`, "*")
	// The list may come from a variable.
	testFlat(t, "x = (foo bar); ${filter_glob 'b*' $x}", "bar")
	// A group is kept intact when any member matches; members after the
	// first match are not tested.
	testFlat(t, "${filter_glob '*.h' ((a.h a.cpp) (b.c b.o))}", "a.h", "a.cpp")

	testDiagnosed(t, "${filter_glob x}", "Expected exactly two arguments to filter_glob (<glob> <list>)")
	testDiagnosed(t, "${filter_glob (a b) (c)}", "Expected the <glob> argument to filter_glob to be a single string")
}

func TestConcatLists(t *testing.T) {
	testFlat(t, "${concat_lists (a b) (c d)}", "a", "b", "c", "d")
	testFlat(t, "${concat_lists}")
	testFlat(t, "${concat_lists () ()}")
	// Evaluated lists are spliced element-wise.
	testFlat(t, "x = (a b); ${concat_lists $x (c)}", "a", "b", "c")
	// Scalars contribute their flattened strings.
	testFlat(t, "${concat_lists a (b)}", "a", "b")
	testFlat(t, "x = s; ${concat_lists $x (b)}", "s", "b")
}

func TestConcatListsResultIsList(t *testing.T) {
	ev := eval.NewEvaler()
	values, err := ev.Eval(parse.Source{Name: "[test]", Code: "${concat_lists (a) (b)}"})
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 || !ast.IsList(values[0]) {
		t.Errorf("got %v, want a single list value", values)
	}
}

func TestValueOrDefault(t *testing.T) {
	testFlat(t, "x = foo; ${value_or_default x bar}", "foo")
	testFlat(t, "${value_or_default x bar}", "bar")
	// An empty value counts as unset.
	testFlat(t, "x = ''; ${value_or_default x bar}", "bar")
	testFlat(t, "${value_or_default x (a b)}", "a", "b")
	// The alternative is not evaluated when the variable is non-empty.
	testFlat(t, "x = foo; ${value_or_default x ${error_if_unset y ''}}", "foo")

	testDiagnosed(t, "${value_or_default x}", "Expected exactly 2 arguments to value_or_default")
}

func TestAssignDefault(t *testing.T) {
	testFlat(t, "${assign_default x foo}; $x", "foo", "foo")
	testFlat(t, "x = bar; ${assign_default x foo}", "bar")
	// Only the first default assignment sticks.
	testFlat(t, "${assign_default x foo}; ${assign_default x baz}; $x", "foo", "foo", "foo")
	testFlat(t, "${assign_default x (a b)}; ${length $x}", "a", "b", "2")

	testDiagnosed(t, "${assign_default x}", "Expected exactly 2 arguments to assign_default")
}

func TestErrorIfEmpty(t *testing.T) {
	testFlat(t, "x = v; ${error_if_empty x msg}", "v")
	testDiagnosed(t, "${error_if_empty x 'x must be given'}", "x must be given")
	testDiagnosed(t, "x = ''; ${error_if_empty x msg}", "msg")
	// An empty message falls back to a default.
	testDiagnosed(t, "${error_if_empty x ''}", "Expected x to be non-empty")
	testDiagnosed(t, "${error_if_empty x}", "Expected exactly 2 arguments to error_if_empty")
}

func TestNullOrAlternative(t *testing.T) {
	// An empty string or empty list passes through unchanged.
	testFlat(t, "${null_or_alternative $x alt}", "")
	testFlat(t, "x = ''; ${null_or_alternative $x alt}", "")
	testFlat(t, "${null_or_alternative () alt}")
	// A non-empty value is replaced by the alternative.
	testFlat(t, "x = v; ${null_or_alternative $x alt}", "alt")
	testFlat(t, "${null_or_alternative (a) (b c)}", "b", "c")

	testDiagnosed(t, "${null_or_alternative x}", "Expected exactly 2 arguments to null_or_alternative")
}

func TestDefinedValueOrDefault(t *testing.T) {
	testFlat(t, "x = v; ${defined_value_or_default x alt}", "v")
	// Unlike value_or_default, a defined-but-empty variable wins.
	testFlat(t, "x = ''; ${defined_value_or_default x alt}", "")
	testFlat(t, "${defined_value_or_default x alt}", "alt")

	testDiagnosed(t, "${defined_value_or_default x}", "Expected exactly 2 arguments to defined_value_or_default")
}

func TestAssignDefinedDefault(t *testing.T) {
	testFlat(t, "${assign_defined_default x alt}; $x", "alt", "alt")
	testFlat(t, "x = ''; ${assign_defined_default x alt}; $x", "", "")
	testFlat(t, "x = v; ${assign_defined_default x alt}", "v")

	testDiagnosed(t, "${assign_defined_default x}", "Expected exactly 2 arguments to assign_defined_default")
}

func TestErrorIfUnset(t *testing.T) {
	testFlat(t, "x = v; ${error_if_unset x msg}", "v")
	// A defined-but-empty variable does not error.
	testFlat(t, "x = ''; ${error_if_unset x msg}", "")
	testDiagnosed(t, "${error_if_unset x 'x is required'}", "x is required")
	testDiagnosed(t, "${error_if_unset x ''}", "Expected x to be set")
	testDiagnosed(t, "${error_if_unset x}", "Expected exactly 2 arguments to error_if_unset")
}

func TestNullIfUnsetOrAlternative(t *testing.T) {
	testFlat(t, "${null_if_unset_or_alternative x alt}", "alt")
	testFlat(t, "x = v; ${null_if_unset_or_alternative x alt}", "v")
	testFlat(t, "x = ''; ${null_if_unset_or_alternative x alt}", "")

	testDiagnosed(t, "${null_if_unset_or_alternative x}",
		"Expected exactly 2 arguments to null_if_unset_or_alternative")
}

func TestReexpand(t *testing.T) {
	testFlat(t, "${reexpand '(a b)'}", "a", "b")
	testFlat(t, "x = foo; ${reexpand '$x'}", "foo")
	testFlat(t, "${reexpand '${split : a:b}'}", "a", "b")
	// Nested reexpansion.
	testFlat(t, `${reexpand '${reexpand bare}'}`, "bare")

	testDiagnosed(t, "${reexpand a b}", "Expected exactly 1 argument to reexpand")
}

// ${reexpand} re-enters the parser, so a malformed payload surfaces as a
// parse error against the reexpanded source.
func TestReexpandParseError(t *testing.T) {
	ev := eval.NewEvaler()
	_, err := ev.Eval(parse.Source{Name: "[test]", Code: `${reexpand '"unterminated'}`})
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if !eval.IsDiagnosed(err) {
		t.Errorf("error not diagnosed: %v", err)
	}
	if !strings.Contains(err.Error(), "[reexpand]") {
		t.Errorf("error %q does not name the reexpand source", err.Error())
	}
}

// A diagnostic raised while evaluating a reexpanded tree anchors in the
// reexpanded text; node ranges in that tree are offsets into it, not into
// the outer source.
func TestReexpandDiagnosticAnchoring(t *testing.T) {
	ev := eval.NewEvaler()
	_, err := ev.Eval(parse.Source{
		Name: "[outer]",
		Code: "c = '${join , scalar}'; ${reexpand $c}",
	})
	if err == nil {
		t.Fatal("want error, got nil")
	}
	var de *diag.Error
	if !errors.As(err, &de) {
		t.Fatalf("error has type %T, want *diag.Error", err)
	}
	if de.Context.Name != "[reexpand]" {
		t.Errorf("context name = %q, want [reexpand]", de.Context.Name)
	}
	if de.Context.Source != "${join , scalar}" {
		t.Errorf("context source = %q, want the reexpanded text", de.Context.Source)
	}
	if got := de.Context.Source[de.Context.From:de.Context.To]; got != "scalar" {
		t.Errorf("culprit = %q, want scalar", got)
	}
}

// After a reexpanded tree finishes, later diagnostics anchor in the outer
// source again.
func TestReexpandRestoresOuterSource(t *testing.T) {
	ev := eval.NewEvaler()
	_, err := ev.Eval(parse.Source{
		Name: "[outer]",
		Code: "${reexpand ok}; ${join , scalar}",
	})
	if err == nil {
		t.Fatal("want error, got nil")
	}
	var de *diag.Error
	if !errors.As(err, &de) {
		t.Fatalf("error has type %T, want *diag.Error", err)
	}
	if de.Context.Name != "[outer]" {
		t.Errorf("context name = %q, want [outer]", de.Context.Name)
	}
	if got := de.Context.Source[de.Context.From:de.Context.To]; got != "scalar" {
		t.Errorf("culprit = %q, want scalar", got)
	}
}

// ${reexpand} never triggers history expansion, even when an expander is
// installed.
func TestReexpandSkipsHistoryExpansion(t *testing.T) {
	ev := eval.NewEvaler()
	ev.HistoryExpander = func(line string) (string, error) {
		t.Errorf("history expander called with %q", line)
		return line, nil
	}
	got := evalFlat(t, ev, "${reexpand '!!'}")
	if diff := cmp.Diff([]string{"!!"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

// absentNode produces no value, which the immediates must treat as distinct
// from an empty string.
type absentNode struct{ diag.Ranging }

func (absentNode) Run(ast.Context) (ast.Value, error) { return nil, nil }

func TestAbsentValues(t *testing.T) {
	ev := eval.NewEvaler()

	lengthOfAbsent := &ast.ImmediateExpression{
		Function: ast.NameWithPosition{Name: "length"},
		Args:     []ast.Node{absentNode{}},
	}
	v, err := lengthOfAbsent.Run(ev)
	if err != nil {
		t.Fatal(err)
	}
	if got := ast.AsString(v); got != "0" {
		t.Errorf("length of absent value = %q, want 0", got)
	}

	splitAbsent := &ast.ImmediateExpression{
		Function: ast.NameWithPosition{Name: "split"},
		Args:     []ast.Node{&ast.Bareword{Text: ":"}, absentNode{}},
	}
	v, err = splitAbsent.Run(ev)
	if err != nil {
		t.Fatal(err)
	}
	if got := ast.Flatten(v); len(got) != 0 {
		t.Errorf("split of absent value = %v, want empty list", got)
	}
}

func TestUnknownImmediateFunction(t *testing.T) {
	ev := eval.NewEvaler()
	invoking := &ast.ImmediateExpression{Function: ast.NameWithPosition{Name: "frobnicate"}}
	_, err := ev.RunImmediateFunction("frobnicate", invoking, nil)
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if !strings.Contains(err.Error(), "unknown immediate function frobnicate") {
		t.Errorf("got error %q", err.Error())
	}
	if !eval.IsDiagnosed(err) {
		t.Errorf("error not diagnosed: %v", err)
	}
}

// The parser consults the same registry, so an unknown name is rejected
// before evaluation even starts.
func TestUnknownImmediateFunctionAtParseTime(t *testing.T) {
	ev := eval.NewEvaler()
	_, err := ev.Eval(parse.Source{Name: "[test]", Code: "${frobnicate a}"})
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if !strings.Contains(err.Error(), "unknown immediate function frobnicate") {
		t.Errorf("got error %q", err.Error())
	}
}

func TestHasImmediateFunction(t *testing.T) {
	names := []string{
		"length", "length_across", "length_of_variable",
		"split", "join", "remove_prefix", "remove_suffix",
		"regex_replace", "filter_glob", "concat_lists",
		"value_or_default", "assign_default", "error_if_empty",
		"null_or_alternative", "defined_value_or_default",
		"assign_defined_default", "error_if_unset",
		"null_if_unset_or_alternative", "reexpand",
	}
	for _, name := range names {
		if !eval.HasImmediateFunction(name) {
			t.Errorf("HasImmediateFunction(%q) = false, want true", name)
		}
	}
	if eval.HasImmediateFunction("frobnicate") {
		t.Errorf("HasImmediateFunction(frobnicate) = true, want false")
	}
}
