package interp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tokenring-ai/chatscript/internal/parser"
	"github.com/tokenring-ai/chatscript/internal/value"
)

// mockLLM echoes the rendered prompt with a marker prefix.
type mockLLM struct {
	response string
	prompts  []string
}

func (m *mockLLM) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.prompts = append(m.prompts, prompt)
	if m.response != "" {
		return m.response, nil
	}
	return "echo:" + prompt, nil
}

type mockCode struct {
	result value.Value
	bodies []string
	params []map[string]value.Value
}

func (m *mockCode) Execute(ctx context.Context, body string, params map[string]value.Value) (value.Value, error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, err
	}
	m.bodies = append(m.bodies, body)
	m.params = append(m.params, params)
	return m.result, nil
}

type mockHuman struct {
	input   string
	confirm bool
}

func (m *mockHuman) RequestInput(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.input, nil
}

func (m *mockHuman) RequestConfirmation(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return m.confirm, nil
}

// run parses and executes src, capturing /echo output.
func run(t *testing.T, src string, opts ...Option) (string, value.Value, error) {
	t.Helper()
	return runCtx(t, context.Background(), src, opts...)
}

func runCtx(t *testing.T, ctx context.Context, src string, opts ...Option) (string, value.Value, error) {
	t.Helper()
	var out strings.Builder
	opts = append(opts, WithOutputWriter(func(text string) error {
		out.WriteString(text)
		return nil
	}))
	in := New(opts...)

	stmts, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	v, err := in.Execute(ctx, stmts, NewEnvironment(nil))
	return out.String(), v, err
}

func TestEchoInterpolation(t *testing.T) {
	out, _, err := run(t, `
/var $x = "world"
/echo "hello $x"
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello world\n" {
		t.Errorf("expected 'hello world\\n', got %q", out)
	}
}

func TestInterpolationAtAssignmentTime(t *testing.T) {
	out, _, err := run(t, `
/var $x = "1"
/var $y = "$x"
/var $x = "2"
/echo $y
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n" {
		t.Errorf("expected captured value '1\\n', got %q", out)
	}
}

func TestInterpolationUnboundIsEmpty(t *testing.T) {
	out, _, err := run(t, `/echo "val=$missing."`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "val=.\n" {
		t.Errorf("expected 'val=.\\n', got %q", out)
	}
}

func TestDirectUnboundReferenceFails(t *testing.T) {
	_, _, err := run(t, `/echo $missing`)
	var unbound *UnboundVariableError
	if !errors.As(err, &unbound) {
		t.Fatalf("expected UnboundVariableError, got %v", err)
	}
	if unbound.Name != "$missing" {
		t.Errorf("expected name '$missing', got %q", unbound.Name)
	}
}

func TestTruthiness(t *testing.T) {
	tests := []struct {
		cond string
		want string
	}{
		{`"x"`, "then\n"},
		{`""`, "else\n"},
		{`"0"`, "then\n"},
		{`"false"`, "then\n"},
		{`0`, "else\n"},
		{`1`, "then\n"},
		{`true`, "then\n"},
		{`false`, "else\n"},
	}
	for _, tt := range tests {
		src := fmt.Sprintf(`/if %s { /echo "then" } else { /echo "else" }`, tt.cond)
		out, _, err := run(t, src)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.cond, err)
		}
		if out != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.cond, tt.want, out)
		}
	}
}

func TestIfWithoutElseFalsy(t *testing.T) {
	out, _, err := run(t, `/if "" { /echo "never" }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestForOrderedIteration(t *testing.T) {
	out, _, err := run(t, `
/list @xs = ["a", "b", "c"]
/for $x in @xs { /echo $x }
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a\nb\nc\n" {
		t.Errorf("expected 'a\\nb\\nc\\n', got %q", out)
	}
}

func TestForLoopVariableScoped(t *testing.T) {
	// The loop variable and body-local declarations vanish after the loop.
	out, _, err := run(t, `
/list @xs = ["only"]
/for $x in @xs { /var $y = $x }
/echo "x=$x y=$y"
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "x= y=\n" {
		t.Errorf("expected loop bindings out of scope, got %q", out)
	}
}

func TestForMutatesOuterVariable(t *testing.T) {
	// Assignment to an outer binding rebinds at its declaring scope.
	out, _, err := run(t, `
/var $last = ""
/list @xs = ["a", "b"]
/for $x in @xs { /var $last = $x }
/echo $last
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "b\n" {
		t.Errorf("expected 'b\\n', got %q", out)
	}
}

func TestWhileConditionSeesBodyMutation(t *testing.T) {
	out, _, err := run(t, `
/var $flag = "go"
/while $flag {
  /echo $flag
  /var $flag = ""
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "go\n" {
		t.Errorf("expected one iteration, got %q", out)
	}
}

func TestBreakStopsLoop(t *testing.T) {
	out, _, err := run(t, `
/list @xs = ["a", "b", "c"]
/for $x in @xs {
  /echo $x
  /break
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a\n" {
		t.Errorf("expected 'a\\n', got %q", out)
	}
}

func TestContinueSkipsRest(t *testing.T) {
	out, _, err := run(t, `
/list @xs = ["a", "b"]
/for $x in @xs {
  /continue
  /echo $x
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestBreakInWhile(t *testing.T) {
	out, _, err := run(t, `
/while true {
  /echo "once"
  /break
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "once\n" {
		t.Errorf("expected 'once\\n', got %q", out)
	}
}

func TestBreakOutsideLoopFails(t *testing.T) {
	_, _, err := run(t, `/break`)
	if err == nil {
		t.Fatalf("expected an error for /break outside a loop")
	}
}

func TestStaticFunction(t *testing.T) {
	out, v, err := run(t, `
/func static greet($name) => "Hello, $name!"
/call greet("World")
/echo call greet("Go")
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello, Go!\n" {
		t.Errorf("expected echoed call result, got %q", out)
	}
	if v.String() != "Hello, Go!" {
		t.Errorf("expected final value 'Hello, Go!', got %q", v)
	}
}

func TestCallResultIsFinalValue(t *testing.T) {
	_, v, err := run(t, `
/func static pick() => "chosen"
/call pick()
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "chosen" {
		t.Errorf("expected 'chosen', got %q", v)
	}
}

func TestUnknownFunction(t *testing.T) {
	_, _, err := run(t, `/call nope()`)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if callErr.Func != "nope" {
		t.Errorf("expected func 'nope', got %q", callErr.Func)
	}
}

func TestArityMismatch(t *testing.T) {
	_, _, err := run(t, `
/func static greet($name) => "Hi $name"
/call greet("a", "b")
`)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if !strings.Contains(callErr.Msg, "arity") {
		t.Errorf("expected arity message, got %q", callErr.Msg)
	}
}

func TestFuncDelete(t *testing.T) {
	_, _, err := run(t, `
/func static greet($name) => "Hi $name"
/func delete greet
/call greet("x")
`)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError after deletion, got %v", err)
	}
}

func TestLLMFunction(t *testing.T) {
	llm := &mockLLM{}
	out, _, err := run(t, `
/func llm ask($q) => "Q: $q"
/echo call ask("hi")
`, WithLLM(llm))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "echo:Q: hi\n" {
		t.Errorf("expected rendered prompt round-trip, got %q", out)
	}
	if len(llm.prompts) != 1 || llm.prompts[0] != "Q: hi" {
		t.Errorf("expected prompt 'Q: hi', got %v", llm.prompts)
	}
}

func TestLLMStructuredResult(t *testing.T) {
	llm := &mockLLM{response: `{"answer": 42}`}
	_, v, err := run(t, `
/func llm ask($q) => "$q"
/call ask("meaning?")
`, WithLLM(llm))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind() != value.KindStructured {
		t.Errorf("expected structured result, got %s", v.Kind())
	}
}

func TestLLMMissingCapability(t *testing.T) {
	_, _, err := run(t, `
/func llm ask($q) => "$q"
/call ask("hi")
`)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
}

func TestCodeFunction(t *testing.T) {
	code := &mockCode{result: value.Num(7)}
	_, v, err := run(t, `
/func js add($a, $b) { return a + b; }
/call add(3, 4)
`, WithCodeRunner(code))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Number() != 7 {
		t.Errorf("expected 7, got %v", v)
	}
	if len(code.bodies) != 1 || code.bodies[0] != "return a + b;" {
		t.Errorf("unexpected body %v", code.bodies)
	}
	p := code.params[0]
	if p["a"].Number() != 3 || p["b"].Number() != 4 {
		t.Errorf("unexpected bound params %v", p)
	}
}

func TestPromptBindsVariable(t *testing.T) {
	out, _, err := run(t, `
/prompt $name "Who?"
/echo "hi $name"
`, WithHumanInput(&mockHuman{input: "bob"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hi bob\n" {
		t.Errorf("expected 'hi bob\\n', got %q", out)
	}
}

func TestConfirmBindsBool(t *testing.T) {
	out, _, err := run(t, `
/confirm $ok "Proceed?"
/if $ok { /echo "yes" } else { /echo "no" }
`, WithHumanInput(&mockHuman{confirm: false}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "no\n" {
		t.Errorf("expected 'no\\n', got %q", out)
	}
}

func TestVarDeleteAbsentIsNonFatal(t *testing.T) {
	out, _, err := run(t, `
/var delete $ghost
/echo "still running"
`)
	if err != nil {
		t.Fatalf("expected non-fatal handling, got %v", err)
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("expected a not-found notice, got %q", out)
	}
	if !strings.Contains(out, "still running") {
		t.Errorf("expected execution to continue, got %q", out)
	}
}

func TestVarsListing(t *testing.T) {
	out, _, err := run(t, `
/var $b = "two"
/var $a = 1
/vars
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "$a = 1\n$b = two\n" {
		t.Errorf("expected sorted listing, got %q", out)
	}
}

func TestFuncsListing(t *testing.T) {
	out, _, err := run(t, `
/func static greet($name) => "Hi $name"
/funcs
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "static greet($name)") {
		t.Errorf("expected greet in listing, got %q", out)
	}
}

func TestSleepRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := runCtx(t, ctx, `/sleep 5000`)
	elapsed := time.Since(start)

	var cancelledErr *CancelledError
	if !errors.As(err, &cancelledErr) {
		t.Fatalf("expected CancelledError, got %v", err)
	}
	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		t.Errorf("cancellation must not be reported as a script error")
	}
	if elapsed > time.Second {
		t.Errorf("sleep did not abort promptly: %v", elapsed)
	}
}

func TestSleepCompletes(t *testing.T) {
	_, _, err := run(t, `/sleep 1`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSleepInvalidDuration(t *testing.T) {
	_, _, err := run(t, `/sleep "soon"`)
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("expected ScriptError, got %v", err)
	}
}

func TestGlobProducer(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "skip.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	src := fmt.Sprintf(`
/list @fs = glob("%s")
/for $f in @fs { /echo $f }
`, filepath.Join(dir, "*.txt"))
	out, _, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 matches, got %d: %q", len(lines), out)
	}
	if !strings.HasSuffix(lines[0], "a.txt") || !strings.HasSuffix(lines[1], "b.txt") {
		t.Errorf("unexpected matches %v", lines)
	}
}

// countingProducer records how many times Produce is invoked.
type countingProducer struct {
	produced int
	elems    []value.Value
}

func (p *countingProducer) Produce(ctx context.Context) (Iterator, error) {
	p.produced++
	return &valuesIterator{elems: p.elems}, nil
}

func TestProducerReinvokedPerLoop(t *testing.T) {
	p := &countingProducer{elems: []value.Value{value.Str("x")}}
	factory := func(args []value.Value) (Producer, error) { return p, nil }

	out, _, err := run(t, `
/list @xs = counted()
/for $x in @xs { /echo $x }
/for $x in @xs { /echo $x }
`, WithProducer("counted", factory))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "x\nx\n" {
		t.Errorf("expected both loops to iterate, got %q", out)
	}
	if p.produced != 2 {
		t.Errorf("expected 2 producer invocations, got %d", p.produced)
	}
}

func TestProducerListNotAValue(t *testing.T) {
	_, _, err := run(t, `
/list @fs = glob("*.none")
/echo @fs
`)
	if err == nil {
		t.Fatalf("expected an error using a producer-backed list as a value")
	}
}

func TestLiteralListAsValue(t *testing.T) {
	out, _, err := run(t, `
/list @xs = ["a", "b"]
/echo @xs
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a, b\n" {
		t.Errorf("expected 'a, b\\n', got %q", out)
	}
}

func TestUnknownProducer(t *testing.T) {
	_, _, err := run(t, `/list @xs = fetch("x")`)
	if err == nil {
		t.Fatalf("expected an error for an unknown producer")
	}
}

func TestScriptErrorCarriesPosition(t *testing.T) {
	_, _, err := run(t, "/echo \"ok\"\n/echo $missing")
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("expected ScriptError, got %v", err)
	}
	if scriptErr.Pos.Line != 2 {
		t.Errorf("expected error at line 2, got %d", scriptErr.Pos.Line)
	}
}

func TestErrorAbortsRemainder(t *testing.T) {
	out, _, err := run(t, `
/echo "before"
/echo $missing
/echo "after"
`)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !strings.Contains(out, "before") {
		t.Errorf("expected output before the fault, got %q", out)
	}
	if strings.Contains(out, "after") {
		t.Errorf("expected no output after the fault, got %q", out)
	}
}

func TestCommittedBindingsSurviveError(t *testing.T) {
	// Bindings committed before the fault remain in the environment.
	var out strings.Builder
	in := New(WithOutputWriter(func(text string) error {
		out.WriteString(text)
		return nil
	}))
	stmts, err := parser.Parse("/var $x = \"kept\"\n/echo $missing")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	env := NewEnvironment(nil)
	if _, err := in.Execute(context.Background(), stmts, env); err == nil {
		t.Fatalf("expected an error")
	}
	v, ok := env.Lookup("x")
	if !ok || v.String() != "kept" {
		t.Errorf("expected $x to survive the fault, got %v %v", v, ok)
	}
}
