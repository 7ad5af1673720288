package pattern

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// values flattens captures to their matched text for easy comparison.
func values(captures []Capture) []string {
	out := make([]string, len(captures))
	for i, c := range captures {
		out[i] = c.Value
	}
	return out
}

func names(captures []Capture) []string {
	out := make([]string, len(captures))
	for i, c := range captures {
		out[i] = c.Slot.Name
	}
	return out
}

func mustCompile(t *testing.T, usageStr string) *Compiled {
	t.Helper()
	compiled, err := Compile(usageStr)
	if err != nil {
		t.Fatalf("Compile(%q) returned error: %v", usageStr, err)
	}
	return compiled
}

func TestMatchBasic(t *testing.T) {
	tests := []struct {
		name      string
		usage     string
		input     string
		wantOK    bool
		wantNames []string
		wantVals  []string
	}{
		{
			name:      "two placeholders",
			usage:     "<foo> <bar>",
			input:     "x y",
			wantOK:    true,
			wantNames: []string{"foo", "bar"},
			wantVals:  []string{"x", "y"},
		},
		{
			name:   "too few tokens",
			usage:  "<foo> <bar>",
			input:  "x",
			wantOK: false,
		},
		{
			name:   "too many tokens",
			usage:  "<foo> <bar>",
			input:  "x y z",
			wantOK: false,
		},
		{
			name:      "literal captured under its text",
			usage:     "'set' <key>",
			input:     "set color",
			wantOK:    true,
			wantNames: []string{"set", "key"},
			wantVals:  []string{"set", "color"},
		},
		{
			name:   "literal is verbatim",
			usage:  "'set' <key>",
			input:  "get color",
			wantOK: false,
		},
		{
			name:      "optional present",
			usage:     "<name> ['verbose']",
			input:     "job1 verbose",
			wantOK:    true,
			wantNames: []string{"name", "verbose"},
			wantVals:  []string{"job1", "verbose"},
		},
		{
			name:      "optional absent leaves name out",
			usage:     "<name> ['verbose']",
			input:     "job1",
			wantOK:    true,
			wantNames: []string{"name"},
			wantVals:  []string{"job1"},
		},
		{
			name:      "leading optional absent",
			usage:     "['all'] <name>",
			input:     "job1",
			wantOK:    true,
			wantNames: []string{"name"},
			wantVals:  []string{"job1"},
		},
		{
			name:      "leading optional present",
			usage:     "['all'] <name>",
			input:     "all job1",
			wantOK:    true,
			wantNames: []string{"all", "name"},
			wantVals:  []string{"all", "job1"},
		},
		{
			name:      "duplicate names accumulate in order",
			usage:     "<foo> <foo>",
			input:     "a b",
			wantOK:    true,
			wantNames: []string{"foo", "foo"},
			wantVals:  []string{"a", "b"},
		},
		{
			name:      "consecutive optionals both present",
			usage:     "[<a>] [<b>]",
			input:     "x y",
			wantOK:    true,
			wantNames: []string{"a", "b"},
			wantVals:  []string{"x", "y"},
		},
		{
			name:      "consecutive optionals first only",
			usage:     "[<a>] [<b>]",
			input:     "x",
			wantOK:    true,
			wantNames: []string{"a"},
			wantVals:  []string{"x"},
		},
		{
			name:      "consecutive optionals both absent",
			usage:     "[<a>] [<b>]",
			input:     "",
			wantOK:    true,
			wantNames: []string{},
			wantVals:  []string{},
		},
		{
			name:   "consecutive optionals keep edges strict",
			usage:  "[<a>] [<b>]",
			input:  " x",
			wantOK: false,
		},
		{
			name:      "consecutive optionals before mandatory, all present",
			usage:     "[<a>] [<b>] <c>",
			input:     "x y z",
			wantOK:    true,
			wantNames: []string{"a", "b", "c"},
			wantVals:  []string{"x", "y", "z"},
		},
		{
			name:      "consecutive optionals before mandatory, one present",
			usage:     "[<a>] [<b>] <c>",
			input:     "x z",
			wantOK:    true,
			wantNames: []string{"a", "c"},
			wantVals:  []string{"x", "z"},
		},
		{
			name:      "consecutive optionals before mandatory, none present",
			usage:     "[<a>] [<b>] <c>",
			input:     "z",
			wantOK:    true,
			wantNames: []string{"c"},
			wantVals:  []string{"z"},
		},
		{
			name:      "consecutive optional literals bind in order",
			usage:     "['all'] ['force']",
			input:     "force",
			wantOK:    true,
			wantNames: []string{"force"},
			wantVals:  []string{"force"},
		},
		{
			name:   "consecutive optional literals reject joined tokens",
			usage:  "['all'] ['force']",
			input:  "allforce",
			wantOK: false,
		},
		{
			name:   "no whitespace allowed at edges",
			usage:  "<foo>",
			input:  " x",
			wantOK: false,
		},
		{
			name:   "placeholder does not span whitespace",
			usage:  "<foo>",
			input:  "x y",
			wantOK: false,
		},
		{
			name:      "trailing placeholder must not be empty",
			usage:     "'say' <text...>",
			input:     "say hello there",
			wantOK:    true,
			wantNames: []string{"say", "text"},
			wantVals:  []string{"say", "hello there"},
		},
		{
			name:   "trailing placeholder rejects empty remainder",
			usage:  "'say' <text...>",
			input:  "say",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled := mustCompile(t, tt.usage)
			captures, ok := compiled.Match(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.wantNames, names(captures)); diff != "" {
				t.Errorf("capture names mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantVals, values(captures)); diff != "" {
				t.Errorf("capture values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatchDeterminism(t *testing.T) {
	const usageStr = "'give' <user> <amount:int> [<reason...>]"
	const input = "give alice 40 for being helpful"

	first := mustCompile(t, usageStr)
	second := mustCompile(t, usageStr)

	capsA, okA := first.Match(input)
	capsB, okB := second.Match(input)
	if !okA || !okB {
		t.Fatalf("matches failed: %v %v", okA, okB)
	}
	if diff := cmp.Diff(capsA, capsB); diff != "" {
		t.Errorf("independent compilations disagree (-first +second):\n%s", diff)
	}
}

func TestMatchReassembly(t *testing.T) {
	// Joining matched slot values with single spaces must reproduce an
	// input that matches to the same captures.
	usages := []string{
		"<a> <b> <c>",
		"'mv' <src> <dst>",
		"<foo> <foo>",
	}
	inputs := []string{
		"one two three",
		"mv a.txt b.txt",
		"a b",
	}

	for i, usageStr := range usages {
		compiled := mustCompile(t, usageStr)
		caps, ok := compiled.Match(inputs[i])
		if !ok {
			t.Fatalf("Match(%q, %q) failed", usageStr, inputs[i])
		}
		rebuilt := strings.Join(values(caps), " ")
		again, ok := compiled.Match(rebuilt)
		if !ok {
			t.Fatalf("re-match of %q failed", rebuilt)
		}
		if diff := cmp.Diff(caps, again); diff != "" {
			t.Errorf("reassembled match differs (-orig +rebuilt):\n%s", diff)
		}
	}
}

func TestTrailingPlaceholderKeepsWhitespaceVerbatim(t *testing.T) {
	compiled := mustCompile(t, "'post' <body...>")
	input := "post line one\nline  two\n\tindented"

	caps, ok := compiled.Match(input)
	if !ok {
		t.Fatal("match failed")
	}
	got := caps[len(caps)-1].Value
	want := "line one\nline  two\n\tindented"
	if got != want {
		t.Errorf("trailing capture = %q, want %q", got, want)
	}
}

func TestAlternativesFirstBranchWins(t *testing.T) {
	// Placeholder declared first: the ambiguous input binds to it.
	compiled := mustCompile(t, "(<a> | 'literal')")
	caps, ok := compiled.Match("literal")
	if !ok {
		t.Fatal("match failed")
	}
	if len(caps) != 1 || caps[0].Slot.Name != "a" {
		t.Fatalf("captures = %+v, want single capture bound to %q", caps, "a")
	}

	// Literal declared first: same input binds to the literal slot.
	compiled = mustCompile(t, "('literal' | <a>)")
	caps, ok = compiled.Match("literal")
	if !ok {
		t.Fatal("match failed")
	}
	if len(caps) != 1 || caps[0].Slot.Name != "literal" {
		t.Fatalf("captures = %+v, want single capture bound to %q", caps, "literal")
	}
}

func TestSlotIndices(t *testing.T) {
	compiled := mustCompile(t, "<foo> 'on' <foo> <bar>")

	if got := compiled.SlotIndices("foo"); !cmp.Equal(got, []int{0, 2}) {
		t.Errorf("SlotIndices(foo) = %v, want [0 2]", got)
	}
	if got := compiled.SlotIndices("on"); !cmp.Equal(got, []int{1}) {
		t.Errorf("SlotIndices(on) = %v, want [1]", got)
	}
	if got := compiled.SlotIndices("missing"); got != nil {
		t.Errorf("SlotIndices(missing) = %v, want nil", got)
	}
}

func TestCompileRejectsBadUsage(t *testing.T) {
	if _, err := Compile("<foo"); err == nil {
		t.Error("Compile accepted an unterminated placeholder")
	}
}

func TestCacheSharesCompilation(t *testing.T) {
	var hits, misses int
	cache := NewCache(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	first, err := cache.Get("<foo> <bar>")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	second, err := cache.Get("<foo> <bar>")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if first != second {
		t.Error("cache returned distinct compilations for the same usage string")
	}
	if hits != 1 || misses != 1 {
		t.Errorf("hits = %d, misses = %d, want 1 and 1", hits, misses)
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	cache := NewCache(nil)
	for range 2 {
		if _, err := cache.Get("<broken"); err == nil {
			t.Fatal("Get accepted a malformed usage string")
		}
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d, want 0", cache.Len())
	}
}
