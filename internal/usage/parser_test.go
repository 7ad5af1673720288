package usage

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Node
	}{
		{
			name:  "single placeholder",
			input: "<foo>",
			want:  &Placeholder{Name: "foo"},
		},
		{
			name:  "typed placeholder",
			input: "<amount:int>",
			want:  &Placeholder{Name: "amount", Type: "int"},
		},
		{
			name:  "colon in name needs explicit type",
			input: "<a:b:string>",
			want:  &Placeholder{Name: "a:b", Type: "string"},
		},
		{
			name:  "trailing placeholder",
			input: "<rest...>",
			want:  &TrailingPlaceholder{Name: "rest"},
		},
		{
			name:  "typed trailing placeholder",
			input: "<rest:string...>",
			want:  &TrailingPlaceholder{Name: "rest", Type: "string"},
		},
		{
			name:  "literal",
			input: "'on'",
			want:  &Literal{Text: "on"},
		},
		{
			name:  "sequence",
			input: "<foo> <bar>",
			want: &Sequence{Children: []Node{
				&Placeholder{Name: "foo"},
				&Placeholder{Name: "bar"},
			}},
		},
		{
			name:  "optional group",
			input: "<name> ['verbose']",
			want: &Sequence{Children: []Node{
				&Placeholder{Name: "name"},
				&Optional{Child: &Literal{Text: "verbose"}},
			}},
		},
		{
			name:  "alternatives",
			input: "('on' | 'off')",
			want: &Alternatives{Branches: []Node{
				&Literal{Text: "on"},
				&Literal{Text: "off"},
			}},
		},
		{
			name:  "placeholder or literal",
			input: "(<user> | 'me')",
			want: &Alternatives{Branches: []Node{
				&Placeholder{Name: "user"},
				&Literal{Text: "me"},
			}},
		},
		{
			name:  "nested groups",
			input: "'set' (<key> | 'all') [<value>] <rest...>",
			want: &Sequence{Children: []Node{
				&Literal{Text: "set"},
				&Alternatives{Branches: []Node{
					&Placeholder{Name: "key"},
					&Literal{Text: "all"},
				}},
				&Optional{Child: &Placeholder{Name: "value"}},
				&TrailingPlaceholder{Name: "rest"},
			}},
		},
		{
			name:  "trailing inside final alternatives branch",
			input: "'say' (<word> | <text...>)",
			want: &Sequence{Children: []Node{
				&Literal{Text: "say"},
				&Alternatives{Branches: []Node{
					&Placeholder{Name: "word"},
					&TrailingPlaceholder{Name: "text"},
				}},
			}},
		},
		{
			name:  "insignificant whitespace",
			input: "  <foo>   <bar>  ",
			want: &Sequence{Children: []Node{
				&Placeholder{Name: "foo"},
				&Placeholder{Name: "bar"},
			}},
		},
	}

	ignorePos := cmpopts.IgnoreFields(Placeholder{}, "Pos")
	ignoreTrailPos := cmpopts.IgnoreFields(TrailingPlaceholder{}, "Pos")
	ignoreLitPos := cmpopts.IgnoreFields(Literal{}, "Pos")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got, ignorePos, ignoreTrailPos, ignoreLitPos); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"unterminated placeholder", "<foo"},
		{"unterminated literal", "'foo"},
		{"unterminated optional", "[<foo>"},
		{"unterminated alternatives", "(<foo> | <bar>"},
		{"single branch alternatives", "(<foo>)"},
		{"empty placeholder name", "<>"},
		{"empty type", "<foo:>"},
		{"empty literal", "''"},
		{"empty optional", "[]"},
		{"bare text", "foo"},
		{"stray closing bracket", "<foo> ]"},
		{"trailing placeholder before another term", "<rest...> <foo>"},
		{"trailing placeholder in non-final optional", "[<rest...>] <foo>"},
		{"trailing placeholder in non-final branch", "(<rest...> | <a>) <b>"},
		{"two trailing placeholders", "<a...> <b...>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want syntax error", tt.input)
			}
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Errorf("Parse(%q) error = %T, want *SyntaxError", tt.input, err)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("<foo> <bar")
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("error = %v, want *SyntaxError", err)
	}
	if syntaxErr.Pos != 6 {
		t.Errorf("Pos = %d, want 6", syntaxErr.Pos)
	}
}
