// Package usage parses the command usage grammar into an abstract syntax tree.
//
// The grammar is small and fixed:
//
//	usage        := expression
//	expression   := term+
//	term         := placeholder | literal | optional | alternatives
//	placeholder  := '<' name '>' | '<' name '...>'
//	literal      := "'" text "'"
//	optional     := '[' expression ']'
//	alternatives := '(' expression ('|' expression)+ ')'
//
// A placeholder name may carry a type suffix introduced by a colon
// (<amount:int>); the last colon wins, so names containing colons must
// declare an explicit type. A placeholder ending in "..." captures all
// remaining input and is only legal as the final term of the grammar.
package usage

// Node is a single element of a parsed usage string.
type Node interface {
	node()
}

// Sequence is an ordered run of terms matched left to right.
type Sequence struct {
	Children []Node
}

// Alternatives matches exactly one of its branches. Branches are tried
// in declaration order and the first match wins.
type Alternatives struct {
	Branches []Node
}

// Optional matches its child or nothing.
type Optional struct {
	Child Node
}

// Literal matches its text verbatim.
type Literal struct {
	Text string
	Pos  int
}

// Placeholder matches one run of non-whitespace characters.
type Placeholder struct {
	Name string
	Type string // declared type from a ':type' suffix, "" when absent
	Pos  int
}

// TrailingPlaceholder matches all remaining input, whitespace included.
// It may not match the empty string and must be the final term.
type TrailingPlaceholder struct {
	Name string
	Type string
	Pos  int
}

func (*Sequence) node()            {}
func (*Alternatives) node()        {}
func (*Optional) node()            {}
func (*Literal) node()             {}
func (*Placeholder) node()         {}
func (*TrailingPlaceholder) node() {}
