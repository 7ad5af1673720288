package usage

import (
	"fmt"
	"strings"
	"unicode"
)

// SyntaxError describes a malformed usage string. It is a configuration
// fault: command registration fails rather than deferring the error to
// the first invocation.
type SyntaxError struct {
	Pos int // rune offset into the usage string
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("usage syntax error at position %d: %s", e.Pos, e.Msg)
}

// Parse compiles a usage string into its AST root.
func Parse(input string) (Node, error) {
	p := &parser{src: []rune(input)}
	p.skipSpace()
	if p.eof() {
		return nil, &SyntaxError{Pos: 0, Msg: "empty usage string"}
	}

	root, err := p.parseExpression("")
	if err != nil {
		return nil, err
	}
	if err := validate(root); err != nil {
		return nil, err
	}
	return root, nil
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

// parseExpression parses terms until EOF or one of the stop runes.
// The stop runes themselves are not consumed.
func (p *parser) parseExpression(stop string) (Node, error) {
	var terms []Node
	for {
		p.skipSpace()
		if p.eof() || (stop != "" && strings.ContainsRune(stop, p.src[p.pos])) {
			break
		}

		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}

	switch len(terms) {
	case 0:
		return nil, &SyntaxError{Pos: p.pos, Msg: "expected at least one term"}
	case 1:
		return terms[0], nil
	default:
		return &Sequence{Children: terms}, nil
	}
}

func (p *parser) parseTerm() (Node, error) {
	switch p.src[p.pos] {
	case '<':
		return p.parsePlaceholder()
	case '\'':
		return p.parseLiteral()
	case '[':
		return p.parseOptional()
	case '(':
		return p.parseAlternatives()
	default:
		return nil, &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf("unexpected %q", p.src[p.pos])}
	}
}

func (p *parser) parsePlaceholder() (Node, error) {
	start := p.pos
	p.pos++ // consume '<'

	var body []rune
	for {
		if p.eof() {
			return nil, &SyntaxError{Pos: start, Msg: "unterminated placeholder"}
		}
		if p.src[p.pos] == '>' {
			p.pos++
			break
		}
		body = append(body, p.src[p.pos])
		p.pos++
	}

	name := string(body)
	trailing := strings.HasSuffix(name, "...")
	if trailing {
		name = strings.TrimSuffix(name, "...")
	}

	typ := ""
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		typ = name[idx+1:]
		name = name[:idx]
		if typ == "" {
			return nil, &SyntaxError{Pos: start, Msg: "placeholder has an empty type"}
		}
	}
	if name == "" {
		return nil, &SyntaxError{Pos: start, Msg: "placeholder has an empty name"}
	}

	if trailing {
		return &TrailingPlaceholder{Name: name, Type: typ, Pos: start}, nil
	}
	return &Placeholder{Name: name, Type: typ, Pos: start}, nil
}

func (p *parser) parseLiteral() (Node, error) {
	start := p.pos
	p.pos++ // consume opening quote

	var body []rune
	for {
		if p.eof() {
			return nil, &SyntaxError{Pos: start, Msg: "unterminated literal"}
		}
		if p.src[p.pos] == '\'' {
			p.pos++
			break
		}
		body = append(body, p.src[p.pos])
		p.pos++
	}

	if len(body) == 0 {
		return nil, &SyntaxError{Pos: start, Msg: "empty literal"}
	}
	return &Literal{Text: string(body), Pos: start}, nil
}

func (p *parser) parseOptional() (Node, error) {
	start := p.pos
	p.pos++ // consume '['

	child, err := p.parseExpression("]")
	if err != nil {
		return nil, err
	}
	if p.eof() || p.src[p.pos] != ']' {
		return nil, &SyntaxError{Pos: start, Msg: "unterminated optional group"}
	}
	p.pos++
	return &Optional{Child: child}, nil
}

func (p *parser) parseAlternatives() (Node, error) {
	start := p.pos
	p.pos++ // consume '('

	var branches []Node
	for {
		branch, err := p.parseExpression("|)")
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch)

		if p.eof() {
			return nil, &SyntaxError{Pos: start, Msg: "unterminated alternatives group"}
		}
		if p.src[p.pos] == '|' {
			p.pos++
			continue
		}
		p.pos++ // consume ')'
		break
	}

	if len(branches) < 2 {
		return nil, &SyntaxError{Pos: start, Msg: "alternatives need at least two branches"}
	}
	return &Alternatives{Branches: branches}, nil
}

// validate enforces the trailing-placeholder invariants: at most one may
// exist, and it must be the last term reachable by a straight-line path
// through the tree.
func validate(root Node) error {
	if n := countTrailing(root); n > 1 {
		return &SyntaxError{Pos: 0, Msg: "multiple trailing placeholders"}
	}
	return checkTrailingLast(root, true)
}

func countTrailing(n Node) int {
	switch t := n.(type) {
	case *TrailingPlaceholder:
		return 1
	case *Sequence:
		sum := 0
		for _, c := range t.Children {
			sum += countTrailing(c)
		}
		return sum
	case *Alternatives:
		sum := 0
		for _, b := range t.Branches {
			sum += countTrailing(b)
		}
		return sum
	case *Optional:
		return countTrailing(t.Child)
	default:
		return 0
	}
}

func checkTrailingLast(n Node, last bool) error {
	switch t := n.(type) {
	case *TrailingPlaceholder:
		if !last {
			return &SyntaxError{Pos: t.Pos, Msg: "trailing placeholder must be the final term"}
		}
	case *Sequence:
		for i, c := range t.Children {
			if err := checkTrailingLast(c, last && i == len(t.Children)-1); err != nil {
				return err
			}
		}
	case *Alternatives:
		for _, b := range t.Branches {
			if err := checkTrailingLast(b, last); err != nil {
				return err
			}
		}
	case *Optional:
		return checkTrailingLast(t.Child, last)
	}
	return nil
}
