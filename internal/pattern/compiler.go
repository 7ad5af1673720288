// Package pattern compiles a parsed usage grammar into an executable
// matcher: a single anchored regular expression plus an ordered list of
// capture slots and a name-to-slot-indices map for extracting values
// after a successful match.
package pattern

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/relay/internal/usage"
)

// Slot is one capture position in a compiled pattern. A logical name may
// own several slots when it occurs more than once in the grammar; slots
// are ordered left to right, depth first.
type Slot struct {
	// Name is the placeholder name, or the literal text for literal slots.
	Name string

	// Type is the declared parameter type, "" when unspecified.
	Type string

	// Literal marks slots produced by literal terms.
	Literal bool
}

// Capture is a slot that participated in a match, with the text it consumed.
type Capture struct {
	Slot  Slot
	Index int // index into Compiled slots
	Value string
}

// Compiled is an executable matcher for one usage string. It is immutable
// after compilation and safe for concurrent use.
type Compiled struct {
	usageStr string
	re       *regexp.Regexp
	slots    []Slot
	byName   map[string][]int
}

// Compile parses and compiles a usage string.
func Compile(usageStr string) (*Compiled, error) {
	root, err := usage.Parse(usageStr)
	if err != nil {
		return nil, err
	}
	return compile(usageStr, root), nil
}

// compile walks the AST and builds the matcher. All scratch state lives
// on the compiler value, which is discarded when compilation returns.
func compile(usageStr string, root usage.Node) *Compiled {
	c := &compiler{}
	c.sb.WriteString(`\A`)
	c.emit(root)
	c.sb.WriteString(`\z`)

	byName := make(map[string][]int)
	for i, s := range c.slots {
		byName[s.Name] = append(byName[s.Name], i)
	}

	return &Compiled{
		usageStr: usageStr,
		re:       regexp.MustCompile(c.sb.String()),
		slots:    c.slots,
		byName:   byName,
	}
}

// Usage returns the original usage string verbatim.
func (c *Compiled) Usage() string { return c.usageStr }

// Slots returns the ordered capture slots.
func (c *Compiled) Slots() []Slot { return c.slots }

// SlotIndices returns the slot indices owned by a name, in order of
// appearance, or nil if the name does not occur in the pattern.
func (c *Compiled) SlotIndices(name string) []int { return c.byName[name] }

// Match applies the pattern to an input string, anchored at both ends.
// It returns the participating captures in slot order. Slots inside
// unmatched optional groups or untaken alternative branches are absent,
// not empty.
func (c *Compiled) Match(input string) ([]Capture, bool) {
	m := c.re.FindStringSubmatchIndex(input)
	if m == nil {
		return nil, false
	}

	captures := make([]Capture, 0, len(c.slots))
	for i, s := range c.slots {
		lo, hi := m[2*(i+1)], m[2*(i+1)+1]
		if lo < 0 {
			continue
		}
		captures = append(captures, Capture{Slot: s, Index: i, Value: input[lo:hi]})
	}
	return captures, true
}

type compiler struct {
	sb    strings.Builder
	slots []Slot
}

func (c *compiler) emit(n usage.Node) {
	switch t := n.(type) {
	case *usage.Sequence:
		c.sequence(t.Children)
	case *usage.Alternatives:
		c.sb.WriteString("(?:")
		for i, b := range t.Branches {
			if i > 0 {
				c.sb.WriteByte('|')
			}
			c.emit(b)
		}
		c.sb.WriteByte(')')
	case *usage.Optional:
		c.sb.WriteString("(?:")
		c.emit(t.Child)
		c.sb.WriteString(")?")
	case *usage.Literal:
		c.sb.WriteByte('(')
		c.sb.WriteString(regexp.QuoteMeta(t.Text))
		c.sb.WriteByte(')')
		c.slots = append(c.slots, Slot{Name: t.Text, Literal: true})
	case *usage.Placeholder:
		c.sb.WriteString(`(\S+)`)
		c.slots = append(c.slots, Slot{Name: t.Name, Type: t.Type})
	case *usage.TrailingPlaceholder:
		c.sb.WriteString(`((?s:.+))`)
		c.slots = append(c.slots, Slot{Name: t.Name, Type: t.Type})
	}
}

// sequence joins consecutive terms with exactly one run of whitespace.
// An optional term absorbs its separator on the side that faces the
// first mandatory term, so an absent group leaves no stray whitespace
// requirement behind. A sequence with no mandatory term at all has no
// side to anchor the separators to and is emitted by allOptional.
func (c *compiler) sequence(children []usage.Node) {
	first := -1
	for i, child := range children {
		if _, ok := child.(*usage.Optional); !ok {
			first = i
			break
		}
	}
	if first == -1 {
		c.allOptional(children)
		return
	}

	for i, child := range children {
		opt, isOptional := child.(*usage.Optional)
		switch {
		case isOptional && i < first:
			c.sb.WriteString("(?:")
			c.emit(opt.Child)
			c.sb.WriteString(`\s+)?`)
		case isOptional:
			c.sb.WriteString(`(?:\s+`)
			c.emit(opt.Child)
			c.sb.WriteString(")?")
		case i > 0:
			c.sb.WriteString(`\s+`)
			c.emit(child)
		default:
			c.emit(child)
		}
	}
}

// allOptional emits a run of nothing but optional terms as an
// alternation over whichever term is present first; the terms after it
// each absorb a leading separator. Term contents are emitted once per
// branch, so a name may own one slot per branch it appears in.
func (c *compiler) allOptional(children []usage.Node) {
	c.sb.WriteString("(?:")
	for i := range children {
		if i > 0 {
			c.sb.WriteByte('|')
		}
		for j := i; j < len(children); j++ {
			opt := children[j].(*usage.Optional)
			if j == i {
				c.emit(opt.Child)
				continue
			}
			c.sb.WriteString(`(?:\s+`)
			c.emit(opt.Child)
			c.sb.WriteString(")?")
		}
	}
	c.sb.WriteString(")?")
}
