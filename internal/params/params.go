// Package params applies a compiled usage pattern to a concrete input
// string and exposes the captured values as named, optionally typed,
// parameters.
package params

import (
	"fmt"
	"slices"
)

// Parameters is an ordered mapping from parameter name to captured
// value(s). A name owns several values when it occurs more than once in
// the usage grammar; values keep their left-to-right match order. Names
// inside unmatched optional groups are absent, never empty.
type Parameters struct {
	names  []string
	values map[string][]string
	typed  map[string][]any
}

func newParameters() *Parameters {
	return &Parameters{
		values: make(map[string][]string),
		typed:  make(map[string][]any),
	}
}

func (p *Parameters) add(name, value string, typedValue any) {
	if _, seen := p.values[name]; !seen {
		p.names = append(p.names, name)
	}
	p.values[name] = append(p.values[name], value)
	p.typed[name] = append(p.typed[name], typedValue)
}

// Names returns the parameter names in order of first appearance.
func (p *Parameters) Names() []string { return slices.Clone(p.names) }

// Len reports the number of distinct parameter names.
func (p *Parameters) Len() int { return len(p.names) }

// Has reports whether a name was matched.
func (p *Parameters) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Get returns the first captured value for a name.
func (p *Parameters) Get(name string) (string, bool) {
	vals, ok := p.values[name]
	if !ok {
		return "", false
	}
	return vals[0], true
}

// All returns every captured value for a name, in match order.
func (p *Parameters) All(name string) []string {
	return slices.Clone(p.values[name])
}

// Typed returns the first converted value for a name. For parameters
// parsed without a conversion registry the typed value is the raw string.
func (p *Parameters) Typed(name string) (any, bool) {
	vals, ok := p.typed[name]
	if !ok {
		return nil, false
	}
	return vals[0], true
}

// TypedAll returns every converted value for a name, in match order.
func (p *Parameters) TypedAll(name string) []any {
	return slices.Clone(p.typed[name])
}

// Reassign moves all values captured under one name to another. It is
// the explicit post-match escape hatch for ambiguous alternatives: when
// input matched the first-declared branch but the caller knows it belongs
// under the other name, the caller decides. The parser never re-binds
// automatically.
func (p *Parameters) Reassign(from, to string) error {
	if from == to {
		return nil
	}
	vals, ok := p.values[from]
	if !ok {
		return fmt.Errorf("no parameter named %q to reassign", from)
	}

	if _, exists := p.values[to]; !exists {
		p.names = append(p.names, to)
	}
	p.values[to] = append(p.values[to], vals...)
	p.typed[to] = append(p.typed[to], p.typed[from]...)

	delete(p.values, from)
	delete(p.typed, from)
	p.names = slices.DeleteFunc(p.names, func(n string) bool { return n == from })
	return nil
}
