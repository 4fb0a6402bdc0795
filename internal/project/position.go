package project

import "sort"

// ElementKind identifies what a position index entry covers.
type ElementKind uint8

const (
	ElementFeature ElementKind = iota + 1
	ElementScenario
	ElementStep
	ElementDefinition
)

// Element is a span of source text with semantic meaning. Columns are 1-based
// and inclusive.
type Element struct {
	Kind        ElementKind
	Line        int
	StartColumn int
	EndColumn   int
	Keyword     string
	Text        string
	// Binding is set on linked step references.
	Binding *StepDefinition
	// Definition is set on step definition elements.
	Definition *StepDefinition
}

// LineScope describes the block enclosing a line.
type LineScope uint8

const (
	ScopeNone LineScope = iota
	ScopeFeature
	ScopeScenario
	ScopeDefinition
)

// PositionInfo is the answer to a position lookup.
type PositionInfo struct {
	Line   int
	Column int
	// Element is the element under the cursor, or nil on whitespace.
	Element *Element
	Scope   LineScope
	// LineText is the full text of the queried line.
	LineText string
}

// PositionIndex maps 1-based (line, column) pairs to elements.
type PositionIndex struct {
	lines    []string
	scopes   []LineScope
	elements map[int][]*Element
}

// NewPositionIndex creates an index over the given source lines.
func NewPositionIndex(lines []string) *PositionIndex {
	return &PositionIndex{
		lines:    lines,
		scopes:   make([]LineScope, len(lines)),
		elements: make(map[int][]*Element),
	}
}

// Add records an element.
func (p *PositionIndex) Add(el *Element) {
	if p == nil || el == nil {
		return
	}
	list := append(p.elements[el.Line], el)
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartColumn < list[j].StartColumn })
	p.elements[el.Line] = list
}

// SetScope records the block that encloses line.
func (p *PositionIndex) SetScope(line int, scope LineScope) {
	if p == nil || line < 1 || line > len(p.scopes) {
		return
	}
	p.scopes[line-1] = scope
}

// Elements returns every element on line.
func (p *PositionIndex) Elements(line int) []*Element {
	if p == nil {
		return nil
	}
	return p.elements[line]
}

// Lookup finds the element at (line, column). The column just past the end of
// an element still resolves to it so that a cursor placed after a word finds
// the word. It returns nil when line is outside the indexed text.
func (p *PositionIndex) Lookup(line, column int) *PositionInfo {
	if p == nil || line < 1 || line > len(p.lines) {
		return nil
	}
	info := &PositionInfo{
		Line:     line,
		Column:   column,
		Scope:    p.scopes[line-1],
		LineText: p.lines[line-1],
	}
	for _, el := range p.elements[line] {
		if column >= el.StartColumn && column <= el.EndColumn+1 {
			info.Element = el
			break
		}
	}
	return info
}

// WithBindings returns a copy of the index in which every element present in
// bindings is replaced by a copy bound to its definition. The receiver is not
// modified.
func (p *PositionIndex) WithBindings(bindings map[*Element]*StepDefinition) *PositionIndex {
	if p == nil {
		return nil
	}
	out := &PositionIndex{
		lines:    p.lines,
		scopes:   p.scopes,
		elements: make(map[int][]*Element, len(p.elements)),
	}
	for line, list := range p.elements {
		cp := make([]*Element, len(list))
		for i, el := range list {
			if def, ok := bindings[el]; ok {
				bound := *el
				bound.Binding = def
				cp[i] = &bound
				continue
			}
			cp[i] = el
		}
		out.elements[line] = cp
	}
	return out
}

// LineCount returns the number of indexed lines.
func (p *PositionIndex) LineCount() int {
	if p == nil {
		return 0
	}
	return len(p.lines)
}
