// Package query parses the boolean search syntax into an expression tree.
//
// The grammar is the classic one of desktop full-text search tools:
//
//	fox Lorem              implicit OR
//	fox AND dog            also && ; AND binds tighter than OR
//	NOT dog, -dog, !dog    negation binds tightest
//	fox -dog               fox without dog; "fox OR -dog" is a union
//	filename:pom.xml       field-scoped term (contents is the default field)
//	path:(src OR test)     field-scoped group
//	"quick brown fox"      phrase
//	test*, te?t            wildcards
//	end\:text              backslash escapes any character
//
// Parsing performs no I/O and does not analyze values; the executor does that
// with the settings of the index being searched.
package query

import (
	"strings"

	"github.com/Aman-CERP/psearch/internal/store"
)

// Node is one node of a query expression tree.
type Node interface {
	// String renders the node in query syntax.
	String() string
	node()
}

// Term matches documents whose field contains Value.
type Term struct {
	Field store.Field
	Value string
}

// Phrase matches documents whose field contains the words of Text at
// consecutive positions. On exact fields it matches Text literally.
type Phrase struct {
	Field store.Field
	Text  string
	// Terms is Text split on whitespace.
	Terms []string
}

// Wildcard matches documents with a term of Field that matches Pattern.
// Prefix is the literal text before the first wildcard; every matching term
// starts with it. Pattern uses github.com/gobwas/glob syntax.
type Wildcard struct {
	Field   store.Field
	Prefix  string
	Pattern string
}

// And matches documents matched by every child.
type And struct {
	Children []Node
}

// Or matches documents matched by at least one child.
type Or struct {
	Children []Node
}

// Not matches every document its child does not match.
type Not struct {
	Child Node
}

func (*Term) node()     {}
func (*Phrase) node()   {}
func (*Wildcard) node() {}
func (*And) node()      {}
func (*Or) node()       {}
func (*Not) node()      {}

func (t *Term) String() string {
	return string(t.Field) + ":" + escape(t.Value)
}

func (p *Phrase) String() string {
	return string(p.Field) + `:"` + phraseEscaper.Replace(p.Text) + `"`
}

func (w *Wildcard) String() string {
	// the glob pattern already escapes '*', '?' and '\'
	var sb strings.Builder
	for _, r := range w.Pattern {
		switch r {
		case '(', ')', '"', ':', ' ', '\t', '\n', '\r':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return string(w.Field) + ":" + sb.String()
}

func (a *And) String() string {
	return join(a.Children, " AND ")
}

func (o *Or) String() string {
	return join(o.Children, " OR ")
}

func (n *Not) String() string {
	return "NOT " + n.Child.String()
}

func join(children []Node, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

var phraseEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// escape quotes the characters that have a meaning in the query syntax.
func escape(s string) string {
	switch s {
	case "AND", "OR", "NOT":
		return `\` + s
	}
	var sb strings.Builder
	for i, r := range s {
		if isSpecial(r) || (i == 0 && isOperatorStart(r)) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isOperatorStart(r rune) bool {
	return r == '-' || r == '!' || r == '&' || r == '|'
}

func isSpecial(r rune) bool {
	switch r {
	case '\\', '(', ')', '"', ':', '*', '?', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// newAnd flattens nested conjunctions and unwraps a single child.
func newAnd(children []Node) Node {
	var flat []Node
	for _, c := range children {
		if a, ok := c.(*And); ok {
			flat = append(flat, a.Children...)
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &And{Children: flat}
}

// newOr flattens nested disjunctions and unwraps a single child.
func newOr(children []Node) Node {
	var flat []Node
	for _, c := range children {
		if o, ok := c.(*Or); ok {
			flat = append(flat, o.Children...)
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Or{Children: flat}
}
