package query

import (
	"fmt"
	"strconv"
	"strings"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/store"
)

// Parse parses input into an expression tree whose unscoped clauses search
// store.DefaultField.
//
// Malformed input fails with ERR_401_QUERY_SYNTAX and a field name outside
// the fixed field set with ERR_402_INVALID_FIELD; both carry the byte
// offset of the offending token in the "position" detail.
func Parse(input string) (Node, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	if p.peek().kind == tokEOF {
		return nil, pserrors.QuerySyntaxError(0, "empty query", nil)
	}
	node, err := p.parseOr(store.DefaultField)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.unexpected(tok)
	}
	return node, nil
}

// MustParse is Parse for queries known to be valid. It panics on error.
func MustParse(input string) Node {
	n, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// startsClause reports whether tok can begin a clause, which is what makes
// adjacent clauses an implicit OR (or an exclusion, for negations).
func startsClause(tok token) bool {
	switch tok.kind {
	case tokWord, tokPhrase, tokLParen, tokNot:
		return true
	}
	return false
}

func (p *parser) unexpected(tok token) error {
	if tok.kind == tokEOF {
		return pserrors.QuerySyntaxError(tok.pos, "unexpected end of query", nil)
	}
	return pserrors.QuerySyntaxError(tok.pos, fmt.Sprintf("unexpected %s", tok.kind), nil)
}

func (p *parser) expectClause(after token) error {
	if startsClause(p.peek()) {
		return nil
	}
	tok := p.peek()
	return pserrors.QuerySyntaxError(tok.pos,
		fmt.Sprintf("expected a clause after %s, got %s", after.kind, tok.kind), nil)
}

// orExpr := andExpr ( [OR] andExpr )*
//
// A bare negation joined to its neighbours without an explicit OR excludes
// instead of adding: "a b -c" is (a OR b) AND NOT c. "a OR -c" stays a union.
func (p *parser) parseOr(field store.Field) (Node, error) {
	var include, exclude []Node
	orBefore := false
	for {
		negated := p.peek().kind == tokNot
		clause, err := p.parseAnd(field)
		if err != nil {
			return nil, err
		}

		tok := p.peek()
		orAfter := tok.kind == tokOr
		if _, ok := clause.(*Not); ok && negated && !orBefore && !orAfter {
			exclude = append(exclude, clause)
		} else {
			include = append(include, clause)
		}

		if orAfter {
			p.advance()
			if err := p.expectClause(tok); err != nil {
				return nil, err
			}
		} else if !startsClause(tok) {
			break
		}
		orBefore = orAfter
	}

	if len(include) == 0 {
		// only negations: everything but what they name
		return newAnd(exclude), nil
	}
	return newAnd(append([]Node{newOr(include)}, exclude...)), nil
}

// andExpr := unary ( AND unary )*
func (p *parser) parseAnd(field store.Field) (Node, error) {
	first, err := p.parseUnary(field)
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.peek().kind == tokAnd {
		op := p.advance()
		if err := p.expectClause(op); err != nil {
			return nil, err
		}
		next, err := p.parseUnary(field)
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	return newAnd(children), nil
}

// unary := NOT unary | primary
func (p *parser) parseUnary(field store.Field) (Node, error) {
	if p.peek().kind != tokNot {
		return p.parsePrimary(field)
	}
	op := p.advance()
	if err := p.expectClause(op); err != nil {
		return nil, err
	}
	child, err := p.parseUnary(field)
	if err != nil {
		return nil, err
	}
	return &Not{Child: child}, nil
}

// primary := '(' orExpr ')' | WORD ':' value | value
func (p *parser) parsePrimary(field store.Field) (Node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokLParen:
		return p.parseGroup(tok, field)
	case tokPhrase:
		return phrase(field, tok)
	case tokWord:
		if next := p.peek(); next.kind == tokColon && next.pos == tok.end {
			return p.parseFielded(tok)
		}
		return leaf(field, tok), nil
	}
	return nil, p.unexpected(tok)
}

func (p *parser) parseGroup(open token, field store.Field) (Node, error) {
	if p.peek().kind == tokRParen {
		return nil, pserrors.QuerySyntaxError(open.pos, "empty group", nil)
	}
	inner, err := p.parseOr(field)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokRParen {
		return nil, pserrors.QuerySyntaxError(open.pos, "missing closing parenthesis", nil)
	}
	p.advance()
	return inner, nil
}

// parseFielded parses the value after "name:".
func (p *parser) parseFielded(name token) (Node, error) {
	if name.wildcard {
		return nil, pserrors.QuerySyntaxError(name.pos, "wildcard in field name", nil)
	}
	field, err := store.ParseField(name.text)
	if err != nil {
		return nil, pserrors.InvalidFieldError(name.text).WithDetail("position", strconv.Itoa(name.pos))
	}
	colon := p.advance()

	value := p.peek()
	switch {
	case value.kind == tokLParen && value.pos == colon.end:
		p.advance()
		return p.parseGroup(value, field)
	case value.kind == tokPhrase && value.pos == colon.end:
		p.advance()
		return phrase(field, value)
	case value.kind == tokWord && value.pos == colon.end:
		p.advance()
		return leaf(field, value), nil
	}
	return nil, pserrors.QuerySyntaxError(colon.end,
		fmt.Sprintf("missing value for field %q", name.text), nil)
}

func leaf(field store.Field, tok token) Node {
	if tok.wildcard {
		return &Wildcard{Field: field, Prefix: tok.prefix, Pattern: tok.pattern}
	}
	return &Term{Field: field, Value: tok.text}
}

func phrase(field store.Field, tok token) (Node, error) {
	terms := strings.Fields(tok.text)
	if len(terms) == 0 {
		return nil, pserrors.QuerySyntaxError(tok.pos, "empty phrase", nil)
	}
	return &Phrase{Field: field, Text: tok.text, Terms: terms}, nil
}
