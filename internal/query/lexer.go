package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gobwas/glob"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokColon
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokWord:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokColon:
		return "':'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	}
	return "token"
}

type token struct {
	kind tokenKind
	// pos and end are byte offsets into the input.
	pos, end int
	// text is the unescaped value of a word or phrase.
	text string

	// set for words holding an unescaped '*' or '?'
	wildcard bool
	prefix   string
	pattern  string
}

type lexer struct {
	input  string
	pos    int
	tokens []token
}

// lex splits input into tokens, ending with a tokEOF.
func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	for {
		l.skipSpace()
		if l.pos >= len(l.input) {
			l.tokens = append(l.tokens, token{kind: tokEOF, pos: l.pos, end: l.pos})
			return l.tokens, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

func (l *lexer) emit(kind tokenKind, width int) {
	l.tokens = append(l.tokens, token{kind: kind, pos: l.pos, end: l.pos + width})
	l.pos += width
}

func (l *lexer) next() error {
	rest := l.input[l.pos:]
	switch {
	case rest[0] == '(':
		l.emit(tokLParen, 1)
	case rest[0] == ')':
		l.emit(tokRParen, 1)
	case rest[0] == ':':
		l.emit(tokColon, 1)
	case rest[0] == '"':
		return l.phrase()
	case strings.HasPrefix(rest, "&&"):
		l.emit(tokAnd, 2)
	case strings.HasPrefix(rest, "||"):
		l.emit(tokOr, 2)
	case rest[0] == '!':
		l.emit(tokNot, 1)
	case rest[0] == '-' && len(rest) > 1 && startsOperand(rest[1:]):
		l.emit(tokNot, 1)
	default:
		return l.word()
	}
	return nil
}

// startsOperand reports whether s begins with something a '-' can negate.
func startsOperand(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return !unicode.IsSpace(r) && r != ')' && r != ':'
}

func (l *lexer) phrase() error {
	start := l.pos
	var sb strings.Builder
	i := l.pos + 1
	for i < len(l.input) {
		c := l.input[i]
		switch c {
		case '\\':
			if i+1 >= len(l.input) {
				return pserrors.QuerySyntaxError(i, "dangling escape character", nil)
			}
			_, size := utf8.DecodeRuneInString(l.input[i+1:])
			sb.WriteString(l.input[i+1 : i+1+size])
			i += 1 + size
		case '"':
			l.tokens = append(l.tokens, token{kind: tokPhrase, pos: start, end: i + 1, text: sb.String()})
			l.pos = i + 1
			return nil
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return pserrors.QuerySyntaxError(start, "unterminated phrase", nil)
}

func (l *lexer) word() error {
	start := l.pos
	var (
		text     strings.Builder // unescaped value
		literal  strings.Builder // current literal run, for the glob pattern
		pattern  strings.Builder
		prefix   string
		wildcard bool
		escaped  bool
	)

	i := l.pos
loop:
	for i < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[i:])
		switch {
		case unicode.IsSpace(r), r == '(', r == ')', r == '"', r == ':':
			break loop
		case r == '\\':
			if i+size >= len(l.input) {
				return pserrors.QuerySyntaxError(i, "dangling escape character", nil)
			}
			er, esize := utf8.DecodeRuneInString(l.input[i+size:])
			text.WriteRune(er)
			literal.WriteRune(er)
			escaped = true
			i += size + esize
		case r == '*' || r == '?':
			if !wildcard {
				prefix = text.String()
				wildcard = true
			}
			pattern.WriteString(glob.QuoteMeta(literal.String()))
			literal.Reset()
			pattern.WriteRune(r)
			text.WriteRune(r)
			i += size
		default:
			text.WriteRune(r)
			literal.WriteRune(r)
			i += size
		}
	}

	tok := token{kind: tokWord, pos: start, end: i, text: text.String()}
	if wildcard {
		pattern.WriteString(glob.QuoteMeta(literal.String()))
		tok.wildcard = true
		tok.prefix = prefix
		tok.pattern = pattern.String()
	}
	if !escaped {
		switch tok.text {
		case "AND":
			tok.kind = tokAnd
		case "OR":
			tok.kind = tokOr
		case "NOT":
			tok.kind = tokNot
		}
	}
	l.tokens = append(l.tokens, tok)
	l.pos = i
	return nil
}
