package herdmetrics

import (
	"fmt"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// TokenKind classifies a token produced by Tokenize.
type TokenKind int

const (
	TokenNumber TokenKind = iota
	TokenString
	TokenBoolean
	TokenFunction
	TokenOperator
	TokenParen
	TokenComma
	TokenField
	TokenEnd
)

// String returns the upper-case kind name used in error messages.
func (k TokenKind) String() string {
	switch k {
	case TokenNumber:
		return "NUMBER"
	case TokenString:
		return "STRING"
	case TokenBoolean:
		return "BOOLEAN"
	case TokenFunction:
		return "FUNCTION"
	case TokenOperator:
		return "OPERATOR"
	case TokenParen:
		return "PAREN"
	case TokenComma:
		return "COMMA"
	case TokenField:
		return "FIELD"
	case TokenEnd:
		return "END"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is one lexical element of a formula.
//
// NUMBER tokens hold a number, BOOLEAN tokens a bool, and every other kind
// holds text: the string contents, the upper-cased function name, the field
// name as written, the operator, the parenthesis, "," or "" for END.
type Token struct {
	Kind  TokenKind
	Value value.Value
	// Pos is the byte offset of the token in the formula.
	Pos int
}

// Text returns the token value rendered as text.
func (t Token) Text() string {
	return value.ToText(t.Value)
}

// String implements fmt.Stringer.
func (t Token) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Text())
}

func (t Token) is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Value.Kind() == value.KindText && t.Value.Str() == text
}
