package herdmetrics

import (
	"fmt"
	"math"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// parser evaluates a token stream while parsing it. There is no syntax tree:
// every production returns the value of the sub-expression it consumed.
//
// Grammar, lowest precedence first:
//
//	expression     := comparison
//	comparison     := additive ( compareOp additive )*
//	additive       := multiplicative ( ('+'|'-') multiplicative )*
//	multiplicative := unary ( ('*'|'/'|'%') unary )*
//	unary          := '-' primary | primary
//	primary        := NUMBER | STRING | BOOLEAN | FIELD
//	                | FUNCTION '(' [ expression (',' expression)* ] ')'
//	                | '(' expression ')'
type parser struct {
	tokens []Token
	pos    int
	depth  int
	env    *Context
}

// maxDepth bounds how deeply parentheses and function calls may nest.
const maxDepth = 256

var comparisonOps = map[string]bool{
	"=": true, "==": true, "!=": true, "<>": true,
	"<": true, ">": true, "<=": true, ">=": true,
}

func newParser(tokens []Token, env *Context) *parser {
	return &parser{tokens: tokens, env: env}
}

func (p *parser) current() Token {
	return p.tokens[p.pos]
}

// advance returns the current token and moves past it. It never moves past END.
func (p *parser) advance() Token {
	tok := p.current()
	if tok.Kind != TokenEnd {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind, text string) (Token, error) {
	tok := p.current()
	if !tok.is(kind, text) {
		return tok, &SyntaxError{
			Token:   tok,
			Message: fmt.Sprintf("expected %s %s but got %s at position %d", kind, text, tok, tok.Pos),
		}
	}
	return p.advance(), nil
}

// atOperator reports whether the current token is an operator in ops.
func (p *parser) atOperator(ops map[string]bool) bool {
	tok := p.current()
	return tok.Kind == TokenOperator && ops[tok.Value.Str()]
}

// parse evaluates one expression. Tokens after it are ignored.
func (p *parser) parse() (value.Value, error) {
	return p.parseExpression()
}

func (p *parser) parseExpression() (value.Value, error) {
	if p.depth >= maxDepth {
		tok := p.current()
		return value.Null(), &SyntaxError{
			Token:   tok,
			Message: fmt.Sprintf("expression nested too deeply at position %d (limit %d)", tok.Pos, maxDepth),
		}
	}
	p.depth++
	defer func() { p.depth-- }()
	return p.parseComparison()
}

// parseComparison folds left: a < b < c is (a < b) < c.
func (p *parser) parseComparison() (value.Value, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return value.Null(), err
	}

	for p.atOperator(comparisonOps) {
		op := p.advance().Value.Str()
		right, err := p.parseAdditive()
		if err != nil {
			return value.Null(), err
		}
		result, err := value.Compare(left, right, op)
		if err != nil {
			return value.Null(), err
		}
		left = value.Bool(result)
	}

	return left, nil
}

var additiveOps = map[string]bool{"+": true, "-": true}

func (p *parser) parseAdditive() (value.Value, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return value.Null(), err
	}

	for p.atOperator(additiveOps) {
		op := p.advance().Value.Str()
		right, err := p.parseMultiplicative()
		if err != nil {
			return value.Null(), err
		}
		if op == "+" {
			left = add(left, right)
		} else {
			left = value.Number(value.ToNumber(coalesce(left)) - value.ToNumber(coalesce(right)))
		}
	}

	return left, nil
}

var multiplicativeOps = map[string]bool{"*": true, "/": true, "%": true}

func (p *parser) parseMultiplicative() (value.Value, error) {
	left, err := p.parseUnary()
	if err != nil {
		return value.Null(), err
	}

	for p.atOperator(multiplicativeOps) {
		op := p.advance().Value.Str()
		right, err := p.parseUnary()
		if err != nil {
			return value.Null(), err
		}

		l, r := value.ToNumber(coalesce(left)), value.ToNumber(coalesce(right))
		switch {
		case op == "*":
			left = value.Number(l * r)
		case r == 0:
			left = value.Number(0)
		case op == "/":
			left = value.Number(l / r)
		default:
			left = value.Number(math.Mod(l, r))
		}
	}

	return left, nil
}

func (p *parser) parseUnary() (value.Value, error) {
	if p.current().is(TokenOperator, "-") {
		p.advance()
		v, err := p.parsePrimary()
		if err != nil {
			return value.Null(), err
		}
		return value.Number(-value.ToNumber(v)), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (value.Value, error) {
	tok := p.current()

	switch tok.Kind {
	case TokenNumber, TokenString, TokenBoolean:
		p.advance()
		return tok.Value, nil

	case TokenField:
		p.advance()
		// A field name used as a call is a function outside the catalogue.
		if p.current().is(TokenParen, "(") {
			return value.Null(), &UnknownFunctionError{Name: tok.Value.Str(), Pos: tok.Pos}
		}
		return p.env.Field(tok.Value.Str()), nil

	case TokenFunction:
		return p.parseFunction()

	case TokenParen:
		if tok.is(TokenParen, "(") {
			p.advance()
			result, err := p.parseExpression()
			if err != nil {
				return value.Null(), err
			}
			if _, err := p.expect(TokenParen, ")"); err != nil {
				return value.Null(), err
			}
			return result, nil
		}
	}

	return value.Null(), &SyntaxError{
		Token:   tok,
		Message: fmt.Sprintf("unexpected token: %s at position %d", tok, tok.Pos),
	}
}

// parseFunction evaluates every argument, then calls the handler.
func (p *parser) parseFunction() (value.Value, error) {
	nameTok := p.advance()
	name := nameTok.Value.Str()

	if _, err := p.expect(TokenParen, "("); err != nil {
		return value.Null(), err
	}

	var args []value.Value
	if !p.current().is(TokenParen, ")") {
		arg, err := p.parseExpression()
		if err != nil {
			return value.Null(), err
		}
		args = append(args, arg)

		for p.current().Kind == TokenComma {
			p.advance()
			arg, err := p.parseExpression()
			if err != nil {
				return value.Null(), err
			}
			args = append(args, arg)
		}
	}

	if _, err := p.expect(TokenParen, ")"); err != nil {
		return value.Null(), err
	}

	fn, ok := lookupFunction(name)
	if !ok {
		return value.Null(), &UnknownFunctionError{Name: name, Pos: nameTok.Pos}
	}
	return fn(args, p.env), nil
}

// coalesce maps null to the number 0.
func coalesce(v value.Value) value.Value {
	if v.IsNull() {
		return value.Number(0)
	}
	return v
}

// add concatenates when either side is text, a date or a list, and adds
// numerically otherwise.
func add(left, right value.Value) value.Value {
	left, right = coalesce(left), coalesce(right)
	if concatenates(left) || concatenates(right) {
		return value.Text(value.ToText(left) + value.ToText(right))
	}
	return value.Number(value.ToNumber(left) + value.ToNumber(right))
}

func concatenates(v value.Value) bool {
	switch v.Kind() {
	case value.KindText, value.KindDate, value.KindList:
		return true
	default:
		return false
	}
}
