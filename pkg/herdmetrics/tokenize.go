package herdmetrics

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// functionNames is the reserved set of function identifiers. A name in this
// set tokenizes as FUNCTION even when the library has no handler for it.
var functionNames = map[string]bool{
	"IF":       true,
	"AND":      true,
	"OR":       true,
	"SUM":      true,
	"COUNT":    true,
	"COUNTIF":  true,
	"SUMIF":    true,
	"DATEDIFF": true,
	"TODAY":    true,
	"PARAM":    true,
	"AVERAGE":  true,
	"MIN":      true,
	"MAX":      true,
	"ABS":      true,
	"ROUND":    true,
}

const operatorChars = "=!<>+-*/%"

var twoCharOperators = map[string]bool{
	"==": true,
	"!=": true,
	"<=": true,
	">=": true,
	"<>": true,
}

// Tokenize splits a formula into tokens. The result always ends with a
// single END token. Tokenizing never fails: characters that start no token
// are skipped.
func Tokenize(formula string) []Token {
	tokens := make([]Token, 0, len(formula)/2+1)
	i := 0

	for i < len(formula) {
		r, size := utf8.DecodeRuneInString(formula[i:])
		start := i

		switch {
		case unicode.IsSpace(r):
			i += size

		case isDigit(r) || r == '.':
			for i < len(formula) && (isDigit(rune(formula[i])) || formula[i] == '.') {
				i++
			}
			tokens = append(tokens, Token{
				Kind:  TokenNumber,
				Value: value.Number(parseNumberRun(formula[start:i])),
				Pos:   start,
			})

		case r == '"' || r == '\'':
			quote := formula[i]
			i++
			for i < len(formula) && formula[i] != quote {
				i++
			}
			text := formula[start+1 : i]
			// Skip the closing quote; an unterminated string runs to the end.
			i++
			tokens = append(tokens, Token{Kind: TokenString, Value: value.Text(text), Pos: start})

		case isIdentStart(r):
			for i < len(formula) && isIdentPart(rune(formula[i])) {
				i++
			}
			tokens = append(tokens, identToken(formula[start:i], start))

		case strings.ContainsRune(operatorChars, r):
			op := formula[i : i+1]
			if i+1 < len(formula) && twoCharOperators[formula[i:i+2]] {
				op = formula[i : i+2]
			}
			i += len(op)
			tokens = append(tokens, Token{Kind: TokenOperator, Value: value.Text(op), Pos: start})

		case r == '(' || r == ')':
			i++
			tokens = append(tokens, Token{Kind: TokenParen, Value: value.Text(string(r)), Pos: start})

		case r == ',':
			i++
			tokens = append(tokens, Token{Kind: TokenComma, Value: value.Text(","), Pos: start})

		default:
			i += size
		}
	}

	return append(tokens, Token{Kind: TokenEnd, Value: value.Text(""), Pos: len(formula)})
}

// identToken classifies an identifier as BOOLEAN, FUNCTION or FIELD.
func identToken(name string, pos int) Token {
	upper := strings.ToUpper(name)
	switch {
	case upper == "TRUE":
		return Token{Kind: TokenBoolean, Value: value.Bool(true), Pos: pos}
	case upper == "FALSE":
		return Token{Kind: TokenBoolean, Value: value.Bool(false), Pos: pos}
	case functionNames[upper]:
		return Token{Kind: TokenFunction, Value: value.Text(upper), Pos: pos}
	default:
		return Token{Kind: TokenField, Value: value.Text(name), Pos: pos}
	}
}

// parseNumberRun parses a run of digits and dots as its longest numeric
// prefix: "1.2.3" is 1.2, "5." is 5 and a run with no digits before its
// second dot is NaN.
func parseNumberRun(run string) float64 {
	end, digits := 0, 0
	for end < len(run) && run[end] != '.' {
		end++
		digits++
	}
	if end < len(run) {
		end++
		for end < len(run) && run[end] != '.' {
			end++
			digits++
		}
	}
	if digits == 0 {
		return math.NaN()
	}

	f, err := strconv.ParseFloat(run[:end], 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}
