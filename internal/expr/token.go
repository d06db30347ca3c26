package expr

import (
	"strconv"
	"strings"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokName
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokConcat // ||
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func tokenize(src string) ([]token, error) {
	var out []token
	r := []rune(src)
	i := 0
	for i < len(r) {
		c := r[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			out = append(out, token{kind: tokPlus})
			i++
		case c == '-':
			out = append(out, token{kind: tokMinus})
			i++
		case c == '*':
			out = append(out, token{kind: tokStar})
			i++
		case c == '/':
			out = append(out, token{kind: tokSlash})
			i++
		case c == '(':
			out = append(out, token{kind: tokLParen})
			i++
		case c == ')':
			out = append(out, token{kind: tokRParen})
			i++
		case c == '[':
			out = append(out, token{kind: tokLBracket})
			i++
		case c == ']':
			out = append(out, token{kind: tokRBracket})
			i++
		case c == ',':
			out = append(out, token{kind: tokComma})
			i++
		case c == '|':
			if i+1 < len(r) && r[i+1] == '|' {
				out = append(out, token{kind: tokConcat})
				i += 2
				continue
			}
			return nil, coreerrors.New(coreerrors.KindParseSQL, "unexpected '|' at position %d", i)
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(r) && r[j] != quote {
				sb.WriteRune(r[j])
				j++
			}
			if j >= len(r) {
				return nil, coreerrors.New(coreerrors.KindParseSQL, "unterminated string literal at position %d", i)
			}
			out = append(out, token{kind: tokString, text: sb.String()})
			i = j + 1
		case isDigit(c):
			j := i
			for j < len(r) && (isDigit(r[j]) || r[j] == '.' || r[j] == 'e' || r[j] == 'E') {
				j++
			}
			f, err := strconv.ParseFloat(string(r[i:j]), 64)
			if err != nil {
				return nil, coreerrors.New(coreerrors.KindParseSQL, "invalid number %q", string(r[i:j]))
			}
			out = append(out, token{kind: tokNumber, num: f})
			i = j
		case isNameStart(c):
			j := i
			for j < len(r) && isNamePart(r[j]) {
				j++
			}
			out = append(out, token{kind: tokName, text: string(r[i:j])})
			i = j
		default:
			return nil, coreerrors.New(coreerrors.KindParseSQL, "unexpected character %q at position %d", string(c), i)
		}
	}
	out = append(out, token{kind: tokEOF})
	return out, nil
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func isNameStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c rune) bool {
	return isNameStart(c) || isDigit(c) || c == '.' || c == '_'
}
