package expr

import (
	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/variant"
)

type parser struct {
	toks []token
	pos  int
	eval *Evaluator
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// parseSum := Mul ((+|-) Mul)*, left-to-right.
func (p *parser) parseSum() (float64, error) {
	left, err := p.parseMul()
	if err != nil {
		return 0, err
	}
	for {
		switch p.cur().kind {
		case tokPlus:
			p.eval.widen(StateSumSub)
			p.advance()
			right, err := p.parseMul()
			if err != nil {
				return 0, err
			}
			left += right
		case tokMinus:
			p.eval.widen(StateSumSub)
			p.advance()
			right, err := p.parseMul()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// parseMul := ArrayConcat ((*|/) ArrayConcat)*, left-to-right.
func (p *parser) parseMul() (float64, error) {
	left, err := p.parseArrayConcat()
	if err != nil {
		return 0, err
	}
	for {
		switch p.cur().kind {
		case tokStar:
			p.eval.widen(StateMulDiv)
			p.advance()
			right, err := p.parseArrayConcat()
			if err != nil {
				return 0, err
			}
			left *= right
		case tokSlash:
			p.eval.widen(StateMulDiv)
			p.advance()
			right, err := p.parseArrayConcat()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, coreerrors.New(coreerrors.KindLogic, "Division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

// parseArrayConcat := Primary (|| Primary)*, left-to-right. Once || is
// seen the evaluator state widens to array-concat and stays there for the
// rest of the expression.
func (p *parser) parseArrayConcat() (float64, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	for p.cur().kind == tokConcat {
		p.eval.widen(StateArrayConcat)
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return 0, err
		}
		left = right
	}
	return left, nil
}

// parsePrimary := number | '(' Sum ')' | '[' value {, value} ']' | name.
func (p *parser) parsePrimary() (float64, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.advance()
		if p.eval.state == StateArrayConcat {
			p.eval.array = append(p.eval.array, variant.Double(t.num))
			return 0, nil
		}
		return t.num, nil
	case tokMinus:
		p.advance()
		v, err := p.parsePrimary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case tokLParen:
		p.advance()
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.cur().kind != tokRParen {
			return 0, coreerrors.New(coreerrors.KindParseSQL, "expected ')' in expression")
		}
		p.advance()
		return v, nil
	case tokLBracket:
		p.advance()
		for {
			if p.cur().kind == tokRBracket {
				break
			}
			v, err := p.parseLiteralValue()
			if err != nil {
				return 0, err
			}
			p.eval.array = append(p.eval.array, v)
			if p.cur().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
		if p.cur().kind != tokRBracket {
			return 0, coreerrors.New(coreerrors.KindParseSQL, "expected ']' to close array literal")
		}
		p.advance()
		return 0, nil
	case tokName:
		p.advance()
		return p.eval.resolveName(t.text)
	default:
		return 0, coreerrors.New(coreerrors.KindParseSQL, "unexpected token in expression")
	}
}

// parseLiteralValue parses one element of a '[' ... ']' array literal.
func (p *parser) parseLiteralValue() (variant.Variant, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.advance()
		return variant.Double(t.num), nil
	case tokString:
		p.advance()
		return variant.String(t.text), nil
	default:
		return variant.Variant{}, coreerrors.New(coreerrors.KindParseSQL, "expected literal value in array")
	}
}
