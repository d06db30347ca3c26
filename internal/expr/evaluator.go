// Package expr implements the arithmetic / array-concatenation expression
// evaluator over a single payload.
package expr

import (
	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// State is the evaluator's precedence state machine: it only ever widens,
// and array-concat is sticky once entered.
type State int

const (
	StateNone State = iota
	StateSumSub
	StateMulDiv
	StateArrayConcat
)

// Resolver looks up a field or JSON-path name against the payload being
// evaluated.
type Resolver interface {
	Resolve(name string) (variant.Variant, bool)
}

// FuncExecutor is the external select-function hook invoked for names the
// Resolver does not recognize.
type FuncExecutor interface {
	Call(name string) (float64, error)
}

// Evaluator evaluates one expression string against a Resolver, producing
// a Variant that is always an array: a multi-element array when name
// resolution collected one, otherwise a single-element array wrapping the
// scalar result.
type Evaluator struct {
	resolver Resolver
	funcExec FuncExecutor
	state    State
	array    []variant.Variant
}

func New(resolver Resolver, funcExec FuncExecutor) *Evaluator {
	return &Evaluator{resolver: resolver, funcExec: funcExec}
}

// State reports the precedence state the evaluator settled in after the
// most recent Evaluate call.
func (e *Evaluator) State() State { return e.state }

func (e *Evaluator) widen(s State) {
	if s > e.state {
		e.state = s
	}
}

// Evaluate parses and runs expr, following the grammar
// Sum := Mul ((+|-) Mul)*, Mul := ArrayConcat ((*|/) ArrayConcat)*,
// ArrayConcat := Primary (|| Primary)*,
// Primary := number | '(' Sum ')' | '[' value {, value} ']' | name.
func (e *Evaluator) Evaluate(expr string) (variant.Variant, error) {
	e.state = StateNone
	e.array = nil

	toks, err := tokenize(expr)
	if err != nil {
		return variant.Variant{}, err
	}
	p := &parser{toks: toks, eval: e}
	scalar, err := p.parseSum()
	if err != nil {
		return variant.Variant{}, err
	}
	if p.cur().kind != tokEOF {
		return variant.Variant{}, coreerrors.New(coreerrors.KindParseSQL, "unexpected trailing tokens in expression %q", expr)
	}

	if len(e.array) > 0 {
		return variant.Array(e.array...), nil
	}
	return variant.Array(variant.Double(scalar)), nil
}

// resolveName folds a name resolution into either the scalar accumulator
// (returned) or the array accumulator:
//   - array-valued fields always append their elements and contribute 0
//     to the scalar;
//   - once in array-concat state, every resolution appends instead of
//     contributing to arithmetic, even for scalars;
//   - unknown names invoke the external function executor, whose result
//     is coerced to double.
func (e *Evaluator) resolveName(name string) (float64, error) {
	v, ok := e.resolver.Resolve(name)
	if !ok {
		if e.funcExec == nil {
			return 0, coreerrors.New(coreerrors.KindLogic, "unknown name %q and no function executor configured", name)
		}
		f, err := e.funcExec.Call(name)
		if err != nil {
			return 0, err
		}
		if e.state == StateArrayConcat {
			e.array = append(e.array, variant.Double(f))
			return 0, nil
		}
		return f, nil
	}

	if v.IsArray {
		e.array = append(e.array, v.Array...)
		return 0, nil
	}
	if e.state == StateArrayConcat {
		e.array = append(e.array, v)
		return 0, nil
	}

	d, ok := v.ToDouble()
	if !ok {
		return 0, coreerrors.New(coreerrors.KindLogic, "field %q is not numeric", name)
	}
	return d, nil
}
