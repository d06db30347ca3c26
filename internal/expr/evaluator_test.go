package expr

import (
	"testing"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/variant"
	"github.com/stretchr/testify/require"
)

type mapResolver map[string]variant.Variant

func (m mapResolver) Resolve(name string) (variant.Variant, bool) {
	v, ok := m[name]
	return v, ok
}

func evalScalar(t *testing.T, resolver Resolver, expr string) float64 {
	t.Helper()
	e := New(resolver, nil)
	v, err := e.Evaluate(expr)
	require.NoError(t, err)
	require.True(t, v.IsArray)
	require.Len(t, v.Array, 1)
	return v.Array[0].AsDouble()
}

func TestArithmeticWithoutNamesMatchesMath(t *testing.T) {
	require.Equal(t, 7.0, evalScalar(t, mapResolver{}, "1 + 2 * 3"))
	require.Equal(t, 9.0, evalScalar(t, mapResolver{}, "(1 + 2) * 3"))
	require.Equal(t, 2.0, evalScalar(t, mapResolver{}, "10 / 5"))
	require.Equal(t, -1.0, evalScalar(t, mapResolver{}, "2 - 3"))
}

// TestDivisionByZero covers dividing by an expression that evaluates to
// zero, which must surface as a logic error rather than +Inf/NaN.
func TestDivisionByZero(t *testing.T) {
	e := New(mapResolver{}, nil)
	_, err := e.Evaluate("10 / (2 - 2)")
	require.Error(t, err)
	require.Equal(t, coreerrors.KindLogic, coreerrors.KindOf(err))
	require.Contains(t, err.Error(), "Division by zero")
}

// TestArrayConcatenation covers an item with tags=['a','b'], extra='c':
// evaluating tags || extra yields ['a','b','c'] and leaves the evaluator
// in array-concat state.
func TestArrayConcatenation(t *testing.T) {
	resolver := mapResolver{
		"tags":  variant.Array(variant.String("a"), variant.String("b")),
		"extra": variant.String("c"),
	}
	e := New(resolver, nil)
	v, err := e.Evaluate("tags || extra")
	require.NoError(t, err)
	require.True(t, v.IsArray)
	require.Len(t, v.Array, 3)
	require.Equal(t, "a", v.Array[0].AsString())
	require.Equal(t, "b", v.Array[1].AsString())
	require.Equal(t, "c", v.Array[2].AsString())
	require.Equal(t, StateArrayConcat, e.State())
}

func TestArrayLiteralAccumulates(t *testing.T) {
	e := New(mapResolver{}, nil)
	v, err := e.Evaluate("[1, 2, 3]")
	require.NoError(t, err)
	require.True(t, v.IsArray)
	require.Len(t, v.Array, 3)
}

func TestNonNumericFieldFailsScalarArithmetic(t *testing.T) {
	resolver := mapResolver{"name": variant.String("bob")}
	e := New(resolver, nil)
	_, err := e.Evaluate("name + 1")
	require.Error(t, err)
	require.Equal(t, coreerrors.KindLogic, coreerrors.KindOf(err))
}

type constFunc struct{ v float64 }

func (c constFunc) Call(name string) (float64, error) { return c.v, nil }

func TestUnknownNameInvokesFunctionExecutor(t *testing.T) {
	e := New(mapResolver{}, constFunc{v: 5})
	v, err := e.Evaluate("rank + 1")
	require.NoError(t, err)
	require.Equal(t, 6.0, v.Array[0].AsDouble())
}
