package variant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalarConstructorsRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    Variant
		want string
	}{
		{"int", Int(42), "42"},
		{"int64", Int64(-7), "-7"},
		{"double", Double(3.5), "3.5"},
		{"string", String("hi"), "hi"},
		{"bool-true", Bool(true), "true"},
		{"bool-false", Bool(false), "false"},
		{"null", Null(), "null"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.v.String())
		})
	}
}

func TestEnsureHoldClearsAliasing(t *testing.T) {
	src := "aliased"
	v := StringRef(src)
	require.True(t, v.IsRef())
	v.EnsureHold()
	require.False(t, v.IsRef())
	require.Equal(t, "aliased", v.AsString())
}

func TestArrayEqualIsElementwise(t *testing.T) {
	a := Array(Int(1), String("x"))
	b := Array(Int(1), String("x"))
	c := Array(Int(1), String("y"))
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestToDoubleCoercion(t *testing.T) {
	d, ok := Int(5).ToDouble()
	require.True(t, ok)
	require.Equal(t, 5.0, d)

	_, ok = String("x").ToDouble()
	require.False(t, ok)
}

func TestCompareOrdersByKindThenValue(t *testing.T) {
	require.Equal(t, -1, Compare(Int(1), Int64(1)))
	require.Equal(t, -1, Compare(Int(1), Int(2)))
	require.Equal(t, 1, Compare(Int(2), Int(1)))
	// Mismatched kinds order by Kind tag (Open Question resolution).
	require.Equal(t, -1, Compare(Int(100), String("a")))
}

func TestCompositePreservesFieldOrder(t *testing.T) {
	c := Composite(Int(1), String("a"))
	require.Equal(t, KindComposite, c.Kind)
	require.Len(t, c.Array, 2)
}

func TestNewUUIDProducesDistinctParsableValues(t *testing.T) {
	a := NewUUID()
	b := NewUUID()
	require.Equal(t, KindUUID, a.Kind)
	require.NotEqual(t, a.AsUUID(), b.AsUUID())

	parsed, err := ParseUUID(a.String())
	require.NoError(t, err)
	require.True(t, a.Equal(parsed))
}

func TestParseUUIDRejectsMalformedInput(t *testing.T) {
	_, err := ParseUUID("not-a-uuid")
	require.Error(t, err)
}
