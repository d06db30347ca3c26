package payload

import (
	"testing"

	"github.com/kartikbazzad/docucore/internal/variant"
	"github.com/stretchr/testify/require"
)

func buildPersonType() *Type {
	return NewTypeBuilder("person").
		AddScalar("id", variant.KindInt64, false, 8).
		AddScalar("age", variant.KindInt, false, 8).
		AddScalar("active", variant.KindBool, false, 8).
		AddScalar("name", variant.KindString, false, 8).
		AddComposite("location", []string{"city", "zip"}, 8).
		Build()
}

func newAccessor() *Accessor {
	typ := buildPersonType()
	v := New(fixedRegionSize(typ), nil, fixedRegionSize(typ))
	return NewAccessor(typ, v)
}

func TestAccessorNumericRoundTrip(t *testing.T) {
	a := newAccessor()
	idIdx := a.Type.FieldByName("id")
	require.NoError(t, a.SetNumeric(idIdx, variant.Int64(42)))
	got, err := a.Get(idIdx)
	require.NoError(t, err)
	require.EqualValues(t, 42, got.AsInt64())
}

func TestAccessorBoolRoundTrip(t *testing.T) {
	a := newAccessor()
	idx := a.Type.FieldByName("active")
	require.NoError(t, a.SetNumeric(idx, variant.Bool(true)))
	got, err := a.Get(idx)
	require.NoError(t, err)
	require.True(t, got.AsBool())
}

func TestAccessorStringRoundTrip(t *testing.T) {
	a := newAccessor()
	idx := a.Type.FieldByName("name")
	require.NoError(t, a.SetString(idx, "alice"))
	got, err := a.GetByName("name")
	require.NoError(t, err)
	require.Equal(t, "alice", got.AsString())
}

func TestAccessorGetByNameMissing(t *testing.T) {
	a := newAccessor()
	_, err := a.GetByName("nope")
	require.Error(t, err)
}

func TestAccessorGetByJSONPathScalar(t *testing.T) {
	a := newAccessor()
	idx := a.Type.FieldByName("id")
	require.NoError(t, a.SetNumeric(idx, variant.Int64(7)))
	got, err := a.GetByJSONPath([]string{"id"})
	require.NoError(t, err)
	require.EqualValues(t, 7, got.AsInt64())
}

func TestAccessorGetByJSONPathCompositeMissingSubfield(t *testing.T) {
	a := newAccessor()
	_, err := a.GetByJSONPath([]string{"location", "country"})
	require.Error(t, err)
}

func TestAccessorSetNumericEstablishesUniqueOwnership(t *testing.T) {
	typ := buildPersonType()
	shared := New(fixedRegionSize(typ), nil, fixedRegionSize(typ))
	clone := shared.Clone()
	require.EqualValues(t, 2, shared.Refcount())

	a := NewAccessor(typ, shared)
	require.NoError(t, a.SetNumeric(typ.FieldByName("age"), variant.Int(30)))

	require.EqualValues(t, 1, shared.Refcount())
	require.EqualValues(t, 1, clone.Refcount())
}
