package query

import (
	"reflect"
	"testing"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/variant"
	"github.com/stretchr/testify/require"
)

// buildNestedBracketAggregationQuery builds:
// Select * from ns where age > 18 AND (city='Kyiv' OR city='Lviv')
// ORDER BY name DESC LIMIT 10 OFFSET 5 AGGREGATE sum(score).
func buildNestedBracketAggregationQuery() *Query {
	q := New("ns")
	q.Root.Entries = []Entry{
		{Op: OpAnd, Node: QueryEntry{Field: "age", Cond: CondGt, Values: []variant.Variant{variant.Int(18)}}},
		{Op: OpAnd, Node: &Bracket{Entries: []Entry{
			{Op: OpAnd, Node: QueryEntry{Field: "city", Cond: CondEq, Values: []variant.Variant{variant.String("Kyiv")}}},
			{Op: OpOr, Node: QueryEntry{Field: "city", Cond: CondEq, Values: []variant.Variant{variant.String("Lviv")}}},
		}}},
	}
	q.Sort = []SortEntry{{Expr: "name", Desc: true}}
	q.Limit = 10
	q.Offset = 5
	q.Aggregations = []Aggregation{{Type: AggSum, Fields: []string{"score"}, Limit: AggregationNoLimit}}
	return q
}

// TestQueryRoundTrip covers a query with a nested bracket and an aggregation
// surviving an encode/decode round trip unchanged.
func TestQueryRoundTrip(t *testing.T) {
	q := buildNestedBracketAggregationQuery()
	encoded := Encode(q)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, reflect.DeepEqual(q, decoded), "decoded query does not match original:\n%+v\nvs\n%+v", q, decoded)
}

func TestQueryRoundTripWithJoinAndEqualPosition(t *testing.T) {
	q := New("orders")
	q.Root.Entries = []Entry{
		{Op: OpAnd, Node: QueryEntry{Field: "status", Cond: CondEq, Values: []variant.Variant{variant.String("open")}}},
		{Op: OpAnd, Node: JoinQueryEntry{JoinIndex: 0}},
	}
	q.Root.EqualPositions = []EqualPositionGroup{{BracketIndex: 0, Fields: []string{"tags", "weights"}}}
	joined := New("customers")
	joined.Root.Entries = []Entry{
		{Op: OpAnd, Node: QueryEntry{Field: "active", Cond: CondEq, Values: []variant.Variant{variant.Bool(true)}}},
	}
	q.Joins = []*JoinQuery{{
		Query: joined,
		Type:  JoinInner,
		Predicates: []JoinPredicate{
			{Cond: CondEq, Field: "customer_id", JoinField: "id"},
		},
	}}

	encoded := Encode(q)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, reflect.DeepEqual(q, decoded))
}

func TestDecodeRejectsMissingCloseBracket(t *testing.T) {
	s := &serializer{}
	s.writeString("ns")
	s.writeCInt(int(tagOpenBracket))
	s.writeCInt(int(OpAnd))
	s.writeCInt(int(tagCondition))
	s.writeString("a")
	s.writeCInt(int(OpAnd))
	s.writeCInt(int(CondEq))
	s.writeCInt(1)
	s.writeVariant(variant.Int(1))
	// missing tagCloseBracket here
	s.writeCInt(int(tagQueryEnd))
	s.writeCInt(0)
	s.writeCInt(0)

	_, err := Decode(s.bytes())
	require.Error(t, err)
	require.Equal(t, coreerrors.KindParseBin, coreerrors.KindOf(err))
}

func TestDecodeRejectsTrailingCloseBracket(t *testing.T) {
	s := &serializer{}
	s.writeString("ns")
	s.writeCInt(int(tagCondition))
	s.writeString("a")
	s.writeCInt(int(OpAnd))
	s.writeCInt(int(CondEq))
	s.writeCInt(1)
	s.writeVariant(variant.Int(1))
	s.writeCInt(int(tagCloseBracket)) // unbalanced: no matching OpenBracket
	s.writeCInt(int(tagQueryEnd))
	s.writeCInt(0)
	s.writeCInt(0)

	_, err := Decode(s.bytes())
	require.Error(t, err)
}

func TestDWithinRequiresThreeVariants(t *testing.T) {
	q := New("ns")
	q.Root.Entries = []Entry{
		{Op: OpAnd, Node: QueryEntry{Field: "loc", Cond: CondDWithin, Values: []variant.Variant{variant.PointValue(1, 2)}}},
	}
	encoded := Encode(q)
	_, err := Decode(encoded)
	require.Error(t, err)
}

func TestDWithinWithThreeVariantsRoundTrips(t *testing.T) {
	q := New("ns")
	q.Root.Entries = []Entry{
		{Op: OpAnd, Node: QueryEntry{Field: "loc", Cond: CondDWithin, Values: []variant.Variant{
			variant.Double(1), variant.Double(2), variant.Double(3),
		}}},
	}
	encoded := Encode(q)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, reflect.DeepEqual(q, decoded))
}

func TestForcedSortOrderOnlyFirstEntry(t *testing.T) {
	q := New("ns")
	q.Sort = []SortEntry{
		{Expr: "priority", ForcedOrder: []variant.Variant{variant.Int(3), variant.Int(1), variant.Int(2)}},
		{Expr: "name", Desc: true},
	}
	encoded := Encode(q)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Sort[0].ForcedOrder, 3)
	require.Nil(t, decoded.Sort[1].ForcedOrder)
}

func TestToSQLProducesReadableDiagnostic(t *testing.T) {
	q := buildNestedBracketAggregationQuery()
	sql := ToSQL(q)
	require.Contains(t, sql, "SELECT * FROM ns")
	require.Contains(t, sql, "age > 18")
	require.Contains(t, sql, "ORDER BY name DESC")
	require.Contains(t, sql, "LIMIT 10")
	require.Contains(t, sql, "AGGREGATE sum(score)")
}
