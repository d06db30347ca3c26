package results

import (
	"github.com/kartikbazzad/docucore/internal/query"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// FacetItem is one row of a facet aggregation: the grouping field values
// and how many source rows matched them.
type FacetItem struct {
	Values []string
	Count  int
}

// AggregationResult carries the computed output of one query.Aggregation
// request. Sum/Avg/Min/Max populate Value; Facet populates Facets;
// Distinct populates Distincts.
type AggregationResult struct {
	Type      query.AggType
	Fields    []string
	Value     float64
	HasValue  bool
	Facets    []FacetItem
	Distincts []variant.Variant
}
