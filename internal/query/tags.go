package query

// tag identifies one binary record kind in the closed enumeration below.
type tag int

const (
	tagCondition tag = iota
	tagBetweenFieldsCondition
	tagAlwaysFalse
	tagJoinCondition
	tagAggregation
	tagDistinct
	tagSortIndex
	tagJoinOn
	tagDebugLevel
	tagStrictMode
	tagLimit
	tagOffset
	tagReqTotal
	tagSelectFilter
	tagEqualPosition
	tagExplain
	tagWithRank
	tagSelectFunction
	tagDropField
	tagUpdateField
	tagUpdateFieldV2
	tagUpdateObject
	tagOpenBracket
	tagCloseBracket
	tagAggregationSort
	tagAggregationLimit
	tagAggregationOffset
	tagQueryEnd
)
