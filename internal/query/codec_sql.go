package query

import (
	"fmt"
	"strings"

	"github.com/kartikbazzad/docucore/internal/variant"
)

// ToSQL renders q as a SQL-like diagnostic string for logging and
// explain output. It is not required to round-trip back into an
// identical binary form.
func ToSQL(q *Query) string {
	var b strings.Builder

	switch q.Type {
	case TypeDelete:
		b.WriteString("DELETE FROM ")
	case TypeTruncate:
		return fmt.Sprintf("TRUNCATE %s", q.Namespace)
	case TypeUpdate:
		b.WriteString("UPDATE ")
	default:
		b.WriteString("SELECT ")
		if len(q.SelectFilter) > 0 {
			b.WriteString(strings.Join(q.SelectFilter, ", "))
		} else {
			b.WriteString("*")
		}
		b.WriteString(" FROM ")
	}
	b.WriteString(q.Namespace)

	if q.Type == TypeUpdate {
		b.WriteString(" SET ")
		parts := make([]string, 0, len(q.UpdateFields))
		for _, f := range q.UpdateFields {
			if f.Mode == UpdateDrop {
				parts = append(parts, fmt.Sprintf("DROP %s", f.Name))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s = %s", f.Name, valuesToSQL(f.Values)))
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	if len(q.Root.Entries) > 0 {
		b.WriteString(" WHERE ")
		writeEntriesSQL(&b, q.Root.Entries)
	}

	for _, j := range q.Joins {
		switch j.Type {
		case JoinInner, JoinOrInner:
			b.WriteString(" INNER JOIN ")
		default:
			b.WriteString(" LEFT JOIN ")
		}
		b.WriteString(j.Query.Namespace)
		if len(j.Predicates) > 0 {
			b.WriteString(" ON ")
			preds := make([]string, len(j.Predicates))
			for i, p := range j.Predicates {
				preds[i] = fmt.Sprintf("%s %s %s", p.Field, condToSQL(p.Cond), p.JoinField)
			}
			b.WriteString(strings.Join(preds, " AND "))
		}
	}

	if len(q.Sort) > 0 {
		b.WriteString(" ORDER BY ")
		parts := make([]string, len(q.Sort))
		for i, s := range q.Sort {
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", s.Expr, dir)
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	if q.Limit != 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset != 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}

	for _, a := range q.Aggregations {
		fmt.Fprintf(&b, " AGGREGATE %s(%s)", aggToSQL(a.Type), strings.Join(a.Fields, ", "))
	}

	if q.Explain {
		b.WriteString(" --explain")
	}
	if q.DebugLevel > 0 {
		fmt.Fprintf(&b, " --debug=%d", q.DebugLevel)
	}

	return b.String()
}

func writeEntriesSQL(b *strings.Builder, entries []Entry) {
	for i, e := range entries {
		if i > 0 {
			switch e.Op {
			case OpOr:
				b.WriteString(" OR ")
			case OpNot:
				b.WriteString(" AND NOT ")
			default:
				b.WriteString(" AND ")
			}
		} else if e.Op == OpNot {
			b.WriteString("NOT ")
		}

		switch n := e.Node.(type) {
		case QueryEntry:
			fmt.Fprintf(b, "%s %s %s", n.Field, condToSQL(n.Cond), valuesToSQL(n.Values))
		case BetweenFieldsQueryEntry:
			fmt.Fprintf(b, "%s %s %s", n.FieldA, condToSQL(n.Cond), n.FieldB)
		case JoinQueryEntry:
			fmt.Fprintf(b, "JOIN(%d)", n.JoinIndex)
		case AlwaysFalseEntry:
			b.WriteString("FALSE")
		case *Bracket:
			b.WriteString("(")
			writeEntriesSQL(b, n.Entries)
			b.WriteString(")")
		}
	}
}

func condToSQL(c Condition) string {
	switch c {
	case CondEq:
		return "="
	case CondLt:
		return "<"
	case CondLe:
		return "<="
	case CondGt:
		return ">"
	case CondGe:
		return ">="
	case CondRange:
		return "RANGE"
	case CondSet:
		return "IN"
	case CondAllSet:
		return "ALLSET"
	case CondEmpty:
		return "IS NULL"
	case CondAny:
		return "IS NOT NULL"
	case CondLike:
		return "LIKE"
	case CondDWithin:
		return "DWITHIN"
	case CondDistinctTag:
		return "DISTINCT"
	default:
		return "?"
	}
}

func aggToSQL(t AggType) string {
	switch t {
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggFacet:
		return "facet"
	case AggDistinct:
		return "distinct"
	default:
		return "?"
	}
}

func valuesToSQL(vals []variant.Variant) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
