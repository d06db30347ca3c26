package query

import (
	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// Encode serializes q into the tagged binary record stream, terminated
// by QueryEnd.
func Encode(q *Query) []byte {
	s := &serializer{}
	s.writeString(q.Namespace)

	brackets := []*Bracket{&q.Root}
	encodeEntries(s, q.Root.Entries, &brackets)

	for idx, br := range brackets {
		for _, g := range br.EqualPositions {
			s.writeCInt(int(tagEqualPosition))
			s.writeCInt(idx)
			s.writeCInt(len(g.Fields))
			for _, f := range g.Fields {
				s.writeString(f)
			}
		}
	}

	for _, a := range q.Aggregations {
		if a.Type == AggDistinct {
			field := ""
			if len(a.Fields) > 0 {
				field = a.Fields[0]
			}
			s.writeCInt(int(tagDistinct))
			s.writeString(field)
			continue
		}
		s.writeCInt(int(tagAggregation))
		s.writeCInt(int(a.Type))
		s.writeCInt(len(a.Fields))
		for _, f := range a.Fields {
			s.writeString(f)
		}
		for _, se := range a.Sort {
			s.writeCInt(int(tagAggregationSort))
			s.writeString(se.Expr)
			s.writeBool(se.Desc)
		}
		if a.Limit != AggregationNoLimit {
			s.writeCInt(int(tagAggregationLimit))
			s.writeCInt(a.Limit)
		}
		if a.Offset != 0 {
			s.writeCInt(int(tagAggregationOffset))
			s.writeCInt(a.Offset)
		}
	}

	for i, se := range q.Sort {
		s.writeCInt(int(tagSortIndex))
		s.writeString(se.Expr)
		s.writeBool(se.Desc)
		if i == 0 {
			s.writeCInt(len(se.ForcedOrder))
			for _, v := range se.ForcedOrder {
				s.writeVariant(v)
			}
		} else {
			s.writeCInt(0)
		}
	}

	if len(q.SelectFilter) > 0 {
		s.writeCInt(int(tagSelectFilter))
		s.writeCInt(len(q.SelectFilter))
		for _, f := range q.SelectFilter {
			s.writeString(f)
		}
	}
	for _, fn := range q.SelectFunctions {
		s.writeCInt(int(tagSelectFunction))
		s.writeString(fn)
	}

	for _, uf := range q.UpdateFields {
		if uf.Mode == UpdateDrop {
			s.writeCInt(int(tagDropField))
			s.writeString(uf.Name)
			continue
		}
		s.writeCInt(int(tagUpdateFieldV2))
		s.writeString(uf.Name)
		s.writeBool(len(uf.Values) > 1)
		s.writeBool(uf.IsExpression)
		s.writeBool(uf.Mode == UpdateSetJSONObject)
		s.writeCInt(len(uf.Values))
		for _, v := range uf.Values {
			s.writeVariant(v)
		}
	}

	if q.DebugLevel != 0 {
		s.writeCInt(int(tagDebugLevel))
		s.writeCInt(q.DebugLevel)
	}
	if q.StrictMode {
		s.writeCInt(int(tagStrictMode))
		s.writeBool(true)
	}
	if q.Limit != 0 {
		s.writeCInt(int(tagLimit))
		s.writeCInt(q.Limit)
	}
	if q.Offset != 0 {
		s.writeCInt(int(tagOffset))
		s.writeCInt(q.Offset)
	}
	if q.TotalMode != TotalNone {
		s.writeCInt(int(tagReqTotal))
		s.writeCInt(int(q.TotalMode))
	}
	if q.Explain {
		s.writeCInt(int(tagExplain))
	}
	if q.WithRank {
		s.writeCInt(int(tagWithRank))
	}

	for idx, j := range q.Joins {
		for _, p := range j.Predicates {
			s.writeCInt(int(tagJoinOn))
			s.writeCInt(idx)
			s.writeCInt(int(p.Cond))
			s.writeString(p.Field)
			s.writeString(p.JoinField)
		}
	}

	s.writeCInt(int(tagQueryEnd))

	s.writeCInt(len(q.Joins))
	for _, j := range q.Joins {
		s.writeCInt(int(j.Type))
		sub := Encode(j.Query)
		s.writeCInt(len(sub))
		s.buf = append(s.buf, sub...)
	}
	s.writeCInt(len(q.Merges))
	for _, m := range q.Merges {
		sub := Encode(m.Query)
		s.writeCInt(len(sub))
		s.buf = append(s.buf, sub...)
	}

	return s.bytes()
}

func encodeEntries(s *serializer, entries []Entry, brackets *[]*Bracket) {
	for _, e := range entries {
		switch n := e.Node.(type) {
		case QueryEntry:
			s.writeCInt(int(tagCondition))
			s.writeString(n.Field)
			s.writeCInt(int(e.Op))
			s.writeCInt(int(n.Cond))
			s.writeCInt(len(n.Values))
			for _, v := range n.Values {
				s.writeVariant(v)
			}
		case BetweenFieldsQueryEntry:
			s.writeCInt(int(tagBetweenFieldsCondition))
			s.writeCInt(int(e.Op))
			s.writeCInt(int(n.Cond))
			s.writeString(n.FieldA)
			s.writeString(n.FieldB)
		case JoinQueryEntry:
			s.writeCInt(int(tagJoinCondition))
			s.writeCInt(int(e.Op))
			s.writeCInt(n.JoinIndex)
		case AlwaysFalseEntry:
			s.writeCInt(int(tagAlwaysFalse))
			s.writeCInt(int(e.Op))
		case *Bracket:
			s.writeCInt(int(tagOpenBracket))
			s.writeCInt(int(e.Op))
			*brackets = append(*brackets, n)
			encodeEntries(s, n.Entries, brackets)
			s.writeCInt(int(tagCloseBracket))
		}
	}
}

// Decode parses the tagged binary record stream produced by Encode.
// Bracket imbalance, an EqualPosition referencing a nonexistent bracket,
// or a DWithin condition not carrying exactly three variants are
// decoding errors.
func Decode(data []byte) (*Query, error) {
	d := newDeserializer(data)
	ns, err := d.readString()
	if err != nil {
		return nil, err
	}
	q := New(ns)

	root := &Bracket{}
	brackets := []*Bracket{root}
	entries, err := decodeEntries(d, &brackets)
	if err != nil {
		return nil, err
	}
	root.Entries = entries
	q.Root = *root

	pendingJoinOns := map[int][]JoinPredicate{}

flat:
	for {
		t, err := d.readCInt()
		if err != nil {
			return nil, err
		}
		switch tag(t) {
		case tagCloseBracket:
			return nil, coreerrors.New(coreerrors.KindParseBin, "unbalanced CloseBracket")
		case tagEqualPosition:
			idx, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			n, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			fields := make([]string, n)
			for i := range fields {
				if fields[i], err = d.readString(); err != nil {
					return nil, err
				}
			}
			if idx < 0 || idx >= len(brackets) {
				return nil, coreerrors.New(coreerrors.KindParseBin, "EqualPosition references unknown bracket %d", idx)
			}
			target := brackets[idx]
			target.EqualPositions = append(target.EqualPositions, EqualPositionGroup{BracketIndex: idx, Fields: fields})
			if idx == 0 {
				q.Root = *root
			}
		case tagAggregation:
			typ, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			n, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			fields := make([]string, n)
			for i := range fields {
				if fields[i], err = d.readString(); err != nil {
					return nil, err
				}
			}
			agg := Aggregation{Type: AggType(typ), Fields: fields, Limit: AggregationNoLimit}
			for {
				it, rewind, err := d.peekTag()
				if err != nil {
					return nil, err
				}
				switch tag(it) {
				case tagAggregationSort:
					expr, err := d.readString()
					if err != nil {
						return nil, err
					}
					desc, err := d.readBool()
					if err != nil {
						return nil, err
					}
					agg.Sort = append(agg.Sort, SortEntry{Expr: expr, Desc: desc})
				case tagAggregationLimit:
					v, err := d.readCInt()
					if err != nil {
						return nil, err
					}
					agg.Limit = v
				case tagAggregationOffset:
					v, err := d.readCInt()
					if err != nil {
						return nil, err
					}
					agg.Offset = v
				default:
					rewind()
					goto doneAgg
				}
			}
		doneAgg:
			q.Aggregations = append(q.Aggregations, agg)
		case tagDistinct:
			field, err := d.readString()
			if err != nil {
				return nil, err
			}
			q.Aggregations = append(q.Aggregations, Aggregation{Type: AggDistinct, Fields: []string{field}, Limit: AggregationNoLimit})
		case tagSortIndex:
			expr, err := d.readString()
			if err != nil {
				return nil, err
			}
			desc, err := d.readBool()
			if err != nil {
				return nil, err
			}
			n, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			var forced []variant.Variant
			if n > 0 {
				forced = make([]variant.Variant, n)
				for i := range forced {
					if forced[i], err = d.readVariant(); err != nil {
						return nil, err
					}
				}
			}
			q.Sort = append(q.Sort, SortEntry{Expr: expr, Desc: desc, ForcedOrder: forced})
		case tagSelectFilter:
			n, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			fields := make([]string, n)
			for i := range fields {
				if fields[i], err = d.readString(); err != nil {
					return nil, err
				}
			}
			q.SelectFilter = fields
		case tagSelectFunction:
			fn, err := d.readString()
			if err != nil {
				return nil, err
			}
			q.SelectFunctions = append(q.SelectFunctions, fn)
		case tagDropField:
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			q.UpdateFields = append(q.UpdateFields, UpdateFieldSpec{Name: name, Mode: UpdateDrop})
		case tagUpdateFieldV2:
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			if _, err = d.readBool(); err != nil { // is-array, informational only
				return nil, err
			}
			isExpr, err := d.readBool()
			if err != nil {
				return nil, err
			}
			isJSONObj, err := d.readBool()
			if err != nil {
				return nil, err
			}
			n, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			vals := make([]variant.Variant, n)
			for i := range vals {
				if vals[i], err = d.readVariant(); err != nil {
					return nil, err
				}
			}
			mode := UpdateSet
			if isJSONObj {
				mode = UpdateSetJSONObject
			}
			q.UpdateFields = append(q.UpdateFields, UpdateFieldSpec{Name: name, Values: vals, Mode: mode, IsExpression: isExpr})
		case tagDebugLevel:
			v, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			q.DebugLevel = v
		case tagStrictMode:
			v, err := d.readBool()
			if err != nil {
				return nil, err
			}
			q.StrictMode = v
		case tagLimit:
			v, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			q.Limit = v
		case tagOffset:
			v, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			q.Offset = v
		case tagReqTotal:
			v, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			q.TotalMode = TotalMode(v)
		case tagExplain:
			q.Explain = true
		case tagWithRank:
			q.WithRank = true
		case tagJoinOn:
			idx, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			cond, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			f, err := d.readString()
			if err != nil {
				return nil, err
			}
			jf, err := d.readString()
			if err != nil {
				return nil, err
			}
			pendingJoinOns[idx] = append(pendingJoinOns[idx], JoinPredicate{Cond: Condition(cond), Field: f, JoinField: jf})
		case tagQueryEnd:
			break flat
		default:
			return nil, coreerrors.New(coreerrors.KindParseBin, "unknown query record tag %d", t)
		}
	}

	njoins, err := d.readCInt()
	if err != nil {
		return nil, err
	}
	for i := 0; i < njoins; i++ {
		jt, err := d.readCInt()
		if err != nil {
			return nil, err
		}
		blen, err := d.readCInt()
		if err != nil {
			return nil, err
		}
		if d.pos+blen > len(d.buf) {
			return nil, coreerrors.New(coreerrors.KindParseBin, "truncated join query block")
		}
		sub := d.buf[d.pos : d.pos+blen]
		d.pos += blen
		subQ, err := Decode(sub)
		if err != nil {
			return nil, err
		}
		q.Joins = append(q.Joins, &JoinQuery{Query: subQ, Type: JoinType(jt), Predicates: pendingJoinOns[i]})
	}

	nmerges, err := d.readCInt()
	if err != nil {
		return nil, err
	}
	for i := 0; i < nmerges; i++ {
		blen, err := d.readCInt()
		if err != nil {
			return nil, err
		}
		if d.pos+blen > len(d.buf) {
			return nil, coreerrors.New(coreerrors.KindParseBin, "truncated merge query block")
		}
		sub := d.buf[d.pos : d.pos+blen]
		d.pos += blen
		subQ, err := Decode(sub)
		if err != nil {
			return nil, err
		}
		q.Merges = append(q.Merges, &JoinQuery{Query: subQ, Type: JoinMerge})
	}

	return q, nil
}

func decodeEntries(d *deserializer, brackets *[]*Bracket) ([]Entry, error) {
	var entries []Entry
	for {
		t, rewind, err := d.peekTag()
		if err != nil {
			return nil, err
		}
		switch tag(t) {
		case tagCondition:
			field, err := d.readString()
			if err != nil {
				return nil, err
			}
			op, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			cond, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			n, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			if Condition(cond) == CondDWithin && n != 3 {
				return nil, coreerrors.New(coreerrors.KindParseBin, "dwithin condition requires exactly 3 variants, got %d", n)
			}
			values := make([]variant.Variant, n)
			for i := range values {
				if values[i], err = d.readVariant(); err != nil {
					return nil, err
				}
			}
			entries = append(entries, Entry{Op: OpType(op), Node: QueryEntry{Field: field, Cond: Condition(cond), Values: values}})
		case tagBetweenFieldsCondition:
			op, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			cond, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			fa, err := d.readString()
			if err != nil {
				return nil, err
			}
			fb, err := d.readString()
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Op: OpType(op), Node: BetweenFieldsQueryEntry{FieldA: fa, FieldB: fb, Cond: Condition(cond)}})
		case tagJoinCondition:
			op, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			idx, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Op: OpType(op), Node: JoinQueryEntry{JoinIndex: idx}})
		case tagAlwaysFalse:
			op, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Op: OpType(op), Node: AlwaysFalseEntry{}})
		case tagOpenBracket:
			op, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			br := &Bracket{}
			*brackets = append(*brackets, br)
			children, err := decodeEntries(d, brackets)
			if err != nil {
				return nil, err
			}
			br.Entries = children
			t2, err := d.readCInt()
			if err != nil {
				return nil, err
			}
			if tag(t2) != tagCloseBracket {
				return nil, coreerrors.New(coreerrors.KindParseBin, "missing CloseBracket: %v", coreerrors.ErrBracketImbalance)
			}
			entries = append(entries, Entry{Op: OpType(op), Node: br})
		default:
			rewind()
			return entries, nil
		}
	}
}
