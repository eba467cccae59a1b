package merger

import (
	"fmt"
	"sort"

	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/xerrors"
)

// GroupRow is one group of one store's aggregate answer.
type GroupRow struct {
	Key   any
	Count int64
	Sum   decimal.Decimal
}

type StoreAggregate struct {
	Store  string
	Index  int
	Groups []GroupRow
}

type AggregateGroup struct {
	Key   any
	Count int64
	Sum   decimal.Decimal
	// PerStore holds the row count contributed by every store.
	PerStore map[string]int64
}

type AggregateSet struct {
	Dataset  string
	GroupBy  string
	SumField string
	Groups   []*AggregateGroup

	Answered []string
	Failed   []string
}

// Total returns the count and sum over every group.
func (as *AggregateSet) Total() (int64, decimal.Decimal) {
	var count int64
	sum := decimal.Zero
	for _, g := range as.Groups {
		count += g.Count
		sum = sum.Add(g.Sum)
	}
	return count, sum
}

// NormalizeAggregate decodes raw aggregate rows laid out as
// [group,] count [, sum].
func NormalizeAggregate(schema *record.Schema, groupField, sumField string, raw [][]any) ([]GroupRow, error) {
	width := 1
	var groupType record.FieldType
	if groupField != "" {
		f, ok := schema.Field(groupField)
		if !ok {
			return nil, xerrors.Errorf("unknown group field %q", groupField)
		}
		groupType = f.Type
		width++
	}
	if sumField != "" {
		width++
	}

	res := make([]GroupRow, 0, len(raw))
	for n, vals := range raw {
		if len(vals) != width {
			return nil, xerrors.Errorf("aggregate row %d has %d values, expected %d", n, len(vals), width)
		}
		var g GroupRow
		pos := 0
		if groupField != "" {
			key, err := record.Coerce(groupType, vals[0])
			if err != nil {
				return nil, xerrors.Errorf("aggregate row %d, group %s: %w", n, groupField, err)
			}
			g.Key = key
			pos++
		}
		count, err := record.Coerce(record.TypeInt, vals[pos])
		if err != nil {
			return nil, xerrors.Errorf("aggregate row %d, count: %w", n, err)
		}
		if count != nil {
			g.Count = count.(int64)
		}
		g.Sum = decimal.Zero
		if sumField != "" {
			sum, err := record.Coerce(record.TypeDecimal, vals[pos+1])
			if err != nil {
				return nil, xerrors.Errorf("aggregate row %d, sum of %s: %w", n, sumField, err)
			}
			if sum != nil {
				g.Sum = sum.(decimal.Decimal)
			}
		}
		res = append(res, g)
	}
	return res, nil
}

// groupKey tells groups apart by value kind as well as by printed value, so
// a NULL group never meets the string "NULL".
type groupKey struct {
	kind string
	text string
}

func keyOf(v any) groupKey {
	return groupKey{kind: fmt.Sprintf("%T", v), text: record.FormatValue(v)}
}

// MergeAggregates adds up the groups of every store. Groups are ordered by
// total count descending, then by key.
func MergeAggregates(dataset, groupBy, sumField string, parts []StoreAggregate) *AggregateSet {
	parts = append([]StoreAggregate(nil), parts...)
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].Index < parts[j].Index
	})

	as := &AggregateSet{
		Dataset:  dataset,
		GroupBy:  groupBy,
		SumField: sumField,
		Answered: make([]string, 0, len(parts)),
	}
	index := map[groupKey]*AggregateGroup{}
	for _, p := range parts {
		as.Answered = append(as.Answered, p.Store)
		for _, g := range p.Groups {
			if groupBy == "" && g.Count == 0 {
				continue
			}
			k := keyOf(g.Key)
			ag, ok := index[k]
			if !ok {
				ag = &AggregateGroup{Key: g.Key, Sum: decimal.Zero, PerStore: map[string]int64{}}
				index[k] = ag
			}
			ag.Count += g.Count
			ag.Sum = ag.Sum.Add(g.Sum)
			ag.PerStore[p.Store] += g.Count
		}
	}

	keys := maps.Keys(index)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].text != keys[j].text {
			return keys[i].text < keys[j].text
		}
		return keys[i].kind < keys[j].kind
	})
	as.Groups = make([]*AggregateGroup, 0, len(keys))
	for _, k := range keys {
		as.Groups = append(as.Groups, index[k])
	}
	sort.SliceStable(as.Groups, func(i, j int) bool {
		a, b := as.Groups[i], as.Groups[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return record.Compare(a.Key, b.Key) < 0
	})
	return as
}
