// Package merger turns raw store rows into canonical records and merges the
// answers of several stores into one deterministic result.
package merger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"golang.org/x/xerrors"
)

// StoreRows are the canonical records one store returned, in the order it
// returned them. Index is the store position in the partition map.
type StoreRows struct {
	Store   string
	Index   int
	Records []record.Record
}

type MergedRow struct {
	Record record.Record
	Store  string
	// Seq is the row position within its store's answer.
	Seq int
}

// ResultSet is built fresh for every federated query.
type ResultSet struct {
	ID      string
	Dataset string
	Rows    []MergedRow

	// Answered and Failed list stores in partition map order.
	Answered []string
	Failed   []string
}

func (rs *ResultSet) Records() []record.Record {
	res := make([]record.Record, len(rs.Rows))
	for i, r := range rs.Rows {
		res[i] = r.Record
	}
	return res
}

// NormalizeRows maps raw rows laid out by tm onto the logical fields of
// schema. Fields the store does not keep are nil.
func NormalizeRows(schema *record.Schema, tm *store.TableMapping, raw [][]any) ([]record.Record, error) {
	res := make([]record.Record, 0, len(raw))
	for n, vals := range raw {
		if len(vals) != len(tm.Columns) {
			return nil, xerrors.Errorf("row %d of %s has %d values, expected %d", n, tm.Table, len(vals), len(tm.Columns))
		}
		rec := make(record.Record, len(schema.Fields))
		for _, f := range schema.Fields {
			rec[f.Name] = nil
		}
		for i, c := range tm.Columns {
			f, ok := schema.Field(c.Field)
			if !ok {
				return nil, xerrors.Errorf("column %s maps unknown field %q", c.Column, c.Field)
			}
			v, err := record.Coerce(f.Type, vals[i])
			if err != nil {
				return nil, xerrors.Errorf("row %d of %s, column %s: %w", n, tm.Table, c.Column, err)
			}
			rec[f.Name] = v
		}
		res = append(res, rec)
	}
	return res, nil
}

type keyedRow struct {
	MergedRow
	key   int64
	index int
}

// Merge orders the rows of every part by partition key, then the schema
// sort fields, then store position, then row position. The order is total
// so merging the same answers twice gives the same sequence.
func Merge(schema *record.Schema, parts []StoreRows) (*ResultSet, error) {
	parts = append([]StoreRows(nil), parts...)
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].Index < parts[j].Index
	})

	rs := &ResultSet{
		ID:       uuid.NewString(),
		Dataset:  schema.Name,
		Answered: make([]string, 0, len(parts)),
	}
	var rows []keyedRow
	for _, p := range parts {
		rs.Answered = append(rs.Answered, p.Store)
		for seq, rec := range p.Records {
			key, err := schema.PartitionKey(rec)
			if err != nil {
				return nil, xerrors.Errorf("store %s returned a row without partition key: %w", p.Store, err)
			}
			rows = append(rows, keyedRow{
				MergedRow: MergedRow{Record: rec, Store: p.Store, Seq: seq},
				key:       key,
				index:     p.Index,
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.key != b.key {
			return a.key < b.key
		}
		for _, f := range schema.SortFields {
			if c := record.Compare(a.Record[f], b.Record[f]); c != 0 {
				return c < 0
			}
		}
		if a.index != b.index {
			return a.index < b.index
		}
		return a.Seq < b.Seq
	})

	rs.Rows = make([]MergedRow, len(rows))
	for i, r := range rows {
		rs.Rows[i] = r.MergedRow
	}
	return rs, nil
}
