package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/pg-sharding/fedrouter/pkg/merger"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/kr"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	return t
}

func writeRecords(w io.Writer, schema *record.Schema, rs *merger.ResultSet) {
	t := newTable(w)
	header := table.Row{"store"}
	for _, f := range schema.Fields {
		header = append(header, f.Name)
	}
	t.AppendHeader(header)
	for _, row := range rs.Rows {
		r := table.Row{row.Store}
		for _, f := range schema.Fields {
			r = append(r, record.FormatValue(row.Record[f.Name]))
		}
		t.AppendRow(r)
	}
	t.AppendFooter(table.Row{"rows", len(rs.Rows)})
	t.Render()
}

func writeAggregate(w io.Writer, as *merger.AggregateSet) {
	t := newTable(w)
	header := table.Row{}
	if as.GroupBy != "" {
		header = append(header, as.GroupBy)
	}
	header = append(header, "count")
	if as.SumField != "" {
		header = append(header, "sum("+as.SumField+")")
	}
	header = append(header, "stores")
	t.AppendHeader(header)

	for _, g := range as.Groups {
		r := table.Row{}
		if as.GroupBy != "" {
			r = append(r, record.FormatValue(g.Key))
		}
		r = append(r, g.Count)
		if as.SumField != "" {
			r = append(r, g.Sum.String())
		}
		r = append(r, perStore(g.PerStore))
		t.AppendRow(r)
	}

	count, sum := as.Total()
	footer := table.Row{}
	if as.GroupBy != "" {
		footer = append(footer, "total")
	}
	footer = append(footer, count)
	if as.SumField != "" {
		footer = append(footer, sum.String())
	}
	t.AppendFooter(footer)
	t.Render()
}

func perStore(counts map[string]int64) string {
	stores := make([]string, 0, len(counts))
	for s := range counts {
		stores = append(stores, s)
	}
	sort.Strings(stores)
	out := ""
	for i, s := range stores {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", s, counts[s])
	}
	return out
}

func writePartitionMap(w io.Writer, pmap *kr.PartitionMap) {
	lo, hi := pmap.Domain()
	fmt.Fprintf(w, "partition map %s, domain [%d..%d]\n", pmap.Version(), lo, hi)

	t := newTable(w)
	t.AppendHeader(table.Row{"range", "lower bound", "upper bound", "store"})
	for _, r := range pmap.Ranges() {
		t.AppendRow(table.Row{r.ID, r.LowerBound, r.UpperBound, r.StoreID})
	}
	t.Render()
}

// reportPartial prints the stores a partial federated read missed. It
// returns err unchanged unless it is a partial failure with at least one
// answering store.
func reportPartial(w io.Writer, err error) error {
	if err == nil {
		return nil
	}
	var pe *fderror.PartialFederationError
	if !errors.As(err, &pe) || pe.AllFailed() {
		return err
	}
	fmt.Fprintln(w, "incomplete result, failed stores:")
	t := newTable(w)
	t.AppendHeader(table.Row{"store", "error"})
	for _, s := range pe.FailedStores() {
		t.AppendRow(table.Row{s, pe.Failures[s].Error()})
	}
	t.Render()
	return nil
}
