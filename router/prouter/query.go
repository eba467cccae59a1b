package prouter

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/merger"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/pg-sharding/fedrouter/router/statistics"
)

// Filter selects rows by field equality and by an optional inclusive
// partition key interval. A nil Filter selects everything.
type Filter struct {
	Equals  map[string]any
	KeyFrom *int64
	KeyTo   *int64
}

// KeyFilter selects the rows of a single partition key.
func KeyFilter(key int64) *Filter {
	return &Filter{KeyFrom: &key, KeyTo: &key}
}

type readPlan struct {
	stores []string
	conds  []store.FieldCond
}

// plan validates f against schema and picks the candidate stores. A filter
// bounding the partition key only reaches the stores whose ranges intersect
// the bound.
func (r *Router) plan(schema *record.Schema, f *Filter) (*readPlan, error) {
	p := &readPlan{}
	if f == nil {
		p.stores = r.pmap.Stores()
		return p, nil
	}
	if f.KeyFrom != nil && f.KeyTo != nil && *f.KeyFrom > *f.KeyTo {
		return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: key interval [%d, %d] is empty", schema.Name, *f.KeyFrom, *f.KeyTo)
	}

	lo, hi := r.pmap.Domain()
	bounded := false

	fields := make([]string, 0, len(f.Equals))
	for name := range f.Equals {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	for _, name := range fields {
		fd, ok := schema.Field(name)
		if !ok {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: unknown field %q", schema.Name, name)
		}
		v, err := record.Coerce(fd.Type, f.Equals[name])
		if err != nil {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: field %q: %v", schema.Name, name, err)
		}
		if v == nil {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: field %q compared with null", schema.Name, name)
		}
		p.conds = append(p.conds, store.FieldCond{Field: name, Op: store.OpEq, Value: v})
		if name == schema.PartitionField {
			key, err := schema.KeyOf(v)
			if err != nil {
				return nil, err
			}
			lo, hi = max(lo, key), min(hi, key)
			bounded = true
		}
	}

	if f.KeyFrom != nil {
		lo = max(lo, *f.KeyFrom)
		bounded = true
	}
	if f.KeyTo != nil {
		hi = min(hi, *f.KeyTo)
		bounded = true
	}

	if !bounded {
		p.stores = r.pmap.Stores()
		return p, nil
	}
	stores, err := r.pmap.StoresFor(lo, hi)
	if err != nil {
		return nil, err
	}
	p.stores = stores

	// lo and hi lie inside the domain here, so hi+1 cannot overflow.
	if f.KeyFrom != nil {
		p.conds = append(p.conds, keyCond(schema, store.OpGe, lo))
	}
	if f.KeyTo != nil {
		if schema.PartitionDerive == record.KeyYear {
			p.conds = append(p.conds, keyCond(schema, store.OpLt, hi+1))
		} else {
			p.conds = append(p.conds, keyCond(schema, store.OpLe, hi))
		}
	}
	return p, nil
}

// keyCond compares the partition field with the first value of key.
func keyCond(schema *record.Schema, op store.CondOp, key int64) store.FieldCond {
	var v any = key
	if schema.PartitionDerive == record.KeyYear {
		v = time.Date(int(key), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return store.FieldCond{Field: schema.PartitionField, Op: op, Value: v}
}

type storeAnswer struct {
	store string
	raw   [][]any
	err   error
}

// fanOut reads every store concurrently. Each store answers on its own
// connection; a failure of one never affects the others. When ctx ends the
// stores that have not answered yet are reported as failed.
func (r *Router) fanOut(ctx context.Context, dataset, op string, stores []string, build func(tm *store.TableMapping) (*store.Statement, error)) (map[string][][]any, map[string]error) {
	answers := make(chan storeAnswer, len(stores))
	wg := sync.WaitGroup{}
	for _, s := range stores {
		wg.Add(1)
		go func(s string) {
			defer wg.Done()
			raw, err := r.readStore(ctx, s, dataset, op, build)
			answers <- storeAnswer{store: s, raw: raw, err: err}
		}(s)
	}
	go func() {
		wg.Wait()
		close(answers)
	}()

	answered := make(map[string][][]any, len(stores))
	failed := map[string]error{}
	pending := len(stores)
	for pending > 0 {
		select {
		case a := <-answers:
			pending--
			if a.err != nil {
				failed[a.store] = a.err
				continue
			}
			answered[a.store] = a.raw
		case <-ctx.Done():
			for _, s := range stores {
				_, ok := answered[s]
				if _, nok := failed[s]; !ok && !nok {
					failed[s] = fderror.Wrap(fderror.FDR_STORE_UNAVAILABLE, s, op, ctx.Err())
				}
			}
			pending = 0
		}
	}
	return answered, failed
}

func (r *Router) readStore(ctx context.Context, s, dataset, op string, build func(tm *store.TableMapping) (*store.Statement, error)) ([][]any, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, op+" store")
	defer span.Finish()
	span.SetTag("store", s)

	h := r.handles[s]
	tm, err := h.Descriptor().Table(dataset)
	if err != nil {
		return nil, err
	}
	st, err := build(tm)
	if err != nil {
		return nil, attribute(err, s, op)
	}

	start := time.Now()
	rows, err := h.Query(ctx, st)
	if err == nil {
		var raw [][]any
		raw, err = store.ReadAll(rows)
		if err == nil {
			statistics.RecordStoreOp(s, op, start, nil)
			return raw, nil
		}
	}
	statistics.RecordStoreOp(s, op, start, err)
	span.SetTag("error", true)
	fedlog.Zero.Warn().
		Err(err).
		Str("store", s).
		Str("dataset", dataset).
		Msg("store failed to answer a federated read")
	return nil, err
}

func attribute(err error, s, op string) error {
	var fe *fderror.FedError
	if errors.As(err, &fe) {
		return fe.WithStore(s, op)
	}
	return fderror.Wrap(fderror.FDR_UNEXPECTED, s, op, err)
}

// orderedFailures lists failed stores in partition map order.
func (r *Router) orderedFailures(failed map[string]error) []string {
	res := make([]string, 0, len(failed))
	for _, s := range r.pmap.Stores() {
		if _, ok := failed[s]; ok {
			res = append(res, s)
		}
	}
	return res
}

// Query reads dataset from every candidate store concurrently and merges
// the rows in partition key order. When some stores fail the rows of the
// others are returned together with a *fderror.PartialFederationError.
func (r *Router) Query(ctx context.Context, dataset string, f *Filter) (*merger.ResultSet, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "query")
	defer span.Finish()
	span.SetTag("dataset", dataset)

	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	schema, err := r.Schema(dataset)
	if err != nil {
		return nil, err
	}
	p, err := r.plan(schema, f)
	if err != nil {
		return nil, err
	}

	answered, failed := r.fanOut(ctx, dataset, "query", p.stores, func(tm *store.TableMapping) (*store.Statement, error) {
		return tm.SelectStatement(p.conds)
	})

	var parts []merger.StoreRows
	for _, s := range p.stores {
		raw, ok := answered[s]
		if !ok {
			continue
		}
		tm, _ := r.handles[s].Descriptor().Table(dataset)
		recs, err := merger.NormalizeRows(schema, tm, raw)
		if err == nil {
			for _, rec := range recs {
				if _, kerr := schema.PartitionKey(rec); kerr != nil {
					err = kerr
					break
				}
			}
		}
		if err != nil {
			failed[s] = fderror.Wrap(fderror.FDR_STORE_REJECTED, s, "decode", err)
			continue
		}
		parts = append(parts, merger.StoreRows{Store: s, Index: r.pmap.StoreIndex(s), Records: recs})
	}

	rs, err := merger.Merge(schema, parts)
	if err != nil {
		return nil, fderror.Wrap(fderror.FDR_UNEXPECTED, "", "merge", err)
	}
	rs.Failed = r.orderedFailures(failed)
	span.SetTag("rows", len(rs.Rows))

	fedlog.Zero.Debug().
		Str("query", rs.ID).
		Str("dataset", dataset).
		Strs("answered", rs.Answered).
		Strs("failed", rs.Failed).
		Int("rows", len(rs.Rows)).
		Msg("federated query finished")

	if len(failed) > 0 {
		statistics.RecordPartial(dataset, "query")
		span.SetTag("partial", true)
		return rs, &fderror.PartialFederationError{Op: "query", Answered: rs.Answered, Failures: failed}
	}
	return rs, nil
}

// Aggregate counts rows per value of groupBy across every candidate store
// and, when sumField is set, sums it. An empty groupBy yields one group.
func (r *Router) Aggregate(ctx context.Context, dataset, groupBy, sumField string, f *Filter) (*merger.AggregateSet, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aggregate")
	defer span.Finish()
	span.SetTag("dataset", dataset)
	span.SetTag("group_by", groupBy)

	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	schema, err := r.Schema(dataset)
	if err != nil {
		return nil, err
	}
	if groupBy != "" {
		if _, ok := schema.Field(groupBy); !ok {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: unknown group field %q", dataset, groupBy)
		}
	}
	if sumField != "" {
		fd, ok := schema.Field(sumField)
		if !ok {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: unknown sum field %q", dataset, sumField)
		}
		if fd.Type != record.TypeInt && fd.Type != record.TypeDecimal {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: field %q is not numeric", dataset, sumField)
		}
	}
	p, err := r.plan(schema, f)
	if err != nil {
		return nil, err
	}

	answered, failed := r.fanOut(ctx, dataset, "aggregate", p.stores, func(tm *store.TableMapping) (*store.Statement, error) {
		return tm.AggregateStatement(groupBy, sumField, p.conds)
	})

	var parts []merger.StoreAggregate
	for _, s := range p.stores {
		raw, ok := answered[s]
		if !ok {
			continue
		}
		groups, err := merger.NormalizeAggregate(schema, groupBy, sumField, raw)
		if err != nil {
			failed[s] = fderror.Wrap(fderror.FDR_STORE_REJECTED, s, "decode", err)
			continue
		}
		parts = append(parts, merger.StoreAggregate{Store: s, Index: r.pmap.StoreIndex(s), Groups: groups})
	}

	as := merger.MergeAggregates(dataset, groupBy, sumField, parts)
	as.Failed = r.orderedFailures(failed)
	if len(failed) > 0 {
		statistics.RecordPartial(dataset, "aggregate")
		span.SetTag("partial", true)
		return as, &fderror.PartialFederationError{Op: "aggregate", Answered: as.Answered, Failures: failed}
	}
	return as, nil
}

// Totals is Aggregate without grouping: the row count and the sum of
// sumField over the whole federation.
func (r *Router) Totals(ctx context.Context, dataset, sumField string) (*merger.AggregateSet, error) {
	return r.Aggregate(ctx, dataset, "", sumField, nil)
}
