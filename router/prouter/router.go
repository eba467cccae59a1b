// Package prouter routes writes to the store owning a record's partition key
// and federates reads over every store that may hold matching rows.
package prouter

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/kr"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/pg-sharding/fedrouter/router/statistics"
	"go.uber.org/atomic"
)

type InsertResult struct {
	Store    string
	Affected int64
}

// Router is safe for concurrent use. It holds no lock: writes to different
// stores proceed independently.
type Router struct {
	pmap    *kr.PartitionMap
	schemas map[string]*record.Schema
	handles map[string]store.StoreHandle

	closed *atomic.Bool
}

// NewRouter checks that every store referenced by pmap has a handle and that
// every handle maps every dataset of schemas.
func NewRouter(pmap *kr.PartitionMap, schemas map[string]*record.Schema, handles []store.StoreHandle) (*Router, error) {
	r := &Router{
		pmap:    pmap,
		schemas: schemas,
		handles: make(map[string]store.StoreHandle, len(handles)),
		closed:  atomic.NewBool(false),
	}
	for _, h := range handles {
		if _, ok := r.handles[h.Name()]; ok {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "duplicate store handle %q", h.Name())
		}
		if pmap.StoreIndex(h.Name()) < 0 {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "store %q is not referenced by partition map %s", h.Name(), pmap.Version())
		}
		for _, schema := range schemas {
			if err := h.Descriptor().Validate(schema); err != nil {
				return nil, err
			}
		}
		r.handles[h.Name()] = h
	}
	for _, s := range pmap.Stores() {
		if _, ok := r.handles[s]; !ok {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "no handle for store %q", s)
		}
	}
	return r, nil
}

func (r *Router) PartitionMap() *kr.PartitionMap {
	return r.pmap
}

// Datasets returns the served dataset names, sorted.
func (r *Router) Datasets() []string {
	res := make([]string, 0, len(r.schemas))
	for ds := range r.schemas {
		res = append(res, ds)
	}
	sort.Strings(res)
	return res
}

func (r *Router) Schema(dataset string) (*record.Schema, error) {
	schema, ok := r.schemas[dataset]
	if !ok {
		return nil, fderror.Newf(fderror.FDR_VALIDATION, "unknown dataset %q", dataset)
	}
	return schema, nil
}

func (r *Router) checkOpen() error {
	if r.closed.Load() {
		return fderror.New(fderror.FDR_STORE_UNAVAILABLE, "router is closed")
	}
	return nil
}

// Insert validates rec, resolves the store owning its partition key and
// writes it there in a transaction of its own. Nothing reaches a store
// unless validation passes; a write that does not commit is rolled back,
// also when the driver panics.
func (r *Router) Insert(ctx context.Context, dataset string, rec record.Record) (*InsertResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "insert")
	defer span.Finish()
	span.SetTag("dataset", dataset)

	res, err := r.insert(ctx, dataset, rec)
	if err != nil {
		span.SetTag("error", true)
		span.SetTag("code", fderror.Code(err))
		statistics.RecordRejected(dataset, err)
		return nil, err
	}
	span.SetTag("store", res.Store)
	statistics.RecordRouted(dataset, res.Store)
	return res, nil
}

func (r *Router) insert(ctx context.Context, dataset string, rec record.Record) (*InsertResult, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	schema, err := r.Schema(dataset)
	if err != nil {
		return nil, err
	}
	canon, err := schema.Normalize(rec)
	if err != nil {
		return nil, err
	}
	key, err := schema.PartitionKey(canon)
	if err != nil {
		return nil, err
	}
	target, err := r.pmap.Resolve(key)
	if err != nil {
		return nil, err
	}
	h := r.handles[target]
	tm, err := h.Descriptor().Table(dataset)
	if err != nil {
		return nil, err
	}
	st, err := tm.InsertStatement(schema, canon)
	if err != nil {
		return nil, err
	}

	fedlog.Zero.Debug().
		Str("dataset", dataset).
		Int64("key", key).
		Str("store", target).
		Msg("routing record")

	start := time.Now()
	tx, err := h.BeginWrite(ctx)
	statistics.RecordStoreOp(target, "begin", start, err)
	if err != nil {
		return nil, err
	}
	// No-op once the transaction is committed.
	defer func() {
		if rerr := h.Rollback(ctx, tx); rerr != nil {
			fedlog.Zero.Error().
				Err(rerr).
				Str("store", target).
				Str("tx", tx.ID()).
				Msg("failed to roll back write transaction")
		}
	}()

	start = time.Now()
	n, err := h.Execute(ctx, tx, st)
	statistics.RecordStoreOp(target, "execute", start, err)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	err = h.Commit(ctx, tx)
	statistics.RecordStoreOp(target, "commit", start, err)
	if err != nil {
		return nil, err
	}
	return &InsertResult{Store: target, Affected: n}, nil
}

// Close closes every store handle and returns all failures joined.
func (r *Router) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, s := range r.storeOrder() {
		if err := r.handles[s].Close(); err != nil {
			fedlog.Zero.Error().Err(err).Str("store", s).Msg("failed to close store")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// storeOrder lists handles in partition map order.
func (r *Router) storeOrder() []string {
	res := make([]string, 0, len(r.handles))
	for _, s := range r.pmap.Stores() {
		if _, ok := r.handles[s]; ok {
			res = append(res, s)
		}
	}
	return res
}
