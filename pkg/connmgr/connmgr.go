// Package connmgr turns store configuration into open store handles.
package connmgr

import (
	"context"

	"github.com/pg-sharding/fedrouter/pkg/config"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/pg-sharding/fedrouter/pkg/store/memstore"
	"github.com/pg-sharding/fedrouter/pkg/store/pgstore"
	"github.com/pg-sharding/fedrouter/pkg/store/sqlstore"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// Opener opens the driver side of one configured store.
type Opener func(ctx context.Context, cfg *config.Store, desc *store.Descriptor, schemas map[string]*record.Schema) (store.Conn, error)

// DescriptorFromCfg builds the immutable descriptor of cfg for datasets.
func DescriptorFromCfg(cfg *config.Store, datasets []string) (*store.Descriptor, error) {
	desc := &store.Descriptor{
		Name:   cfg.Name,
		Driver: string(cfg.Driver),
		Tables: map[string]*store.TableMapping{},
	}
	for _, ds := range datasets {
		layout, ok := cfg.TableLayout(ds)
		if !ok {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "dataset %q has no table layout", ds).WithStore(cfg.Name, "mapping")
		}
		tm := &store.TableMapping{Table: layout.Table}
		for _, c := range layout.Columns {
			tm.Columns = append(tm.Columns, store.ColumnMapping{Field: c.Field, Column: c.Column})
		}
		desc.Tables[ds] = tm
	}
	return desc, nil
}

// OpenConn opens the native connection pool of cfg.
func OpenConn(ctx context.Context, cfg *config.Store, desc *store.Descriptor, schemas map[string]*record.Schema) (store.Conn, error) {
	switch cfg.Driver {
	case config.PgxDriver:
		return pgstore.Open(ctx, cfg)
	case config.PqDriver, config.SQLServerDriver, config.MySQLDriver:
		return sqlstore.Open(ctx, cfg)
	case config.MemoryDriver:
		eng := memstore.NewEngine(cfg.Name)
		if err := eng.CreateTables(desc, schemas); err != nil {
			return nil, err
		}
		return eng.Conn(), nil
	}
	return nil, fderror.Newf(fderror.FDR_CONFIG, "unknown driver %q", cfg.Driver).WithStore(cfg.Name, "open")
}

type Manager struct {
	open    Opener
	schemas map[string]*record.Schema
}

func NewManager(schemas map[string]*record.Schema, open Opener) *Manager {
	if open == nil {
		open = OpenConn
	}
	return &Manager{open: open, schemas: schemas}
}

// Datasets returns the names of the managed schemas.
func (m *Manager) Datasets() []string {
	res := make([]string, 0, len(m.schemas))
	for ds := range m.schemas {
		res = append(res, ds)
	}
	return res
}

// OpenStore opens one store. Unavailable stores are retried with a
// Fibonacci backoff; any other failure is returned at once.
func (m *Manager) OpenStore(ctx context.Context, cfg *config.Store) (*store.Handle, error) {
	desc, err := DescriptorFromCfg(cfg, m.Datasets())
	if err != nil {
		return nil, err
	}
	for _, schema := range m.schemas {
		if err := desc.Validate(schema); err != nil {
			return nil, err
		}
	}

	var conn store.Conn
	attempt := 0
	b := retry.WithMaxRetries(cfg.Retries(), retry.NewFibonacci(cfg.Backoff()))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		c, err := m.open(ctx, cfg, desc, m.schemas)
		if err != nil {
			err = store.Classify(nil, cfg.Name, "open", err)
			if fderror.IsRetryable(err) {
				fedlog.Zero.Warn().
					Err(err).
					Str("store", cfg.Name).
					Int("attempt", attempt).
					Msg("store is unavailable, retrying")
				return retry.RetryableError(err)
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open store %s after %d attempt(s)", cfg.Name, attempt)
	}

	fedlog.Zero.Info().
		Str("store", cfg.Name).
		Str("driver", string(cfg.Driver)).
		Strs("datasets", desc.Datasets()).
		Msg("store handle is ready")
	return store.NewHandle(desc, conn), nil
}

// OpenAll opens every configured store concurrently. Handles come back in
// configuration order. If any store fails the ones already opened are
// closed.
func (m *Manager) OpenAll(ctx context.Context, stores []*config.Store) ([]*store.Handle, error) {
	handles := make([]*store.Handle, len(stores))
	eg, ctx := errgroup.WithContext(ctx)
	for i, cfg := range stores {
		eg.Go(func() error {
			h, err := m.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			handles[i] = h
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		for _, h := range handles {
			if h == nil {
				continue
			}
			if cerr := h.Close(); cerr != nil {
				fedlog.Zero.Error().Err(cerr).Str("store", h.Name()).Msg("failed to close store handle")
			}
		}
		return nil, err
	}
	return handles, nil
}
