// Package pgstore serves a PostgreSQL store natively through a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pg-sharding/fedrouter/pkg/config"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/store"
)

const applicationName = "fedrouter"

// Pool is the part of *pgxpool.Pool the store needs.
type Pool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

var _ Pool = &pgxpool.Pool{}

type Conn struct {
	pool Pool
}

var _ store.Conn = &Conn{}

func NewConn(pool Pool) *Conn {
	return &Conn{pool: pool}
}

// ConnString builds a postgres:// URL from the store configuration.
func ConnString(cfg *config.Store) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host,
		Path:   "/" + cfg.Database,
	}
	if cfg.Port != 0 {
		u.Host = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := url.Values{}
	q.Set("application_name", applicationName)
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, cfg.Params[k])
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Open creates the pool and checks that the store answers.
func Open(ctx context.Context, cfg *config.Store) (*Conn, error) {
	pcfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fderror.Wrap(fderror.FDR_CONFIG, cfg.Name, "open", err)
	}
	pcfg.MaxConns = int32(cfg.PoolSize())

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	c := NewConn(pool)
	if err := c.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	fedlog.Zero.Info().
		Str("store", cfg.Name).
		Str("host", cfg.Host).
		Int32("max conns", pcfg.MaxConns).
		Msg("connected to postgresql store")
	return c, nil
}

func (c *Conn) Begin(ctx context.Context) (store.DriverTx, error) {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &driverTx{tx: tx}, nil
}

func (c *Conn) Query(ctx context.Context, st *store.Statement) (store.Rows, error) {
	query, args, err := store.Render(store.Postgres, st)
	if err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Conn) Close() error {
	c.pool.Close()
	return nil
}

// Classify maps SQLSTATE classes: connection, resource and operator
// intervention failures (08, 53, 57, 58) and serialization failures (40)
// are transient; everything else the server reports is a rejection.
func (c *Conn) Classify(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return fderror.FDR_STORE_REJECTED
		}
		switch pgErr.Code[:2] {
		case "08", "53", "57", "58", "40":
			return fderror.FDR_STORE_UNAVAILABLE
		}
		return fderror.FDR_STORE_REJECTED
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fderror.FDR_STORE_UNAVAILABLE
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return fderror.FDR_TX_STATE
	}
	return ""
}

type driverTx struct {
	tx pgx.Tx
}

func (t *driverTx) Exec(ctx context.Context, st *store.Statement) (int64, error) {
	query, args, err := store.Render(store.Postgres, st)
	if err != nil {
		return 0, err
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *driverTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *driverTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

type pgRows struct {
	rows pgx.Rows
}

func (r *pgRows) Next() bool {
	return r.rows.Next()
}

func (r *pgRows) Values() ([]any, error) {
	return r.rows.Values()
}

func (r *pgRows) Err() error {
	return r.rows.Err()
}

func (r *pgRows) Close() error {
	r.rows.Close()
	return nil
}
