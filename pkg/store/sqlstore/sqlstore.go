// Package sqlstore serves SQL Server, MySQL and PostgreSQL (lib/pq) stores
// through database/sql and sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"sort"
	"strconv"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pg-sharding/fedrouter/pkg/config"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/pkg/errors"
)

const applicationName = "fedrouter"

// SQL Server error numbers raised for constraint and data violations.
var mssqlRejected = map[int32]struct{}{
	2627: {}, // unique constraint
	2601: {}, // duplicate key in unique index
	547:  {}, // check or foreign key constraint
	515:  {}, // null into not null column
	8152: {}, // string or binary data would be truncated
	2628: {},
	245:  {}, // conversion failed
	8114: {},
	220:  {}, // arithmetic overflow
}

// MySQL error numbers raised for constraint and data violations.
var mysqlRejected = map[uint16]struct{}{
	1062: {}, // duplicate entry
	1048: {}, // column cannot be null
	1452: {}, // foreign key
	1264: {}, // out of range
	1406: {}, // data too long
	1366: {}, // incorrect value
	3819: {}, // check constraint
}

type Conn struct {
	db      *sqlx.DB
	dialect store.Dialect
}

var _ store.Conn = &Conn{}

// DriverName returns the database/sql driver registered for cfg.
func DriverName(cfg *config.Store) (string, error) {
	switch cfg.Driver {
	case config.SQLServerDriver:
		return "sqlserver", nil
	case config.MySQLDriver:
		return "mysql", nil
	case config.PqDriver:
		return "postgres", nil
	}
	return "", fderror.Newf(fderror.FDR_CONFIG, "driver %q is not served by database/sql", cfg.Driver)
}

// DialectFor returns the SQL dialect spoken by the database/sql driver.
func DialectFor(driverName string) store.Dialect {
	switch driverName {
	case "sqlserver":
		return store.SQLServer
	case "mysql":
		return store.MySQL
	}
	return store.Postgres
}

func sortedParams(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DSN builds the data source name of cfg for its driver.
func DSN(cfg *config.Store) (string, error) {
	switch cfg.Driver {
	case config.SQLServerDriver:
		u := url.URL{Scheme: "sqlserver", Host: cfg.Host}
		if cfg.Port != 0 {
			u.Host = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		}
		if cfg.User != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
		q := url.Values{}
		q.Set("database", cfg.Database)
		q.Set("app name", applicationName)
		for _, k := range sortedParams(cfg.Params) {
			q.Set(k, cfg.Params[k])
		}
		u.RawQuery = q.Encode()
		return u.String(), nil

	case config.MySQLDriver:
		mcfg := mysql.NewConfig()
		mcfg.User = cfg.User
		mcfg.Passwd = cfg.Password
		mcfg.Net = "tcp"
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mcfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		mcfg.DBName = cfg.Database
		mcfg.ParseTime = true
		if len(cfg.Params) > 0 {
			mcfg.Params = map[string]string{}
			for k, v := range cfg.Params {
				mcfg.Params[k] = v
			}
		}
		return mcfg.FormatDSN(), nil

	case config.PqDriver:
		u := url.URL{Scheme: "postgres", Host: cfg.Host, Path: "/" + cfg.Database}
		if cfg.Port != 0 {
			u.Host = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		}
		if cfg.User != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
		q := url.Values{}
		q.Set("application_name", applicationName)
		for _, k := range sortedParams(cfg.Params) {
			q.Set(k, cfg.Params[k])
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return "", fderror.Newf(fderror.FDR_CONFIG, "driver %q is not served by database/sql", cfg.Driver)
}

// NewConn wraps an open database handle.
func NewConn(db *sqlx.DB) *Conn {
	return &Conn{db: db, dialect: DialectFor(db.DriverName())}
}

// Open connects to the store and checks that it answers.
func Open(ctx context.Context, cfg *config.Store) (*Conn, error) {
	driverName, err := DriverName(cfg)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.PoolSize())
	db.SetMaxIdleConns(cfg.PoolSize())

	fedlog.Zero.Info().
		Str("store", cfg.Name).
		Str("driver", driverName).
		Str("host", cfg.Host).
		Int("max conns", cfg.PoolSize()).
		Msg("connected to sql store")
	return NewConn(db), nil
}

func (c *Conn) Begin(ctx context.Context) (store.DriverTx, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &driverTx{tx: tx, dialect: c.dialect}, nil
}

func (c *Conn) Query(ctx context.Context, st *store.Statement) (store.Rows, error) {
	query, args, err := store.Render(c.dialect, st)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Conn) Close() error {
	return c.db.Close()
}

func (c *Conn) Classify(err error) string {
	return classifyErr(err)
}

func classifyErr(err error) string {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		if _, ok := mssqlRejected[msErr.Number]; ok {
			return fderror.FDR_STORE_REJECTED
		}
		// severity 20 and above terminates the connection
		if msErr.Class >= 20 {
			return fderror.FDR_STORE_UNAVAILABLE
		}
		return fderror.FDR_STORE_REJECTED
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57", "58", "40":
			return fderror.FDR_STORE_UNAVAILABLE
		}
		return fderror.FDR_STORE_REJECTED
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if _, ok := mysqlRejected[myErr.Number]; ok {
			return fderror.FDR_STORE_REJECTED
		}
		switch myErr.Number {
		case 1040, 1205, 1213, 2006, 2013:
			return fderror.FDR_STORE_UNAVAILABLE
		}
		return fderror.FDR_STORE_REJECTED
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return fderror.FDR_STORE_UNAVAILABLE
	}
	return ""
}

type driverTx struct {
	tx      *sqlx.Tx
	dialect store.Dialect
}

func (t *driverTx) Exec(ctx context.Context, st *store.Statement) (int64, error) {
	query, args, err := store.Render(t.dialect, st)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

func (t *driverTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *driverTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type sqlRows struct {
	rows *sqlx.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Values() ([]any, error) {
	return r.rows.SliceScan()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}
