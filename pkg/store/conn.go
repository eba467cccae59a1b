package store

import "context"

// Conn is the driver side of a store: a pool of native connections speaking
// one dialect. Handle wraps it with lifecycle and transaction bookkeeping.
type Conn interface {
	// Begin acquires a connection from the pool and starts a transaction on
	// it. The connection belongs to the returned DriverTx until it ends.
	Begin(ctx context.Context) (DriverTx, error)
	// Query issues a fresh read on its own connection.
	Query(ctx context.Context, st *Statement) (Rows, error)
	Ping(ctx context.Context) error
	Close() error
	// Classify maps a native error to an fderror code, or returns "" when
	// the driver has no opinion.
	Classify(err error) string
}

type DriverTx interface {
	Exec(ctx context.Context, st *Statement) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Rows is a lazy, finite sequence of raw rows. Values are in the order of
// the statement's projection.
type Rows interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// SliceRows serves rows already held in memory.
type SliceRows struct {
	rows [][]any
	pos  int
}

func NewSliceRows(rows [][]any) *SliceRows {
	return &SliceRows{rows: rows, pos: -1}
}

func (r *SliceRows) Next() bool {
	if r.pos+1 >= len(r.rows) {
		r.pos = len(r.rows)
		return false
	}
	r.pos++
	return true
}

func (r *SliceRows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil, nil
	}
	return r.rows[r.pos], nil
}

func (r *SliceRows) Err() error { return nil }

func (r *SliceRows) Close() error {
	r.pos = len(r.rows)
	return nil
}

// ReadAll drains rows and closes them.
func ReadAll(rows Rows) ([][]any, error) {
	defer rows.Close()

	var res [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		cp := make([]any, len(vals))
		copy(cp, vals)
		res = append(res, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
