package store

import (
	"context"

	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/txstatus"
	"go.uber.org/atomic"
)

// StoreHandle is the uniform contract the router uses for one backing store.
type StoreHandle interface {
	Name() string
	Descriptor() *Descriptor

	// BeginWrite starts a scoped write transaction on a connection owned
	// exclusively by the returned Tx.
	BeginWrite(ctx context.Context) (*Tx, error)
	Execute(ctx context.Context, tx *Tx, st *Statement) (int64, error)
	Commit(ctx context.Context, tx *Tx) error
	// Rollback ends tx. It is a no-op on a transaction that already reached
	// a terminal state, so it is safe to defer.
	Rollback(ctx context.Context, tx *Tx) error

	// Query issues a fresh read; no cursor state is shared between calls.
	Query(ctx context.Context, st *Statement) (Rows, error)

	// Close releases the connection pool. It is idempotent.
	Close() error
}

var _ StoreHandle = &Handle{}

type Handle struct {
	desc *Descriptor
	conn Conn

	closed   *atomic.Bool
	activeTx *atomic.Int64
	served   *atomic.Int64
}

func NewHandle(desc *Descriptor, conn Conn) *Handle {
	return &Handle{
		desc:     desc,
		conn:     conn,
		closed:   atomic.NewBool(false),
		activeTx: atomic.NewInt64(0),
		served:   atomic.NewInt64(0),
	}
}

func (h *Handle) Name() string {
	return h.desc.Name
}

func (h *Handle) Descriptor() *Descriptor {
	return h.desc
}

// ActiveTx returns the number of transactions that have not ended yet.
func (h *Handle) ActiveTx() int64 {
	return h.activeTx.Load()
}

// TxServed returns the number of transactions that reached a terminal state.
func (h *Handle) TxServed() int64 {
	return h.served.Load()
}

func (h *Handle) checkOpen(op string) error {
	if h.closed.Load() {
		return fderror.New(fderror.FDR_STORE_UNAVAILABLE, "store handle is closed").WithStore(h.Name(), op)
	}
	return nil
}

func (h *Handle) checkTx(tx *Tx, op string) error {
	if tx == nil {
		return fderror.New(fderror.FDR_TX_STATE, "nil transaction").WithStore(h.Name(), op)
	}
	if tx.owner != h {
		return fderror.Newf(fderror.FDR_TX_STATE, "transaction %s belongs to store %s", tx.ID(), tx.store).WithStore(h.Name(), op)
	}
	return nil
}

func (h *Handle) BeginWrite(ctx context.Context) (*Tx, error) {
	if err := h.checkOpen("begin"); err != nil {
		return nil, err
	}
	tx := newTx(h)

	tx.mu.Lock()
	defer tx.mu.Unlock()

	inner, err := h.conn.Begin(ctx)
	if err != nil {
		return nil, Classify(h.conn, h.Name(), "begin", err)
	}
	tx.inner = inner
	tx.setStatus(txstatus.TXBEGAN)
	h.activeTx.Inc()

	fedlog.Zero.Debug().
		Str("store", h.Name()).
		Str("tx", tx.ID()).
		Msg("began write transaction")
	return tx, nil
}

func (h *Handle) Execute(ctx context.Context, tx *Tx, st *Statement) (int64, error) {
	if err := h.checkTx(tx, "execute"); err != nil {
		return 0, err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if s := tx.TxStatus(); s != txstatus.TXBEGAN {
		return 0, fderror.Newf(fderror.FDR_TX_STATE, "transaction %s is %s", tx.ID(), s).WithStore(h.Name(), "execute")
	}
	if err := h.checkOpen("execute"); err != nil {
		return 0, err
	}
	n, err := tx.inner.Exec(ctx, st)
	if err != nil {
		return 0, Classify(h.conn, h.Name(), "execute", err)
	}
	return n, nil
}

func (h *Handle) Commit(ctx context.Context, tx *Tx) error {
	if err := h.checkTx(tx, "commit"); err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if s := tx.TxStatus(); s != txstatus.TXBEGAN {
		return fderror.Newf(fderror.FDR_TX_STATE, "transaction %s is %s", tx.ID(), s).WithStore(h.Name(), "commit")
	}
	err := tx.inner.Commit(ctx)
	if err != nil {
		// the driver may leave the transaction open after a failed commit
		_ = tx.inner.Rollback(ctx)
		tx.setStatus(txstatus.TXROLLEDBACK)
		h.finish()
		return Classify(h.conn, h.Name(), "commit", err)
	}
	tx.setStatus(txstatus.TXCOMMITTED)
	h.finish()

	fedlog.Zero.Debug().
		Str("store", h.Name()).
		Str("tx", tx.ID()).
		Msg("committed write transaction")
	return nil
}

func (h *Handle) Rollback(ctx context.Context, tx *Tx) error {
	if err := h.checkTx(tx, "rollback"); err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.TxStatus() != txstatus.TXBEGAN {
		return nil
	}
	err := tx.inner.Rollback(ctx)
	tx.setStatus(txstatus.TXROLLEDBACK)
	h.finish()

	fedlog.Zero.Debug().
		Str("store", h.Name()).
		Str("tx", tx.ID()).
		Msg("rolled back write transaction")
	return Classify(h.conn, h.Name(), "rollback", err)
}

func (h *Handle) finish() {
	h.activeTx.Dec()
	h.served.Inc()
}

func (h *Handle) Query(ctx context.Context, st *Statement) (Rows, error) {
	if err := h.checkOpen("query"); err != nil {
		return nil, err
	}
	rows, err := h.conn.Query(ctx, st)
	if err != nil {
		return nil, Classify(h.conn, h.Name(), "query", err)
	}
	return &classifiedRows{Rows: rows, h: h}, nil
}

func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	fedlog.Zero.Info().
		Str("store", h.Name()).
		Int64("active tx", h.activeTx.Load()).
		Msg("closing store handle")
	if err := h.conn.Close(); err != nil {
		return Classify(h.conn, h.Name(), "close", err)
	}
	return nil
}

type classifiedRows struct {
	Rows
	h *Handle
}

func (r *classifiedRows) Values() ([]any, error) {
	vals, err := r.Rows.Values()
	if err != nil {
		return nil, Classify(r.h.conn, r.h.Name(), "query", err)
	}
	return vals, nil
}

func (r *classifiedRows) Err() error {
	return Classify(r.h.conn, r.h.Name(), "query", r.Rows.Err())
}
