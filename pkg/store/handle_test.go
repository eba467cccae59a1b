package store_test

import (
	"context"
	"errors"
	"testing"

	mock "github.com/pg-sharding/fedrouter/pkg/mock/store"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/pg-sharding/fedrouter/pkg/txstatus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var insertStmt = &store.Statement{
	Kind:    store.StmtInsert,
	Table:   "ventas_historicas",
	Columns: []string{"fecha_venta", "monto"},
	Args:    []any{"2023-05-20", "200"},
}

func newHandle(t *testing.T) (*store.Handle, *mock.MockConn, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	conn := mock.NewMockConn(ctrl)
	h := store.NewHandle(&store.Descriptor{Name: "historic", Driver: "pgx"}, conn)
	return h, conn, ctrl
}

func TestHandleCommitPath(t *testing.T) {
	assert := assert.New(t)
	h, conn, ctrl := newHandle(t)
	ctx := context.Background()

	dtx := mock.NewMockDriverTx(ctrl)
	conn.EXPECT().Begin(ctx).Return(dtx, nil)
	dtx.EXPECT().Exec(ctx, insertStmt).Return(int64(1), nil)
	dtx.EXPECT().Commit(ctx).Return(nil)

	tx, err := h.BeginWrite(ctx)
	require.NoError(t, err)
	assert.Equal(txstatus.TXBEGAN, tx.TxStatus())
	assert.Equal("historic", tx.Store())
	assert.NotEmpty(tx.ID())
	assert.Equal(int64(1), h.ActiveTx())

	n, err := h.Execute(ctx, tx, insertStmt)
	assert.NoError(err)
	assert.Equal(int64(1), n)

	assert.NoError(h.Commit(ctx, tx))
	assert.Equal(txstatus.TXCOMMITTED, tx.TxStatus())
	assert.Equal(int64(0), h.ActiveTx())
	assert.Equal(int64(1), h.TxServed())

	// terminal: rollback is a no-op, commit and execute are refused
	assert.NoError(h.Rollback(ctx, tx))
	assert.ErrorIs(h.Commit(ctx, tx), fderror.ErrTxState)
	_, err = h.Execute(ctx, tx, insertStmt)
	assert.ErrorIs(err, fderror.ErrTxState)
	assert.Equal(txstatus.TXCOMMITTED, tx.TxStatus())
}

func TestHandleExecuteFailureRollsBack(t *testing.T) {
	assert := assert.New(t)
	h, conn, ctrl := newHandle(t)
	ctx := context.Background()

	dtx := mock.NewMockDriverTx(ctrl)
	violation := errors.New("duplicate key value violates unique constraint")
	conn.EXPECT().Begin(ctx).Return(dtx, nil)
	dtx.EXPECT().Exec(ctx, insertStmt).Return(int64(0), violation)
	conn.EXPECT().Classify(violation).Return(fderror.FDR_STORE_REJECTED)
	dtx.EXPECT().Rollback(ctx).Return(nil)

	tx, err := h.BeginWrite(ctx)
	require.NoError(t, err)

	_, err = h.Execute(ctx, tx, insertStmt)
	assert.ErrorIs(err, fderror.ErrStoreRejected)
	assert.ErrorIs(err, violation)
	var fe *fderror.FedError
	require.True(t, errors.As(err, &fe))
	assert.Equal("historic", fe.Store)
	assert.Equal("execute", fe.Op)

	assert.NoError(h.Rollback(ctx, tx))
	assert.Equal(txstatus.TXROLLEDBACK, tx.TxStatus())
	// second rollback does not reach the driver
	assert.NoError(h.Rollback(ctx, tx))
}

func TestHandleFailedCommitEndsRolledBack(t *testing.T) {
	assert := assert.New(t)
	h, conn, ctrl := newHandle(t)
	ctx := context.Background()

	dtx := mock.NewMockDriverTx(ctrl)
	lost := errors.New("connection reset")
	conn.EXPECT().Begin(ctx).Return(dtx, nil)
	dtx.EXPECT().Commit(ctx).Return(lost)
	dtx.EXPECT().Rollback(ctx).Return(nil)
	conn.EXPECT().Classify(lost).Return(fderror.FDR_STORE_UNAVAILABLE)

	tx, err := h.BeginWrite(ctx)
	require.NoError(t, err)

	err = h.Commit(ctx, tx)
	assert.ErrorIs(err, fderror.ErrStoreUnavailable)
	assert.True(fderror.IsRetryable(err))
	assert.Equal(txstatus.TXROLLEDBACK, tx.TxStatus())
	assert.Equal(int64(0), h.ActiveTx())
}

func TestHandleBeginUnknownErrorIsNotRetryable(t *testing.T) {
	assert := assert.New(t)
	h, conn, _ := newHandle(t)
	ctx := context.Background()

	refused := errors.New("dial tcp: connection refused")
	conn.EXPECT().Begin(ctx).Return(nil, refused)
	conn.EXPECT().Classify(refused).Return("")

	_, err := h.BeginWrite(ctx)
	// unknown errors are never reported as retryable
	assert.ErrorIs(err, fderror.ErrStoreRejected)
	assert.Equal(int64(0), h.ActiveTx())
}

func TestHandleRejectsForeignTransaction(t *testing.T) {
	assert := assert.New(t)
	h, conn, ctrl := newHandle(t)
	other, otherConn, _ := newHandle(t)
	ctx := context.Background()

	dtx := mock.NewMockDriverTx(ctrl)
	otherConn.EXPECT().Begin(ctx).Return(dtx, nil)
	_ = conn

	tx, err := other.BeginWrite(ctx)
	require.NoError(t, err)

	_, err = h.Execute(ctx, tx, insertStmt)
	assert.ErrorIs(err, fderror.ErrTxState)
	assert.ErrorIs(h.Commit(ctx, tx), fderror.ErrTxState)
	assert.ErrorIs(h.Rollback(ctx, tx), fderror.ErrTxState)
	assert.ErrorIs(h.Commit(ctx, nil), fderror.ErrTxState)
}

func TestHandleQueryIsFreshPerCall(t *testing.T) {
	assert := assert.New(t)
	h, conn, _ := newHandle(t)
	ctx := context.Background()

	sel := &store.Statement{Kind: store.StmtSelect, Table: "t", Columns: []string{"a"}}
	conn.EXPECT().Query(ctx, sel).Return(store.NewSliceRows([][]any{{int64(1)}, {int64(2)}}), nil)
	conn.EXPECT().Query(ctx, sel).Return(store.NewSliceRows([][]any{{int64(1)}, {int64(2)}}), nil)

	for i := 0; i < 2; i++ {
		rows, err := h.Query(ctx, sel)
		require.NoError(t, err)
		all, err := store.ReadAll(rows)
		assert.NoError(err)
		assert.Equal([][]any{{int64(1)}, {int64(2)}}, all)
	}
}

func TestHandleCloseIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	h, conn, _ := newHandle(t)
	ctx := context.Background()

	conn.EXPECT().Close().Return(nil).Times(1)

	assert.NoError(h.Close())
	assert.NoError(h.Close())

	_, err := h.BeginWrite(ctx)
	assert.ErrorIs(err, fderror.ErrStoreUnavailable)
	_, err = h.Query(ctx, &store.Statement{Kind: store.StmtSelect, Table: "t", Columns: []string{"a"}})
	assert.ErrorIs(err, fderror.ErrStoreUnavailable)
}
