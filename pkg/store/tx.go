package store

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pg-sharding/fedrouter/pkg/txstatus"
	"go.uber.org/atomic"
)

var _ txstatus.TxStatusReporter = &Tx{}

// Tx is a write transaction bound to one store and one pooled connection.
// It moves Idle -> Began -> {Committed | RolledBack} and is never reused.
type Tx struct {
	id    uuid.UUID
	store string
	owner *Handle

	mu     sync.Mutex
	status *atomic.Uint32
	inner  DriverTx
}

func newTx(owner *Handle) *Tx {
	return &Tx{
		id:     uuid.New(),
		store:  owner.Name(),
		owner:  owner,
		status: atomic.NewUint32(uint32(txstatus.TXIDLE)),
	}
}

func (tx *Tx) ID() string {
	return tx.id.String()
}

func (tx *Tx) Store() string {
	return tx.store
}

func (tx *Tx) TxStatus() txstatus.TXStatus {
	return txstatus.TXStatus(tx.status.Load())
}

// setStatus must be called with tx.mu held.
func (tx *Tx) setStatus(next txstatus.TXStatus) bool {
	if !tx.TxStatus().CanTransition(next) {
		return false
	}
	tx.status.Store(uint32(next))
	return true
}
