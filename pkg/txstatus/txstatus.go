package txstatus

type TXStatus byte

const (
	TXIDLE       = TXStatus(73)
	TXBEGAN      = TXStatus(84)
	TXCOMMITTED  = TXStatus(67)
	TXROLLEDBACK = TXStatus(82)
)

// TxStatusReporter exposes the status of a transaction. Transitions stay
// with the owner of the transaction.
type TxStatusReporter interface {
	TxStatus() TXStatus
}

func (s TXStatus) String() string {
	switch s {
	case TXIDLE:
		return "IDLE"
	case TXBEGAN:
		return "BEGAN"
	case TXCOMMITTED:
		return "COMMITTED"
	case TXROLLEDBACK:
		return "ROLLEDBACK"
	}
	return "invalid"
}

// Terminal reports whether no further transition is allowed from s.
func (s TXStatus) Terminal() bool {
	return s == TXCOMMITTED || s == TXROLLEDBACK
}

// CanTransition reports whether a transaction may move from s to next.
// Idle -> Began -> {Committed | RolledBack}.
func (s TXStatus) CanTransition(next TXStatus) bool {
	switch s {
	case TXIDLE:
		return next == TXBEGAN
	case TXBEGAN:
		return next == TXCOMMITTED || next == TXROLLEDBACK
	}
	return false
}
