package fderror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	FDR_VALIDATION         = "FDRV"
	FDR_OUT_OF_RANGE       = "FDRK"
	FDR_STORE_UNAVAILABLE  = "FDRU"
	FDR_STORE_REJECTED     = "FDRJ"
	FDR_PARTIAL_FEDERATION = "FDRP"
	FDR_TX_STATE           = "FDRT"
	FDR_CONFIG             = "FDRC"
	FDR_UNEXPECTED         = "FDRX"
)

var existingErrorCodeMap = map[string]string{
	FDR_VALIDATION:         "ValidationError",
	FDR_OUT_OF_RANGE:       "OutOfRangeKey",
	FDR_STORE_UNAVAILABLE:  "StoreUnavailable",
	FDR_STORE_REJECTED:     "StoreRejected",
	FDR_PARTIAL_FEDERATION: "PartialFederation",
	FDR_TX_STATE:           "InvalidTransactionState",
	FDR_CONFIG:             "ConfigurationError",
	FDR_UNEXPECTED:         "Unexpected",
}

// GetMessageByCode returns the name of an error code.
func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "Unexpected error"
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrValidation       = &FedError{ErrorCode: FDR_VALIDATION}
	ErrOutOfRange       = &FedError{ErrorCode: FDR_OUT_OF_RANGE}
	ErrStoreUnavailable = &FedError{ErrorCode: FDR_STORE_UNAVAILABLE}
	ErrStoreRejected    = &FedError{ErrorCode: FDR_STORE_REJECTED}
	ErrPartial          = &FedError{ErrorCode: FDR_PARTIAL_FEDERATION}
	ErrTxState          = &FedError{ErrorCode: FDR_TX_STATE}
	ErrConfig           = &FedError{ErrorCode: FDR_CONFIG}
)

var _ error = &FedError{}

// FedError is a coded error. Store and Op name the backing store and the
// operation that failed, when the failure is attributable to one.
type FedError struct {
	Err error

	ErrorCode string
	Store     string
	Op        string
}

func New(errorCode string, msg string) *FedError {
	return &FedError{
		Err:       errors.New(msg),
		ErrorCode: errorCode,
	}
}

func Newf(errorCode string, format string, a ...any) *FedError {
	return &FedError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

// Wrap attaches a code, a store and an operation to err.
func Wrap(errorCode, store, op string, err error) *FedError {
	return &FedError{
		Err:       err,
		ErrorCode: errorCode,
		Store:     store,
		Op:        op,
	}
}

// WithStore returns a copy of er attributed to store and op.
func (er *FedError) WithStore(store, op string) *FedError {
	cp := *er
	cp.Store = store
	cp.Op = op
	return &cp
}

func (er *FedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Code: %s. Name: %s.", er.ErrorCode, GetMessageByCode(er.ErrorCode))
	if er.Store != "" {
		fmt.Fprintf(&sb, " Store: %s.", er.Store)
	}
	if er.Op != "" {
		fmt.Fprintf(&sb, " Operation: %s.", er.Op)
	}
	if er.Err != nil {
		fmt.Fprintf(&sb, " Description: %s.", er.Err)
	}
	return sb.String()
}

func (er *FedError) Unwrap() error {
	return er.Err
}

func (er *FedError) Is(target error) bool {
	t, ok := target.(*FedError)
	if !ok {
		return false
	}
	return t.ErrorCode == er.ErrorCode
}

// Code returns the code of the first FedError in err's chain, or
// FDR_UNEXPECTED.
func Code(err error) string {
	var pe *PartialFederationError
	if errors.As(err, &pe) {
		return FDR_PARTIAL_FEDERATION
	}
	var fe *FedError
	if errors.As(err, &fe) {
		return fe.ErrorCode
	}
	return FDR_UNEXPECTED
}

// IsRetryable reports whether err is an infrastructure failure the caller
// may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// PartialFederationError reports stores that failed during a federated read
// while the result still holds what the others returned.
type PartialFederationError struct {
	Op       string
	Answered []string
	Failures map[string]error
}

func (pe *PartialFederationError) FailedStores() []string {
	stores := make([]string, 0, len(pe.Failures))
	for s := range pe.Failures {
		stores = append(stores, s)
	}
	sort.Strings(stores)
	return stores
}

func (pe *PartialFederationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Code: %s. Name: %s. Operation: %s.", FDR_PARTIAL_FEDERATION, GetMessageByCode(FDR_PARTIAL_FEDERATION), pe.Op)
	fmt.Fprintf(&sb, " Answered: [%s].", strings.Join(pe.Answered, ", "))
	for _, s := range pe.FailedStores() {
		fmt.Fprintf(&sb, " Store %s failed: %v.", s, pe.Failures[s])
	}
	return sb.String()
}

func (pe *PartialFederationError) Unwrap() []error {
	errs := make([]error, 0, len(pe.Failures))
	for _, s := range pe.FailedStores() {
		errs = append(errs, pe.Failures[s])
	}
	return errs
}

func (pe *PartialFederationError) Is(target error) bool {
	t, ok := target.(*FedError)
	return ok && t.ErrorCode == FDR_PARTIAL_FEDERATION
}

// AllFailed reports whether no store answered at all.
func (pe *PartialFederationError) AllFailed() bool {
	return len(pe.Answered) == 0
}
