package fderror_test

import (
	"errors"
	"testing"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

func TestErrorsIsByCode(t *testing.T) {
	assert := assert.New(t)

	err := fderror.Newf(fderror.FDR_OUT_OF_RANGE, "key %d is not covered", 2030)
	wrapped := xerrors.Errorf("insert: %w", err)

	assert.ErrorIs(wrapped, fderror.ErrOutOfRange)
	assert.NotErrorIs(wrapped, fderror.ErrValidation)
	assert.Equal(fderror.FDR_OUT_OF_RANGE, fderror.Code(wrapped))
	assert.Equal(fderror.FDR_UNEXPECTED, fderror.Code(errors.New("boom")))
}

func TestErrorMessageNamesStoreAndOp(t *testing.T) {
	assert := assert.New(t)

	err := fderror.Wrap(fderror.FDR_STORE_REJECTED, "current", "execute", errors.New("duplicate key"))

	assert.Equal("Code: FDRJ. Name: StoreRejected. Store: current. Operation: execute. Description: duplicate key.", err.Error())
	assert.False(fderror.IsRetryable(err))
	assert.True(fderror.IsRetryable(fderror.Wrap(fderror.FDR_STORE_UNAVAILABLE, "current", "begin", errors.New("refused"))))
}

func TestPartialFederationError(t *testing.T) {
	assert := assert.New(t)

	cause := fderror.Wrap(fderror.FDR_STORE_UNAVAILABLE, "current", "query", errors.New("connection refused"))
	pe := &fderror.PartialFederationError{
		Op:       "query",
		Answered: []string{"historic"},
		Failures: map[string]error{"current": cause},
	}

	assert.ErrorIs(pe, fderror.ErrPartial)
	assert.ErrorIs(pe, fderror.ErrStoreUnavailable)
	assert.Equal([]string{"current"}, pe.FailedStores())
	assert.False(pe.AllFailed())
	assert.Contains(pe.Error(), "Store current failed")
	assert.Equal(fderror.FDR_PARTIAL_FEDERATION, fderror.Code(pe))

	none := &fderror.PartialFederationError{Op: "query", Failures: map[string]error{"current": cause, "historic": cause}}
	assert.True(none.AllFailed())
	assert.Equal([]string{"current", "historic"}, none.FailedStores())
}
