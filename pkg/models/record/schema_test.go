package record_test

import (
	"testing"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeSale(t *testing.T) {
	assert := assert.New(t)
	s := record.Sales()

	rec, err := s.Normalize(record.Record{"sale_date": "2024-12-31", "amount": 1500.0})
	assert.NoError(err)
	assert.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), rec["sale_date"])
	assert.True(decimal.NewFromInt(1500).Equal(rec["amount"].(decimal.Decimal)))
	_, hasID := rec["sale_id"]
	assert.False(hasID)

	key, err := s.PartitionKey(rec)
	assert.NoError(err)
	assert.Equal(int64(2024), key)
}

func TestNormalizeRejects(t *testing.T) {
	assert := assert.New(t)
	sales := record.Sales()
	credits := record.Credits()

	for i, c := range []struct {
		schema *record.Schema
		rec    record.Record
	}{
		{sales, nil},
		{sales, record.Record{"amount": 10}},
		{sales, record.Record{"sale_date": "2024-01-01"}},
		{sales, record.Record{"sale_date": "2024-01-01", "amount": 0}},
		{sales, record.Record{"sale_date": "2024-01-01", "amount": "-5.10"}},
		{sales, record.Record{"sale_date": "yesterday", "amount": 5}},
		{sales, record.Record{"sale_date": "2024-01-01", "amount": 5, "discount": 1}},
		{sales, record.Record{"sale_date": "2024-01-01", "amount": 5, "sale_id": 7}},
		{credits, record.Record{"province": "PICHINCHA"}},
		{credits, record.Record{"year": "twenty"}},
		{credits, record.Record{"year": 2023, "age": -1}},
		{credits, record.Record{"year": 2023.5}},
	} {
		_, err := c.schema.Normalize(c.rec)
		assert.ErrorIs(err, fderror.ErrValidation, "test case %d", i)
	}
}

func TestNormalizeCreditKeepsOptionalNulls(t *testing.T) {
	assert := assert.New(t)
	s := record.Credits()

	rec, err := s.Normalize(record.Record{"year": int32(2025), "province": "GUAYAS", "cdh_active": "3"})
	assert.NoError(err)
	assert.Equal(int64(2025), rec["year"])
	assert.Equal(int64(3), rec["cdh_active"])
	assert.Nil(rec["gender"])
	assert.Len(rec, len(s.Writable()))
}

func TestCompare(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(-1, record.Compare(nil, int64(1)))
	assert.Equal(1, record.Compare(int64(1), nil))
	assert.Equal(0, record.Compare(nil, nil))
	assert.Equal(-1, record.Compare(int64(1), int64(2)))
	assert.Equal(1, record.Compare("b", "a"))
	assert.Equal(0, record.Compare(decimal.RequireFromString("1.50"), decimal.RequireFromString("1.5")))
	assert.Equal(-1, record.Compare(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCoerceDriverValues(t *testing.T) {
	assert := assert.New(t)

	v, err := record.Coerce(record.TypeDecimal, []byte("12.30"))
	assert.NoError(err)
	assert.Equal("12.3", v.(decimal.Decimal).String())

	v, err = record.Coerce(record.TypeInt, int32(7))
	assert.NoError(err)
	assert.Equal(int64(7), v)

	v, err = record.Coerce(record.TypeString, []byte("QUITO"))
	assert.NoError(err)
	assert.Equal("QUITO", v)

	v, err = record.Coerce(record.TypeTimestamp, "2025-01-15 10:30:00")
	assert.NoError(err)
	assert.Equal(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), v)

	v, err = record.Coerce(record.TypeDate, nil)
	assert.NoError(err)
	assert.Nil(v)

	_, err = record.Coerce(record.FieldType("blob"), 1)
	assert.Error(err)
}

func TestLookup(t *testing.T) {
	assert := assert.New(t)

	s, ok := record.Lookup("credits")
	assert.True(ok)
	assert.Equal("year", s.PartitionField)

	_, ok = record.Lookup("invoices")
	assert.False(ok)
	assert.Equal([]string{"credits", "sales"}, record.BuiltinNames())
}
