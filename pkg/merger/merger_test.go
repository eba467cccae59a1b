package merger_test

import (
	"testing"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/merger"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historicSales = &store.TableMapping{
	Table: "ventas_historicas",
	Columns: []store.ColumnMapping{
		{Field: "sale_id", Column: "venta_id"},
		{Field: "sale_date", Column: "fecha_venta"},
		{Field: "amount", Column: "monto"},
	},
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sale(id int64, day time.Time, amount string) record.Record {
	return record.Record{"sale_id": id, "sale_date": day, "amount": decimal.RequireFromString(amount)}
}

func TestNormalizeRows(t *testing.T) {
	assert := assert.New(t)

	recs, err := merger.NormalizeRows(record.Sales(), historicSales, [][]any{
		{int32(7), date(2023, 6, 1), "10.50"},
		{[]byte("8"), "2022-01-05", []byte("3")},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(int64(7), recs[0]["sale_id"])
	assert.True(decimal.RequireFromString("10.5").Equal(recs[0]["amount"].(decimal.Decimal)))
	assert.Equal(date(2022, 1, 5), recs[1]["sale_date"])

	_, err = merger.NormalizeRows(record.Sales(), historicSales, [][]any{{int64(1)}})
	assert.Error(err)

	_, err = merger.NormalizeRows(record.Sales(), historicSales, [][]any{{int64(1), "yesterday", "1"}})
	assert.Error(err)
}

func TestNormalizeRowsMissingColumns(t *testing.T) {
	assert := assert.New(t)

	tm := &store.TableMapping{
		Table:   "CreditosActuales",
		Columns: []store.ColumnMapping{{Field: "year", Column: "anio"}},
	}
	recs, err := merger.NormalizeRows(record.Credits(), tm, [][]any{{int64(2025)}})
	require.NoError(t, err)
	v, ok := recs[0]["migrated_at"]
	assert.True(ok)
	assert.Nil(v)
}

func TestMergeOrder(t *testing.T) {
	assert := assert.New(t)

	parts := []merger.StoreRows{
		{Store: "current", Index: 1, Records: []record.Record{
			sale(1, date(2025, 1, 15), "2500"),
		}},
		{Store: "historic", Index: 0, Records: []record.Record{
			sale(9, date(2024, 12, 31), "1500"),
			sale(3, date(2023, 6, 1), "10"),
			sale(2, date(2023, 6, 1), "20"),
		}},
	}
	rs, err := merger.Merge(record.Sales(), parts)
	require.NoError(t, err)

	assert.Equal([]string{"historic", "current"}, rs.Answered)
	require.Len(t, rs.Rows, 4)
	var ids []int64
	for _, r := range rs.Rows {
		ids = append(ids, r.Record["sale_id"].(int64))
	}
	assert.Equal([]int64{2, 3, 9, 1}, ids)
	assert.Equal("current", rs.Rows[3].Store)
	assert.Equal(2, rs.Rows[0].Seq)

	again, err := merger.Merge(record.Sales(), []merger.StoreRows{parts[1], parts[0]})
	require.NoError(t, err)
	assert.Equal(rs.Records(), again.Records())
	assert.NotEqual(rs.ID, again.ID)
}

func TestMergeTiesFallBackToStoreAndSeq(t *testing.T) {
	assert := assert.New(t)

	rec := record.Record{"year": int64(2023), "id": int64(5)}
	rs, err := merger.Merge(record.Credits(), []merger.StoreRows{
		{Store: "b", Index: 1, Records: []record.Record{rec.Clone()}},
		{Store: "a", Index: 0, Records: []record.Record{rec.Clone(), rec.Clone()}},
	})
	require.NoError(t, err)
	require.Len(t, rs.Rows, 3)
	assert.Equal("a", rs.Rows[0].Store)
	assert.Equal(0, rs.Rows[0].Seq)
	assert.Equal("a", rs.Rows[1].Store)
	assert.Equal(1, rs.Rows[1].Seq)
	assert.Equal("b", rs.Rows[2].Store)
}

func TestMergeRejectsRowWithoutKey(t *testing.T) {
	_, err := merger.Merge(record.Sales(), []merger.StoreRows{
		{Store: "a", Records: []record.Record{{"sale_id": int64(1)}}},
	})
	assert.Error(t, err)
}

func TestAggregates(t *testing.T) {
	assert := assert.New(t)
	schema := record.Credits()

	hist, err := merger.NormalizeAggregate(schema, "province", "cdh_active", [][]any{
		{"PICHINCHA", int64(3), "30"},
		{"GUAYAS", int64(1), []byte("5")},
	})
	require.NoError(t, err)
	cur, err := merger.NormalizeAggregate(schema, "province", "cdh_active", [][]any{
		{"GUAYAS", int32(2), nil},
		{"AZUAY", int64(3), int64(1)},
	})
	require.NoError(t, err)

	as := merger.MergeAggregates(record.CreditsDataset, "province", "cdh_active", []merger.StoreAggregate{
		{Store: "current", Index: 1, Groups: cur},
		{Store: "historic", Index: 0, Groups: hist},
	})
	assert.Equal([]string{"historic", "current"}, as.Answered)
	require.Len(t, as.Groups, 3)

	assert.Equal("AZUAY", as.Groups[0].Key)
	assert.Equal("GUAYAS", as.Groups[1].Key)
	assert.Equal(int64(3), as.Groups[1].Count)
	assert.Equal(map[string]int64{"historic": 1, "current": 2}, as.Groups[1].PerStore)
	assert.True(decimal.NewFromInt(5).Equal(as.Groups[1].Sum))
	assert.Equal("PICHINCHA", as.Groups[2].Key)

	count, sum := as.Total()
	assert.Equal(int64(9), count)
	assert.True(decimal.NewFromInt(36).Equal(sum))

	_, err = merger.NormalizeAggregate(schema, "province", "", [][]any{{"x"}})
	assert.Error(err)
	_, err = merger.NormalizeAggregate(schema, "nope", "", nil)
	assert.Error(err)
}

func TestAggregateKeepsNullGroupApart(t *testing.T) {
	assert := assert.New(t)
	schema := record.Credits()

	hist, err := merger.NormalizeAggregate(schema, "province", "", [][]any{
		{nil, int64(2)},
		{"NULL", int64(1)},
	})
	require.NoError(t, err)
	cur, err := merger.NormalizeAggregate(schema, "province", "", [][]any{
		{"NULL", int64(4)},
		{nil, int64(1)},
	})
	require.NoError(t, err)

	as := merger.MergeAggregates(record.CreditsDataset, "province", "", []merger.StoreAggregate{
		{Store: "historic", Index: 0, Groups: hist},
		{Store: "current", Index: 1, Groups: cur},
	})
	require.Len(t, as.Groups, 2)
	assert.Equal("NULL", as.Groups[0].Key)
	assert.Equal(int64(5), as.Groups[0].Count)
	assert.Equal(map[string]int64{"historic": 1, "current": 4}, as.Groups[0].PerStore)
	assert.Nil(as.Groups[1].Key)
	assert.Equal(int64(3), as.Groups[1].Count)
	assert.Equal(map[string]int64{"historic": 2, "current": 1}, as.Groups[1].PerStore)
}

func TestTotalsSkipEmptyStores(t *testing.T) {
	assert := assert.New(t)
	schema := record.Sales()

	a, err := merger.NormalizeAggregate(schema, "", "amount", [][]any{{int64(0), nil}})
	require.NoError(t, err)
	b, err := merger.NormalizeAggregate(schema, "", "amount", [][]any{{int64(2), "4000"}})
	require.NoError(t, err)

	as := merger.MergeAggregates(record.SalesDataset, "", "amount", []merger.StoreAggregate{
		{Store: "historic", Index: 0, Groups: a},
		{Store: "current", Index: 1, Groups: b},
	})
	require.Len(t, as.Groups, 1)
	assert.Equal(int64(2), as.Groups[0].PerStore["current"])
	count, sum := as.Total()
	assert.Equal(int64(2), count)
	assert.True(decimal.NewFromInt(4000).Equal(sum))
}
