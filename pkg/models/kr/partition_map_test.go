package kr_test

import (
	"testing"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/kr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yearMap(t *testing.T) *kr.PartitionMap {
	pm, err := kr.NewPartitionMap("v1", 2022, 2025, []*kr.KeyRange{
		{ID: "current", LowerBound: 2025, UpperBound: 2025, StoreID: "store_b"},
		{ID: "historic", LowerBound: 2022, UpperBound: 2024, StoreID: "store_a"},
	}, []string{"store_a", "store_b"})
	require.NoError(t, err)
	return pm
}

func TestResolveCoversWholeDomain(t *testing.T) {
	assert := assert.New(t)
	pm := yearMap(t)

	lo, hi := pm.Domain()
	for key := lo; key <= hi; key++ {
		covering := 0
		for _, r := range pm.Ranges() {
			if r.Contains(key) {
				covering++
			}
		}
		assert.Equal(1, covering, "key %d", key)

		store, err := pm.Resolve(key)
		assert.NoError(err)
		assert.NotEmpty(store)
	}
}

func TestResolveBoundaries(t *testing.T) {
	assert := assert.New(t)
	pm := yearMap(t)

	for key, expected := range map[int64]string{
		2022: "store_a",
		2023: "store_a",
		2024: "store_a",
		2025: "store_b",
	} {
		store, err := pm.Resolve(key)
		assert.NoError(err)
		assert.Equal(expected, store, "key %d", key)
	}

	for _, key := range []int64{2021, 2026, 0, -1} {
		_, err := pm.Resolve(key)
		assert.ErrorIs(err, fderror.ErrOutOfRange, "key %d", key)
	}
}

func TestNewPartitionMapRejectsInvalidLayouts(t *testing.T) {
	assert := assert.New(t)

	for i, c := range []struct {
		min, max int64
		ranges   []*kr.KeyRange
		stores   []string
	}{
		// gap at 2024
		{
			min: 2022, max: 2025,
			ranges: []*kr.KeyRange{
				{ID: "a", LowerBound: 2022, UpperBound: 2023, StoreID: "s1"},
				{ID: "b", LowerBound: 2025, UpperBound: 2025, StoreID: "s2"},
			},
		},
		// overlap at 2024
		{
			min: 2022, max: 2025,
			ranges: []*kr.KeyRange{
				{ID: "a", LowerBound: 2022, UpperBound: 2024, StoreID: "s1"},
				{ID: "b", LowerBound: 2024, UpperBound: 2025, StoreID: "s2"},
			},
		},
		// outside domain
		{
			min: 2022, max: 2025,
			ranges: []*kr.KeyRange{
				{ID: "a", LowerBound: 2021, UpperBound: 2025, StoreID: "s1"},
			},
		},
		// unknown store
		{
			min: 2022, max: 2025,
			ranges: []*kr.KeyRange{
				{ID: "a", LowerBound: 2022, UpperBound: 2025, StoreID: "s3"},
			},
			stores: []string{"s1"},
		},
		// duplicate id
		{
			min: 2022, max: 2025,
			ranges: []*kr.KeyRange{
				{ID: "a", LowerBound: 2022, UpperBound: 2023, StoreID: "s1"},
				{ID: "a", LowerBound: 2024, UpperBound: 2025, StoreID: "s1"},
			},
		},
		// inverted bounds
		{
			min: 2022, max: 2025,
			ranges: []*kr.KeyRange{
				{ID: "a", LowerBound: 2025, UpperBound: 2022, StoreID: "s1"},
			},
		},
		// empty domain
		{
			min: 2025, max: 2022,
			ranges: []*kr.KeyRange{
				{ID: "a", LowerBound: 2022, UpperBound: 2025, StoreID: "s1"},
			},
		},
		// no ranges
		{min: 2022, max: 2025},
	} {
		_, err := kr.NewPartitionMap("v", c.min, c.max, c.ranges, c.stores)
		assert.ErrorIs(err, fderror.ErrConfig, "test case %d", i)
	}
}

func TestStoresFor(t *testing.T) {
	assert := assert.New(t)
	pm := yearMap(t)

	assert.Equal([]string{"store_a", "store_b"}, pm.Stores())
	assert.Equal(0, pm.StoreIndex("store_a"))
	assert.Equal(1, pm.StoreIndex("store_b"))
	assert.Equal(-1, pm.StoreIndex("store_c"))

	stores, err := pm.StoresFor(2023, 2023)
	assert.NoError(err)
	assert.Equal([]string{"store_a"}, stores)

	stores, err = pm.StoresFor(2024, 2025)
	assert.NoError(err)
	assert.Equal([]string{"store_a", "store_b"}, stores)

	stores, err = pm.StoresFor(2020, 2022)
	assert.NoError(err)
	assert.Equal([]string{"store_a"}, stores)

	_, err = pm.StoresFor(2026, 2030)
	assert.ErrorIs(err, fderror.ErrOutOfRange)
}

func TestRangesAreCopies(t *testing.T) {
	assert := assert.New(t)
	pm := yearMap(t)

	ranges := pm.Ranges()
	assert.Equal("historic", ranges[0].ID)
	ranges[0].StoreID = "tampered"

	store, err := pm.Resolve(2022)
	assert.NoError(err)
	assert.Equal("store_a", store)
}
