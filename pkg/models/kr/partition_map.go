package kr

import (
	"sort"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
)

// MaxDomainSize bounds the lookup table built for a partition map.
const MaxDomainSize = 1 << 16

// PartitionMap is an immutable set of key ranges covering the key domain
// [min, max] with no gaps and no overlaps.
type PartitionMap struct {
	version string
	min     int64
	max     int64

	ranges []*KeyRange
	lookup []int
	stores []string
}

// NewPartitionMap validates ranges against the domain and builds the lookup
// table. When knownStores is not nil every range must point to one of them.
func NewPartitionMap(version string, min, max int64, ranges []*KeyRange, knownStores []string) (*PartitionMap, error) {
	if min > max {
		return nil, fderror.Newf(fderror.FDR_CONFIG, "partition domain is empty: min %d > max %d", min, max)
	}
	if max-min+1 > MaxDomainSize {
		return nil, fderror.Newf(fderror.FDR_CONFIG, "partition domain [%d, %d] exceeds %d keys", min, max, MaxDomainSize)
	}
	if len(ranges) == 0 {
		return nil, fderror.New(fderror.FDR_CONFIG, "partition map has no key ranges")
	}

	var known map[string]struct{}
	if knownStores != nil {
		known = make(map[string]struct{}, len(knownStores))
		for _, s := range knownStores {
			known[s] = struct{}{}
		}
	}

	sorted := make([]*KeyRange, 0, len(ranges))
	ids := map[string]struct{}{}
	for _, r := range ranges {
		if r == nil {
			return nil, fderror.New(fderror.FDR_CONFIG, "nil key range")
		}
		if r.ID == "" {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "key range %v has no id", r)
		}
		if _, ok := ids[r.ID]; ok {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "duplicate key range id %q", r.ID)
		}
		ids[r.ID] = struct{}{}
		if r.StoreID == "" {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "key range %q has no store", r.ID)
		}
		if known != nil {
			if _, ok := known[r.StoreID]; !ok {
				return nil, fderror.Newf(fderror.FDR_CONFIG, "key range %q points to unknown store %q", r.ID, r.StoreID)
			}
		}
		if r.LowerBound > r.UpperBound {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "key range %q has lower bound %d above upper bound %d", r.ID, r.LowerBound, r.UpperBound)
		}
		if r.LowerBound < min || r.UpperBound > max {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "key range %q [%d, %d] is outside the domain [%d, %d]", r.ID, r.LowerBound, r.UpperBound, min, max)
		}
		cp := *r
		sorted = append(sorted, &cp)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return CmpRangesLess(sorted[i], sorted[j])
	})

	lookup := make([]int, max-min+1)
	for i := range lookup {
		lookup[i] = -1
	}
	for i, r := range sorted {
		for key := r.LowerBound; key <= r.UpperBound; key++ {
			if prev := lookup[key-min]; prev >= 0 {
				return nil, fderror.Newf(fderror.FDR_CONFIG, "key %d is covered by both %q and %q", key, sorted[prev].ID, r.ID)
			}
			lookup[key-min] = i
		}
	}
	for off, idx := range lookup {
		if idx < 0 {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "key %d is not covered by any key range", min+int64(off))
		}
	}

	var stores []string
	seen := map[string]struct{}{}
	for _, r := range sorted {
		if _, ok := seen[r.StoreID]; ok {
			continue
		}
		seen[r.StoreID] = struct{}{}
		stores = append(stores, r.StoreID)
	}

	return &PartitionMap{
		version: version,
		min:     min,
		max:     max,
		ranges:  sorted,
		lookup:  lookup,
		stores:  stores,
	}, nil
}

func (pm *PartitionMap) Version() string {
	return pm.version
}

// Domain returns the inclusive key domain.
func (pm *PartitionMap) Domain() (int64, int64) {
	return pm.min, pm.max
}

// RangeFor returns the key range owning key.
func (pm *PartitionMap) RangeFor(key int64) (*KeyRange, error) {
	if key < pm.min || key > pm.max {
		return nil, fderror.Newf(fderror.FDR_OUT_OF_RANGE, "partition key %d is outside [%d, %d]", key, pm.min, pm.max)
	}
	return pm.ranges[pm.lookup[key-pm.min]], nil
}

// Resolve returns the id of the store owning key.
func (pm *PartitionMap) Resolve(key int64) (string, error) {
	r, err := pm.RangeFor(key)
	if err != nil {
		return "", err
	}
	return r.StoreID, nil
}

// StoresFor returns the stores owning at least one key of [lower, upper],
// in partition map order.
func (pm *PartitionMap) StoresFor(lower, upper int64) ([]string, error) {
	if lower > upper || upper < pm.min || lower > pm.max {
		return nil, fderror.Newf(fderror.FDR_OUT_OF_RANGE, "key interval [%d, %d] does not intersect [%d, %d]", lower, upper, pm.min, pm.max)
	}
	hit := map[string]struct{}{}
	for _, r := range pm.ranges {
		if r.Intersects(lower, upper) {
			hit[r.StoreID] = struct{}{}
		}
	}
	res := make([]string, 0, len(hit))
	for _, s := range pm.stores {
		if _, ok := hit[s]; ok {
			res = append(res, s)
		}
	}
	return res, nil
}

// Stores returns every store referenced by the map, in order of the first
// key range pointing to it.
func (pm *PartitionMap) Stores() []string {
	return append([]string(nil), pm.stores...)
}

// StoreIndex returns the position of store in Stores, or -1.
func (pm *PartitionMap) StoreIndex(store string) int {
	for i, s := range pm.stores {
		if s == store {
			return i
		}
	}
	return -1
}

func (pm *PartitionMap) Ranges() []*KeyRange {
	res := make([]*KeyRange, len(pm.ranges))
	for i, r := range pm.ranges {
		cp := *r
		res[i] = &cp
	}
	return res
}
