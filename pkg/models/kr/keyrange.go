package kr

import "fmt"

// KeyRange maps the inclusive key interval [LowerBound, UpperBound] to a store.
type KeyRange struct {
	ID         string
	LowerBound int64
	UpperBound int64
	StoreID    string
}

func (kr *KeyRange) Contains(key int64) bool {
	return kr.LowerBound <= key && key <= kr.UpperBound
}

// Intersects reports whether kr shares at least one key with [lower, upper].
func (kr *KeyRange) Intersects(lower, upper int64) bool {
	return kr.LowerBound <= upper && lower <= kr.UpperBound
}

func (kr *KeyRange) String() string {
	return fmt.Sprintf("%s[%d..%d]->%s", kr.ID, kr.LowerBound, kr.UpperBound, kr.StoreID)
}

func CmpRangesLess(kr *KeyRange, other *KeyRange) bool {
	if kr.LowerBound == other.LowerBound {
		return kr.UpperBound < other.UpperBound
	}
	return kr.LowerBound < other.LowerBound
}
