package record

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one logical entity: field name to canonical value.
// Canonical values are string, int64, decimal.Decimal, time.Time or nil.
type Record map[string]any

func (r Record) Clone() Record {
	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// String renders the record with sorted field names.
func (r Record) String() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", k, FormatValue(r[k]))
	}
	sb.WriteByte('}')
	return sb.String()
}

// FormatValue prints a canonical value.
func FormatValue(v any) string {
	switch vv := v.(type) {
	case nil:
		return "NULL"
	case decimal.Decimal:
		return vv.String()
	case time.Time:
		if vv.Hour() == 0 && vv.Minute() == 0 && vv.Second() == 0 && vv.Nanosecond() == 0 {
			return vv.Format(DateLayout)
		}
		return vv.Format(time.RFC3339)
	default:
		return fmt.Sprint(vv)
	}
}

// Compare orders two canonical values. nil sorts first; values of
// different kinds fall back to their printed form.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case decimal.Decimal:
		if bv, ok := b.(decimal.Decimal); ok {
			return av.Cmp(bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}

// Equal reports whether two canonical values are the same.
func Equal(a, b any) bool {
	return Compare(a, b) == 0
}
