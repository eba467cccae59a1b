package record

import (
	"database/sql/driver"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"
)

type FieldType string

const (
	TypeString    = FieldType("string")
	TypeInt       = FieldType("int")
	TypeDecimal   = FieldType("decimal")
	TypeDate      = FieldType("date")
	TypeTimestamp = FieldType("timestamp")
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Coerce converts a driver or caller supplied value into the canonical value
// for ft. nil stays nil.
func Coerce(ft FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		if _, isDecimal := v.(decimal.Decimal); !isDecimal {
			dv, err := valuer.Value()
			if err != nil {
				return nil, err
			}
			return Coerce(ft, dv)
		}
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch ft {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return FormatValue(v), nil
	case TypeInt:
		return toInt(v)
	case TypeDecimal:
		return toDecimal(v)
	case TypeDate:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case TypeTimestamp:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	return nil, xerrors.Errorf("unknown field type %q", ft)
}

func toInt(v any) (int64, error) {
	switch vv := v.(type) {
	case int:
		return int64(vv), nil
	case int8:
		return int64(vv), nil
	case int16:
		return int64(vv), nil
	case int32:
		return int64(vv), nil
	case int64:
		return vv, nil
	case uint8:
		return int64(vv), nil
	case uint16:
		return int64(vv), nil
	case uint32:
		return int64(vv), nil
	case uint64:
		if vv > math.MaxInt64 {
			return 0, xerrors.Errorf("value %d overflows int64", vv)
		}
		return int64(vv), nil
	case float32:
		return floatToInt(float64(vv))
	case float64:
		return floatToInt(vv)
	case decimal.Decimal:
		if !vv.IsInteger() {
			return 0, xerrors.Errorf("value %s is not an integer", vv)
		}
		return vv.IntPart(), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(vv), 10, 64)
		if err != nil {
			return 0, xerrors.Errorf("value %q is not an integer: %w", vv, err)
		}
		return i, nil
	}
	return 0, xerrors.Errorf("cannot convert %T to int", v)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, xerrors.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch vv := v.(type) {
	case decimal.Decimal:
		return vv, nil
	case float32:
		return decimal.NewFromFloat32(vv), nil
	case float64:
		if math.IsNaN(vv) || math.IsInf(vv, 0) {
			return decimal.Zero, xerrors.Errorf("value %v is not a finite number", vv)
		}
		return decimal.NewFromFloat(vv), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(vv))
		if err != nil {
			return decimal.Zero, xerrors.Errorf("value %q is not a decimal: %w", vv, err)
		}
		return d, nil
	}
	i, err := toInt(v)
	if err != nil {
		return decimal.Zero, xerrors.Errorf("cannot convert %T to decimal", v)
	}
	return decimal.NewFromInt(i), nil
}

func toTime(v any) (time.Time, error) {
	switch vv := v.(type) {
	case time.Time:
		return vv, nil
	case string:
		s := strings.TrimSpace(vv)
		for _, layout := range []string{time.RFC3339Nano, TimestampLayout, DateLayout} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, xerrors.Errorf("value %q is not a date", vv)
	}
	return time.Time{}, xerrors.Errorf("cannot convert %T to time", v)
}
