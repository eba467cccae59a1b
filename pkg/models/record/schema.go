package record

import (
	"sort"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/shopspring/decimal"
)

// KeyDerivation tells how the partition key is computed from the partition
// field.
type KeyDerivation string

const (
	KeyValue = KeyDerivation("value")
	KeyYear  = KeyDerivation("year")
)

type FieldDef struct {
	Name        string
	Type        FieldType
	Required    bool
	Positive    bool
	NonNegative bool
	// Generated fields are assigned by the store and never written.
	Generated bool
}

// Schema describes one logical dataset.
type Schema struct {
	Name            string
	Fields          []FieldDef
	PartitionField  string
	PartitionDerive KeyDerivation
	// SortFields order rows sharing a partition key.
	SortFields []string
}

func (s *Schema) Field(name string) (FieldDef, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Writable returns the fields an insert carries, in schema order.
func (s *Schema) Writable() []FieldDef {
	res := make([]FieldDef, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.Generated {
			res = append(res, f)
		}
	}
	return res
}

// FieldNames returns every field name in schema order.
func (s *Schema) FieldNames() []string {
	res := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		res[i] = f.Name
	}
	return res
}

// Normalize validates an incoming record and returns its canonical form.
// It never touches a store; every failure is a validation error.
func (s *Schema) Normalize(rec Record) (Record, error) {
	if rec == nil {
		return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: record is nil", s.Name)
	}
	unknown := make([]string, 0)
	for name := range rec {
		f, ok := s.Field(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if f.Generated && rec[name] != nil {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: field %q is assigned by the store", s.Name, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: unknown fields %v", s.Name, unknown)
	}

	out := make(Record, len(s.Fields))
	for _, f := range s.Writable() {
		raw, present := rec[f.Name]
		if !present || raw == nil {
			if f.Required || f.Name == s.PartitionField {
				return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: field %q is required", s.Name, f.Name)
			}
			out[f.Name] = nil
			continue
		}
		v, err := Coerce(f.Type, raw)
		if err != nil {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "%s: field %q: %v", s.Name, f.Name, err)
		}
		if err := checkSign(s.Name, f, v); err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func checkSign(dataset string, f FieldDef, v any) error {
	if !f.Positive && !f.NonNegative {
		return nil
	}
	sign := 0
	switch vv := v.(type) {
	case int64:
		switch {
		case vv > 0:
			sign = 1
		case vv < 0:
			sign = -1
		}
	case decimal.Decimal:
		sign = vv.Sign()
	default:
		return nil
	}
	if f.Positive && sign <= 0 {
		return fderror.Newf(fderror.FDR_VALIDATION, "%s: field %q must be greater than zero", dataset, f.Name)
	}
	if f.NonNegative && sign < 0 {
		return fderror.Newf(fderror.FDR_VALIDATION, "%s: field %q must not be negative", dataset, f.Name)
	}
	return nil
}

// PartitionKey derives the partition key of a canonical record.
func (s *Schema) PartitionKey(rec Record) (int64, error) {
	v, ok := rec[s.PartitionField]
	if !ok || v == nil {
		return 0, fderror.Newf(fderror.FDR_VALIDATION, "%s: partition field %q is missing", s.Name, s.PartitionField)
	}
	return s.KeyOf(v)
}

// KeyOf derives a partition key from a canonical partition field value.
func (s *Schema) KeyOf(v any) (int64, error) {
	switch s.PartitionDerive {
	case KeyYear:
		t, ok := v.(time.Time)
		if !ok {
			return 0, fderror.Newf(fderror.FDR_VALIDATION, "%s: partition field %q holds %T, not a date", s.Name, s.PartitionField, v)
		}
		return int64(t.Year()), nil
	default:
		i, ok := v.(int64)
		if !ok {
			return 0, fderror.Newf(fderror.FDR_VALIDATION, "%s: partition field %q holds %T, not an integer", s.Name, s.PartitionField, v)
		}
		return i, nil
	}
}
