package record

import "sort"

const (
	SalesDataset   = "sales"
	CreditsDataset = "credits"
)

func Sales() *Schema {
	return &Schema{
		Name: SalesDataset,
		Fields: []FieldDef{
			{Name: "sale_id", Type: TypeInt, Generated: true},
			{Name: "sale_date", Type: TypeDate, Required: true},
			{Name: "amount", Type: TypeDecimal, Required: true, Positive: true},
		},
		PartitionField:  "sale_date",
		PartitionDerive: KeyYear,
		SortFields:      []string{"sale_date", "sale_id"},
	}
}

func Credits() *Schema {
	return &Schema{
		Name: CreditsDataset,
		Fields: []FieldDef{
			{Name: "id", Type: TypeInt, Generated: true},
			{Name: "gender", Type: TypeString},
			{Name: "age", Type: TypeInt, NonNegative: true},
			{Name: "ethnicity", Type: TypeString},
			{Name: "zone", Type: TypeString},
			{Name: "district", Type: TypeString},
			{Name: "province", Type: TypeString},
			{Name: "canton", Type: TypeString},
			{Name: "parish", Type: TypeString},
			{Name: "zone_type", Type: TypeString},
			{Name: "credit_type", Type: TypeString},
			{Name: "activity_type", Type: TypeString},
			{Name: "activity", Type: TypeString},
			{Name: "cdh_number", Type: TypeInt, NonNegative: true},
			{Name: "subsidy_type", Type: TypeString},
			{Name: "cdh_active", Type: TypeInt, NonNegative: true},
			{Name: "year", Type: TypeInt, Required: true},
			{Name: "migrated_at", Type: TypeTimestamp, Generated: true},
		},
		PartitionField:  "year",
		PartitionDerive: KeyValue,
		SortFields:      []string{"id"},
	}
}

var builtins = map[string]func() *Schema{
	SalesDataset:   Sales,
	CreditsDataset: Credits,
}

// Lookup returns a fresh copy of a built-in dataset schema.
func Lookup(name string) (*Schema, bool) {
	f, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
