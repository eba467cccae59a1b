package store

import (
	"sort"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
)

type ColumnMapping struct {
	Field  string
	Column string
}

// TableMapping is the physical layout of one dataset in one store. Columns
// are in physical order; logical fields absent from Columns are not stored.
type TableMapping struct {
	Table   string
	Columns []ColumnMapping
}

func (tm *TableMapping) Column(field string) (string, bool) {
	for _, c := range tm.Columns {
		if c.Field == field {
			return c.Column, true
		}
	}
	return "", false
}

// Fields returns the logical field of every physical column, in order.
func (tm *TableMapping) Fields() []string {
	res := make([]string, len(tm.Columns))
	for i, c := range tm.Columns {
		res[i] = c.Field
	}
	return res
}

func (tm *TableMapping) PhysicalColumns() []string {
	res := make([]string, len(tm.Columns))
	for i, c := range tm.Columns {
		res[i] = c.Column
	}
	return res
}

// Descriptor identifies one backing store and carries its schema mappings.
// It is built once at startup and never mutated.
type Descriptor struct {
	Name   string
	Driver string
	Tables map[string]*TableMapping
}

func (d *Descriptor) Table(dataset string) (*TableMapping, error) {
	tm, ok := d.Tables[dataset]
	if !ok || tm == nil {
		return nil, fderror.Newf(fderror.FDR_CONFIG, "dataset %q is not mapped", dataset).WithStore(d.Name, "mapping")
	}
	return tm, nil
}

// Datasets returns the mapped dataset names, sorted.
func (d *Descriptor) Datasets() []string {
	res := make([]string, 0, len(d.Tables))
	for ds := range d.Tables {
		res = append(res, ds)
	}
	sort.Strings(res)
	return res
}

// Validate checks a mapping against a schema: every mapped field exists,
// nothing is mapped twice, and every required field has a column.
func (d *Descriptor) Validate(schema *record.Schema) error {
	tm, err := d.Table(schema.Name)
	if err != nil {
		return err
	}
	if tm.Table == "" {
		return fderror.Newf(fderror.FDR_CONFIG, "dataset %q has no table", schema.Name).WithStore(d.Name, "mapping")
	}
	fields := map[string]struct{}{}
	columns := map[string]struct{}{}
	for _, c := range tm.Columns {
		if _, ok := schema.Field(c.Field); !ok {
			return fderror.Newf(fderror.FDR_CONFIG, "table %s maps unknown field %q", tm.Table, c.Field).WithStore(d.Name, "mapping")
		}
		if c.Column == "" {
			return fderror.Newf(fderror.FDR_CONFIG, "table %s maps field %q to an empty column", tm.Table, c.Field).WithStore(d.Name, "mapping")
		}
		if _, ok := fields[c.Field]; ok {
			return fderror.Newf(fderror.FDR_CONFIG, "table %s maps field %q twice", tm.Table, c.Field).WithStore(d.Name, "mapping")
		}
		if _, ok := columns[c.Column]; ok {
			return fderror.Newf(fderror.FDR_CONFIG, "table %s uses column %q twice", tm.Table, c.Column).WithStore(d.Name, "mapping")
		}
		fields[c.Field] = struct{}{}
		columns[c.Column] = struct{}{}
	}
	for _, f := range schema.Fields {
		if !f.Required && f.Name != schema.PartitionField {
			continue
		}
		if _, ok := fields[f.Name]; !ok {
			return fderror.Newf(fderror.FDR_CONFIG, "table %s does not map required field %q", tm.Table, f.Name).WithStore(d.Name, "mapping")
		}
	}
	return nil
}

// FieldCond is a condition over a logical field.
type FieldCond struct {
	Field string
	Op    CondOp
	Value any
}

func (tm *TableMapping) where(conds []FieldCond) ([]Cond, error) {
	res := make([]Cond, 0, len(conds))
	for _, fc := range conds {
		col, ok := tm.Column(fc.Field)
		if !ok {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "field %q is not stored in table %s", fc.Field, tm.Table)
		}
		res = append(res, Cond{Column: col, Op: fc.Op, Value: fc.Value})
	}
	return res, nil
}

// InsertStatement builds the insert of a canonical record. Store generated
// fields are skipped; unmapped fields must be nil.
func (tm *TableMapping) InsertStatement(schema *record.Schema, rec record.Record) (*Statement, error) {
	st := &Statement{Kind: StmtInsert, Table: tm.Table}
	for _, c := range tm.Columns {
		f, _ := schema.Field(c.Field)
		if f.Generated {
			continue
		}
		st.Columns = append(st.Columns, c.Column)
		st.Args = append(st.Args, rec[c.Field])
	}
	for _, f := range schema.Writable() {
		if _, ok := tm.Column(f.Name); ok {
			continue
		}
		if rec[f.Name] != nil {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "field %q is not stored in table %s", f.Name, tm.Table)
		}
	}
	return st, nil
}

// SelectStatement projects every mapped column in physical order.
func (tm *TableMapping) SelectStatement(conds []FieldCond) (*Statement, error) {
	where, err := tm.where(conds)
	if err != nil {
		return nil, err
	}
	return &Statement{
		Kind:    StmtSelect,
		Table:   tm.Table,
		Columns: tm.PhysicalColumns(),
		Where:   where,
	}, nil
}

// AggregateStatement counts rows (and sums sumField) per groupField.
// Either field may be empty.
func (tm *TableMapping) AggregateStatement(groupField, sumField string, conds []FieldCond) (*Statement, error) {
	where, err := tm.where(conds)
	if err != nil {
		return nil, err
	}
	st := &Statement{Kind: StmtAggregate, Table: tm.Table, Where: where}
	if groupField != "" {
		col, ok := tm.Column(groupField)
		if !ok {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "field %q is not stored in table %s", groupField, tm.Table)
		}
		st.GroupBy = col
	}
	if sumField != "" {
		col, ok := tm.Column(sumField)
		if !ok {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "field %q is not stored in table %s", sumField, tm.Table)
		}
		st.Sum = col
	}
	return st, nil
}
