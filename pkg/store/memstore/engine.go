// Package memstore is an in-process store speaking the store.Conn contract.
// It backs the demo and the tests; data lives as long as the Engine.
package memstore

import (
	"sync"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"
)

type ColumnDef struct {
	Name string
	Type record.FieldType

	NotNull     bool
	Unique      bool
	Positive    bool
	NonNegative bool
	MaxLen      int

	// Identity columns take the next sequence value when written as nil.
	Identity bool
	// DefaultNow columns take the commit time when written as nil.
	DefaultNow bool
}

type TableDef struct {
	Name    string
	Columns []ColumnDef
}

func (td *TableDef) column(name string) (*ColumnDef, bool) {
	for i := range td.Columns {
		if td.Columns[i].Name == name {
			return &td.Columns[i], true
		}
	}
	return nil, false
}

// TableDefFor derives the physical table of dataset schema laid out by tm.
// Generated int fields become identities, generated timestamps default to
// the current time.
func TableDefFor(schema *record.Schema, tm *store.TableMapping) *TableDef {
	td := &TableDef{Name: tm.Table}
	for _, c := range tm.Columns {
		f, _ := schema.Field(c.Field)
		td.Columns = append(td.Columns, ColumnDef{
			Name:        c.Column,
			Type:        f.Type,
			NotNull:     f.Required || f.Generated || f.Name == schema.PartitionField,
			Positive:    f.Positive,
			NonNegative: f.NonNegative,
			Identity:    f.Generated && f.Type == record.TypeInt,
			DefaultNow:  f.Generated && f.Type == record.TypeTimestamp,
		})
	}
	return td
}

type row map[string]any

type table struct {
	def  *TableDef
	rows []row
	seq  int64
}

type Engine struct {
	mu     sync.RWMutex
	name   string
	tables map[string]*table

	unavailable *atomic.Bool
	now         func() time.Time
}

func NewEngine(name string) *Engine {
	return &Engine{
		name:        name,
		tables:      map[string]*table{},
		unavailable: atomic.NewBool(false),
		now:         time.Now,
	}
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) CreateTable(def *TableDef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[def.Name]; ok {
		return xerrors.Errorf("memstore %s: table %s already exists", e.name, def.Name)
	}
	e.tables[def.Name] = &table{def: def}
	fedlog.Zero.Debug().
		Str("store", e.name).
		Str("table", def.Name).
		Int("columns", len(def.Columns)).
		Msg("memstore: create table")
	return nil
}

// CreateTables creates the table of every dataset mapped by desc.
func (e *Engine) CreateTables(desc *store.Descriptor, schemas map[string]*record.Schema) error {
	for _, ds := range desc.Datasets() {
		schema, ok := schemas[ds]
		if !ok {
			continue
		}
		tm, err := desc.Table(ds)
		if err != nil {
			return err
		}
		if err := e.CreateTable(TableDefFor(schema, tm)); err != nil {
			return err
		}
	}
	return nil
}

// AddUnique declares a unique constraint on an existing column.
func (e *Engine) AddUnique(tableName, column string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[tableName]
	if !ok {
		return &SchemaError{Table: tableName}
	}
	c, ok := t.def.column(column)
	if !ok {
		return &SchemaError{Table: tableName, Column: column}
	}
	c.Unique = true
	return nil
}

// SetUnavailable makes every following operation fail as if the store
// could not be reached.
func (e *Engine) SetUnavailable(v bool) {
	e.unavailable.Store(v)
}

func (e *Engine) checkAvailable() error {
	if e.unavailable.Load() {
		return ErrUnavailable
	}
	return nil
}

// RowCount returns the number of committed rows of tableName.
func (e *Engine) RowCount(tableName string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.tables[tableName]
	if !ok {
		return 0
	}
	return len(t.rows)
}

// Conn returns a store.Conn over the engine.
func (e *Engine) Conn() *Conn {
	return &Conn{engine: e}
}

// snapshot copies the committed rows of tableName.
func (e *Engine) snapshot(tableName string) (*TableDef, []row, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.tables[tableName]
	if !ok {
		return nil, nil, &SchemaError{Table: tableName}
	}
	rows := make([]row, len(t.rows))
	copy(rows, t.rows)
	return t.def, rows, nil
}
