package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"
)

var ErrUnavailable = xerrors.New("memstore: store is unavailable")

// ConstraintError is raised when a row violates a column constraint.
type ConstraintError struct {
	Table      string
	Column     string
	Constraint string
	Value      any
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("memstore: %s.%s violates %s constraint (value %s)", e.Table, e.Column, e.Constraint, record.FormatValue(e.Value))
}

// SchemaError reports a statement naming an unknown table or column.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("memstore: table %s does not exist", e.Table)
	}
	return fmt.Sprintf("memstore: column %s of table %s does not exist", e.Column, e.Table)
}

type Conn struct {
	engine *Engine
}

var _ store.Conn = &Conn{}

func (c *Conn) Begin(context.Context) (store.DriverTx, error) {
	if err := c.engine.checkAvailable(); err != nil {
		return nil, err
	}
	return &memTx{engine: c.engine, pending: map[string][]row{}}, nil
}

func (c *Conn) Query(ctx context.Context, st *store.Statement) (store.Rows, error) {
	if err := c.engine.checkAvailable(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, rows, err := c.engine.snapshot(st.Table)
	if err != nil {
		return nil, err
	}
	rows, err = filter(def, rows, st.Where)
	if err != nil {
		return nil, err
	}
	switch st.Kind {
	case store.StmtSelect:
		return project(def, rows, st.Columns, st.OrderBy)
	case store.StmtAggregate:
		return aggregate(def, rows, st.GroupBy, st.Sum)
	}
	return nil, xerrors.Errorf("memstore: %s is not a query", st.Kind)
}

func (c *Conn) Ping(context.Context) error {
	return c.engine.checkAvailable()
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) Classify(err error) string {
	var ce *ConstraintError
	var se *SchemaError
	switch {
	case xerrors.Is(err, ErrUnavailable):
		return fderror.FDR_STORE_UNAVAILABLE
	case xerrors.As(err, &ce), xerrors.As(err, &se):
		return fderror.FDR_STORE_REJECTED
	}
	return ""
}

type memTx struct {
	engine  *Engine
	pending map[string][]row
	order   []string
}

func (t *memTx) Exec(ctx context.Context, st *store.Statement) (int64, error) {
	if err := t.engine.checkAvailable(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if st.Kind != store.StmtInsert {
		return 0, xerrors.Errorf("memstore: %s is not supported in a write transaction", st.Kind)
	}
	if len(st.Columns) != len(st.Args) {
		return 0, xerrors.Errorf("memstore: insert into %s: %d columns for %d values", st.Table, len(st.Columns), len(st.Args))
	}

	e := t.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, ok := e.tables[st.Table]
	if !ok {
		return 0, &SchemaError{Table: st.Table}
	}
	r := row{}
	for i, col := range st.Columns {
		cd, ok := tbl.def.column(col)
		if !ok {
			return 0, &SchemaError{Table: st.Table, Column: col}
		}
		v, err := record.Coerce(cd.Type, st.Args[i])
		if err != nil {
			return 0, &ConstraintError{Table: st.Table, Column: col, Constraint: "type", Value: st.Args[i]}
		}
		r[col] = v
	}
	for _, cd := range tbl.def.Columns {
		if r[cd.Name] != nil {
			continue
		}
		switch {
		case cd.Identity:
			tbl.seq++
			r[cd.Name] = tbl.seq
		case cd.DefaultNow:
			r[cd.Name] = e.now().UTC()
		default:
			r[cd.Name] = nil
		}
	}
	if err := checkRow(tbl.def, r); err != nil {
		return 0, err
	}
	if err := checkUnique(tbl.def, r, tbl.rows, t.pending[st.Table]); err != nil {
		return 0, err
	}
	if _, ok := t.pending[st.Table]; !ok {
		t.order = append(t.order, st.Table)
	}
	t.pending[st.Table] = append(t.pending[st.Table], r)
	return 1, nil
}

// Commit applies every pending row or none of them.
func (t *memTx) Commit(context.Context) error {
	e := t.engine
	if err := e.checkAvailable(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, name := range t.order {
		tbl := e.tables[name]
		for i, r := range t.pending[name] {
			if err := checkUnique(tbl.def, r, tbl.rows, t.pending[name][:i]); err != nil {
				return err
			}
		}
	}
	for _, name := range t.order {
		tbl := e.tables[name]
		tbl.rows = append(tbl.rows, t.pending[name]...)
	}
	t.pending = map[string][]row{}
	t.order = nil
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.pending = map[string][]row{}
	t.order = nil
	return nil
}

func checkRow(def *TableDef, r row) error {
	for _, cd := range def.Columns {
		v := r[cd.Name]
		if v == nil {
			if cd.NotNull {
				return &ConstraintError{Table: def.Name, Column: cd.Name, Constraint: "not null"}
			}
			continue
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
		case string:
			if cd.MaxLen > 0 && len(vv) > cd.MaxLen {
				return &ConstraintError{Table: def.Name, Column: cd.Name, Constraint: "length", Value: v}
			}
		}
		if (cd.Positive && sign <= 0) || (cd.NonNegative && sign < 0) {
			return &ConstraintError{Table: def.Name, Column: cd.Name, Constraint: "check", Value: v}
		}
	}
	return nil
}

func checkUnique(def *TableDef, r row, sets ...[]row) error {
	for _, cd := range def.Columns {
		if !cd.Unique || r[cd.Name] == nil {
			continue
		}
		for _, set := range sets {
			for _, other := range set {
				if record.Equal(other[cd.Name], r[cd.Name]) {
					return &ConstraintError{Table: def.Name, Column: cd.Name, Constraint: "unique", Value: r[cd.Name]}
				}
			}
		}
	}
	return nil
}

func filter(def *TableDef, rows []row, where []store.Cond) ([]row, error) {
	for _, c := range where {
		if _, ok := def.column(c.Column); !ok {
			return nil, &SchemaError{Table: def.Name, Column: c.Column}
		}
	}
	res := make([]row, 0, len(rows))
	for _, r := range rows {
		match := true
		for _, c := range where {
			v := r[c.Column]
			if v == nil || c.Value == nil {
				match = false
				break
			}
			cmp := record.Compare(v, c.Value)
			switch c.Op {
			case store.OpEq:
				match = cmp == 0
			case store.OpGe:
				match = cmp >= 0
			case store.OpLe:
				match = cmp <= 0
			case store.OpLt:
				match = cmp < 0
			default:
				return nil, xerrors.Errorf("memstore: unsupported operator %q", c.Op)
			}
			if !match {
				break
			}
		}
		if match {
			res = append(res, r)
		}
	}
	return res, nil
}

func project(def *TableDef, rows []row, columns, orderBy []string) (store.Rows, error) {
	for _, col := range append(append([]string{}, columns...), orderBy...) {
		if _, ok := def.column(col); !ok {
			return nil, &SchemaError{Table: def.Name, Column: col}
		}
	}
	if len(orderBy) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, col := range orderBy {
				if c := record.Compare(rows[i][col], rows[j][col]); c != 0 {
					return c < 0
				}
			}
			return false
		})
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(columns))
		for j, col := range columns {
			vals[j] = r[col]
		}
		out[i] = vals
	}
	return store.NewSliceRows(out), nil
}

type group struct {
	key   any
	count int64
	sum   decimal.Decimal
}

func aggregate(def *TableDef, rows []row, groupBy, sumCol string) (store.Rows, error) {
	for _, col := range []string{groupBy, sumCol} {
		if col == "" {
			continue
		}
		if _, ok := def.column(col); !ok {
			return nil, &SchemaError{Table: def.Name, Column: col}
		}
	}

	var groups []*group
	index := map[string]*group{}
	for _, r := range rows {
		var key any
		if groupBy != "" {
			key = r[groupBy]
		}
		k := record.FormatValue(key)
		g, ok := index[k]
		if !ok {
			g = &group{key: key}
			index[k] = g
			groups = append(groups, g)
		}
		g.count++
		if sumCol == "" || r[sumCol] == nil {
			continue
		}
		d, err := record.Coerce(record.TypeDecimal, r[sumCol])
		if err != nil {
			return nil, &ConstraintError{Table: def.Name, Column: sumCol, Constraint: "type", Value: r[sumCol]}
		}
		g.sum = g.sum.Add(d.(decimal.Decimal))
	}
	if groupBy == "" && len(groups) == 0 {
		groups = append(groups, &group{})
	}

	out := make([][]any, 0, len(groups))
	for _, g := range groups {
		var vals []any
		if groupBy != "" {
			vals = append(vals, g.key)
		}
		vals = append(vals, g.count)
		if sumCol != "" {
			vals = append(vals, g.sum)
		}
		out = append(out, vals)
	}
	return store.NewSliceRows(out), nil
}
