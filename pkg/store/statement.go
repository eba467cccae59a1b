package store

import "fmt"

type StmtKind int

const (
	StmtInsert = StmtKind(iota)
	StmtSelect
	StmtAggregate
)

func (k StmtKind) String() string {
	switch k {
	case StmtInsert:
		return "insert"
	case StmtSelect:
		return "select"
	case StmtAggregate:
		return "aggregate"
	}
	return fmt.Sprintf("StmtKind(%d)", int(k))
}

type CondOp string

const (
	OpEq = CondOp("=")
	OpGe = CondOp(">=")
	OpLe = CondOp("<=")
	OpLt = CondOp("<")
)

// Cond is a comparison of a physical column with a bound parameter.
type Cond struct {
	Column string
	Op     CondOp
	Value  any
}

// Statement is a dialect-neutral description of one store operation.
// Values only ever travel as bound parameters.
//
// Insert uses Table, Columns and Args. Select projects Columns with Where
// and OrderBy. Aggregate returns one row per GroupBy value (or a single row
// when GroupBy is empty) holding [group,] COUNT(*) [, SUM(Sum)].
type Statement struct {
	Kind    StmtKind
	Table   string
	Columns []string
	Args    []any
	Where   []Cond
	OrderBy []string
	GroupBy string
	Sum     string
}
