package store

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Dialect renders statements for one SQL flavour.
type Dialect interface {
	Name() string
	Placeholder(n int) string
	QuoteIdent(ident string) string
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) QuoteIdent(ident string) string {
	return quoteParts(ident, func(p string) string {
		return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	})
}

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string { return "sqlserver" }

func (sqlServerDialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (sqlServerDialect) QuoteIdent(ident string) string {
	return quoteParts(ident, func(p string) string {
		return "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	})
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) QuoteIdent(ident string) string {
	return quoteParts(ident, func(p string) string {
		return "`" + strings.ReplaceAll(p, "`", "``") + "`"
	})
}

var (
	Postgres  Dialect = postgresDialect{}
	SQLServer Dialect = sqlServerDialect{}
	MySQL     Dialect = mysqlDialect{}
)

// quoteParts quotes every part of a possibly schema-qualified name.
func quoteParts(ident string, quote func(string) string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

// Render produces the SQL text and bound arguments of st in dialect d.
func Render(d Dialect, st *Statement) (string, []any, error) {
	if st == nil {
		return "", nil, xerrors.New("nil statement")
	}
	if st.Table == "" {
		return "", nil, xerrors.Errorf("%s statement has no table", st.Kind)
	}

	var sb strings.Builder
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	switch st.Kind {
	case StmtInsert:
		if len(st.Columns) == 0 || len(st.Columns) != len(st.Args) {
			return "", nil, xerrors.Errorf("insert into %s: %d columns for %d values", st.Table, len(st.Columns), len(st.Args))
		}
		sb.WriteString("INSERT INTO ")
		sb.WriteString(d.QuoteIdent(st.Table))
		sb.WriteString(" (")
		for i, c := range st.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.QuoteIdent(c))
		}
		sb.WriteString(") VALUES (")
		for i, v := range st.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(bind(v))
		}
		sb.WriteString(")")
		return sb.String(), args, nil

	case StmtSelect:
		if len(st.Columns) == 0 {
			return "", nil, xerrors.Errorf("select from %s: no columns", st.Table)
		}
		sb.WriteString("SELECT ")
		for i, c := range st.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.QuoteIdent(c))
		}

	case StmtAggregate:
		sb.WriteString("SELECT ")
		if st.GroupBy != "" {
			sb.WriteString(d.QuoteIdent(st.GroupBy))
			sb.WriteString(", ")
		}
		sb.WriteString("COUNT(*)")
		if st.Sum != "" {
			sb.WriteString(", SUM(")
			sb.WriteString(d.QuoteIdent(st.Sum))
			sb.WriteString(")")
		}

	default:
		return "", nil, xerrors.Errorf("unsupported statement kind %s", st.Kind)
	}

	sb.WriteString(" FROM ")
	sb.WriteString(d.QuoteIdent(st.Table))
	for i, c := range st.Where {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		switch c.Op {
		case OpEq, OpGe, OpLe, OpLt:
		default:
			return "", nil, xerrors.Errorf("unsupported operator %q", c.Op)
		}
		sb.WriteString(d.QuoteIdent(c.Column))
		sb.WriteString(" ")
		sb.WriteString(string(c.Op))
		sb.WriteString(" ")
		sb.WriteString(bind(c.Value))
	}
	if st.Kind == StmtAggregate && st.GroupBy != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(d.QuoteIdent(st.GroupBy))
	}
	if st.Kind == StmtSelect && len(st.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, c := range st.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.QuoteIdent(c))
		}
	}
	return sb.String(), args, nil
}
