package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
)

type StoreDriver string

const (
	// PgxDriver talks to PostgreSQL natively through pgx.
	PgxDriver = StoreDriver("pgx")
	// PqDriver talks to PostgreSQL through database/sql and lib/pq.
	PqDriver        = StoreDriver("postgres")
	SQLServerDriver = StoreDriver("sqlserver")
	MySQLDriver     = StoreDriver("mysql")
	// MemoryDriver keeps data in process. Data does not survive a restart.
	MemoryDriver = StoreDriver("memory")
)

const (
	defaultMaxConns       = 4
	defaultConnectRetries = 3
	defaultConnectBackoff = 500 * time.Millisecond
)

type ColumnCfg struct {
	Field  string `json:"field" toml:"field" yaml:"field"`
	Column string `json:"column" toml:"column" yaml:"column"`
}

type TableCfg struct {
	Table   string      `json:"table" toml:"table" yaml:"table"`
	Columns []ColumnCfg `json:"columns" toml:"columns" yaml:"columns"`
}

type Store struct {
	Name   string      `json:"name" toml:"name" yaml:"name"`
	Driver StoreDriver `json:"driver" toml:"driver" yaml:"driver"`

	Host     string            `json:"host" toml:"host" yaml:"host"`
	Port     int               `json:"port" toml:"port" yaml:"port"`
	Database string            `json:"database" toml:"database" yaml:"database"`
	User     string            `json:"user" toml:"user" yaml:"user"`
	Password string            `json:"password" toml:"password" yaml:"password"`
	Params   map[string]string `json:"params" toml:"params" yaml:"params"`

	// EnvPrefix names environment variables overriding the connection
	// parameters: <PREFIX>_HOST, _PORT, _DB, _USER, _PASSWORD.
	EnvPrefix string `json:"env_prefix" toml:"env_prefix" yaml:"env_prefix"`

	MaxConns       int           `json:"max_conns" toml:"max_conns" yaml:"max_conns"`
	ConnectRetries uint64        `json:"connect_retries" toml:"connect_retries" yaml:"connect_retries"`
	ConnectBackoff time.Duration `json:"connect_backoff" toml:"connect_backoff" yaml:"connect_backoff"`

	// Preset selects a built-in table layout; entries of Tables override it.
	Preset string               `json:"preset" toml:"preset" yaml:"preset"`
	Tables map[string]*TableCfg `json:"tables" toml:"tables" yaml:"tables"`
}

func (s *Store) applyEnv(lookup func(string) (string, bool)) {
	if s.EnvPrefix == "" {
		return
	}
	prefix := strings.ToUpper(s.EnvPrefix) + "_"
	if v, ok := lookup(prefix + "HOST"); ok {
		s.Host = v
	}
	if v, ok := lookup(prefix + "PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			s.Port = p
		}
	}
	if v, ok := lookup(prefix + "DB"); ok {
		s.Database = v
	}
	if v, ok := lookup(prefix + "USER"); ok {
		s.User = v
	}
	if v, ok := lookup(prefix + "PASSWORD"); ok {
		s.Password = v
	}
}

// PoolSize returns the configured pool size or the default.
func (s *Store) PoolSize() int {
	if s.MaxConns <= 0 {
		return defaultMaxConns
	}
	return s.MaxConns
}

func (s *Store) Retries() uint64 {
	if s.ConnectRetries == 0 {
		return defaultConnectRetries
	}
	return s.ConnectRetries
}

func (s *Store) Backoff() time.Duration {
	if s.ConnectBackoff <= 0 {
		return defaultConnectBackoff
	}
	return s.ConnectBackoff
}

// TableLayout returns the effective table mapping for dataset: the preset
// layout overridden by an explicit Tables entry.
func (s *Store) TableLayout(dataset string) (*TableCfg, bool) {
	if t, ok := s.Tables[dataset]; ok && t != nil {
		return t, true
	}
	if s.Preset == "" {
		return nil, false
	}
	layouts, ok := presets[s.Preset]
	if !ok {
		return nil, false
	}
	t, ok := layouts[dataset]
	return t, ok
}

func (s *Store) Validate(datasets []string) error {
	if s.Name == "" {
		return fderror.New(fderror.FDR_CONFIG, "store without a name")
	}
	switch s.Driver {
	case PgxDriver, PqDriver, SQLServerDriver, MySQLDriver, MemoryDriver:
	default:
		return fderror.Newf(fderror.FDR_CONFIG, "store %q: unknown driver %q", s.Name, s.Driver)
	}
	if s.Driver != MemoryDriver && s.Host == "" {
		return fderror.Newf(fderror.FDR_CONFIG, "store %q: host is not set", s.Name)
	}
	if s.Preset != "" {
		if _, ok := presets[s.Preset]; !ok {
			return fderror.Newf(fderror.FDR_CONFIG, "store %q: unknown preset %q", s.Name, s.Preset)
		}
	}
	for _, ds := range datasets {
		t, ok := s.TableLayout(ds)
		if !ok {
			return fderror.Newf(fderror.FDR_CONFIG, "store %q: dataset %q has no table layout", s.Name, ds)
		}
		if t.Table == "" || len(t.Columns) == 0 {
			return fderror.Newf(fderror.FDR_CONFIG, "store %q: dataset %q has an empty table layout", s.Name, ds)
		}
	}
	return nil
}
