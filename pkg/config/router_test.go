package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const yamlCfg = `
log_level: debug
datasets: [sales]
partition_map:
  version: "2025.1"
  domain_min: 2022
  domain_max: 2025
  ranges:
    - {id: historic, lower_bound: 2022, upper_bound: 2024, store: historic}
    - {id: current, lower_bound: 2025, upper_bound: 2025, store: current}
stores:
  - name: historic
    driver: pgx
    host: localhost
    port: 5432
    database: particiondbpostgres
    user: admin
    password: admin
    env_prefix: postgres
    preset: historic-postgres
    connect_backoff: 2s
  - name: current
    driver: sqlserver
    host: localhost
    port: 1433
    database: ParticionDBSQLServer
    user: sa
    password: admin
    env_prefix: sqlserver
    preset: current-sqlserver
`

const tomlCfg = `
log_level = "info"
datasets = ["sales"]

[partition_map]
version = "1"
domain_min = 2022
domain_max = 2025

[[partition_map.ranges]]
id = "all"
lower_bound = 2022
upper_bound = 2025
store = "mem"

[[stores]]
name = "mem"
driver = "memory"

[stores.tables.sales]
table = "sales"
columns = [
  {field = "sale_id", column = "id"},
  {field = "sale_date", column = "day"},
  {field = "amount", column = "amount"},
]
`

func writeCfg(t *testing.T, name, body string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadRouterCfgYaml(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("POSTGRES_HOST", "pg.internal")
	t.Setenv("POSTGRES_PORT", "6432")
	t.Setenv("SQLSERVER_PASSWORD", "s3cret")

	dump, err := LoadRouterCfg(writeCfg(t, "router.yaml", yamlCfg))
	require.NoError(t, err)

	cfg := RouterConfig()
	assert.Equal("debug", cfg.LogLevel)
	assert.Equal([]string{"historic", "current"}, cfg.StoreNames())

	hist, ok := cfg.Store("historic")
	require.True(t, ok)
	assert.Equal("pg.internal", hist.Host)
	assert.Equal(6432, hist.Port)
	assert.Equal(2*time.Second, hist.Backoff())
	assert.Equal(defaultMaxConns, hist.PoolSize())

	cur, _ := cfg.Store("current")
	assert.Equal("s3cret", cur.Password)
	assert.NotContains(dump, "s3cret")

	layout, ok := cur.TableLayout("sales")
	require.True(t, ok)
	assert.Equal("VentasActuales", layout.Table)

	pm, err := cfg.PartitionMap.Build(cfg.StoreNames())
	require.NoError(t, err)
	store, err := pm.Resolve(2025)
	assert.NoError(err)
	assert.Equal("current", store)
	assert.Equal("2025.1", pm.Version())
}

func TestLoadRouterCfgToml(t *testing.T) {
	assert := assert.New(t)

	_, err := LoadRouterCfg(writeCfg(t, "router.toml", tomlCfg))
	require.NoError(t, err)

	cfg := RouterConfig()
	mem, ok := cfg.Store("mem")
	require.True(t, ok)
	assert.Equal(MemoryDriver, mem.Driver)
	layout, ok := mem.TableLayout("sales")
	require.True(t, ok)
	assert.Equal("day", layout.Columns[1].Column)
}

func TestLoadRouterCfgUnknownSuffix(t *testing.T) {
	_, err := LoadRouterCfg(writeCfg(t, "router.ini", "x=1"))
	assert.ErrorIs(t, err, fderror.ErrConfig)
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	valid := func() *Router {
		return &Router{
			Datasets: []string{"sales"},
			PartitionMap: PartitionMapCfg{
				DomainMin: 2022, DomainMax: 2025,
				Ranges: []KeyRangeCfg{{ID: "a", LowerBound: 2022, UpperBound: 2025, Store: "s"}},
			},
			Stores: []*Store{{Name: "s", Driver: MemoryDriver, Preset: PresetHistoricPostgres}},
		}
	}
	assert.NoError(valid().Validate())

	for i, mutate := range []func(r *Router){
		func(r *Router) { r.Stores = nil },
		func(r *Router) { r.Stores = append(r.Stores, r.Stores[0]) },
		func(r *Router) { r.Stores[0].Driver = "oracle" },
		func(r *Router) { r.Stores[0].Driver = PgxDriver },
		func(r *Router) { r.Stores[0].Preset = "nope" },
		func(r *Router) { r.Stores[0].Preset = "" },
		func(r *Router) { r.Datasets = []string{"invoices"} },
		func(r *Router) { r.PartitionMap.Ranges = nil },
		func(r *Router) { r.PartitionMap.Source = EtcdSource },
		func(r *Router) { r.PartitionMap.Source = "consul" },
	} {
		r := valid()
		mutate(r)
		assert.ErrorIs(r.Validate(), fderror.ErrConfig, "test case %d", i)
	}
}

type fakeKV struct {
	value []byte
	err   error
}

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := &clientv3.GetResponse{}
	if f.value != nil {
		resp.Kvs = []*mvccpb.KeyValue{{Key: []byte(key), Value: f.value}}
	}
	return resp, nil
}

func TestLoadPartitionMapFromEtcd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := &PartitionMapCfg{Source: EtcdSource, EtcdEndpoints: []string{"localhost:2379"}, EtcdKey: "/fedrouter/map", Version: "7"}
	doc := `{"version":"7","domain_min":2022,"domain_max":2025,"ranges":[{"id":"a","lower_bound":2022,"upper_bound":2025,"store":"s"}]}`

	loaded, err := src.loadFrom(ctx, &fakeKV{value: []byte(doc)})
	require.NoError(t, err)
	assert.Equal(InlineSource, loaded.Source)
	assert.Len(loaded.Ranges, 1)
	pm, err := loaded.Build([]string{"s"})
	assert.NoError(err)
	assert.Equal("7", pm.Version())

	_, err = src.loadFrom(ctx, &fakeKV{})
	assert.ErrorIs(err, fderror.ErrConfig)

	_, err = src.loadFrom(ctx, &fakeKV{value: []byte(`{"version":"6"}`)})
	assert.ErrorIs(err, fderror.ErrConfig)

	_, err = src.loadFrom(ctx, &fakeKV{value: []byte(`not json`)})
	assert.ErrorIs(err, fderror.ErrConfig)

	inline := &PartitionMapCfg{}
	same, err := inline.ResolvePartitionMap(ctx)
	assert.NoError(err)
	assert.Same(inline, same)
}
