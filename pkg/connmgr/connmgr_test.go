package connmgr_test

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/config"
	"github.com/pg-sharding/fedrouter/pkg/connmgr"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/pg-sharding/fedrouter/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func schemas() map[string]*record.Schema {
	return map[string]*record.Schema{record.SalesDataset: record.Sales()}
}

func memCfg(name string) *config.Store {
	return &config.Store{
		Name:           name,
		Driver:         config.MemoryDriver,
		Preset:         config.PresetHistoricPostgres,
		ConnectRetries: 3,
		ConnectBackoff: time.Millisecond,
	}
}

func TestDescriptorFromCfg(t *testing.T) {
	assert := assert.New(t)

	desc, err := connmgr.DescriptorFromCfg(memCfg("historic"), []string{record.SalesDataset})
	require.NoError(t, err)
	tm, err := desc.Table(record.SalesDataset)
	require.NoError(t, err)
	assert.Equal("ventas_historicas", tm.Table)
	assert.Equal([]string{"venta_id", "fecha_venta", "monto"}, tm.PhysicalColumns())

	_, err = connmgr.DescriptorFromCfg(&config.Store{Name: "bare"}, []string{record.SalesDataset})
	assert.ErrorIs(err, fderror.ErrConfig)
}

func TestOpenStoreMemory(t *testing.T) {
	assert := assert.New(t)

	m := connmgr.NewManager(schemas(), nil)
	h, err := m.OpenStore(context.Background(), memCfg("historic"))
	require.NoError(t, err)
	assert.Equal("historic", h.Name())
	assert.NoError(h.Close())
}

func TestOpenStoreRetriesUnavailable(t *testing.T) {
	assert := assert.New(t)

	calls := atomic.NewInt32(0)
	m := connmgr.NewManager(schemas(), func(ctx context.Context, cfg *config.Store, desc *store.Descriptor, sch map[string]*record.Schema) (store.Conn, error) {
		if calls.Inc() < 3 {
			return nil, syscall.ECONNREFUSED
		}
		return connmgr.OpenConn(ctx, cfg, desc, sch)
	})

	h, err := m.OpenStore(context.Background(), memCfg("historic"))
	require.NoError(t, err)
	assert.Equal(int32(3), calls.Load())
	assert.NoError(h.Close())
}

func TestOpenStoreGivesUp(t *testing.T) {
	assert := assert.New(t)

	calls := atomic.NewInt32(0)
	m := connmgr.NewManager(schemas(), func(context.Context, *config.Store, *store.Descriptor, map[string]*record.Schema) (store.Conn, error) {
		calls.Inc()
		return nil, syscall.ECONNREFUSED
	})
	_, err := m.OpenStore(context.Background(), memCfg("historic"))
	assert.ErrorIs(err, fderror.ErrStoreUnavailable)
	assert.Equal(int32(4), calls.Load())
}

func TestOpenStoreDoesNotRetryRejection(t *testing.T) {
	assert := assert.New(t)

	calls := atomic.NewInt32(0)
	m := connmgr.NewManager(schemas(), func(context.Context, *config.Store, *store.Descriptor, map[string]*record.Schema) (store.Conn, error) {
		calls.Inc()
		return nil, &memstore.SchemaError{Table: "ventas_historicas"}
	})
	_, err := m.OpenStore(context.Background(), memCfg("historic"))
	assert.ErrorIs(err, fderror.ErrStoreRejected)
	assert.Equal(int32(1), calls.Load())
}

func TestOpenAll(t *testing.T) {
	assert := assert.New(t)

	m := connmgr.NewManager(schemas(), func(ctx context.Context, cfg *config.Store, desc *store.Descriptor, sch map[string]*record.Schema) (store.Conn, error) {
		if cfg.Name == "broken" {
			return nil, fderror.New(fderror.FDR_CONFIG, "bad credentials")
		}
		return connmgr.OpenConn(ctx, cfg, desc, sch)
	})

	handles, err := m.OpenAll(context.Background(), []*config.Store{memCfg("historic"), memCfg("current")})
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal("historic", handles[0].Name())
	assert.Equal("current", handles[1].Name())

	_, err = m.OpenAll(context.Background(), []*config.Store{memCfg("broken")})
	assert.ErrorIs(err, fderror.ErrConfig)
}
