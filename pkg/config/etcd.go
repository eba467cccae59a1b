package config

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdDialTimeout = 5 * time.Second

// kvGetter is the part of the etcd KV API the loader needs.
type kvGetter interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

// ResolvePartitionMap returns the effective inline partition map. For the
// etcd source the document stored under EtcdKey replaces the inline ranges;
// the configured version must match the stored one when both are set.
func (p *PartitionMapCfg) ResolvePartitionMap(ctx context.Context) (*PartitionMapCfg, error) {
	if p.Source != EtcdSource {
		return p, nil
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   p.EtcdEndpoints,
		DialTimeout: etcdDialTimeout,
	})
	if err != nil {
		return nil, fderror.Newf(fderror.FDR_CONFIG, "connect to etcd %v: %v", p.EtcdEndpoints, err)
	}
	defer func() {
		if err := cli.Close(); err != nil {
			fedlog.Zero.Warn().Err(err).Msg("failed to close etcd client")
		}
	}()
	return p.loadFrom(ctx, cli)
}

func (p *PartitionMapCfg) loadFrom(ctx context.Context, kv kvGetter) (*PartitionMapCfg, error) {
	resp, err := kv.Get(ctx, p.EtcdKey)
	if err != nil {
		return nil, fderror.Newf(fderror.FDR_CONFIG, "read partition map %s: %v", p.EtcdKey, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fderror.Newf(fderror.FDR_CONFIG, "partition map key %s not found", p.EtcdKey)
	}

	var loaded PartitionMapCfg
	if err := json.Unmarshal(resp.Kvs[0].Value, &loaded); err != nil {
		return nil, fderror.Newf(fderror.FDR_CONFIG, "decode partition map %s: %v", p.EtcdKey, err)
	}
	if p.Version != "" && loaded.Version != p.Version {
		return nil, fderror.Newf(fderror.FDR_CONFIG, "partition map %s has version %q, expected %q", p.EtcdKey, loaded.Version, p.Version)
	}
	loaded.Source = InlineSource
	loaded.EtcdEndpoints = nil
	loaded.EtcdKey = ""

	fedlog.Zero.Info().
		Str("key", p.EtcdKey).
		Str("version", loaded.Version).
		Int("ranges", len(loaded.Ranges)).
		Msg("loaded partition map from etcd")
	return &loaded, nil
}
