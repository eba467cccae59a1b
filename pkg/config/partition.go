package config

import (
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/kr"
)

type PartitionMapSource string

const (
	InlineSource = PartitionMapSource("inline")
	EtcdSource   = PartitionMapSource("etcd")
)

type KeyRangeCfg struct {
	ID         string `json:"id" toml:"id" yaml:"id"`
	LowerBound int64  `json:"lower_bound" toml:"lower_bound" yaml:"lower_bound"`
	UpperBound int64  `json:"upper_bound" toml:"upper_bound" yaml:"upper_bound"`
	Store      string `json:"store" toml:"store" yaml:"store"`
}

// PartitionMapCfg is the versioned, static mapping of key ranges to stores.
// With the etcd source the whole document is read once at startup from
// EtcdKey; it is never watched.
type PartitionMapCfg struct {
	Version string             `json:"version" toml:"version" yaml:"version"`
	Source  PartitionMapSource `json:"source" toml:"source" yaml:"source"`

	EtcdEndpoints []string `json:"etcd_endpoints" toml:"etcd_endpoints" yaml:"etcd_endpoints"`
	EtcdKey       string   `json:"etcd_key" toml:"etcd_key" yaml:"etcd_key"`

	DomainMin int64         `json:"domain_min" toml:"domain_min" yaml:"domain_min"`
	DomainMax int64         `json:"domain_max" toml:"domain_max" yaml:"domain_max"`
	Ranges    []KeyRangeCfg `json:"ranges" toml:"ranges" yaml:"ranges"`
}

func (p *PartitionMapCfg) Validate() error {
	switch p.Source {
	case "", InlineSource:
		if len(p.Ranges) == 0 {
			return fderror.New(fderror.FDR_CONFIG, "partition map has no ranges")
		}
	case EtcdSource:
		if len(p.EtcdEndpoints) == 0 || p.EtcdKey == "" {
			return fderror.New(fderror.FDR_CONFIG, "etcd partition map source needs etcd_endpoints and etcd_key")
		}
	default:
		return fderror.Newf(fderror.FDR_CONFIG, "unknown partition map source %q", p.Source)
	}
	return nil
}

// Build validates the inline ranges and returns the partition map. Every
// range must point to one of stores.
func (p *PartitionMapCfg) Build(stores []string) (*kr.PartitionMap, error) {
	ranges := make([]*kr.KeyRange, len(p.Ranges))
	for i, r := range p.Ranges {
		ranges[i] = &kr.KeyRange{
			ID:         r.ID,
			LowerBound: r.LowerBound,
			UpperBound: r.UpperBound,
			StoreID:    r.Store,
		}
	}
	return kr.NewPartitionMap(p.Version, p.DomainMin, p.DomainMax, ranges, stores)
}
