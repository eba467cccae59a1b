package config

import (
	"encoding/json"
	"os"

	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
)

type Router struct {
	LogLevel string `json:"log_level" toml:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" toml:"log_file" yaml:"log_file"`

	// Datasets served by the router. Empty means every built-in dataset.
	Datasets []string `json:"datasets" toml:"datasets" yaml:"datasets"`

	PartitionMap PartitionMapCfg `json:"partition_map" toml:"partition_map" yaml:"partition_map"`
	Stores       []*Store        `json:"stores" toml:"stores" yaml:"stores"`

	HttpAddr     string    `json:"http_addr" toml:"http_addr" yaml:"http_addr"`
	JaegerConfig JaegerCfg `json:"jaeger" toml:"jaeger" yaml:"jaeger"`
}

type JaegerCfg struct {
	JaegerUrl   string `json:"jaeger_url" toml:"jaeger_url" yaml:"jaeger_url"`
	ServiceName string `json:"service_name" toml:"service_name" yaml:"service_name"`
}

var cfgRouter Router

// LoadRouterCfg loads the router configuration from cfgPath, applies
// environment overrides and validates it.
//
// Returns the JSON dump of the effective configuration, with passwords
// masked.
func LoadRouterCfg(cfgPath string) (string, error) {
	var rcfg Router
	file, err := os.Open(cfgPath)
	if err != nil {
		return "", err
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			fedlog.Zero.Error().Err(err).Msg("failed to close config file")
		}
	}(file)

	if err := initConfig(file, &rcfg); err != nil {
		return "", fderror.Newf(fderror.FDR_CONFIG, "decode %s: %v", cfgPath, err)
	}
	rcfg.ApplyEnv(os.LookupEnv)
	if err := rcfg.Validate(); err != nil {
		return "", err
	}

	cfgRouter = rcfg
	return cfgRouter.Dump()
}

// RouterConfig returns the loaded router configuration.
func RouterConfig() *Router {
	return &cfgRouter
}

// SetRouterConfig replaces the loaded configuration.
func SetRouterConfig(rcfg *Router) {
	cfgRouter = *rcfg
}

func (r *Router) Dump() (string, error) {
	masked := *r
	masked.Stores = make([]*Store, len(r.Stores))
	for i, s := range r.Stores {
		cp := *s
		if cp.Password != "" {
			cp.Password = "****"
		}
		masked.Stores[i] = &cp
	}
	configBytes, err := json.MarshalIndent(&masked, "", "  ")
	if err != nil {
		return "", err
	}
	return string(configBytes), nil
}

// ApplyEnv fills store connection parameters from the environment.
func (r *Router) ApplyEnv(lookup func(string) (string, bool)) {
	for _, s := range r.Stores {
		s.applyEnv(lookup)
	}
}

// DatasetNames returns the configured datasets or every built-in one.
func (r *Router) DatasetNames() []string {
	if len(r.Datasets) == 0 {
		return record.BuiltinNames()
	}
	return r.Datasets
}

func (r *Router) StoreNames() []string {
	res := make([]string, len(r.Stores))
	for i, s := range r.Stores {
		res[i] = s.Name
	}
	return res
}

func (r *Router) Store(name string) (*Store, bool) {
	for _, s := range r.Stores {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Validate checks the configuration without touching any store.
func (r *Router) Validate() error {
	if len(r.Stores) == 0 {
		return fderror.New(fderror.FDR_CONFIG, "no stores configured")
	}
	names := map[string]struct{}{}
	for _, s := range r.Stores {
		if s == nil {
			return fderror.New(fderror.FDR_CONFIG, "empty store entry")
		}
		if _, ok := names[s.Name]; ok {
			return fderror.Newf(fderror.FDR_CONFIG, "duplicate store %q", s.Name)
		}
		names[s.Name] = struct{}{}
		if err := s.Validate(r.DatasetNames()); err != nil {
			return err
		}
	}
	for _, ds := range r.DatasetNames() {
		if _, ok := record.Lookup(ds); !ok {
			return fderror.Newf(fderror.FDR_CONFIG, "unknown dataset %q", ds)
		}
	}
	return r.PartitionMap.Validate()
}
