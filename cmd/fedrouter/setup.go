package main

import (
	"context"
	"io"
	"strings"

	"github.com/pg-sharding/fedrouter/pkg/config"
	"github.com/pg-sharding/fedrouter/pkg/connmgr"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/pkg/store"
	"github.com/pg-sharding/fedrouter/router/prouter"
	"github.com/pg-sharding/fedrouter/router/tracing"
	"github.com/pkg/errors"
)

// session is an open router plus what has to be released with it.
type session struct {
	router *prouter.Router
	tracer io.Closer
}

func (s *session) Close() {
	if err := s.router.Close(); err != nil {
		fedlog.Zero.Error().Err(err).Msg("failed to close router")
	}
	if err := s.tracer.Close(); err != nil {
		fedlog.Zero.Error().Err(err).Msg("failed to close tracer")
	}
}

// openSession loads the configuration, connects every store and builds the
// router.
func openSession(ctx context.Context) (*session, error) {
	dump, err := config.LoadRouterCfg(cfgPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	rcfg := config.RouterConfig()

	level := rcfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := fedlog.ReloadLogger(rcfg.LogFile, level); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	fedlog.Zero.Debug().Str("config", dump).Msg("loaded configuration")

	schemas := map[string]*record.Schema{}
	for _, ds := range rcfg.DatasetNames() {
		schema, ok := record.Lookup(ds)
		if !ok {
			return nil, fderror.Newf(fderror.FDR_CONFIG, "unknown dataset %q", ds)
		}
		schemas[ds] = schema
	}

	pmcfg, err := rcfg.PartitionMap.ResolvePartitionMap(ctx)
	if err != nil {
		return nil, err
	}
	pmap, err := pmcfg.Build(rcfg.StoreNames())
	if err != nil {
		return nil, err
	}

	tracer, err := tracing.InitJaegerTracer(rcfg.JaegerConfig)
	if err != nil {
		return nil, errors.Wrap(err, "init tracer")
	}

	handles, err := connmgr.NewManager(schemas, nil).OpenAll(ctx, rcfg.Stores)
	if err != nil {
		_ = tracer.Close()
		return nil, err
	}
	ifaces := make([]store.StoreHandle, len(handles))
	for i, h := range handles {
		ifaces[i] = h
	}
	r, err := prouter.NewRouter(pmap, schemas, ifaces)
	if err != nil {
		for _, h := range handles {
			_ = h.Close()
		}
		_ = tracer.Close()
		return nil, err
	}

	fedlog.Zero.Info().
		Str("partition map", pmap.Version()).
		Strs("stores", pmap.Stores()).
		Strs("datasets", r.Datasets()).
		Msg("router is ready")
	return &session{router: r, tracer: tracer}, nil
}

// parseAssignments turns field=value arguments into a record.
func parseAssignments(args []string) (record.Record, error) {
	rec := record.Record{}
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "argument %q is not field=value", a)
		}
		if _, dup := rec[name]; dup {
			return nil, fderror.Newf(fderror.FDR_VALIDATION, "field %q is given twice", name)
		}
		rec[name] = value
	}
	return rec, nil
}
