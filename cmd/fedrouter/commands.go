package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pg-sharding/fedrouter/pkg/config"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/pg-sharding/fedrouter/pkg/models/record"
	"github.com/pg-sharding/fedrouter/router/api"
	"github.com/pg-sharding/fedrouter/router/metrics"
	"github.com/pg-sharding/fedrouter/router/prouter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const defaultHttpAddr = ":8080"

var (
	keyYear  int64
	keyFrom  int64
	keyTo    int64
	groupBy  string
	sumField string
	httpAddr string
)

// keyFilter builds a filter from the key flags that were set and the
// field=value arguments.
func keyFilter(cmd *cobra.Command, args []string) (*prouter.Filter, error) {
	eq, err := parseAssignments(args)
	if err != nil {
		return nil, err
	}
	f := &prouter.Filter{Equals: eq}
	if cmd.Flags().Changed("year") {
		y := keyYear
		f.KeyFrom, f.KeyTo = &y, &y
		return f, nil
	}
	if cmd.Flags().Changed("from") {
		from := keyFrom
		f.KeyFrom = &from
	}
	if cmd.Flags().Changed("to") {
		to := keyTo
		f.KeyTo = &to
	}
	return f, nil
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&keyYear, "year", 0, "only rows of this partition key")
	cmd.Flags().Int64Var(&keyFrom, "from", 0, "lowest partition key, inclusive")
	cmd.Flags().Int64Var(&keyTo, "to", 0, "highest partition key, inclusive")
	cmd.MarkFlagsMutuallyExclusive("year", "from")
	cmd.MarkFlagsMutuallyExclusive("year", "to")
}

var insertCmd = &cobra.Command{
	Use:   "insert <dataset> field=value...",
	Short: "insert one record into the store owning its partition key",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.router.Insert(cmd.Context(), args[0], rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted %d row(s) into store %s\n", res.Affected, res.Store)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <dataset> [field=value...]",
	Short: "read records from every store and print the merged result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := keyFilter(cmd, args[1:])
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		schema, err := s.router.Schema(args[0])
		if err != nil {
			return err
		}
		rs, err := s.router.Query(cmd.Context(), args[0], f)
		if err = reportPartial(cmd.ErrOrStderr(), err); err != nil {
			return err
		}
		writeRecords(cmd.OutOrStdout(), schema, rs)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <dataset> [field=value...]",
	Short: "count rows per group across every store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := keyFilter(cmd, args[1:])
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		as, err := s.router.Aggregate(cmd.Context(), args[0], groupBy, sumField, f)
		if err = reportPartial(cmd.ErrOrStderr(), err); err != nil {
			return err
		}
		writeAggregate(cmd.OutOrStdout(), as)
		return nil
	},
}

var totalsCmd = &cobra.Command{
	Use:   "totals <dataset>",
	Short: "print row count and sum over every store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		as, err := s.router.Totals(cmd.Context(), args[0], sumField)
		if err = reportPartial(cmd.ErrOrStderr(), err); err != nil {
			return err
		}
		writeAggregate(cmd.OutOrStdout(), as)
		return nil
	},
}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "print the partition map",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		writePartitionMap(cmd.OutOrStdout(), s.router.PartitionMap())
		return nil
	},
}

var demoSales = []record.Record{
	{"sale_date": "2024-12-31", "amount": "1500"},
	{"sale_date": "2025-01-15", "amount": "2500"},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "insert two sales on both sides of a year boundary and read them back",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		for _, rec := range demoSales {
			res, err := s.router.Insert(ctx, record.SalesDataset, rec)
			if err != nil {
				return errors.Wrapf(err, "insert %s", rec)
			}
			fmt.Fprintf(out, "%s -> %s\n", rec, res.Store)
		}

		schema, err := s.router.Schema(record.SalesDataset)
		if err != nil {
			return err
		}
		rs, err := s.router.Query(ctx, record.SalesDataset, nil)
		if err = reportPartial(cmd.ErrOrStderr(), err); err != nil {
			return err
		}
		writeRecords(out, schema, rs)

		as, err := s.router.Totals(ctx, record.SalesDataset, "amount")
		if err = reportPartial(cmd.ErrOrStderr(), err); err != nil {
			return err
		}
		writeAggregate(out, as)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancelCtx := context.WithCancel(cmd.Context())
		defer cancelCtx()

		s, err := openSession(ctx)
		if err != nil {
			return errors.Wrap(err, "router failed to start")
		}
		defer s.Close()

		addr := httpAddr
		if addr == "" {
			addr = config.RouterConfig().HttpAddr
		}
		if addr == "" {
			addr = defaultHttpAddr
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			defer signal.Stop(sigs)
			select {
			case sig := <-sigs:
				fedlog.Zero.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
				cancelCtx()
			case <-ctx.Done():
			}
		}()

		fedlog.Zero.Info().Str("addr", addr).Str("datasets", strings.Join(s.router.Datasets(), ",")).Msg("serving HTTP API")
		return metrics.Serve(ctx, addr, api.Handler(s.router))
	},
}

func init() {
	addKeyFlags(queryCmd)
	addKeyFlags(statsCmd)
	statsCmd.Flags().StringVar(&groupBy, "group-by", "", "field to group by")
	statsCmd.Flags().StringVar(&sumField, "sum", "", "numeric field to sum")
	totalsCmd.Flags().StringVar(&sumField, "sum", "", "numeric field to sum")
	serveCmd.Flags().StringVar(&httpAddr, "addr", "", "listen address, overrides http_addr from the config file")
}
