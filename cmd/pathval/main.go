// Command pathval values conversion paths over a rate graph snapshot, once from the command line
// or continuously as a service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pathval/internal/api/rest"
	"pathval/internal/config"
	"pathval/internal/exchange"
	"pathval/internal/graph"
	"pathval/internal/infra/log"
	"pathval/internal/infra/metrics"
	"pathval/internal/infra/netutil"
	"pathval/internal/infra/runner"
	"pathval/internal/monitor"
	"pathval/internal/report"
	"pathval/internal/valuation"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pathval",
		Short:         "Value conversion paths over a log-space rate graph",
		Version:       rest.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newEvalCmd(), newWatchCmd(), newVersionCmd())
	return root
}

type evalOptions struct {
	snapshot       string
	path           []string
	amount         float64
	round          int
	depth          bool
	minimum        float64
	maxVolume      float64
	multi          bool
	shorten        bool
	exchanges      []string
	requireMarkets bool
}

func newEvalCmd() *cobra.Command {
	var o evalOptions
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Value one path against a snapshot and print every hop",
		Long: `Value one path against a snapshot and print every hop.

Examples:
  pathval eval --snapshot rates.yaml --path USD,EUR,GBP,USD
  pathval eval --snapshot rates.msgpack --path USD,EUR,USD --depth --max-volume 500
  pathval eval --snapshot rates.json --path BTC,ETH,BTC --multi --round 6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.snapshot, "snapshot", "", "graph snapshot file (.yaml, .json, .msgpack)")
	f.StringSliceVar(&o.path, "path", nil, "comma separated node sequence")
	f.Float64Var(&o.amount, "amount", 100, "starting amount of the first node")
	f.IntVar(&o.round, "round", -1, "decimal digits shown per hop, negative for full precision")
	f.BoolVar(&o.depth, "depth", false, "cap every hop by edge depth")
	f.Float64Var(&o.minimum, "minimum", 0, "-ln of the largest amount the whole path can carry")
	f.Float64Var(&o.maxVolume, "max-volume", 0, "largest amount the whole path can carry, ignored when --minimum is set")
	f.BoolVar(&o.multi, "multi", false, "show the exchange and market of every hop")
	f.BoolVar(&o.shorten, "shorten", false, "with --multi, drop the exchange and market suffix")
	f.StringSliceVar(&o.exchanges, "exchanges", nil, "exchanges hops may quote from, empty for any")
	f.BoolVar(&o.requireMarkets, "require-markets", false, "fail on hops without exchange and market names")
	_ = cmd.MarkFlagRequired("snapshot")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func runEval(cmd *cobra.Command, o evalOptions) error {
	g, err := graph.LoadFile(o.snapshot)
	if err != nil {
		return err
	}
	p := valuation.NewPath(o.path...)
	switch {
	case cmd.Flags().Changed("minimum"):
		p.Minimum = &o.minimum
	case cmd.Flags().Changed("max-volume"):
		if !(o.maxVolume > 0) {
			return fmt.Errorf("max-volume %v: %w", o.maxVolume, valuation.ErrPrecondition)
		}
		m := -math.Log(o.maxVolume)
		p.Minimum = &m
	}
	opts := valuation.Options{StartingAmount: o.amount, Capped: o.depth, RequireMarkets: o.requireMarkets}
	if o.round >= 0 {
		opts.RoundTo = valuation.Precision(o.round)
	}

	tr, err := valuation.Evaluate(g, p, opts)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(tr.Hops))
	for _, h := range tr.Hops {
		names = append(names, h.Exchange)
	}
	if err := exchange.NewCollection(o.exchanges...).Check(names...); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.multi {
		_, err = report.WriteMulti(out, tr, report.MultiOptions{Shorten: o.shorten})
	} else {
		err = report.Write(out, tr)
	}
	if err != nil {
		return err
	}
	return writeSummary(out, tr)
}

// writeSummary prints the final amount, green when the path gains and red when it loses.
func writeSummary(w io.Writer, tr valuation.Trace) error {
	if tr.Empty() {
		return nil
	}
	c := color.New(color.FgYellow)
	switch r := tr.Return(); {
	case r > 1:
		c = color.New(color.FgGreen)
	case r < 1:
		c = color.New(color.FgRed)
	}
	_, err := c.Fprintf(w, "Ending with %s in %s (return %.6f)\n",
		report.Number(tr.Final), tr.Hops[len(tr.Hops)-1].To, tr.Return())
	if err != nil {
		return err
	}
	if d := tr.Discarded(); d > 0 {
		_, err = fmt.Fprintf(w, "%s held above hop depth was not carried\n", report.Number(d))
	}
	return err
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-value the configured paths on an interval and serve metrics",
		Long: `Re-value the configured paths on an interval and serve metrics.

Configuration is read from the YAML file named by PATHVAL_CONFIG, a .env file
and PATHVAL_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context())
		},
	}
}

func runWatch(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	adminCIDRs, err := netutil.ParseCIDRs(cfg.Server.AdminAllowCIDRs)
	if err != nil {
		return err
	}
	logger := log.NewLogger(cfg)
	registry := metrics.Init(logger)

	parent, cancel := context.WithCancel(parent)
	defer cancel()
	g, ctx := runner.WithContext(parent)
	mon := monitor.New(cfg.Valuation, logger)
	monErrCh := g.Go(ctx, "monitor", mon.Run)

	var api *rest.Server
	var server *http.Server
	if cfg.Server.Enabled {
		api = rest.New(rest.Options{Logger: logger, Registry: registry, AdminCIDRs: adminCIDRs, Pprof: cfg.Server.Pprof})
		server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 2 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
			IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
		}
		g.Go(ctx, "http", func(context.Context) error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		api.SetReady(true)
	}
	logger.Info().Str("addr", cfg.Server.Addr).Bool("server", cfg.Server.Enabled).Msg("pathval started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	var runErr error
	select {
	case <-ctx.Done():
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
	case err := <-monErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("worker error")
			runErr = err
		}
	}

	if api != nil {
		api.SetReady(false)
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info().Msg("shutdown complete")
	return runErr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pathval %s (commit %s, built %s)\n", rest.Version, rest.Commit, rest.BuildTime)
		},
	}
}
