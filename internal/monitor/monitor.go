// Package monitor re-values a configured set of paths against the latest graph snapshot on a
// fixed interval.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"pathval/internal/config"
	"pathval/internal/exchange"
	"pathval/internal/graph"
	"pathval/internal/infra/log"
	"pathval/internal/infra/metrics"
	"pathval/internal/report"
	"pathval/internal/valuation"
)

var ErrNoSnapshot = errors.New("no snapshot configured")

// Loader returns the graph to value against. graph.LoadFile is the default.
type Loader func(path string) (*graph.Graph, error)

type Monitor struct {
	cfg       config.Valuation
	logger    log.Logger
	tags      *log.TagLogger
	exchanges *exchange.Collection
	load      Loader
}

// Result is the outcome of valuing one configured path.
type Result struct {
	Name  string
	Trace valuation.Trace
	Err   error
}

func New(cfg config.Valuation, logger log.Logger) *Monitor {
	return &Monitor{
		cfg:       cfg,
		logger:    logger,
		tags:      log.NewTagLogger(logger),
		exchanges: exchange.NewCollection(cfg.Exchanges...),
		load:      graph.LoadFile,
	}
}

// WithLoader replaces the snapshot loader.
func (m *Monitor) WithLoader(l Loader) *Monitor {
	m.load = l
	return m
}

// Run values every path immediately and then on each interval until ctx is done.
// Snapshot failures are logged and retried on the next tick.
func (m *Monitor) Run(ctx context.Context) error {
	if m.cfg.Snapshot == "" {
		return ErrNoSnapshot
	}
	interval := time.Duration(m.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m.logger.Info().Str("snapshot", m.cfg.Snapshot).Int("paths", len(m.cfg.Paths)).Dur("interval", interval).Msg("path monitor started")

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := m.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.logger.Error().Err(err).Msg("monitor pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// RunOnce loads the snapshot and values every configured path.
func (m *Monitor) RunOnce(ctx context.Context) ([]Result, error) {
	start := time.Now()
	g, err := m.load(m.cfg.Snapshot)
	if err != nil {
		metrics.SnapshotLoadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	metrics.SnapshotLoadsTotal.WithLabelValues("ok").Inc()
	m.logger.Debug().Int("nodes", g.NodeCount()).Int("edges", g.EdgeCount()).Msg("snapshot loaded")

	results := make([]Result, 0, len(m.cfg.Paths))
	for _, pc := range m.cfg.Paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := m.value(g, pc)
		results = append(results, res)

		tags := []log.Tag{log.T("path", pc.Name), log.Labels(pc.Labels...)}
		if res.Err != nil {
			metrics.ObserveError(res.Err)
			m.tags.Warn(res.Err.Error(), tags...)
			continue
		}
		metrics.ObserveTrace(res.Trace)
		report.Log(m.tags, zerolog.DebugLevel, res.Trace, tags...)
		if d := res.Trace.Discarded(); d > 0 {
			m.tags.Debug(fmt.Sprintf("%s of %s above hop depth was not carried", report.Number(d), res.Trace.Start), tags...)
		}
	}
	m.rank(results)
	metrics.ObserveLatency(time.Since(start))
	return results, nil
}

func (m *Monitor) value(g *graph.Graph, pc config.Path) Result {
	opts := valuation.Options{
		StartingAmount: m.cfg.StartingAmount,
		Capped:         m.cfg.Depth,
		RoundTo:        m.cfg.RoundTo,
	}
	tr, err := valuation.Evaluate(g, PathFromConfig(pc), opts)
	if err != nil {
		return Result{Name: pc.Name, Err: err}
	}
	names := make([]string, 0, len(tr.Hops))
	for _, h := range tr.Hops {
		names = append(names, h.Exchange)
	}
	if err := m.exchanges.Check(names...); err != nil {
		return Result{Name: pc.Name, Err: err}
	}
	return Result{Name: pc.Name, Trace: tr}
}

// rank logs the best returns of the pass and updates the profitable path gauge.
func (m *Monitor) rank(results []Result) {
	ok := make([]Result, 0, len(results))
	profitable := 0
	for _, r := range results {
		if r.Err != nil || r.Trace.Empty() {
			continue
		}
		ok = append(ok, r)
		if r.Trace.Return() > 1 {
			profitable++
		}
	}
	metrics.ProfitablePaths.Set(float64(profitable))
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Trace.Return() > ok[j].Trace.Return() })
	n := m.cfg.TopN
	if n > len(ok) {
		n = len(ok)
	}
	for i := 0; i < n; i++ {
		tr := ok[i].Trace
		m.tags.Info(fmt.Sprintf("%s -> %s", report.Number(tr.StartAmount), report.Number(tr.Final)),
			log.T("rank", i+1), log.T("path", ok[i].Name), log.T("return", fmt.Sprintf("%.6f", tr.Return())))
	}
}

// PathFromConfig maps a configured path onto the valuation input; MaxVolume is encoded to
// log space when Minimum is absent.
func PathFromConfig(pc config.Path) valuation.Path {
	p := valuation.NewPath(pc.Loop...)
	switch {
	case pc.Minimum != nil:
		p.Minimum = pc.Minimum
	case pc.MaxVolume != nil:
		m := -math.Log(*pc.MaxVolume)
		p.Minimum = &m
	}
	return p
}
