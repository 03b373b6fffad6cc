package monitor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathval/internal/config"
	"pathval/internal/exchange"
	"pathval/internal/graph"
	"pathval/internal/infra/metrics"
	"pathval/internal/valuation"
)

func loopGraph(t *testing.T) *graph.Graph {
	t.Helper()
	d := -math.Log(1000)
	g := graph.New()
	for _, e := range []graph.Edge{
		{From: "USD", To: "EUR", Weight: -math.Log(0.9), Depth: &d, Exchange: "kraken", Market: "EUR/USD"},
		{From: "EUR", To: "GBP", Weight: -math.Log(0.9), Depth: &d, Exchange: "kraken", Market: "GBP/EUR"},
		{From: "GBP", To: "USD", Weight: -math.Log(1.3), Depth: &d, Exchange: "bitstamp", Market: "GBP/USD"},
		{From: "EUR", To: "USD", Weight: -math.Log(1.05), Depth: &d, Exchange: "kraken", Market: "EUR/USD"},
	} {
		require.NoError(t, g.AddEdge(e))
	}
	return g
}

func testConfig() config.Valuation {
	return config.Valuation{
		Snapshot:        "mem",
		StartingAmount:  100,
		IntervalSeconds: 1,
		TopN:            2,
		Paths: []config.Path{
			{Name: "tri", Loop: []string{"USD", "EUR", "GBP", "USD"}, Labels: []string{"fx"}},
			{Name: "pair", Loop: []string{"USD", "EUR", "USD"}},
			{Name: "broken", Loop: []string{"USD", "JPY"}},
		},
	}
}

func TestRunOnceValuesEveryPath(t *testing.T) {
	g := loopGraph(t)
	m := New(testConfig(), zerolog.Nop()).WithLoader(func(string) (*graph.Graph, error) { return g, nil })

	before := testutil.ToFloat64(metrics.EvaluationErrors.WithLabelValues("missing_edge"))
	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.Equal(t, "tri", res[0].Name)
	require.NoError(t, res[0].Err)
	assert.InDelta(t, 100*0.9*0.9*1.3, res[0].Trace.Final, 1e-9)

	require.NoError(t, res[1].Err)
	assert.InDelta(t, 100*0.9*1.05, res[1].Trace.Final, 1e-9)

	var edgeErr *valuation.EdgeError
	require.ErrorAs(t, res[2].Err, &edgeErr)
	assert.Equal(t, "JPY", edgeErr.To)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EvaluationErrors.WithLabelValues("missing_edge")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ProfitablePaths))
}

func TestRunOnceCappedUsesMaxVolume(t *testing.T) {
	cfg := testConfig()
	cfg.Depth = true
	mv := 40.0
	cfg.Paths = []config.Path{{Name: "pair", Loop: []string{"USD", "EUR", "USD"}, MaxVolume: &mv}}
	g := loopGraph(t)
	m := New(cfg, zerolog.Nop()).WithLoader(func(string) (*graph.Graph, error) { return g, nil })

	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, res[0].Err)
	assert.InDelta(t, 40, res[0].Trace.StartAmount, 1e-9)
	assert.InDelta(t, 40*0.9*1.05, res[0].Trace.Final, 1e-9)
}

func TestRunOnceRejectsUnknownExchange(t *testing.T) {
	cfg := testConfig()
	cfg.Exchanges = []string{"Kraken"}
	cfg.Paths = cfg.Paths[:1]
	g := loopGraph(t)
	m := New(cfg, zerolog.Nop()).WithLoader(func(string) (*graph.Graph, error) { return g, nil })

	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	var nic *exchange.NotInCollectionError
	require.ErrorAs(t, res[0].Err, &nic)
	assert.Equal(t, "bitstamp", nic.Exchange)
}

func TestRunOnceSnapshotFailure(t *testing.T) {
	m := New(testConfig(), zerolog.Nop()).WithLoader(func(string) (*graph.Graph, error) { return nil, errors.New("gone") })
	before := testutil.ToFloat64(metrics.SnapshotLoadsTotal.WithLabelValues("error"))

	_, err := m.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load snapshot")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SnapshotLoadsTotal.WithLabelValues("error")))
}

func TestRunStopsOnCancel(t *testing.T) {
	g := loopGraph(t)
	calls := make(chan struct{}, 8)
	m := New(testConfig(), zerolog.Nop()).WithLoader(func(string) (*graph.Graph, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return g, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not run")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestRunWithoutSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Snapshot = ""
	assert.ErrorIs(t, New(cfg, zerolog.Nop()).Run(context.Background()), ErrNoSnapshot)
}

func TestPathFromConfig(t *testing.T) {
	minimum := -math.Log(10)
	mv := 20.0
	p := PathFromConfig(config.Path{Loop: []string{"A", "B"}, Minimum: &minimum, MaxVolume: &mv})
	require.NotNil(t, p.Minimum)
	assert.Equal(t, minimum, *p.Minimum)

	p = PathFromConfig(config.Path{Loop: []string{"A", "B"}, MaxVolume: &mv})
	require.NotNil(t, p.Minimum)
	assert.InDelta(t, -math.Log(20), *p.Minimum, 1e-12)

	assert.Nil(t, PathFromConfig(config.Path{Loop: []string{"A", "B"}}).Minimum)
}
