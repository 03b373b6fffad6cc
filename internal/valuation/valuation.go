// Package valuation walks a candidate conversion path over a log-space rate graph and reports
// what a starting amount becomes at every hop, optionally capped by per-edge depth.
package valuation

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"pathval/internal/graph"
)

// EdgeSource is the read side of a rate graph.
type EdgeSource interface {
	Edge(from, to string) (graph.Edge, bool)
}

// Path is an ordered node sequence. Minimum is -ln(max amount of the first asset that can flow
// through the whole loop) and is required for capped evaluation.
type Path struct {
	Loop    []string
	Minimum *float64
}

func NewPath(nodes ...string) Path { return Path{Loop: nodes} }

// DepthPath builds a path carrying its loop-wide volume ceiling.
func DepthPath(minimum float64, nodes ...string) Path {
	return Path{Loop: nodes, Minimum: &minimum}
}

type Options struct {
	StartingAmount float64
	Capped         bool
	// RoundTo rounds the reported rate and amount of each hop; the walk itself always carries
	// full precision, as do Volume and Excess. nil reports full precision.
	RoundTo *int
	// RequireMarkets makes a hop without exchange or market names an error.
	RequireMarkets bool
}

// Precision is a helper for Options.RoundTo.
func Precision(digits int) *int { return &digits }

type Hop struct {
	From     string
	To       string
	Exchange string
	Market   string
	Weight   float64
	Rate     float64
	// Volume is what was traded at this hop and Excess what was held above it. Capped mode only.
	Volume float64
	Excess float64
	Amount float64
}

type Trace struct {
	Start       string
	StartAmount float64
	Capped      bool
	Hops        []Hop
	// Final is the unrounded amount after the last hop.
	Final float64
}

func (t Trace) Empty() bool { return len(t.Hops) == 0 }

// LogReturn is the summed weight of the traversed edges; negative means the path gains.
func (t Trace) LogReturn() float64 {
	w := make([]float64, len(t.Hops))
	for i, h := range t.Hops {
		w[i] = h.Weight
	}
	return floats.Sum(w)
}

// Return is Final relative to the amount the walk started with.
func (t Trace) Return() float64 {
	if t.Empty() || t.StartAmount == 0 {
		return 0
	}
	return t.Final / t.StartAmount
}

// Discarded sums the excess dropped at capped hops.
func (t Trace) Discarded() float64 {
	var sum float64
	for _, h := range t.Hops {
		sum += h.Excess
	}
	return sum
}

// Evaluate values p over g. A path with fewer than two nodes yields an empty trace and no error.
func Evaluate(g EdgeSource, p Path, opts Options) (Trace, error) {
	if len(p.Loop) < 2 {
		return Trace{}, nil
	}
	amount := opts.StartingAmount
	if !(amount > 0) || math.IsInf(amount, 1) {
		return Trace{}, fmt.Errorf("starting amount %v: %w", amount, ErrPrecondition)
	}
	if opts.RoundTo != nil && *opts.RoundTo < 0 {
		return Trace{}, fmt.Errorf("round_to %d: %w", *opts.RoundTo, ErrPrecondition)
	}
	if opts.Capped {
		if p.Minimum == nil {
			return Trace{}, &AttributeError{Attribute: "minimum"}
		}
		if math.IsNaN(*p.Minimum) {
			return Trace{}, fmt.Errorf("minimum is NaN: %w", ErrPrecondition)
		}
		amount = math.Min(amount, math.Exp(-*p.Minimum))
	}

	t := Trace{
		Start:       p.Loop[0],
		StartAmount: amount,
		Capped:      opts.Capped,
		Hops:        make([]Hop, 0, len(p.Loop)-1),
	}
	for i := 0; i+1 < len(p.Loop); i++ {
		from, to := p.Loop[i], p.Loop[i+1]
		e, ok := g.Edge(from, to)
		if !ok {
			return Trace{}, &EdgeError{From: from, To: to}
		}
		if opts.RequireMarkets {
			if e.Exchange == "" {
				return Trace{}, &AttributeError{From: from, To: to, Attribute: "exchange_name"}
			}
			if e.Market == "" {
				return Trace{}, &AttributeError{From: from, To: to, Attribute: "market_name"}
			}
		}
		rate := math.Exp(-e.Weight)
		h := Hop{From: from, To: to, Exchange: e.Exchange, Market: e.Market, Weight: e.Weight}
		if opts.Capped {
			maxVolume, ok := e.MaxVolume()
			if !ok {
				return Trace{}, &AttributeError{From: from, To: to, Attribute: "depth"}
			}
			h.Volume = math.Min(amount, maxVolume)
			h.Excess = amount - h.Volume
			amount = rate * h.Volume
		} else {
			amount *= rate
		}
		h.Rate, h.Amount = rate, amount
		if opts.RoundTo != nil {
			h.Rate = round(rate, *opts.RoundTo)
			h.Amount = round(amount, *opts.RoundTo)
		}
		t.Hops = append(t.Hops, h)
	}
	t.Final = amount
	return t, nil
}

// round rounds to the nearest value with the given decimal digits, ties to even on the exact
// binary value.
func round(v float64, digits int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', digits, 64), 64)
	if err != nil {
		return v
	}
	return r
}
