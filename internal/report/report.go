// Package report renders valuation traces as the human-readable lines operators read in
// terminals and logs.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"pathval/internal/infra/log"
	"pathval/internal/valuation"
)

// Number formats v with the shortest representation that round-trips.
func Number(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Header is the opening line of a rendered trace.
func Header(t valuation.Trace) string {
	return fmt.Sprintf("Starting with %s in %s", Number(t.StartAmount), t.Start)
}

// HopLine renders one hop. Capped traces note the traded volume.
func HopLine(t valuation.Trace, h valuation.Hop) string {
	line := fmt.Sprintf("%s to %s at %s = %s", h.From, h.To, Number(h.Rate), Number(h.Amount))
	if t.Capped {
		line += fmt.Sprintf(" with %s of %s traded", Number(h.Volume), h.From)
	}
	return line
}

// Lines returns the header followed by one line per hop; nil for an empty trace.
func Lines(t valuation.Trace) []string {
	if t.Empty() {
		return nil
	}
	out := make([]string, 0, len(t.Hops)+1)
	out = append(out, Header(t))
	for _, h := range t.Hops {
		out = append(out, HopLine(t, h))
	}
	return out
}

// Write prints the trace to w, one line each.
func Write(w io.Writer, t valuation.Trace) error {
	for _, l := range Lines(t) {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// MultiOptions controls the multi-exchange rendering.
type MultiOptions struct {
	// Shorten drops the " on <exchange> for <market>" suffix.
	Shorten bool
}

// RenderMulti renders the trace with the exchange and market of every hop.
func RenderMulti(t valuation.Trace, opts MultiOptions) string {
	if t.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(Header(t))
	b.WriteByte('\n')
	for _, h := range t.Hops {
		b.WriteString(HopLine(t, h))
		if !opts.Shorten {
			fmt.Fprintf(&b, " on %s for %s", h.Exchange, h.Market)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteMulti renders like RenderMulti, writes the text to w when w is non-nil, and returns it.
func WriteMulti(w io.Writer, t valuation.Trace, opts MultiOptions) (string, error) {
	s := RenderMulti(t, opts)
	if w == nil || s == "" {
		return s, nil
	}
	_, err := io.WriteString(w, s)
	return s, err
}

// Log emits every rendered line as a record at level, prefixed with tags.
func Log(l *log.TagLogger, level zerolog.Level, t valuation.Trace, tags ...log.Tag) {
	for _, line := range Lines(t) {
		l.Log(level, line, tags...)
	}
}
