package graph

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format selects the snapshot encoding.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

var (
	ErrUnknownFormat = errors.New("unknown snapshot format")
	ErrMissingRate   = errors.New("edge needs weight or rate")
	ErrInvalidRate   = errors.New("rate must be positive")
	ErrInvalidVolume = errors.New("max_volume must be positive")
)

// Snapshot is the serialized form of a rate graph produced by an upstream builder.
type Snapshot struct {
	Edges []SnapshotEdge `yaml:"edges" json:"edges" msgpack:"edges"`
}

// SnapshotEdge carries either log-space values (weight, depth) or plain ones (rate, max_volume).
// Log-space values win when both are present.
type SnapshotEdge struct {
	From      string   `yaml:"from" json:"from" msgpack:"from"`
	To        string   `yaml:"to" json:"to" msgpack:"to"`
	Weight    *float64 `yaml:"weight,omitempty" json:"weight,omitempty" msgpack:"weight,omitempty"`
	Rate      *float64 `yaml:"rate,omitempty" json:"rate,omitempty" msgpack:"rate,omitempty"`
	Depth     *float64 `yaml:"depth,omitempty" json:"depth,omitempty" msgpack:"depth,omitempty"`
	MaxVolume *float64 `yaml:"max_volume,omitempty" json:"max_volume,omitempty" msgpack:"max_volume,omitempty"`
	Exchange  string   `yaml:"exchange_name,omitempty" json:"exchange_name,omitempty" msgpack:"exchange_name,omitempty"`
	Market    string   `yaml:"market_name,omitempty" json:"market_name,omitempty" msgpack:"market_name,omitempty"`
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".mp":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

func Decode(format Format, data []byte) (Snapshot, error) {
	var s Snapshot
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	case FormatJSON:
		err = json.Unmarshal(data, &s)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &s)
	default:
		return s, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err != nil {
		return s, fmt.Errorf("decode %s snapshot: %w", format, err)
	}
	return s, nil
}

func Encode(format Format, s Snapshot) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(s)
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	case FormatMsgpack:
		return msgpack.Marshal(s)
	}
	return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
}

// Build converts the snapshot into a Graph.
func (s Snapshot) Build() (*Graph, error) {
	g := New()
	for i, se := range s.Edges {
		e, err := se.edge()
		if err != nil {
			return nil, fmt.Errorf("edge %d (%s -> %s): %w", i, se.From, se.To, err)
		}
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return g, nil
}

func (se SnapshotEdge) edge() (Edge, error) {
	e := Edge{From: se.From, To: se.To, Exchange: se.Exchange, Market: se.Market}
	switch {
	case se.Weight != nil:
		e.Weight = *se.Weight
	case se.Rate != nil:
		if *se.Rate <= 0 {
			return e, ErrInvalidRate
		}
		e.Weight = -math.Log(*se.Rate)
	default:
		return e, ErrMissingRate
	}
	switch {
	case se.Depth != nil:
		d := *se.Depth
		e.Depth = &d
	case se.MaxVolume != nil:
		if *se.MaxVolume <= 0 {
			return e, ErrInvalidVolume
		}
		d := -math.Log(*se.MaxVolume)
		e.Depth = &d
	}
	return e, nil
}

// LoadFile reads and builds a snapshot, choosing the codec from the extension.
func LoadFile(path string) (*Graph, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Decode(format, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s.Build()
}
