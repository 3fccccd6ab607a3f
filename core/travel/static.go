package travel

import (
	"context"
	"fmt"

	"github.com/kilianp07/crewsched/core/factory"
	"github.com/kilianp07/crewsched/core/model"
)

// Route is one configured origin/destination duration.
type Route struct {
	From    string  `json:"from" yaml:"from"`
	To      string  `json:"to" yaml:"to"`
	Minutes float64 `json:"minutes" yaml:"minutes"`
}

// StaticConfig configures a StaticProvider.
type StaticConfig struct {
	Routes []Route `json:"routes" yaml:"routes"`
	// Symmetric makes every route usable in both directions.
	Symmetric bool `json:"symmetric" yaml:"symmetric"`
	// DefaultMinutes answers pairs missing from Routes when positive.
	DefaultMinutes float64 `json:"default_minutes" yaml:"default_minutes"`
}

// StaticProvider answers lookups from a fixed route table.
type StaticProvider struct {
	routes   map[PairKey]float64
	fallback float64
}

// NewStaticProvider builds a provider from cfg. Routes with a negative
// duration or a blank end are rejected.
func NewStaticProvider(cfg StaticConfig) (*StaticProvider, error) {
	p := &StaticProvider{routes: make(map[PairKey]float64, len(cfg.Routes)), fallback: cfg.DefaultMinutes}
	for i, r := range cfg.Routes {
		k, ok := NewPairKey(model.Address(r.From), model.Address(r.To))
		if !ok {
			return nil, fmt.Errorf("travel: routes[%d]: from and to are required", i)
		}
		if r.Minutes < 0 {
			return nil, fmt.Errorf("travel: routes[%d]: negative duration", i)
		}
		p.routes[k] = r.Minutes
		if cfg.Symmetric {
			rev := PairKey{Origin: k.Destination, Destination: k.Origin}
			if _, exists := p.routes[rev]; !exists {
				p.routes[rev] = r.Minutes
			}
		}
	}
	return p, nil
}

// Lookup implements Provider.
func (p *StaticProvider) Lookup(ctx context.Context, origin, destination model.Address) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	k, ok := NewPairKey(origin, destination)
	if !ok {
		return 0, ErrNoRoute
	}
	if m, ok := p.routes[k]; ok {
		return m, nil
	}
	if p.fallback > 0 {
		return p.fallback, nil
	}
	return 0, ErrNoRoute
}

func init() {
	_ = RegisterProvider("static", func(conf map[string]any) (Provider, error) {
		var c StaticConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewStaticProvider(c)
	})
}
