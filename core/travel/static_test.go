package travel

import (
	"context"
	"errors"
	"testing"

	"github.com/kilianp07/crewsched/core/factory"
	"github.com/kilianp07/crewsched/core/model"
)

func TestStaticProviderRoutes(t *testing.T) {
	p, err := NewStaticProvider(StaticConfig{
		Routes:    []Route{{From: "Depot", To: "1 Main St", Minutes: 20}},
		Symmetric: true,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m, err := p.Lookup(context.Background(), "depot", "1 main st")
	if err != nil || m != 20 {
		t.Fatalf("forward: %v %v", m, err)
	}
	m, err = p.Lookup(context.Background(), "1 Main St", "Depot")
	if err != nil || m != 20 {
		t.Fatalf("reverse: %v %v", m, err)
	}
	if _, err := p.Lookup(context.Background(), "Depot", "elsewhere"); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute got %v", err)
	}
}

func TestStaticProviderFallbackAndValidation(t *testing.T) {
	p, err := NewStaticProvider(StaticConfig{DefaultMinutes: 30})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if m, _ := p.Lookup(context.Background(), "a", "b"); m != 30 {
		t.Fatalf("expected fallback 30 got %v", m)
	}
	if _, err := NewStaticProvider(StaticConfig{Routes: []Route{{From: "a", To: "b", Minutes: -1}}}); err == nil {
		t.Fatal("expected negative duration error")
	}
	if _, err := NewStaticProvider(StaticConfig{Routes: []Route{{From: "a"}}}); err == nil {
		t.Fatal("expected missing end error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Lookup(ctx, "a", "b"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNewProviderFromConfig(t *testing.T) {
	p, err := NewProvider(factory.ModuleConfig{
		Type: "static",
		Conf: map[string]any{
			"symmetric": true,
			"routes": []any{
				map[string]any{"from": "hq", "to": "site", "minutes": "15"},
			},
		},
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if m, err := p.Lookup(context.Background(), "site", "hq"); err != nil || m != 15 {
		t.Fatalf("unexpected %v %v", m, err)
	}
	if _, err := NewProvider(factory.ModuleConfig{Type: "carrier-pigeon"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestDurationsTable(t *testing.T) {
	d := Durations{}
	d.Set("a", "b", 12)
	d.SetUnknown("b", "c")
	cases := []struct {
		o, dst model.Address
		state  State
	}{
		{"A ", "b", Known},
		{"b", "c", Unknown},
		{"c", "a", Pending},
		{"a", "a", Known},
		{"", "a", Unknown},
	}
	for _, c := range cases {
		if _, s := d.Cached(c.o, c.dst); s != c.state {
			t.Errorf("%q->%q: expected %s got %s", c.o, c.dst, c.state, s)
		}
	}
}
