package travel

import (
	"context"
	"errors"

	"github.com/kilianp07/crewsched/core/factory"
	"github.com/kilianp07/crewsched/core/model"
)

// ErrNoRoute is returned by providers that cannot determine a duration.
var ErrNoRoute = errors.New("travel: no route")

// Provider performs a single best-effort point-to-point lookup. Only the
// Resolver calls it.
type Provider interface {
	Lookup(ctx context.Context, origin, destination model.Address) (minutes float64, err error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, origin, destination model.Address) (float64, error)

// Lookup implements Provider.
func (f ProviderFunc) Lookup(ctx context.Context, origin, destination model.Address) (float64, error) {
	return f(ctx, origin, destination)
}

var providerRegistry = factory.NewRegistry[Provider]()

// RegisterProvider adds a provider factory identified by name.
func RegisterProvider(name string, f factory.Factory[Provider]) error {
	return providerRegistry.Register(name, f)
}

// NewProvider builds the provider described by cfg.
func NewProvider(cfg factory.ModuleConfig) (Provider, error) {
	return providerRegistry.Create(cfg)
}
