package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotkeeper/backend/internal/domain"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Provider is the capability set every calendar or video integration exposes.
// Implementations must not mutate the integration they are handed.
type Provider interface {
	Kind() domain.ProviderKind
	GetBusy(ctx context.Context, integ domain.Integration, start, end time.Time) ([]domain.BusyInterval, error)
	Create(ctx context.Context, integ domain.Integration, evt domain.CalendarEvent) (string, error)
	Update(ctx context.Context, integ domain.Integration, externalID string, evt domain.CalendarEvent) (string, error)
	Delete(ctx context.Context, integ domain.Integration, externalID string) error
}

// Registry dispatches on the integration's provider id and kind tag.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

func (r *Registry) Register(providerID string, p Provider) {
	r.providers[providerID] = p
}

func (r *Registry) Lookup(integ domain.Integration) (Provider, error) {
	p, ok := r.providers[integ.ProviderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, integ.ProviderID)
	}
	if p.Kind() != integ.Kind {
		return nil, fmt.Errorf("%w: %s is %s, integration says %s", ErrUnknownProvider, integ.ProviderID, p.Kind(), integ.Kind)
	}
	return p, nil
}
