package eventmanager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/iter"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/provider"
)

type ProviderLookup interface {
	Lookup(integ domain.Integration) (provider.Provider, error)
}

// Manager fans event operations out to one user's integrations. Every
// provider is attempted, concurrently, and nothing is retried.
type Manager struct {
	providers    ProviderLookup
	integrations []domain.Integration
	log          *slog.Logger
}

func New(providers ProviderLookup, integrations []domain.Integration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		providers:    providers,
		integrations: integrations,
		log:          log.With(slog.String("component", "eventmanager")),
	}
}

// Create returns one result per integration.
func (m *Manager) Create(ctx context.Context, evt domain.CalendarEvent) []domain.ProviderResult {
	return iter.Map(m.integrations, func(integ *domain.Integration) domain.ProviderResult {
		p, err := m.providers.Lookup(*integ)
		if err != nil {
			return m.failed("create", *integ, err)
		}
		id, err := p.Create(ctx, *integ, eventFor(evt, *integ))
		if err != nil {
			return m.failed("create", *integ, err)
		}
		return domain.ProviderResult{ProviderID: integ.ProviderID, Success: true, ExternalEventID: id}
	})
}

// Update returns one result per integration. An integration without a
// matching reference gets the event created instead.
func (m *Manager) Update(ctx context.Context, evt domain.CalendarEvent, refs []domain.BookingReference) []domain.ProviderResult {
	return iter.Map(m.integrations, func(integ *domain.Integration) domain.ProviderResult {
		p, err := m.providers.Lookup(*integ)
		if err != nil {
			return m.failed("update", *integ, err)
		}
		payload := eventFor(evt, *integ)

		ref, ok := findReference(refs, integ.ProviderID)
		if !ok {
			id, err := p.Create(ctx, *integ, payload)
			if err != nil {
				return m.failed("create", *integ, err)
			}
			return domain.ProviderResult{ProviderID: integ.ProviderID, Success: true, ExternalEventID: id}
		}

		id, err := p.Update(ctx, *integ, ref.ExternalEventID, payload)
		if err != nil {
			return m.failed("update", *integ, err)
		}
		if id == "" {
			id = ref.ExternalEventID
		}
		return domain.ProviderResult{ProviderID: integ.ProviderID, Success: true, ExternalEventID: id}
	})
}

// Delete returns one result per reference.
func (m *Manager) Delete(ctx context.Context, refs []domain.BookingReference) []domain.ProviderResult {
	return iter.Map(refs, func(ref *domain.BookingReference) domain.ProviderResult {
		integ, ok := m.integrationFor(ref.ProviderID)
		if !ok {
			err := fmt.Errorf("no integration configured for %s", ref.ProviderID)
			return m.failed("delete", domain.Integration{ProviderID: ref.ProviderID}, err)
		}
		p, err := m.providers.Lookup(integ)
		if err != nil {
			return m.failed("delete", integ, err)
		}
		if err := p.Delete(ctx, integ, ref.ExternalEventID); err != nil {
			return m.failed("delete", integ, err)
		}
		return domain.ProviderResult{ProviderID: ref.ProviderID, Success: true, ExternalEventID: ref.ExternalEventID}
	})
}

// AggregateFailed reports whether there were results and none succeeded.
func AggregateFailed(results []domain.ProviderResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Success {
			return false
		}
	}
	return true
}

func (m *Manager) failed(op string, integ domain.Integration, err error) domain.ProviderResult {
	m.log.Warn("provider operation failed",
		slog.String("op", op),
		slog.String("provider_id", integ.ProviderID),
		slog.Int64("integration_id", integ.ID),
		slog.Any("err", err))
	return domain.ProviderResult{ProviderID: integ.ProviderID, Error: err.Error(), Reason: provider.Reason(err)}
}

func (m *Manager) integrationFor(providerID string) (domain.Integration, bool) {
	for _, integ := range m.integrations {
		if integ.ProviderID == providerID {
			return integ, true
		}
	}
	return domain.Integration{}, false
}

func findReference(refs []domain.BookingReference, providerID string) (domain.BookingReference, bool) {
	for _, ref := range refs {
		if ref.ProviderID == providerID {
			return ref, true
		}
	}
	return domain.BookingReference{}, false
}

func eventFor(evt domain.CalendarEvent, integ domain.Integration) domain.CalendarEvent {
	evt.Extension = evt.ExtensionFor(integ.ProviderID)
	return evt
}
