package provider

import (
	"context"
	"time"

	"slotkeeper/backend/internal/domain"
)

// Fake is a Provider backed by function fields, for tests in other packages.
// Unset functions panic so an unexpected call fails loudly.
type Fake struct {
	KindValue domain.ProviderKind

	GetBusyFn func(ctx context.Context, integ domain.Integration, start, end time.Time) ([]domain.BusyInterval, error)
	CreateFn  func(ctx context.Context, integ domain.Integration, evt domain.CalendarEvent) (string, error)
	UpdateFn  func(ctx context.Context, integ domain.Integration, externalID string, evt domain.CalendarEvent) (string, error)
	DeleteFn  func(ctx context.Context, integ domain.Integration, externalID string) error
}

func (f *Fake) Kind() domain.ProviderKind { return f.KindValue }

func (f *Fake) GetBusy(ctx context.Context, integ domain.Integration, start, end time.Time) ([]domain.BusyInterval, error) {
	if f.GetBusyFn == nil {
		panic("unexpected GetBusy call")
	}
	return f.GetBusyFn(ctx, integ, start, end)
}

func (f *Fake) Create(ctx context.Context, integ domain.Integration, evt domain.CalendarEvent) (string, error) {
	if f.CreateFn == nil {
		panic("unexpected Create call")
	}
	return f.CreateFn(ctx, integ, evt)
}

func (f *Fake) Update(ctx context.Context, integ domain.Integration, externalID string, evt domain.CalendarEvent) (string, error) {
	if f.UpdateFn == nil {
		panic("unexpected Update call")
	}
	return f.UpdateFn(ctx, integ, externalID, evt)
}

func (f *Fake) Delete(ctx context.Context, integ domain.Integration, externalID string) error {
	if f.DeleteFn == nil {
		panic("unexpected Delete call")
	}
	return f.DeleteFn(ctx, integ, externalID)
}
