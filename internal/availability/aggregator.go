package availability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"
	"golang.org/x/sync/errgroup"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/provider"
)

type ProviderLookup interface {
	Lookup(integ domain.Integration) (provider.Provider, error)
}

// Cache stores per-integration busy lists. Errors are logged and otherwise
// ignored. Invalidate drops every key starting with prefix.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.BusyInterval, bool, error)
	Set(ctx context.Context, key string, busy []domain.BusyInterval) error
	Invalidate(ctx context.Context, prefix string) error
}

type Aggregator struct {
	providers ProviderLookup
	cache     Cache
	log       *slog.Logger
}

// NewAggregator returns an aggregator; cache may be nil.
func NewAggregator(providers ProviderLookup, cache Cache, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{providers: providers, cache: cache, log: log.With(slog.String("component", "availability"))}
}

// Busy merges the busy reports of every integration over [start, end].
//
// Calendar and video integrations are queried concurrently. When both kinds
// are configured only spans busy in both are returned; otherwise the single
// configured kind is used as is. A provider that fails contributes nothing.
func (a *Aggregator) Busy(ctx context.Context, integrations []domain.Integration, start, end time.Time) []domain.BusyInterval {
	var calendars, videos []domain.Integration
	for _, integ := range integrations {
		switch integ.Kind {
		case domain.ProviderKindCalendar:
			calendars = append(calendars, integ)
		case domain.ProviderKindVideo:
			videos = append(videos, integ)
		default:
			a.log.Warn("integration has unknown kind",
				slog.Int64("integration_id", integ.ID),
				slog.String("provider_id", integ.ProviderID),
				slog.String("kind", string(integ.Kind)))
		}
	}

	var calendarBusy, videoBusy []domain.BusyInterval
	var g errgroup.Group
	g.Go(func() error {
		calendarBusy = a.category(ctx, calendars, start, end)
		return nil
	})
	g.Go(func() error {
		videoBusy = a.category(ctx, videos, start, end)
		return nil
	})
	_ = g.Wait()

	switch {
	case len(calendars) > 0 && len(videos) > 0:
		return intersect(calendarBusy, videoBusy)
	case len(calendars) > 0:
		return calendarBusy
	case len(videos) > 0:
		return videoBusy
	default:
		return []domain.BusyInterval{}
	}
}

func (a *Aggregator) category(ctx context.Context, integrations []domain.Integration, start, end time.Time) []domain.BusyInterval {
	if len(integrations) == 0 {
		return nil
	}
	lists := iter.Map(integrations, func(integ *domain.Integration) []domain.BusyInterval {
		return a.one(ctx, *integ, start, end)
	})
	out := make([]domain.BusyInterval, 0)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func (a *Aggregator) one(ctx context.Context, integ domain.Integration, start, end time.Time) []domain.BusyInterval {
	log := a.log.With(slog.Int64("integration_id", integ.ID), slog.String("provider_id", integ.ProviderID))

	key := BusyKey(integ, start, end)
	if a.cache != nil {
		busy, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			log.Warn("busy cache read failed", slog.Any("err", err))
		} else if ok {
			return busy
		}
	}

	p, err := a.providers.Lookup(integ)
	if err != nil {
		log.Warn("no provider for integration", slog.Any("err", err))
		return nil
	}
	busy, err := p.GetBusy(ctx, integ, start, end)
	if err != nil {
		log.Warn("busy query failed", slog.Any("err", err))
		return nil
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, busy); err != nil {
			log.Warn("busy cache write failed", slog.Any("err", err))
		}
	}
	return busy
}

// Invalidate drops the cached busy lists of integrations. It is called after
// a provider mutation so the next query sees the new event.
func (a *Aggregator) Invalidate(ctx context.Context, integrations []domain.Integration) {
	if a.cache == nil {
		return
	}
	for _, integ := range integrations {
		if err := a.cache.Invalidate(ctx, BusyKeyPrefix(integ)); err != nil {
			a.log.Warn("busy cache invalidate failed",
				slog.Int64("integration_id", integ.ID),
				slog.String("provider_id", integ.ProviderID),
				slog.Any("err", err))
		}
	}
}

// BusyKeyPrefix is shared by every cached window of one integration.
func BusyKeyPrefix(integ domain.Integration) string {
	return fmt.Sprintf("busy:%d:", integ.ID)
}

// BusyKey identifies one integration's busy list for a query window and
// calendar selection.
func BusyKey(integ domain.Integration, start, end time.Time) string {
	cals := slices.Clone(integ.SelectedCalendars)
	slices.Sort(cals)
	return fmt.Sprintf("%s%s:%s:%d:%d", BusyKeyPrefix(integ), integ.ProviderID, strings.Join(cals, ","), start.Unix(), end.Unix())
}

// intersect returns the spans covered by both lists, ordered by start.
func intersect(a, b []domain.BusyInterval) []domain.BusyInterval {
	out := make([]domain.BusyInterval, 0)
	for _, x := range a {
		for _, y := range b {
			s := x.Start
			if y.Start.After(s) {
				s = y.Start
			}
			e := x.End
			if y.End.Before(e) {
				e = y.End
			}
			if s.Before(e) {
				out = append(out, domain.BusyInterval{Start: s, End: e})
			}
		}
	}
	slices.SortFunc(out, func(p, q domain.BusyInterval) int {
		return p.Start.Compare(q.Start)
	})
	return out
}
