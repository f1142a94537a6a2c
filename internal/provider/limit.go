package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"slotkeeper/backend/internal/domain"
)

type Limits struct {
	PerSecond   float64
	Burst       int
	CallTimeout time.Duration
}

type throttled struct {
	next    Provider
	limiter *rate.Limiter
	timeout time.Duration
}

// Throttle wraps p so every call waits for a token and runs under the call
// timeout. A zero PerSecond disables the token bucket.
func Throttle(p Provider, l Limits) Provider {
	limit := rate.Inf
	if l.PerSecond > 0 {
		limit = rate.Limit(l.PerSecond)
	}
	burst := l.Burst
	if burst <= 0 {
		burst = 1
	}
	return &throttled{next: p, limiter: rate.NewLimiter(limit, burst), timeout: l.CallTimeout}
}

func (t *throttled) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return ctx, func() {}, err
	}
	if t.timeout <= 0 {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	return ctx, cancel, nil
}

func (t *throttled) Kind() domain.ProviderKind { return t.next.Kind() }

func (t *throttled) GetBusy(ctx context.Context, integ domain.Integration, start, end time.Time) ([]domain.BusyInterval, error) {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return nil, err
	}
	return t.next.GetBusy(ctx, integ, start, end)
}

func (t *throttled) Create(ctx context.Context, integ domain.Integration, evt domain.CalendarEvent) (string, error) {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return "", err
	}
	return t.next.Create(ctx, integ, evt)
}

func (t *throttled) Update(ctx context.Context, integ domain.Integration, externalID string, evt domain.CalendarEvent) (string, error) {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return "", err
	}
	return t.next.Update(ctx, integ, externalID, evt)
}

func (t *throttled) Delete(ctx context.Context, integ domain.Integration, externalID string) error {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return err
	}
	return t.next.Delete(ctx, integ, externalID)
}
