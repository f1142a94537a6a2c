package googlecalendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/provider"
)

const primaryCalendar = "primary"

type Config struct {
	ClientID     string
	ClientSecret string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
	// HTTPClient is used underneath the OAuth transport.
	HTTPClient *http.Client
}

// Provider talks to Google Calendar on behalf of one integration per call.
type Provider struct {
	oauth      *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarScope},
		},
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
	}
}

func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderKindCalendar
}

func (p *Provider) service(ctx context.Context, integ domain.Integration) (*calendar.Service, error) {
	tok, err := provider.Token(integ)
	if err != nil {
		return nil, err
	}
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	opts := []option.ClientOption{option.WithHTTPClient(p.oauth.Client(ctx, tok))}
	if p.baseURL != "" {
		opts = append(opts, option.WithEndpoint(p.baseURL))
	}
	return calendar.NewService(ctx, opts...)
}

// GetBusy queries free/busy for the integration's selected calendars, or the
// primary calendar when none are selected.
func (p *Provider) GetBusy(ctx context.Context, integ domain.Integration, start, end time.Time) ([]domain.BusyInterval, error) {
	svc, err := p.service(ctx, integ)
	if err != nil {
		return nil, err
	}

	ids := integ.SelectedCalendars
	if len(ids) == 0 {
		ids = []string{primaryCalendar}
	}
	items := make([]*calendar.FreeBusyRequestItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, &calendar.FreeBusyRequestItem{Id: id})
	}

	resp, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   items,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google freebusy: %w", err)
	}

	out := make([]domain.BusyInterval, 0)
	for _, id := range ids {
		cal, ok := resp.Calendars[id]
		if !ok {
			continue
		}
		if len(cal.Errors) > 0 {
			return nil, fmt.Errorf("google freebusy %s: %s", id, cal.Errors[0].Reason)
		}
		for _, period := range cal.Busy {
			s, err := time.Parse(time.RFC3339, period.Start)
			if err != nil {
				return nil, fmt.Errorf("google freebusy start %q: %w", period.Start, err)
			}
			e, err := time.Parse(time.RFC3339, period.End)
			if err != nil {
				return nil, fmt.Errorf("google freebusy end %q: %w", period.End, err)
			}
			out = append(out, domain.BusyInterval{Start: s, End: e})
		}
	}
	return out, nil
}

func (p *Provider) Create(ctx context.Context, integ domain.Integration, evt domain.CalendarEvent) (string, error) {
	svc, err := p.service(ctx, integ)
	if err != nil {
		return "", err
	}
	ev := toGoogleEvent(evt)
	call := svc.Events.Insert(primaryCalendar, ev).Context(ctx)
	if ev.ConferenceData != nil {
		call = call.ConferenceDataVersion(1)
	}
	created, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("google insert event: %w", err)
	}
	return created.Id, nil
}

func (p *Provider) Update(ctx context.Context, integ domain.Integration, externalID string, evt domain.CalendarEvent) (string, error) {
	svc, err := p.service(ctx, integ)
	if err != nil {
		return "", err
	}
	ev := toGoogleEvent(evt)
	call := svc.Events.Update(primaryCalendar, externalID, ev).Context(ctx)
	if ev.ConferenceData != nil {
		call = call.ConferenceDataVersion(1)
	}
	updated, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("google update event: %w", err)
	}
	return updated.Id, nil
}

// Delete treats an event that is already gone as deleted.
func (p *Provider) Delete(ctx context.Context, integ domain.Integration, externalID string) error {
	svc, err := p.service(ctx, integ)
	if err != nil {
		return err
	}
	err = svc.Events.Delete(primaryCalendar, externalID).Context(ctx).Do()
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && (gErr.Code == http.StatusGone || gErr.Code == http.StatusNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("google delete event: %w", err)
	}
	return nil
}

func toGoogleEvent(evt domain.CalendarEvent) *calendar.Event {
	ev := &calendar.Event{
		Summary:     evt.Title,
		Description: evt.Description,
		Location:    evt.Location,
		Start: &calendar.EventDateTime{
			DateTime: evt.StartTime.UTC().Format(time.RFC3339),
			TimeZone: evt.Organizer.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: evt.EndTime.UTC().Format(time.RFC3339),
			TimeZone: evt.Organizer.TimeZone,
		},
	}
	for _, a := range evt.Attendees {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{Email: a.Email, DisplayName: a.Name})
	}
	if ext := evt.ExtensionFor(domain.ProviderGoogleCalendar); ext != nil && ext.Conference != nil {
		ev.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             ext.Conference.RequestID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}
	return ev
}
