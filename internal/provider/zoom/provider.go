package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/provider"
)

const (
	defaultBaseURL  = "https://api.zoom.us/v2"
	defaultTokenURL = "https://zoom.us/oauth/token"

	scheduledMeeting = 2
	pageSize         = 300
)

type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	HTTPClient   *http.Client
}

// Provider creates Zoom meetings and reports upcoming meetings as busy time.
type Provider struct {
	oauth      *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		baseURL:    baseURL,
		httpClient: cfg.HTTPClient,
	}
}

func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderKindVideo
}

type meeting struct {
	ID        int64  `json:"id,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Type      int    `json:"type,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Agenda    string `json:"agenda,omitempty"`
	JoinURL   string `json:"join_url,omitempty"`
}

type meetingList struct {
	Meetings []meeting `json:"meetings"`
}

// StatusError is returned for any non-2xx Zoom response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zoom api status %d: %s", e.Code, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.Code }

func (p *Provider) client(ctx context.Context, integ domain.Integration) (*http.Client, error) {
	tok, err := provider.Token(integ)
	if err != nil {
		return nil, err
	}
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	return p.oauth.Client(ctx, tok), nil
}

func (p *Provider) do(ctx context.Context, integ domain.Integration, method, path string, in, out any) error {
	client, err := p.client(ctx, integ)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("zoom encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("zoom %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zoom decode %s %s: %w", method, path, err)
	}
	return nil
}

// GetBusy lists upcoming scheduled meetings and keeps those overlapping the window.
func (p *Provider) GetBusy(ctx context.Context, integ domain.Integration, start, end time.Time) ([]domain.BusyInterval, error) {
	q := url.Values{}
	q.Set("type", "upcoming")
	q.Set("page_size", strconv.Itoa(pageSize))

	var list meetingList
	if err := p.do(ctx, integ, http.MethodGet, "/users/me/meetings?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}

	out := make([]domain.BusyInterval, 0, len(list.Meetings))
	for _, m := range list.Meetings {
		if m.StartTime == "" {
			continue
		}
		s, err := time.Parse(time.RFC3339, m.StartTime)
		if err != nil {
			return nil, fmt.Errorf("zoom meeting %d start %q: %w", m.ID, m.StartTime, err)
		}
		e := s.Add(time.Duration(m.Duration) * time.Minute)
		if !s.Before(end) || !e.After(start) {
			continue
		}
		out = append(out, domain.BusyInterval{Start: s, End: e})
	}
	return out, nil
}

func (p *Provider) Create(ctx context.Context, integ domain.Integration, evt domain.CalendarEvent) (string, error) {
	var created meeting
	if err := p.do(ctx, integ, http.MethodPost, "/users/me/meetings", toMeeting(evt), &created); err != nil {
		return "", err
	}
	if created.ID == 0 {
		return "", errors.New("zoom create meeting: response has no id")
	}
	return strconv.FormatInt(created.ID, 10), nil
}

// Update patches the meeting in place; Zoom keeps the meeting id.
func (p *Provider) Update(ctx context.Context, integ domain.Integration, externalID string, evt domain.CalendarEvent) (string, error) {
	if err := p.do(ctx, integ, http.MethodPatch, "/meetings/"+url.PathEscape(externalID), toMeeting(evt), nil); err != nil {
		return "", err
	}
	return externalID, nil
}

func (p *Provider) Delete(ctx context.Context, integ domain.Integration, externalID string) error {
	err := p.do(ctx, integ, http.MethodDelete, "/meetings/"+url.PathEscape(externalID), nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil
	}
	return err
}

func toMeeting(evt domain.CalendarEvent) meeting {
	tz := evt.Organizer.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return meeting{
		Topic:     evt.Title,
		Type:      scheduledMeeting,
		StartTime: evt.StartTime.UTC().Format("2006-01-02T15:04:05Z"),
		Duration:  int(evt.EndTime.Sub(evt.StartTime) / time.Minute),
		Timezone:  tz,
		Agenda:    evt.Description,
	}
}
