package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/provider"
	"slotkeeper/backend/internal/store"
)

func testIntegration() domain.Integration {
	return domain.Integration{
		ID:         7,
		Kind:       domain.ProviderKindVideo,
		ProviderID: domain.ProviderZoomVideo,
		Credential: []byte(`{"access_token":"zt","token_type":"Bearer"}`),
	}
}

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
}

func TestGetBusyFiltersToWindow(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me/meetings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("type"); got != "upcoming" {
			t.Errorf("type = %q, want upcoming", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer zt" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = io.WriteString(w, `{"meetings":[
			{"id":1,"start_time":"2024-05-10T09:00:00Z","duration":30},
			{"id":2,"start_time":"2024-05-12T09:00:00Z","duration":30},
			{"id":3,"duration":30}
		]}`)
	})

	start := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	busy, err := p.GetBusy(context.Background(), testIntegration(), start, start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetBusy err = %v", err)
	}
	if len(busy) != 1 {
		t.Fatalf("len(busy) = %d, want 1", len(busy))
	}
	wantEnd := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
	if !busy[0].End.Equal(wantEnd) {
		t.Fatalf("busy[0].End = %v, want %v", busy[0].End, wantEnd)
	}
}

func TestCreate(t *testing.T) {
	var got meeting
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/users/me/meetings" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":8675309,"join_url":"https://zoom.us/j/8675309"}`)
	})

	evt := domain.CalendarEvent{
		Title:       "Intro with Ada",
		Description: "notes",
		StartTime:   time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 5, 10, 10, 45, 0, 0, time.UTC),
		Organizer:   domain.Person{TimeZone: "Europe/Berlin"},
	}
	id, err := p.Create(context.Background(), testIntegration(), evt)
	if err != nil {
		t.Fatalf("Create err = %v", err)
	}
	if id != "8675309" {
		t.Fatalf("id = %q, want 8675309", id)
	}
	if got.Type != scheduledMeeting || got.Duration != 45 || got.Timezone != "Europe/Berlin" {
		t.Fatalf("request = %+v", got)
	}
	if got.StartTime != "2024-05-10T10:00:00Z" {
		t.Fatalf("start_time = %q", got.StartTime)
	}
}

func TestUpdateKeepsID(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/meetings/42" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	id, err := p.Update(context.Background(), testIntegration(), "42", domain.CalendarEvent{})
	if err != nil {
		t.Fatalf("Update err = %v", err)
	}
	if id != "42" {
		t.Fatalf("id = %q, want 42", id)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "deleted", status: http.StatusNoContent},
		{name: "missing", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete || r.URL.Path != "/meetings/42" {
					t.Errorf("%s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
			})
			err := p.Delete(context.Background(), testIntegration(), "42")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Delete err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusErrorSurfaces(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"code":429,"message":"rate limited"}`)
	})
	_, err := p.Create(context.Background(), testIntegration(), domain.CalendarEvent{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d, want 429", se.Code)
	}
	if got := provider.Reason(err); got != provider.ReasonRateLimited {
		t.Fatalf("Reason = %q, want %q", got, provider.ReasonRateLimited)
	}
}

func TestInvalidCredential(t *testing.T) {
	p := New(Config{})
	integ := testIntegration()
	integ.Credential = []byte(`{}`)
	_, err := p.GetBusy(context.Background(), integ, time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, store.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}
