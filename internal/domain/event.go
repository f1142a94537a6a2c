package domain

import "time"

type AttendeeInfo struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	TimeZone string `json:"timeZone"`
}

type Person struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone"`
}

// CalendarEvent is the provider-neutral payload sent to every integration.
// Extension is only honoured by the provider it names.
type CalendarEvent struct {
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     time.Time       `json:"endTime"`
	Organizer   Person          `json:"organizer"`
	Attendees   []AttendeeInfo  `json:"attendees"`
	Location    string          `json:"location,omitempty"`
	Extension   *EventExtension `json:"extension,omitempty"`
}

// EventExtension carries location-specific data for a single provider.
type EventExtension struct {
	Location   string             `json:"location"`
	ProviderID string             `json:"providerId"`
	Conference *ConferenceRequest `json:"conference,omitempty"`
}

type ConferenceRequest struct {
	RequestID string `json:"requestId"`
}

// ExtensionFor returns the extension only when it targets providerID.
func (e CalendarEvent) ExtensionFor(providerID string) *EventExtension {
	if e.Extension == nil || e.Extension.ProviderID != providerID {
		return nil
	}
	return e.Extension
}
