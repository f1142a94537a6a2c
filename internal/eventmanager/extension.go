package eventmanager

import (
	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
)

// BuildExtension turns an integration location into the typed extension sent
// to the provider that hosts it. Locations no provider hosts return nil.
func BuildExtension(location string) *domain.EventExtension {
	var providerID string
	switch location {
	case domain.LocationGoogleMeet:
		providerID = domain.ProviderGoogleCalendar
	case domain.LocationZoom:
		providerID = domain.ProviderZoomVideo
	default:
		return nil
	}
	return &domain.EventExtension{
		Location:   location,
		ProviderID: providerID,
		Conference: &domain.ConferenceRequest{RequestID: ConferenceRequestID(location)},
	}
}

// ConferenceRequestID is stable per location kind so a retried create can be
// deduplicated by the provider.
func ConferenceRequestID(location string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(location)).String()
}
