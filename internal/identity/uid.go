package identity

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"slotkeeper/backend/internal/domain"
)

// DeriveUID picks the canonical booking uid.
//
// The first successful provider result with an external id wins. Without one,
// the uid is the short encoding of a name-based UUID over the event's JSON
// form, so identical content always yields the same uid.
func DeriveUID(results []domain.ProviderResult, evt domain.CalendarEvent) (string, error) {
	for _, r := range results {
		if r.Success && r.ExternalEventID != "" {
			return r.ExternalEventID, nil
		}
	}
	return ContentUID(evt)
}

func ContentUID(evt domain.CalendarEvent) (string, error) {
	b, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return shortuuid.DefaultEncoder.Encode(uuid.NewSHA1(uuid.NameSpaceURL, b)), nil
}
