package provider

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

// Token decodes the OAuth token stored as an integration's credential.
func Token(integ domain.Integration) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(integ.Credential, &tok); err != nil {
		return nil, fmt.Errorf("%w: %s credential %d: %v", store.ErrInvalidCredential, integ.ProviderID, integ.ID, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s credential %d has no token", store.ErrInvalidCredential, integ.ProviderID, integ.ID)
	}
	return &tok, nil
}
