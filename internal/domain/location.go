package domain

import "strings"

const (
	LocationGoogleMeet = "integrations:google:meet"
	LocationZoom       = "integrations:zoom"

	integrationLocationPrefix = "integrations:"
)

// IsIntegrationLocation reports whether loc asks a provider to host the
// meeting instead of naming a place.
func IsIntegrationLocation(loc string) bool {
	return strings.HasPrefix(loc, integrationLocationPrefix)
}
