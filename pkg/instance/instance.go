package instance

import (
	"os"

	"github.com/angelmondragon/packfinderz-storefront/pkg/env"
)

const defaultID = "storefront-0"

// GetID identifies this agent process in logs. STOREFRONT_INSTANCE_ID wins,
// then the platform's DYNO, then the hostname.
func GetID() string {
	if id := env.First("STOREFRONT_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
