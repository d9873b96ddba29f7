// Package instance names the running process for lock owners and logs.
package instance

import (
	"os"
	"strings"
)

const fallbackID = "worker-0"

// ID returns PGWALLAH_INSTANCE_ID, then the hostname (the pod name on
// Cloud Run and Kubernetes), then a fixed fallback.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("PGWALLAH_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
