// Package instance names the running process in logs.
package instance

import "os"

var platformKeys = []string{"DYNO", "K_REVISION", "WORKER_ID"}

// ID returns the platform-assigned process name, falling back to the
// hostname and then to "local".
func ID() string {
	for _, key := range platformKeys {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
