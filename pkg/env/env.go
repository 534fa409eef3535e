package env

import (
	"os"
	"strings"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// InstanceID names the running process in logs and lock values. Heroku sets
// DYNO; containers usually expose HOSTNAME.
func InstanceID() string {
	for _, key := range []string{"DYNO", "WORKER_ID", "HOSTNAME"} {
		if val := Get(key, ""); val != "" {
			return val
		}
	}
	return "local"
}
