package config

import (
	"time"
)

type CleanupConfig interface {
	GetCleanupInterval() time.Duration
}

type Cleanup struct{}

var _ CleanupConfig = Cleanup{}

func (Cleanup) GetCleanupInterval() time.Duration {
	if v := GetEnv("CLEANUP_INTERVAL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 6 * time.Hour
}
