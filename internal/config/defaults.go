package config

import "time"

const (
	DefaultProfile        = "baseline-v1"
	DefaultMaxListPerKind = 200
	DefaultPlanTTL        = 30 * time.Minute
)

// DefaultLogDir returns the default audit log directory path.
func DefaultLogDir() string {
	return "~/.warden/logs"
}
