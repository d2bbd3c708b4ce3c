//go:build !windows

package adapters

import (
	"time"

	"go.uber.org/zap"
)

// New returns a manager that reports unsupported-platform for every change
// and an empty adapter list.
func New(ttl time.Duration, logger *zap.Logger) Manager {
	return Unsupported{}
}
