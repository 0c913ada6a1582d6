//go:build !android

package logredirect

import (
	"context"
)

// NewSystemSink returns the sink matching the platform log facility.
func NewSystemSink(ctx context.Context, priority Priority) (Sink, error) {
	return NewLoggerSink(priority), nil
}
