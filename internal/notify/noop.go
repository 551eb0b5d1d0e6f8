package notify

import (
	"context"

	"fwsync/internal/ports"
)

// Nop discards events; used when no event feed is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, e ports.Event) error { return nil }

var _ ports.EventPublisher = Nop{}
