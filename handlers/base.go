// Package handlers routes unsolicited device-gateway frames into the
// automation pipeline.
package handlers

import (
	"context"

	"homehub/gateway"
)

// MessageHandler processes one kind of inbound gateway frame
type MessageHandler interface {
	// Handle processes a decoded frame
	Handle(ctx context.Context, f gateway.Frame) error

	// GetMessageType returns the frame type this handler accepts
	GetMessageType() string
}
