package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"homehub/gateway"
	"homehub/logger"
)

// HandlerManager keeps the registered handlers and routes frames to them.
// It implements gateway.InboundHandler.
type HandlerManager struct {
	handlers map[string]MessageHandler
	mu       sync.RWMutex
	log      *logger.Logger
}

var _ gateway.InboundHandler = (*HandlerManager)(nil)

// NewHandlerManager creates a new HandlerManager
func NewHandlerManager(log *logger.Logger) *HandlerManager {
	return &HandlerManager{
		handlers: make(map[string]MessageHandler),
		log:      logger.OrNop(log),
	}
}

// RegisterHandler registers a handler under a name
func (hm *HandlerManager) RegisterHandler(name string, handler MessageHandler) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.handlers[name] = handler
	hm.log.Info("📦 Registered handler", "name", name, "type", handler.GetMessageType())
}

// UnregisterHandler removes a handler
func (hm *HandlerManager) UnregisterHandler(name string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	delete(hm.handlers, name)
}

// GetHandler looks a handler up by name
func (hm *HandlerManager) GetHandler(name string) (MessageHandler, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	handler, exists := hm.handlers[name]
	return handler, exists
}

// HandleMessage runs the named handler on f
func (hm *HandlerManager) HandleMessage(ctx context.Context, handlerName string, f gateway.Frame) error {
	handler, exists := hm.GetHandler(handlerName)
	if !exists {
		return fmt.Errorf("handler '%s' not found", handlerName)
	}

	return handler.Handle(ctx, f)
}

// HandleFrame runs every handler registered for the frame's type, in name
// order. Frames nobody handles are logged and dropped.
func (hm *HandlerManager) HandleFrame(ctx context.Context, f gateway.Frame) error {
	hm.mu.RLock()
	var matched []string
	for name, h := range hm.handlers {
		if h.GetMessageType() == f.Type {
			matched = append(matched, name)
		}
	}
	hm.mu.RUnlock()

	if len(matched) == 0 {
		hm.log.Debug("No handler for gateway frame", "type", f.Type)
		return nil
	}
	sort.Strings(matched)

	var firstErr error
	for _, name := range matched {
		if err := hm.HandleMessage(ctx, name, f); err != nil {
			hm.log.Warn("⚠️  Handler failed", "name", name, "type", f.Type, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return firstErr
}

// ListHandlers returns the registered handler names, sorted
func (hm *HandlerManager) ListHandlers() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.handlers))
	for name := range hm.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
