package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"homehub/devices"
	"homehub/logger"
)

const (
	defaultCommandTimeout = 10 * time.Second
	defaultPingInterval   = 25 * time.Second
	defaultReconnectDelay = time.Second
	maxReconnectDelay     = time.Minute
	inboundQueueSize      = 128
)

// ErrNotConnected is returned by device calls while the socket is down
var ErrNotConnected = errors.New("device gateway not connected")

var errSkipFrame = errors.New("skipped frame")

// InboundHandler receives frames the gateway sends on its own (state
// changes, sensor events). handlers.HandlerManager implements it.
type InboundHandler interface {
	HandleFrame(ctx context.Context, f Frame) error
}

// Options configures a Gateway. Zero durations take defaults.
type Options struct {
	URL            string
	Token          string
	CommandTimeout time.Duration
	PingInterval   time.Duration
	ReconnectDelay time.Duration
}

// Gateway is a devices.Controller backed by a remote device gateway. Run
// owns the connection; device calls send a request frame and wait for the
// ack carrying the same id.
type Gateway struct {
	opts Options
	log  *logger.Logger

	mu          sync.RWMutex
	client      *Client
	lastMsgTime time.Time
	inbound     InboundHandler

	pendingMu sync.Mutex
	pending   map[string]chan Frame

	queue chan Frame
}

var _ devices.Controller = (*Gateway)(nil)

// New creates a gateway controller. Nothing is dialed until Run.
func New(opts Options, log *logger.Logger) *Gateway {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	return &Gateway{
		opts:    opts,
		log:     logger.OrNop(log).With("component", "gateway"),
		pending: make(map[string]chan Frame),
		queue:   make(chan Frame, inboundQueueSize),
	}
}

// SetInbound installs the handler for unsolicited frames. Call before Run.
func (g *Gateway) SetInbound(h InboundHandler) {
	g.mu.Lock()
	g.inbound = h
	g.mu.Unlock()
}

// Connected reports whether a socket is currently open
func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client != nil
}

// LastMessage is when the last frame was received
func (g *Gateway) LastMessage() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastMsgTime
}

// Run connects and reads until ctx is done, reconnecting with exponential
// backoff whenever the connection drops. It always returns nil once ctx ends.
func (g *Gateway) Run(ctx context.Context) error {
	go g.inboundLoop(ctx)

	delay := g.opts.ReconnectDelay
	for {
		connected, err := g.session(ctx)
		if ctx.Err() != nil {
			g.log.Info("🛑 Device gateway stopped")
			return nil
		}
		if connected {
			delay = g.opts.ReconnectDelay
		}
		g.log.Warn("⚠️  Device gateway connection lost, reconnecting", "error", err, "retry_in", delay.String())

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (g *Gateway) session(ctx context.Context) (bool, error) {
	c := NewClient(g.opts.URL, g.opts.Token, g.log)
	if err := c.Connect(ctx); err != nil {
		return false, err
	}
	c.StartPing(g.opts.PingInterval)
	g.setClient(c)
	defer func() {
		g.setClient(nil)
		_ = c.Close()
	}()

	// unblock ReadFrame on shutdown
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	// the gateway answers every ping, so silence longer than this is a dead link
	staleAfter := 3 * g.opts.PingInterval
	for {
		f, err := c.ReadFrame(staleAfter)
		if errors.Is(err, errSkipFrame) {
			g.log.Debug("Skipping gateway frame", "error", err)
			continue
		}
		if err != nil {
			return true, err
		}
		g.touch()
		g.route(c, f)
	}
}

func (g *Gateway) setClient(c *Client) {
	g.mu.Lock()
	g.client = c
	if c != nil {
		g.lastMsgTime = time.Now()
	}
	g.mu.Unlock()
}

func (g *Gateway) currentClient() *Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

func (g *Gateway) touch() {
	g.mu.Lock()
	g.lastMsgTime = time.Now()
	g.mu.Unlock()
}

func (g *Gateway) route(c *Client, f Frame) {
	switch f.Type {
	case FrameAck:
		g.pendingMu.Lock()
		ch, ok := g.pending[f.ID]
		g.pendingMu.Unlock()
		if !ok {
			g.log.Debug("Ack for unknown request", "id", f.ID)
			return
		}
		select {
		case ch <- f:
		default:
		}
	case FramePong:
	case FramePing:
		if err := c.WriteFrame(Frame{Type: FramePong, ID: f.ID}); err != nil {
			g.log.Warn("⚠️  Failed to answer gateway ping", "error", err)
		}
	default:
		// handled off the read loop: inbound handlers may issue device
		// commands whose acks arrive on this loop
		select {
		case g.queue <- f:
		default:
			g.log.Warn("⚠️  Inbound queue full, dropping frame", "type", f.Type, "device_id", f.DeviceID)
		}
	}
}

func (g *Gateway) inboundLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-g.queue:
			g.mu.RLock()
			h := g.inbound
			g.mu.RUnlock()
			if h == nil {
				continue
			}
			if err := h.HandleFrame(ctx, f); err != nil {
				g.log.Warn("⚠️  Failed to handle gateway frame", "type", f.Type, "device_id", f.DeviceID, "error", err)
			}
		}
	}
}

// request sends f and waits for its ack
func (g *Gateway) request(ctx context.Context, f Frame) (Frame, error) {
	c := g.currentClient()
	if c == nil {
		return Frame{}, ErrNotConnected
	}

	f.ID = uuid.NewString()
	f.At = time.Now()
	ch := make(chan Frame, 1)
	g.pendingMu.Lock()
	g.pending[f.ID] = ch
	g.pendingMu.Unlock()
	defer func() {
		g.pendingMu.Lock()
		delete(g.pending, f.ID)
		g.pendingMu.Unlock()
	}()

	if err := c.WriteFrame(f); err != nil {
		return Frame{}, fmt.Errorf("send %s: %w", f.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.CommandTimeout)
	defer cancel()
	select {
	case ack := <-ch:
		return ack, nil
	case <-ctx.Done():
		return Frame{}, fmt.Errorf("gateway %s %s: %w", f.Type, f.DeviceID, ctx.Err())
	}
}

func (g *Gateway) command(ctx context.Context, deviceID, action string, value *string) (bool, error) {
	ack, err := g.request(ctx, Frame{Type: FrameCommand, DeviceID: deviceID, Action: action, Value: value})
	if err != nil {
		return false, err
	}
	if !ack.OK {
		g.log.Warn("⚠️  Gateway refused command", "device_id", deviceID, "action", action, "reason", ack.Error)
	}
	return ack.OK, nil
}

func (g *Gateway) TurnOn(ctx context.Context, deviceID string) (bool, error) {
	return g.command(ctx, deviceID, devices.ActionTurnOn, nil)
}

func (g *Gateway) TurnOff(ctx context.Context, deviceID string) (bool, error) {
	return g.command(ctx, deviceID, devices.ActionTurnOff, nil)
}

func (g *Gateway) SetTemperature(ctx context.Context, deviceID string, temperature float64) (bool, error) {
	v := strconv.FormatFloat(temperature, 'f', -1, 64)
	return g.command(ctx, deviceID, devices.ActionSetTemperature, &v)
}

func (g *Gateway) SetBrightness(ctx context.Context, deviceID string, brightness int) (bool, error) {
	v := strconv.Itoa(brightness)
	return g.command(ctx, deviceID, devices.ActionSetBrightness, &v)
}

func (g *Gateway) SetColor(ctx context.Context, deviceID string, color string) (bool, error) {
	return g.command(ctx, deviceID, devices.ActionSetColor, &color)
}

// GetDeviceState returns nil for devices the gateway does not know
func (g *Gateway) GetDeviceState(ctx context.Context, deviceID string) (devices.State, error) {
	ack, err := g.request(ctx, Frame{Type: FrameGetState, DeviceID: deviceID})
	if err != nil {
		return nil, err
	}
	if !ack.OK {
		return nil, nil
	}
	if ack.State == nil {
		return devices.State{}, nil
	}
	return ack.State, nil
}

func (g *Gateway) ListDevices(ctx context.Context) ([]devices.Device, error) {
	ack, err := g.request(ctx, Frame{Type: FrameListDevices})
	if err != nil {
		return nil, err
	}
	if !ack.OK {
		return nil, fmt.Errorf("gateway list_devices: %s", ack.Error)
	}
	return ack.Devices, nil
}
