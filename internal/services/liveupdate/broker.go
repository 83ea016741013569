package liveupdate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/metrics"
	"github.com/warungtech/restopos/internal/models"
)

// Transport is the cross-process leg of the broker. A nil transport means
// local-only delivery; RedisTransport is the production implementation.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (inbound <-chan []byte, stop func(), err error)
}

// Subscription is one registered listener. C delivers payloads until
// Unsubscribe is called or the broker shuts down.
type Subscription struct {
	C      <-chan models.LiveUpdatePayload
	ch     chan models.LiveUpdatePayload
	detach func()
	once   sync.Once
}

// Unsubscribe detaches the listener. Safe to call more than once and after
// the broker has already closed the subscription.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.detach)
}

type mirror struct {
	refs   int
	cancel context.CancelFunc
	done   chan struct{}
}

// Broker fans order-change events out to every live listener of a tenant.
// Local listeners are always served in-process; tenants with cross-process
// delivery additionally publish through the transport, and a mirror goroutine
// per tenant channel re-emits foreign-origin payloads locally so listeners
// cannot tell where an event was produced.
type Broker struct {
	origin    string
	transport Transport
	bufSize   int
	logger    *zap.Logger

	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	mirrors map[string]*mirror
	closed  bool
}

func NewBroker(transport Transport, bufSize int, logger *zap.Logger) *Broker {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Broker{
		origin:    uuid.NewString(),
		transport: transport,
		bufSize:   bufSize,
		logger:    logger,
		subs:      make(map[string]map[*Subscription]struct{}),
		mirrors:   make(map[string]*mirror),
	}
}

// Origin identifies this process instance on the wire.
func (b *Broker) Origin() string {
	return b.origin
}

// Publish delivers the event to all local listeners of the tenant before
// returning, and when crossProcess is set additionally publishes it on the
// shared transport channel. Transport failures are logged and swallowed; a
// live update is best-effort and must never fail the business operation that
// produced it.
func (b *Broker) Publish(ctx context.Context, tenantID string, event models.EventKind, data json.RawMessage, crossProcess bool) {
	payload := models.LiveUpdatePayload{
		TenantID:  tenantID,
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
		Origin:    b.origin,
	}

	b.dispatchLocal(payload)
	metrics.IncrementLiveUpdates(tenantID, "local")

	if !crossProcess || b.transport == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("Failed to encode live update", zap.Error(err), zap.String("tenant_id", tenantID))
		return
	}

	if err := b.transport.Publish(ctx, channelName(tenantID), raw); err != nil {
		b.logger.Warn("Cross-process publish failed",
			zap.Error(err),
			zap.String("tenant_id", tenantID),
			zap.String("event", string(event)))
		metrics.IncrementTransportFailures(tenantID)
		return
	}
	metrics.IncrementLiveUpdates(tenantID, "transport")
}

// Subscribe registers a listener for the tenant. When crossProcess is set and
// a transport is configured, the tenant's mirror goroutine is started (or
// refcounted) so foreign-origin payloads reach this listener too.
func (b *Broker) Subscribe(tenantID string, crossProcess bool) *Subscription {
	sub := &Subscription{
		ch: make(chan models.LiveUpdatePayload, b.bufSize),
	}
	sub.C = sub.ch

	mirrored := crossProcess && b.transport != nil

	sub.detach = func() {
		b.mu.Lock()
		if listeners, ok := b.subs[tenantID]; ok {
			if _, present := listeners[sub]; present {
				delete(listeners, sub)
				close(sub.ch)
				if len(listeners) == 0 {
					delete(b.subs, tenantID)
				}
			}
		}
		b.mu.Unlock()

		if mirrored {
			b.releaseMirror(tenantID)
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub
	}
	listeners, ok := b.subs[tenantID]
	if !ok {
		listeners = make(map[*Subscription]struct{})
		b.subs[tenantID] = listeners
	}
	listeners[sub] = struct{}{}
	b.mu.Unlock()

	if mirrored {
		b.acquireMirror(tenantID)
	}

	return sub
}

// dispatchLocal hands the payload to every listener of the tenant. Sends are
// non-blocking: a listener that cannot keep up loses the update, which is
// acceptable for soft UI refresh signals.
func (b *Broker) dispatchLocal(payload models.LiveUpdatePayload) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[payload.TenantID] {
		select {
		case sub.ch <- payload:
		default:
			b.logger.Warn("Listener buffer full, dropping live update",
				zap.String("tenant_id", payload.TenantID),
				zap.String("event", string(payload.Event)))
			metrics.IncrementDroppedUpdates(payload.TenantID)
		}
	}
}

func (b *Broker) acquireMirror(tenantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if m, ok := b.mirrors[tenantID]; ok {
		m.refs++
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &mirror{refs: 1, cancel: cancel, done: make(chan struct{})}
	b.mirrors[tenantID] = m

	go b.runMirror(ctx, tenantID, m)
}

func (b *Broker) releaseMirror(tenantID string) {
	b.mu.Lock()
	m, ok := b.mirrors[tenantID]
	if ok {
		m.refs--
		if m.refs <= 0 {
			delete(b.mirrors, tenantID)
		} else {
			m = nil
		}
	}
	b.mu.Unlock()

	if ok && m != nil {
		m.cancel()
		<-m.done
	}
}

// runMirror consumes the tenant's transport channel and re-emits
// foreign-origin payloads into the local fan-out. Payloads this process
// published itself are dropped, so nothing echoes back out.
func (b *Broker) runMirror(ctx context.Context, tenantID string, m *mirror) {
	defer close(m.done)

	inbound, stop, err := b.transport.Subscribe(ctx, channelName(tenantID))
	if err != nil {
		b.logger.Error("Failed to subscribe to transport channel",
			zap.Error(err), zap.String("tenant_id", tenantID))
		return
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-inbound:
			if !ok {
				return
			}
			b.handleInbound(tenantID, raw)
		}
	}
}

// handleInbound decodes one transport message and mirrors it locally.
func (b *Broker) handleInbound(tenantID string, raw []byte) {
	var payload models.LiveUpdatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		b.logger.Warn("Discarding malformed transport payload",
			zap.Error(err), zap.String("tenant_id", tenantID))
		return
	}

	if payload.Origin == b.origin {
		// Our own publish coming back around; local listeners already saw it.
		return
	}

	if payload.TenantID == "" {
		payload.TenantID = tenantID
	}

	b.dispatchLocal(payload)
	metrics.IncrementLiveUpdates(tenantID, "mirrored")
}

// Close detaches every listener and stops every mirror. Further Subscribe
// calls return already-closed subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	var mirrors []*mirror
	for tenantID, m := range b.mirrors {
		m.cancel()
		mirrors = append(mirrors, m)
		delete(b.mirrors, tenantID)
	}

	for tenantID, listeners := range b.subs {
		for sub := range listeners {
			delete(listeners, sub)
			close(sub.ch)
		}
		delete(b.subs, tenantID)
	}
	b.mu.Unlock()

	for _, m := range mirrors {
		<-m.done
	}

	b.logger.Info("Live update broker closed")
}

func channelName(tenantID string) string {
	return "live_updates:" + tenantID
}
