// Package realtime fans scrape lifecycle events out to SSE subscribers.
// Dashboards usually connect long after the daily run finished, so the
// broker replays the tenant's most recent event to every new subscriber
// before live delivery starts.
package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
)

const subscriberBuffer = 100

// Subscriber is one SSE client connection, bound to a tenant's stream.
type Subscriber struct {
	ID       string
	TenantID string
	Messages chan []byte
}

// Broker routes scrape events to per-tenant subscriber sets.
type Broker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]struct{}
	// lastEvent keeps the most recent formatted event per tenant for
	// replay to late joiners.
	lastEvent map[string][]byte

	events  chan domain.ScrapeEvent
	done    chan struct{}
	dropped atomic.Int64
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[string]map[*Subscriber]struct{}),
		lastEvent:   make(map[string][]byte),
		events:      make(chan domain.ScrapeEvent, 1000),
		done:        make(chan struct{}),
	}
}

// Start begins the broadcast loop
func (b *Broker) Start() {
	go b.broadcastLoop()
	b.logger.Info("sse_broker_started")
}

// Stop gracefully shuts down the broker
func (b *Broker) Stop() {
	close(b.done)
	b.logger.Info("sse_broker_stopped")
}

// Subscribe registers a new connection on a tenant's stream and returns it.
// The tenant's most recent event, if any, is queued immediately so the
// client does not stare at an empty stream until the next daily run.
func (b *Broker) Subscribe(tenantID string) *Subscriber {
	sub := &Subscriber{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Messages: make(chan []byte, subscriberBuffer),
	}

	b.mu.Lock()
	if b.subscribers[tenantID] == nil {
		b.subscribers[tenantID] = make(map[*Subscriber]struct{})
	}
	b.subscribers[tenantID][sub] = struct{}{}
	replay := b.lastEvent[tenantID]
	b.mu.Unlock()

	if replay != nil {
		sub.Messages <- replay
	}

	metrics.SSEConnectionsActive.Inc()
	b.logger.Debug("sse_subscriber_added",
		slog.String("tenant_id", tenantID),
		slog.String("subscriber_id", sub.ID),
		slog.Bool("replayed", replay != nil),
	)
	return sub
}

// Unsubscribe removes a subscriber from its tenant's stream.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	if subs, ok := b.subscribers[sub.TenantID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, sub.TenantID)
		}
	}
	b.mu.Unlock()

	metrics.SSEConnectionsActive.Dec()
	b.logger.Debug("sse_subscriber_removed",
		slog.String("tenant_id", sub.TenantID),
		slog.String("subscriber_id", sub.ID),
	)
}

// Broadcast queues an event for delivery to its tenant's subscribers.
func (b *Broker) Broadcast(event domain.ScrapeEvent) {
	select {
	case b.events <- event:
	default:
		b.dropped.Add(1)
		b.logger.Warn("sse_event_dropped_queue_full",
			slog.String("tenant_id", event.TenantID),
		)
	}
}

func (b *Broker) broadcastLoop() {
	for {
		select {
		case <-b.done:
			return
		case event := <-b.events:
			b.broadcastEvent(event)
		}
	}
}

func (b *Broker) broadcastEvent(event domain.ScrapeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("sse_event_marshal_error",
			slog.String("error", err.Error()),
		)
		return
	}
	message := formatSSE(event.Type, data)

	// The last event is stored even with nobody listening; the next
	// subscriber gets it as their replay.
	b.mu.Lock()
	b.lastEvent[event.TenantID] = message
	subs := make([]*Subscriber, 0, len(b.subscribers[event.TenantID]))
	for sub := range b.subscribers[event.TenantID] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	delivered := 0
	for _, sub := range subs {
		select {
		case sub.Messages <- message:
			delivered++
		default:
			// Subscriber buffer full; it will catch up from lastEvent on
			// reconnect.
			b.dropped.Add(1)
		}
	}

	metrics.SSEEventsSent.Inc()
	b.logger.Debug("sse_event_broadcast",
		slog.String("tenant_id", event.TenantID),
		slog.String("event_type", event.Type),
		slog.Int("delivered", delivered),
	)
}

func formatSSE(eventType string, data []byte) []byte {
	// SSE format: "event: <type>\ndata: <json>\n\n"
	result := make([]byte, 0, len(eventType)+len(data)+20)
	result = append(result, "event: "...)
	result = append(result, eventType...)
	result = append(result, '\n')
	result = append(result, "data: "...)
	result = append(result, data...)
	result = append(result, '\n', '\n')
	return result
}

// Stats returns broker statistics for the debug endpoint
func (b *Broker) Stats() BrokerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	tenantStats := make([]TenantSubscribers, 0, len(b.subscribers))

	for tenantID, subs := range b.subscribers {
		count := len(subs)
		total += count
		tenantStats = append(tenantStats, TenantSubscribers{
			TenantID:    tenantID,
			Subscribers: count,
		})
	}

	return BrokerStats{
		TotalConnections: total,
		TenantsWithState: len(b.lastEvent),
		DroppedEvents:    b.dropped.Load(),
		Tenants:          tenantStats,
	}
}

// BrokerStats for debug endpoints
type BrokerStats struct {
	TotalConnections int                 `json:"total_connections"`
	TenantsWithState int                 `json:"tenants_with_state"`
	DroppedEvents    int64               `json:"dropped_events"`
	Tenants          []TenantSubscribers `json:"tenants"`
}

type TenantSubscribers struct {
	TenantID    string `json:"tenant_id"`
	Subscribers int    `json:"subscribers"`
}
