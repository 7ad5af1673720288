// Package channels defines the adapter seam between messaging platforms
// and the command gateway. An adapter turns platform events into
// models.Message values and delivers replies back out.
package channels

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/relay/pkg/models"
)

// Adapter is the interface every channel adapter implements.
type Adapter interface {
	// Start begins listening for messages. It establishes connections,
	// authenticates, and starts receiving.
	Start(ctx context.Context) error

	// Stop gracefully shuts the adapter down: close connections, flush
	// pending messages, release resources.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg *models.Message) error

	// Messages returns the channel of inbound messages. It is closed
	// when the adapter stops.
	Messages() <-chan *models.Message

	// Type returns the channel type (telegram, discord, slack, cli).
	Type() models.ChannelType

	// Status returns the current connection status.
	Status() Status

	// HealthCheck performs a lightweight connectivity check.
	HealthCheck(ctx context.Context) HealthStatus
}

// Status represents the connection status of a channel.
type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	LastPing  int64  `json:"last_ping,omitempty"` // Unix timestamp
}

// HealthStatus represents the health check result for an adapter.
type HealthStatus struct {
	// Healthy indicates whether the adapter is functioning correctly
	Healthy bool `json:"healthy"`

	// Latency is the time taken to perform the health check
	Latency time.Duration `json:"latency"`

	// Message provides additional context about the health status
	Message string `json:"message,omitempty"`

	// LastCheck is the timestamp of this health check
	LastCheck time.Time `json:"last_check"`
}

// Registry manages the channel adapters the gateway listens on.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.ChannelType]Adapter
}

// NewRegistry creates a new channel registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[models.ChannelType]Adapter),
	}
}

// Register adds an adapter. A second adapter for the same channel type
// is rejected.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[adapter.Type()]; exists {
		return fmt.Errorf("adapter for channel %q already registered", adapter.Type())
	}
	r.adapters[adapter.Type()] = adapter
	return nil
}

// Get returns an adapter by channel type.
func (r *Registry) Get(channelType models.ChannelType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[channelType]
	return adapter, ok
}

// All returns all registered adapters.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapters := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	return adapters
}

// StartAll starts every registered adapter, stopping the ones already
// started if one fails.
func (r *Registry) StartAll(ctx context.Context) error {
	started := make([]Adapter, 0)
	for _, adapter := range r.All() {
		if err := adapter.Start(ctx); err != nil {
			for _, a := range started {
				_ = a.Stop(ctx)
			}
			return fmt.Errorf("start %s adapter: %w", adapter.Type(), err)
		}
		started = append(started, adapter)
	}
	return nil
}

// StopAll stops all registered adapters, returning the last error.
func (r *Registry) StopAll(ctx context.Context) error {
	var lastErr error
	for _, adapter := range r.All() {
		if err := adapter.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// AggregateMessages fans inbound messages from every adapter into one
// channel. The output closes when all adapters have closed their message
// channels or the context is done.
func (r *Registry) AggregateMessages(ctx context.Context) <-chan *models.Message {
	out := make(chan *models.Message)

	var wg sync.WaitGroup
	for _, adapter := range r.All() {
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-a.Messages():
					if !ok {
						return
					}
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}(adapter)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
