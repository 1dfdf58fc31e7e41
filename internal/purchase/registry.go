package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"propflow/internal/common/events"
	"propflow/internal/property"
)

// StartRequest opens a flow for a property.
type StartRequest struct {
	PropertyID string   `json:"property_id" validate:"required"`
	Config     *Config  `json:"config,omitempty"`
	Initial    FormData `json:"initial"`
	JourneyID  string   `json:"journey_id,omitempty"`
}

// RegistryConfig tunes the flows a Registry creates.
type RegistryConfig struct {
	CompletionDelay time.Duration
	// IdleTTL is how long a flow may go untouched before Sweep closes it.
	// Zero keeps flows until they complete or are closed.
	IdleTTL time.Duration
}

// Registry keeps the live flows of this process.
type Registry struct {
	properties   property.Store
	orchestrator *Orchestrator
	notifier     Notifier
	recorder     Recorder
	publisher    events.Publisher
	logger       *slog.Logger
	cfg          RegistryConfig

	mu    sync.RWMutex
	flows map[string]*Flow
}

// NewRegistry creates an empty registry.
func NewRegistry(
	properties property.Store,
	orchestrator *Orchestrator,
	notifier Notifier,
	recorder Recorder,
	publisher events.Publisher,
	logger *slog.Logger,
	cfg RegistryConfig,
) *Registry {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Registry{
		properties:   properties,
		orchestrator: orchestrator,
		notifier:     notifier,
		recorder:     recorder,
		publisher:    publisher,
		logger:       logger,
		cfg:          cfg,
		flows:        make(map[string]*Flow),
	}
}

// Start loads the property and opens a new flow.
func (r *Registry) Start(ctx context.Context, req StartRequest) (*Flow, error) {
	p, err := r.properties.Get(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", req.PropertyID, err)
	}

	cfg := DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
		if len(cfg.AllowedTypes) == 0 {
			cfg.AllowedTypes = DefaultConfig().AllowedTypes
		}
		if cfg.DefaultType == "" {
			cfg.DefaultType = cfg.AllowedTypes[0]
		}
	}

	id := ulid.Make().String()
	flow := NewFlow(NewMachine(*p, cfg), r.orchestrator, FlowOptions{
		ID:              id,
		JourneyID:       req.JourneyID,
		Initial:         req.Initial,
		CompletionDelay: r.cfg.CompletionDelay,
		OnComplete:      func(res Result) { r.complete(id, res) },
		OnClose:         func() { r.logger.Info("purchase flow abandoned", "flow_id", id) },
		Notifier:        r.notifier,
		Recorder:        r.recorder,
		Logger:          r.logger,
	})

	r.mu.Lock()
	r.flows[id] = flow
	r.mu.Unlock()

	r.logger.Info("purchase flow started", "flow_id", id, "property_id", p.ID)
	return flow, nil
}

// Get returns a live flow.
func (r *Registry) Get(id string) (*Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[id]
	return f, ok
}

// Close closes and forgets a flow.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	f, ok := r.flows[id]
	delete(r.flows, id)
	r.mu.Unlock()

	if ok {
		f.Close()
	}
	return ok
}

// Len returns the number of live flows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flows)
}

// Sweep closes and forgets flows idle for longer than IdleTTL at now. Flows
// with a payment in flight are kept. It returns the number of flows closed.
func (r *Registry) Sweep(now time.Time) int {
	if r.cfg.IdleTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	var stale []*Flow
	for id, f := range r.flows {
		if f.State().Step == StepProcessing || now.Sub(f.LastActive()) <= r.cfg.IdleTTL {
			continue
		}
		stale = append(stale, f)
		delete(r.flows, id)
	}
	r.mu.Unlock()

	for _, f := range stale {
		f.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("swept idle purchase flows", "count", len(stale), "idle_ttl", r.cfg.IdleTTL)
	}
	return len(stale)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.cfg.IdleTTL <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Shutdown waits for in-flight payments to settle.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	flows := make([]*Flow, 0, len(r.flows))
	for _, f := range r.flows {
		flows = append(flows, f)
	}
	r.mu.RUnlock()

	for _, f := range flows {
		if err := f.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// complete publishes the result and drops the flow.
func (r *Registry) complete(id string, res Result) {
	r.mu.Lock()
	delete(r.flows, id)
	r.mu.Unlock()

	evt, err := events.NewEvent(events.EventPurchaseCompleted, events.AggregatePurchaseFlow, id, res)
	if err != nil {
		r.logger.Error("failed to build completion event", "flow_id", id, "error", err)
		return
	}
	if err := r.publisher.Publish(context.Background(), evt); err != nil {
		r.logger.Error("failed to publish completion event", "flow_id", id, "error", err)
		return
	}

	r.logger.Info("purchase flow completed", "flow_id", id, "transaction_id", res.TransactionID)
}
