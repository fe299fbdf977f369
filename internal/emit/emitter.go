// Package emit packages visit observations into privacy-bounded update
// events and hands them to the upload transport. The event body carries
// no user identifier; the pseudonymous agent handle travels only as a
// transport argument.
package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// Transport delivers an update event toward the shared backing store.
type Transport interface {
	PublishUpdate(ctx context.Context, agentHandle string, ev vibe.UpdateEvent) error
}

// Emitter builds and sends update events. The upload path is best-effort
// telemetry: transport failures are logged, never surfaced to learning.
type Emitter struct {
	transport Transport
}

// New creates an Emitter. transport may be nil for a device that never
// uploads, in which case EmitVisit is a no-op.
func New(transport Transport) *Emitter {
	return &Emitter{transport: transport}
}

// EmitVisit coarsens one observation into an UpdateEvent and publishes it.
func (e *Emitter) EmitVisit(ctx context.Context, agentHandle string, key cell.Key, obs vibe.Observation) {
	if e.transport == nil {
		return
	}

	ev := NewUpdateEvent(key, obs)
	if err := e.transport.PublishUpdate(ctx, agentHandle, ev); err != nil {
		log.Printf("emit: publish update for %s: %v", key.StableKey(), err)
	}
}

// NewUpdateEvent builds the flat outbound record for an observation.
func NewUpdateEvent(key cell.Key, obs vibe.Observation) vibe.UpdateEvent {
	occurredAt := obs.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	source := obs.Source
	if source == "" {
		source = "visit"
	}
	return vibe.UpdateEvent{
		ID:               uuid.NewString(),
		StableKey:        key.StableKey(),
		GeohashPrefix:    key.Prefix,
		GeohashPrecision: key.Precision,
		ReportedRegion:   obs.ReportedRegion,
		InferredRegion:   obs.InferredRegion,
		OccurredAt:       occurredAt,
		Source:           source,
		DwellMinutes:     obs.DwellMinutes,
		QualityScore:     obs.Quality,
		IsRepeatVisit:    obs.IsRepeatVisit,
	}
}

// HTTPTransport POSTs update events to the backing store's ingest endpoint.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport for the given base URL.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// PublishUpdate sends one event. The agent handle rides in a header, not
// in the event body.
func (t *HTTPTransport) PublishUpdate(ctx context.Context, agentHandle string, ev vibe.UpdateEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/v1/updates", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-Handle", agentHandle)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("updates api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("updates api status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
