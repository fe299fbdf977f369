package global

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// ErrNotFound indicates the backing store has no aggregate for the cell.
// The repository treats it the same as any other fetch failure.
var ErrNotFound = errors.New("global: cell not found")

// RemoteClient fetches the shared aggregate for a cell from the backing
// store.
type RemoteClient interface {
	FetchGlobalState(ctx context.Context, key cell.Key) (*vibe.GlobalState, error)
}

// HTTPClient reads shared state over the backing store's JSON API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a remote client for the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// remoteState is the wire form of a shared aggregate record.
type remoteState struct {
	Vector12     []float64 `json:"vector12"`
	SampleCount  int       `json:"sample_count"`
	Confidence12 []float64 `json:"confidence12"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FetchGlobalState GETs the aggregate record by stable key.
func (c *HTTPClient) FetchGlobalState(ctx context.Context, key cell.Key) (*vibe.GlobalState, error) {
	url := fmt.Sprintf("%s/v1/cells/%s", c.baseURL, key.StableKey())
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shared state api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shared state api status %d: %s", resp.StatusCode, body)
	}

	var rs remoteState
	if err := json.Unmarshal(body, &rs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	st := vibe.GlobalState{
		Key:         key,
		SampleCount: rs.SampleCount,
		UpdatedAt:   rs.UpdatedAt,
	}
	vec, ok := vibe.FromSlice(rs.Vector12)
	if !ok {
		// Malformed remote vector: substitute the neutral default rather
		// than failing the read.
		st.Vector = vibe.Neutral()
		st.SampleCount = 0
		return &st, nil
	}
	st.Vector = vec
	if conf, ok := vibe.FromSlice(rs.Confidence12); ok {
		st.Confidence = conf
	}
	return &st, nil
}
