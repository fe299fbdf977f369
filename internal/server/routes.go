package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// defaultPrecision is the cell granularity used when the caller doesn't
// specify one. Seven geohash characters is roughly a city block.
const defaultPrecision = 7

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	agentID := q.Get("agent_id")
	if agentID == "" {
		http.Error(w, `{"error":"agent_id required"}`, http.StatusBadRequest)
		return
	}

	key, ok := cellFromQuery(w, q.Get("geohash"), q.Get("lat"), q.Get("lon"), q.Get("precision"))
	if !ok {
		return
	}

	vector := s.engine.InferVector(r.Context(), agentID, key)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"stable_key": key.StableKey(),
		"vector":     vector[:],
		"dimensions": vibe.DimensionNames[:],
	})
}

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID        string   `json:"agent_id"`
		Lat            float64  `json:"lat"`
		Lon            float64  `json:"lon"`
		Precision      int      `json:"precision"`
		OccurredAt     string   `json:"occurred_at"`
		DwellMinutes   int      `json:"dwell_minutes"`
		IsRepeatVisit  bool     `json:"is_repeat_visit"`
		Quality        float64  `json:"quality_score"`
		Rating         float64  `json:"rating"`
		PeerExchange   bool     `json:"peer_exchange"`
		RichExchange   bool     `json:"rich_exchange"`
		ReportedRegion string   `json:"reported_region"`
		InferredRegion string   `json:"inferred_region"`
		Source         string   `json:"source"`
		Homebase       *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"homebase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, `{"error":"agent_id required"}`, http.StatusBadRequest)
		return
	}

	precision := req.Precision
	if precision == 0 {
		precision = defaultPrecision
	}
	key := cell.FromLatLon(req.Lat, req.Lon, precision)

	occurredAt := time.Now()
	if req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			http.Error(w, `{"error":"occurred_at must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		occurredAt = t
	}

	obs := vibe.Observation{
		OccurredAt:     occurredAt,
		IsRepeatVisit:  req.IsRepeatVisit,
		DwellMinutes:   req.DwellMinutes,
		Quality:        req.Quality,
		Rating:         req.Rating,
		PeerExchange:   req.PeerExchange,
		RichExchange:   req.RichExchange,
		Latitude:       req.Lat,
		Longitude:      req.Lon,
		ReportedRegion: req.ReportedRegion,
		InferredRegion: req.InferredRegion,
		Source:         req.Source,
	}

	var homebase *vibe.Homebase
	if req.Homebase != nil {
		homebase = &vibe.Homebase{Latitude: req.Homebase.Lat, Longitude: req.Homebase.Lon}
	}

	delta, err := s.engine.LearnFromObservation(r.Context(), req.AgentID, key, obs, homebase)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"stable_key":  key.StableKey(),
		"visit_count": delta.VisitCount,
		"delta":       delta.Delta[:],
	})
}

func (s *Server) handleMeshUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Geohash    string    `json:"geohash"`
		Precision  int       `json:"precision"`
		Delta      []float64 `json:"delta"`
		ReceivedAt string    `json:"received_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Geohash == "" {
		http.Error(w, `{"error":"geohash required"}`, http.StatusBadRequest)
		return
	}

	delta, ok := vibe.FromSlice(req.Delta)
	if !ok {
		http.Error(w, `{"error":"delta must have 12 dimensions"}`, http.StatusBadRequest)
		return
	}

	precision := req.Precision
	if precision == 0 {
		precision = len(req.Geohash)
	}
	if precision != len(req.Geohash) {
		http.Error(w, `{"error":"precision does not match geohash length"}`, http.StatusBadRequest)
		return
	}
	key := cell.Key{Prefix: req.Geohash, Precision: precision}

	receivedAt := time.Now()
	if req.ReceivedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			http.Error(w, `{"error":"received_at must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		receivedAt = t
	}

	if err := s.mesh.StoreUpdate(key, delta, receivedAt); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleCellState(w http.ResponseWriter, r *http.Request) {
	key, err := cell.ParseStableKey(chi.URLParam(r, "stableKey"))
	if err != nil {
		http.Error(w, `{"error":"invalid stable key"}`, http.StatusBadRequest)
		return
	}

	st := s.repo.GlobalState(r.Context(), key)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"stable_key":   st.Key.StableKey(),
		"vector":       st.Vector[:],
		"sample_count": st.SampleCount,
		"confidence":   st.Confidence[:],
		"updated_at":   st.UpdatedAt,
	})
}

// cellFromQuery resolves a cell key from either an explicit geohash or a
// lat/lon pair. Writes the error response itself and returns ok=false on
// bad input.
func cellFromQuery(w http.ResponseWriter, geohashStr, latStr, lonStr, precStr string) (cell.Key, bool) {
	if geohashStr != "" {
		return cell.Key{Prefix: geohashStr, Precision: len(geohashStr)}, true
	}

	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		http.Error(w, `{"error":"geohash or lat/lon required"}`, http.StatusBadRequest)
		return cell.Key{}, false
	}

	precision := defaultPrecision
	if precStr != "" {
		p, err := strconv.Atoi(precStr)
		if err != nil || p < 1 || p > 12 {
			http.Error(w, `{"error":"precision must be 1-12"}`, http.StatusBadRequest)
			return cell.Key{}, false
		}
		precision = p
	}
	return cell.FromLatLon(lat, lon, precision), true
}
