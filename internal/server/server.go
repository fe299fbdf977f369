package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vibemesh/vibemesh/internal/engine"
	"github.com/vibemesh/vibemesh/internal/global"
	"github.com/vibemesh/vibemesh/internal/mesh"
	"github.com/vibemesh/vibemesh/internal/store"
)

// Server is the vibemesh HTTP API server: the boundary the host app and
// the gossip transport talk to.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	repo    *global.Repository
	mesh    *mesh.Cache
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server.
func New(db *store.DB, eng *engine.Engine, repo *global.Repository, meshCache *mesh.Cache, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		repo:    repo,
		mesh:    meshCache,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/vibe", s.handleInfer)
		r.Post("/observations", s.handleObservation)
		r.Post("/mesh/updates", s.handleMeshUpdate)
		r.Get("/cells/{stableKey}", s.handleCellState)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
