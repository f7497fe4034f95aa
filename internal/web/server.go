package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/district"
	"github.com/bure-project/bure/internal/estimate"
	"github.com/bure-project/bure/internal/model"
	"github.com/bure-project/bure/internal/store"
)

// Server bundles the HTTP surface: district catalog, picker sessions, rent
// estimates, listings, scrape runs and the basemap tile proxy.
type Server struct {
	registry  *district.Registry
	store     store.Store
	estimator *estimate.Estimator
	sessions  *Sessions
	tiles     *TileProxy
}

func NewServer(reg *district.Registry, st store.Store, est *estimate.Estimator, sessions *Sessions, tiles *TileProxy) *Server {
	return &Server{
		registry:  reg,
		store:     st,
		estimator: est,
		sessions:  sessions,
		tiles:     tiles,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/districts", s.handleDistricts)
		r.Get("/listings", s.handleListings)
		r.Get("/runs", s.handleRuns)
		r.Get("/tilecache", s.handleTileCacheStats)

		r.Route("/picker", func(r chi.Router) {
			r.Post("/", s.handlePickerCreate)
			r.Get("/{id}", s.handlePickerGet)
			r.Post("/{id}/mode", s.handlePickerMode)
			r.Post("/{id}/toggle/{code}", s.handlePickerToggle)
		})
	})

	r.Post("/estimate", s.handleEstimate)

	if s.tiles != nil {
		r.Get("/tiles/{z}/{x}/{y}.png", s.handleTile)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListingFilter{
		District: q.Get("district"),
		MinPrice: queryInt(q.Get("min_price")),
		MaxPrice: queryInt(q.Get("max_price")),
		Limit:    queryInt(q.Get("limit")),
		Offset:   queryInt(q.Get("offset")),
	}
	if v := q.Get("beds"); v != "" {
		filter.Beds, _ = strconv.ParseFloat(v, 64)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}

	listings, err := s.store.ListListings(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.store.ListScrapeRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.ScrapeRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handlePickerCreate(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, sess.View(s.sessions.TTL()))
}

func (s *Server) handlePickerGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View(s.sessions.TTL()))
}

func (s *Server) handlePickerMode(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.SetMode(r.Form.Get("mode")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View(s.sessions.TTL()))
}

func (s *Server) handlePickerToggle(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	code := chi.URLParam(r, "code")
	if _, ok := s.registry.Get(code); !ok {
		writeError(w, http.StatusNotFound, eris.Errorf("web: unknown district %s", code))
		return
	}
	sess.Toggle(code)
	writeJSON(w, http.StatusOK, sess.View(s.sessions.TTL()))
}

// handleEstimate reads the submitted search form. Both input modes submit
// the selection under the same repeated locations field.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req := model.EstimateRequest{
		Locations: r.Form["locations"],
		Mode:      model.SearchMode(r.Form.Get("search_type")),
		Sqft:      queryInt(r.Form.Get("sqft")),
	}
	if req.Mode == "" {
		req.Mode = model.SearchModeList
	}
	if v := r.Form.Get("beds"); v != "" {
		req.Beds, _ = strconv.ParseFloat(v, 64)
	}
	if v := r.Form.Get("baths"); v != "" {
		req.Baths, _ = strconv.ParseFloat(v, 64)
	}
	for _, a := range r.Form["amenities"] {
		if slug := model.AmenitySlug(a); slug != "" {
			req.Amenities = append(req.Amenities, slug)
		}
	}

	if len(req.Locations) == 0 {
		writeError(w, http.StatusBadRequest, eris.New("web: at least one location is required"))
		return
	}

	estimates, err := s.estimator.Estimate(r.Context(), req)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, eris.New("web: no trained model for requested district"))
			return
		}
		if strings.Contains(err.Error(), "unknown district") {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":      req.Mode,
		"estimates": estimates,
	})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	z := queryInt(chi.URLParam(r, "z"))
	x := queryInt(chi.URLParam(r, "x"))
	y := queryInt(chi.URLParam(r, "y"))

	data, ct, err := s.tiles.Fetch(r.Context(), z, x, y)
	if err != nil {
		zap.L().Error("basemap tile fetch failed", zap.Error(err))
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

func (s *Server) handleTileCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.tiles == nil || s.tiles.cache == nil {
		writeJSON(w, http.StatusOK, TileCacheStats{})
		return
	}
	writeJSON(w, http.StatusOK, s.tiles.cache.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("web: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
