// Package daemon is the HTTP gateway around the review pipeline:
// authentication, rate limiting, request validation, and the review
// and history endpoints.
package daemon

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reviewd-dev/reviewd/internal/config"
	"github.com/reviewd-dev/reviewd/internal/review"
	"github.com/reviewd-dev/reviewd/internal/storage"
	"github.com/reviewd-dev/reviewd/internal/version"
)

// Server is the HTTP API server for the daemon.
type Server struct {
	cfg        *config.Config
	db         *storage.DB
	service    *Service
	limiter    *RateLimiter
	httpServer *http.Server
	startTime  time.Time
}

// NewServer creates a daemon server around the given service.
func NewServer(cfg *config.Config, service *Service, db *storage.DB) *Server {
	s := &Server{
		cfg:       cfg,
		db:        db,
		service:   service,
		limiter:   NewRateLimiter(cfg.RateLimitPerMinute),
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/review", s.handleReview)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/reviews", s.handleListReviews)

	s.httpServer = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: mux,
	}

	return s
}

// Start runs the HTTP server until Stop or a listener error.
func (s *Server) Start() error {
	log.Printf("Starting HTTP server on %s", s.cfg.ServerAddr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	return nil
}

// API response types

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	LLMProvider string `json:"llm_provider"`
	Uptime      string `json:"uptime"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// authorize checks the Bearer credential. Returns the credential so
// the rate limiter can key on it.
func (s *Server) authorize(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.ReviewAPIKey)) != 1 {
		return "", false
	}
	return token, true
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, ok := s.authorize(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	if !s.limiter.Allow(token) {
		writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("rate limit exceeded (max %d requests per minute)",
				s.cfg.RateLimitPerMinute))
		return
	}

	// Body cap: the configured diff limit plus JSON overhead.
	maxBody := int64(s.cfg.MaxDiffSizeBytes) + 64*1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var req review.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body too large (max %d bytes)", maxBody))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	log.Printf("daemon: review request repo=%s pr=%d diff=%dB",
		req.Context.Repo, req.Context.PRNumber, len(req.Diff))

	result, err := s.service.Review(r.Context(), req)
	if err != nil {
		s.writeReviewError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeReviewError maps service errors onto HTTP statuses.
func (s *Server) writeReviewError(w http.ResponseWriter, err error) {
	var valErr *ValidationError
	switch {
	case errors.As(err, &valErr):
		status := http.StatusBadRequest
		if valErr.Oversized {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, valErr.Msg)
	case errors.Is(err, ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, review.ErrAllAnalyzersFailed):
		var analysisErr *review.AnalysisError
		msg := err.Error()
		if errors.As(err, &analysisErr) {
			var parts []string
			for role, detail := range analysisErr.Failures {
				parts = append(parts, role+": "+detail)
			}
			msg = "all analyzer tasks failed: " + strings.Join(parts, "; ")
		}
		writeError(w, http.StatusInternalServerError, msg)
	default:
		log.Printf("daemon: review failed: %v", err)
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("code review failed: %v", err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Version:     version.Version,
		LLMProvider: s.cfg.LLMProvider,
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if _, ok := s.authorize(r); !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	if s.db == nil {
		writeError(w, http.StatusNotFound, "review history not enabled")
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		record, err := s.db.GetReviewByUUID(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeJSON(w, http.StatusOK, record)
		return
	}

	limit := queryInt(r, "limit", 50)
	const maxLimit = 1000
	if limit < 1 {
		limit = 50
	} else if limit > maxLimit {
		limit = maxLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, err := s.db.ListReviews(r.URL.Query().Get("repo"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("list reviews: %v", err))
		return
	}
	if records == nil {
		records = []storage.ReviewRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reviews": records,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
