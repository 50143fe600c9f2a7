package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/antoniostano/vera/internal/catalog"
	"github.com/antoniostano/vera/internal/config"
	"github.com/antoniostano/vera/internal/evaluation"
	"github.com/antoniostano/vera/internal/interview"
	"github.com/antoniostano/vera/internal/observability"
	"github.com/antoniostano/vera/internal/transcribe"
)

// Pinger is the readiness view of the session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg         config.Config
	interviews  *interview.Manager
	catalog     catalog.Catalog
	transcriber *transcribe.Controller
	store       Pinger
	storeMode   string
	metrics     *observability.Metrics
	log         *zap.Logger
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, interviews *interview.Manager, cat catalog.Catalog, transcriber *transcribe.Controller, store Pinger, storeMode string, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:         cfg,
		interviews:  interviews,
		catalog:     cat,
		transcriber: transcriber,
		store:       store,
		storeMode:   storeMode,
		metrics:     metrics,
		log:         logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections are accepted by
				// default, so other sites cannot drive a candidate's
				// transcription stream if the service is exposed beyond
				// localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/roles", s.handleListRoles)
	r.Get("/v1/roles/{roleID}", s.handleGetRole)

	r.Post("/v1/interviews", s.handleStartInterview)
	r.Get("/v1/interviews", s.handleListInterviews)
	r.Get("/v1/interviews/{id}", s.handleGetInterview)
	r.Post("/v1/interviews/{id}/answers", s.handleSubmitAnswer)
	r.Post("/v1/interviews/{id}/end", s.handleEndInterview)
	r.Get("/v1/interviews/{id}/evaluation", s.handleGetEvaluation)

	r.Post("/v1/transcriptions", s.handleTranscribe)
	r.Get("/v1/transcriptions/stream", s.handleTranscribeWS)
	r.Get("/v1/transcriptions/stats", s.handleTranscribeStats)

	return r
}

// Version is stamped at build time via -ldflags; "dev" otherwise.
var Version = "dev"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    Version,
		"store_mode": s.storeMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
			return
		}
	}
	roles := 0
	if s.catalog != nil {
		roles = len(s.catalog.List())
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode,
		"roles":      roles,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondRetryable(w http.ResponseWriter, retryAfter int, code, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	respondError(w, http.StatusServiceUnavailable, code, message)
}

// respondInterviewError maps the session error taxonomy onto HTTP statuses.
func respondInterviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, catalog.ErrRoleNotFound):
		respondError(w, http.StatusNotFound, "role_not_found", err.Error())
	case errors.Is(err, interview.ErrRoleGone):
		respondError(w, http.StatusUnprocessableEntity, "role_gone", err.Error())
	case errors.Is(err, interview.ErrInvalidState):
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, interview.ErrNoEvaluation):
		respondError(w, http.StatusConflict, "no_evaluation", err.Error())
	case errors.Is(err, interview.ErrEmptyAnswer):
		respondError(w, http.StatusBadRequest, "empty_answer", err.Error())
	default:
		var pe *evaluation.ProviderError
		if errors.As(err, &pe) {
			if pe.Transient {
				respondRetryable(w, 2, "evaluation_unavailable", err.Error())
			} else {
				respondError(w, http.StatusBadGateway, "evaluation_failed", err.Error())
			}
			return
		}
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
