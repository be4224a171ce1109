// Package server exposes watched repositories, notifications, validations
// and webhooks over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/jira"
	"github.com/drewdunne/prwatch/internal/logging"
	"github.com/drewdunne/prwatch/internal/notify"
	"github.com/drewdunne/prwatch/internal/runner"
	"github.com/drewdunne/prwatch/internal/store"
	"github.com/drewdunne/prwatch/internal/syncer"
	"github.com/drewdunne/prwatch/internal/webhook"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const webhookDebounce = 10 * time.Second

// CredentialChecker probes issue tracker credentials. *jira.Client
// satisfies it.
type CredentialChecker interface {
	ValidateCredential(ctx context.Context, creds jira.Credentials) (bool, error)
}

// Dependencies are the components the server exposes. Cleanup is optional.
type Dependencies struct {
	Config  *config.Config
	Engine  *syncer.Engine
	Runner  *runner.Runner
	Notes   *notify.Log
	Store   store.Store
	Jira    CredentialChecker
	Cleanup *logging.CleanupScheduler
}

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// Server is the HTTP server for prwatch.
type Server struct {
	cfg          *config.Config
	deps         Dependencies
	mux          *http.ServeMux
	httpServer   *httpServer
	httpServerMu sync.RWMutex  // protects httpServer pointer
	ready        chan struct{} // closed when server is ready to accept connections

	// background holds sync cycles started by webhooks.
	background sync.WaitGroup
}

// New creates a new Server.
func New(deps Dependencies) *Server {
	s := &Server{
		cfg:   deps.Config,
		deps:  deps,
		mux:   http.NewServeMux(),
		ready: make(chan struct{}),
	}
	s.routes()
	return s
}

// Ready returns a channel that is closed when the server is ready to accept connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /repositories", s.handleListRepositories)
	s.mux.HandleFunc("POST /repositories", s.handleAddRepository)
	s.mux.HandleFunc("DELETE /repositories/{provider}/{path...}", s.handleRemoveRepository)
	s.mux.HandleFunc("POST /sync", s.handleSync)

	s.mux.HandleFunc("GET /notifications", s.handleListNotifications)
	s.mux.HandleFunc("POST /notifications/read", s.handleMarkAllRead)
	s.mux.HandleFunc("POST /notifications/{id}/read", s.handleMarkRead)

	s.mux.HandleFunc("POST /validations", s.handleValidate)
	s.mux.HandleFunc("GET /validations", s.handleListValidations)
	s.mux.HandleFunc("GET /validations/{id}", s.handleGetValidation)
	s.mux.HandleFunc("GET /executions", s.handleListExecutions)
	s.mux.HandleFunc("GET /executions/{id}", s.handleGetExecution)

	s.mux.HandleFunc("POST /jira/validate", s.handleJiraValidate)

	dispatch := webhook.Debounce(webhookDebounce, s.handleWebhookEvent)
	s.mux.Handle("POST /webhook/github", webhook.NewGitHubHandler(s.cfg.Providers.GitHub.WebhookSecret, dispatch))
	s.mux.Handle("POST /webhook/gitlab", webhook.NewGitLabHandler(s.cfg.Providers.GitLab.WebhookSecret, dispatch))
}

type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth responds with server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]any{
		"watched_repositories": len(s.deps.Engine.Watched()),
		"unread_notifications": len(s.deps.Notes.Unread()),
		"store":                "ok",
	}

	status := "ok"
	if p, ok := s.deps.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: status, Checks: checks})
}

// handleWebhookEvent syncs the event's repository in the background when it
// is watched.
func (s *Server) handleWebhookEvent(ctx context.Context, ev *webhook.Event) error {
	repo := ev.Repository()
	log := clog.FromContext(ctx).With("repo", repo.Key()).With("action", ev.Action).With("pr", ev.Number)

	if !s.deps.Engine.IsWatched(repo) {
		log.Debug("Ignoring webhook for unwatched repository")
		return nil
	}

	log.Info("Webhook triggered sync")
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.deps.Engine.Trigger(ctx, repo); err != nil {
			log.With("error", err).Debug("Webhook sync did not complete")
		}
	}()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
