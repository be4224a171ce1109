package webhook

import (
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/metrics"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/xanzy/go-gitlab"
)

// GitLabHandler handles GitLab webhook requests.
type GitLabHandler struct {
	secret   string
	dispatch Dispatcher
}

// NewGitLabHandler creates a new GitLab webhook handler. Requests are
// rejected while secret is empty.
func NewGitLabHandler(secret string, dispatch Dispatcher) *GitLabHandler {
	return &GitLabHandler{
		secret:   secret,
		dispatch: dispatch,
	}
}

// ServeHTTP implements http.Handler.
func (h *GitLabHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		http.Error(w, "webhook secret not configured", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	token := r.Header.Get("X-Gitlab-Token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	metrics.WebhookReceived(provider.GitLab)
	eventType := gitlab.HookEventType(r)
	log := clog.FromContext(r.Context()).With("event", string(eventType))

	parsed, err := gitlab.ParseWebhook(eventType, body)
	if err != nil {
		log.With("error", err).Debug("Ignoring webhook")
		w.WriteHeader(http.StatusOK)
		return
	}

	mr, ok := parsed.(*gitlab.MergeEvent)
	if !ok {
		log.Debug("Ignoring non merge request event")
		w.WriteHeader(http.StatusOK)
		return
	}

	repo, err := provider.ParseFullName(provider.GitLab, mr.Project.PathWithNamespace)
	if err != nil {
		http.Error(w, "invalid project path", http.StatusBadRequest)
		return
	}

	ev := &Event{
		Provider:   provider.GitLab,
		Owner:      repo.Owner,
		Name:       repo.Name,
		Number:     mr.ObjectAttributes.IID,
		Action:     mr.ObjectAttributes.Action,
		Delivery:   r.Header.Get("X-Gitlab-Event-UUID"),
		ReceivedAt: time.Now().UTC(),
	}
	if mr.User != nil {
		ev.Actor = mr.User.Username
	}

	if err := h.dispatch(r.Context(), ev); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
