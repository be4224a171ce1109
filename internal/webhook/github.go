package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/metrics"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/google/go-github/v60/github"
)

const maxPayloadBytes = 25 << 20

// GitHubHandler handles GitHub webhook requests.
type GitHubHandler struct {
	secret   string
	dispatch Dispatcher
}

// NewGitHubHandler creates a new GitHub webhook handler. Requests are
// rejected while secret is empty.
func NewGitHubHandler(secret string, dispatch Dispatcher) *GitHubHandler {
	return &GitHubHandler{
		secret:   secret,
		dispatch: dispatch,
	}
}

// ServeHTTP implements http.Handler.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		http.Error(w, "webhook secret not configured", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		http.Error(w, "missing signature", http.StatusUnauthorized)
		return
	}
	if !h.verifySignature(body, signature) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	metrics.WebhookReceived(provider.GitHub)
	eventType := github.WebHookType(r)
	log := clog.FromContext(r.Context()).With("event", eventType).With("delivery", github.DeliveryID(r))

	parsed, err := github.ParseWebHook(eventType, body)
	if err != nil {
		// Event types go-github does not know are not ours to handle.
		log.With("error", err).Debug("Ignoring webhook")
		w.WriteHeader(http.StatusOK)
		return
	}

	pr, ok := parsed.(*github.PullRequestEvent)
	if !ok {
		log.Debug("Ignoring non pull request event")
		w.WriteHeader(http.StatusOK)
		return
	}

	ev := &Event{
		Provider:   provider.GitHub,
		Owner:      pr.GetRepo().GetOwner().GetLogin(),
		Name:       pr.GetRepo().GetName(),
		Number:     pr.GetNumber(),
		Action:     pr.GetAction(),
		Actor:      pr.GetSender().GetLogin(),
		Delivery:   github.DeliveryID(r),
		ReceivedAt: time.Now().UTC(),
	}
	if ev.Owner == "" || ev.Name == "" {
		http.Error(w, "payload has no repository", http.StatusBadRequest)
		return
	}

	if err := h.dispatch(r.Context(), ev); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// verifySignature verifies the GitHub webhook signature.
func (h *GitHubHandler) verifySignature(payload []byte, signature string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	return hmac.Equal(sig, expected)
}
