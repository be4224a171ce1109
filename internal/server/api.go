package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/drewdunne/prwatch/internal/jira"
	"github.com/drewdunne/prwatch/internal/notify"
	"github.com/drewdunne/prwatch/internal/pipeline"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/drewdunne/prwatch/internal/store"
	"github.com/drewdunne/prwatch/internal/syncer"
)

const maxBodyBytes = 1 << 20

// RepositoryView is a watched repository with its sync summary.
type RepositoryView struct {
	Provider     string     `json:"provider"`
	Owner        string     `json:"owner"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	PullRequests int        `json:"pull_requests"`
	SyncedAt     *time.Time `json:"synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

type repositoryRequest struct {
	Provider string `json:"provider"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
}

type validationRequest struct {
	Provider string `json:"provider"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Number   int    `json:"number"`
}

type jiraValidateRequest struct {
	Domain string `json:"domain"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("decoding body: %v", err))
		return false
	}
	return true
}

func (s *Server) view(repo provider.Repository) RepositoryView {
	v := RepositoryView{
		Provider: repo.Provider,
		Owner:    repo.Owner,
		Name:     repo.Name,
		URL:      repo.WebURL(),
	}
	if state, ok := s.deps.Engine.State(repo); ok {
		v.PullRequests = len(state.PullRequests)
		v.LastError = state.LastError
		if !state.SyncedAt.IsZero() {
			synced := state.SyncedAt
			v.SyncedAt = &synced
		}
	}
	return v
}

func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos := s.deps.Engine.Watched()
	views := make([]RepositoryView, 0, len(repos))
	for _, repo := range repos {
		views = append(views, s.view(repo))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddRepository(w http.ResponseWriter, r *http.Request) {
	var req repositoryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Provider == "" {
		req.Provider = provider.GitHub
	}
	if req.Provider != provider.GitHub && req.Provider != provider.GitLab {
		writeProblem(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unknown provider %q", req.Provider))
		return
	}
	if req.Owner == "" || req.Name == "" {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "owner and name are required")
		return
	}

	repo := provider.Repository{Provider: req.Provider, Owner: req.Owner, Name: req.Name, CreatedAt: time.Now().UTC()}
	// The first cycle runs to completion even if the client goes away.
	err := s.deps.Engine.Add(context.WithoutCancel(r.Context()), repo)
	if errors.Is(err, syncer.ErrAlreadyWatched) {
		writeProblem(w, http.StatusConflict, "already_watched", repo.Key()+" is already watched")
		return
	}
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.view(repo))
}

func (s *Server) handleRemoveRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := provider.ParseFullName(r.PathValue("provider"), r.PathValue("path"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.deps.Engine.Remove(repo); err != nil {
		writeProblem(w, http.StatusNotFound, "not_watched", repo.Key()+" is not watched")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Engine.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	var list []notify.Notification
	if unread, _ := strconv.ParseBool(r.URL.Query().Get("unread")); unread {
		list = s.deps.Notes.Unread()
	} else {
		list = s.deps.Notes.List()
	}
	if list == nil {
		list = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Notes.MarkRead(r.PathValue("id")); err != nil {
		writeProblem(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"marked": s.deps.Notes.MarkAllRead()})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validationRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Provider == "" {
		req.Provider = provider.GitHub
	}
	if req.Owner == "" || req.Name == "" {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "owner and name are required")
		return
	}

	result, err := s.deps.Runner.Validate(r.Context(), pipeline.Request{
		Repository:  provider.Repository{Provider: req.Provider, Owner: req.Owner, Name: req.Name},
		Number:      req.Number,
		Credentials: s.cfg.CredentialsFor(req.Provider, req.Owner, req.Name),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result.Record)
}

func (s *Server) handleListValidations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		RepositoryID: q.Get("repository"),
		TicketID:     q.Get("ticket"),
	}
	for name, dst := range map[string]*int{"pr": &filter.PRNumber, "limit": &filter.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("%s must be a non-negative integer", name))
			return
		}
		*dst = n
	}

	records, err := s.deps.Store.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []store.ValidationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetValidation(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "not_found", "validation not found")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Runner.Executions())
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, ok := s.deps.Runner.Execution(r.PathValue("id"))
	if !ok {
		writeProblem(w, http.StatusNotFound, "not_found", "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleJiraValidate(w http.ResponseWriter, r *http.Request) {
	var req jiraValidateRequest
	if !decode(w, r, &req) {
		return
	}

	valid, err := s.deps.Jira.ValidateCredential(r.Context(), jira.Credentials{
		Domain: req.Domain,
		Email:  req.Email,
		Token:  req.Token,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isValid": valid})
}
