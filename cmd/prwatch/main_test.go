package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/drewdunne/prwatch/internal/notify"
	"github.com/drewdunne/prwatch/internal/server"
	"github.com/drewdunne/prwatch/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if want := "prwatch v" + version + "\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestValidateCommand_RequiresFlags(t *testing.T) {
	_, err := execute(t, "validate", "--repo", "acme/api")
	if err == nil {
		t.Fatal("expected an error without --pr")
	}
}

func TestValidateCommand_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  strategy: cohere\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "validate", "--config", path, "--repo", "acme/api", "--pr", "1")
	if err == nil || !strings.Contains(err.Error(), "strategy") {
		t.Errorf("error = %v, want a strategy problem", err)
	}
}

func TestValidateCommand_MissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--repo", "acme/api", "--pr", "1")
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("error = %v, want a load failure", err)
	}
}

func TestNotificationsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications" {
			t.Errorf("path = %q, want /notifications", r.URL.Path)
		}
		if got := r.URL.Query().Get("unread"); got != "true" {
			t.Errorf("unread = %q, want true", got)
		}
		json.NewEncoder(w).Encode([]notify.Notification{{
			ID:          "n-1",
			Title:       "New pull request",
			Description: "acme/api #3: PROJ-1: add thing",
			Severity:    notify.SeverityInfo,
			CreatedAt:   time.Now(),
		}})
	}))
	defer srv.Close()

	out, err := execute(t, "notifications", "--addr", srv.URL, "--unread")
	if err != nil {
		t.Fatalf("notifications error = %v", err)
	}
	for _, want := range []string{"n-1", "New pull request", "info"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNotificationsCommand_MarkRead(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if _, err := execute(t, "notifications", "--addr", srv.URL, "n-1"); err != nil {
		t.Fatalf("notifications error = %v", err)
	}
	if gotPath != "POST /notifications/n-1/read" {
		t.Errorf("request = %q, want POST /notifications/n-1/read", gotPath)
	}
}

func TestValidationsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("repository") != "github/acme/api" || q.Get("pr") != "7" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode([]store.ValidationRecord{{
			ID:              "v-1",
			RepositoryID:    "github/acme/api",
			PRNumber:        7,
			TicketID:        "PROJ-1",
			ConfidenceScore: 0.8,
			Findings:        store.Findings{Summary: "matches"},
		}})
	}))
	defer srv.Close()

	out, err := execute(t, "validations", "--addr", srv.URL, "--repo", "github/acme/api", "--pr", "7")
	if err != nil {
		t.Fatalf("validations error = %v", err)
	}
	for _, want := range []string{"v-1", "PROJ-1", "80%", "matches"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(server.ErrorResponse{Error: server.ErrorBody{Code: "not_found", Message: "notification not found"}})
	}))
	defer srv.Close()

	_, err := execute(t, "notifications", "--addr", srv.URL, "missing")
	if err == nil || !strings.Contains(err.Error(), "notification not found (not_found)") {
		t.Errorf("error = %v, want the server message", err)
	}
}
