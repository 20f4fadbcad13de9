package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
)

func TestClientScore(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.MultiLabel || len(req.Labels) != 2 {
			t.Errorf("unexpected request %+v", req)
		}

		_, _ = w.Write([]byte(`{"labels":[{"label":"Oncological","score":0.95},{"label":"Neurological","score":0.1}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret", "gliclass", 0)
	scores, err := client.Score(context.Background(), "text", []string{"Oncological", "Neurological"})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if len(scores) != 2 || scores[0].Label != "Oncological" || scores[0].Score != 0.95 {
		t.Fatalf("unexpected scores: %+v", scores)
	}
}

func TestClientServerErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 0)
	_, err := client.Score(context.Background(), "text", []string{"Oncological"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}

	if err := client.Ping(context.Background()); !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ping to fail as unavailable, got %v", err)
	}
}

func TestClientBadRequestIsPlainError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad labels", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 0)
	_, err := client.Score(context.Background(), "text", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsUnavailable(err) {
		t.Fatalf("4xx must not be reported as unavailable: %v", err)
	}
}

func TestLexiconModelScores(t *testing.T) {
	t.Parallel()

	model := NewLexiconModel(nil, 3)
	text := "Renal failure and kidney injury after hepatic resection in cancer patients"

	scores, err := model.Score(context.Background(), text, []string{"Hepatorenal", "Oncological", "Cardiovascular", "Unknown"})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if len(scores) != 4 {
		t.Fatalf("expected one score per label, got %d", len(scores))
	}
	if scores[0].Score != 1 {
		t.Fatalf("expected saturated hepatorenal score, got %v", scores[0].Score)
	}
	if got := scores[1].Score; got < 0.33 || got > 0.34 {
		t.Fatalf("expected oncological score of one hit, got %v", got)
	}
	if scores[2].Score != 0 || scores[3].Score != 0 {
		t.Fatalf("expected zero scores, got %+v", scores[2:])
	}
}
