package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// Client talks to an external inference service exposing a zero-shot scoring model.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

var _ ports.ScoringModel = (*Client)(nil)

// NewClient creates a reusable HTTP client. A zero timeout defaults to 15s.
func NewClient(endpoint, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		http:     &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	Model      string   `json:"model,omitempty"`
	Text       string   `json:"text"`
	Labels     []string `json:"labels"`
	MultiLabel bool     `json:"multi_label"`
}

type scoreResponse struct {
	Labels []domain.LabelScore `json:"labels"`
}

// Load asks the service to have the model resident and verifies it answers.
func (c *Client) Load(ctx context.Context) error {
	payload := map[string]string{"model": c.model}
	if err := c.post(ctx, "/load", payload, nil); err != nil {
		return err
	}
	return nil
}

// Score sends the text and candidate labels; the service returns one score per label.
func (c *Client) Score(ctx context.Context, text string, labels []string) ([]domain.LabelScore, error) {
	var resp scoreResponse
	err := c.post(ctx, "/classify", scoreRequest{
		Model:      c.model,
		Text:       text,
		Labels:     labels,
		MultiLabel: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

// Ping hits the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.MarkAs(err, domain.ErrModelUnavailable, "health request")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return domain.MarkAs(nil, domain.ErrModelUnavailable, "health status "+resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.MarkAs(err, domain.ErrModelUnavailable, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := errors.Newf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
		if resp.StatusCode >= http.StatusInternalServerError {
			return errors.Mark(err, domain.ErrModelUnavailable)
		}
		return err
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
