// Package dispatch is the HTTP client for the external dispatch engine,
// which evaluates strategy filters against the case book and executes
// channel actions.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/collectline/dunlin/internal/domain"
)

// Client talks to the dispatch engine's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a dispatch client from config.
func New(cfg domain.DispatchConfig) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// RunState is the engine's view of an execution run.
type RunState struct {
	ID             string           `json:"id"`
	Status         domain.RunStatus `json:"status"`
	TotalProcessed int              `json:"totalProcessed"`
	SuccessCount   int              `json:"successCount"`
	FailedCount    int              `json:"failedCount"`
	ErrorSummary   string           `json:"errorSummary,omitempty"`
}

// BatchState is the engine's view of a batch job.
type BatchState struct {
	ID         string           `json:"id"`
	Status     domain.RunStatus `json:"status"`
	TotalCases int              `json:"totalCases"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
}

type triggerRequest struct {
	RuleID      string             `json:"ruleId"`
	Expression  string             `json:"expression"`
	Channel     string             `json:"channel"`
	TemplateID  string             `json:"templateId"`
	TriggerType domain.TriggerType `json:"triggerType"`
}

// TriggerRun asks the engine to start an execution run for the rule and
// returns the engine's run identifier.
func (c *Client) TriggerRun(ctx context.Context, rule *domain.Rule, trigger domain.TriggerType) (string, error) {
	body := triggerRequest{
		RuleID:      rule.ID,
		Expression:  rule.Expression,
		Channel:     string(rule.Channel.Type),
		TemplateID:  rule.Channel.TemplateID,
		TriggerType: trigger,
	}

	var state RunState
	if err := c.post(ctx, "/runs", body, &state); err != nil {
		return "", err
	}
	return state.ID, nil
}

// RunStatus fetches the current state of a run.
func (c *Client) RunStatus(ctx context.Context, remoteID string) (*RunState, error) {
	var state RunState
	if err := c.get(ctx, "/runs/"+remoteID, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SubmitBatch streams a case file to the engine and returns the engine's
// batch identifier. The file is passed through untouched; parsing and
// validation happen engine-side.
func (c *Client) SubmitBatch(ctx context.Context, kind domain.BatchKind, fileName string, file io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("failed to build batch upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read batch file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize batch upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batches/"+string(kind), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var state BatchState
	if err := c.do(req, &state); err != nil {
		return "", err
	}
	return state.ID, nil
}

// BatchStatus fetches the current state of a batch job.
func (c *Client) BatchStatus(ctx context.Context, remoteID string) (*BatchState, error) {
	var state BatchState
	if err := c.get(ctx, "/batches/"+remoteID, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatch engine returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode dispatch response: %w", err)
	}
	return nil
}
