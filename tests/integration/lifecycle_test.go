//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Dunlin strategy
// service. They exercise the full lifecycle over HTTP:
//
//	master data → strategy draft → compile → trigger → status tracking
//
// A running Dunlin instance and a reachable dispatch engine are required.
// Run with: go test -tags=integration -v ./tests/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("DUNLIN_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

type Rule struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Expression string `json:"expression"`
}

type Run struct {
	ID          string `json:"id"`
	RuleID      string `json:"ruleId"`
	Status      string `json:"status"`
	CompletedAt string `json:"completedAt"`
}

type Template struct {
	ID string `json:"id"`
}

func doRequest(t *testing.T, config TestConfig, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, config.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}

	return resp.StatusCode
}

func seedMasterData(t *testing.T, config TestConfig) {
	t.Helper()

	entries := []struct {
		category string
		code     string
		value    string
	}{
		{"BUCKET", "X", "Pre-delinquent"},
		{"BUCKET", "B1", "1-30 days"},
		{"LANGUAGE", "en", "English"},
	}
	for i, e := range entries {
		status := doRequest(t, config, "POST", "/master-data/"+e.category, map[string]any{
			"code": e.code, "value": e.value, "isActive": true, "sort": i + 1,
		}, nil)
		if status != http.StatusCreated {
			t.Fatalf("Failed to seed %s/%s: status %d", e.category, e.code, status)
		}
	}
}

func createTemplate(t *testing.T, config TestConfig) string {
	t.Helper()

	var tpl Template
	status := doRequest(t, config, "POST", "/templates", map[string]any{
		"channel":      "SMS",
		"templateName": fmt.Sprintf("Integration Reminder %d", time.Now().UnixNano()),
		"language":     "en",
		"body":         "Dear {name}, your EMI of {amount} is due.",
		"variables":    []string{"name", "amount"},
	}, &tpl)
	if status != http.StatusCreated {
		t.Fatalf("Failed to create template: status %d", status)
	}
	return tpl.ID
}

// TestStrategyLifecycle walks a strategy from draft to a terminal execution
// run, verifying every intermediate API surface along the way.
func TestStrategyLifecycle(t *testing.T) {
	config := getTestConfig()

	if status := doRequest(t, config, "GET", "/health", nil, nil); status != http.StatusOK {
		t.Skipf("Dunlin not reachable at %s", config.BaseURL)
	}

	seedMasterData(t, config)
	templateID := createTemplate(t, config)

	var rule Rule
	status := doRequest(t, config, "POST", "/strategies", map[string]any{
		"name":       fmt.Sprintf("Integration Strategy %d", time.Now().UnixNano()),
		"status":     "ACTIVE",
		"channel":    "SMS",
		"templateId": templateID,
		"criteria": []map[string]any{
			{"fieldId": "dpd", "comparison": "Greater Than", "min": "30"},
			{"fieldId": "bucket", "selectedCodes": []string{"X", "B1"}},
		},
		"schedule": map[string]any{
			"frequency": "DAILY",
			"time":      "09:30",
		},
	}, &rule)
	if status != http.StatusCreated {
		t.Fatalf("Failed to create strategy: status %d", status)
	}
	if rule.Expression == "" {
		t.Fatal("Expected a compiled CEL expression")
	}
	t.Logf("Created strategy %s with expression %q", rule.ID, rule.Expression)

	defer doRequest(t, config, "DELETE", "/strategies/"+rule.ID, nil, nil)

	var run Run
	status = doRequest(t, config, "POST", "/strategies/"+rule.ID+"/trigger", nil, &run)
	if status != http.StatusAccepted {
		t.Fatalf("Failed to trigger strategy: status %d", status)
	}
	if run.Status != "INITIATED" {
		t.Fatalf("Expected INITIATED run, got %s", run.Status)
	}

	// The observer polls the dispatch engine every 2 seconds; allow a few
	// cycles for the run to reach a terminal status.
	deadline := time.Now().Add(30 * time.Second)
	for {
		var current Run
		if status := doRequest(t, config, "GET", "/runs/"+run.ID, nil, &current); status != http.StatusOK {
			t.Fatalf("Failed to fetch run: status %d", status)
		}

		switch current.Status {
		case "COMPLETED", "FAILED", "PARTIAL":
			if current.CompletedAt == "" {
				t.Error("Terminal run has no completedAt")
			}
			t.Logf("Run %s finished with status %s", run.ID, current.Status)
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("Run %s did not reach a terminal status, last seen %s", run.ID, current.Status)
		}
		time.Sleep(2 * time.Second)
	}
}

// TestIncompleteCriterionDropped verifies the compiler's drop policy: a
// criterion missing its operand is omitted rather than rejected.
func TestIncompleteCriterionDropped(t *testing.T) {
	config := getTestConfig()

	if status := doRequest(t, config, "GET", "/health", nil, nil); status != http.StatusOK {
		t.Skipf("Dunlin not reachable at %s", config.BaseURL)
	}

	templateID := createTemplate(t, config)

	var rule Rule
	status := doRequest(t, config, "POST", "/strategies", map[string]any{
		"name":       fmt.Sprintf("Drop Policy %d", time.Now().UnixNano()),
		"channel":    "SMS",
		"templateId": templateID,
		"criteria": []map[string]any{
			{"fieldId": "dpd", "comparison": "Greater Than", "min": "30"},
			{"fieldId": "due_amount", "comparison": "Less Than"}, // no operand
		},
		"schedule": map[string]any{
			"frequency": "DAILY",
			"time":      "10:00",
		},
	}, &rule)
	if status != http.StatusCreated {
		t.Fatalf("Failed to create strategy: status %d", status)
	}
	defer doRequest(t, config, "DELETE", "/strategies/"+rule.ID, nil, nil)

	if rule.Expression != "dpd > 30.0" {
		t.Errorf("Expected incomplete criterion dropped, expression = %q", rule.Expression)
	}
}
