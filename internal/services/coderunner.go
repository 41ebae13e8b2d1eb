package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// CodeRunner proxies code execution to the JDoodle API. The server never
// executes user code itself; it only relays the program output. Pass/fail
// judgment against test cases happens on the client, which reports the
// aggregate pass count at submit time.
type CodeRunner struct {
	clientID     string
	clientSecret string
	url          string
	httpClient   *http.Client
}

func NewCodeRunner(clientID, clientSecret, url string) *CodeRunner {
	return &CodeRunner{
		clientID:     clientID,
		clientSecret: clientSecret,
		url:          url,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
	}
}

type RunCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin,omitempty"`
}

type RunCodeResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// langMap translates the client's language names into JDoodle's.
var langMap = map[string]string{
	"cpp":        "cpp17",
	"java":       "java",
	"python":     "python3",
	"javascript": "nodejs",
	"c":          "c",
	"csharp":     "csharp",
}

// Run executes one snippet. Upstream failures come back as an unsuccessful
// result with a safe message, never an error the handler would turn into a
// 500.
func (c *CodeRunner) Run(ctx context.Context, req RunCodeRequest) (*RunCodeResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, &ValidationError{Fields: map[string]string{"code": "Code is required"}}
	}
	lang, ok := langMap[strings.ToLower(strings.TrimSpace(req.Language))]
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"language": "Unsupported language"}}
	}

	if c.clientID == "" || c.clientSecret == "" {
		return &RunCodeResult{Success: false, Output: "Code execution is not configured on this server."}, nil
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
		"script":       req.Code,
		"stdin":        req.Stdin,
		"language":     lang,
		"versionIndex": "0",
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build execution request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("Code execution request failed: %v", err)
		return &RunCodeResult{Success: false, Output: "Code execution service is unavailable. Please try again."}, nil
	}
	defer resp.Body.Close()

	var out struct {
		Output     string `json:"output"`
		StatusCode int    `json:"statusCode"`
		Error      string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Printf("Code execution response unreadable: %v", err)
		return &RunCodeResult{Success: false, Output: "Code execution service returned an unreadable response."}, nil
	}

	if resp.StatusCode != http.StatusOK || out.Error != "" {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("Execution failed with status %d", resp.StatusCode)
		}
		return &RunCodeResult{Success: false, Output: msg}, nil
	}

	return &RunCodeResult{Success: true, Output: out.Output}, nil
}
