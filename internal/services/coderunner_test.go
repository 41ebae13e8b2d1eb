package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRun_ValidatesInput(t *testing.T) {
	runner := NewCodeRunner("id", "secret", "http://unused")

	_, err := runner.Run(context.Background(), RunCodeRequest{Code: "", Language: "python"})
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected ValidationError for empty code, got %v", err)
	}

	_, err = runner.Run(context.Background(), RunCodeRequest{Code: "print(1)", Language: "cobol"})
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected ValidationError for unsupported language, got %v", err)
	}
}

func TestRun_Unconfigured(t *testing.T) {
	runner := NewCodeRunner("", "", "http://unused")

	result, err := runner.Run(context.Background(), RunCodeRequest{Code: "print(1)", Language: "python"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Success {
		t.Error("Unconfigured runner should report failure, not success")
	}
}

func TestRun_MapsLanguagesAndRelaysOutput(t *testing.T) {
	var gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		gotLang, _ = body["language"].(string)
		json.NewEncoder(w).Encode(map[string]interface{}{"output": "42\n", "statusCode": 200})
	}))
	defer server.Close()

	runner := NewCodeRunner("id", "secret", server.URL)
	result, err := runner.Run(context.Background(), RunCodeRequest{Code: "print(42)", Language: "python"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Success || result.Output != "42\n" {
		t.Errorf("Expected successful run with output, got %+v", result)
	}
	if gotLang != "python3" {
		t.Errorf("Expected language python3, got %q", gotLang)
	}
}

func TestRun_UpstreamErrorDegradesGracefully(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "Daily limit reached"})
	}))
	defer server.Close()

	runner := NewCodeRunner("id", "secret", server.URL)
	result, err := runner.Run(context.Background(), RunCodeRequest{Code: "x", Language: "javascript"})
	if err != nil {
		t.Fatalf("Upstream failure must not surface as an error: %v", err)
	}
	if result.Success {
		t.Error("Expected unsuccessful result for upstream error")
	}
	if result.Output != "Daily limit reached" {
		t.Errorf("Expected upstream message, got %q", result.Output)
	}
}
