package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIInvoke_Success(t *testing.T) {
	var gotAuth string
	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"matched\": true, \"confidence\": 90, \"reason\": \"ok\"}"}}],
			"usage": {"total_tokens": 1234}
		}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend("openai", srv.URL, "sk-test", "gpt-4o-mini", 5*time.Second)
	resp, err := b.Invoke(context.Background(), OpMatchCheck, json.RawMessage(`{"policy_type":"return_exchange"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("Expected json_object response format, got %q", gotReq.ResponseFormat.Type)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("Expected system+user messages, got %+v", gotReq.Messages)
	}

	var out struct {
		Matched    bool    `json:"matched"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("Unmarshal data failed: %v", err)
	}
	if !out.Matched || out.Confidence != 90 {
		t.Errorf("Unexpected parsed data %+v", out)
	}
	if resp.TokensUsed != 1234 {
		t.Errorf("Expected 1234 tokens, got %d", resp.TokensUsed)
	}
}

func TestOpenAIInvoke_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "Rate limit reached"}}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend("openai", srv.URL, "sk-test", "gpt-4o-mini", 5*time.Second)
	_, err := b.Invoke(context.Background(), OpComplianceAnalysis, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("Expected an error on 429")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got %T: %v", err, err)
	}
	if se.StatusCode != http.StatusTooManyRequests || se.Provider != "openai" {
		t.Errorf("Unexpected StatusError %+v", se)
	}
}

func TestOpenAIInvoke_NonJSONCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "Sure! Here is my analysis..."}}]}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend("openai", srv.URL, "sk-test", "gpt-4o-mini", 5*time.Second)
	if _, err := b.Invoke(context.Background(), OpComplianceAnalysis, json.RawMessage(`{}`)); err == nil {
		t.Error("Expected an error for a non-JSON completion")
	}
}

func TestGeminiInvoke_Success(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "{\"overall_compliance_ratio\": 82}"}]}}],
			"usageMetadata": {"totalTokenCount": 900}
		}`))
	}))
	defer srv.Close()

	b := NewGeminiBackend("gemini", srv.URL, "gx-test", "gemini-2.0-flash", 5*time.Second)
	resp, err := b.Invoke(context.Background(), OpComplianceAnalysis, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if gotKey != "gx-test" {
		t.Errorf("Expected api key header, got %q", gotKey)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if resp.TokensUsed != 900 {
		t.Errorf("Expected 900 tokens, got %d", resp.TokensUsed)
	}
	var out struct {
		Ratio float64 `json:"overall_compliance_ratio"`
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil || out.Ratio != 82 {
		t.Errorf("Unexpected parsed data %+v (err %v)", out, err)
	}
}

func TestGeminiInvoke_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	b := NewGeminiBackend("gemini", srv.URL, "gx-test", "gemini-2.0-flash", 5*time.Second)
	if _, err := b.Invoke(context.Background(), OpMatchCheck, json.RawMessage(`{}`)); err == nil {
		t.Error("Expected an error for empty candidates")
	}
}

func TestInvoke_UnknownOperation(t *testing.T) {
	b := NewOpenAIBackend("openai", "http://localhost:1", "sk", "m", time.Second)
	if _, err := b.Invoke(context.Background(), OperationKind("summarize"), nil); err == nil {
		t.Error("Expected an error for an unknown operation")
	}
}

func TestEstimatedTokens(t *testing.T) {
	if EstimatedTokens(OpMatchCheck) >= EstimatedTokens(OpComplianceAnalysis) {
		t.Error("Expected the match check estimate below the compliance estimate")
	}
	if EstimatedTokens(OperationKind("other")) == 0 {
		t.Error("Expected a nonzero default estimate")
	}
}
