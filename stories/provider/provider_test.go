package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

func TestOpenAI_Complete_SendsSingleStatelessRequest(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  A fjord tale.  "}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAI("k", "", WithBaseURL(srv.URL+"/"), WithRetryPolicy(NoRetry()))
	got, err := c.Complete(context.Background(), stories.CompletionRequest{
		Messages:    []stories.Message{{Role: stories.RoleUser, Content: "Write a story."}},
		Temperature: 0.8,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "A fjord tale." {
		t.Fatalf("got=%q", got)
	}
	if body["model"] != DefaultOpenAIModel {
		t.Fatalf("model=%v", body["model"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages=%v, want exactly one", msgs)
	}
	if body["temperature"] != 0.8 {
		t.Fatalf("temperature=%v", body["temperature"])
	}
}

func TestOpenAI_Complete_RetriesServerError(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAI("k", "m", WithBaseURL(srv.URL+"/"), WithRetryPolicy(fastPolicy(3)))
	got, err := c.Complete(context.Background(), stories.CompletionRequest{
		Messages: []stories.Message{{Role: stories.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("got=%q calls=%d", got, calls)
	}
}

func TestOpenAI_CompleteJSON_UsesResponsesSchema(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			t.Errorf("path=%s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"r1","object":"response","created_at":1,"status":"completed","model":"m",
			"output":[{"type":"message","id":"msg1","status":"completed","role":"assistant",
			"content":[{"type":"output_text","text":"{\"names\":[\"Freya\",\"Astrid\"]}","annotations":[]}]}]}`)
	}))
	defer srv.Close()

	type names struct {
		Names []string `json:"names"`
	}
	var out names
	c := NewOpenAI("k", "m", WithBaseURL(srv.URL+"/"), WithRetryPolicy(NoRetry()))
	err := c.CompleteJSON(context.Background(), stories.StructuredRequest{
		Name:         "Names",
		Instructions: "List names.",
		Input:        "Freya and Astrid walk by the fjord.",
		Schema:       GenerateSchema[names](),
	}, &out)
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if len(out.Names) != 2 || out.Names[0] != "Freya" {
		t.Fatalf("names=%v", out.Names)
	}
	text, _ := body["text"].(map[string]any)
	format, _ := text["format"].(map[string]any)
	if format["type"] != "json_schema" || format["strict"] != true {
		t.Fatalf("format=%v", format)
	}
}

func TestAnthropic_Complete_SplitsSystemPrompt(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path=%s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"m1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"A summary."}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":2}}`)
	}))
	defer srv.Close()

	c := NewAnthropic("k", "claude", WithBaseURL(srv.URL+"/"), WithRetryPolicy(NoRetry()))
	got, err := c.Complete(context.Background(), stories.CompletionRequest{
		Messages: []stories.Message{
			{Role: stories.RoleSystem, Content: "Be brief."},
			{Role: stories.RoleUser, Content: "Summarize."},
		},
		Temperature: 0.8,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "A summary." {
		t.Fatalf("got=%q", got)
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 1 {
		t.Fatalf("messages=%v, want only the user turn", msgs)
	}
	if body["system"] == nil {
		t.Fatalf("expected system prompt in request")
	}
	if body["max_tokens"] != float64(1024) {
		t.Fatalf("max_tokens=%v", body["max_tokens"])
	}
}

type scriptedCompleter struct {
	reply string
	got   stories.CompletionRequest
}

func (s *scriptedCompleter) Complete(_ context.Context, req stories.CompletionRequest) (string, error) {
	s.got = req
	return s.reply, nil
}

func TestJSONPrompted_AppendsSchemaAndDecodesFencedReply(t *testing.T) {
	t.Parallel()

	type sentiment struct {
		Label    string  `json:"label"`
		Polarity float64 `json:"polarity"`
	}
	fake := &scriptedCompleter{reply: "```json\n{\"label\":\"positive\",\"polarity\":0.6}\n```"}
	var out sentiment
	err := JSONPrompted{Completer: fake}.CompleteJSON(context.Background(), stories.StructuredRequest{
		Name:         "Sentiment",
		Instructions: "Score it.",
		Input:        "A happy story.",
		Schema:       GenerateSchema[sentiment](),
	}, &out)
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if out.Label != "positive" || out.Polarity != 0.6 {
		t.Fatalf("out=%+v", out)
	}
	if len(fake.got.Messages) != 2 || !strings.Contains(fake.got.Messages[0].Content, `"polarity"`) {
		t.Fatalf("system prompt missing schema: %+v", fake.got.Messages)
	}
}

func TestGenerateSchema_StrictObjects(t *testing.T) {
	t.Parallel()

	type inner struct {
		Text string `json:"text"`
	}
	type outer struct {
		Items []inner `json:"items"`
		Count int     `json:"count"`
	}
	s := GenerateSchema[outer]()
	if s["additionalProperties"] != false {
		t.Fatalf("additionalProperties=%v", s["additionalProperties"])
	}
	req, _ := s["required"].([]string)
	if len(req) != 2 || req[0] != "count" || req[1] != "items" {
		t.Fatalf("required=%v", s["required"])
	}
	props := s["properties"].(map[string]any)
	items := props["items"].(map[string]any)["items"].(map[string]any)
	if items["additionalProperties"] != false {
		t.Fatalf("nested additionalProperties=%v", items["additionalProperties"])
	}
	if _, ok := s["$schema"]; ok {
		t.Fatalf("$schema should be removed")
	}
}

func TestDefaultsPerProvider(t *testing.T) {
	t.Parallel()

	if DefaultModel(NameOpenAI) != "gpt-4o-mini" {
		t.Fatalf("openai default=%q", DefaultModel(NameOpenAI))
	}
	if APIKeyEnv(NameAnthropic) != "ANTHROPIC_API_KEY" || APIKeyEnv(NameGemini) != "GEMINI_API_KEY" {
		t.Fatalf("unexpected env names")
	}
}
