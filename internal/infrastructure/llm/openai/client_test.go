package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New(Options{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		ChatModel:  "gpt-test",
		EmbedModel: "embed-test",
	})
	return client, srv
}

func chatCompletionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestCompleteIntentParsesModelJSON(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, chatCompletionBody(`{"intent_type":"hybrid","search_query":"high protein dinner","filters":{"nutritional_constraints":{"min_protein":20}}}`))
	})

	parser := NewIntentParser(client)
	intent, err := parser.CompleteIntent(context.Background(), "what should I eat for dinner", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Type != domain.IntentHybrid || intent.SearchQuery != "high protein dinner" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if v, ok := intent.Filters.Bound(domain.BoundMinProtein); !ok || v != 20 {
		t.Fatalf("expected min_protein bound, got %+v", intent.Filters)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected JSON mode, got %+v", gotReq.ResponseFormat)
	}
	if gotReq.Temperature != 0 {
		t.Fatalf("expected zero temperature, got %v", gotReq.Temperature)
	}
}

func TestCompleteIntentRejectsUnknownType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatCompletionBody(`{"intent_type":"chitchat"}`))
	})

	parser := NewIntentParser(client)
	if _, err := parser.CompleteIntent(context.Background(), "hello", nil); err == nil {
		t.Fatalf("expected unknown intent type error")
	}
}

func TestCompleteIntentDefaultsSearchQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatCompletionBody("Here you go:\n"+`{"intent_type":"semantic_search"}`))
	})

	parser := NewIntentParser(client)
	intent, err := parser.CompleteIntent(context.Background(), "something comforting", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.SearchQuery != "something comforting" {
		t.Fatalf("expected original query as fallback, got %q", intent.SearchQuery)
	}
}

func TestEmbedQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
	})

	embedder := NewEmbedder(client)
	vec, err := embedder.EmbedQuery(context.Background(), "tofu bowl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedEmptyInputSkipsRequest(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		called = true
	})

	embedder := NewEmbedder(client)
	vecs, err := embedder.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("expected nil result, got %v %v", vecs, err)
	}
	if called {
		t.Fatalf("expected no request for empty input")
	}
}

func TestStreamAnswerReadsSSEChunks(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"The \"}}]}\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"chicken bowl\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	streamer := NewAnswerStreamer(client)
	var out strings.Builder
	err := streamer.StreamAnswer(context.Background(), "what should I eat", ports.AnswerContext{
		Items: []domain.MenuItem{{ID: 1, Name: "Chicken Bowl", DiningHall: "Worcester"}},
	}, func(chunk string) error {
		out.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "The chicken bowl" {
		t.Fatalf("unexpected streamed text %q", out.String())
	}
}

func TestStreamAnswerEmptyItemsShortCircuits(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		called = true
	})

	streamer := NewAnswerStreamer(client)
	var got string
	err := streamer.StreamAnswer(context.Background(), "anything", ports.AnswerContext{}, func(chunk string) error {
		got = chunk
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected no model call for empty items")
	}
	if got != noResultsAnswer {
		t.Fatalf("expected canned no-results answer, got %q", got)
	}
}

func TestChatServerErrorIsTemporary(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	})

	parser := NewIntentParser(client)
	_, err := parser.CompleteIntent(context.Background(), "anything", nil)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestChatClientErrorIsNotTemporary(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	parser := NewIntentParser(client)
	_, err := parser.CompleteIntent(context.Background(), "anything", nil)
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestInferIngredientsSplitsAndLowercases(t *testing.T) {
	var gotReq chatRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, chatCompletionBody("Chicken, Rice,  Soy Sauce, "))
	})

	inferrer := NewIngredientInferrer(client)
	got, err := inferrer.InferIngredients(context.Background(), "Teriyaki Chicken")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReq.Temperature != 0.2 {
		t.Fatalf("expected temperature 0.2 for ingredient inference, got %v", gotReq.Temperature)
	}
	want := []string{"chicken", "rice", "soy sauce"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestClassifyStatusErrors(t *testing.T) {
	cases := []struct {
		code      int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		err := &HTTPStatusError{Operation: "chat", StatusCode: tc.code}
		outcome := classifyError(err)
		if outcome.Retryable != tc.retryable {
			t.Fatalf("status %d: expected retryable=%v", tc.code, tc.retryable)
		}
	}
}

func TestExtractJSONObject(t *testing.T) {
	raw := "Sure, here is the JSON:\n{\"a\": 1}\nHope that helps."
	if got := extractJSONObject(raw); got != `{"a": 1}` {
		t.Fatalf("unexpected extraction %q", got)
	}
	if got := extractJSONObject("no braces"); got != "no braces" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
