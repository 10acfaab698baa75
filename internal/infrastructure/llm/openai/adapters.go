package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dininghall-ai/menu-search/internal/core/domain"
	"github.com/dininghall-ai/menu-search/internal/core/ports"
)

// IntentParser asks the model for a schema-constrained search intent.
type IntentParser struct {
	client *Client
}

func NewIntentParser(client *Client) *IntentParser {
	return &IntentParser{client: client}
}

func (p *IntentParser) CompleteIntent(ctx context.Context, query string, profile *domain.UserProfile) (domain.SearchIntent, error) {
	respText, err := p.client.chatJSON(ctx, "parse_intent", intentSystemPrompt, buildIntentUserMessage(query, profile))
	if err != nil {
		return domain.SearchIntent{}, err
	}

	var intent domain.SearchIntent
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &intent); err != nil {
		return domain.SearchIntent{}, fmt.Errorf("parse intent json: %w", err)
	}
	switch intent.Type {
	case domain.IntentFactualLookup, domain.IntentSemanticSearch, domain.IntentHybrid:
	default:
		return domain.SearchIntent{}, fmt.Errorf("unknown intent type %q", intent.Type)
	}
	if intent.SearchQuery == "" {
		intent.SearchQuery = query
	}
	return intent, nil
}

// SQLGenerator produces one candidate statement; the sanitizer downstream is
// the only safety boundary.
type SQLGenerator struct {
	client *Client
}

func NewSQLGenerator(client *Client) *SQLGenerator {
	return &SQLGenerator{client: client}
}

func (g *SQLGenerator) GenerateSQL(ctx context.Context, question string, hints []string) (string, error) {
	return g.client.chatText(ctx, "generate_sql", sqlSystemPrompt, buildSQLUserMessage(question, hints), 0, 0)
}

// Embedder implements ports.Embedder over the embeddings endpoint.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.embed(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.client.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// AnswerStreamer renders ranked items into a streamed answer.
type AnswerStreamer struct {
	client *Client
}

func NewAnswerStreamer(client *Client) *AnswerStreamer {
	return &AnswerStreamer{client: client}
}

func (s *AnswerStreamer) StreamAnswer(ctx context.Context, question string, answerCtx ports.AnswerContext, onChunk func(string) error) error {
	if len(answerCtx.Items) == 0 {
		return onChunk(noResultsAnswer)
	}

	req := chatRequest{
		Model: s.client.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: buildAnswerUserMessage(question, answerCtx)},
		},
		Temperature: 0.2,
		MaxTokens:   500,
		Stream:      true,
	}
	if err := s.client.postStream(ctx, "/chat/completions", req, "stream_answer", onChunk); err != nil {
		return wrapTemporaryIfNeeded("stream_answer", err)
	}
	return nil
}

// IngredientInferrer guesses main ingredients from a dish name.
type IngredientInferrer struct {
	client *Client
}

func NewIngredientInferrer(client *Client) *IngredientInferrer {
	return &IngredientInferrer{client: client}
}

func (i *IngredientInferrer) InferIngredients(ctx context.Context, itemName string) ([]string, error) {
	content, err := i.client.chatText(ctx, "infer_ingredients", ingredientsSystemPrompt, itemName, 0.2, 100)
	if err != nil {
		return nil, err
	}

	var ingredients []string
	for _, part := range strings.Split(content, ",") {
		if ing := strings.ToLower(strings.TrimSpace(part)); ing != "" {
			ingredients = append(ingredients, ing)
		}
	}
	return ingredients, nil
}
