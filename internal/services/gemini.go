package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"google.golang.org/api/option"

	"rlchat-backend/internal/models"
)

// FallbackReply is used when the model returns no text at all. From the
// caller's perspective this is a successful reply, not an error, and it is
// persisted like any other model turn.
const FallbackReply = "I'm sorry, I couldn't generate a response."

const exampleSeparator = "\n---\n"

type GeminiService struct {
	client      *genai.Client
	modelName   string
	temperature float32
	rateChan    chan struct{} // Token bucket
}

func NewGeminiService(apiKey, modelName string, temperature float32, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Token bucket for limiting in-flight requests
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:      client,
		modelName:   modelName,
		temperature: temperature,
		rateChan:    rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// GenerateReply produces one model turn for the running conversation.
// history is the full transcript oldest first, ending with the user turn to
// answer. examples are the top-rated past exchanges, spliced into the system
// instruction as in-context guidance. Single-shot call: backend errors
// propagate with no retry.
func (s *GeminiService) GenerateReply(ctx context.Context, history []models.ChatMessage, examples []models.Example) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("conversation history is empty")
	}
	last := history[len(history)-1]
	if last.Role != models.RoleUser {
		return "", fmt.Errorf("last turn must be a user message, got role %q", last.Role)
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	// SystemInstruction varies per request with the selected examples, so a
	// fresh model handle is configured each call.
	model := s.client.GenerativeModel(s.modelName)
	model.SetTemperature(s.temperature)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(buildSystemInstruction(examples))},
	}

	cs := model.StartChat()
	cs.History = make([]*genai.Content, 0, len(history)-1)
	for _, m := range history[:len(history)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return FallbackReply, nil
	}
	return text, nil
}

// buildSystemInstruction assembles the persona statement plus, when any
// exist, the block of highly rated past exchanges. With zero examples the
// block is omitted entirely rather than rendered empty.
func buildSystemInstruction(examples []models.Example) string {
	var b strings.Builder

	b.WriteString("You are a helpful AI assistant that learns from feedback.\n")
	b.WriteString("We have identified that users prefer responses that are concise, accurate, and empathetic.\n")

	if len(examples) > 0 {
		b.WriteString("\nHere are some examples of responses that were HIGHLY RATED by the user in the past. Try to emulate this style:\n")
		formatted := make([]string, len(examples))
		for i, ex := range examples {
			formatted[i] = fmt.Sprintf("User: %s\nAssistant: %s", ex.Prompt, ex.Response)
		}
		b.WriteString(strings.Join(formatted, exampleSeparator))
		b.WriteString("\n")
	}

	b.WriteString("\nAlways strive to improve based on these patterns.")

	return b.String()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
