package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"rlchat-backend/internal/models"
	"rlchat-backend/internal/services"
)

type fakeGenerator struct {
	reply       string
	err         error
	gotHistory  []models.ChatMessage
	gotExamples []models.Example
}

func (f *fakeGenerator) GenerateReply(ctx context.Context, history []models.ChatMessage, examples []models.Example) (string, error) {
	f.gotHistory = history
	f.gotExamples = examples
	return f.reply, f.err
}

func newTestChatHandler(gen *fakeGenerator) (*ChatHandler, *fakeMessageStore, *fakeFeedbackStore) {
	messages := &fakeMessageStore{}
	feedback := newFakeFeedbackStore(messages)
	return NewChatHandler(messages, feedback, gen, nil, 5), messages, feedback
}

func TestAsk_PersistsBothTurns(t *testing.T) {
	gen := &fakeGenerator{reply: "Hello!"}
	h, messages, _ := newTestChatHandler(gen)

	rr := postJSON(t, h.Ask, "/api/v1/chat", models.ChatRequest{Message: "Hi"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Reply != "Hello!" {
		t.Errorf("expected reply 'Hello!', got %q", resp.Reply)
	}
	if len(messages.messages) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(messages.messages))
	}

	user, model := messages.messages[0], messages.messages[1]
	if user.Role != models.RoleUser || user.Content != "Hi" {
		t.Errorf("unexpected user turn: %+v", user)
	}
	if model.Role != models.RoleModel || model.Content != "Hello!" {
		t.Errorf("unexpected model turn: %+v", model)
	}
	if model.ReplyTo == nil || *model.ReplyTo != user.ID {
		t.Errorf("model turn must reference the user turn that produced it, got %+v", model.ReplyTo)
	}
	if resp.UserMessageID != user.ID || resp.ModelMessageID != model.ID {
		t.Errorf("response ids do not match persisted turns: %+v", resp)
	}
}

func TestAsk_HistoryEndsWithNewMessage(t *testing.T) {
	gen := &fakeGenerator{reply: "Sure."}
	h, _, feedback := newTestChatHandler(gen)

	feedback.examples = []models.Example{{Prompt: "Hi", Response: "Hello!"}}

	rr := postJSON(t, h.Ask, "/api/v1/chat", models.ChatRequest{
		Message: "Tell me more",
		History: []models.ChatMessage{
			{Role: models.RoleUser, Content: "Hi"},
			{Role: models.RoleModel, Content: "Hello!"},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	if len(gen.gotHistory) != 3 {
		t.Fatalf("expected 3 turns of history, got %d", len(gen.gotHistory))
	}
	last := gen.gotHistory[2]
	if last.Role != models.RoleUser || last.Content != "Tell me more" {
		t.Errorf("history must end with the new user turn, got %+v", last)
	}
	if len(gen.gotExamples) != 1 {
		t.Errorf("expected selected examples to reach the generator, got %d", len(gen.gotExamples))
	}
}

func TestAsk_GenerationFailureKeepsUserTurn(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("backend unreachable")}
	h, messages, _ := newTestChatHandler(gen)

	rr := postJSON(t, h.Ask, "/api/v1/chat", models.ChatRequest{Message: "Hi"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != "AI_ERROR" {
		t.Errorf("expected AI_ERROR, got %q", resp.Error.Code)
	}

	// The triggering user turn was written before the generation call.
	if len(messages.messages) != 1 {
		t.Fatalf("expected the user turn to remain persisted, got %d messages", len(messages.messages))
	}
	if messages.messages[0].Role != models.RoleUser {
		t.Errorf("persisted turn should be the user message, got %+v", messages.messages[0])
	}
}

func TestAsk_FallbackReplyIsPersistedVerbatim(t *testing.T) {
	gen := &fakeGenerator{reply: services.FallbackReply}
	h, messages, _ := newTestChatHandler(gen)

	rr := postJSON(t, h.Ask, "/api/v1/chat", models.ChatRequest{Message: "Hi"})
	if rr.Code != http.StatusOK {
		t.Fatalf("fallback reply is a success, got %d", rr.Code)
	}

	if len(messages.messages) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(messages.messages))
	}
	if messages.messages[1].Content != services.FallbackReply {
		t.Errorf("fallback must be persisted verbatim, got %q", messages.messages[1].Content)
	}
}

func TestAsk_EmptyMessage(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	h, messages, _ := newTestChatHandler(gen)

	rr := postJSON(t, h.Ask, "/api/v1/chat", models.ChatRequest{Message: "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(messages.messages) != 0 {
		t.Fatal("nothing should be persisted for an empty message")
	}
}
