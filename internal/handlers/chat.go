package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"rlchat-backend/internal/models"
)

type replyGenerator interface {
	GenerateReply(ctx context.Context, history []models.ChatMessage, examples []models.Example) (string, error)
}

// ChatHandler runs one full exchange: persist the user turn, pull the
// top-rated examples, generate a reply, persist it. The user turn is written
// before the generation call, so it survives a backend failure.
type ChatHandler struct {
	messages     messageStore
	feedback     feedbackStore
	generator    replyGenerator
	cache        *redis.Client
	exampleLimit int
}

func NewChatHandler(messages messageStore, feedback feedbackStore, generator replyGenerator, cache *redis.Client, exampleLimit int) *ChatHandler {
	return &ChatHandler{
		messages:     messages,
		feedback:     feedback,
		generator:    generator,
		cache:        cache,
		exampleLimit: exampleLimit,
	}
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	ctx := r.Context()

	userMsg := &models.Message{Role: models.RoleUser, Content: req.Message}
	if err := h.messages.Create(ctx, userMsg); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record message", r))
		return
	}

	examples, err := h.feedback.BestExamples(ctx, h.exampleLimit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load examples", r))
		return
	}

	history := append(append([]models.ChatMessage{}, req.History...), models.ChatMessage{
		Role:    models.RoleUser,
		Content: req.Message,
	})

	reply, err := h.generator.GenerateReply(ctx, history, examples)
	if err != nil {
		// The user turn stays persisted; the client renders an apology bubble.
		writeJSON(w, http.StatusInternalServerError, errorResp("AI_ERROR", "Failed to get AI response", r))
		return
	}

	modelMsg := &models.Message{Role: models.RoleModel, Content: reply, ReplyTo: &userMsg.ID}
	if err := h.messages.Create(ctx, modelMsg); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record reply", r))
		return
	}

	cacheInvalidate(ctx, h.cache, statsCacheKey, examplesCacheKey)

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Reply:          reply,
		UserMessageID:  userMsg.ID,
		ModelMessageID: modelMsg.ID,
	})
}
