package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rlchat-backend/internal/models"
	"rlchat-backend/internal/repository"
	"rlchat-backend/internal/websocket"
)

const (
	statsCacheKey    = "cache:stats"
	examplesCacheKey = "cache:best_examples"
	cacheTTL         = 5 * time.Minute
)

type messageStore interface {
	Create(ctx context.Context, m *models.Message) error
	CountByRole(ctx context.Context, role string) (int, error)
}

type feedbackStore interface {
	Record(ctx context.Context, f *models.Feedback) error
	CountByRating(ctx context.Context, rating int) (int, error)
	BestExamples(ctx context.Context, limit int) ([]models.Example, error)
}

// TranscriptHandler exposes the message log, the feedback log, the stats
// aggregate and the best-example selection. The cache client may be nil, in
// which case every read goes straight to the store.
type TranscriptHandler struct {
	messages     messageStore
	feedback     feedbackStore
	cache        *redis.Client
	exampleLimit int
}

func NewTranscriptHandler(messages messageStore, feedback feedbackStore, cache *redis.Client, exampleLimit int) *TranscriptHandler {
	return &TranscriptHandler{
		messages:     messages,
		feedback:     feedback,
		cache:        cache,
		exampleLimit: exampleLimit,
	}
}

func (h *TranscriptHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if data := cacheGet(ctx, h.cache, statsCacheKey); data != nil {
		var stats models.Stats
		if json.Unmarshal(data, &stats) == nil {
			writeJSON(w, http.StatusOK, stats)
			return
		}
	}

	stats, err := h.computeStats(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load stats", r))
		return
	}

	cacheSet(ctx, h.cache, statsCacheKey, stats)
	writeJSON(w, http.StatusOK, stats)
}

func (h *TranscriptHandler) RecordMessage(w http.ResponseWriter, r *http.Request) {
	var req models.RecordMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Role != models.RoleUser && req.Role != models.RoleModel {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Role must be 'user' or 'model'", r))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Content is required", r))
		return
	}

	msg := &models.Message{Role: req.Role, Content: req.Content, ReplyTo: req.ReplyTo}
	if err := h.messages.Create(r.Context(), msg); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record message", r))
		return
	}

	cacheInvalidate(r.Context(), h.cache, statsCacheKey, examplesCacheKey)
	writeJSON(w, http.StatusOK, models.RecordMessageResponse{ID: msg.ID})
}

func (h *TranscriptHandler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	var req models.RecordFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Rating != 1 && req.Rating != -1 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Rating must be 1 or -1", r))
		return
	}
	if req.MessageID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message ID is required", r))
		return
	}

	fb := &models.Feedback{MessageID: req.MessageID, Rating: req.Rating}
	if err := h.feedback.Record(r.Context(), fb); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Message not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record feedback", r))
		return
	}

	cacheInvalidate(r.Context(), h.cache, statsCacheKey, examplesCacheKey)
	h.publishStats(r.Context())

	writeJSON(w, http.StatusOK, models.RecordFeedbackResponse{Success: true})
}

func (h *TranscriptHandler) BestExamples(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if data := cacheGet(ctx, h.cache, examplesCacheKey); data != nil {
		var examples []models.Example
		if json.Unmarshal(data, &examples) == nil {
			writeJSON(w, http.StatusOK, examples)
			return
		}
	}

	examples, err := h.feedback.BestExamples(ctx, h.exampleLimit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load examples", r))
		return
	}

	cacheSet(ctx, h.cache, examplesCacheKey, examples)
	writeJSON(w, http.StatusOK, examples)
}

func (h *TranscriptHandler) computeStats(ctx context.Context) (*models.Stats, error) {
	total, err := h.messages.CountByRole(ctx, models.RoleModel)
	if err != nil {
		return nil, err
	}
	positive, err := h.feedback.CountByRating(ctx, 1)
	if err != nil {
		return nil, err
	}
	negative, err := h.feedback.CountByRating(ctx, -1)
	if err != nil {
		return nil, err
	}

	return &models.Stats{TotalResponses: total, Positive: positive, Negative: negative}, nil
}

// publishStats pushes a fresh aggregate onto the stats channel so the
// websocket hub can fan it out to connected clients.
func (h *TranscriptHandler) publishStats(ctx context.Context) {
	if h.cache == nil {
		return
	}
	stats, err := h.computeStats(ctx)
	if err != nil {
		return
	}
	data, _ := json.Marshal(models.WSMessage{Type: "stats_update", Payload: stats})
	h.cache.Publish(ctx, websocket.StatsChannel, string(data))
}

// Cache helpers. All of them tolerate a nil client and treat Redis errors as
// cache misses.

func cacheGet(ctx context.Context, client *redis.Client, key string) []byte {
	if client == nil {
		return nil
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	return data
}

func cacheSet(ctx context.Context, client *redis.Client, key string, value interface{}) {
	if client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	client.Set(ctx, key, data, cacheTTL)
}

func cacheInvalidate(ctx context.Context, client *redis.Client, keys ...string) {
	if client == nil {
		return
	}
	client.Del(ctx, keys...)
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}
