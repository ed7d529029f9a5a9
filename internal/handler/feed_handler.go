package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stackforum/internal/model"
)

// FeedServiceInterface はフィードハンドラが必要とするフィードサービスの操作。
type FeedServiceInterface interface {
	GetPersonalizedFeed(ctx context.Context, username string) ([]model.FeedEntry, error)
}

// FeedHandler はパーソナライズドフィードを提供する。
type FeedHandler struct {
	service FeedServiceInterface
}

// NewFeedHandler は新しいFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface) *FeedHandler {
	return &FeedHandler{service: service}
}

// GetRecommendedFeed はパスのユーザーがフォローするユーザーが質問または賛成票を投じた質問を返す。
// 誰もフォローしていなければ 200 で [] を返す。
// GET /feed/getRecommendedFeed/{username}
func (h *FeedHandler) GetRecommendedFeed(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	entries, err := h.service.GetPersonalizedFeed(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
