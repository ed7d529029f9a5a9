package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stackforum/internal/model"
)

// NotificationServiceInterface は通知ハンドラが必要とする操作。
type NotificationServiceInterface interface {
	Save(ctx context.Context, in model.NotificationInput) (*model.Notification, error)
	Toggle(ctx context.Context, id string) (*model.Notification, error)
	ListByUsername(ctx context.Context, username string) ([]model.Notification, error)
}

// NotificationHandler は通知ストアを提供する。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler は新しいNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// GetNotifications はユーザーの通知を新しい順に返す。
// GET /notification/getNotifications/{username}
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ToggleSeen は既読フラグを反転し、更新後の通知を返す。
// PATCH /notification/toggleSeen/{id}
func (h *NotificationHandler) ToggleSeen(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNotification は {username, text, type, seen?, link?} から通知を保存する。
// POST /notification/createNotification
func (h *NotificationHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var in model.NotificationInput
	if !decodeBody(w, r, &in) {
		return
	}

	n, err := h.service.Save(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
