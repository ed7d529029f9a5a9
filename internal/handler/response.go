// Package handler はフォーラムのサービスをHTTPで公開する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/stackforum/internal/middleware"
	"github.com/hitoshi/stackforum/internal/model"
)

// writeJSON は v をJSONのレスポンスボディとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeBody はJSONのリクエストボディを dst にデコードする。
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("request body is not valid JSON"))
		return false
	}
	return true
}

// handleServiceError はサービスのエラーを統一エラーレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus は APIError のコードをHTTPステータスに対応付ける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidDateRange:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound, model.ErrCodeNotificationNotFound,
		model.ErrCodeQuestionNotFound, model.ErrCodeAnswerNotFound:
		return http.StatusNotFound
	case model.ErrCodeUserLookupFailed, model.ErrCodeFeedAggregationFailed,
		model.ErrCodeRankingFailed, model.ErrCodeNotificationFailed,
		model.ErrCodeActionFailed, model.ErrCodeVideoFetchFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
