// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError はすべてのサービスが返す統一エラー。
// UIに表示するカテゴリとユーザーへの推奨アクションを持つ。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, notification, feed, ranking, system
	Action   string // ユーザーが取れる対処
}

// Error は error インターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みのエラーコード。
const (
	ErrCodeValidationFailed      = "VALIDATION_FAILED"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeNotificationNotFound  = "NOTIFICATION_NOT_FOUND"
	ErrCodeQuestionNotFound      = "QUESTION_NOT_FOUND"
	ErrCodeAnswerNotFound        = "ANSWER_NOT_FOUND"
	ErrCodeFeedAggregationFailed = "FEED_AGGREGATION_FAILED"
	ErrCodeRankingFailed         = "RANKING_FAILED"
	ErrCodeNotificationFailed    = "NOTIFICATION_FAILED"
	ErrCodeInvalidDateRange      = "INVALID_DATE_RANGE"
	ErrCodeVideoFetchFailed      = "VIDEO_FETCH_FAILED"
	ErrCodeActionFailed          = "ACTION_FAILED"
	ErrCodeUserLookupFailed      = "USER_LOOKUP_FAILED"
)

// NewValidationError はリクエストのフィールドの欠落または不正を表す。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the request body and try again.",
	}
}

// NewUserNotFoundError は存在しないユーザー名を表す。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("user not found: %s", username),
		Category: "validation",
		Action:   "Check the username.",
	}
}

// NewNotificationNotFoundError は存在しない通知IDを表す。
func NewNotificationNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("notification not found: %s", id),
		Category: "notification",
		Action:   "Reload your notifications.",
	}
}

// NewQuestionNotFoundError は存在しない質問IDを表す。
func NewQuestionNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeQuestionNotFound,
		Message:  fmt.Sprintf("question not found: %s", id),
		Category: "validation",
		Action:   "Check the question id.",
	}
}

// NewAnswerNotFoundError は存在しない回答IDを表す。
func NewAnswerNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeAnswerNotFound,
		Message:  fmt.Sprintf("answer not found: %s", id),
		Category: "validation",
		Action:   "Check the answer id.",
	}
}

// NewFeedAggregationError は失敗したフィードのクエリをラップする。
func NewFeedAggregationError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedAggregationFailed,
		Message:  "error occurred when fetching the personalized feed",
		Category: "feed",
		Action:   "Please try again later.",
	}
}

// NewRankingError は失敗したランキング集計をラップする。
func NewRankingError() *APIError {
	return &APIError{
		Code:     ErrCodeRankingFailed,
		Message:  "error occurred when ranking users",
		Category: "ranking",
		Action:   "Please try again later.",
	}
}

// NewNotificationError は失敗した通知ストア操作をラップする。
func NewNotificationError(op string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationFailed,
		Message:  fmt.Sprintf("error occurred when %s", op),
		Category: "notification",
		Action:   "Please try again later.",
	}
}

// NewInvalidDateRangeError は使用できないランキング期間を表す。
func NewInvalidDateRangeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDateRange,
		Message:  fmt.Sprintf("invalid date range: %s", reason),
		Category: "validation",
		Action:   "Use RFC3339 or YYYY-MM-DD dates with startDate <= endDate.",
	}
}

// NewActionFailedError は回答の投稿など失敗したドメイン操作をラップする。
func NewActionFailedError(op string) *APIError {
	return &APIError{
		Code:     ErrCodeActionFailed,
		Message:  fmt.Sprintf("error occurred when %s", op),
		Category: "system",
		Action:   "Please try again later.",
	}
}

// NewUserLookupError はフィードの閲覧者を解決できなかったことを表す。
func NewUserLookupError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserLookupFailed,
		Message:  fmt.Sprintf("error occurred when looking up user %s", username),
		Category: "feed",
		Action:   "Please sign in again.",
	}
}

// NewVideoFetchError は失敗した関連動画の検索をラップする。
func NewVideoFetchError() *APIError {
	return &APIError{
		Code:     ErrCodeVideoFetchFailed,
		Message:  "error occurred when fetching related videos",
		Category: "system",
		Action:   "Please try again later.",
	}
}
