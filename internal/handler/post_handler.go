package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/repository"
)

// AnswerServiceInterface は回答を投稿する。
type AnswerServiceInterface interface {
	AddAnswer(ctx context.Context, qid string, in model.AnswerInput) (*model.Answer, error)
}

// CommentServiceInterface はコメントを投稿する。
type CommentServiceInterface interface {
	AddComment(ctx context.Context, target repository.CommentTarget, in model.CommentInput) (*model.Comment, error)
}

// QuestionFinder は関連動画の検索用に質問を読み込む。
type QuestionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Question, error)
}

// VideoServiceInterface は質問に関連する動画を探す。失敗は返さない。
type VideoServiceInterface interface {
	Related(ctx context.Context, q *model.Question) []model.Video
}

// PostHandler は回答・コメント・質問のエンドポイントを提供する。
type PostHandler struct {
	answers   AnswerServiceInterface
	comments  CommentServiceInterface
	questions QuestionFinder
	videos    VideoServiceInterface
}

// NewPostHandler は新しいPostHandlerを生成する。
func NewPostHandler(answers AnswerServiceInterface, comments CommentServiceInterface, questions QuestionFinder, videos VideoServiceInterface) *PostHandler {
	return &PostHandler{
		answers:   answers,
		comments:  comments,
		questions: questions,
		videos:    videos,
	}
}

type addAnswerRequest struct {
	QID string `json:"qid"`
	model.AnswerInput
}

type addCommentRequest struct {
	QID string `json:"qid,omitempty"`
	AID string `json:"aid,omitempty"`
	model.CommentInput
}

// AddAnswer は回答を投稿し、質問者に通知する。
// POST /answer/addAnswer
func (h *PostHandler) AddAnswer(w http.ResponseWriter, r *http.Request) {
	var req addAnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	answer, err := h.answers.AddAnswer(r.Context(), req.QID, req.AnswerInput)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// AddComment は質問または回答にコメントし、投稿者に通知する。
// POST /comment/addComment
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	target := repository.CommentTarget{QuestionID: req.QID, AnswerID: req.AID}
	comment, err := h.comments.AddComment(r.Context(), target, req.CommentInput)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// GetVideos は質問に関連する動画を返す。検索に失敗した場合は [] を返す。
// GET /question/getVideos/{qid}
func (h *PostHandler) GetVideos(w http.ResponseWriter, r *http.Request) {
	qid := chi.URLParam(r, "qid")
	if _, err := uuid.Parse(qid); err != nil {
		handleServiceError(w, model.NewQuestionNotFoundError(qid))
		return
	}

	q, err := h.questions.FindByID(r.Context(), qid)
	if err != nil {
		slog.Error("question lookup failed", slog.String("qid", qid), slog.String("error", err.Error()))
		handleServiceError(w, model.NewVideoFetchError())
		return
	}
	if q == nil {
		handleServiceError(w, model.NewQuestionNotFoundError(qid))
		return
	}

	writeJSON(w, http.StatusOK, h.videos.Related(r.Context(), q))
}
