package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/ranking"
)

// RankingServiceInterface はユーザーハンドラがランキングに必要とする操作。
type RankingServiceInterface interface {
	GetRankedUsersList(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error)
}

// SocialServiceInterface はフォローグラフを変更する。
type SocialServiceInterface interface {
	Follow(ctx context.Context, follower, followee string) (*model.Profile, error)
	Unfollow(ctx context.Context, follower, followee string) (*model.Profile, error)
}

// UserHandler はランキングとフォロー操作を提供する。
type UserHandler struct {
	ranking RankingServiceInterface
	social  SocialServiceInterface
	now     func() time.Time
}

// NewUserHandler は新しいUserHandlerを生成する。
func NewUserHandler(ranking RankingServiceInterface, social SocialServiceInterface) *UserHandler {
	return &UserHandler{
		ranking: ranking,
		social:  social,
		now:     time.Now,
	}
}

// followRequest はフォローとフォロー解除のリクエストボディ。
type followRequest struct {
	Follower string `json:"follower"`
	Followee string `json:"followee"`
}

// GetRanking は dateFilter（all, week, month, year, startDate と endDate を使う custom）で
// 指定した期間の回答数でユーザーを順位付けして返す。
// username クエリパラメータのユーザーの行には isViewer を付ける。
// GET /user/getUsers/ranking
func (h *UserHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	window, err := ranking.ParseWindow(q.Get("dateFilter"), q.Get("startDate"), q.Get("endDate"), h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ranked, err := h.ranking.GetRankedUsersList(r.Context(), window)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ranking.MarkViewer(ranked, q.Get("username"))
	writeJSON(w, http.StatusOK, ranked)
}

// Follow は follower に followee をフォローさせ、follower のプロフィールを返す。
// POST /user/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.changeFollow(w, r, h.social.Follow)
}

// Unfollow はフォロー関係を解除し、follower のプロフィールを返す。
// POST /user/unfollow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.changeFollow(w, r, h.social.Unfollow)
}

func (h *UserHandler) changeFollow(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, follower, followee string) (*model.Profile, error)) {
	var req followRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := fn(r.Context(), req.Follower, req.Followee)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
