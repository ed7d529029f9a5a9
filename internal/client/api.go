package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/stackforum/internal/model"
)

// API はフォーラムサーバー向けの型付きRESTクライアント。
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI は baseURL のサーバー向けクライアントを生成する。
// httpClient が nil の場合はタイムアウト10秒のクライアントを使う。
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// RankingQuery はランキングの期間を指定する。
type RankingQuery struct {
	Viewer     string
	DateFilter string
	StartDate  string
	EndDate    string
}

// Feed は username のパーソナライズドフィードを返す。
func (a *API) Feed(ctx context.Context, username string) ([]model.FeedEntry, error) {
	var out []model.FeedEntry
	err := a.do(ctx, http.MethodGet, "/feed/getRecommendedFeed/"+url.PathEscape(username), nil, &out)
	return out, err
}

// Ranking はランキングを返す。
func (a *API) Ranking(ctx context.Context, q RankingQuery) ([]model.RankedUser, error) {
	v := url.Values{}
	for key, val := range map[string]string{
		"username":   q.Viewer,
		"dateFilter": q.DateFilter,
		"startDate":  q.StartDate,
		"endDate":    q.EndDate,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	path := "/user/getUsers/ranking"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var out []model.RankedUser
	err := a.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Notifications は username の通知を新しい順に返す。
func (a *API) Notifications(ctx context.Context, username string) ([]model.Notification, error) {
	var out []model.Notification
	err := a.do(ctx, http.MethodGet, "/notification/getNotifications/"+url.PathEscape(username), nil, &out)
	return out, err
}

// ToggleSeen は通知 id の既読フラグを反転する。
func (a *API) ToggleSeen(ctx context.Context, id string) (*model.Notification, error) {
	var out model.Notification
	if err := a.do(ctx, http.MethodPatch, "/notification/toggleSeen/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNotification は通知を保存する。
func (a *API) CreateNotification(ctx context.Context, in model.NotificationInput) (*model.Notification, error) {
	var out model.Notification
	if err := a.do(ctx, http.MethodPost, "/notification/createNotification", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddAnswer は質問 qid に回答を投稿する。
func (a *API) AddAnswer(ctx context.Context, qid string, in model.AnswerInput) (*model.Answer, error) {
	body := struct {
		QID string `json:"qid"`
		model.AnswerInput
	}{QID: qid, AnswerInput: in}

	var out model.Answer
	if err := a.do(ctx, http.MethodPost, "/answer/addAnswer", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Follow は follower に followee をフォローさせ、follower のプロフィールを返す。
func (a *API) Follow(ctx context.Context, follower, followee string) (*model.Profile, error) {
	return a.followEdge(ctx, "/user/follow", follower, followee)
}

// Unfollow はフォロー関係を解除し、follower のプロフィールを返す。
func (a *API) Unfollow(ctx context.Context, follower, followee string) (*model.Profile, error) {
	return a.followEdge(ctx, "/user/unfollow", follower, followee)
}

func (a *API) followEdge(ctx context.Context, path, follower, followee string) (*model.Profile, error) {
	body := map[string]string{"follower": follower, "followee": followee}
	var out model.Profile
	if err := a.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do はリクエストを1件送る。2xx以外のレスポンスは *model.APIError として返す。
func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &model.APIError{}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr); err != nil || apiErr.Code == "" {
			return &model.APIError{
				Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
				Message:  http.StatusText(resp.StatusCode),
				Category: "system",
			}
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
