package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/repository"
)

// --- モック ---

type mockFeedService struct {
	getFn func(ctx context.Context, username string) ([]model.FeedEntry, error)
}

func (m *mockFeedService) GetPersonalizedFeed(ctx context.Context, username string) ([]model.FeedEntry, error) {
	if m.getFn != nil {
		return m.getFn(ctx, username)
	}
	return []model.FeedEntry{}, nil
}

type mockRankingService struct {
	rankFn func(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error)
}

func (m *mockRankingService) GetRankedUsersList(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error) {
	if m.rankFn != nil {
		return m.rankFn(ctx, window)
	}
	return []model.RankedUser{}, nil
}

type mockSocialService struct {
	followFn   func(ctx context.Context, follower, followee string) (*model.Profile, error)
	unfollowFn func(ctx context.Context, follower, followee string) (*model.Profile, error)
}

func (m *mockSocialService) Follow(ctx context.Context, follower, followee string) (*model.Profile, error) {
	if m.followFn != nil {
		return m.followFn(ctx, follower, followee)
	}
	return &model.Profile{Username: follower}, nil
}

func (m *mockSocialService) Unfollow(ctx context.Context, follower, followee string) (*model.Profile, error) {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, follower, followee)
	}
	return &model.Profile{Username: follower}, nil
}

type mockNotificationService struct {
	saveFn   func(ctx context.Context, in model.NotificationInput) (*model.Notification, error)
	toggleFn func(ctx context.Context, id string) (*model.Notification, error)
	listFn   func(ctx context.Context, username string) ([]model.Notification, error)
}

func (m *mockNotificationService) Save(ctx context.Context, in model.NotificationInput) (*model.Notification, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, in)
	}
	return &model.Notification{}, nil
}

func (m *mockNotificationService) Toggle(ctx context.Context, id string) (*model.Notification, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, id)
	}
	return &model.Notification{ID: id}, nil
}

func (m *mockNotificationService) ListByUsername(ctx context.Context, username string) ([]model.Notification, error) {
	if m.listFn != nil {
		return m.listFn(ctx, username)
	}
	return []model.Notification{}, nil
}

type mockAnswerService struct {
	addFn func(ctx context.Context, qid string, in model.AnswerInput) (*model.Answer, error)
}

func (m *mockAnswerService) AddAnswer(ctx context.Context, qid string, in model.AnswerInput) (*model.Answer, error) {
	if m.addFn != nil {
		return m.addFn(ctx, qid, in)
	}
	return &model.Answer{}, nil
}

type mockCommentService struct {
	addFn func(ctx context.Context, target repository.CommentTarget, in model.CommentInput) (*model.Comment, error)
}

func (m *mockCommentService) AddComment(ctx context.Context, target repository.CommentTarget, in model.CommentInput) (*model.Comment, error) {
	if m.addFn != nil {
		return m.addFn(ctx, target, in)
	}
	return &model.Comment{}, nil
}

type mockQuestionFinder struct {
	findFn func(ctx context.Context, id string) (*model.Question, error)
}

func (m *mockQuestionFinder) FindByID(ctx context.Context, id string) (*model.Question, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, nil
}

type mockVideoService struct {
	videos []model.Video
	called bool
}

func (m *mockVideoService) Related(ctx context.Context, q *model.Question) []model.Video {
	m.called = true
	if m.videos == nil {
		return []model.Video{}
	}
	return m.videos
}

// --- ヘルパー ---

func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

const testQID = "0f8fad5b-d9cb-469f-a165-70867728950e"

// --- フィード ---

func TestFeedHandler_GetRecommendedFeed_ReturnsEntries(t *testing.T) {
	svc := &mockFeedService{
		getFn: func(ctx context.Context, username string) ([]model.FeedEntry, error) {
			if username != "alice" {
				t.Errorf("username = %q, want alice", username)
			}
			return []model.FeedEntry{{
				Question:    model.Question{ID: testQID, AskedBy: "bob"},
				FeedReasons: []model.FeedReason{model.FeedReasonAskedByFollowed},
			}}, nil
		},
	}

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/feed/getRecommendedFeed/alice", nil), "username", "alice")
	w := httptest.NewRecorder()
	NewFeedHandler(svc).GetRecommendedFeed(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["_id"] != testQID {
		t.Fatalf("body = %v", got)
	}
	reasons, _ := got[0]["feedReasons"].([]any)
	if len(reasons) != 1 || reasons[0] != "askedByFollowed" {
		t.Errorf("feedReasons = %v", got[0]["feedReasons"])
	}
}

func TestFeedHandler_GetRecommendedFeed_EmptyIsArray(t *testing.T) {
	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/feed/getRecommendedFeed/carol", nil), "username", "carol")
	w := httptest.NewRecorder()
	NewFeedHandler(&mockFeedService{}).GetRecommendedFeed(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

func TestFeedHandler_GetRecommendedFeed_LookupFailureIs500(t *testing.T) {
	svc := &mockFeedService{
		getFn: func(ctx context.Context, username string) ([]model.FeedEntry, error) {
			return nil, model.NewUserLookupError(username)
		},
	}
	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/feed/getRecommendedFeed/ghost", nil), "username", "ghost")
	w := httptest.NewRecorder()
	NewFeedHandler(svc).GetRecommendedFeed(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeUserLookupFailed {
		t.Errorf("code = %q", body["code"])
	}
}

// --- ランキング ---

func TestUserHandler_GetRanking_CustomWindowAndViewer(t *testing.T) {
	var gotWindow *model.DateWindow
	svc := &mockRankingService{
		rankFn: func(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error) {
			gotWindow = window
			return []model.RankedUser{
				{Profile: model.Profile{Username: "dave"}, Count: 3},
				{Profile: model.Profile{Username: "erin"}, Count: 1},
			}, nil
		},
	}
	h := NewUserHandler(svc, &mockSocialService{})

	req := httptest.NewRequest(http.MethodGet, "/user/getUsers/ranking?username=erin&dateFilter=custom&startDate=2024-01-01&endDate=2024-01-31", nil)
	w := httptest.NewRecorder()
	h.GetRanking(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotWindow == nil {
		t.Fatal("expected a window")
	}
	if !gotWindow.Contains(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)) {
		t.Error("endDate should cover the whole day")
	}

	var ranked []model.RankedUser
	if err := json.NewDecoder(w.Body).Decode(&ranked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ranked[0].IsViewer || !ranked[1].IsViewer {
		t.Errorf("isViewer = %v/%v, want false/true", ranked[0].IsViewer, ranked[1].IsViewer)
	}
}

func TestUserHandler_GetRanking_DefaultsToAllTime(t *testing.T) {
	called := false
	svc := &mockRankingService{
		rankFn: func(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error) {
			called = true
			if window != nil {
				t.Errorf("window = %+v, want nil", window)
			}
			return []model.RankedUser{}, nil
		},
	}
	w := httptest.NewRecorder()
	NewUserHandler(svc, &mockSocialService{}).GetRanking(w, httptest.NewRequest(http.MethodGet, "/user/getUsers/ranking", nil))

	if !called || w.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d", called, w.Code)
	}
}

func TestUserHandler_GetRanking_InvalidRangeIs400(t *testing.T) {
	svc := &mockRankingService{
		rankFn: func(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error) {
			t.Error("ranking must not run for an invalid window")
			return nil, nil
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/user/getUsers/ranking?startDate=2024-02-01&endDate=2024-01-01", nil)
	NewUserHandler(svc, &mockSocialService{}).GetRanking(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeInvalidDateRange {
		t.Errorf("code = %q", body["code"])
	}
}

func TestUserHandler_GetRanking_Failure(t *testing.T) {
	svc := &mockRankingService{
		rankFn: func(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error) {
			return nil, model.NewRankingError()
		},
	}
	w := httptest.NewRecorder()
	NewUserHandler(svc, &mockSocialService{}).GetRanking(w, httptest.NewRequest(http.MethodGet, "/user/getUsers/ranking", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// --- フォロー ---

func TestUserHandler_Follow_PassesNames(t *testing.T) {
	svc := &mockSocialService{
		followFn: func(ctx context.Context, follower, followee string) (*model.Profile, error) {
			if follower != "alice" || followee != "bob" {
				t.Errorf("follow(%q, %q)", follower, followee)
			}
			return &model.Profile{Username: "alice", Following: []string{"bob"}}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/user/follow", jsonBody(t, map[string]string{"follower": "alice", "followee": "bob"}))
	w := httptest.NewRecorder()
	NewUserHandler(&mockRankingService{}, svc).Follow(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("profile response must not contain a password")
	}
}

func TestUserHandler_Unfollow_UnknownUserIs404(t *testing.T) {
	svc := &mockSocialService{
		unfollowFn: func(ctx context.Context, follower, followee string) (*model.Profile, error) {
			return nil, model.NewUserNotFoundError(followee)
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/user/unfollow", jsonBody(t, map[string]string{"follower": "alice", "followee": "nobody"}))
	w := httptest.NewRecorder()
	NewUserHandler(&mockRankingService{}, svc).Unfollow(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUserHandler_Follow_MalformedBodyIs400(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/user/follow", strings.NewReader("{"))
	w := httptest.NewRecorder()
	NewUserHandler(&mockRankingService{}, &mockSocialService{}).Follow(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeValidationFailed {
		t.Errorf("code = %q", body["code"])
	}
}

// --- 通知 ---

func TestNotificationHandler_CreateNotification_DecodesInput(t *testing.T) {
	svc := &mockNotificationService{
		saveFn: func(ctx context.Context, in model.NotificationInput) (*model.Notification, error) {
			if in.Username != "erin" || in.Type != model.NotificationTypeBadge || in.Seen == nil || !*in.Seen {
				t.Errorf("input = %+v", in)
			}
			return &model.Notification{ID: "n1", Username: in.Username, Type: in.Type, Seen: true}, nil
		},
	}
	body := jsonBody(t, map[string]any{"username": "erin", "text": "badge earned", "type": "badge", "seen": true})
	w := httptest.NewRecorder()
	NewNotificationHandler(svc).CreateNotification(w, httptest.NewRequest(http.MethodPost, "/notification/createNotification", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var n model.Notification
	if err := json.NewDecoder(w.Body).Decode(&n); err != nil || n.ID != "n1" {
		t.Errorf("notification = %+v, err = %v", n, err)
	}
}

func TestNotificationHandler_CreateNotification_ValidationIs400(t *testing.T) {
	svc := &mockNotificationService{
		saveFn: func(ctx context.Context, in model.NotificationInput) (*model.Notification, error) {
			return nil, model.NewValidationError("text is required")
		},
	}
	body := jsonBody(t, map[string]any{"username": "erin", "type": "badge"})
	w := httptest.NewRecorder()
	NewNotificationHandler(svc).CreateNotification(w, httptest.NewRequest(http.MethodPost, "/notification/createNotification", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestNotificationHandler_ToggleSeen(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "toggled", status: http.StatusOK},
		{name: "unknown id", err: model.NewNotificationNotFoundError("n9"), status: http.StatusNotFound},
		{name: "store failure", err: model.NewNotificationError("toggling notification"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockNotificationService{
				toggleFn: func(ctx context.Context, id string) (*model.Notification, error) {
					if id != "n9" {
						t.Errorf("id = %q, want n9", id)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.Notification{ID: id, Seen: true}, nil
				},
			}
			req := withChiURLParam(httptest.NewRequest(http.MethodPatch, "/notification/toggleSeen/n9", nil), "id", "n9")
			w := httptest.NewRecorder()
			NewNotificationHandler(svc).ToggleSeen(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestNotificationHandler_GetNotifications_EmptyIsArray(t *testing.T) {
	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/notification/getNotifications/erin", nil), "username", "erin")
	w := httptest.NewRecorder()
	NewNotificationHandler(&mockNotificationService{}).GetNotifications(w, req)

	if body := strings.TrimSpace(w.Body.String()); w.Code != http.StatusOK || body != "[]" {
		t.Errorf("status = %d, body = %s", w.Code, body)
	}
}

// --- 投稿 ---

func newPostHandler(answers *mockAnswerService, comments *mockCommentService, questions *mockQuestionFinder, videos *mockVideoService) *PostHandler {
	return NewPostHandler(answers, comments, questions, videos)
}

func TestPostHandler_AddAnswer_FlattensBody(t *testing.T) {
	answers := &mockAnswerService{
		addFn: func(ctx context.Context, qid string, in model.AnswerInput) (*model.Answer, error) {
			if qid != testQID || in.Text != "use a buffered channel" || in.AnsBy != "dave" {
				t.Errorf("AddAnswer(%q, %+v)", qid, in)
			}
			return &model.Answer{ID: "a1", Text: in.Text, AnsBy: in.AnsBy}, nil
		},
	}
	body := jsonBody(t, map[string]string{"qid": testQID, "text": "use a buffered channel", "ansBy": "dave"})
	w := httptest.NewRecorder()
	newPostHandler(answers, &mockCommentService{}, &mockQuestionFinder{}, &mockVideoService{}).
		AddAnswer(w, httptest.NewRequest(http.MethodPost, "/answer/addAnswer", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var a model.Answer
	if err := json.NewDecoder(w.Body).Decode(&a); err != nil || a.ID != "a1" {
		t.Errorf("answer = %+v, err = %v", a, err)
	}
}

func TestPostHandler_AddAnswer_QuestionNotFoundIs404(t *testing.T) {
	answers := &mockAnswerService{
		addFn: func(ctx context.Context, qid string, in model.AnswerInput) (*model.Answer, error) {
			return nil, model.NewQuestionNotFoundError(qid)
		},
	}
	body := jsonBody(t, map[string]string{"qid": testQID, "text": "x", "ansBy": "dave"})
	w := httptest.NewRecorder()
	newPostHandler(answers, &mockCommentService{}, &mockQuestionFinder{}, &mockVideoService{}).
		AddAnswer(w, httptest.NewRequest(http.MethodPost, "/answer/addAnswer", body))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestPostHandler_AddComment_BuildsTarget(t *testing.T) {
	comments := &mockCommentService{
		addFn: func(ctx context.Context, target repository.CommentTarget, in model.CommentInput) (*model.Comment, error) {
			if target.AnswerID != "a1" || target.QuestionID != "" || in.CommentBy != "erin" {
				t.Errorf("AddComment(%+v, %+v)", target, in)
			}
			return &model.Comment{ID: "c1"}, nil
		},
	}
	body := jsonBody(t, map[string]string{"aid": "a1", "text": "thanks", "commentBy": "erin"})
	w := httptest.NewRecorder()
	newPostHandler(&mockAnswerService{}, comments, &mockQuestionFinder{}, &mockVideoService{}).
		AddComment(w, httptest.NewRequest(http.MethodPost, "/comment/addComment", body))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestPostHandler_AddComment_ActionFailedIs500(t *testing.T) {
	comments := &mockCommentService{
		addFn: func(ctx context.Context, target repository.CommentTarget, in model.CommentInput) (*model.Comment, error) {
			return nil, model.NewActionFailedError("adding comment")
		},
	}
	body := jsonBody(t, map[string]string{"qid": testQID, "text": "thanks", "commentBy": "erin"})
	w := httptest.NewRecorder()
	newPostHandler(&mockAnswerService{}, comments, &mockQuestionFinder{}, &mockVideoService{}).
		AddComment(w, httptest.NewRequest(http.MethodPost, "/comment/addComment", body))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["category"] != "system" {
		t.Errorf("category = %q, want system", body["category"])
	}
}

func TestPostHandler_GetVideos(t *testing.T) {
	videos := &mockVideoService{videos: []model.Video{{Title: "Go channels explained", URL: "https://www.youtube.com/watch?v=1"}}}
	questions := &mockQuestionFinder{
		findFn: func(ctx context.Context, id string) (*model.Question, error) {
			return &model.Question{ID: id, Title: "How do channels work?"}, nil
		},
	}
	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/question/getVideos/"+testQID, nil), "qid", testQID)
	w := httptest.NewRecorder()
	newPostHandler(&mockAnswerService{}, &mockCommentService{}, questions, videos).GetVideos(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []model.Video
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil || len(got) != 1 {
		t.Errorf("videos = %+v, err = %v", got, err)
	}
}

func TestPostHandler_GetVideos_Errors(t *testing.T) {
	tests := []struct {
		name   string
		qid    string
		findFn func(ctx context.Context, id string) (*model.Question, error)
		status int
		code   string
	}{
		{name: "malformed id", qid: "not-a-uuid", status: http.StatusNotFound, code: model.ErrCodeQuestionNotFound},
		{name: "unknown question", qid: testQID, status: http.StatusNotFound, code: model.ErrCodeQuestionNotFound},
		{
			name: "lookup failure", qid: testQID,
			findFn: func(ctx context.Context, id string) (*model.Question, error) { return nil, errors.New("connection reset") },
			status: http.StatusInternalServerError, code: model.ErrCodeVideoFetchFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videos := &mockVideoService{}
			req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/question/getVideos/"+tt.qid, nil), "qid", tt.qid)
			w := httptest.NewRecorder()
			newPostHandler(&mockAnswerService{}, &mockCommentService{}, &mockQuestionFinder{findFn: tt.findFn}, videos).GetVideos(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if body := parseAPIErrorResponse(t, w); body["code"] != tt.code {
				t.Errorf("code = %q, want %q", body["code"], tt.code)
			}
			if videos.called {
				t.Error("video lookup must not run")
			}
		})
	}
}

// --- エラー ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeValidationFailed, http.StatusBadRequest},
		{model.ErrCodeInvalidDateRange, http.StatusBadRequest},
		{model.ErrCodeUserNotFound, http.StatusNotFound},
		{model.ErrCodeNotificationNotFound, http.StatusNotFound},
		{model.ErrCodeQuestionNotFound, http.StatusNotFound},
		{model.ErrCodeAnswerNotFound, http.StatusNotFound},
		{model.ErrCodeUserLookupFailed, http.StatusInternalServerError},
		{model.ErrCodeFeedAggregationFailed, http.StatusInternalServerError},
		{model.ErrCodeRankingFailed, http.StatusInternalServerError},
		{model.ErrCodeNotificationFailed, http.StatusInternalServerError},
		{model.ErrCodeActionFailed, http.StatusInternalServerError},
		{model.ErrCodeVideoFetchFailed, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code}); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestHandleServiceError_PlainErrorIsHidden(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("pq: relation does not exist"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "pq:") {
		t.Error("driver error must not reach the client")
	}
}
