package model

// FeedReason は質問がパーソナライズドフィードに含まれる理由を表す。
type FeedReason string

const (
	// FeedReasonAskedByFollowed はフォロー中のユーザーが質問したことを表す。
	FeedReasonAskedByFollowed FeedReason = "askedByFollowed"
	// FeedReasonUpvotedByFollowed はフォロー中のユーザーが1人以上賛成票を投じたことを表す。
	FeedReasonUpvotedByFollowed FeedReason = "upvotedByFollowed"
)

// FeedEntry は1人の閲覧者向けにリクエスト単位で射影した Question。
// 永続化はしない。
type FeedEntry struct {
	Question
	FeedReasons      []FeedReason `json:"feedReasons"`
	FollowedUpvoters []string     `json:"followedUpvoters,omitempty"`
}

// HasReason はエントリが指定の理由を持つかを返す。
func (e *FeedEntry) HasReason(r FeedReason) bool {
	for _, have := range e.FeedReasons {
		if have == r {
			return true
		}
	}
	return false
}
