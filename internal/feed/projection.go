package feed

import (
	"sort"

	"github.com/hitoshi/stackforum/internal/model"
)

// BuildEntry は指定ユーザーをフォローする閲覧者向けに q を射影する。
// どの理由にも当てはまらない場合は false を返し、そのエントリは除外する。
func BuildEntry(q model.Question, following []string) (model.FeedEntry, bool) {
	followed := make(map[string]struct{}, len(following))
	for _, u := range following {
		followed[u] = struct{}{}
	}
	return buildEntry(q, followed)
}

func buildEntry(q model.Question, followed map[string]struct{}) (model.FeedEntry, bool) {
	entry := model.FeedEntry{Question: q, FeedReasons: []model.FeedReason{}}

	if _, ok := followed[q.AskedBy]; ok {
		entry.FeedReasons = append(entry.FeedReasons, model.FeedReasonAskedByFollowed)
	}

	// 賛成票の順序は保ち、重複したユーザー名は1回だけ含める。
	var upvoters []string
	seen := make(map[string]struct{})
	for _, u := range q.UpVotes {
		if _, ok := followed[u]; !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		upvoters = append(upvoters, u)
	}
	if len(upvoters) > 0 {
		entry.FeedReasons = append(entry.FeedReasons, model.FeedReasonUpvotedByFollowed)
		entry.FollowedUpvoters = upvoters
	}

	return entry, len(entry.FeedReasons) > 0
}

// BuildFeed はすべての質問を射影し、理由のないものを除き、
// 重複した id をまとめて質問日時の降順に並べる。
func BuildFeed(questions []model.Question, following []string) []model.FeedEntry {
	followed := make(map[string]struct{}, len(following))
	for _, u := range following {
		followed[u] = struct{}{}
	}

	entries := make([]model.FeedEntry, 0, len(questions))
	ids := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if _, dup := ids[q.ID]; dup {
			continue
		}
		entry, ok := buildEntry(q, followed)
		if !ok {
			continue
		}
		ids[q.ID] = struct{}{}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AskDateTime.After(entries[j].AskDateTime)
	})
	return entries
}
