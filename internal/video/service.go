// Package video は設定したYouTube（または任意のRSS/Atom）フィードから
// 質問に関連する動画を提案する。
package video

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/stackforum/internal/metrics"
	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/security"
)

// Options は Service を設定する。
type Options struct {
	FeedURL    string
	Timeout    time.Duration
	MaxResults int
	MaxSize    int64
}

// Service は関連動画を検索する。失敗した場合は常に空リストを返す。
type Service struct {
	opts      Options
	client    *http.Client
	validate  func(string) error
	sanitizer security.Sanitizer
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewService は client（通常は security.NewSafeClient）で取得する Service を生成する。
func NewService(opts Options, client *http.Client, sanitizer security.Sanitizer, logger *slog.Logger, m metrics.MetricsCollector) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 2 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Service{
		opts:      opts,
		client:    client,
		validate:  security.ValidateURL,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   m,
	}
}

// Related は質問のタイトルまたはタグと単語を共有するフィードのエントリを
// 一致度の高い順に最大 MaxResults 件返す。
func (s *Service) Related(ctx context.Context, q *model.Question) []model.Video {
	if s.opts.FeedURL == "" || q == nil {
		return []model.Video{}
	}

	keywords := questionKeywords(q)
	if len(keywords) == 0 {
		return []model.Video{}
	}

	feed, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("related video lookup failed", "qid", q.ID, "feed_url", s.opts.FeedURL, "error", err)
		return []model.Video{}
	}

	type scored struct {
		video model.Video
		score int
	}
	var matches []scored
	for _, it := range feed.Items {
		if it == nil || it.Link == "" {
			continue
		}
		score := overlap(keywords, it.Title)
		if score == 0 {
			continue
		}
		matches = append(matches, scored{video: s.toVideo(it), score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		pi, pj := matches[i].video.Published, matches[j].video.Published
		return pi != nil && (pj == nil || pi.After(*pj))
	})

	out := make([]model.Video, 0, s.opts.MaxResults)
	for _, m := range matches {
		if len(out) == s.opts.MaxResults {
			break
		}
		out = append(out, m.video)
	}
	return out
}

func (s *Service) fetch(ctx context.Context) (*gofeed.Feed, error) {
	if err := s.validate(s.opts.FeedURL); err != nil {
		s.metrics.RecordVideoFetchFailure("validate")
		return nil, fmt.Errorf("feed URL rejected: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.FeedURL, nil)
	if err != nil {
		s.metrics.RecordVideoFetchFailure("request")
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "StackForum/1.0")
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml, text/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.RecordVideoFetchFailure("request")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.RecordVideoFetchFailure("status")
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, s.opts.MaxSize))
	if err != nil {
		s.metrics.RecordVideoFetchFailure("parse")
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

func (s *Service) toVideo(it *gofeed.Item) model.Video {
	v := model.Video{
		Title:     strings.TrimSpace(it.Title),
		URL:       it.Link,
		Published: it.PublishedParsed,
	}

	desc := it.Description
	if desc == "" {
		desc = mediaValue(it, "description")
	}
	v.Description = s.sanitizer.Sanitize(desc)

	if it.Image != nil {
		v.Thumbnail = it.Image.URL
	} else {
		v.Thumbnail = mediaAttr(it, "thumbnail", "url")
	}
	return v
}

// mediaValue は YouTube が説明文を置く media:group/media:<name> を読む。
func mediaValue(it *gofeed.Item, name string) string {
	for _, g := range it.Extensions["media"]["group"] {
		for _, c := range g.Children[name] {
			if c.Value != "" {
				return c.Value
			}
		}
	}
	return ""
}

// mediaAttr は media:group/media:<name> の属性を読む。
func mediaAttr(it *gofeed.Item, name, attr string) string {
	for _, g := range it.Extensions["media"]["group"] {
		for _, c := range g.Children[name] {
			if v := c.Attrs[attr]; v != "" {
				return v
			}
		}
	}
	return ""
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "how": true, "what": true,
	"why": true, "when": true, "does": true, "can": true, "are": true, "you": true,
	"use": true, "using": true, "from": true, "into": true, "this": true, "that": true,
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}

func questionKeywords(q *model.Question) map[string]bool {
	keys := map[string]bool{}
	add := func(s string) {
		for _, w := range words(s) {
			if len(w) >= 2 && !stopWords[w] {
				keys[w] = true
			}
		}
	}
	add(q.Title)
	for _, t := range q.Tags {
		add(t.Name)
	}
	return keys
}

// overlap は title に含まれる異なるキーワードの数を数える。
func overlap(keywords map[string]bool, title string) int {
	seen := map[string]bool{}
	for _, w := range words(title) {
		if keywords[w] && !seen[w] {
			seen[w] = true
		}
	}
	return len(seen)
}
