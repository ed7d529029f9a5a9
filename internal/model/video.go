package model

import "time"

// Video は質問の横に表示する関連動画。
type Video struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	Published   *time.Time `json:"published,omitempty"`
}
