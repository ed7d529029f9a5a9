package model

import "time"

// DateWindow は両端を含む [Start, End] の期間。nil は全期間を表す。
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains は t が期間内（両端を含む）にあるかを返す。
func (w *DateWindow) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// RankedUser はランキングの1行で、公開プロフィールと回答数を持つ。
// パスワードのフィールドを持たない Profile を埋め込む。
type RankedUser struct {
	Profile
	Count    int  `json:"count"`
	IsViewer bool `json:"isViewer,omitempty"`
}
