// Package model はドメインモデルを定義する。
package model

import "time"

// User はフォーラムのメンバー。Username は他のすべてのレコードが使う不変のキーで、
// 内部IDはユーザー管理のサブシステムの外には出さない。
type User struct {
	Username  string
	Email     string
	Password  string
	About     string
	Following []string
	Followers []string
	CreatedAt time.Time
}

// Profile は User の公開用の射影。認証情報のフィールドを持たないため、
// Profile から作ったものがパスワードを漏らすことはない。
type Profile struct {
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	About     string    `json:"about,omitempty"`
	Following []string  `json:"following"`
	Followers []string  `json:"followers"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicProfile はユーザーから認証情報を取り除く。
func (u *User) PublicProfile() Profile {
	following := u.Following
	if following == nil {
		following = []string{}
	}
	followers := u.Followers
	if followers == nil {
		followers = []string{}
	}
	return Profile{
		Username:  u.Username,
		Email:     u.Email,
		About:     u.About,
		Following: following,
		Followers: followers,
		CreatedAt: u.CreatedAt,
	}
}
