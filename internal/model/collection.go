package model

// Collection はユーザーが保存した質問のリスト。
// コレクションCRUDのサブシステムが所有し、ここではバス上を流れるだけ。
type Collection struct {
	ID        string   `json:"_id"`
	Name      string   `json:"name"`
	Username  string   `json:"username"`
	Questions []string `json:"questions"`
	Private   bool     `json:"private"`
}
