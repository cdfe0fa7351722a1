package model

import "time"

// Session はBearerトークンとユーザーの対応付けを表す。
// プロセス内メモリにのみ保持され、再起動すると失われる。
type Session struct {
	Token    string
	UserID   string
	UserName string
	IssuedAt time.Time
}
