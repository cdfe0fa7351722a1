// Package session はBearerトークンによるプロセス内セッション管理を提供する。
// セッションはメモリ上にのみ保持され、プロセスの再起動で失われる。
package session

import "context"

// Identity は認証済みユーザーを表す。
type Identity struct {
	UserID string
	Name   string
}

// Authenticator はユーザー名とパスワードを検証するインターフェース。
// 資格情報の検証方式を差し替えるための抽象化。
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Identity, error)
}

// AcceptAllAuthenticator はすべての資格情報を受け入れ、ユーザー名をユーザーIDとして返す。
// パスワードは検証しない。
type AcceptAllAuthenticator struct{}

// Authenticate はusernameをそのままIDと表示名に用いたIdentityを返す。
func (AcceptAllAuthenticator) Authenticate(_ context.Context, username, _ string) (Identity, error) {
	return Identity{UserID: username, Name: username}, nil
}
