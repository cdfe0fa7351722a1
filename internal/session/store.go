package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/recipes/internal/model"
)

// MaxUsernameLength はユーザー名の最大文字数。
const MaxUsernameLength = 100

// tokenBytes はトークンの乱数バイト長（16進表記で64文字）。
const tokenBytes = 32

// Expiry はセッションの有効期限ポリシー。
type Expiry interface {
	Expired(s model.Session, now time.Time) bool
}

// NeverExpire はセッションを失効させないポリシー。
type NeverExpire struct{}

// Expired は常にfalseを返す。
func (NeverExpire) Expired(model.Session, time.Time) bool { return false }

// MaxAge は発行からの経過時間で失効させるポリシー。
type MaxAge time.Duration

// Expired は発行から期間を超えていればtrueを返す。0以下の場合は失効しない。
func (m MaxAge) Expired(s model.Session, now time.Time) bool {
	if m <= 0 {
		return false
	}
	return !now.Before(s.IssuedAt.Add(time.Duration(m)))
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithAuthenticator は資格情報の検証方式を設定する。
func WithAuthenticator(a Authenticator) Option {
	return func(s *Store) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithExpiry は有効期限ポリシーを設定する。
func WithExpiry(e Expiry) Option {
	return func(s *Store) {
		if e != nil {
			s.expiry = e
		}
	}
}

// WithClock は時計を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTokenGenerator はトークン生成関数を差し替える。
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(s *Store) { s.newToken = gen }
}

// Store はトークンからセッションへの対応を保持する。
// レシピリポジトリとは独立したロックで保護される。
type Store struct {
	mu       sync.RWMutex
	sessions map[string]model.Session

	auth     Authenticator
	expiry   Expiry
	now      func() time.Time
	newToken func() (string, error)
}

// NewStore はStoreを生成する。既定ではすべての資格情報を受け入れ、セッションは失効しない。
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]model.Session),
		auth:     AcceptAllAuthenticator{},
		expiry:   NeverExpire{},
		now:      time.Now,
		newToken: generateToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login は資格情報を検証してセッションを発行する。
// ユーザー名は前後の空白を除去した上で空でなく、MaxUsernameLength以下である必要がある。
func (s *Store) Login(ctx context.Context, username, password string) (model.Session, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return model.Session{}, model.NewValidationError("username", "must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return model.Session{}, model.NewValidationError("username", fmt.Sprintf("must be at most %d characters", MaxUsernameLength))
	}

	ident, err := s.auth.Authenticate(ctx, name, password)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to authenticate: %w", err)
	}

	token, err := s.newToken()
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	sess := model.Session{
		Token:    token,
		UserID:   ident.UserID,
		UserName: ident.Name,
		IssuedAt: s.now(),
	}

	s.mu.Lock()
	if _, dup := s.sessions[token]; dup {
		s.mu.Unlock()
		return model.Session{}, fmt.Errorf("failed to generate session token: collision")
	}
	s.sessions[token] = sess
	s.mu.Unlock()

	slog.Info("user logged in", slog.String("user_id", sess.UserID))
	return sess, nil
}

// Logout はセッションを破棄する。未知のトークンに対しても成功する。
func (s *Store) Logout(_ context.Context, token string) {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()

	if ok {
		slog.Info("user logged out", slog.String("user_id", sess.UserID))
	}
}

// WhoAmI はトークンに対応するユーザーIDを返す。
func (s *Store) WhoAmI(ctx context.Context, token string) (string, error) {
	sess, err := s.Lookup(ctx, token)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// Lookup はトークンに対応するセッションを返す。
// トークンが空・未知・失効済みの場合はUnauthorizedErrorを返す。失効済みのセッションはここで削除される。
func (s *Store) Lookup(_ context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, model.NewUnauthorizedError()
	}

	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return model.Session{}, model.NewUnauthorizedError()
	}

	now := s.now()
	if !s.expiry.Expired(sess, now) {
		return sess, nil
	}

	s.mu.Lock()
	// ロック再取得の間に再発行されていないか確認する
	if cur, ok := s.sessions[token]; ok && s.expiry.Expired(cur, now) {
		delete(s.sessions, token)
	}
	s.mu.Unlock()

	return model.Session{}, model.NewUnauthorizedError()
}

// SweepExpired は失効済みのセッションをすべて削除し、削除した件数を返す。
// 失効しないポリシーの場合は何もしない。
func (s *Store) SweepExpired(_ context.Context) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if s.expiry.Expired(sess, now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Reset はすべてのセッションを破棄する。
func (s *Store) Reset() {
	s.mu.Lock()
	s.sessions = make(map[string]model.Session)
	s.mu.Unlock()
}

// Count は保持しているセッション数を返す。失効済みで未削除のものを含む。
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// generateToken は暗号的に安全なトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
