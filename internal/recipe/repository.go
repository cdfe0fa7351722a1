// Package recipe はレシピコレクションの所有・更新（Repository）と
// スナップショットに対する検索（Query）を提供する。
package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/recipes/internal/model"
	"github.com/hitoshi/recipes/internal/repository"
)

// maxIDAttempts はID衝突時の再生成回数の上限。
const maxIDAttempts = 8

// MetricsRecorder はリポジトリが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordMutation(op, result string)
	RecordStorageSave(duration time.Duration)
	SetRecipeCount(count int)
}

type nopMetrics struct{}

func (nopMetrics) RecordMutation(string, string)    {}
func (nopMetrics) RecordStorageSave(time.Duration) {}
func (nopMetrics) SetRecipeCount(int)              {}

// ミューテーション結果のラベル値
const (
	resultOK           = "ok"
	resultInvalid      = "invalid"
	resultNotFound     = "not_found"
	resultStorageError = "storage_error"
	resultIDExhausted  = "id_exhausted"
)

// collection は公開後に変更されないレシピコレクション。
// 更新時は複製してから変更し、保存に成功した場合のみ差し替える。
type collection struct {
	order []string
	byID  map[string]model.Recipe
}

func newCollection(recipes []model.Recipe) *collection {
	c := &collection{
		order: make([]string, 0, len(recipes)),
		byID:  make(map[string]model.Recipe, len(recipes)),
	}
	for _, r := range recipes {
		c.order = append(c.order, r.ID)
		c.byID[r.ID] = r.Clone()
	}
	return c
}

func (c *collection) clone() *collection {
	next := &collection{
		order: make([]string, len(c.order), len(c.order)+1),
		byID:  make(map[string]model.Recipe, len(c.byID)+1),
	}
	copy(next.order, c.order)
	for id, r := range c.byID {
		next.byID[id] = r
	}
	return next
}

// list は作成順のレシピ一覧をディープコピーで返す。
func (c *collection) list() []model.Recipe {
	out := make([]model.Recipe, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Clone())
	}
	return out
}

func (c *collection) remove(id string) {
	delete(c.byID, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Option はRepositoryの生成オプション。
type Option func(*Repository)

// WithClock はタイムスタンプ生成に使用する時計を差し替える。
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator はレシピID生成関数を差し替える。
func WithIDGenerator(newID func() string) Option {
	return func(r *Repository) { r.newID = newID }
}

// WithMetrics はメトリクス記録先を設定する。
func WithMetrics(m MetricsRecorder) Option {
	return func(r *Repository) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Repository はレシピコレクションの唯一の所有者であり、永続化ファイルへの唯一の書き手。
//
// 更新操作（Create/Update/Delete）はmuで直列化され、メモリ上の変更と
// RecipeStorage.Saveの呼び出しを同じロック区間内で行う。
// 読み取り操作（Get/ListSnapshot）はロックを取らず、atomic.Pointerで公開された
// 不変のコレクションを参照するため、保存中の書き手を待たない。
type Repository struct {
	mu      sync.Mutex
	current atomic.Pointer[collection]
	usedIDs map[string]struct{} // 削除済みを含む払い出し済みID。muで保護する

	storage repository.RecipeStorage
	now     func() time.Time
	newID   func() string
	metrics MetricsRecorder
}

// NewRepository はストレージからコレクションを読み込んでRepositoryを生成する。
// 永続化ファイルが不正な場合はStorageIOErrorを返す。起動を継続するかは呼び出し側が判断する。
func NewRepository(ctx context.Context, storage repository.RecipeStorage, opts ...Option) (*Repository, error) {
	r := &Repository{
		storage: storage,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}

	recipes, err := storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}

	c := newCollection(recipes)
	r.usedIDs = make(map[string]struct{}, len(c.order))
	for _, id := range c.order {
		r.usedIDs[id] = struct{}{}
	}
	r.current.Store(c)
	r.metrics.SetRecipeCount(len(c.order))

	return r, nil
}

// Create はレシピを検証して新しいIDとタイムスタンプを付与し、保存する。
func (r *Repository) Create(ctx context.Context, fields model.RecipeFields) (model.Recipe, error) {
	normalized, err := normalizeFields(fields)
	if err != nil {
		r.metrics.RecordMutation("create", resultInvalid)
		return model.Recipe{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	id, err := r.generateID(cur)
	if err != nil {
		r.metrics.RecordMutation("create", resultIDExhausted)
		slog.Error("recipe id generation failed", slog.String("error", err.Error()))
		return model.Recipe{}, err
	}

	now := r.now()
	created := model.Recipe{
		ID:           id,
		Title:        normalized.Title,
		Description:  normalized.Description,
		Ingredients:  normalized.Ingredients,
		Instructions: normalized.Instructions,
		Tags:         normalized.Tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	next := cur.clone()
	next.order = append(next.order, id)
	next.byID[id] = created

	if err := r.commit(ctx, "create", next); err != nil {
		return model.Recipe{}, err
	}
	r.usedIDs[id] = struct{}{}

	slog.Info("recipe created", slog.String("recipe_id", id))
	return created.Clone(), nil
}

// Get は指定IDのレシピを返す。存在しない場合はNotFoundErrorを返す。
func (r *Repository) Get(_ context.Context, id string) (model.Recipe, error) {
	rec, ok := r.current.Load().byID[id]
	if !ok {
		return model.Recipe{}, model.NewRecipeNotFoundError(id)
	}
	return rec.Clone(), nil
}

// Update は部分更新を適用する。patchで設定されたフィールドのみを変更し、
// 結果を再検証した上でUpdatedAtを更新して保存する。
func (r *Repository) Update(ctx context.Context, id string, patch model.RecipePatch) (model.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	prev, ok := cur.byID[id]
	if !ok {
		r.metrics.RecordMutation("update", resultNotFound)
		return model.Recipe{}, model.NewRecipeNotFoundError(id)
	}

	updated, err := applyPatch(prev, patch)
	if err != nil {
		r.metrics.RecordMutation("update", resultInvalid)
		return model.Recipe{}, err
	}

	// 時計が巻き戻ってもUpdatedAtは後退させない
	now := r.now()
	if now.Before(prev.UpdatedAt) {
		now = prev.UpdatedAt
	}
	updated.UpdatedAt = now

	next := cur.clone()
	next.byID[id] = updated

	if err := r.commit(ctx, "update", next); err != nil {
		return model.Recipe{}, err
	}

	slog.Info("recipe updated", slog.String("recipe_id", id))
	return updated.Clone(), nil
}

// Delete は指定IDのレシピを削除する。削除されたIDは再利用されない。
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	if _, ok := cur.byID[id]; !ok {
		r.metrics.RecordMutation("delete", resultNotFound)
		return model.NewRecipeNotFoundError(id)
	}

	next := cur.clone()
	next.remove(id)

	if err := r.commit(ctx, "delete", next); err != nil {
		return err
	}

	slog.Info("recipe deleted", slog.String("recipe_id", id))
	return nil
}

// ListSnapshot は現在のコレクションを作成順のディープコピーで返す。
// 返されたスライスは呼び出し側が自由に扱ってよい。
func (r *Repository) ListSnapshot() []model.Recipe {
	return r.current.Load().list()
}

// Count は現在のレシピ数を返す。
func (r *Repository) Count() int {
	return len(r.current.Load().order)
}

// commit はnextを永続化し、成功した場合のみ公開中のコレクションを差し替える。
// 保存に失敗した場合、メモリ上の状態は呼び出し前のまま残る。
// 呼び出し側はmuを保持していること。
func (r *Repository) commit(ctx context.Context, op string, next *collection) error {
	start := time.Now()
	err := r.storage.Save(ctx, next.list())
	r.metrics.RecordStorageSave(time.Since(start))

	if err != nil {
		r.metrics.RecordMutation(op, resultStorageError)
		slog.Error("recipe mutation rolled back",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeStorageIO {
			return err
		}
		return model.NewStorageIOError(op, err)
	}

	r.current.Store(next)
	r.metrics.RecordMutation(op, resultOK)
	r.metrics.SetRecipeCount(len(next.order))
	return nil
}

// generateID は未使用のIDを生成する。呼び出し側はmuを保持していること。
func (r *Repository) generateID(cur *collection) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := r.newID()
		if id == "" {
			continue
		}
		if _, used := r.usedIDs[id]; used {
			continue
		}
		if _, exists := cur.byID[id]; exists {
			continue
		}
		return id, nil
	}
	return "", fmt.Errorf("failed to generate unique recipe id after %d attempts", maxIDAttempts)
}
