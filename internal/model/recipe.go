// Package model はドメインモデルを定義する。
package model

import (
	"slices"
	"time"
)

// Recipe はレシピを表す。
// ID、CreatedAt、UpdatedAtはリポジトリが採番・設定し、クライアントからは書き込めない。
type Recipe struct {
	ID           string
	Title        string
	Description  string
	Ingredients  []string // 順序に意味がある
	Instructions string
	Tags         []string // 重複除去済み、初出順
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone はスライスを共有しないディープコピーを返す。
func (r Recipe) Clone() Recipe {
	c := r
	c.Ingredients = cloneStrings(r.Ingredients)
	c.Tags = cloneStrings(r.Tags)
	return c
}

// RecipeFields はレシピ作成時にクライアントが指定できるフィールド。
type RecipeFields struct {
	Title        string
	Description  string
	Ingredients  []string
	Instructions string
	Tags         []string
}

// RecipePatch はレシピの部分更新を表す。
// 未設定のフィールドは既存の値を維持し、空値が設定されたフィールドはクリアされる。
type RecipePatch struct {
	Title        Optional[string]
	Description  Optional[string]
	Ingredients  Optional[[]string]
	Instructions Optional[string]
	Tags         Optional[[]string]
}

// IsEmpty はいずれのフィールドも設定されていない場合にtrueを返す。
func (p RecipePatch) IsEmpty() bool {
	return !p.Title.IsSet() &&
		!p.Description.IsSet() &&
		!p.Ingredients.IsSet() &&
		!p.Instructions.IsSet() &&
		!p.Tags.IsSet()
}

// Optional は「値なし」と「ゼロ値」を区別するためのラッパー。
type Optional[T any] struct {
	value T
	set   bool
}

// Some は値が設定されたOptionalを返す。
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None は値が設定されていないOptionalを返す。
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get は値と設定有無を返す。
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet は値が設定されている場合にtrueを返す。
func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse は値が設定されていればその値を、なければfallbackを返す。
func (o Optional[T]) OrElse(fallback T) T {
	if o.set {
		return o.value
	}
	return fallback
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
