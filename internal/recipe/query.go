package recipe

import (
	"strings"

	"github.com/hitoshi/recipes/internal/model"
)

// ページネーションの既定値と上限
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// QueryParams はレシピ一覧の検索条件。
// SearchとIngredientは空文字列（空白のみを含む）の場合は条件なしとして扱う。
type QueryParams struct {
	Search     string
	Ingredient string
	Page       model.Optional[int]
	PageSize   model.Optional[int]
}

// PageMeta はページネーション情報。
type PageMeta struct {
	Total        int
	TotalPages   int
	FirstPage    int
	LastPage     int
	Page         int
	PreviousPage *int
	NextPage     *int
	PageSize     int
}

// QueryResult は検索結果。Totalはページング前の一致件数。
type QueryResult struct {
	Items []model.Recipe
	Total int
	Meta  PageMeta
}

// Query はスナップショットに対して検索・フィルタ・ページングを行う。
// 共有状態を持たない純粋関数で、スナップショットの順序（作成順）を保ったまま返す。
//
// 適用順序:
//  1. Search: タイトルまたはいずれかの材料に大文字小文字を区別せず部分一致
//  2. Ingredient: いずれかの材料に大文字小文字を区別せず完全一致
func Query(snapshot []model.Recipe, p QueryParams) QueryResult {
	search := strings.ToLower(strings.TrimSpace(p.Search))
	ingredient := strings.TrimSpace(p.Ingredient)

	filtered := make([]model.Recipe, 0, len(snapshot))
	for _, r := range snapshot {
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		if ingredient != "" && !hasIngredient(r, ingredient) {
			continue
		}
		filtered = append(filtered, r)
	}

	page := clampPage(p.Page)
	pageSize := clampPageSize(p.PageSize)
	total := len(filtered)
	totalPages := (total + pageSize - 1) / pageSize

	items := []model.Recipe{}
	end := 0
	if page <= totalPages {
		start := (page - 1) * pageSize
		end = min(start+pageSize, total)
		items = filtered[start:end]
	}

	meta := PageMeta{
		Total:      total,
		TotalPages: totalPages,
		FirstPage:  1,
		LastPage:   max(totalPages, 1),
		Page:       page,
		PageSize:   pageSize,
	}
	if page > 1 {
		prev := page - 1
		meta.PreviousPage = &prev
	}
	if end > 0 && end < total {
		next := page + 1
		meta.NextPage = &next
	}

	return QueryResult{Items: items, Total: total, Meta: meta}
}

// matchesSearch はloweredSearchがタイトルまたはいずれかの材料に含まれるかを返す。
func matchesSearch(r model.Recipe, loweredSearch string) bool {
	if strings.Contains(strings.ToLower(r.Title), loweredSearch) {
		return true
	}
	for _, ing := range r.Ingredients {
		if strings.Contains(strings.ToLower(ing), loweredSearch) {
			return true
		}
	}
	return false
}

func hasIngredient(r model.Recipe, ingredient string) bool {
	for _, ing := range r.Ingredients {
		if strings.EqualFold(strings.TrimSpace(ing), ingredient) {
			return true
		}
	}
	return false
}

func clampPage(p model.Optional[int]) int {
	return max(p.OrElse(DefaultPage), 1)
}

func clampPageSize(p model.Optional[int]) int {
	return min(max(p.OrElse(DefaultPageSize), 1), MaxPageSize)
}
