package recipe

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/recipes/internal/model"
)

// フィールド長の上限（文字数）
const (
	MaxTitleLength        = 200
	MaxDescriptionLength  = 2000
	MaxInstructionsLength = 10000
)

// normalizeFields は作成用フィールドを検証し、正規化した値を返す。
// タイトルと材料は前後の空白を取り除き、タグは重複と空要素を除去する。
func normalizeFields(f model.RecipeFields) (model.RecipeFields, error) {
	title, err := normalizeTitle(f.Title)
	if err != nil {
		return model.RecipeFields{}, err
	}
	if err := checkLength("description", f.Description, MaxDescriptionLength); err != nil {
		return model.RecipeFields{}, err
	}
	if err := checkLength("instructions", f.Instructions, MaxInstructionsLength); err != nil {
		return model.RecipeFields{}, err
	}
	ingredients, err := normalizeIngredients(f.Ingredients)
	if err != nil {
		return model.RecipeFields{}, err
	}

	return model.RecipeFields{
		Title:        title,
		Description:  f.Description,
		Ingredients:  ingredients,
		Instructions: f.Instructions,
		Tags:         normalizeTags(f.Tags),
	}, nil
}

// applyPatch はprevにpatchを適用した新しいレシピを返す。prevのスライスは変更しない。
func applyPatch(prev model.Recipe, patch model.RecipePatch) (model.Recipe, error) {
	next := prev.Clone()

	if v, ok := patch.Title.Get(); ok {
		title, err := normalizeTitle(v)
		if err != nil {
			return model.Recipe{}, err
		}
		next.Title = title
	}
	if v, ok := patch.Description.Get(); ok {
		if err := checkLength("description", v, MaxDescriptionLength); err != nil {
			return model.Recipe{}, err
		}
		next.Description = v
	}
	if v, ok := patch.Ingredients.Get(); ok {
		ingredients, err := normalizeIngredients(v)
		if err != nil {
			return model.Recipe{}, err
		}
		next.Ingredients = ingredients
	}
	if v, ok := patch.Instructions.Get(); ok {
		if err := checkLength("instructions", v, MaxInstructionsLength); err != nil {
			return model.Recipe{}, err
		}
		next.Instructions = v
	}
	if v, ok := patch.Tags.Get(); ok {
		next.Tags = normalizeTags(v)
	}

	return next, nil
}

func normalizeTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", model.NewValidationError("title", "must not be empty")
	}
	if err := checkLength("title", t, MaxTitleLength); err != nil {
		return "", err
	}
	return t, nil
}

func normalizeIngredients(ingredients []string) ([]string, error) {
	out := make([]string, 0, len(ingredients))
	for i, ing := range ingredients {
		v := strings.TrimSpace(ing)
		if v == "" {
			return nil, model.NewValidationError(fmt.Sprintf("ingredients[%d]", i), "must not be empty")
		}
		out = append(out, v)
	}
	return out, nil
}

// normalizeTags は空のタグを除去し、重複を初出順で取り除く。
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		v := strings.TrimSpace(tag)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return model.NewValidationError(field, fmt.Sprintf("must be at most %d characters", limit))
	}
	return nil
}
