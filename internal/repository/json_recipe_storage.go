package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/hitoshi/recipes/internal/model"
)

const (
	defaultFilePerm os.FileMode = 0o644
	defaultDirPerm  os.FileMode = 0o755
)

// recipeRecord は永続化ファイル上のレシピ表現。
type recipeRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Ingredients  []string  `json:"ingredients"`
	Instructions string    `json:"instructions"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// JSONFileRecipeStorage は単一のJSONファイルを使用したレシピストレージ。
// ファイルのルートはレシピオブジェクトの配列。
type JSONFileRecipeStorage struct {
	path string
}

// NewJSONFileRecipeStorage はJSONFileRecipeStorageを生成する。
func NewJSONFileRecipeStorage(path string) *JSONFileRecipeStorage {
	return &JSONFileRecipeStorage{path: path}
}

// Path は保存先ファイルのパスを返す。
func (s *JSONFileRecipeStorage) Path() string {
	return s.path
}

// Load はJSONファイルからレシピコレクションを読み込む。
// ファイルが存在しない場合、または空ファイルの場合は空のコレクションを返す。
// 不正な内容は破棄せずにStorageIOErrorとして返す。
func (s *JSONFileRecipeStorage) Load(ctx context.Context) ([]model.Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewStorageIOError("load", err)
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Recipe{}, nil
	}
	if err != nil {
		return nil, model.NewStorageIOError("load", fmt.Errorf("failed to read %s: %w", s.path, err))
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []model.Recipe{}, nil
	}
	if trimmed[0] != '[' {
		return nil, model.NewStorageIOError("load", fmt.Errorf("malformed %s: root must be a JSON array", s.path))
	}

	var records []recipeRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, model.NewStorageIOError("load", fmt.Errorf("malformed %s: %w", s.path, err))
	}

	recipes := make([]model.Recipe, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, model.NewStorageIOError("load", fmt.Errorf("malformed %s: recipe #%d has no id", s.path, i))
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, model.NewStorageIOError("load", fmt.Errorf("malformed %s: duplicate recipe id %q", s.path, rec.ID))
		}
		seen[rec.ID] = struct{}{}
		recipes = append(recipes, toModelRecipe(rec))
	}

	return recipes, nil
}

// Save はレシピコレクションをJSONファイルにアトミックに書き込む。
// 同一ディレクトリの一時ファイルに書き込んでfsyncした後、renameで置き換える。
func (s *JSONFileRecipeStorage) Save(ctx context.Context, recipes []model.Recipe) error {
	if err := ctx.Err(); err != nil {
		return model.NewStorageIOError("save", err)
	}

	data, err := encodeRecipes(recipes)
	if err != nil {
		return model.NewStorageIOError("save", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return model.NewStorageIOError("save", fmt.Errorf("failed to create directory %s: %w", dir, err))
		}
	}

	if err := renameio.WriteFile(s.path, data, defaultFilePerm); err != nil {
		return model.NewStorageIOError("save", fmt.Errorf("failed to write %s: %w", s.path, err))
	}

	return nil
}

// encodeRecipes はコレクションを2スペースインデント、末尾改行付きのJSONに変換する。
func encodeRecipes(recipes []model.Recipe) ([]byte, error) {
	records := make([]recipeRecord, 0, len(recipes))
	for _, r := range recipes {
		records = append(records, toRecord(r))
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipes: %w", err)
	}
	return append(data, '\n'), nil
}

func toRecord(r model.Recipe) recipeRecord {
	return recipeRecord{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Ingredients:  nonNil(r.Ingredients),
		Instructions: r.Instructions,
		Tags:         nonNil(r.Tags),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toModelRecipe(rec recipeRecord) model.Recipe {
	return model.Recipe{
		ID:           rec.ID,
		Title:        rec.Title,
		Description:  rec.Description,
		Ingredients:  nonNil(rec.Ingredients),
		Instructions: rec.Instructions,
		Tags:         nonNil(rec.Tags),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

// nonNil はnilスライスを空スライスに置き換える。JSONでnullではなく[]として出力するため。
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// compile-time interface check
var _ RecipeStorage = (*JSONFileRecipeStorage)(nil)
