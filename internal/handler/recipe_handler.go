package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recipes/internal/middleware"
	"github.com/hitoshi/recipes/internal/model"
	"github.com/hitoshi/recipes/internal/recipe"
	"github.com/hitoshi/recipes/internal/security"
)

// RecipeServiceInterface はレシピハンドラーが必要とするサービスインターフェース。
// recipe.Repositoryが満たす。
type RecipeServiceInterface interface {
	Create(ctx context.Context, fields model.RecipeFields) (model.Recipe, error)
	Get(ctx context.Context, id string) (model.Recipe, error)
	Update(ctx context.Context, id string, patch model.RecipePatch) (model.Recipe, error)
	Delete(ctx context.Context, id string) error
	ListSnapshot() []model.Recipe
}

// RecipeHandler はレシピ管理のHTTPハンドラー。
type RecipeHandler struct {
	service   RecipeServiceInterface
	sanitizer security.TextSanitizerService
}

// NewRecipeHandler はRecipeHandlerを生成する。
func NewRecipeHandler(service RecipeServiceInterface, sanitizer security.TextSanitizerService) *RecipeHandler {
	return &RecipeHandler{
		service:   service,
		sanitizer: sanitizer,
	}
}

// createRecipeRequest はレシピ作成リクエストのボディ。
// titleとingredientsは必須、それ以外は省略可能。
type createRecipeRequest struct {
	Title        *string  `json:"title"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Tags         []string `json:"tags"`
}

// ListRecipes はレシピ一覧を検索・ページングして返す。
// GET /recipes?q=&ingredient=&page=&page_size=
func (h *RecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := parseOptionalInt(query, "page")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	pageSize, err := parseOptionalInt(query, "page_size")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := recipe.Query(h.service.ListSnapshot(), recipe.QueryParams{
		Search:     query.Get("q"),
		Ingredient: query.Get("ingredient"),
		Page:       page,
		PageSize:   pageSize,
	})

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Data:    toRecipeResponses(result.Items),
		Meta:    toPageMetaResponse(result.Meta),
	})
}

// CreateRecipe はレシピを作成する。
// POST /recipes
func (h *RecipeHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req createRecipeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Title == nil {
		handleServiceError(w, model.NewValidationError("title", "is required"))
		return
	}
	if req.Ingredients == nil {
		handleServiceError(w, model.NewValidationError("ingredients", "is required"))
		return
	}

	created, err := h.service.Create(r.Context(), model.RecipeFields{
		Title:        h.sanitizer.Sanitize(*req.Title),
		Description:  h.sanitizer.Sanitize(req.Description),
		Ingredients:  h.sanitizer.SanitizeAll(req.Ingredients),
		Instructions: h.sanitizer.Sanitize(req.Instructions),
		Tags:         h.sanitizer.SanitizeAll(req.Tags),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, successResponse{Success: true, Data: toRecipeResponse(created)})
}

// GetRecipe はレシピ詳細を取得する。
// GET /recipes/{id}
func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: toRecipeResponse(found)})
}

// UpdateRecipe はレシピを部分更新する。PUTとPATCHの両方で同じ意味を持つ。
// ボディに含まれないキーは変更しない。nullは空文字列・空リストとして扱う。
// PUT|PATCH /recipes/{id}
func (h *RecipeHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if !decodeJSONBody(w, r, &raw) {
		return
	}
	if raw == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	patch, err := h.decodePatch(raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: toRecipeResponse(updated)})
}

// DeleteRecipe はレシピを削除する。
// DELETE /recipes/{id}
func (h *RecipeHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodePatch はキーごとのJSON値からRecipePatchを組み立てる。未知のキーは無視する。
func (h *RecipeHandler) decodePatch(raw map[string]json.RawMessage) (model.RecipePatch, error) {
	var patch model.RecipePatch
	var err error

	if patch.Title, err = h.optionalString(raw, "title"); err != nil {
		return model.RecipePatch{}, err
	}
	if patch.Description, err = h.optionalString(raw, "description"); err != nil {
		return model.RecipePatch{}, err
	}
	if patch.Instructions, err = h.optionalString(raw, "instructions"); err != nil {
		return model.RecipePatch{}, err
	}
	if patch.Ingredients, err = h.optionalList(raw, "ingredients"); err != nil {
		return model.RecipePatch{}, err
	}
	if patch.Tags, err = h.optionalList(raw, "tags"); err != nil {
		return model.RecipePatch{}, err
	}

	return patch, nil
}

func (h *RecipeHandler) optionalString(raw map[string]json.RawMessage, key string) (model.Optional[string], error) {
	v, ok := raw[key]
	if !ok {
		return model.None[string](), nil
	}
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return model.None[string](), model.NewValidationError(key, "must be a string")
	}
	if s == nil {
		return model.Some(""), nil
	}
	return model.Some(h.sanitizer.Sanitize(*s)), nil
}

func (h *RecipeHandler) optionalList(raw map[string]json.RawMessage, key string) (model.Optional[[]string], error) {
	v, ok := raw[key]
	if !ok {
		return model.None[[]string](), nil
	}
	var list []string
	if err := json.Unmarshal(v, &list); err != nil {
		return model.None[[]string](), model.NewValidationError(key, "must be a list of strings")
	}
	if list == nil {
		return model.Some([]string{}), nil
	}
	return model.Some(h.sanitizer.SanitizeAll(list)), nil
}

// parseOptionalInt はクエリパラメータを整数として解析する。未指定または空の場合はNoneを返す。
func parseOptionalInt(query url.Values, key string) (model.Optional[int], error) {
	s := strings.TrimSpace(query.Get(key))
	if s == "" {
		return model.None[int](), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return model.None[int](), model.NewValidationError(key, "must be an integer")
	}
	return model.Some(n), nil
}
