package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/recipes/internal/middleware"
	"github.com/hitoshi/recipes/internal/model"
	"github.com/hitoshi/recipes/internal/recipe"
)

// successResponse は成功時のレスポンスエンベロープ。
type successResponse struct {
	Success bool              `json:"success"`
	Data    any               `json:"data"`
	Meta    *pageMetaResponse `json:"meta,omitempty"`
}

// recipeResponse はレシピのAPIレスポンス。
type recipeResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Ingredients  []string  `json:"ingredients"`
	Instructions string    `json:"instructions"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// pageMetaResponse はページネーション情報のAPIレスポンス。
type pageMetaResponse struct {
	Total        int  `json:"total"`
	TotalPages   int  `json:"total_pages"`
	FirstPage    int  `json:"first_page"`
	LastPage     int  `json:"last_page"`
	Page         int  `json:"page"`
	PreviousPage *int `json:"previous_page"`
	NextPage     *int `json:"next_page"`
	PageSize     int  `json:"page_size"`
}

// userResponse は認証ユーザー情報のAPIレスポンス。
type userResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toRecipeResponse(r model.Recipe) recipeResponse {
	return recipeResponse{
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

func toRecipeResponses(recipes []model.Recipe) []recipeResponse {
	out := make([]recipeResponse, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, toRecipeResponse(r))
	}
	return out
}

func toPageMetaResponse(m recipe.PageMeta) *pageMetaResponse {
	return &pageMetaResponse{
		Total:        m.Total,
		TotalPages:   m.TotalPages,
		FirstPage:    m.FirstPage,
		LastPage:     m.LastPage,
		Page:         m.Page,
		PreviousPage: m.PreviousPage,
		NextPage:     m.NextPage,
		PageSize:     m.PageSize,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			// 原因はログのみに記録する
			slog.Error("service error",
				slog.String("code", apiErr.Code),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteErrorResponse(w, statusCode, apiErr.Message)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeRecipeNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeStorageIO:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSONBody はリクエストボディをdstにデコードする。
// 失敗した場合はエラーレスポンスを書き込み、falseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if err == nil {
		// 本文はJSON値ひとつだけであること
		var extra json.RawMessage
		if err = dec.Decode(&extra); errors.Is(err, io.EOF) {
			return true
		}
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	middleware.WriteErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
	return false
}
