package handler

import "net/http"

// Root はサービス名を返す。
// GET /
func Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Recipe Explorer Backend"})
}

// Health はヘルスチェックに応答する。
// GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
