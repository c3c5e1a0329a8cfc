package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the API error envelope. Handlers have their own writer;
// middleware runs before them and cannot import the handlers package.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": msg,
	})
}
