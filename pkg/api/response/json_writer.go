package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/avdeev/taskchat/pkg/logger"
)

// JSONResponseWriter renders the non-streaming API responses. Errors share
// one envelope shape, {"error": "..."}, so clients never have to guess.
type JSONResponseWriter struct{}

func (JSONResponseWriter) WriteSuccessResponse(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func (JSONResponseWriter) WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorBody{Error: message})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encoding response", "status", statusCode, logger.Err(err))
	}
}
