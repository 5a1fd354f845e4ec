package handler

import (
	"net/http"

	"github.com/avdeev/taskchat/pkg/api/response"
)

type health struct {
	writer response.JSONResponseWriter
}

func NewHealth() *health {
	return &health{}
}

func (h *health) Check(w http.ResponseWriter, _ *http.Request) {
	h.writer.WriteSuccessResponse(w, map[string]string{"status": "ok"})
}
