package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomquiz-backend/internal/http/response"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/ctxutil"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type ChatHandler struct {
	generation services.GenerationService
}

func NewChatHandler(generation services.GenerationService) *ChatHandler {
	return &ChatHandler{generation: generation}
}

// POST /chat?query=&collection_name=&blooms_requirements=&top_k=
func (h *ChatHandler) Chat(c *gin.Context) {
	req := services.GenerationRequest{
		Query:          c.Query("query"),
		CollectionName: c.Query("collection_name"),
		Requirements:   c.Query("blooms_requirements"),
	}
	if raw := strings.TrimSpace(c.Query("top_k")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		req.TopK = n
	}
	job, err := h.generation.Submit(c.Request.Context(), ctxutil.UserIDFrom(c.Request.Context()), req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": job.Status, "job_id": job.ID})
}
