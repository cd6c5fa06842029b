package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomquiz-backend/internal/http/response"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/ctxutil"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type AssessmentHandler struct {
	assessments services.AssessmentService
}

func NewAssessmentHandler(assessments services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// GET /api/assessments?limit=&offset=
func (h *AssessmentHandler) List(c *gin.Context) {
	uid := ctxutil.UserIDFrom(c.Request.Context())
	if uid == nil {
		response.RespondServiceError(c, services.ErrInvalidToken)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := h.assessments.ListForUser(c.Request.Context(), *uid, limit, offset)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessments": rows})
}

// GET /api/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	uid := ctxutil.UserIDFrom(c.Request.Context())
	if uid == nil {
		response.RespondServiceError(c, services.ErrInvalidToken)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.RespondError(c, http.StatusNotFound, "not_found", services.ErrNotFound)
		return
	}
	row, err := h.assessments.GetForUser(c.Request.Context(), *uid, uint(id))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": row})
}
