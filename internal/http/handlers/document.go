package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomquiz-backend/internal/http/response"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/ctxutil"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

const DefaultMaxUploadBytes int64 = 50 << 20

type DocumentHandler struct {
	docs     services.DocumentService
	maxBytes int64
}

func NewDocumentHandler(docs services.DocumentService, maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &DocumentHandler{docs: docs, maxBytes: maxUploadBytes}
}

// POST /chunking takes a multipart "file" upload. The older doc_path form
// (query or form field) names a file on the worker host instead.
func (h *DocumentHandler) Chunking(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ctxutil.UserIDFrom(ctx)

	var (
		sub *services.DocumentSubmission
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(ferr, &tooLarge) {
				response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", ferr)
				return
			}
			if docPath := c.PostForm("doc_path"); docPath != "" {
				sub, err = h.docs.SubmitPath(ctx, owner, docPath)
			} else {
				response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing file"))
				return
			}
		} else {
			f, oerr := fh.Open()
			if oerr != nil {
				response.RespondError(c, http.StatusBadRequest, "invalid_request", oerr)
				return
			}
			defer f.Close()
			sub, err = h.docs.SubmitUpload(ctx, owner, fh.Filename, f, fh.Size)
		}
	} else {
		docPath := c.Query("doc_path")
		if docPath == "" {
			docPath = c.PostForm("doc_path")
		}
		sub, err = h.docs.SubmitPath(ctx, owner, docPath)
	}
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"status":          sub.Job.Status,
		"job_id":          sub.Job.ID,
		"collection_name": sub.CollectionName,
	})
}
