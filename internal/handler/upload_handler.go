package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gazette-chat/internal/services"
	"gazette-chat/internal/transport/httpdto"
)

type UploadHandler struct {
	uploads *services.UploadService
}

func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req httpdto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	res, err := h.uploads.CreatePresignedMediaUpload(c.Request.Context(), services.PresignInput{
		UploaderID:  userID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignUploadResponse{
		UploadURL:   res.UploadURL,
		Headers:     res.Headers,
		MediaURL:    res.MediaURL,
		MessageType: string(res.MessageType),
	}))
}
