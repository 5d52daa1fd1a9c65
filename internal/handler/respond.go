package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gazette-chat/internal/services"
	"gazette-chat/internal/transport/httpdto"
	gazette_errors "gazette-chat/pkg/errors"
)

// respondError maps service sentinels onto HTTP statuses and the stable
// error codes clients branch on.
func respondError(c *gin.Context, err error) {
	c.JSON(gazette_errors.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), gazette_errors.Code(err)))
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, gazette_errors.Code(gazette_errors.ErrValidation)))
}

// requireUser pulls the authenticated user set by the auth middleware.
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", gazette_errors.Code(gazette_errors.ErrUnauthorized)))
		return uuid.Nil, false
	}
	return userID, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseIDList(raw []string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
