package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gazette-chat/internal/services"
	"gazette-chat/internal/transport/httpdto"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromUser(user)))
}

func (h *UserHandler) Follow(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req httpdto.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}
	followeeID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondBadRequest(c, "invalid user id")
		return
	}

	if err := h.users.Follow(c.Request.Context(), userID, followeeID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *UserHandler) RegisterPushSubscription(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req httpdto.RegisterPushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	sub, err := h.users.RegisterPushSubscription(c.Request.Context(), userID, services.PushSubscriptionInput{
		Endpoint:  req.Endpoint,
		KeyP256dh: req.P256dh,
		KeyAuth:   req.Auth,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.PushSubscriptionResponse{ID: sub.ID.String()}))
}

func (h *UserHandler) RevokePushSubscription(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	subID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.users.RevokePushSubscription(c.Request.Context(), userID, subID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
