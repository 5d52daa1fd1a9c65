package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/services"
	"gazette-chat/internal/transport/httpdto"
)

type ConversationHandler struct {
	membership *services.MembershipService
}

func NewConversationHandler(membership *services.MembershipService) *ConversationHandler {
	return &ConversationHandler{membership: membership}
}

func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	creatorID, ok := requireUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}
	participantIDs, ok := parseIDList(req.ParticipantIDs)
	if !ok {
		respondBadRequest(c, "invalid participant id")
		return
	}

	conv, err := h.membership.CreateGroup(c.Request.Context(), creatorID, services.CreateGroupInput{
		Name:           req.Name,
		Description:    req.Description,
		ImageURL:       req.ImageURL,
		ParticipantIDs: participantIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, total, err := h.membership.ListConversations(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListConversationsResponse{
		Conversations: httpdto.FromConversationSlice(items),
		Total:         total,
	}))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.membership.GetConversation(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) UpdateMetadata(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	conv, err := h.membership.UpdateGroupMetadata(c.Request.Context(), conversationID, userID, services.UpdateGroupMetadataInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) AddParticipants(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}
	newIDs, ok := parseIDList(req.UserIDs)
	if !ok {
		respondBadRequest(c, "invalid user id")
		return
	}

	conv, err := h.membership.AddParticipants(c.Request.Context(), conversationID, userID, newIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	res, err := h.membership.RemoveParticipant(c.Request.Context(), conversationID, userID, targetID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := httpdto.RemoveParticipantResponse{Deleted: res.Deleted}
	if res.NewOwnerID.Valid {
		out.NewOwnerID = res.NewOwnerID.UUID.String()
	}
	if !res.Deleted {
		dto := httpdto.FromConversation(res.Conversation)
		out.Group = &dto
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

// Leave is RemoveParticipant with the requester as target.
func (h *ConversationHandler) Leave(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	res, err := h.membership.RemoveParticipant(c.Request.Context(), conversationID, userID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := httpdto.RemoveParticipantResponse{Deleted: res.Deleted}
	if res.NewOwnerID.Valid {
		out.NewOwnerID = res.NewOwnerID.UUID.String()
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *ConversationHandler) SetParticipantRole(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	var req httpdto.UpdateParticipantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	err := h.membership.SetParticipantRole(c.Request.Context(), conversationID, userID, targetID, domain.ParticipantRole(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *ConversationHandler) SetMuted(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.SetMutedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	if err := h.membership.SetMuted(c.Request.Context(), conversationID, userID, req.Muted); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *ConversationHandler) SetNickname(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.SetNicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	if err := h.membership.SetNickname(c.Request.Context(), conversationID, userID, req.Nickname); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
