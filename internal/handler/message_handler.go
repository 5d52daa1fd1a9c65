package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gazette-chat/internal/domain"
	"gazette-chat/internal/services"
	"gazette-chat/internal/transport/httpdto"
)

type MessageHandler struct {
	messages *services.MessageService
	receipts *services.ReceiptService
}

func NewMessageHandler(messages *services.MessageService, receipts *services.ReceiptService) *MessageHandler {
	return &MessageHandler{messages: messages, receipts: receipts}
}

func (h *MessageHandler) Send(c *gin.Context) {
	senderID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	in, ok := buildSendInput(c, req.Content, req.Type, req.MediaURL, req.TempID, req.ReplyToID)
	if !ok {
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), senderID, conversationID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	dto := httpdto.FromMessage(msg)
	dto.TempID = req.TempID
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(dto))
}

func (h *MessageHandler) SendDirect(c *gin.Context) {
	senderID, ok := requireUser(c)
	if !ok {
		return
	}
	var req httpdto.SendDirectMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		respondBadRequest(c, "invalid recipient id")
		return
	}

	in, ok := buildSendInput(c, req.Content, req.Type, req.MediaURL, req.TempID, "")
	if !ok {
		return
	}
	msg, err := h.messages.SendDirect(c.Request.Context(), senderID, recipientID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	dto := httpdto.FromMessage(msg)
	dto.TempID = req.TempID
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(dto))
}

func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	res, err := h.messages.List(c.Request.Context(), conversationID, userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListMessagesResponse{
		Messages: httpdto.FromMessageSlice(res.Messages),
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
		HasMore:  res.HasMore,
	}))
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	count, err := h.messages.UnreadCount(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{
		ConversationID: conversationID.String(),
		Unread:         count,
	}))
}

func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	if err := h.receipts.MarkMessageRead(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.receipts.MarkConversationRead(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func buildSendInput(c *gin.Context, content, msgType, mediaURL, tempID, replyToID string) (services.SendMessageInput, bool) {
	in := services.SendMessageInput{
		Content:  content,
		Type:     domain.MessageType(msgType),
		MediaURL: mediaURL,
		TempID:   tempID,
	}
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}
	if replyToID != "" {
		id, err := uuid.Parse(replyToID)
		if err != nil {
			respondBadRequest(c, "invalid reply id")
			return services.SendMessageInput{}, false
		}
		in.ReplyToID = uuid.NullUUID{UUID: id, Valid: true}
	}
	return in, true
}
