package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gazette-chat/internal/events"
	"gazette-chat/internal/services"
	"gazette-chat/internal/transport/httpdto"
	gazette_errors "gazette-chat/pkg/errors"
	"gazette-chat/pkg/logger"
)

// Authorizer mirrors the socket layer's channel check so both transports
// enforce the same membership rule.
type Authorizer interface {
	CanSubscribe(ctx context.Context, userID, channel string) (bool, error)
}

type Handler struct {
	broker        *Broker
	authorizer    Authorizer
	flushInterval time.Duration
	log           *logger.Logger
}

func NewHandler(broker *Broker, authorizer Authorizer, flushInterval time.Duration, log *logger.Logger) *Handler {
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Handler{broker: broker, authorizer: authorizer, flushInterval: flushInterval, log: log}
}

// Poll is the long-poll fallback: returns buffered events past the client's
// cursor, waiting up to waitSeconds for new ones.
func (h *Handler) Poll(c *gin.Context) {
	channel, ok := h.authorizeConversation(c)
	if !ok {
		return
	}

	afterSeq, _ := strconv.ParseUint(c.Query("after"), 10, 64)
	waitSeconds, _ := strconv.Atoi(c.DefaultQuery("wait", "25"))
	if waitSeconds < 0 {
		waitSeconds = 0
	}
	if waitSeconds > 60 {
		waitSeconds = 60
	}

	res, err := h.broker.Poll(c.Request.Context(), channel, afterSeq, time.Duration(waitSeconds)*time.Second)
	if err != nil {
		// Client went away mid-wait.
		return
	}

	type eventDTO struct {
		Seq     uint64          `json:"seq"`
		Payload json.RawMessage `json:"payload"`
	}
	out := make([]eventDTO, 0, len(res.Events))
	for _, e := range res.Events {
		out = append(out, eventDTO{Seq: e.Seq, Payload: e.Payload})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"events":  out,
		"nextSeq": res.NextSeq,
		"gapped":  res.Gapped,
	}))
}

// Events streams the conversation's delivery channel over SSE.
func (h *Handler) Events(c *gin.Context) {
	channel, ok := h.authorizeConversation(c)
	if !ok {
		return
	}

	afterSeq, _ := strconv.ParseUint(c.Query("after"), 10, 64)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("streaming unsupported", "TRANSPORT_ERROR"))
		return
	}

	fmt.Fprintf(c.Writer, "event: connect\ndata: {\"channel\":%q}\n\n", channel)
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		res, err := h.broker.Poll(ctx, channel, afterSeq, h.flushInterval)
		if err != nil {
			return
		}
		if len(res.Events) == 0 {
			// Heartbeat comment keeps intermediaries from closing the stream.
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			flusher.Flush()
			continue
		}
		for _, e := range res.Events {
			fmt.Fprintf(c.Writer, "id: %d\nevent: message\ndata: %s\n\n", e.Seq, e.Payload)
		}
		afterSeq = res.NextSeq
		flusher.Flush()
	}
}

func (h *Handler) authorizeConversation(c *gin.Context) (string, bool) {
	userID, authed := services.UserIDFromContext(c.Request.Context())
	if !authed {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", gazette_errors.Code(gazette_errors.ErrUnauthorized)))
		return "", false
	}

	channel := events.ConversationChannel(c.Param("id"))
	ok, err := h.authorizer.CanSubscribe(c.Request.Context(), userID.String(), channel)
	if err != nil {
		h.log.Errorf("stream authorization for %s: %v", channel, err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("authorization failed", "INTERNAL_ERROR"))
		return "", false
	}
	if !ok {
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", gazette_errors.Code(gazette_errors.ErrForbidden)))
		return "", false
	}
	return channel, true
}
