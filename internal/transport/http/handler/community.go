package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mindmate/internal/app"
	"mindmate/internal/transport/http/middleware"
	"mindmate/internal/transport/http/response"
)

type CommunityHandler struct {
	communityService *app.CommunityService
}

type PostCommunityRequest struct {
	Text     string `json:"text" binding:"required"`
	ImageURL string `json:"image_url" binding:"omitempty,url,max=1024"`
}

func NewCommunityHandler(communityService *app.CommunityService) *CommunityHandler {
	return &CommunityHandler{communityService: communityService}
}

func (h *CommunityHandler) Post(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req PostCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	msg, err := h.communityService.Post(c.Request.Context(), app.PostCommunityInput{
		UserID:   userID,
		Username: c.GetString(middleware.ContextUsernameKey),
		Text:     req.Text,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrMessageTooLong):
			response.Error(c, http.StatusBadRequest, response.CodeMessageTooLong, err.Error())
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "post message failed")
		}
		return
	}

	response.OK(c, msg)
}

func (h *CommunityHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	messages, err := h.communityService.List(limit)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list messages failed")
		return
	}

	response.OK(c, messages)
}

// Stream relays the live community feed as server-sent events until the
// client disconnects.
func (h *CommunityHandler) Stream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	ctx := c.Request.Context()
	feed, err := h.communityService.Subscribe(ctx)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "subscribe failed")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-feed:
			if !open {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := writeSSE(c, flusher, "message", string(payload)); err != nil {
				return
			}
		}
	}
}
