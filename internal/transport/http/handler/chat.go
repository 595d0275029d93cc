package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mindmate/internal/app"
	"mindmate/internal/transport/http/middleware"
	"mindmate/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=512"`
}

// SendMessageRequest starts a new session when SessionID is zero.
type SendMessageRequest struct {
	SessionID uint       `json:"session_id"`
	Content   string     `json:"content" binding:"required"`
	Voice     bool       `json:"voice"`
	LLM       LLMRequest `json:"llm"`
}

type LLMRequest struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}

	session, err := h.chatService.CreateSession(app.CreateSessionInput{
		UserID: userID,
		Title:  req.Title,
	})
	if err != nil {
		writeChatError(c, err, "create session failed")
		return
	}

	response.OK(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessions, err := h.chatService.ListSessions(userID)
	if err != nil {
		writeChatError(c, err, "list sessions failed")
		return
	}

	response.OK(c, sessions)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessionID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), userID, uint(sessionID64)); err != nil {
		writeChatError(c, err, "delete session failed")
		return
	}

	response.OK(c, gin.H{"deleted_session_id": uint(sessionID64)})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	input, ok := bindSendMessage(c)
	if !ok {
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), input)
	if err != nil {
		writeChatError(c, err, "send message failed")
		return
	}

	response.OK(c, result)
}

// StreamMessage answers over server-sent events: one meta event with the
// session and crisis alerts, a data line per chunk, then done or error.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	input, ok := bindSendMessage(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	started := false
	startStream := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	result, err := h.chatService.StreamMessage(c.Request.Context(), input,
		func(start app.StreamStart) error {
			startStream()
			payload, err := json.Marshal(start)
			if err != nil {
				return err
			}
			return writeSSE(c, flusher, "meta", string(payload))
		},
		func(chunk string) error {
			return writeSSE(c, flusher, "", chunk)
		},
	)
	if err != nil {
		if !started {
			// Nothing streamed yet, so the client still gets a normal JSON error.
			writeChatError(c, err, "send message failed")
			return
		}
		_ = writeSSE(c, flusher, "error", streamErrorMessage(err))
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		_ = writeSSE(c, flusher, "error", "encode result failed")
		return
	}
	_ = writeSSE(c, flusher, "done", string(payload))
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessionIDRaw := c.Query("session_id")
	sessionID64, err := strconv.ParseUint(sessionIDRaw, 10, 64)
	if err != nil || sessionID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session_id")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), userID, uint(sessionID64), limit)
	if err != nil {
		writeChatError(c, err, "get history failed")
		return
	}

	response.OK(c, history)
}

func bindSendMessage(c *gin.Context) (app.SendMessageInput, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return app.SendMessageInput{}, false
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return app.SendMessageInput{}, false
	}

	return app.SendMessageInput{
		UserID:    userID,
		SessionID: req.SessionID,
		Content:   req.Content,
		Voice:     req.Voice,
		LLM: app.LLMOverride{
			BaseURL: req.LLM.BaseURL,
			APIKey:  req.LLM.APIKey,
			Model:   req.LLM.Model,
		},
	}, true
}

func writeChatError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty), errors.Is(err, app.ErrLLMConfig):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrMessageTooLong):
		response.Error(c, http.StatusBadRequest, response.CodeMessageTooLong, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrMessageEnqueue):
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, err.Error())
	case errors.Is(err, app.ErrLLMUnavailable):
		response.Error(c, http.StatusBadGateway, response.CodeUpstream, app.ErrLLMUnavailable.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrMessageEnqueue):
		return app.ErrMessageEnqueue.Error()
	case errors.Is(err, app.ErrLLMUnavailable):
		return app.ErrLLMUnavailable.Error()
	default:
		return err.Error()
	}
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok && userID != 0
}

func writeSSE(c *gin.Context, flusher http.Flusher, event, data string) error {
	var b strings.Builder
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteString("\n")
	}
	b.WriteString("data: ")
	b.WriteString(sanitizeSSE(data))
	b.WriteString("\n\n")
	if _, err := c.Writer.Write([]byte(b.String())); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
