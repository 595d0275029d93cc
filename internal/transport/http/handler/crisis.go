package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mindmate/internal/app"
	"mindmate/internal/transport/http/response"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type CrisisHandler struct {
	crisisService *app.CrisisService
}

type CrisisCheckRequest struct {
	Text string `json:"text"`
}

type InitiateCallRequest struct {
	Category string `json:"category"`
}

func NewCrisisHandler(crisisService *app.CrisisService) *CrisisHandler {
	return &CrisisHandler{crisisService: crisisService}
}

func (h *CrisisHandler) Check(c *gin.Context) {
	var req CrisisCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	alerts := h.crisisService.Check(req.Text)
	response.OK(c, gin.H{
		"crisis": len(alerts) > 0,
		"alerts": alerts,
	})
}

// InitiateCall keeps the flat {message, callSid} / {message, error} body the
// browser pages already parse instead of the usual envelope.
func (h *CrisisHandler) InitiateCall(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req InitiateCallRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Failed to initiate call", "error": "invalid request payload"})
			return
		}
	}

	result, err := h.crisisService.InitiateCall(c.Request.Context(), app.InitiateCallInput{
		UserID:         userID,
		Category:       req.Category,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Failed to initiate call", "error": "unknown crisis category"})
		case errors.Is(err, app.ErrCallCooldown):
			c.JSON(http.StatusTooManyRequests, gin.H{"message": "Failed to initiate call", "error": err.Error()})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to initiate call", "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Call initiated",
		"callSid":  result.CallSID,
		"category": result.Category,
		"replayed": result.Replayed,
	})
}

func (h *CrisisHandler) ListCalls(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	calls, err := h.crisisService.ListCalls(userID, limit)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list calls failed")
		return
	}

	response.OK(c, calls)
}
