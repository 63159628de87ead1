package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hearthchat/chat-history-service/internal/domain"
	"github.com/hearthchat/chat-history-service/internal/mailbox"
	"github.com/hearthchat/chat-history-service/internal/repository"
	"github.com/hearthchat/chat-history-service/internal/service"
)

type HTTPHandler struct {
	history service.ChatHistoryService
	mailbox mailbox.Mailbox
}

func NewHTTPHandler(history service.ChatHistoryService, mbox mailbox.Mailbox) *HTTPHandler {
	return &HTTPHandler{
		history: history,
		mailbox: mbox,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/chatlogs", h.GetHistory)
		api.GET("/users/:external_user_id/chatlogs", h.GetHistoryForUser)
		api.POST("/rooms/:room_id/chatlog", h.CreateLog)
		api.PATCH("/rooms/:room_id/chatlog", h.AppendMessages)
		api.POST("/alerts", h.PublishAlert)
		api.POST("/users/:user_id/alerts/drain", h.DrainAlerts)
	}

	r.GET("/health", h.HealthCheck)
}

func (h *HTTPHandler) GetHistory(c *gin.Context) {
	roomIDs := c.QueryArray("roomIds")

	// A single value may carry the whole list as a JSON array, the
	// other convention clients use.
	if len(roomIDs) == 1 && strings.HasPrefix(strings.TrimSpace(roomIDs[0]), "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(roomIDs[0]), &parsed); err == nil {
			roomIDs = parsed
		}
	}

	if len(roomIDs) == 0 {
		c.JSON(http.StatusBadRequest, domain.APIResponse{
			Success: false,
			Error:   "roomIds is required",
		})
		return
	}

	views, err := h.history.GetHistory(c.Request.Context(), roomIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.APIResponse{
			Success: false,
			Error:   "failed to get chat history",
		})
		return
	}

	c.JSON(http.StatusOK, domain.APIResponse{Success: true, Data: views})
}

func (h *HTTPHandler) GetHistoryForUser(c *gin.Context) {
	externalUserID := c.Param("external_user_id")

	views, err := h.history.GetHistoryForUser(c.Request.Context(), externalUserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, domain.APIResponse{
				Success: false,
				Error:   "user not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, domain.APIResponse{
			Success: false,
			Error:   "failed to get chat history",
		})
		return
	}

	c.JSON(http.StatusOK, domain.APIResponse{Success: true, Data: views})
}

func (h *HTTPHandler) CreateLog(c *gin.Context) {
	roomID := c.Param("room_id")

	chatLog, err := h.history.CreateLog(c.Request.Context(), roomID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, domain.APIResponse{
				Success: false,
				Error:   "room not found",
			})
		case errors.Is(err, service.ErrLogExists):
			c.JSON(http.StatusConflict, domain.APIResponse{
				Success: false,
				Error:   "chat log already exists for this room",
			})
		default:
			c.JSON(http.StatusInternalServerError, domain.APIResponse{
				Success: false,
				Error:   "failed to create chat log",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, domain.APIResponse{Success: true, Data: chatLog})
}

type appendRequest struct {
	ChatLog []domain.RawMessage `json:"chatLog" binding:"required"`
}

func (h *HTTPHandler) AppendMessages(c *gin.Context) {
	roomID := c.Param("room_id")

	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.APIResponse{
			Success: false,
			Error:   "chatLog array is required",
		})
		return
	}

	chatLog, err := h.history.AppendMessages(c.Request.Context(), roomID, req.ChatLog)
	if err != nil {
		var partial *repository.PartialWriteError
		switch {
		case errors.Is(err, service.ErrEmptyAppend):
			c.JSON(http.StatusBadRequest, domain.APIResponse{
				Success: false,
				Error:   err.Error(),
			})
		case errors.Is(err, service.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, domain.APIResponse{
				Success: false,
				Error:   "room not found",
			})
		case errors.Is(err, service.ErrLogNotFound):
			c.JSON(http.StatusNotFound, domain.APIResponse{
				Success: false,
				Error:   "chat log not found for this room",
			})
		case errors.As(err, &partial):
			c.JSON(http.StatusInternalServerError, domain.APIResponse{
				Success: false,
				Error:   partial.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, domain.APIResponse{
				Success: false,
				Error:   "failed to update chat log",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, domain.APIResponse{Success: true, Data: chatLog})
}

type publishAlertRequest struct {
	Payload      json.RawMessage `json:"payload" binding:"required"`
	RecipientIDs []string        `json:"recipientIds" binding:"required"`
	ActingUserID string          `json:"actingUserId" binding:"required"`
}

func (h *HTTPHandler) PublishAlert(c *gin.Context) {
	var req publishAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.APIResponse{
			Success: false,
			Error:   "payload, recipientIds and actingUserId are required",
		})
		return
	}

	// Best-effort by contract: publish cannot fail the caller.
	h.history.PublishAlert(c.Request.Context(), req.Payload, req.RecipientIDs, req.ActingUserID)

	c.JSON(http.StatusAccepted, domain.APIResponse{Success: true})
}

func (h *HTTPHandler) DrainAlerts(c *gin.Context) {
	userID := c.Param("user_id")

	pending := h.mailbox.Drain(c.Request.Context(), userID)
	if pending == nil {
		pending = []json.RawMessage{}
	}

	c.JSON(http.StatusOK, domain.APIResponse{Success: true, Data: pending})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
