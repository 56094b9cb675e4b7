package handlers

import (
	"net/http"
	"strconv"

	"salona/models"
	"salona/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatRequest is the expected input for a direct chat turn.
type ChatRequest struct {
	SenderID  string `json:"sender_id" binding:"required"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Message   string `json:"message" binding:"required"`
}

// ChatResponse carries the engine's reply for one turn.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// telegramUpdate is the subset of a Telegram Bot API update we consume.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
		From      *struct {
			ID        int64  `json:"id"`
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// ChatHandler runs one conversation turn for a generic API client.
func (hb *HandlerBundle) ChatHandler(c *gin.Context) {
	logger := utils.GetLogger()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	sender := models.SenderProfile{
		TelegramID: req.SenderID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	}
	// The engine produces a user-safe reply even for failed turns.
	reply, err := hb.Engine.HandleMessage(c.Request.Context(), sender, req.Message)
	if err != nil {
		logger.Error("Chat turn failed", zap.String("senderID", req.SenderID), zap.Error(err))
	}
	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// TelegramWebhookHandler accepts a Telegram update, runs one engine turn and
// answers with a sendMessage payload so Telegram delivers the reply without
// a second round trip.
func (hb *HandlerBundle) TelegramWebhookHandler(c *gin.Context) {
	logger := utils.GetLogger()

	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		logger.Error("Invalid telegram update", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload"})
		return
	}

	// Non-message updates (edits, callbacks) are acknowledged and dropped.
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		c.Status(http.StatusOK)
		return
	}

	sender := models.SenderProfile{
		TelegramID: strconv.FormatInt(update.Message.From.ID, 10),
		Username:   update.Message.From.Username,
		FirstName:  update.Message.From.FirstName,
		LastName:   update.Message.From.LastName,
	}
	reply, err := hb.Engine.HandleMessage(c.Request.Context(), sender, update.Message.Text)
	if err != nil {
		logger.Error("Webhook turn failed", zap.Int64("updateID", update.UpdateID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"method":  "sendMessage",
		"chat_id": update.Message.Chat.ID,
		"text":    reply,
	})
}
