package chatbot

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/handler"
	"github.com/wellmom/wellmom-api/internal/middleware"
	"github.com/wellmom/wellmom-api/internal/model"
	chatbotService "github.com/wellmom/wellmom-api/internal/service/chatbot"
)

type Handler struct {
	service chatbotService.Servicer
}

func NewHandler(service chatbotService.Servicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the chatbot surface. Only mothers and relatives
// consume the AI assistant.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	chat := r.Group("/chatbot", auth.RequireRole(model.RoleMother, model.RoleRelative))
	{
		chat.POST("/messages", h.SendMessage)
		chat.GET("/conversations", h.ListConversations)
		chat.GET("/conversations/:id/messages", h.ListMessages)
		chat.DELETE("/conversations/:id", h.DeleteConversation)
		chat.GET("/quota", h.QuotaStatus)
	}
}

type sendMessageRequest struct {
	ConversationID *string `json:"conversation_id"`
	Message        string  `json:"message" binding:"required,max=4000"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	var conversationID *uuid.UUID
	if req.ConversationID != nil {
		id, err := uuid.Parse(*req.ConversationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid conversation ID"))
			return
		}
		conversationID = &id
	}

	reply, err := h.service.SendMessage(c.Request.Context(), userID, conversationID, req.Message)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reply))
}

func (h *Handler) ListConversations(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	conversations, err := h.service.ListConversations(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(conversations))
}

func (h *Handler) ListMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid conversation ID"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	messages, err := h.service.ListMessages(c.Request.Context(), userID, conversationID, limit)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(messages))
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid conversation ID"))
		return
	}

	if err := h.service.DeleteConversation(c.Request.Context(), userID, conversationID); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": true}))
}

func (h *Handler) QuotaStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	info, err := h.service.QuotaStatus(c.Request.Context(), userID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(info))
}
