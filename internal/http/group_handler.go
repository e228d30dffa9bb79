package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"groupwire/internal/domain"
	"groupwire/internal/repository"
)

// GroupHandler mantiene dependencias para endpoints de grupos y mensajes.
type GroupHandler struct {
	logger   *zap.Logger
	groups   repository.GroupRepository
	messages repository.MessageRepository
	pageSize int
}

func NewGroupHandler(logger *zap.Logger, groups repository.GroupRepository, messages repository.MessageRepository, pageSize int) *GroupHandler {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &GroupHandler{
		logger:   logger,
		groups:   groups,
		messages: messages,
		pageSize: pageSize,
	}
}

// CreateGroup maneja POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if _, err := h.groups.GetByName(c.Request.Context(), req.Name); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "group name already exists"})
		return
	} else if !errors.Is(err, repository.ErrGroupNotFound) {
		h.logger.Error("group lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	group := domain.Group{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.groups.Create(c.Request.Context(), group); err != nil {
		h.logger.Error("create group failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// ListGroups maneja GET /groups.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groups.GetAll(c.Request.Context())
	if err != nil {
		h.logger.Error("list groups failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list groups"})
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// ListMessages maneja GET /groups/:id/messages con paginación.
func (h *GroupHandler) ListMessages(c *gin.Context) {
	groupID := c.Param("id")
	if _, err := h.groups.GetByID(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		h.logger.Error("group lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.pageSize)))

	result, err := h.messages.Paginate(c.Request.Context(), groupID, page, limit)
	if err != nil {
		h.logger.Error("paginate messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		return
	}
	if result.Messages == nil {
		result.Messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, result)
}
