package handler

import (
	"net/http"

	"supportchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// ListConversations serves the operator dashboard's initial page load over
// plain HTTP; live updates arrive over the socket afterwards. Operator
// tokens only.
func (h *Handler) ListConversations(c *gin.Context) {
	identity, err := h.resolveIdentity(bearerFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}
	if identity.Role != models.RoleOperator {
		c.JSON(http.StatusForbidden, gin.H{"error": "operator token required"})
		return
	}

	status := c.Query("status")
	switch status {
	case "", models.ConversationStatusPending, models.ConversationStatusOpen, models.ConversationStatusClosed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}

	previews, err := h.Storage.ListConversations(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, previews)
}
