package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/service"
)

type RoleHandler struct {
	access *service.AccessControl
}

func NewRoleHandler(access *service.AccessControl) *RoleHandler {
	return &RoleHandler{access: access}
}

// Me returns the caller's role, or a null role for anonymous callers.
func (h *RoleHandler) Me(c *gin.Context) {
	role, err := h.access.CurrentRole(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RoleResponse{Role: role})
}

func (h *RoleHandler) Bootstrap(c *gin.Context) {
	if err := h.access.InitializeAdmin(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "admin initialized"})
}

func (h *RoleHandler) SetRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	var req dto.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.access.SetUserRole(c.Request.Context(), userID, req.Role); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
