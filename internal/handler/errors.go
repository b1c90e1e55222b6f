package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/service"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrUnauthenticated, http.StatusUnauthorized},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrUnauthorized, http.StatusForbidden},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrProductNotFound, http.StatusNotFound},
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrInsufficientStock, http.StatusConflict},
	{service.ErrInvalidOrderState, http.StatusConflict},
	{service.ErrAdminAlreadyInitialized, http.StatusConflict},
	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidRole, http.StatusBadRequest},
	{service.ErrInvalidProduct, http.StatusBadRequest},
	{service.ErrEmptyOrder, http.StatusBadRequest},
	{service.ErrTooManyItems, http.StatusBadRequest},
}

// writeError maps service errors to a status and message. Unknown errors
// become a generic 500 so internals never reach the client.
func writeError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
