package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/pi-control/pkg/connection"
)

type ConnectionHandler struct {
	Store  connection.Store
	APIKey string
}

type updateConnectionRequest struct {
	WSURL  string `json:"wsUrl"`
	TCPURL string `json:"tcpUrl"`
	APIKey string `json:"apiKey"`
}

// Get returns the published connection info, or an offline record when
// nothing was published yet.
func (h *ConnectionHandler) Get(c *gin.Context) {
	info, err := h.Store.Get(c.Request.Context())
	if err != nil {
		if !errors.Is(err, connection.ErrNotFound) {
			slog.Error("Failed to read connection info", "error", err)
		}
		c.JSON(http.StatusOK, connection.Offline())
		return
	}
	c.JSON(http.StatusOK, info)
}

// Update stores connection info announced by a device holding the API key.
func (h *ConnectionHandler) Update(c *gin.Context) {
	var req updateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.APIKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	now := time.Now().UTC()
	info := connection.Info{
		WSURL:       req.WSURL,
		TCPURL:      req.TCPURL,
		LastUpdated: &now,
		Status:      connection.StatusOnline,
	}
	if err := h.Store.Save(c.Request.Context(), info); err != nil {
		slog.Error("Failed to save connection info", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save connection info"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Connection info updated successfully"})
}
