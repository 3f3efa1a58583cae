package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/pi-control/pkg/camera"
)

type HealthHandler struct {
	Version string
	Service *camera.Service
	Clients func() int
}

func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "ok",
		"version": h.Version,
		"camera":  gin.H{"available": h.Service.Available, "active": h.Service.Active()},
	}
	if h.Clients != nil {
		resp["clients"] = h.Clients()
	}
	c.JSON(http.StatusOK, resp)
}
