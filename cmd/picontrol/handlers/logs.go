package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/pi-control/pkg/logs"
)

type LogsHandler struct {
	Store *logs.Store
}

// Export downloads the filtered log history as JSON or CSV.
func (h *LogsHandler) Export(c *gin.Context) {
	var params logs.FilterParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter, err := params.Parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries := h.Store.Query(filter)

	format := c.DefaultQuery("format", "json")
	stamp := time.Now().UTC().Format("20060102-150405")

	switch format {
	case "json":
		c.Header("Content-Type", "application/json")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="logs-%s.json"`, stamp))
		c.Status(http.StatusOK)
		if err := logs.WriteJSON(c.Writer, entries); err != nil {
			slog.Warn("Failed to write log export", "format", format, "error", err)
		}
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="logs-%s.csv"`, stamp))
		c.Status(http.StatusOK)
		if err := logs.WriteCSV(c.Writer, entries); err != nil {
			slog.Warn("Failed to write log export", "format", format, "error", err)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format %q", format)})
	}
}
