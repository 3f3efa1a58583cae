package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/pi-control/pkg/camera"
	"github.com/wachiwi/pi-control/pkg/control"
)

const notAvailable = "Camera functionality only available on Raspberry Pi"

type CameraHandler struct {
	Service *camera.Service
	Camera  control.CameraControl
}

// Stream serves the MJPEG pipeline as multipart/x-mixed-replace. The capture
// process starts with the first viewer and stops after the last one left.
func (h *CameraHandler) Stream(c *gin.Context) {
	if !h.Service.Available || h.Service.MJPEG == nil {
		c.String(http.StatusNotFound, notAvailable)
		return
	}

	consumer := camera.NewMJPEGConsumer(c.Writer, h.Service.Config.HighWaterMark)
	token, err := h.Service.MJPEG.Attach(consumer)
	if err != nil {
		slog.Error("Failed to start MJPEG stream", "remote", c.ClientIP(), "error", err)
		if errors.Is(err, camera.ErrDeviceBusy) {
			c.String(http.StatusConflict, "Camera in use by the TCP stream")
			return
		}
		c.String(http.StatusInternalServerError, "Failed to start camera")
		return
	}
	defer h.Service.MJPEG.Detach(token)
	defer consumer.Close()

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("Connection", "close")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	slog.Info("MJPEG viewer connected", "remote", c.ClientIP())
	err = consumer.Serve(c.Request.Context())
	slog.Info("MJPEG viewer disconnected", "remote", c.ClientIP(), "dropped", consumer.Dropped(), "error", err)
}

// Snapshot returns one JPEG, optionally downscaled with ?width=.
func (h *CameraHandler) Snapshot(c *gin.Context) {
	if !h.Service.Available {
		c.String(http.StatusNotFound, notAvailable)
		return
	}

	var width uint64
	if w := c.Query("width"); w != "" {
		var err error
		width, err = strconv.ParseUint(w, 10, 32)
		if err != nil {
			c.String(http.StatusBadRequest, "Invalid width")
			return
		}
	}

	frame, err := h.Service.Snapshot(c.Request.Context())
	if err != nil {
		slog.Error("Failed to capture snapshot", "error", err)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, camera.ErrNoCaptureBinary):
			status = http.StatusServiceUnavailable
		case errors.Is(err, camera.ErrDeviceBusy):
			status = http.StatusConflict
		}
		c.String(status, "Failed to capture snapshot")
		return
	}
	if width > 0 {
		if frame, err = camera.ResizeJPEG(frame, uint(width)); err != nil {
			slog.Error("Failed to resize snapshot", "error", err)
			c.String(http.StatusInternalServerError, "Failed to resize snapshot")
			return
		}
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// Status reports the control-channel camera status plus both pipelines.
func (h *CameraHandler) Status(c *gin.Context) {
	resp := gin.H{"camera": h.Camera.Status()}
	if h.Service.MJPEG != nil {
		resp["mjpeg"] = h.Service.MJPEG.Status()
	}
	if h.Service.H264 != nil {
		resp["h264"] = h.Service.H264.Status()
	}
	c.JSON(http.StatusOK, resp)
}

type controlRequest struct {
	Action string `json:"action" binding:"required"`
}

// Control starts or stops the camera stream with {"action":"start"|"stop"}.
func (h *CameraHandler) Control(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	active := h.Camera.Status().Active
	switch {
	case req.Action == "start" && !active:
		if err := h.Camera.Start(); err != nil {
			slog.Error("Failed to start camera", "error", err)
			c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Camera started"})
	case req.Action == "stop" && active:
		h.Camera.Stop()
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Camera stopped"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid action or camera already in that state"})
	}
}
