package main

import (
	"io/fs"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/wachiwi/pi-control/cmd/picontrol/handlers"
	"github.com/wachiwi/pi-control/cmd/picontrol/middleware"
)

// routes holds everything the HTTP router dispatches to.
type routes struct {
	Camera     *handlers.CameraHandler
	Logs       *handlers.LogsHandler
	Connection *handlers.ConnectionHandler
	Health     *handlers.HealthHandler
	WebSocket  http.Handler
	TemplateFS fs.FS
}

func newRouter(cfg Config, sessionSecret []byte, r routes) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS)
	router.SetTrustedProxies([]string{"127.0.0.1"})

	// --- Public Routes ---
	router.GET("/health", r.Health.Health)
	router.GET("/api/connection", r.Connection.Get)
	// Devices authenticate with the API key in the body.
	router.POST("/api/connection", r.Connection.Update)

	var authRequired []gin.HandlerFunc
	if cfg.AuthEnabled() {
		store := cookie.NewStore(sessionSecret)
		store.Options(sessions.Options{Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
		router.Use(sessions.Sessions("picontrol_session", store))

		auth := &handlers.AuthHandler{
			User:       cfg.DashboardUser,
			Password:   cfg.DashboardPassword,
			TemplateFS: r.TemplateFS,
		}
		router.GET("/login", auth.LoginPage)
		router.POST("/login", auth.Login)
		router.POST("/logout", auth.Logout)

		authRequired = append(authRequired, middleware.AuthRequired)
	}
	protected := router.Group("/", authRequired...)

	// --- Authenticated Routes ---
	protected.GET("/", r.Health.Health)
	protected.GET("/ws", gin.WrapH(r.WebSocket))

	cam := protected.Group("/camera")
	cam.GET("/stream", r.Camera.Stream)
	cam.GET("/snapshot", r.Camera.Snapshot)
	cam.GET("/status", r.Camera.Status)
	cam.POST("/control", r.Camera.Control)

	protected.GET("/api/logs/export", r.Logs.Export)

	return router
}
