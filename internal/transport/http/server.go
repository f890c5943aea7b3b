package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codesync/codesync-server/internal/auth"
	"github.com/codesync/codesync-server/internal/config"
	"github.com/codesync/codesync-server/internal/presence"
	"github.com/codesync/codesync-server/internal/store"
)

// NewServer builds the HTTP server carrying the REST API and the WebSocket
// presence endpoint.
func NewServer(mgr *presence.Manager, router *presence.Router, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	engine.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	projectHandlers := NewProjectHandlers(st, logger)
	fileHandlers := NewFileHandlers(st, logger)

	api := engine.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)
	api.POST("/guest", apiHandlers.GuestLogin)

	authorized := api.Group("", AuthMiddleware(authService, logger))
	authorized.GET("/projects", projectHandlers.ListProjects)
	authorized.POST("/projects", projectHandlers.CreateProject)
	authorized.GET("/projects/:id", projectHandlers.GetProject)
	authorized.PUT("/projects/:id", projectHandlers.UpdateProject)
	authorized.DELETE("/projects/:id", projectHandlers.DeleteProject)
	authorized.POST("/projects/:id/members", projectHandlers.AddMember)
	authorized.DELETE("/projects/:id/members/:userId", projectHandlers.RemoveMember)
	authorized.GET("/projects/:id/files", fileHandlers.ListFiles)
	authorized.POST("/projects/:id/files", fileHandlers.CreateFile)
	authorized.GET("/files/:id", fileHandlers.GetFile)
	authorized.PUT("/files/:id", fileHandlers.UpdateFile)
	authorized.DELETE("/files/:id", fileHandlers.DeleteFile)

	engine.GET("/ws", gin.WrapH(NewWSHandler(mgr, router, st, authService, cfg, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
