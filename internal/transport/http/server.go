package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/codecollab-server/internal/config"
	"github.com/vovakirdan/codecollab-server/internal/core"
	"github.com/vovakirdan/codecollab-server/internal/store"
)

// NewServer builds the HTTP server: websocket sessions on /ws and the REST API on everything else.
func NewServer(hub *core.Hub, st store.RoomStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, WSOptions{
		MaxMessageBytes: cfg.MaxMessageBytes,
		EventsPerMinute: cfg.EventsPerMinute,
		AllowedOrigins:  cfg.AllowedOrigins,
	}, logger))

	api := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodPut, stdhttp.MethodDelete, stdhttp.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(handlers.CompressHandler(newRouter(st, hub.Registry(), logger)))
	mux.Handle("/", api)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newRouter(st store.RoomStore, registry *core.Registry, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	rooms := NewRoomHandlers(st, registry, logger)
	api := router.Group("/api")
	{
		api.GET("/stats", rooms.Stats)

		code := api.Group("/code")
		code.POST("/room", rooms.CreateRoom)
		code.GET("/room/:roomId", rooms.GetRoom)
		code.PUT("/room/:roomId", rooms.UpdateRoom)
		code.DELETE("/room/:roomId", rooms.DeleteRoom)
		code.POST("/room/:roomId/participant", rooms.AddParticipant)
		code.DELETE("/room/:roomId/participant/:userId", rooms.RemoveParticipant)
		code.GET("/rooms", rooms.ListRooms)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
