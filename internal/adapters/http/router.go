package http

import (
	"context"
	"net/http"

	"github.com/dkeye/roomrelay/internal/adapters/signal"
	"github.com/dkeye/roomrelay/internal/app"
	"github.com/dkeye/roomrelay/internal/config"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	sessionName     = "RelaySessions"
	clientTokenKey  = "ct"
	clientTokenCtx  = "client_token"
	clientTokenLife = 3600 * 24 * 7
)

// RoomStore is the room lifecycle collaborator behind the REST API.
type RoomStore interface {
	Create(ctx context.Context, title string) (*domain.Room, error)
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Archive(ctx context.Context, id domain.RoomID) error
}

type Deps struct {
	Relays     []*app.Relay
	Rooms      RoomStore
	ICEServers []webrtc.ICEServer
	Signal     signal.Options
}

// ClientTokenMiddleware gives every browser a stable opaque token kept in
// the session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set(clientTokenCtx, token)
		c.Next()
	}
}

// SetupRouter wires the relay endpoints and the REST API. ctx bounds the
// lifetime of every WebSocket connection.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   clientTokenLife,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	for _, relay := range deps.Relays {
		ctrl := signal.NewSignalWSController(relay, deps.Signal)
		ns := relay.Namespace()
		r.GET(ns.Path, func(c *gin.Context) {
			log.Debug().Str("module", "adapters.http").Str("ns", ns.Name).Str("ct", c.GetString(clientTokenCtx)).Msg("ws endpoint hit")
			ctrl.HandleSignal(ctx, c.Writer, c.Request, c.GetString(clientTokenCtx))
		})
		log.Info().Str("module", "adapters.http").Str("ns", ns.Name).Str("path", ns.Path).Msg("relay mounted")
	}

	h := &handlers{rooms: deps.Rooms, relays: deps.Relays, ice: deps.ICEServers}
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/rooms/new", h.createRoom)
	api.GET("/rooms/:roomId", h.getRoom)
	api.DELETE("/rooms/:roomId", h.archiveRoom)
	api.GET("/ice", h.iceServers)

	return r
}
