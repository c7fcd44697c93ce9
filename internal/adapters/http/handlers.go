package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dkeye/roomrelay/internal/adapters/store"
	"github.com/dkeye/roomrelay/internal/app"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	rooms  RoomStore
	relays []*app.Relay
	ice    []webrtc.ICEServer
}

type CreateRoomRequest struct {
	Title string `json:"title"`
}

type CreateRoomResponse struct {
	RoomID domain.RoomID `json:"roomId"`
	URL    string        `json:"url"`
}

type RoomResponse struct {
	*domain.Room
	Live map[string]int `json:"live"`
}

type RelayStats struct {
	Sessions int            `json:"sessions"`
	Rooms    []app.RoomInfo `json:"rooms"`
}

func (h *handlers) health(c *gin.Context) {
	relays := make(map[string]RelayStats, len(h.relays))
	for _, relay := range h.relays {
		relays[relay.Namespace().Name] = RelayStats{
			Sessions: relay.Sessions().Len(),
			Rooms:    relay.Rooms().List(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "relays": relays})
}

func (h *handlers) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), req.Title)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusOK, CreateRoomResponse{
		RoomID: room.ID,
		URL:    fmt.Sprintf("/room/%s?autojoin=1&host=1", room.ID),
	})
}

func (h *handlers) getRoom(c *gin.Context) {
	id := domain.RoomID(c.Param("roomId"))
	room, err := h.rooms.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room_id", string(id)).Msg("get room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	live := make(map[string]int, len(h.relays))
	for _, relay := range h.relays {
		live[relay.Namespace().Name] = relay.Rooms().Size(id)
	}
	c.JSON(http.StatusOK, RoomResponse{Room: room, Live: live})
}

// archiveRoom blocks future joins and disconnects current members.
func (h *handlers) archiveRoom(c *gin.Context) {
	id := domain.RoomID(c.Param("roomId"))
	err := h.rooms.Archive(c.Request.Context(), id)
	if errors.Is(err, store.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room_id", string(id)).Msg("archive room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive_failed"})
		return
	}
	for _, relay := range h.relays {
		relay.EvictRoom(id)
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ice})
}
