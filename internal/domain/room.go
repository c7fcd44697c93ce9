package domain

import (
	"errors"
	"time"
)

const MaxRoomIDLen = 64

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type RoomID string

// Validate checks the shape of a client supplied room id. It says nothing
// about whether the room exists.
func (id RoomID) Validate() error {
	if len(id) == 0 {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}

type RoomStatus string

const (
	RoomActive   RoomStatus = "active"
	RoomArchived RoomStatus = "archived"
)

// Room is the persisted record of a room. Live membership is not part of it.
type Room struct {
	ID        RoomID     `json:"roomId"`
	Title     string     `json:"title,omitempty"`
	Status    RoomStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Usable reports whether clients may join the room.
func (r *Room) Usable() bool {
	return r != nil && r.Status != RoomArchived
}
