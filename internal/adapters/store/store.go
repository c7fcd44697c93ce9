// Package store persists room records and answers whether a room may be
// joined. It is the room lifecycle collaborator of the relay.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/roomrelay/internal/domain"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	roomIDAlphabet = "0123456789"
	RoomIDLength   = 6
	maxCreateTries = 10
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomIDsExhausted = errors.New("could not allocate a unique room id")
)

type roomRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"uniqueIndex;size:64;not null"`
	Title     string
	Status    string `gorm:"index;not null;default:active"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (roomRecord) TableName() string { return "rooms" }

func (r *roomRecord) toDomain() *domain.Room {
	return &domain.Room{
		ID:        domain.RoomID(r.RoomID),
		Title:     r.Title,
		Status:    domain.RoomStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Store keeps room records in SQLite.
type Store struct {
	db    *gorm.DB
	newID func() string
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db)
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&roomRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	gen, err := nanoid.CustomASCII(roomIDAlphabet, RoomIDLength)
	if err != nil {
		return nil, fmt.Errorf("room id generator: %w", err)
	}
	return &Store{db: db, newID: gen}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create allocates a fresh room id and persists an active room.
func (s *Store) Create(ctx context.Context, title string) (*domain.Room, error) {
	db := s.db.WithContext(ctx)
	for attempt := 0; attempt < maxCreateTries; attempt++ {
		id := s.newID()

		var n int64
		if err := db.Model(&roomRecord{}).Where("room_id = ?", id).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to check room id: %w", err)
		}
		if n > 0 {
			continue
		}

		rec := &roomRecord{RoomID: id, Title: title, Status: string(domain.RoomActive)}
		if err := db.Create(rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, fmt.Errorf("failed to create room: %w", err)
		}
		log.Info().Str("module", "adapters.store").Str("room_id", id).Msg("room created")
		return rec.toDomain(), nil
	}
	return nil, ErrRoomIDsExhausted
}

// Get returns the room record, archived or not.
func (s *Store) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var rec roomRecord
	if err := s.db.WithContext(ctx).First(&rec, "room_id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return rec.toDomain(), nil
}

// Exists reports whether a non-archived room with id exists.
func (s *Store) Exists(ctx context.Context, id domain.RoomID) (bool, error) {
	room, err := s.Get(ctx, id)
	if errors.Is(err, ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return room.Usable(), nil
}

// Archive marks the room unusable for future joins.
func (s *Store) Archive(ctx context.Context, id domain.RoomID) error {
	result := s.db.WithContext(ctx).
		Model(&roomRecord{}).
		Where("room_id = ?", string(id)).
		Update("status", string(domain.RoomArchived))
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to archive room: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	log.Info().Str("module", "adapters.store").Str("room_id", string(id)).Msg("room archived")
	return nil
}
