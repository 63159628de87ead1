package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hearthchat/chat-history-service/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUserNotFound = errors.New("user not found")
	ErrLogNotFound  = errors.New("chat log not found")
	ErrLogExists    = errors.New("chat log already exists for this room")
)

// PartialWriteError reports an append batch that failed partway.
// Elements before Index are durably committed and are not rolled back;
// Index and everything after it were not written.
type PartialWriteError struct {
	RoomID string
	Index  int
	Err    error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("append to room %s failed at message %d: %v", e.RoomID, e.Index, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// ChatLogRepository is the durable, per-room, append-only message log.
type ChatLogRepository interface {
	// CreateLog creates an empty log for a room. ErrLogExists is
	// returned when the room already has one.
	CreateLog(ctx context.Context, roomID string) (*domain.ChatLog, error)

	// FindLog returns the room's log or ErrLogNotFound.
	FindLog(ctx context.Context, roomID string) (*domain.ChatLog, error)

	// AppendMessages appends messages one at a time, persisting after
	// each. A failure partway returns *PartialWriteError; prior
	// elements stay committed.
	AppendMessages(ctx context.Context, roomID string, messages []domain.Message) (*domain.ChatLog, error)
}

// RoomRepository resolves rooms and their members.
type RoomRepository interface {
	// FindWithMembers returns the room with its member records
	// resolved, or ErrRoomNotFound.
	FindWithMembers(ctx context.Context, roomID string) (*domain.Room, error)
}

// UserRepository resolves users by their external identity key.
type UserRepository interface {
	// FindByExternalID returns the user or ErrUserNotFound.
	FindByExternalID(ctx context.Context, externalID string) (*domain.User, error)
}
