package service

import (
	"context"
	"encoding/json"

	"github.com/hearthchat/chat-history-service/internal/domain"
)

// ChatHistoryService produces the client-visible chat history: the
// durable log of each room merged with its cache overlay.
type ChatHistoryService interface {
	// GetHistory returns one view per existing room in roomIDs,
	// preserving input order; nonexistent ids are omitted, not errors.
	GetHistory(ctx context.Context, roomIDs []string) ([]domain.RoomHistoryView, error)

	// GetHistoryForUser resolves the user's room list by external
	// identity key and returns the same views. ErrUserNotFound when
	// no user matches.
	GetHistoryForUser(ctx context.Context, externalUserID string) ([]domain.RoomHistoryView, error)

	// AppendMessages normalizes and appends raw messages to the
	// room's durable log.
	AppendMessages(ctx context.Context, roomID string, raw []domain.RawMessage) (*domain.ChatLog, error)

	// CreateLog creates the room's empty log. ErrLogExists when the
	// room already has one.
	CreateLog(ctx context.Context, roomID string) (*domain.ChatLog, error)

	// PublishAlert fans an alert payload out to the recipients'
	// mailboxes, excluding the acting user. It never fails observably.
	PublishAlert(ctx context.Context, payload json.RawMessage, recipientIDs []string, actingUserID string)
}
