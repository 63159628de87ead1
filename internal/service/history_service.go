package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hearthchat/chat-history-service/internal/cache"
	"github.com/hearthchat/chat-history-service/internal/domain"
	"github.com/hearthchat/chat-history-service/internal/mailbox"
	"github.com/hearthchat/chat-history-service/internal/repository"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrLogNotFound  = errors.New("chat log not found for this room")
	ErrLogExists    = errors.New("chat log already exists for this room")
	ErrUserNotFound = errors.New("user not found")
	ErrEmptyAppend  = errors.New("append batch must contain at least one message")
)

// Room lookups in a batch share no mutable state, so they fan out
// concurrently up to this limit.
const maxRoomConcurrency = 8

// Availability is the guard predicate: when it reports false the
// overlay is never queried.
type Availability interface {
	Available() bool
}

type chatHistoryServiceImpl struct {
	rooms   repository.RoomRepository
	users   repository.UserRepository
	logs    repository.ChatLogRepository
	guard   Availability
	overlay cache.OverlayCache
	mailbox mailbox.Mailbox
	now     func() time.Time
}

func NewChatHistoryService(
	rooms repository.RoomRepository,
	users repository.UserRepository,
	logs repository.ChatLogRepository,
	guard Availability,
	overlay cache.OverlayCache,
	mbox mailbox.Mailbox,
) ChatHistoryService {
	return &chatHistoryServiceImpl{
		rooms:   rooms,
		users:   users,
		logs:    logs,
		guard:   guard,
		overlay: overlay,
		mailbox: mbox,
		now:     time.Now,
	}
}

func (s *chatHistoryServiceImpl) GetHistory(ctx context.Context, roomIDs []string) ([]domain.RoomHistoryView, error) {
	// Index-stable slice keeps output order equal to input order no
	// matter how the lookups interleave.
	found := make([]*domain.RoomHistoryView, len(roomIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxRoomConcurrency)

	for i, roomID := range roomIDs {
		g.Go(func() error {
			view, err := s.roomView(gctx, roomID)
			if err != nil {
				return err
			}
			found[i] = view
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]domain.RoomHistoryView, 0, len(found))
	for _, v := range found {
		if v != nil {
			views = append(views, *v)
		}
	}
	return views, nil
}

// roomView builds one room's history entry. A nil view with nil error
// means the room does not exist and contributes nothing.
func (s *chatHistoryServiceImpl) roomView(ctx context.Context, roomID string) (*domain.RoomHistoryView, error) {
	room, err := s.rooms.FindWithMembers(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve room %s: %w", roomID, err)
	}

	var durable []domain.Message
	chatLog, err := s.logs.FindLog(ctx, roomID)
	switch {
	case err == nil:
		durable = chatLog.Messages
	case errors.Is(err, repository.ErrLogNotFound):
		// A room with no log simply has no messages yet.
	default:
		return nil, fmt.Errorf("failed to load chat log for room %s: %w", roomID, err)
	}

	// The overlay call is skipped entirely while the cache is down,
	// not attempted-and-tolerated. Miss and Degraded both collapse to
	// an empty sequence here.
	var overlay []domain.Message
	if s.guard.Available() {
		if res := s.overlay.GetOverlay(ctx, roomID); res.Status == cache.OverlayHit {
			overlay = res.Messages
		}
	}

	// Durable first, overlay after, no re-sorting and no dedup.
	// Clients depend on this ordering.
	messages := make([]domain.Message, 0, len(durable)+len(overlay))
	messages = append(messages, durable...)
	messages = append(messages, overlay...)

	var members []domain.MemberSummary
	for _, u := range room.Users {
		members = append(members, domain.MemberSummary{
			UserID:   u.ID,
			Email:    u.Email,
			Username: u.Username,
		})
	}

	return &domain.RoomHistoryView{
		RoomID:           room.ID,
		RoomName:         room.RoomName,
		DateCreated:      room.DateCreated,
		RoomUsers:        members,
		RoomDeletedUsers: []domain.MemberSummary{},
		MessagesArray:    messages,
	}, nil
}

func (s *chatHistoryServiceImpl) GetHistoryForUser(ctx context.Context, externalUserID string) ([]domain.RoomHistoryView, error) {
	user, err := s.users.FindByExternalID(ctx, externalUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return s.GetHistory(ctx, user.RoomIDs)
}

func (s *chatHistoryServiceImpl) AppendMessages(ctx context.Context, roomID string, raw []domain.RawMessage) (*domain.ChatLog, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyAppend
	}

	if _, err := s.rooms.FindWithMembers(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to resolve room %s: %w", roomID, err)
	}

	now := s.now()
	messages := make([]domain.Message, len(raw))
	for i, r := range raw {
		messages[i] = r.Normalize(now)
	}

	chatLog, err := s.logs.AppendMessages(ctx, roomID, messages)
	if err != nil {
		if errors.Is(err, repository.ErrLogNotFound) {
			return nil, ErrLogNotFound
		}
		// *PartialWriteError propagates as-is: the committed prefix is
		// real and the caller needs the failing index.
		return nil, err
	}
	return chatLog, nil
}

func (s *chatHistoryServiceImpl) CreateLog(ctx context.Context, roomID string) (*domain.ChatLog, error) {
	if _, err := s.rooms.FindWithMembers(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to resolve room %s: %w", roomID, err)
	}

	chatLog, err := s.logs.CreateLog(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrLogExists) {
			return nil, ErrLogExists
		}
		return nil, err
	}
	return chatLog, nil
}

func (s *chatHistoryServiceImpl) PublishAlert(ctx context.Context, payload json.RawMessage, recipientIDs []string, actingUserID string) {
	s.mailbox.Publish(ctx, payload, recipientIDs, actingUserID)
}
