package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hearthchat/chat-history-service/internal/cache"
	"github.com/hearthchat/chat-history-service/internal/domain"
	"github.com/hearthchat/chat-history-service/internal/repository"
)

type fakeRoomRepo struct {
	rooms map[string]*domain.Room
}

func (f *fakeRoomRepo) FindWithMembers(_ context.Context, roomID string) (*domain.Room, error) {
	if room, ok := f.rooms[roomID]; ok {
		return room, nil
	}
	return nil, repository.ErrRoomNotFound
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) FindByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	if u, ok := f.users[externalID]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

type fakeLogRepo struct {
	mu   sync.Mutex
	logs map[string]*domain.ChatLog

	// failAppendAt makes the append of the message at this index fail;
	// -1 disables.
	failAppendAt int
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: map[string]*domain.ChatLog{}, failAppendAt: -1}
}

func (f *fakeLogRepo) CreateLog(_ context.Context, roomID string) (*domain.ChatLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.logs[roomID]; ok {
		return nil, repository.ErrLogExists
	}
	chatLog := &domain.ChatLog{ID: "log-" + roomID, RoomID: roomID, Messages: []domain.Message{}}
	f.logs[roomID] = chatLog
	return chatLog, nil
}

func (f *fakeLogRepo) FindLog(_ context.Context, roomID string) (*domain.ChatLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chatLog, ok := f.logs[roomID]; ok {
		return chatLog, nil
	}
	return nil, repository.ErrLogNotFound
}

func (f *fakeLogRepo) AppendMessages(_ context.Context, roomID string, messages []domain.Message) (*domain.ChatLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chatLog, ok := f.logs[roomID]
	if !ok {
		return nil, repository.ErrLogNotFound
	}
	for i, msg := range messages {
		if i == f.failAppendAt {
			return nil, &repository.PartialWriteError{RoomID: roomID, Index: i, Err: errors.New("write failed")}
		}
		chatLog.Messages = append(chatLog.Messages, msg)
	}
	return chatLog, nil
}

type stubGuard struct {
	available bool
}

func (g stubGuard) Available() bool { return g.available }

type fakeOverlay struct {
	mu       sync.Mutex
	overlays map[string]cache.OverlayResult
	gets     int
}

func (f *fakeOverlay) GetOverlay(_ context.Context, roomID string) cache.OverlayResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if res, ok := f.overlays[roomID]; ok {
		return res
	}
	return cache.OverlayResult{Status: cache.OverlayMiss}
}

func (f *fakeOverlay) SetOverlay(_ context.Context, roomID string, messages []domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overlays[roomID] = cache.OverlayResult{Status: cache.OverlayHit, Messages: messages}
	return nil
}

func (f *fakeOverlay) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type fakeMailbox struct {
	published []json.RawMessage
}

func (f *fakeMailbox) Publish(_ context.Context, payload json.RawMessage, _ []string, _ string) {
	f.published = append(f.published, payload)
}

func (f *fakeMailbox) Drain(_ context.Context, _ string) []json.RawMessage { return nil }

func msg(id, content string) domain.Message {
	return domain.Message{MessageID: id, SenderID: "u1", Username: "alice", Content: content}
}

type fixture struct {
	rooms   *fakeRoomRepo
	users   *fakeUserRepo
	logs    *fakeLogRepo
	overlay *fakeOverlay
	mailbox *fakeMailbox
}

func newFixture(available bool) (*fixture, ChatHistoryService) {
	f := &fixture{
		rooms:   &fakeRoomRepo{rooms: map[string]*domain.Room{}},
		users:   &fakeUserRepo{users: map[string]*domain.User{}},
		logs:    newFakeLogRepo(),
		overlay: &fakeOverlay{overlays: map[string]cache.OverlayResult{}},
		mailbox: &fakeMailbox{},
	}
	svc := NewChatHistoryService(f.rooms, f.users, f.logs, stubGuard{available}, f.overlay, f.mailbox)
	return f, svc
}

func (f *fixture) addRoom(id, name string, users ...domain.User) {
	f.rooms.rooms[id] = &domain.Room{
		ID:          id,
		RoomName:    name,
		Users:       users,
		DateCreated: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("merges durable log with overlay in order", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general", domain.User{ID: "u1", Email: "a@x.io", Username: "alice"})
		f.logs.logs["r1"] = &domain.ChatLog{RoomID: "r1", Messages: []domain.Message{msg("m1", "hi")}}
		f.overlay.overlays["r1"] = cache.OverlayResult{
			Status:   cache.OverlayHit,
			Messages: []domain.Message{msg("m2", "cached")},
		}

		views, err := svc.GetHistory(ctx, []string{"r1"})
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(views) != 1 {
			t.Fatalf("got %d views, want 1", len(views))
		}

		got := views[0].MessagesArray
		if len(got) != 2 || got[0].Content != "hi" || got[1].Content != "cached" {
			t.Errorf("messagesArray = %v, want [hi cached]", contents(got))
		}
	})

	t.Run("preserves input order and omits nonexistent rooms", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "one")
		f.addRoom("r3", "three")

		views, err := svc.GetHistory(ctx, []string{"r3", "missing", "r1"})
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(views) != 2 {
			t.Fatalf("got %d views, want 2", len(views))
		}
		if views[0].RoomID != "r3" || views[1].RoomID != "r1" {
			t.Errorf("order = [%s %s], want [r3 r1]", views[0].RoomID, views[1].RoomID)
		}
	})

	t.Run("nonexistent room yields empty result not error", func(t *testing.T) {
		_, svc := newFixture(true)

		views, err := svc.GetHistory(ctx, []string{"nonexistent"})
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(views) != 0 {
			t.Errorf("got %d views, want 0", len(views))
		}
	})

	t.Run("room without a log has empty messages", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "fresh")

		views, err := svc.GetHistory(ctx, []string{"r1"})
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(views) != 1 || len(views[0].MessagesArray) != 0 {
			t.Errorf("expected one view with no messages, got %+v", views)
		}
	})

	t.Run("never queries overlay while guard unavailable", func(t *testing.T) {
		f, svc := newFixture(false)
		f.addRoom("r1", "general")
		f.logs.logs["r1"] = &domain.ChatLog{RoomID: "r1", Messages: []domain.Message{msg("m1", "hi")}}
		f.overlay.overlays["r1"] = cache.OverlayResult{
			Status:   cache.OverlayHit,
			Messages: []domain.Message{msg("m2", "cached")},
		}

		views, err := svc.GetHistory(ctx, []string{"r1"})
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if f.overlay.getCount() != 0 {
			t.Errorf("overlay queried %d times while unavailable", f.overlay.getCount())
		}
		got := views[0].MessagesArray
		if len(got) != 1 || got[0].Content != "hi" {
			t.Errorf("messagesArray = %v, want durable only", contents(got))
		}
	})

	t.Run("degraded overlay collapses to durable only", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general")
		f.logs.logs["r1"] = &domain.ChatLog{RoomID: "r1", Messages: []domain.Message{msg("m1", "hi")}}
		f.overlay.overlays["r1"] = cache.OverlayResult{Status: cache.OverlayDegraded}

		views, err := svc.GetHistory(ctx, []string{"r1"})
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		got := views[0].MessagesArray
		if len(got) != 1 || got[0].Content != "hi" {
			t.Errorf("messagesArray = %v, want durable only", contents(got))
		}
	})

	t.Run("view carries member summaries and empty removed list", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general", domain.User{ID: "u1", Email: "a@x.io", Username: "alice"})
		f.addRoom("r2", "empty")

		views, err := svc.GetHistory(ctx, []string{"r1", "r2"})
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}

		if len(views[0].RoomUsers) != 1 || views[0].RoomUsers[0].Username != "alice" {
			t.Errorf("roomUsers = %+v, want alice", views[0].RoomUsers)
		}
		if views[1].RoomUsers != nil {
			t.Errorf("roomUsers = %+v, want nil for memberless room", views[1].RoomUsers)
		}
		for _, v := range views {
			if v.RoomDeletedUsers == nil || len(v.RoomDeletedUsers) != 0 {
				t.Errorf("roomDeletedUsers = %+v, want empty", v.RoomDeletedUsers)
			}
		}
	})

	t.Run("large batch keeps input order", func(t *testing.T) {
		f, svc := newFixture(true)
		var ids []string
		for i := 0; i < 50; i++ {
			id := fmt.Sprintf("room-%02d", i)
			f.addRoom(id, id)
			ids = append(ids, id)
		}

		views, err := svc.GetHistory(ctx, ids)
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(views) != len(ids) {
			t.Fatalf("got %d views, want %d", len(views), len(ids))
		}
		for i, v := range views {
			if v.RoomID != ids[i] {
				t.Fatalf("views[%d].RoomID = %s, want %s", i, v.RoomID, ids[i])
			}
		}
	})
}

func TestGetHistoryForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves rooms from the user's membership", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general")
		f.addRoom("r2", "random")
		f.users.users["ext-1"] = &domain.User{ID: "u1", ExternalID: "ext-1", RoomIDs: []string{"r2", "r1"}}

		views, err := svc.GetHistoryForUser(ctx, "ext-1")
		if err != nil {
			t.Fatalf("GetHistoryForUser: %v", err)
		}
		if len(views) != 2 || views[0].RoomID != "r2" || views[1].RoomID != "r1" {
			t.Errorf("unexpected views: %+v", views)
		}
	})

	t.Run("unknown external id is ErrUserNotFound", func(t *testing.T) {
		_, svc := newFixture(true)

		_, err := svc.GetHistoryForUser(ctx, "ghost")
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("err = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("user with no rooms gets empty history", func(t *testing.T) {
		f, svc := newFixture(true)
		f.users.users["ext-1"] = &domain.User{ID: "u1", ExternalID: "ext-1"}

		views, err := svc.GetHistoryForUser(ctx, "ext-1")
		if err != nil {
			t.Fatalf("GetHistoryForUser: %v", err)
		}
		if len(views) != 0 {
			t.Errorf("got %d views, want 0", len(views))
		}
	})
}

func TestAppendMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("appends in input order", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general")
		f.logs.logs["r1"] = &domain.ChatLog{RoomID: "r1", Messages: []domain.Message{}}

		chatLog, err := svc.AppendMessages(ctx, "r1", []domain.RawMessage{
			{SenderID: "u1", Content: "first"},
			{SenderID: "u1", Content: "second"},
		})
		if err != nil {
			t.Fatalf("AppendMessages: %v", err)
		}

		n := len(chatLog.Messages)
		if n < 2 || chatLog.Messages[n-2].Content != "first" || chatLog.Messages[n-1].Content != "second" {
			t.Errorf("log tail = %v, want [first second]", contents(chatLog.Messages))
		}
	})

	t.Run("missing room is ErrRoomNotFound with no mutation", func(t *testing.T) {
		f, svc := newFixture(true)

		_, err := svc.AppendMessages(ctx, "missing", []domain.RawMessage{{SenderID: "u1", Content: "x"}})
		if !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("err = %v, want ErrRoomNotFound", err)
		}
		if len(f.logs.logs) != 0 {
			t.Errorf("logs mutated: %+v", f.logs.logs)
		}
	})

	t.Run("missing log is ErrLogNotFound", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general")

		_, err := svc.AppendMessages(ctx, "r1", []domain.RawMessage{{SenderID: "u1", Content: "x"}})
		if !errors.Is(err, ErrLogNotFound) {
			t.Errorf("err = %v, want ErrLogNotFound", err)
		}
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general")

		_, err := svc.AppendMessages(ctx, "r1", nil)
		if !errors.Is(err, ErrEmptyAppend) {
			t.Errorf("err = %v, want ErrEmptyAppend", err)
		}
	})

	t.Run("partial failure keeps the committed prefix", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general")
		f.logs.logs["r1"] = &domain.ChatLog{RoomID: "r1", Messages: []domain.Message{}}
		f.logs.failAppendAt = 1

		_, err := svc.AppendMessages(ctx, "r1", []domain.RawMessage{
			{SenderID: "u1", Content: "first"},
			{SenderID: "u1", Content: "second"},
		})

		var partial *repository.PartialWriteError
		if !errors.As(err, &partial) {
			t.Fatalf("err = %v, want *PartialWriteError", err)
		}
		if partial.Index != 1 {
			t.Errorf("failing index = %d, want 1", partial.Index)
		}

		stored := f.logs.logs["r1"].Messages
		if len(stored) != 1 || stored[0].Content != "first" {
			t.Errorf("log = %v, want [first] committed", contents(stored))
		}
	})
}

func TestCreateLog(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an empty log once", func(t *testing.T) {
		f, svc := newFixture(true)
		f.addRoom("r1", "general")

		chatLog, err := svc.CreateLog(ctx, "r1")
		if err != nil {
			t.Fatalf("CreateLog: %v", err)
		}
		if chatLog.RoomID != "r1" || len(chatLog.Messages) != 0 {
			t.Errorf("unexpected log: %+v", chatLog)
		}

		if _, err := svc.CreateLog(ctx, "r1"); !errors.Is(err, ErrLogExists) {
			t.Errorf("second create err = %v, want ErrLogExists", err)
		}
	})

	t.Run("missing room is ErrRoomNotFound", func(t *testing.T) {
		_, svc := newFixture(true)

		if _, err := svc.CreateLog(ctx, "missing"); !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("err = %v, want ErrRoomNotFound", err)
		}
	})
}

func contents(messages []domain.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}
