// Package mailbox accumulates pending alert payloads per recipient on
// the cache substrate. Delivery is best-effort: when the cache is
// unavailable the mailbox silently does nothing, and a triggering
// action (say, a room rename) must never fail because of it.
package mailbox

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hearthchat/chat-history-service/internal/cache"
	"github.com/hearthchat/chat-history-service/pkg/log"
)

// Availability is the guard predicate the mailbox consults before
// touching the cache.
type Availability interface {
	Available() bool
}

// Mailbox is a per-recipient append-and-drain queue of pending alerts.
type Mailbox interface {
	// Publish appends payload to every recipient's queue except the
	// acting user's own. It never returns an error.
	Publish(ctx context.Context, payload json.RawMessage, recipientIDs []string, actingUserID string)

	// Drain returns and clears the user's pending queue. Empty when
	// the cache is unavailable or the user has nothing pending.
	Drain(ctx context.Context, userID string) []json.RawMessage
}

// RedisMailbox keeps one JSON array of payloads per user id in a
// single hash.
type RedisMailbox struct {
	guard  Availability
	hashes cache.Hashes
	key    string
}

func NewRedisMailbox(guard Availability, hashes cache.Hashes, key string) *RedisMailbox {
	return &RedisMailbox{guard: guard, hashes: hashes, key: key}
}

// Publish is a read-modify-write per recipient, with no cache-side
// atomicity: concurrent publishers to the same recipient can lose an
// update. That is accepted behavior for best-effort alerts.
func (m *RedisMailbox) Publish(ctx context.Context, payload json.RawMessage, recipientIDs []string, actingUserID string) {
	if !m.guard.Available() {
		log.Ctx(ctx).Debug().Msg("cache unavailable, skipping alert publish")
		return
	}

	acting := strings.TrimSpace(actingUserID)

	for _, id := range recipientIDs {
		recipient := strings.TrimSpace(id)
		if recipient == "" || recipient == acting {
			continue
		}

		pending := m.read(ctx, recipient)
		pending = append(pending, payload)

		data, err := json.Marshal(pending)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldUserID, recipient).Msg("failed to marshal alert queue")
			continue
		}
		if err := m.hashes.HSet(ctx, m.key, recipient, string(data)); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldUserID, recipient).Msg("failed to save alert queue")
		}
	}
}

func (m *RedisMailbox) Drain(ctx context.Context, userID string) []json.RawMessage {
	if !m.guard.Available() {
		return nil
	}

	userID = strings.TrimSpace(userID)
	pending := m.read(ctx, userID)
	if len(pending) == 0 {
		return nil
	}

	if err := m.hashes.HDel(ctx, m.key, userID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to clear alert queue")
	}
	return pending
}

// read fetches a recipient's pending queue, degrading to empty on
// absence, backend error, or a corrupt entry.
func (m *RedisMailbox) read(ctx context.Context, userID string) []json.RawMessage {
	raw, err := m.hashes.HGet(ctx, m.key, userID)
	if err != nil {
		return nil
	}

	var pending []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldUserID, userID).Msg("alert queue entry unparseable, resetting")
		return nil
	}
	return pending
}
