package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hearthchat/chat-history-service/internal/domain"
	"github.com/hearthchat/chat-history-service/pkg/log"
)

// RedisOverlayCache stores one JSON-serialized message sequence per
// room id, in a single hash.
type RedisOverlayCache struct {
	hashes Hashes
	key    string
}

func NewRedisOverlayCache(hashes Hashes, key string) *RedisOverlayCache {
	return &RedisOverlayCache{hashes: hashes, key: key}
}

// GetOverlay reads the room's supplementary sequence. A missing entry
// is a Miss; a backend error or unparseable payload is Degraded. Both
// carry no messages and neither is an error to the caller.
func (c *RedisOverlayCache) GetOverlay(ctx context.Context, roomID string) OverlayResult {
	raw, err := c.hashes.HGet(ctx, c.key, roomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OverlayResult{Status: OverlayMiss}
		}
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("overlay read failed")
		return OverlayResult{Status: OverlayDegraded}
	}

	var messages []domain.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("overlay entry unparseable")
		return OverlayResult{Status: OverlayDegraded}
	}

	return OverlayResult{Status: OverlayHit, Messages: messages}
}

// SetOverlay replaces the room's supplementary sequence.
func (c *RedisOverlayCache) SetOverlay(ctx context.Context, roomID string, messages []domain.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal overlay: %w", err)
	}
	return c.hashes.HSet(ctx, c.key, roomID, string(data))
}
