package cache

import (
	"context"
	"errors"

	"github.com/hearthchat/chat-history-service/internal/domain"
)

// ErrNotFound reports an absent hash field. Absence is a normal state,
// not a failure.
var ErrNotFound = errors.New("cache entry not found")

// Hashes is the minimal hash-command surface the overlay cache and the
// alert mailbox need from the cache backend.
type Hashes interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key, field string) error
}

// OverlayStatus distinguishes the three outcomes of an overlay read.
// The distinction exists so degradation is observable in tests; the
// merger collapses Miss and Degraded to an empty sequence.
type OverlayStatus int

const (
	OverlayHit OverlayStatus = iota
	OverlayMiss
	OverlayDegraded
)

// OverlayResult is the outcome of reading a room's cached overlay.
type OverlayResult struct {
	Status   OverlayStatus
	Messages []domain.Message
}

// OverlayCache holds the supplementary per-room message sequences.
// Callers must consult the availability guard before calling GetOverlay;
// the cache itself does not skip the backend call.
type OverlayCache interface {
	GetOverlay(ctx context.Context, roomID string) OverlayResult
	SetOverlay(ctx context.Context, roomID string, messages []domain.Message) error
}
