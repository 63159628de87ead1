package cache

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hearthchat/chat-history-service/internal/config"
	"github.com/hearthchat/chat-history-service/pkg/log"
)

// Guard owns the Redis connection lifecycle and answers the one
// question the read and write paths are allowed to ask: is the cache
// usable right now. There is no automatic reconnection; once a connect
// attempt fails or the guard is closed, it stays unavailable until the
// process lifecycle calls TryConnect again.
type Guard struct {
	cfg config.RedisConfig

	mu        sync.Mutex // serializes connect/close transitions
	client    atomic.Pointer[redis.Client]
	connected atomic.Bool
	closed    atomic.Bool
}

func NewGuard(cfg config.RedisConfig) *Guard {
	return &Guard{cfg: cfg}
}

// TryConnect attempts the cache handshake, racing it against timeout.
// Failure is a normal false return, never an error: the service runs
// degraded without the cache.
func (g *Guard) TryConnect(ctx context.Context, timeout time.Duration) bool {
	if g.cfg.Disabled {
		log.L().Info().Msg("redis disabled by configuration, skipping connect")
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed.Load() {
		return false
	}
	if g.connected.Load() {
		return true
	}

	client := g.client.Load()
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     g.cfg.Address,
			Password: g.cfg.Password,
			DB:       g.cfg.DB,
		})
		g.client.Store(client)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.L().Warn().
			Err(err).
			Str("address", g.cfg.Address).
			Str("reason", classifyConnectErr(err)).
			Msg("redis unavailable, continuing without cache")
		return false
	}

	g.connected.Store(true)
	log.L().Info().Str("address", g.cfg.Address).Msg("connected to redis")
	return true
}

// Available reports whether the handshake completed and the guard has
// not been closed since. It is safe for any number of concurrent
// readers.
func (g *Guard) Available() bool {
	return g.connected.Load() && !g.closed.Load()
}

// Hashes returns the hash-command surface backed by this guard's
// connection. Callers must check Available first.
func (g *Guard) Hashes() Hashes {
	return redisHashes{g: g}
}

// Close releases the connection if one is open. The guard is
// permanently unavailable afterwards.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed.Load() {
		return
	}
	g.closed.Store(true)
	g.connected.Store(false)

	if client := g.client.Load(); client != nil {
		if err := client.Close(); err != nil {
			log.L().Warn().Err(err).Msg("error closing redis connection")
			return
		}
		log.L().Info().Msg("redis connection closed")
	}
}

// classifyConnectErr names the failure for the operator; callers treat
// every failure the same way (unavailable).
func classifyConnectErr(err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return "host unreachable"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "connect error"
	}
}
