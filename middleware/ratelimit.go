// middleware/ratelimit.go
//
// Fixed-window rate limiting. The windowing algorithm (key derivation,
// count, wholesale reset) is decoupled from counter storage so a
// single-instance deployment runs on the in-memory map while multi-instance
// deployments point RATE_LIMIT_REDIS_URL at a shared store.
package middleware

import (
	"context"
	"time"

	"ballup-api/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CounterStore increments the counter for a key inside the current fixed
// window and reports the running count plus time until the window resets.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// Tier is one endpoint-sensitivity class.
type Tier struct {
	Name   string
	Window time.Duration
	Max    int
}

// Tiers carries every configured class, loaded once at boot.
type Tiers struct {
	General       Tier
	Auth          Tier
	Modify        Tier
	Read          Tier
	Sensitive     Tier
	Upload        Tier
	GameActions   Tier // per authenticated user
	ProfileUpdate Tier // per authenticated user
}

// LoadTiers reads per-tier window/max overrides from the environment.
func LoadTiers() Tiers {
	tier := func(name string, defWindow time.Duration, defMax int) Tier {
		prefix := "RATE_LIMIT_" + name
		return Tier{
			Name:   name,
			Window: utils.EnvDurationMs(prefix+"_WINDOW_MS", defWindow),
			Max:    utils.EnvInt(prefix+"_MAX", defMax),
		}
	}
	return Tiers{
		General:       tier("GENERAL", 15*time.Minute, 300),
		Auth:          tier("AUTH", 15*time.Minute, 5),
		Modify:        tier("MODIFY", 15*time.Minute, 60),
		Read:          tier("READ", 15*time.Minute, 600),
		Sensitive:     tier("SENSITIVE", 60*time.Minute, 10),
		Upload:        tier("UPLOAD", 60*time.Minute, 20),
		GameActions:   tier("GAME_ACTIONS", 15*time.Minute, 30),
		ProfileUpdate: tier("PROFILE_UPDATE", 60*time.Minute, 10),
	}
}

// Limiter builds per-tier fiber handlers over a counter store.
type Limiter struct {
	store    CounterStore
	security *zap.Logger
	enabled  bool
}

func NewLimiter(store CounterStore, security *zap.Logger, enabled bool) *Limiter {
	return &Limiter{store: store, security: security, enabled: enabled}
}

// ByIP limits per client address.
func (l *Limiter) ByIP(tier Tier) fiber.Handler {
	return l.handler(tier, func(c *fiber.Ctx) string { return c.IP() })
}

// ByUser limits per authenticated user, falling back to the address when
// the route is hit before auth ran.
func (l *Limiter) ByUser(tier Tier) fiber.Handler {
	return l.handler(tier, func(c *fiber.Ctx) string {
		if id := UserID(c); id != "" {
			return id
		}
		return c.IP()
	})
}

func (l *Limiter) handler(tier Tier, keyFn func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.enabled {
			return c.Next()
		}

		key := tier.Name + ":" + keyFn(c)
		count, resetIn, err := l.store.Incr(c.UserContext(), key, tier.Window)
		if err != nil {
			// A broken counter store must not take the API down with it.
			l.security.Warn("rate limiter store error",
				zap.String("tier", tier.Name), zap.Error(err))
			return c.Next()
		}

		if count > int64(tier.Max) {
			retryAfter := int(resetIn.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			l.security.Warn("rate limit exceeded",
				zap.String("tier", tier.Name),
				zap.String("key", key),
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
				zap.Int64("count", count),
			)
			c.Set("Retry-After", time.Now().Add(resetIn).UTC().Format(time.RFC1123))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"message":     "too many requests, slow down",
					"retry_after": retryAfter,
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"path":      c.Path(),
				"method":    c.Method(),
			})
		}

		return c.Next()
	}
}
