package users

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/boostlocal/boost-api/pkg/logger"
)

// Binding is the stored (uid -> role, merchant) lookup every request is
// authorized against.
type Binding struct {
	UID        string          `json:"uid"`
	Email      string          `json:"email"`
	Role       *enums.UserRole `json:"role,omitempty"`
	MerchantID *uuid.UUID      `json:"merchant_id,omitempty"`
	IsPrimary  bool            `json:"is_primary"`
}

// Actor converts the binding into the caller used by access checks.
func (b Binding) Actor() access.Actor {
	return access.Actor{
		UID:        b.UID,
		Email:      b.Email,
		Role:       b.Role,
		MerchantID: b.MerchantID,
		IsPrimary:  b.IsPrimary,
	}
}

type bindingStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	BindingKey(uid string) string
}

// BindingCache keeps resolved bindings in Redis for a short TTL. Every
// operation is best effort; a cache failure falls through to the database.
type BindingCache struct {
	store bindingStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewBindingCache returns a cache; a nil store or non-positive ttl disables it.
func NewBindingCache(store bindingStore, ttl time.Duration, logg *logger.Logger) *BindingCache {
	return &BindingCache{store: store, ttl: ttl, logg: logg}
}

func (c *BindingCache) enabled() bool {
	return c != nil && c.store != nil && c.ttl > 0
}

// Get returns the cached binding for uid.
func (c *BindingCache) Get(ctx context.Context, uid string) (*Binding, bool) {
	if !c.enabled() {
		return nil, false
	}
	raw, err := c.store.Get(ctx, c.store.BindingKey(uid))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.warn(ctx, "binding cache read failed", err)
		}
		return nil, false
	}
	var binding Binding
	if err := json.Unmarshal([]byte(raw), &binding); err != nil {
		c.warn(ctx, "binding cache entry unreadable", err)
		return nil, false
	}
	return &binding, true
}

// Put stores binding under its uid.
func (c *BindingCache) Put(ctx context.Context, binding Binding) {
	if !c.enabled() {
		return
	}
	payload, err := json.Marshal(binding)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.store.BindingKey(binding.UID), payload, c.ttl); err != nil {
		c.warn(ctx, "binding cache write failed", err)
	}
}

// Invalidate drops the cached bindings of uids.
func (c *BindingCache) Invalidate(ctx context.Context, uids ...string) {
	if !c.enabled() || len(uids) == 0 {
		return
	}
	keys := make([]string, 0, len(uids))
	for _, uid := range uids {
		keys = append(keys, c.store.BindingKey(uid))
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.warn(ctx, "binding cache invalidation failed", err)
	}
}

func (c *BindingCache) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), msg)
}
