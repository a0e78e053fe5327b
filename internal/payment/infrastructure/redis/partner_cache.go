package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	payment "payment-gateway/internal/payment/domain"
)

const (
	partnerKeyPrefix  = "payment:partner:"
	defaultPartnerTTL = 5 * time.Minute
)

// PartnerCache is a read-through cache in front of a partner repository.
// Cache failures are logged and fall through to the backing repository.
type PartnerCache struct {
	client  goredis.UniversalClient
	backing payment.PartnerRepository
	ttl     time.Duration
	logger  *zap.Logger
}

// NewClient builds a single-node client with the pool settings used for the cache.
func NewClient(addr, password string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolTimeout:  2 * time.Second,
	})
}

// NewPartnerCache wraps backing with a Redis cache.
func NewPartnerCache(client goredis.UniversalClient, backing payment.PartnerRepository, ttl time.Duration, logger *zap.Logger) (*PartnerCache, error) {
	if client == nil {
		return nil, errors.New("partner cache: nil redis client")
	}
	if backing == nil {
		return nil, errors.New("partner cache: nil backing repository")
	}
	if ttl <= 0 {
		ttl = defaultPartnerTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartnerCache{client: client, backing: backing, ttl: ttl, logger: logger}, nil
}

// FindByID returns the partner, consulting the cache first.
// Only inactive entries are served from the cache: an entry that says the
// partner is active is confirmed against the backing repository, so a
// deactivation takes effect on the next payment rather than after the TTL.
// Missing partners are not cached.
func (c *PartnerCache) FindByID(ctx context.Context, id int64) (*payment.Partner, error) {
	key := partnerKey(id)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached payment.Partner
		if decodeErr := json.Unmarshal(raw, &cached); decodeErr != nil {
			c.logger.Warn("partner cache entry corrupt", zap.String("key", key))
		} else if !cached.Active {
			return &cached, nil
		}
	case errors.Is(err, goredis.Nil):
	default:
		c.logger.Warn("partner cache get failed", zap.String("key", key), zap.Error(err))
	}

	partner, err := c.backing.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("partner cache delete failed", zap.String("key", key), zap.Error(err))
		}
		return nil, nil
	}
	if encoded, err := json.Marshal(partner); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("partner cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return partner, nil
}

// Invalidate drops the cached partner.
func (c *PartnerCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, partnerKey(id)).Err()
}

func partnerKey(id int64) string {
	return partnerKeyPrefix + strconv.FormatInt(id, 10)
}
