package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CertificateLookup answers whether a user holds a downloadable certificate.
type CertificateLookup interface {
	HasDownloadableCertificate(ctx context.Context, userID, courseID string) (bool, error)
}

// CertificateCache fronts a CertificateLookup with Redis. Only positive
// answers are cached: a certificate that appears must block regain at once,
// while one that exists is not expected to disappear within the TTL.
type CertificateCache struct {
	rdb   *redis.Client
	next  CertificateLookup
	keyNS string
	ttl   time.Duration
}

func NewCertificateCache(rdb *redis.Client, next CertificateLookup, keyPrefix string, ttl time.Duration) *CertificateCache {
	if keyPrefix == "" {
		keyPrefix = "entitlements:cert:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CertificateCache{rdb: rdb, next: next, keyNS: keyPrefix, ttl: ttl}
}

func (c *CertificateCache) key(userID, courseID string) string {
	return c.keyNS + courseID + ":" + userID
}

func (c *CertificateCache) HasDownloadableCertificate(ctx context.Context, userID, courseID string) (bool, error) {
	if c.rdb == nil {
		return c.next.HasDownloadableCertificate(ctx, userID, courseID)
	}
	key := c.key(userID, courseID)
	n, err := c.rdb.Exists(ctx, key).Result()
	if err == nil && n > 0 {
		return true, nil
	}

	ok, err := c.next.HasDownloadableCertificate(ctx, userID, courseID)
	if err != nil || !ok {
		return ok, err
	}
	// A failed cache write only costs a repeat lookup.
	_ = c.rdb.Set(ctx, key, 1, c.ttl).Err()
	return true, nil
}

// Forget drops a cached answer, e.g. after a certificate is revoked.
func (c *CertificateCache) Forget(ctx context.Context, userID, courseID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key(userID, courseID)).Err()
}
