// Package hscode provides the read-only HS-code catalogue used to validate
// invoice lines before submission.
package hscode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahmedwadee/fbrflow/internal/fbr"
)

// Static is a fixed in-memory catalogue, used in tests and offline setups.
type Static map[string]struct{}

func NewStatic(codes ...string) Static {
	s := make(Static, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}

	return s
}

func (s Static) Verify(_ context.Context, code string) (bool, error) {
	_, ok := s[code]
	return ok, nil
}

// Source lists the authority's HS-code catalogue.
type Source interface {
	HSCodes(ctx context.Context) ([]fbr.HSCode, error)
}

// Cache verifies HS codes against the authority catalogue, refreshing its
// in-memory copy at most once per TTL. The catalogue changes rarely and is
// large, so every Verify must not hit the network.
type Cache struct {
	src Source
	ttl time.Duration

	mu        sync.Mutex
	codes     map[string]struct{}
	fetchedAt time.Time
}

func NewCache(src Source, ttl time.Duration) *Cache {
	return &Cache{src: src, ttl: ttl}
}

func (c *Cache) Verify(ctx context.Context, code string) (bool, error) {
	codes, err := c.catalogue(ctx)
	if err != nil {
		return false, err
	}

	_, ok := codes[code]

	return ok, nil
}

func (c *Cache) catalogue(ctx context.Context) (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.codes != nil && time.Since(c.fetchedAt) < c.ttl {
		return c.codes, nil
	}

	list, err := c.src.HSCodes(ctx)
	if err != nil {
		// Serve a stale catalogue rather than blocking validation when
		// the authority is unreachable.
		if c.codes != nil {
			return c.codes, nil
		}

		return nil, fmt.Errorf("fetching HS code catalogue: %w", err)
	}

	codes := make(map[string]struct{}, len(list))
	for _, hc := range list {
		codes[hc.Code] = struct{}{}
	}

	c.codes = codes
	c.fetchedAt = time.Now()

	return c.codes, nil
}
