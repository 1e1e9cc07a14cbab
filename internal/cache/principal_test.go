package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/backofficehq/backoffice/internal/cache"
	"github.com/backofficehq/backoffice/internal/models"
)

type countingLookup struct {
	calls int
	actor models.Actor
	err   error
}

func (c *countingLookup) GetByAPIKey(_ context.Context, _ string) (models.Actor, error) {
	c.calls++

	return c.actor, c.err
}

func TestMemoryLookupCachesHits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &countingLookup{actor: models.Actor{UserID: 1, CompanyID: 2, Name: "svc"}}
	c := cache.NewMemoryPrincipalLookup(ctx, inner)

	for range 3 {
		actor, err := c.GetByAPIKey(ctx, "key-1")
		if err != nil {
			t.Fatalf("GetByAPIKey: %v", err)
		}
		if actor.CompanyID != 2 {
			t.Errorf("CompanyID = %d, want 2", actor.CompanyID)
		}
	}

	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestMemoryLookupNegativeCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &countingLookup{err: models.ErrRecordNotFound}
	c := cache.NewMemoryPrincipalLookup(ctx, inner)

	if _, err := c.GetByAPIKey(ctx, "bad-key"); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("first lookup: %v", err)
	}

	// Second miss must be served from the negative cache.
	if _, err := c.GetByAPIKey(ctx, "bad-key"); !errors.Is(err, cache.ErrCachedNotFound) {
		t.Fatalf("second lookup: %v, want ErrCachedNotFound", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestMemoryLookupDistinctKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &countingLookup{actor: models.Actor{UserID: 1}}
	c := cache.NewMemoryPrincipalLookup(ctx, inner)

	if _, err := c.GetByAPIKey(ctx, "key-a"); err != nil {
		t.Fatalf("key-a: %v", err)
	}
	if _, err := c.GetByAPIKey(ctx, "key-b"); err != nil {
		t.Fatalf("key-b: %v", err)
	}

	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}
