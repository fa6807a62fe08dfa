// Package idempotency makes repeated identical submissions safe: responses
// are cached per client-supplied key with a TTL, and concurrent submissions
// sharing a key converge on a single remote call.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrWaitTimeout is returned when a request waited too long behind another
// request's in-flight claim for the same key. Callers should treat it as a
// transient failure; a later retry gets an independent attempt.
var ErrWaitTimeout = errors.New("timed out waiting for in-flight submission with the same idempotency key")

type entry[T any] struct {
	value    T
	err      error
	storedAt time.Time
}

type outcome[T any] struct {
	value T
	err   error
}

// Cache is an in-memory idempotent-response cache with single-flight
// semantics. Failed results are cached exactly like successes: a cached
// error is replayed, not retried, within the TTL window.
type Cache[T any] struct {
	ttl  time.Duration
	wait time.Duration
	now  func() time.Time // injected in tests

	mu      sync.Mutex
	entries map[string]entry[T]
	group   singleflight.Group
}

// New creates a cache. ttl bounds how long stored responses are replayed;
// wait bounds how long a request blocks behind another request's claim.
func New[T any](ttl, wait time.Duration) *Cache[T] {
	return &Cache[T]{
		ttl:     ttl,
		wait:    wait,
		now:     time.Now,
		entries: make(map[string]entry[T]),
	}
}

// Do runs fn under the idempotency contract for key and reports whether the
// result was shared (replayed from the cache or joined to another caller's
// in-flight execution) rather than computed by this call.
//
// An empty key bypasses the cache entirely: fn runs unconditionally and
// nothing is stored. Expiry is checked lazily on lookup; the lock is never
// held while fn executes.
func (c *Cache[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if key == "" {
		v, err := fn(ctx)
		return v, false, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.storedAt) <= c.ttl {
			c.mu.Unlock()
			return e.value, true, e.err
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	// fn runs on a detached context: if the claim holder disconnects, the
	// followers sharing its result must still receive one, and the remote
	// job may legitimately keep running.
	execCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		out, err := c.claimOrReplay(execCtx, key, fn)
		return out, err
	})

	timer := time.NewTimer(c.wait)
	defer timer.Stop()

	select {
	case res := <-ch:
		out := res.Val.(outcome[T])
		return out.value, res.Shared, out.err
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case <-timer.C:
		// The claim holder may have crashed without storing a result.
		// Detach the key so the next attempt runs independently.
		c.group.Forget(key)
		return zero, false, ErrWaitTimeout
	}
}

// claimOrReplay is the single-flight body for key. The miss check in Do and
// the claim here are not one atomic step, so a caller that missed the cache
// can win a fresh claim after an earlier holder already stored a result;
// re-checking the store before executing closes that window.
func (c *Cache[T]) claimOrReplay(ctx context.Context, key string, fn func(context.Context) (T, error)) (outcome[T], error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.storedAt) <= c.ttl {
		c.mu.Unlock()
		return outcome[T]{value: e.value, err: e.err}, nil
	}
	c.mu.Unlock()

	v, err := fn(ctx)
	c.store(key, v, err)
	return outcome[T]{value: v, err: err}, nil
}

// store records a computed result, pruning expired entries to bound memory.
func (c *Cache[T]) store(key string, v T, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	for k, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry[T]{value: v, err: err, storedAt: c.now()}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
