// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package cache

import (
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("key1", "value1")

	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "value1" {
		t.Errorf("expected value1, got %v", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("absent"); ok {
		t.Error("expected cache miss for absent key")
	}

	stats := c.GetStats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)

	c.Set("shortlived", 42)
	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get("shortlived"); ok {
		t.Error("expected expired entry to miss")
	}

	stats := c.GetStats()
	if stats.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestCacheSetWithTTL(t *testing.T) {
	c := New(10 * time.Millisecond)

	c.SetWithTTL("longlived", "still here", time.Minute)
	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get("longlived"); !ok {
		t.Error("expected custom-TTL entry to survive default TTL")
	}
}

func TestCacheClear(t *testing.T) {
	c := New(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Error("expected entry a flushed")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected entry b flushed")
	}

	stats := c.GetStats()
	if stats.TotalKeys != 0 {
		t.Errorf("expected 0 keys after clear, got %d", stats.TotalKeys)
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(time.Minute)

	c.Set("doomed", "x")
	c.Delete("doomed")

	if _, ok := c.Get("doomed"); ok {
		t.Error("expected deleted entry to miss")
	}
}

func TestHitRate(t *testing.T) {
	c := New(time.Minute)

	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	c.Get("absent")

	rate := c.HitRate()
	want := 100.0 * 2.0 / 3.0
	if rate < want-0.01 || rate > want+0.01 {
		t.Errorf("expected hit rate ~%.2f, got %.2f", want, rate)
	}
}

func TestGenerateKey(t *testing.T) {
	k1 := GenerateKey("list", map[string]int{"page": 1})
	k2 := GenerateKey("list", map[string]int{"page": 1})
	k3 := GenerateKey("list", map[string]int{"page": 2})

	if k1 != k2 {
		t.Error("expected deterministic keys for equal params")
	}
	if k1 == k3 {
		t.Error("expected distinct keys for different params")
	}
}
