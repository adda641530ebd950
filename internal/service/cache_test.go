package service

import (
	"testing"
	"time"
)

func TestCache_DiscardsOlderRefresh(t *testing.T) {
	var c cache[int]
	now := time.Now()

	older := c.begin()
	newer := c.begin()

	if !c.replace(newer, []int{2}, now) {
		t.Fatalf("newer refresh must apply")
	}
	if c.replace(older, []int{1}, now) {
		t.Fatalf("older refresh must be discarded after a newer one applied")
	}
	if got := c.snapshot(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("snapshot = %v", got)
	}
}

func TestCache_MutationInvalidatesInFlight(t *testing.T) {
	var c cache[int]
	inFlight := c.begin()

	c.mutate(func(items []int) []int { return append(items, 9) })

	if c.replace(inFlight, []int{1}, time.Now()) {
		t.Fatalf("refresh started before a local mutation must be discarded")
	}
	if got := c.snapshot(); len(got) != 1 || got[0] != 9 {
		t.Fatalf("snapshot = %v", got)
	}

	next := c.begin()
	if !c.replace(next, []int{1, 2}, time.Now()) {
		t.Fatalf("refresh started after the mutation must apply")
	}
}

func TestCache_InvalidateDiscardsEverythingInFlight(t *testing.T) {
	var c cache[int]
	a := c.begin()
	b := c.begin()
	c.invalidate()

	if c.replace(a, []int{1}, time.Now()) || c.replace(b, []int{2}, time.Now()) {
		t.Fatalf("refreshes started before invalidate must be discarded")
	}
	if !c.lastRefresh().IsZero() {
		t.Fatalf("lastRefresh must stay zero")
	}
}

func TestCache_SnapshotIsACopy(t *testing.T) {
	var c cache[int]
	c.replace(c.begin(), []int{1, 2, 3}, time.Now())

	snap := c.snapshot()
	snap[0] = 100
	if got, _ := c.find(func(v int) bool { return v == 1 }); got != 1 {
		t.Fatalf("cache modified through snapshot")
	}
}
