package fulfillment

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/campuseats/canteen/internal/domain"
)

func TestVendorQueues(t *testing.T) {
	noon := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	t.Run("free time of an empty queue is now", func(t *testing.T) {
		q := NewVendorQueues()
		if got := q.FreeTime("vendor-1", noon); !got.Equal(noon) {
			t.Errorf("expected %v, got %v", noon, got)
		}
	})

	t.Run("commit moves the free time forward", func(t *testing.T) {
		q := NewVendorQueues()

		predicted, _, err := q.Commit("order-1", "vendor-1", noon, 8*time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := noon.Add(8 * time.Minute); !predicted.Equal(want) {
			t.Errorf("expected predicted %v, got %v", want, predicted)
		}
		if got := q.FreeTime("vendor-1", noon); !got.Equal(predicted) {
			t.Errorf("expected free time %v, got %v", predicted, got)
		}
	})

	t.Run("remove releases the slot and the token", func(t *testing.T) {
		q := NewVendorQueues()

		_, token, err := q.Commit("order-1", "vendor-1", noon, 8*time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		q.Remove("vendor-1", "order-1")

		if n := q.Len("vendor-1"); n != 0 {
			t.Errorf("expected empty queue, got %d entries", n)
		}
		if _, ok := q.OrderIDByToken(token); ok {
			t.Errorf("expected token %s released", token)
		}
		if got := q.FreeTime("vendor-1", noon); !got.Equal(noon) {
			t.Errorf("expected free time back to %v, got %v", noon, got)
		}
	})

	t.Run("removing an unknown order is a no-op", func(t *testing.T) {
		q := NewVendorQueues()
		q.Remove("vendor-1", "never-placed")
		if n := q.Len("vendor-1"); n != 0 {
			t.Errorf("expected empty queue, got %d entries", n)
		}
	})

	t.Run("tokens are unique across vendors", func(t *testing.T) {
		q := NewVendorQueues()

		seen := make(map[string]bool)
		for i, vendor := range []string{"vendor-1", "vendor-2", "vendor-1", "vendor-2"} {
			_, token, err := q.Commit("order-"+vendor+"-"+string(rune('a'+i)), vendor, noon, time.Minute)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen[token] {
				t.Fatalf("token %s claimed twice", token)
			}
			seen[token] = true
		}
	})

	t.Run("rebuild restores entries and tokens", func(t *testing.T) {
		q := NewVendorQueues()

		q.Rebuild([]domain.Order{
			{ID: "order-1", VendorID: "vendor-1", Token: "#1111", PredictedPickupTime: noon.Add(5 * time.Minute)},
			{ID: "order-2", VendorID: "vendor-1", Token: "#2222", PredictedPickupTime: noon.Add(9 * time.Minute)},
			{ID: "order-3", VendorID: "vendor-2", Token: "#3333", PredictedPickupTime: noon.Add(2 * time.Minute)},
		})

		if n := q.Len("vendor-1"); n != 2 {
			t.Errorf("expected 2 entries for vendor-1, got %d", n)
		}
		if got := q.FreeTime("vendor-1", noon); !got.Equal(noon.Add(9 * time.Minute)) {
			t.Errorf("expected free time %v, got %v", noon.Add(9*time.Minute), got)
		}
		if id, ok := q.OrderIDByToken("#3333"); !ok || id != "order-3" {
			t.Errorf("expected token #3333 to resolve to order-3, got %q (%v)", id, ok)
		}
	})

	t.Run("token space exhaustion is deterministic", func(t *testing.T) {
		q := NewVendorQueues()

		// One vendor per claim keeps the free-time scan cheap; the token
		// space is global either way.
		for n := tokenMin; n <= tokenMax; n++ {
			if _, _, err := q.Commit("order-"+strconv.Itoa(n), "vendor-"+strconv.Itoa(n), noon, time.Minute); err != nil {
				t.Fatalf("claim %d failed unexpectedly: %v", n, err)
			}
		}

		_, _, err := q.Commit("one-too-many", "vendor-1", noon, time.Minute)
		if !errors.Is(err, ErrTokenSpaceExhausted) {
			t.Fatalf("expected ErrTokenSpaceExhausted, got %v", err)
		}
	})
}
