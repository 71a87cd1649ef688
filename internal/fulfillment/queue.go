package fulfillment

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/campuseats/canteen/internal/domain"
)

// ErrTokenSpaceExhausted means every 4-digit token is claimed by an active
// order. The placement fails; the caller may retry once orders complete.
var ErrTokenSpaceExhausted = errors.New("no free pickup tokens")

type queueEntry struct {
	orderID   string
	token     string
	predicted time.Time
}

// vendorQueue is the active-order set for one vendor. Its mutex is the
// per-vendor critical section from the concurrency contract: the pair
// (free-time read, insert) must be linearizable per vendor, and holding one
// vendor's lock must not block placements at other vendors.
type vendorQueue struct {
	mu      sync.Mutex
	entries map[string]queueEntry
}

// VendorQueues indexes each vendor's active orders in memory. It is derived
// state: the persistent store remains the source of truth and the index is
// rebuilt from it at startup. Tokens are claimed globally because support
// lookup resolves a token without knowing the vendor.
//
// Lock order is mu -> vendorQueue.mu -> tokenMu; no path takes them in any
// other order.
type VendorQueues struct {
	mu      sync.Mutex
	vendors map[string]*vendorQueue

	tokenMu sync.Mutex
	tokens  map[string]string // token -> order id, active orders only
}

func NewVendorQueues() *VendorQueues {
	return &VendorQueues{
		vendors: make(map[string]*vendorQueue),
		tokens:  make(map[string]string),
	}
}

func (q *VendorQueues) vendor(vendorID string) *vendorQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	vq, ok := q.vendors[vendorID]
	if !ok {
		vq = &vendorQueue{entries: make(map[string]queueEntry)}
		q.vendors[vendorID] = vq
	}
	return vq
}

// freeTimeLocked returns the instant the vendor's kitchen is modeled as
// free: now when the queue is empty, otherwise the latest predicted pickup
// time among active orders. The maximum, not the soonest finisher, models a
// single-cook FIFO line and never under-promises.
func (vq *vendorQueue) freeTimeLocked(now time.Time) time.Time {
	free := now
	for _, e := range vq.entries {
		if e.predicted.After(free) {
			free = e.predicted
		}
	}
	return free
}

// FreeTime answers "when does this vendor's kitchen become free?" for
// callers outside a placement, e.g. a non-binding wait estimate.
func (q *VendorQueues) FreeTime(vendorID string, now time.Time) time.Time {
	vq := q.vendor(vendorID)
	vq.mu.Lock()
	defer vq.mu.Unlock()
	return vq.freeTimeLocked(now)
}

// Commit reserves a queue slot for a new order: it reads the vendor's free
// time, predicts the pickup time, claims a collision-free token and inserts
// the entry, all under the vendor's lock. Two concurrent placements for the
// same vendor therefore never compute their ETA from the same stale free
// time. The caller must Remove the entry if the subsequent persistence
// write fails.
func (q *VendorQueues) Commit(orderID, vendorID string, now time.Time, prep time.Duration) (time.Time, string, error) {
	vq := q.vendor(vendorID)
	vq.mu.Lock()
	defer vq.mu.Unlock()

	predicted := vq.freeTimeLocked(now).Add(prep)

	token, err := q.claimToken(orderID)
	if err != nil {
		return time.Time{}, "", err
	}

	vq.entries[orderID] = queueEntry{orderID: orderID, token: token, predicted: predicted}
	return predicted, token, nil
}

// Remove drops an order from the active set and releases its token. It is
// called when an order turns terminal, and to roll back a Commit whose
// persistence write failed. Removing an unknown order is a no-op.
func (q *VendorQueues) Remove(vendorID, orderID string) {
	vq := q.vendor(vendorID)

	vq.mu.Lock()
	entry, ok := vq.entries[orderID]
	if ok {
		delete(vq.entries, orderID)
	}
	vq.mu.Unlock()

	if !ok {
		return
	}

	q.tokenMu.Lock()
	if q.tokens[entry.token] == orderID {
		delete(q.tokens, entry.token)
	}
	q.tokenMu.Unlock()
}

// OrderIDByToken resolves a token against the active set only. Tokens of
// completed or cancelled orders are recycled, so history is out of reach
// here by design.
func (q *VendorQueues) OrderIDByToken(token string) (string, bool) {
	q.tokenMu.Lock()
	defer q.tokenMu.Unlock()
	id, ok := q.tokens[token]
	return id, ok
}

// Len reports the number of active orders queued for a vendor.
func (q *VendorQueues) Len(vendorID string) int {
	vq := q.vendor(vendorID)
	vq.mu.Lock()
	defer vq.mu.Unlock()
	return len(vq.entries)
}

// Rebuild replaces the index with the given active orders, typically read
// from the persistent store at startup.
func (q *VendorQueues) Rebuild(active []domain.Order) {
	q.mu.Lock()
	q.vendors = make(map[string]*vendorQueue)
	q.mu.Unlock()

	q.tokenMu.Lock()
	q.tokens = make(map[string]string)
	q.tokenMu.Unlock()

	for _, o := range active {
		vq := q.vendor(o.VendorID)
		vq.mu.Lock()
		vq.entries[o.ID] = queueEntry{orderID: o.ID, token: o.Token, predicted: o.PredictedPickupTime}
		vq.mu.Unlock()

		q.tokenMu.Lock()
		q.tokens[o.Token] = o.ID
		q.tokenMu.Unlock()
	}
}

// claimToken draws random tokens until one is unclaimed, then falls back to
// a linear scan so exhaustion is detected deterministically rather than by
// spinning.
func (q *VendorQueues) claimToken(orderID string) (string, error) {
	q.tokenMu.Lock()
	defer q.tokenMu.Unlock()

	const randomAttempts = 32
	for range randomAttempts {
		t := randomToken()
		if _, taken := q.tokens[t]; !taken {
			q.tokens[t] = orderID
			return t, nil
		}
	}

	for n := tokenMin; n <= tokenMax; n++ {
		t := "#" + strconv.Itoa(n)
		if _, taken := q.tokens[t]; !taken {
			q.tokens[t] = orderID
			return t, nil
		}
	}
	return "", ErrTokenSpaceExhausted
}
