package billing

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/facturly/facturly/internal/pkg/cache"
	"github.com/redis/go-redis/v9"
)

// dedupeTTL covers Stripe's maximum redelivery window with margin.
const dedupeTTL = 72 * time.Hour

// EventDeduper is a best-effort Redis fast path in front of the ledger's
// conditional insert, which stays the source of truth. A cache miss or an
// unreachable Redis only costs one extra datastore round trip.
type EventDeduper struct{}

func NewEventDeduper() *EventDeduper {
	return &EventDeduper{}
}

func (d *EventDeduper) Seen(ctx context.Context, eventID string) bool {
	_ = ctx
	_, err := cache.Get(dedupeKey(eventID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("billing: webhook dedupe cache read failed: %v", err)
		}
		return false
	}
	return true
}

func (d *EventDeduper) MarkSeen(ctx context.Context, eventID string) {
	_ = ctx
	if err := cache.Set(dedupeKey(eventID), "1", dedupeTTL); err != nil {
		log.Printf("billing: webhook dedupe cache write failed: %v", err)
	}
}

func dedupeKey(eventID string) string {
	return "billing:webhook:" + eventID
}
