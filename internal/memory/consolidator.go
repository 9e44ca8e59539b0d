package memory

import (
	"context"
	"log"
	"sort"

	"github.com/openclaw/nexus/pkg/types"
)

const (
	// consolidationAgeDays is how old an event must be before it is eligible
	// for consolidation into a sender profile.
	consolidationAgeDays = 7

	// minBucketSize is the minimum number of events from one sender worth
	// distilling into a profile.
	minBucketSize = 3

	// unknownSender buckets events that carry no sender attribution. They are
	// marked consolidated without profiling.
	unknownSender = "__unknown__"
)

// ConsolidateResult summarizes one consolidation pass over one instance.
type ConsolidateResult struct {
	Consolidated    int
	EntitiesUpdated int
	Expired         int
}

// Consolidator distills aged episodic events into durable sender profiles and
// reclaims expired rows.
type Consolidator struct {
	service *Service
}

// NewConsolidator creates a consolidation job on top of the memory service.
func NewConsolidator(service *Service) *Consolidator {
	return &Consolidator{service: service}
}

// Consolidate runs one consolidation pass for one instance: purge expired
// events, bucket unconsolidated events by sender, distill each large enough
// bucket into a profile, and mark every processed event consolidated.
// Events are marked consolidated even when profiling fails, so a broken
// extraction service cannot make the same batch grow without bound.
func (c *Consolidator) Consolidate(ctx context.Context, instanceID string) (ConsolidateResult, error) {
	var result ConsolidateResult

	expired, err := c.service.store.PurgeExpired(ctx)
	if err != nil {
		return result, err
	}
	result.Expired = expired

	events, err := c.service.store.ListUnconsolidatedEvents(ctx, instanceID, consolidationAgeDays)
	if err != nil {
		return result, err
	}
	if len(events) == 0 {
		return result, nil
	}

	buckets := make(map[string][]types.MemoryEvent)
	for _, ev := range events {
		sender := ev.SenderID
		if sender == "" {
			sender = unknownSender
		}
		buckets[sender] = append(buckets[sender], ev)
	}

	senders := make([]string, 0, len(buckets))
	for sender := range buckets {
		senders = append(senders, sender)
	}
	sort.Strings(senders)

	for _, sender := range senders {
		bucket := buckets[sender]
		if len(bucket) < minBucketSize {
			continue
		}

		if sender != unknownSender && c.service.extractor != nil {
			if c.profileSender(ctx, instanceID, sender, bucket) {
				result.EntitiesUpdated++
			}
		}

		ids := make([]string, len(bucket))
		for i, ev := range bucket {
			ids[i] = ev.ID
		}
		if err := c.service.store.MarkConsolidated(ctx, ids); err != nil {
			return result, err
		}
		result.Consolidated += len(bucket)
	}

	if err := c.service.store.TouchLastConsolidated(ctx, instanceID); err != nil {
		log.Printf("consolidation: failed to stamp last consolidated for %s: %v", instanceID, err)
	}

	return result, nil
}

// profileSender distills one sender's event bucket into an entity profile and
// upserts it. Returns true when an entity was written.
func (c *Consolidator) profileSender(ctx context.Context, instanceID, sender string, bucket []types.MemoryEvent) bool {
	profile, err := c.service.extractor.ConsolidateProfile(ctx, sender, bucket)
	if err != nil {
		log.Printf("consolidation: profiling failed for sender %s on %s: %v", sender, instanceID, err)
		return false
	}
	if profile == nil || profile.Name == "" {
		return false
	}

	aliases := make([]string, 0, len(profile.Aliases)+1)
	for _, a := range append([]string{sender}, profile.Aliases...) {
		if a != "" {
			aliases = append(aliases, a)
		}
	}

	_, err = c.service.ObserveEntity(ctx, types.EntityCreate{
		InstanceID: instanceID,
		Type:       profile.Type,
		Name:       profile.Name,
		Aliases:    aliases,
		Summary:    profile.Summary,
		Metadata:   profile.Metadata,
	})
	if err != nil {
		log.Printf("consolidation: failed to upsert profile %q on %s: %v", profile.Name, instanceID, err)
		return false
	}
	return true
}
