package memory

import (
	"context"
	"log"
	"time"
)

// batchWallClock caps one batch sweep across all instances. Scheduled runs
// fire on a fixed cadence, so one slow sweep must not bleed into the next.
const batchWallClock = 5 * time.Minute

// Batch runs the periodic jobs (mining, consolidation, digest refresh) across
// every enabled instance, isolating per-instance failures.
type Batch struct {
	service      *Service
	miner        *Miner
	consolidator *Consolidator
}

// NewBatch creates a batch runner. The miner may be nil when no log source is
// configured, in which case MineAll is a no-op.
func NewBatch(service *Service, miner *Miner) *Batch {
	return &Batch{
		service:      service,
		miner:        miner,
		consolidator: NewConsolidator(service),
	}
}

// MineAll runs one mining pass over every enabled instance.
func (b *Batch) MineAll(ctx context.Context) {
	if b.miner == nil {
		return
	}
	b.forEachInstance(ctx, "miner", func(ctx context.Context, instanceID string) error {
		result, err := b.miner.Mine(ctx, instanceID)
		if err != nil {
			return err
		}
		if result.EventsExtracted > 0 || result.EntitiesFound > 0 {
			log.Printf("miner: mined %s: %d events, %d entities", instanceID, result.EventsExtracted, result.EntitiesFound)
		}
		return nil
	})
}

// ConsolidateAll runs one consolidation pass over every enabled instance.
func (b *Batch) ConsolidateAll(ctx context.Context) {
	b.forEachInstance(ctx, "consolidation", func(ctx context.Context, instanceID string) error {
		result, err := b.consolidator.Consolidate(ctx, instanceID)
		if err != nil {
			return err
		}
		if result.Consolidated > 0 || result.Expired > 0 {
			log.Printf("consolidation: %s: %d consolidated, %d profiles, %d expired",
				instanceID, result.Consolidated, result.EntitiesUpdated, result.Expired)
		}
		return nil
	})
}

// DigestAll rebuilds the cached digest for every enabled instance.
func (b *Batch) DigestAll(ctx context.Context) {
	b.forEachInstance(ctx, "digest", func(ctx context.Context, instanceID string) error {
		b.service.BuildDigest(ctx, instanceID)
		return nil
	})
}

// forEachInstance applies fn to every enabled instance under the batch wall
// clock. A failing instance is logged and skipped; a spent wall clock ends
// the sweep.
func (b *Batch) forEachInstance(ctx context.Context, component string, fn func(context.Context, string) error) {
	ctx, cancel := context.WithTimeout(ctx, batchWallClock)
	defer cancel()

	instanceIDs, err := b.service.store.ListInstanceIDs(ctx)
	if err != nil {
		log.Printf("%s: could not list instances: %v", component, err)
		return
	}

	for _, instanceID := range instanceIDs {
		if ctx.Err() != nil {
			log.Printf("%s: wall clock spent, %s and later skipped", component, instanceID)
			return
		}
		if err := fn(ctx, instanceID); err != nil {
			log.Printf("%s: pass failed for %s: %v", component, instanceID, err)
		}
	}
}
