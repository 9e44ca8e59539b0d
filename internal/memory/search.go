package memory

import (
	"context"
	"log"
	"sync"

	"github.com/openclaw/nexus/pkg/types"
)

const (
	searchEventLimit    = 10
	searchEntityLimit   = 5
	searchDecisionLimit = 5
	searchChunkLimit    = 5
)

// SearchOptions selects which memory sources a search fans out to. The zero
// value searches everything.
type SearchOptions struct {
	SkipEvents    bool
	SkipEntities  bool
	SkipDecisions bool
	SkipDocuments bool
}

// SearchResult is the merged outcome of one hybrid search across all memory
// sources. Each slice is independently ranked; empty slices mean either the
// source was skipped, unavailable, or had no matches.
type SearchResult struct {
	Events    []types.EventSearchResult `json:"events"`
	Entities  []types.Entity            `json:"entities"`
	Decisions []types.Decision          `json:"decisions"`
	Documents []types.DocumentChunk     `json:"documents"`
}

// Search runs a hybrid retrieval across events, entities, decisions, and
// document chunks, fanning out concurrently. The query is embedded once; when
// no embedding is available, events and documents degrade to lexical search
// while entities and decisions return empty. Individual source failures are
// logged and surface as empty slices rather than failing the whole search.
func (s *Service) Search(ctx context.Context, instanceID, query string, opts SearchOptions) (*SearchResult, error) {
	result := &SearchResult{}
	if query == "" {
		return result, nil
	}

	embedding := s.embedQuery(ctx, query)

	var wg sync.WaitGroup

	if !opts.SkipEvents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if embedding != nil {
				result.Events, err = s.store.SearchEventsByVector(ctx, instanceID, embedding, searchEventLimit)
			} else {
				result.Events, err = s.store.SearchEventsByText(ctx, instanceID, query, searchEventLimit)
			}
			if err != nil {
				log.Printf("memory: event search failed for %s: %v", instanceID, err)
				result.Events = nil
			}
		}()
	}

	if !opts.SkipEntities && embedding != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entities, err := s.store.SearchEntitiesByVector(ctx, instanceID, embedding, searchEntityLimit)
			if err != nil {
				log.Printf("memory: entity search failed for %s: %v", instanceID, err)
				return
			}
			result.Entities = entities
		}()
	}

	if !opts.SkipDecisions && embedding != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decisions, err := s.store.SearchDecisionsByVector(ctx, instanceID, embedding, searchDecisionLimit)
			if err != nil {
				log.Printf("memory: decision search failed for %s: %v", instanceID, err)
				return
			}
			result.Decisions = decisions
		}()
	}

	if !opts.SkipDocuments && s.docs != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if embedding != nil {
				result.Documents, err = s.docs.SearchChunksByVector(ctx, instanceID, embedding, searchChunkLimit)
			} else {
				result.Documents, err = s.docs.SearchChunksByText(ctx, instanceID, query, searchChunkLimit)
			}
			if err != nil {
				log.Printf("memory: document search failed for %s: %v", instanceID, err)
				result.Documents = nil
			}
		}()
	}

	wg.Wait()
	return result, nil
}
