package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openclaw/nexus/pkg/types"
)

const (
	// docContentBudget caps the total characters of document content inlined
	// into one digest. The budget is spent newest document first.
	docContentBudget = 12000

	digestEntityLimit   = 8
	digestDecisionLimit = 5
)

// BuildDigest assembles the memory digest injected into an agent's system
// prompt: top entities, recent decisions, inlined knowledge-base content, an
// interaction counter, and the decision-logging instruction when the instance
// can make outbound calls. The digest is cached on the instance config.
//
// Digest building never fails the caller: any error produces an empty digest
// and a log line, since a prompt without memory beats no prompt at all.
func (s *Service) BuildDigest(ctx context.Context, instanceID string) string {
	digest, err := s.buildDigest(ctx, instanceID)
	if err != nil {
		log.Printf("digest: build failed for %s: %v", instanceID, err)
		return ""
	}
	return digest
}

func (s *Service) buildDigest(ctx context.Context, instanceID string) (string, error) {
	config, err := s.store.GetOrCreateConfig(ctx, instanceID)
	if err != nil {
		return "", err
	}

	entities, err := s.store.ListTopEntities(ctx, instanceID, 10)
	if err != nil {
		return "", err
	}
	decisions, err := s.store.ListDecisions(ctx, instanceID, digestDecisionLimit, 0)
	if err != nil {
		return "", err
	}
	totalEvents, err := s.store.CountEvents(ctx, instanceID, nil)
	if err != nil {
		return "", err
	}

	var readyDocs []types.DocumentContent
	var allDocs []types.DocumentInfo
	if s.docs != nil {
		if readyDocs, err = s.docs.ListDocumentsWithContent(ctx, instanceID); err != nil {
			return "", err
		}
		if allDocs, err = s.docs.ListDocuments(ctx, instanceID); err != nil {
			return "", err
		}
	}

	if len(entities) == 0 && len(decisions) == 0 && len(allDocs) == 0 {
		return "", nil
	}

	lines := []string{"[NEXUS MEMORY]"}

	if len(entities) > 0 {
		lines = append(lines, fmt.Sprintf("\nKNOWN CONTACTS & ENTITIES (%d):", len(entities)))
		for i, e := range entities {
			if i >= digestEntityLimit {
				break
			}
			lines = append(lines, entityLine(e, time.Now()))
		}
	}

	if len(decisions) > 0 {
		lines = append(lines, "\nRECENT DECISIONS:")
		for _, d := range decisions {
			lines = append(lines, decisionLine(d))
		}
	}

	if len(readyDocs) > 0 {
		lines = append(lines, fmt.Sprintf("\nKNOWLEDGE BASE (%d docs):", len(allDocs)))

		ready := make(map[string]bool, len(readyDocs))
		for _, doc := range readyDocs {
			ready[doc.ID] = true
		}

		budget := docContentBudget
		for _, doc := range readyDocs {
			if budget <= 0 {
				break
			}
			if strings.TrimSpace(doc.Content) == "" {
				lines = append(lines, fmt.Sprintf("\n--- %s (empty) ---", doc.Filename))
				continue
			}
			snippet := doc.Content
			if len(snippet) > budget {
				snippet = snippet[:budget]
			}
			lines = append(lines, fmt.Sprintf("\n--- %s ---", doc.Filename), snippet)
			if len(doc.Content) > budget {
				lines = append(lines, fmt.Sprintf("[...truncated, %d chars remaining]", len(doc.Content)-budget))
			}
			budget -= len(snippet)
		}

		var pending []string
		for _, d := range allDocs {
			if d.Status != types.DocumentReady || !ready[d.ID] {
				pending = append(pending, d.Filename)
			}
		}
		if len(pending) > 0 {
			lines = append(lines, "\nIndexing: "+strings.Join(pending, ", "))
		}
	}

	if totalEvents > 0 {
		lines = append(lines, fmt.Sprintf("\nMEMORY: %d total interactions stored.", totalEvents))
	}

	if s.outboundEnabled(ctx, instanceID) && config.APIKey != "" {
		lines = append(lines,
			"\nDECISION LOGGING:",
			"When you make a notable recommendation or decision (e.g. suggest a specific movie, actor, product, or course of action), silently log it AFTER sending your reply by making this HTTP call:",
			fmt.Sprintf("POST %s/api/memory/%s/decisions", s.appURL, instanceID),
			fmt.Sprintf("Headers: Authorization: Bearer %s | Content-Type: application/json", config.APIKey),
			`Body: {"decision":"<one sentence>","reasoning":["<why 1>","<why 2>"],"confidence":0.8,"channel":"<channel name>","senderId":"<user id>"}`,
			"Only log meaningful decisions — skip greetings and casual replies.",
		)
	}

	lines = append(lines, "[/NEXUS MEMORY]")

	digest := strings.Join(lines, "\n")

	if err := s.store.SaveDigest(ctx, instanceID, digest); err != nil {
		return "", err
	}
	return digest, nil
}

func (s *Service) outboundEnabled(ctx context.Context, instanceID string) bool {
	if s.caps == nil {
		return false
	}
	enabled, err := s.caps.OutboundNetworkEnabled(ctx, instanceID)
	if err != nil {
		log.Printf("digest: capability lookup failed for %s: %v", instanceID, err)
		return false
	}
	return enabled
}

// entityLine renders one entity row of the digest, with the summary clipped
// to 120 characters and a relative last-seen marker in whole days.
func entityLine(e types.Entity, now time.Time) string {
	summary := e.Summary
	if len(summary) > 120 {
		summary = summary[:120]
	}
	lastSeen := ""
	if e.LastSeen != nil {
		days := int(now.Sub(*e.LastSeen).Hours() / 24)
		lastSeen = fmt.Sprintf("Last seen %dd ago.", days)
	}
	sep := ""
	if summary != "" {
		sep = " "
	}
	return fmt.Sprintf("• %s (%s) — %s%s%s", e.Name, e.Type, summary, sep, lastSeen)
}

// decisionLine renders one decision row: date, the decision clipped to 140
// characters, and the first reasoning step clipped to 80.
func decisionLine(d types.Decision) string {
	decision := d.Decision
	if len(decision) > 140 {
		decision = decision[:140]
	}
	line := fmt.Sprintf("• %s: %s", d.CreatedAt.UTC().Format("2006-01-02"), decision)
	if len(d.Reasoning) > 0 && d.Reasoning[0] != "" {
		reason := d.Reasoning[0]
		if len(reason) > 80 {
			reason = reason[:80]
		}
		line += ` — "` + reason + `"`
	}
	return line
}
