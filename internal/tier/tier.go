// Package tier maps subscription tiers to retention and quota limits.
//
// The tier table ships as data (tiers.yaml, embedded at build time), not as
// code branches: adding a tier is a table edit. All functions are pure.
package tier

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/nexus/pkg/types"
)

//go:embed tiers.yaml
var tiersYAML []byte

var tierTable map[types.Tier]types.TierLimits

func init() {
	if err := yaml.Unmarshal(tiersYAML, &tierTable); err != nil {
		panic(fmt.Sprintf("tier: invalid embedded tier table: %v", err))
	}
}

// Limits returns the quota values for the given tier. Unknown tiers fall
// back to the STANDARD limits so a corrupted config row never grants
// unlimited retention.
func Limits(t types.Tier) types.TierLimits {
	if limits, ok := tierTable[t]; ok {
		return limits
	}
	return tierTable[types.TierStandard]
}

// ExpiryFrom computes the expiry timestamp for an event created at the given
// time under the given tier. It returns nil for tiers without a retention
// window. The result is fixed at write time and never recomputed.
func ExpiryFrom(t types.Tier, now time.Time) *time.Time {
	limits := Limits(t)
	if limits.RetentionDays == nil {
		return nil
	}
	expires := now.AddDate(0, 0, *limits.RetentionDays)
	return &expires
}
