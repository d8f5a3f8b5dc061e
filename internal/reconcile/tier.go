package reconcile

import "fmt"

// Tier identifies the strategy that produced a match.
type Tier int

const (
	TierExactPath Tier = iota + 1
	TierNameAndSize
	TierNormalizedName
	TierFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierExactPath:
		return "exact_path"
	case TierNameAndSize:
		return "name_and_size"
	case TierNormalizedName:
		return "normalized_name"
	case TierFuzzy:
		return "fuzzy"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}
