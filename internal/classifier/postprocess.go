package classifier

// Recommendation tiers, ordered: adulteration dominates, then purity bands.
const (
	RecommendationAdulterated = "adulteration detected, not recommended"
	RecommendationHigh        = "high purity, safe for use"
	RecommendationModerate    = "moderate purity, verify source"
	RecommendationLow         = "low purity, further testing recommended"
)

// Ayurvedic rasa descriptors per herb. Labels not listed here map to
// "unknown".
var tasteProfiles = map[string][]string{
	"Tulsi":       {"pungent", "bitter"},
	"Ashwagandha": {"bitter", "astringent"},
	"Brahmi":      {"bitter", "sweet"},
	"Neem":        {"bitter"},
	"Turmeric":    {"bitter", "pungent"},
	"Amla":        {"sour", "astringent"},
	"Shatavari":   {"sweet", "bitter"},
	"Giloy":       {"bitter", "astringent"},
}

// TasteProfile returns the descriptor list for a herb label, with the
// adulteration markers appended when flagged.
func TasteProfile(herb string, adulterated bool) []string {
	base, ok := tasteProfiles[herb]
	if !ok {
		base = []string{"unknown"}
	}
	taste := make([]string, len(base), len(base)+2)
	copy(taste, base)
	if adulterated {
		taste = append(taste, "off-flavor", "chemical")
	}
	return taste
}

// Recommend applies the tier boundaries: adulterated first, then the 90 and
// 75 purity bands. Boundaries are inclusive, so a purity of exactly 90 is
// still the high tier.
func Recommend(adulterated bool, purity float64) string {
	switch {
	case adulterated:
		return RecommendationAdulterated
	case purity >= 90:
		return RecommendationHigh
	case purity >= 75:
		return RecommendationModerate
	default:
		return RecommendationLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
