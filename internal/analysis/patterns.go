package analysis

import "regexp"

// Pattern tables for content classification. These are fixed heuristics, not
// tunable configuration.
var (
	genericPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(great|nice|awesome|cool|thanks?)\s*!*$`),
		regexp.MustCompile(`(?i)^(this|that)\s+is\s+(good|great|nice|cool)$`),
		regexp.MustCompile(`(?i)^i\s+agree$`),
		regexp.MustCompile(`(?i)^exactly$`),
		regexp.MustCompile(`(?i)^(yes|yeah|yep)\s*!*$`),
	}

	// Markers of constructive content: questions, explanations, personal
	// insight, nuance, guidance.
	qualityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\?`),
		regexp.MustCompile(`(?i)because|since|due to|as a result`),
		regexp.MustCompile(`(?i)in my experience|i found|i discovered`),
		regexp.MustCompile(`(?i)however|although|despite|nevertheless`),
		regexp.MustCompile(`(?i)here's how|here's what|let me explain`),
	}

	personalExperiencePattern = regexp.MustCompile(`(?i)in my|i found|i discovered|my experience|i learned`)

	urlPattern = regexp.MustCompile(`https?://\S+`)
)

// stopwords excluded from the topic-diversity token count.
var stopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {},
	"they": {}, "have": {}, "been": {}, "were": {}, "said": {},
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
