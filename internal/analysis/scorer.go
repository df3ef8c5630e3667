package analysis

import (
	"math"

	"mqd/internal/models"
)

// Categories derived from the final netted score.
const (
	CategoryHigh       = "high"
	CategoryModerate   = "moderate"
	CategorySuspicious = "suspicious"
	CategoryUnknown    = "unknown"
)

// Diagnostic flags. Any subset may co-occur on one assessment.
const (
	FlagInsufficientData   = "insufficient_data"
	FlagHighAutomationRisk = "high_automation_risk"
	FlagLowQualityContent  = "low_quality_content"
	FlagLimitedData        = "limited_data"
	FlagGenericResponses   = "generic_responses"
	FlagBurstPosting       = "burst_posting"
	FlagRepetitiveContent  = "repetitive_content"
)

// Category boundaries, inclusive on the lower bound of each band.
const (
	scoreHigh       = 75
	scoreModerate   = 50
	scoreSuspicious = 25
)

type indicator struct {
	threshold float64
	weight    float64
}

// Automation indicators: weights are negative magnitudes, the summed penalty
// is taken in absolute value.
var (
	indHighFrequency     = indicator{threshold: 10, weight: -25} // posts per day
	indRapidResponse     = indicator{threshold: 30, weight: -15} // seconds
	indConsistentTiming  = indicator{threshold: 0.8, weight: -20}
	indContentSimilarity = indicator{threshold: 0.7, weight: -30}
	indGenericResponses  = indicator{threshold: 0.6, weight: -15}
	indShortBurstPosting = indicator{threshold: 5, weight: -20}
	indUniformLength     = indicator{threshold: 0.9, weight: -10}
)

// Quality indicators.
var (
	indExternalResources   = indicator{threshold: 1, weight: 15}
	indHelpfulAnswers      = indicator{threshold: 1, weight: 20}
	indOriginalContent     = indicator{threshold: 0.3, weight: 25}
	indCommunityEngagement = indicator{threshold: 0.4, weight: 15}
	indTopicDiversity      = indicator{threshold: 3, weight: 10}
	indLongFormContent     = indicator{threshold: 100, weight: 12} // threshold is the length cutoff
	indQuestionAsking      = indicator{threshold: 1, weight: 8}
)

// averageResponseTimeSeconds stands in for reply latency: the observation
// pipeline carries no reply data, so the rapidResponse indicator runs off
// this constant and never crosses its threshold.
const averageResponseTimeSeconds = 60

// Assessment is the scorer's output: a bounded score, a confidence estimate,
// a coarse category, and explanatory detail.
type Assessment struct {
	QualityScore    int      `json:"qualityScore"`
	ConfidenceLevel int      `json:"confidenceLevel"`
	Category        string   `json:"category"`
	Flags           []string `json:"flags"`
	Summary         string   `json:"summary"`
	Details         Details  `json:"details"`
}

// Details is explanatory, not authoritative.
type Details struct {
	AutomationScore   int     `json:"automationScore"`
	QualityScoreRaw   int     `json:"qualityScoreRaw"`
	PostCount         int     `json:"postCount"`
	AvgPostLength     int     `json:"avgPostLength"`
	EngagementRatio   float64 `json:"engagementRatio"`
	PostingPattern    string  `json:"postingPattern"`
	ContentSimilarity float64 `json:"contentSimilarity"`
}

// Assess scores one author record. It is a total, pure function: any record,
// including nil or one below the minimum sample, yields a valid Assessment.
// minPosts <= 0 falls back to the default gate of 5.
func Assess(rec *models.AuthorRecord, minPosts int) Assessment {
	if minPosts <= 0 {
		minPosts = models.DefaultMinPostsForAnalysis
	}

	postCount := 0
	if rec != nil {
		postCount = len(rec.Posts)
	}
	if postCount < minPosts {
		a := Assessment{
			Category: CategoryUnknown,
			Flags:    []string{FlagInsufficientData},
			Details:  Details{PostCount: postCount, PostingPattern: "insufficient_data"},
		}
		a.Summary = summarize(a)
		return a
	}

	f := Extract(rec.Posts, rec.Engagement)
	automation := automationScore(f)
	quality := qualityScore(f)

	final := math.Round(math.Max(0, math.Min(100, quality-automation)))
	confidence := math.Round(confidenceLevel(f, postCount, rec.Engagement) * 100)

	a := Assessment{
		QualityScore:    int(final),
		ConfidenceLevel: int(confidence),
		Category:        categorize(final),
		Flags:           flags(f, automation, quality, postCount),
		Details: Details{
			AutomationScore:   int(math.Round(automation)),
			QualityScoreRaw:   int(math.Round(quality)),
			PostCount:         postCount,
			AvgPostLength:     int(math.Round(f.AveragePostLength)),
			EngagementRatio:   f.EngagementRatio,
			PostingPattern:    f.PostingPattern,
			ContentSimilarity: f.ContentSimilarity,
		},
	}
	a.Summary = summarize(a)
	return a
}

// automationScore sums every automation indicator whose feature value meets
// its threshold, scaled per indicator, and returns the absolute penalty.
func automationScore(f Features) float64 {
	var score float64

	if f.PostingFrequency >= indHighFrequency.threshold {
		score += indHighFrequency.weight * (f.PostingFrequency / indHighFrequency.threshold)
	}
	if averageResponseTimeSeconds <= indRapidResponse.threshold {
		score += indRapidResponse.weight
	}
	if f.TimingConsistency >= indConsistentTiming.threshold {
		score += indConsistentTiming.weight * f.TimingConsistency
	}
	if f.ContentSimilarity >= indContentSimilarity.threshold {
		score += indContentSimilarity.weight * f.ContentSimilarity
	}
	if f.GenericResponseRatio >= indGenericResponses.threshold {
		score += indGenericResponses.weight * f.GenericResponseRatio
	}
	if float64(f.BurstPosting) >= indShortBurstPosting.threshold {
		score += indShortBurstPosting.weight
	}
	if f.LengthUniformity >= indUniformLength.threshold {
		score += indUniformLength.weight * f.LengthUniformity
	}

	return math.Abs(score)
}

// qualityScore sums every quality indicator meeting its threshold, with the
// per-indicator multiplier caps.
func qualityScore(f Features) float64 {
	var score float64

	if float64(f.ExternalResourceCount) >= indExternalResources.threshold {
		score += indExternalResources.weight * math.Min(3, float64(f.ExternalResourceCount))
	}
	if float64(f.HelpfulAnswerCount) >= indHelpfulAnswers.threshold {
		score += indHelpfulAnswers.weight * math.Min(5, float64(f.HelpfulAnswerCount))
	}
	if f.OriginalContentRatio >= indOriginalContent.threshold {
		score += indOriginalContent.weight * f.OriginalContentRatio
	}
	if f.EngagementRatio >= indCommunityEngagement.threshold {
		score += indCommunityEngagement.weight * math.Min(2, f.EngagementRatio)
	}
	if float64(f.TopicDiversity) >= indTopicDiversity.threshold {
		score += indTopicDiversity.weight * math.Min(2, float64(f.TopicDiversity)/indTopicDiversity.threshold)
	}
	if f.LongFormCount >= 1 {
		score += indLongFormContent.weight * math.Min(3, float64(f.LongFormCount))
	}
	if float64(f.QuestionCount) >= indQuestionAsking.threshold {
		score += indQuestionAsking.weight * math.Min(3, float64(f.QuestionCount))
	}

	return score
}

// confidenceLevel estimates how much evidence backs the score, in [0,1].
func confidenceLevel(f Features, postCount int, totals models.EngagementTotals) float64 {
	confidence := math.Min(1, float64(postCount)/20) * 0.4
	confidence += f.TimeSpanFactor * 0.3

	engagementFactor := 0.5
	if totals.TotalComments > 0 {
		engagementFactor = 1
	}
	confidence += engagementFactor * 0.2

	confidence += math.Min(1, float64(f.TopicDiversity)/5) * 0.1
	return math.Min(1, confidence)
}

func categorize(score float64) string {
	switch {
	case score >= scoreHigh:
		return CategoryHigh
	case score >= scoreModerate:
		return CategoryModerate
	case score >= scoreSuspicious:
		return CategorySuspicious
	default:
		return CategoryUnknown
	}
}

func flags(f Features, automation, quality float64, postCount int) []string {
	out := []string{}
	if automation > 50 {
		out = append(out, FlagHighAutomationRisk)
	}
	if quality < 20 {
		out = append(out, FlagLowQualityContent)
	}
	if postCount < models.DefaultMinPostsForAnalysis {
		out = append(out, FlagLimitedData)
	}
	if f.GenericResponseRatio > 0.7 {
		out = append(out, FlagGenericResponses)
	}
	if f.BurstPosting >= 5 {
		out = append(out, FlagBurstPosting)
	}
	if f.ContentSimilarity > 0.8 {
		out = append(out, FlagRepetitiveContent)
	}
	return out
}

// summarize renders the one-line human readable verdict.
func summarize(a Assessment) string {
	var summary string
	switch a.Category {
	case CategoryHigh:
		summary = "High-quality contributor with genuine engagement"
	case CategoryModerate:
		summary = "Moderate quality with mixed indicators"
	case CategorySuspicious:
		summary = "Shows potential automation patterns"
	default:
		summary = "Insufficient data for reliable analysis"
	}
	if a.ConfidenceLevel < 50 {
		summary += " (Low confidence due to limited data)"
	}
	return summary
}
