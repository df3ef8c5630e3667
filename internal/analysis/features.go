package analysis

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"mqd/internal/models"
)

const longFormThreshold = 100

// Features is the fixed set of behavioral signals derived from an author's
// capped post window. Extraction is pure and deterministic; every ratio or
// mean over a degenerate input resolves to 0.
type Features struct {
	PostingFrequency      float64
	TimingConsistency     float64
	ContentSimilarity     float64
	GenericResponseRatio  float64
	BurstPosting          int
	LengthUniformity      float64
	ExternalResourceCount int
	OriginalContentRatio  float64
	EngagementRatio       float64
	TopicDiversity        int
	LongFormCount         int
	QuestionCount         int
	HelpfulAnswerCount    int
	AveragePostLength     float64
	TimeSpanFactor        float64
	PostingPattern        string
}

// Extract computes all features over a post window plus the author's
// cumulative engagement totals.
func Extract(posts []models.Post, totals models.EngagementTotals) Features {
	ordered := sortedAscending(posts)
	return Features{
		PostingFrequency:      postingFrequency(ordered),
		TimingConsistency:     timingConsistency(posts),
		ContentSimilarity:     contentSimilarity(posts),
		GenericResponseRatio:  genericResponseRatio(posts),
		BurstPosting:          burstPosting(ordered),
		LengthUniformity:      lengthUniformity(posts),
		ExternalResourceCount: externalResourceCount(posts),
		OriginalContentRatio:  originalContentRatio(posts),
		EngagementRatio:       engagementRatio(posts, totals),
		TopicDiversity:        topicDiversity(posts),
		LongFormCount:         longFormCount(posts),
		QuestionCount:         questionCount(posts),
		HelpfulAnswerCount:    helpfulAnswerCount(posts),
		AveragePostLength:     averagePostLength(posts),
		TimeSpanFactor:        timeSpanFactor(ordered),
		PostingPattern:        postingPattern(ordered),
	}
}

func sortedAscending(posts []models.Post) []models.Post {
	ordered := make([]models.Post, len(posts))
	copy(ordered, posts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	return ordered
}

// daysSpanned is the fractional number of days between the first and last
// post of an ascending window.
func daysSpanned(ordered []models.Post) float64 {
	if len(ordered) < 2 {
		return 0
	}
	span := ordered[len(ordered)-1].Timestamp.Sub(ordered[0].Timestamp)
	return span.Hours() / 24
}

// postingFrequency is posts per day, with the denominator floored to one day
// so a single post or a tight cluster still yields a bounded rate.
func postingFrequency(ordered []models.Post) float64 {
	if len(ordered) == 0 {
		return 0
	}
	days := daysSpanned(ordered)
	if days < 1 {
		days = 1
	}
	return float64(len(ordered)) / days
}

// timingConsistency is the share of posts landing in the author's most used
// UTC hour-of-day bucket. Needs at least 3 posts.
func timingConsistency(posts []models.Post) float64 {
	if len(posts) < 3 {
		return 0
	}
	var buckets [24]int
	for i := range posts {
		buckets[posts[i].Timestamp.UTC().Hour()]++
	}
	maxCount := 0
	for _, c := range buckets {
		if c > maxCount {
			maxCount = c
		}
	}
	return float64(maxCount) / float64(len(posts))
}

// contentSimilarity is the mean pairwise Jaccard similarity of the
// lower-cased word sets over all post pairs. Needs at least 2 posts.
func contentSimilarity(posts []models.Post) float64 {
	if len(posts) < 2 {
		return 0
	}
	sets := make([]map[string]struct{}, len(posts))
	for i := range posts {
		sets[i] = wordSet(posts[i].Content)
	}

	total := 0.0
	comparisons := 0
	for i := 0; i < len(sets)-1; i++ {
		for j := i + 1; j < len(sets); j++ {
			total += jaccard(sets[i], sets[j])
			comparisons++
		}
	}
	if comparisons == 0 {
		return 0
	}
	return total / float64(comparisons)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// genericResponseRatio is the share of posts that are nothing but a canned
// acknowledgment ("great!", "i agree", ...).
func genericResponseRatio(posts []models.Post) float64 {
	if len(posts) == 0 {
		return 0
	}
	generic := 0
	for i := range posts {
		if matchesAny(genericPatterns, strings.TrimSpace(posts[i].Content)) {
			generic++
		}
	}
	return float64(generic) / float64(len(posts))
}

// burstPosting is the maximum number of posts falling inside any 60-minute
// window anchored at a post's timestamp. Needs at least 3 posts.
func burstPosting(ordered []models.Post) int {
	if len(ordered) < 3 {
		return 0
	}
	maxBurst := 0
	for i := range ordered {
		count := 1
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].Timestamp.Sub(ordered[i].Timestamp) <= time.Hour {
				count++
			} else {
				break
			}
		}
		if count > maxBurst {
			maxBurst = count
		}
	}
	return maxBurst
}

// lengthUniformity is 1 - min(1, stddev/mean) over post lengths: values near
// 1 mean suspiciously uniform sizing. Needs at least 3 posts.
func lengthUniformity(posts []models.Post) float64 {
	if len(posts) < 3 {
		return 0
	}
	mean := averagePostLength(posts)
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for i := range posts {
		d := float64(posts[i].Length) - mean
		variance += d * d
	}
	variance /= float64(len(posts))
	return 1 - math.Min(1, math.Sqrt(variance)/mean)
}

// externalResourceCount counts every http(s) URL across all posts,
// duplicates included.
func externalResourceCount(posts []models.Post) int {
	count := 0
	for i := range posts {
		count += len(urlPattern.FindAllString(posts[i].Content, -1))
	}
	return count
}

// originalContentRatio is the share of posts carrying a quality marker or
// personal-experience phrasing. A post counts once however many patterns hit.
func originalContentRatio(posts []models.Post) float64 {
	if len(posts) == 0 {
		return 0
	}
	original := 0
	for i := range posts {
		if matchesAny(qualityPatterns, posts[i].Content) ||
			personalExperiencePattern.MatchString(posts[i].Content) {
			original++
		}
	}
	return float64(original) / float64(len(posts))
}

func engagementRatio(posts []models.Post, totals models.EngagementTotals) float64 {
	if len(posts) == 0 {
		return 0
	}
	return float64(totals.TotalComments) / float64(len(posts))
}

// topicDiversity counts distinct significant tokens (longer than 4 runes,
// stopwords excluded) across all posts. A lexical proxy, not topic modeling.
func topicDiversity(posts []models.Post) int {
	topics := make(map[string]struct{})
	for i := range posts {
		for _, w := range strings.Fields(strings.ToLower(posts[i].Content)) {
			if utf8.RuneCountInString(w) <= 4 {
				continue
			}
			if _, ok := stopwords[w]; ok {
				continue
			}
			topics[w] = struct{}{}
		}
	}
	return len(topics)
}

func longFormCount(posts []models.Post) int {
	count := 0
	for i := range posts {
		if posts[i].Length >= longFormThreshold {
			count++
		}
	}
	return count
}

func questionCount(posts []models.Post) int {
	count := 0
	for i := range posts {
		if strings.Contains(posts[i].Content, "?") {
			count++
		}
	}
	return count
}

// helpfulAnswerCount counts substantial posts (strictly over 100 chars) that
// also carry a quality marker.
func helpfulAnswerCount(posts []models.Post) int {
	count := 0
	for i := range posts {
		if posts[i].Length > longFormThreshold && matchesAny(qualityPatterns, posts[i].Content) {
			count++
		}
	}
	return count
}

func averagePostLength(posts []models.Post) float64 {
	if len(posts) == 0 {
		return 0
	}
	total := 0
	for i := range posts {
		total += posts[i].Length
	}
	return float64(total) / float64(len(posts))
}

// timeSpanFactor saturates at 30 days of history. Below 2 posts there is no
// span at all, which contributes the minimal 0.1 floor.
func timeSpanFactor(ordered []models.Post) float64 {
	if len(ordered) < 2 {
		return 0.1
	}
	return math.Min(1, daysSpanned(ordered)/30)
}

// postingPattern classifies the mean inter-post gap.
func postingPattern(ordered []models.Post) string {
	if len(ordered) < 2 {
		return "insufficient_data"
	}
	totalHours := 0.0
	for i := 1; i < len(ordered); i++ {
		totalHours += ordered[i].Timestamp.Sub(ordered[i-1].Timestamp).Hours()
	}
	avg := totalHours / float64(len(ordered)-1)
	switch {
	case avg < 1:
		return "very_frequent"
	case avg < 4:
		return "frequent"
	case avg < 24:
		return "regular"
	default:
		return "occasional"
	}
}
