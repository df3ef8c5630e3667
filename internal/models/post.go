package models

import (
	"fmt"
	"hash/fnv"
	"time"
	"unicode/utf8"

	"github.com/gookit/validate"
)

// Engagement holds the counters observed for a single post.
type Engagement struct {
	Likes    int `json:"likes" validate:"min:0"`
	Comments int `json:"comments" validate:"min:0"`
	Shares   int `json:"shares" validate:"min:0"`
}

// EngagementTotals accumulates engagement across every post ever observed
// for an author. Totals never decrease, even after posts leave the capped
// history window.
type EngagementTotals struct {
	TotalLikes    int `json:"totalLikes"`
	TotalComments int `json:"totalComments"`
	TotalShares   int `json:"totalShares"`
}

// Post is one observed content item.
type Post struct {
	ID         string     `json:"id" validate:"required"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	Length     int        `json:"length"`
	HasLinks   bool       `json:"hasLinks"`
	HasImages  bool       `json:"hasImages"`
	Engagement Engagement `json:"engagement"`
}

// Observation is the intake payload: one author identity plus one newly
// observed post. Community is optional and defaults at the API boundary.
type Observation struct {
	Community string `json:"community"`
	UserID    string `json:"userId" validate:"required"`
	Username  string `json:"username" validate:"required"`
	Post      Post   `json:"post"`
}

// ValidationError is a typed rejection for malformed observations.
// No partial state is written when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid observation: %s %s", e.Field, e.Reason)
}

// Validate checks the observation and normalizes the embedded post:
// Length is always recomputed from Content and a zero timestamp falls
// back to the observation time supplied by the caller.
func (o *Observation) Validate(observedAt time.Time) error {
	v := validate.Struct(o)
	if !v.Validate() {
		return &ValidationError{Field: "observation", Reason: v.Errors.One()}
	}
	if o.Post.ID == "" {
		return &ValidationError{Field: "post.id", Reason: "is required"}
	}
	if o.Post.Engagement.Likes < 0 || o.Post.Engagement.Comments < 0 || o.Post.Engagement.Shares < 0 {
		return &ValidationError{Field: "post.engagement", Reason: "counters must be non-negative"}
	}
	o.Post.Length = utf8.RuneCountInString(o.Post.Content)
	if o.Post.Timestamp.IsZero() {
		o.Post.Timestamp = observedAt
	}
	return nil
}

// HashPostID maps a post ID onto the 32-bit space tracked by the
// seen-post bitmap. FNV-1a, same derivation the page observer uses for
// hash-based IDs.
func HashPostID(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}
