package models

import (
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// AuthorRecord is the accumulated view of one author: a recency-capped post
// window plus cumulative engagement totals. The seen bitmap tracks hashed IDs
// of every post ever merged, so re-observing a post that already fell out of
// the capped window does not re-enter history or double-count engagement.
type AuthorRecord struct {
	UserID     string
	Username   string
	Posts      []Post
	Engagement EngagementTotals
	FirstSeen  time.Time
	LastSeen   time.Time

	seen *roaring.Bitmap
}

func newAuthorRecord(obs *Observation, now time.Time) *AuthorRecord {
	rec := &AuthorRecord{
		UserID:   obs.UserID,
		Username: obs.Username,
		Posts:    []Post{obs.Post},
		Engagement: EngagementTotals{
			TotalLikes:    obs.Post.Engagement.Likes,
			TotalComments: obs.Post.Engagement.Comments,
			TotalShares:   obs.Post.Engagement.Shares,
		},
		FirstSeen: now,
		LastSeen:  now,
		seen:      roaring.New(),
	}
	rec.seen.Add(HashPostID(obs.Post.ID))
	return rec
}

// MergeObservation merges one observation into an author record and returns
// the merged record. It is pure: existing is never mutated, the caller owns
// loading it beforehand and persisting the result afterwards. A nil existing
// creates a fresh record. Malformed observations reject with *ValidationError
// and no record is produced.
func MergeObservation(existing *AuthorRecord, obs *Observation, now time.Time, maxPosts int) (*AuthorRecord, error) {
	if obs == nil {
		return nil, &ValidationError{Field: "observation", Reason: "is required"}
	}
	if err := obs.Validate(now); err != nil {
		return nil, err
	}
	if maxPosts <= 0 {
		maxPosts = DefaultMaxPostsToAnalyze
	}

	if existing == nil {
		return newAuthorRecord(obs, now), nil
	}

	rec := existing.Clone()
	rec.Username = obs.Username
	if now.After(rec.LastSeen) {
		rec.LastSeen = now
	}

	hash := HashPostID(obs.Post.ID)
	if rec.seen.Contains(hash) {
		// Idempotent re-observation: retained or already evicted.
		return rec, nil
	}

	rec.seen.Add(hash)
	rec.Engagement.TotalLikes += obs.Post.Engagement.Likes
	rec.Engagement.TotalComments += obs.Post.Engagement.Comments
	rec.Engagement.TotalShares += obs.Post.Engagement.Shares

	rec.Posts = append(rec.Posts, obs.Post)
	if len(rec.Posts) > maxPosts {
		sortPostsByRecency(rec.Posts)
		rec.Posts = rec.Posts[:maxPosts]
	}
	return rec, nil
}

// sortPostsByRecency orders posts descending by timestamp. Equal timestamps
// tie-break ascending by post ID so truncation stays deterministic.
func sortPostsByRecency(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].Timestamp.Equal(posts[j].Timestamp) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].Timestamp.After(posts[j].Timestamp)
	})
}

// HasPost reports whether a post ID is in the retained window.
func (r *AuthorRecord) HasPost(id string) bool {
	for i := range r.Posts {
		if r.Posts[i].ID == id {
			return true
		}
	}
	return false
}

// SeenCount returns the number of distinct posts ever merged.
func (r *AuthorRecord) SeenCount() int {
	if r.seen == nil {
		return len(r.Posts)
	}
	return int(r.seen.GetCardinality())
}

// Clone returns a deep copy safe to mutate independently.
func (r *AuthorRecord) Clone() *AuthorRecord {
	cp := *r
	cp.Posts = make([]Post, len(r.Posts))
	copy(cp.Posts, r.Posts)
	if r.seen != nil {
		cp.seen = r.seen.Clone()
	} else {
		cp.seen = roaring.New()
		for i := range r.Posts {
			cp.seen.Add(HashPostID(r.Posts[i].ID))
		}
	}
	return &cp
}
