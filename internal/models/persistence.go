package models

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// AuthorPersistence is the on-disk form of an AuthorRecord. SeenPosts is the
// serialized seen-post bitmap; when absent (legacy snapshots) the bitmap is
// rebuilt from the retained post IDs.
type AuthorPersistence struct {
	UserID     string           `json:"userId"`
	Username   string           `json:"username"`
	Posts      []Post           `json:"posts"`
	Engagement EngagementTotals `json:"engagement"`
	FirstSeen  time.Time        `json:"firstSeen"`
	LastSeen   time.Time        `json:"lastSeen"`
	SeenPosts  []byte           `json:"seenPosts,omitempty"`
}

// CommunityData is the persisted state of one community.
type CommunityData struct {
	Authors map[string]*AuthorPersistence `json:"authors"`
}

// StorageV2 is the snapshot envelope with an explicit version field. V1 files
// (a bare userId->author map with no version) migrate into the default
// community on load.
type StorageV2 struct {
	Version     int                       `json:"version"`
	Communities map[string]*CommunityData `json:"communities"`
}

const StorageVersion = 2

// ToPersistence converts a record for snapshotting.
func (r *AuthorRecord) ToPersistence() *AuthorPersistence {
	p := &AuthorPersistence{
		UserID:     r.UserID,
		Username:   r.Username,
		Posts:      append([]Post(nil), r.Posts...),
		Engagement: r.Engagement,
		FirstSeen:  r.FirstSeen,
		LastSeen:   r.LastSeen,
	}
	if r.seen != nil {
		if buf, err := r.seen.MarshalBinary(); err == nil {
			p.SeenPosts = buf
		}
	}
	return p
}

// FromPersistence rebuilds a live record from its snapshot form.
func FromPersistence(p *AuthorPersistence) *AuthorRecord {
	if p == nil {
		return nil
	}
	rec := &AuthorRecord{
		UserID:     p.UserID,
		Username:   p.Username,
		Posts:      append([]Post(nil), p.Posts...),
		Engagement: p.Engagement,
		FirstSeen:  p.FirstSeen,
		LastSeen:   p.LastSeen,
		seen:       roaring.New(),
	}
	if len(p.SeenPosts) > 0 {
		if err := rec.seen.UnmarshalBinary(p.SeenPosts); err != nil {
			rec.seen = roaring.New()
		}
	}
	if rec.seen.IsEmpty() {
		for i := range rec.Posts {
			rec.seen.Add(HashPostID(rec.Posts[i].ID))
		}
	}
	return rec
}
