// Package publish picks the final attachments and creates the wall
// post.
package publish

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/vgrigoriev/catwall/internal/vk"
)

// Poster creates posts on the community wall. A zero publishAt means
// the post becomes visible immediately.
type Poster interface {
	CreatePost(ctx context.Context, ownerID int, attachments []vk.PostAttachment, publishAt time.Time) (int, error)
}

// Result describes a successfully created post.
type Result struct {
	PostID      int
	ScheduledAt time.Time // zero when published immediately
	Audio       *vk.Audio
	Photo       *vk.Photo
}

// Orchestrator assembles and submits the final post.
type Orchestrator struct {
	poster      Poster
	rng         *rand.Rand
	communityID int
	domain      string
}

func NewOrchestrator(poster Poster, rng *rand.Rand, communityID int, domain string) *Orchestrator {
	return &Orchestrator{
		poster:      poster,
		rng:         rng,
		communityID: communityID,
		domain:      domain,
	}
}

// Publish picks one approved audio and one approved image uniformly at
// random and creates a post referencing both. A non-zero postpone
// delays visibility to now+postpone. Publish is attempted at most once;
// a failure is terminal for the invocation since wall.post is not safe
// to blindly retry.
func (o *Orchestrator) Publish(ctx context.Context, audio, photos []vk.Attachment, postpone time.Duration, now time.Time) (*Result, error) {
	pickedAudio := audio[o.rng.Intn(len(audio))]
	pickedPhoto := photos[o.rng.Intn(len(photos))]

	attachments := []vk.PostAttachment{
		{Kind: vk.KindAudio, OwnerID: pickedAudio.Audio.OwnerID, MediaID: pickedAudio.Audio.ID},
		{Kind: vk.KindPhoto, OwnerID: pickedPhoto.Photo.OwnerID, MediaID: pickedPhoto.Photo.ID},
	}

	var publishAt time.Time
	if postpone > 0 {
		publishAt = now.Add(postpone)
	}

	postID, err := o.poster.CreatePost(ctx, o.communityID, attachments, publishAt)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	return &Result{
		PostID:      postID,
		ScheduledAt: publishAt,
		Audio:       pickedAudio.Audio,
		Photo:       pickedPhoto.Photo,
	}, nil
}

// Message composes the human-readable success report with direct links
// to the picked media and the resulting post.
func (o *Orchestrator) Message(r *Result) string {
	msg := fmt.Sprintf(
		"Done! Picked [a picture](%s) and [%s - %s](%s).\n\nPosted to [the page](https://vk.com/%s?w=wall%d_%d)",
		r.Photo.OrigURL, r.Audio.Artist, r.Audio.Title, r.Audio.URL,
		o.domain, o.communityID, r.PostID,
	)
	if !r.ScheduledAt.IsZero() {
		msg += fmt.Sprintf(", scheduled for %s", r.ScheduledAt.Format("2006-01-02 15:04"))
	}
	return msg + "."
}
