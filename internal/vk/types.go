package vk

import "fmt"

// AttachmentKind discriminates the payload of an Attachment.
type AttachmentKind string

const (
	KindAudio   AttachmentKind = "audio"
	KindPhoto   AttachmentKind = "photo"
	KindUnknown AttachmentKind = "unknown"
)

// Audio is a music attachment on a wall post.
type Audio struct {
	ID      int
	OwnerID int
	Artist  string
	Title   string
	URL     string
}

// Photo is an image attachment on a wall post. OrigURL points at the
// original-resolution rendition; it is empty when the API did not
// return one.
type Photo struct {
	ID      int
	OwnerID int
	OrigURL string
	Width   int
	Height  int
}

// Attachment is a tagged union over the media payloads the bot cares
// about. Exactly the field matching Kind is set.
type Attachment struct {
	Kind  AttachmentKind
	Audio *Audio
	Photo *Photo
}

// OwnerID returns the owner of the attachment's media. Negative ids are
// communities, positive ids are individual accounts.
func (a Attachment) OwnerID() int {
	switch a.Kind {
	case KindAudio:
		return a.Audio.OwnerID
	case KindPhoto:
		return a.Photo.OwnerID
	default:
		return 0
	}
}

// MediaID returns the media identifier of the attachment.
func (a Attachment) MediaID() int {
	switch a.Kind {
	case KindAudio:
		return a.Audio.ID
	case KindPhoto:
		return a.Photo.ID
	default:
		return 0
	}
}

// CommunityOwned reports whether the media belongs to a community
// rather than an individual account.
func (a Attachment) CommunityOwned() bool {
	return a.OwnerID() < 0
}

// Wallpost is one item of a community wall.
type Wallpost struct {
	ID          int
	Date        int64 // unix seconds
	Attachments []Attachment
}

// User is the subset of an account profile that decides sharability.
type User struct {
	ID              int
	IsClosed        bool
	CanAccessClosed bool
	CanSeeAudio     int
}

// Sharable reports whether the account allows its media to be
// re-published.
func (u User) Sharable() bool {
	return !u.IsClosed && u.CanSeeAudio == 1 && u.CanAccessClosed
}

// Group is the subset of a community profile that decides sharability.
type Group struct {
	ID       int
	IsClosed int
}

// Sharable reports whether the community is open.
func (g Group) Sharable() bool {
	return g.IsClosed == 0
}

// PostAttachment references media in a wall.post call.
type PostAttachment struct {
	Kind    AttachmentKind
	OwnerID int
	MediaID int
}

func (p PostAttachment) String() string {
	return fmt.Sprintf("%s%d_%d", p.Kind, p.OwnerID, p.MediaID)
}
