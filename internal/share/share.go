// Package share filters sampled attachments down to those whose owners
// allow re-publishing.
package share

import (
	"context"
	"log"

	"github.com/vgrigoriev/catwall/internal/vk"
)

// Directory resolves account and community visibility settings.
type Directory interface {
	Users(ctx context.Context, ids []int) ([]vk.User, error)
	Groups(ctx context.Context, ids []int) ([]vk.Group, error)
}

// Filter drops attachments whose owner explicitly disallows sharing.
// Owners absent from the lookup results are kept: missing data is far
// more often a lookup-scope or transient issue than a genuine
// restriction, so the filter fails open. This is a policy choice, not a
// security boundary.
func Filter(ctx context.Context, dir Directory, attachments ...[]vk.Attachment) [][]vk.Attachment {
	userIDs := make(map[int]bool)
	groupIDs := make(map[int]bool)
	for _, set := range attachments {
		for _, att := range set {
			if att.CommunityOwned() {
				groupIDs[-att.OwnerID()] = true
			} else if att.OwnerID() > 0 {
				userIDs[att.OwnerID()] = true
			}
		}
	}

	// Batch failures degrade to "no lookups succeeded": everything in
	// that batch is then retained by the fail-open rule.
	closed := make(map[int]bool) // ownerID -> explicitly not sharable

	if len(userIDs) > 0 {
		users, err := dir.Users(ctx, keys(userIDs))
		if err != nil {
			log.Printf("Looking up accounts: %v", err)
		}
		for _, u := range users {
			if !u.Sharable() {
				closed[u.ID] = true
			}
		}
	}

	if len(groupIDs) > 0 {
		groups, err := dir.Groups(ctx, keys(groupIDs))
		if err != nil {
			log.Printf("Looking up communities: %v", err)
		}
		for _, g := range groups {
			if !g.Sharable() {
				closed[-g.ID] = true
			}
		}
	}

	out := make([][]vk.Attachment, len(attachments))
	for i, set := range attachments {
		var kept []vk.Attachment
		for _, att := range set {
			if !closed[att.OwnerID()] {
				kept = append(kept, att)
			}
		}
		out[i] = kept
	}
	return out
}

func keys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
