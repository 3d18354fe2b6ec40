// Package sample draws a bounded random sample of media attachments
// from configured source walls without enumerating whole feeds.
package sample

import (
	"context"
	"log"
	"math/rand"

	"github.com/vgrigoriev/catwall/internal/vk"
)

const (
	// rounds bounds how many pages a sampling run may fetch per media
	// class; the collector may come back short when feeds are small or
	// rounds fail.
	rounds = 10

	pageSize = 100
)

// Feed reads paged wall content from a source domain.
type Feed interface {
	TotalCount(ctx context.Context, domain string) (int, error)
	Page(ctx context.Context, domain string, offset, count int) ([]vk.Wallpost, error)
}

// Options configures one sampling run.
type Options struct {
	Providers     []string
	Kind          vk.AttachmentKind
	TakePerRound  int
	CollectorSize int
}

// Sampler gathers random attachments from source feeds. Total post
// counts per domain are memoized in a caller-supplied map so a domain
// shared by both media classes is only probed once per invocation.
type Sampler struct {
	feed Feed
	rng  *rand.Rand
}

func New(feed Feed, rng *rand.Rand) *Sampler {
	return &Sampler{feed: feed, rng: rng}
}

// Sample collects up to opts.CollectorSize attachments of the requested
// kind. Fetch failures degrade a round to zero items instead of
// aborting the run.
func (s *Sampler) Sample(ctx context.Context, opts Options, totals map[string]int) []vk.Attachment {
	if len(opts.Providers) == 0 || opts.CollectorSize <= 0 {
		return nil
	}

	var collector []vk.Attachment
	for round := 0; round < rounds && len(collector) < opts.CollectorSize; round++ {
		domain := opts.Providers[s.rng.Intn(len(opts.Providers))]

		total, known := totals[domain]
		if !known {
			var err error
			total, err = s.feed.TotalCount(ctx, domain)
			if err != nil {
				log.Printf("Probing wall size of %s: %v", domain, err)
				continue
			}
			totals[domain] = total
		}
		if total <= 0 {
			continue
		}

		// Random page that still fits inside the feed.
		offset := s.rng.Intn(total)
		if offset+pageSize > total {
			offset = max(0, total-pageSize)
		}

		page, err := s.feed.Page(ctx, domain, offset, pageSize)
		if err != nil {
			log.Printf("Fetching page of %s at offset %d: %v", domain, offset, err)
			continue
		}

		picks := s.pick(page, opts.Kind, opts.TakePerRound)
		log.Printf("Sampled %d %s attachments from %s (offset %d)", len(picks), opts.Kind, domain, offset)
		for _, att := range picks {
			if len(collector) >= opts.CollectorSize {
				break
			}
			collector = append(collector, att)
		}
	}
	return collector
}

// pick performs reservoir-style selection without replacement over a
// page, keeping only attachments of the requested kind with a usable
// payload.
func (s *Sampler) pick(page []vk.Wallpost, kind vk.AttachmentKind, take int) []vk.Attachment {
	var picks []vk.Attachment
	buffer := make([]vk.Wallpost, len(page))
	copy(buffer, page)

	for len(picks) < take && len(buffer) > 0 {
		j := s.rng.Intn(len(buffer))
		post := buffer[j]
		buffer[j] = buffer[len(buffer)-1]
		buffer = buffer[:len(buffer)-1]

		if att, ok := usable(post, kind); ok {
			picks = append(picks, att)
		}
	}
	return picks
}

// usable returns the post's first attachment of the requested kind,
// provided it carries a payload the bot can re-publish.
func usable(post vk.Wallpost, kind vk.AttachmentKind) (vk.Attachment, bool) {
	for _, att := range post.Attachments {
		if att.Kind != kind {
			continue
		}
		switch att.Kind {
		case vk.KindAudio:
			if att.Audio.URL != "" {
				return att, true
			}
		case vk.KindPhoto:
			if att.Photo.OrigURL != "" {
				return att, true
			}
		}
		return vk.Attachment{}, false
	}
	return vk.Attachment{}, false
}
