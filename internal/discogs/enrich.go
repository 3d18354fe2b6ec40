package discogs

import (
	"context"
	"log"
)

// Track identifies one sampled audio candidate.
type Track struct {
	Artist string
	Title  string
}

// Enrich queries the catalog once per (artist, track) pair and once per
// distinct artist, merges both result sets by artist, deduplicates
// releases by title and drops artists with nothing found. Per-query
// failures are logged and simply omit that artist's context.
func Enrich(ctx context.Context, searcher Searcher, tracks []Track) []ArtistReleases {
	type merged struct {
		order    int
		releases []Release
		seen     map[string]bool
	}
	byArtist := make(map[string]*merged)
	var order []string

	add := func(artist string, releases []Release) {
		m, ok := byArtist[artist]
		if !ok {
			m = &merged{seen: make(map[string]bool)}
			byArtist[artist] = m
			order = append(order, artist)
		}
		for _, r := range releases {
			if !m.seen[r.Title] {
				m.seen[r.Title] = true
				m.releases = append(m.releases, r)
			}
		}
	}

	for _, t := range tracks {
		releases, err := searcher.Search(ctx, t.Artist, t.Title)
		if err != nil {
			log.Printf("Discogs lookup for %s - %s: %v", t.Artist, t.Title, err)
			continue
		}
		add(t.Artist, releases)
	}

	artists := make(map[string]bool)
	for _, t := range tracks {
		if artists[t.Artist] {
			continue
		}
		artists[t.Artist] = true

		releases, err := searcher.Search(ctx, t.Artist, "")
		if err != nil {
			log.Printf("Discogs lookup for %s: %v", t.Artist, err)
			continue
		}
		add(t.Artist, releases)
	}

	var out []ArtistReleases
	for _, artist := range order {
		if m := byArtist[artist]; len(m.releases) > 0 {
			out = append(out, ArtistReleases{Artist: artist, Releases: m.releases})
		}
	}
	return out
}
