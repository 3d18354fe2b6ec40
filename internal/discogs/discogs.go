// Package discogs enriches audio candidates with catalog metadata.
// Enrichment is best-effort prompt material; it never fails the
// pipeline.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.discogs.com"

// Release is one catalog entry for an artist.
type Release struct {
	Title  string
	Genres []string
	Styles []string
	Labels []string
}

// ArtistReleases groups an artist's known releases, deduplicated by
// release title.
type ArtistReleases struct {
	Artist   string
	Releases []Release
}

// String renders the releases as compact prompt context.
func (ar ArtistReleases) String() string {
	var b strings.Builder
	b.WriteString(ar.Artist)
	b.WriteString(": [")
	for i, r := range ar.Releases {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "(release title: %s; genres: %s; styles: %s; labels: %s)",
			r.Title,
			strings.Join(r.Genres, ","),
			strings.Join(r.Styles, ","),
			strings.Join(r.Labels, ","))
	}
	b.WriteString("]")
	return b.String()
}

// Searcher queries a release catalog by artist and optional track.
type Searcher interface {
	Search(ctx context.Context, artist, track string) ([]Release, error)
}

// Client talks to the Discogs database search API.
type Client struct {
	BaseURL string
	Token   string
	client  *http.Client
}

// NewClient creates a Discogs client.
func NewClient(token string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Search queries /database/search for an artist, optionally narrowed to
// one track. Only the first handful of results is requested.
func (c *Client) Search(ctx context.Context, artist, track string) ([]Release, error) {
	params := url.Values{
		"artist":   {artist},
		"per_page": {"5"},
	}
	if track != "" {
		params.Set("track", track)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/database/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discogs API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("discogs API returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			Title string   `json:"title"`
			Genre []string `json:"genre"`
			Style []string `json:"style"`
			Label []string `json:"label"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	releases := make([]Release, 0, len(result.Results))
	for _, r := range result.Results {
		releases = append(releases, Release{
			Title:  r.Title,
			Genres: r.Genre,
			Styles: r.Style,
			Labels: r.Label,
		})
	}
	return releases, nil
}
