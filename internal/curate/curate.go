// Package curate drives the two-phase model-approval protocol over
// sampled candidates: one textual pass for audio, one batched
// multi-modal pass for images.
package curate

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/vgrigoriev/catwall/internal/discogs"
	"github.com/vgrigoriev/catwall/internal/images"
	"github.com/vgrigoriev/catwall/internal/llm"
	"github.com/vgrigoriev/catwall/internal/vk"
)

// imageBatchSize bounds one multi-modal request; larger batches run
// into model payload limits.
const imageBatchSize = 3

// Prompts carries the configured instructions for both passes.
type Prompts struct {
	AudioSystem      string
	AudioTemperature float32
	DiscogsContext   string
	PhotoSystem      string
	PhotoTemperature float32
}

// Approver submits candidates to the model and filters them by its
// verdicts.
type Approver struct {
	model   llm.Model
	fetcher images.Fetcher
	prompts Prompts

	// Threshold is the inclusive minimum audio approval score.
	Threshold float64
}

func NewApprover(model llm.Model, fetcher images.Fetcher, prompts Prompts, threshold float64) *Approver {
	return &Approver{
		model:     model,
		fetcher:   fetcher,
		prompts:   prompts,
		Threshold: threshold,
	}
}

// Probe checks model liveness before the real workload. Its failure is
// a hard stop for the invocation.
func (a *Approver) Probe(ctx context.Context) error {
	return a.model.Ping(ctx)
}

// ApproveAudio runs the textual pass: one request listing the distinct
// candidate artists, optional catalog enrichment as extra system
// context, and a structured score per artist in the answer. It returns
// the audio attachments whose artist cleared the threshold.
func (a *Approver) ApproveAudio(ctx context.Context, candidates []vk.Attachment, enrichment []discogs.ArtistReleases) ([]vk.Attachment, error) {
	artists := distinctArtists(candidates)

	contextText := ""
	if len(enrichment) > 0 {
		lines := make([]string, len(enrichment))
		for i, ar := range enrichment {
			lines[i] = ar.String()
		}
		contextText = a.prompts.DiscogsContext + "\n" + strings.Join(lines, "\n")
	}

	answer, err := a.model.Complete(ctx, a.prompts.AudioSystem, contextText,
		strings.Join(artists, ", "), a.prompts.AudioTemperature)
	if err != nil {
		return nil, err
	}

	verdicts, err := parseAudioVerdicts(answer)
	if err != nil {
		return nil, err
	}

	approved := make(map[string]bool)
	for _, v := range verdicts.Result {
		if float64(v.Approval) >= a.Threshold {
			approved[v.Band] = true
		}
	}
	log.Printf("Model approved %d of %d artists", len(approved), len(artists))

	var kept []vk.Attachment
	for _, att := range candidates {
		if approved[att.Audio.Artist] {
			kept = append(kept, att)
		}
	}
	return kept, nil
}

// ApproveImages runs the multi-modal pass. Images that fail to download
// are dropped. The remaining candidates go to the model in fixed-size
// batches; a batch whose request or structured parse fails is dropped
// individually, and only the failure of every batch is a hard stop.
func (a *Approver) ApproveImages(ctx context.Context, candidates []vk.Attachment) ([]vk.Attachment, error) {
	type downloaded struct {
		att     vk.Attachment
		dataURL string
	}
	var ready []downloaded
	for _, att := range candidates {
		dataURL, err := a.fetcher.Fetch(ctx, att.Photo.OrigURL)
		if err != nil {
			log.Printf("Downloading photo %d: %v", att.Photo.ID, err)
			continue
		}
		ready = append(ready, downloaded{att: att, dataURL: dataURL})
	}
	if len(ready) == 0 {
		return nil, ErrNoImagesDownloaded
	}

	approved := make(map[string]bool)
	requestFailures := 0
	var parseFailures []*ParseError
	batches := 0

	for start := 0; start < len(ready); start += imageBatchSize {
		end := min(start+imageBatchSize, len(ready))
		batches++

		parts := make([]llm.ImagePart, 0, end-start)
		for _, d := range ready[start:end] {
			parts = append(parts, llm.ImagePart{
				ID:      strconv.Itoa(d.att.Photo.ID),
				DataURL: d.dataURL,
			})
		}

		answer, err := a.model.CompleteVision(ctx, a.prompts.PhotoSystem, parts, a.prompts.PhotoTemperature)
		if err != nil {
			log.Printf("Photo batch %d request: %v", batches, err)
			requestFailures++
			continue
		}

		verdicts, err := parsePhotoVerdicts(answer)
		if err != nil {
			log.Printf("Photo batch %d parse: %v", batches, err)
			if pe, ok := err.(*ParseError); ok {
				parseFailures = append(parseFailures, pe)
			}
			continue
		}
		for _, v := range verdicts.Result {
			if v.Approval {
				approved[v.Photo] = true
			}
		}
	}

	if requestFailures == batches {
		return nil, ErrAllBatchesFailed
	}
	if requestFailures+len(parseFailures) == batches {
		// Every answered batch came back malformed; surface the raw
		// responses for diagnosis.
		raws := make([]string, len(parseFailures))
		for i, pe := range parseFailures {
			raws[i] = pe.Raw
		}
		return nil, &ParseError{Raw: strings.Join(raws, "\n---\n")}
	}

	var kept []vk.Attachment
	for _, d := range ready {
		if approved[strconv.Itoa(d.att.Photo.ID)] {
			kept = append(kept, d.att)
		}
	}
	log.Printf("Model approved %d of %d photos", len(kept), len(ready))
	return kept, nil
}

// distinctArtists preserves first-seen order.
func distinctArtists(candidates []vk.Attachment) []string {
	seen := make(map[string]bool)
	var artists []string
	for _, att := range candidates {
		if !seen[att.Audio.Artist] {
			seen[att.Audio.Artist] = true
			artists = append(artists, att.Audio.Artist)
		}
	}
	return artists
}

// Tracks converts audio candidates into enrichment queries, one per
// distinct (artist, title) pair sorted for stable request order.
func Tracks(candidates []vk.Attachment) []discogs.Track {
	seen := make(map[discogs.Track]bool)
	var tracks []discogs.Track
	for _, att := range candidates {
		t := discogs.Track{Artist: att.Audio.Artist, Title: att.Audio.Title}
		if !seen[t] {
			seen[t] = true
			tracks = append(tracks, t)
		}
	}
	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].Artist != tracks[j].Artist {
			return tracks[i].Artist < tracks[j].Artist
		}
		return tracks[i].Title < tracks[j].Title
	})
	return tracks
}
