// Package pipeline wires the stages of one invocation: schedule gate,
// candidate sampling, sharing filter, catalog enrichment, model
// approval and the publish decision. Every stage can short-circuit the
// run with a terminal, human-readable outcome.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/vgrigoriev/catwall/internal/config"
	"github.com/vgrigoriev/catwall/internal/curate"
	"github.com/vgrigoriev/catwall/internal/discogs"
	"github.com/vgrigoriev/catwall/internal/images"
	"github.com/vgrigoriev/catwall/internal/llm"
	"github.com/vgrigoriev/catwall/internal/publish"
	"github.com/vgrigoriev/catwall/internal/sample"
	"github.com/vgrigoriev/catwall/internal/schedule"
	"github.com/vgrigoriev/catwall/internal/share"
	"github.com/vgrigoriev/catwall/internal/vk"
)

// Wall is the feed surface the pipeline reads and writes.
type Wall interface {
	sample.Feed
	share.Directory
	publish.Poster
	TodayPosts(ctx context.Context, domain string, today time.Time, loc *time.Location) ([]vk.Wallpost, error)
}

// Outcome is the terminal result of one invocation. Notify marks
// outcomes that should be relayed to the operator channel.
type Outcome struct {
	OK      bool
	Posted  *publish.Result
	Message string
	Notify  bool
}

// Watcher runs the daily-schedule watching scenario once per
// invocation.
type Watcher struct {
	cfg     *config.Config
	wall    Wall
	catalog discogs.Searcher
	model   llm.Model
	fetcher images.Fetcher
	rng     *rand.Rand
	now     func() time.Time
}

// NewWatcher assembles a pipeline from its collaborators. The random
// source feeds checkpoint jitter, provider selection, reservoir
// sampling and the final attachment picks; tests inject a seeded one.
func NewWatcher(cfg *config.Config, wall Wall, catalog discogs.Searcher, model llm.Model, fetcher images.Fetcher, rng *rand.Rand, now func() time.Time) *Watcher {
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		cfg:     cfg,
		wall:    wall,
		catalog: catalog,
		model:   model,
		fetcher: fetcher,
		rng:     rng,
		now:     now,
	}
}

// Run plays the scenario once. It returns a terminal outcome rather
// than an error: every failure mode has a human-readable explanation
// and a flag deciding whether the operator hears about it.
func (w *Watcher) Run(ctx context.Context) Outcome {
	log.Println("Start watching the daily schedule")

	loc, err := w.cfg.Location()
	if err != nil {
		return failure(err.Error())
	}
	checkpoints, err := w.cfg.Checkpoints()
	if err != nil {
		return failure(err.Error())
	}
	cooldown, err := w.cfg.Cooldown()
	if err != nil {
		return failure(err.Error())
	}

	now := w.now().In(loc)
	evaluator := schedule.NewEvaluator(w.rng)

	decision := evaluator.Current(checkpoints, now)
	if !decision.Act {
		log.Printf("No action: %s", decision.Reason)
		return Outcome{OK: true, Message: decision.Reason}
	}

	// The wall itself is the source of truth for "already posted
	// today"; no local state survives between invocations.
	domain := w.cfg.Wallposts.Domain
	todayPosts, err := w.wall.TodayPosts(ctx, domain, now, loc)
	if err != nil {
		log.Printf("Fetching today's posts: %v", err)
		return failure(fmt.Sprintf(
			"Tried to check what was already posted today on %s, but the wall read failed: %v", domain, err))
	}

	postedAt := make([]time.Time, len(todayPosts))
	for i, p := range todayPosts {
		postedAt[i] = time.Unix(p.Date, 0).In(loc)
	}
	if reason, done := schedule.AlreadySatisfied(checkpoints, now, postedAt, cooldown); done {
		log.Printf("No action: %s", reason)
		return Outcome{OK: true, Message: reason}
	}

	// Liveness probe before any sampling: if the models are down there
	// is no point collecting candidates.
	approver := curate.NewApprover(w.model, w.fetcher, curate.Prompts{
		AudioSystem:      w.cfg.LLM.AudioPrompt.SystemInstruction,
		AudioTemperature: w.cfg.LLM.AudioPrompt.Temperature,
		DiscogsContext:   w.cfg.LLM.DiscogsContext,
		PhotoSystem:      w.cfg.LLM.PhotoPrompt.SystemInstruction,
		PhotoTemperature: w.cfg.LLM.PhotoPrompt.Temperature,
	}, w.cfg.Content.Settings.MusicApprovalThreshold)

	if err := approver.Probe(ctx); err != nil {
		log.Printf("Model probe: %v", err)
		return failure("The curation model is unavailable right now, check what's wrong!")
	}

	musicProviders := w.cfg.ProvidersFor(config.MediaMusic)
	imageProviders := w.cfg.ProvidersFor(config.MediaImages)
	if len(musicProviders) == 0 || len(imageProviders) == 0 {
		return failure("Content providers are missing for music or images — did you forget to configure them?")
	}

	settings := w.cfg.Content.Settings
	sampler := sample.New(w.wall, w.rng)
	totals := make(map[string]int)

	music := sampler.Sample(ctx, sample.Options{
		Providers:     musicProviders,
		Kind:          vk.KindAudio,
		TakePerRound:  settings.TakeMusicPerProvider,
		CollectorSize: settings.MusicCollectorSize,
	}, totals)

	photos := sampler.Sample(ctx, sample.Options{
		Providers:     imageProviders,
		Kind:          vk.KindPhoto,
		TakePerRound:  settings.TakeImagesPerProvider,
		CollectorSize: settings.ImagesCollectorSize,
	}, totals)

	filtered := share.Filter(ctx, w.wall, music, photos)
	music, photos = filtered[0], filtered[1]

	if len(music) == 0 {
		return failure("Couldn't find any shareable music this round, will try again later...")
	}
	if len(photos) == 0 {
		return failure("Couldn't find any shareable pictures this round, will try again later...")
	}

	enrichment := discogs.Enrich(ctx, w.catalog, curate.Tracks(music))

	approvedMusic, err := approver.ApproveAudio(ctx, music, enrichment)
	if err != nil {
		return audioFailure(err)
	}
	if len(approvedMusic) == 0 {
		return failure("The model didn't approve a single artist this round. Better luck next time!")
	}

	approvedPhotos, err := approver.ApproveImages(ctx, photos)
	if err != nil {
		return imageFailure(err)
	}
	if len(approvedPhotos) == 0 {
		return failure("The model didn't like any of the pictures this round. I'll find better ones!")
	}

	orchestrator := publish.NewOrchestrator(w.wall, w.rng, w.cfg.Wallposts.CommunityID, domain)
	result, err := orchestrator.Publish(ctx, approvedMusic, approvedPhotos, decision.Checkpoint.Postpone, now)
	if err != nil {
		log.Printf("Publishing: %v", err)
		return failure("Collected and curated everything, but the wall rejected the post... oh well.")
	}

	log.Printf("Published post %d", result.PostID)
	return Outcome{
		OK:      true,
		Posted:  result,
		Message: orchestrator.Message(result),
		Notify:  true,
	}
}

// DryRun evaluates only the schedule gate, touching the wall just for
// the today-read.
func (w *Watcher) DryRun(ctx context.Context) Outcome {
	loc, err := w.cfg.Location()
	if err != nil {
		return failure(err.Error())
	}
	checkpoints, err := w.cfg.Checkpoints()
	if err != nil {
		return failure(err.Error())
	}
	cooldown, err := w.cfg.Cooldown()
	if err != nil {
		return failure(err.Error())
	}

	now := w.now().In(loc)
	decision := schedule.NewEvaluator(w.rng).Current(checkpoints, now)
	if !decision.Act {
		return Outcome{OK: true, Message: "[dry-run] " + decision.Reason}
	}

	todayPosts, err := w.wall.TodayPosts(ctx, w.cfg.Wallposts.Domain, now, loc)
	if err != nil {
		return failure(fmt.Sprintf("[dry-run] wall read failed: %v", err))
	}
	postedAt := make([]time.Time, len(todayPosts))
	for i, p := range todayPosts {
		postedAt[i] = time.Unix(p.Date, 0).In(loc)
	}
	if reason, done := schedule.AlreadySatisfied(checkpoints, now, postedAt, cooldown); done {
		return Outcome{OK: true, Message: "[dry-run] " + reason}
	}
	return Outcome{OK: true, Message: fmt.Sprintf("[dry-run] would post for checkpoint %s", decision.Checkpoint)}
}

func failure(message string) Outcome {
	return Outcome{Message: message, Notify: true}
}

func audioFailure(err error) Outcome {
	if pe, ok := err.(*curate.ParseError); ok {
		return failure(fmt.Sprintf(
			"The model answered something unexpected about the music — possibly a hallucination. Raw answer:\n\n%s", pe.Raw))
	}
	log.Printf("Audio approval: %v", err)
	return failure("The model isn't answering about music for some reason... knocking again later.")
}

func imageFailure(err error) Outcome {
	switch e := err.(type) {
	case *curate.ParseError:
		return failure(fmt.Sprintf(
			"The model couldn't handle the pictures — every batch came back malformed. Raw answers:\n\n%s", e.Raw))
	default:
		if err == curate.ErrNoImagesDownloaded {
			return failure("None of the picked pictures could be downloaded... need to check what's up!")
		}
		log.Printf("Image approval: %v", err)
		return failure("The model isn't answering about pictures for some reason... knocking again later.")
	}
}
