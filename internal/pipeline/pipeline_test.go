package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/vgrigoriev/catwall/internal/config"
	"github.com/vgrigoriev/catwall/internal/discogs"
	"github.com/vgrigoriev/catwall/internal/llm"
	"github.com/vgrigoriev/catwall/internal/vk"
)

// fakeWall is an in-memory community wall. Every method counts its
// calls so tests can assert which stages actually touched the network.
type fakeWall struct {
	feed  []vk.Wallpost
	today []vk.Wallpost
	users []vk.User

	countCalls int
	pageCalls  int
	todayCalls int
	userCalls  int
	groupCalls int
	postCalls  int
	postedAtts []vk.PostAttachment
	postAt     time.Time
}

func (w *fakeWall) TotalCount(context.Context, string) (int, error) {
	w.countCalls++
	return len(w.feed), nil
}

func (w *fakeWall) Page(_ context.Context, _ string, _, _ int) ([]vk.Wallpost, error) {
	w.pageCalls++
	return w.feed, nil
}

func (w *fakeWall) TodayPosts(context.Context, string, time.Time, *time.Location) ([]vk.Wallpost, error) {
	w.todayCalls++
	return w.today, nil
}

func (w *fakeWall) Users(context.Context, []int) ([]vk.User, error) {
	w.userCalls++
	return w.users, nil
}

func (w *fakeWall) Groups(context.Context, []int) ([]vk.Group, error) {
	w.groupCalls++
	return nil, nil
}

func (w *fakeWall) CreatePost(_ context.Context, _ int, attachments []vk.PostAttachment, publishAt time.Time) (int, error) {
	w.postCalls++
	w.postedAtts = attachments
	w.postAt = publishAt
	return 77, nil
}

func (w *fakeWall) remoteCalls() int {
	return w.countCalls + w.pageCalls + w.todayCalls + w.userCalls + w.groupCalls + w.postCalls
}

// fakeModel scripts the approval answers and counts its calls.
type fakeModel struct {
	pingErr     error
	audioAnswer string
	photoAnswer string
	pingCalls   int
	textCalls   int
	visionCalls int
}

func (m *fakeModel) Ping(context.Context) error {
	m.pingCalls++
	return m.pingErr
}

func (m *fakeModel) Complete(context.Context, string, string, string, float32) (string, error) {
	m.textCalls++
	return m.audioAnswer, nil
}

func (m *fakeModel) CompleteVision(context.Context, string, []llm.ImagePart, float32) (string, error) {
	m.visionCalls++
	return m.photoAnswer, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Search(context.Context, string, string) ([]discogs.Release, error) {
	return nil, nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(context.Context, string) (string, error) {
	return "data:image/jpeg;base64,AAAA", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Wallposts: config.Wallposts{
			Domain:      "thewall",
			CommunityID: -123,
			Schedule: config.DailySchedule{
				TimeZone: "UTC",
				Cooldown: "3h",
				Checkpoints: []config.Checkpoint{
					{At: "09:00"},
				},
			},
		},
		Content: config.Content{
			Providers: []config.Provider{
				{Domain: "provider1", Media: []string{config.MediaMusic, config.MediaImages}},
			},
			Settings: config.Settings{
				TakeMusicPerProvider:   3,
				MusicCollectorSize:     5,
				TakeImagesPerProvider:  3,
				ImagesCollectorSize:    5,
				MusicApprovalThreshold: 0.8,
			},
		},
	}
}

func wallWithCandidates() *fakeWall {
	return &fakeWall{feed: []vk.Wallpost{
		{ID: 1, Attachments: []vk.Attachment{{Kind: vk.KindAudio, Audio: &vk.Audio{
			ID: 100, OwnerID: 1, Artist: "A", Title: "T", URL: "https://audio",
		}}}},
		{ID: 2, Attachments: []vk.Attachment{{Kind: vk.KindPhoto, Photo: &vk.Photo{
			ID: 7, OwnerID: 2, OrigURL: "https://photo",
		}}}},
	}}
}

func newWatcher(cfg *config.Config, wall *fakeWall, model *fakeModel, at time.Time) *Watcher {
	return NewWatcher(cfg, wall, fakeCatalog{}, model, fakeFetcher{},
		rand.New(rand.NewSource(1)), func() time.Time { return at })
}

func TestRunBeforeFirstCheckpointTouchesNothing(t *testing.T) {
	wall := wallWithCandidates()
	model := &fakeModel{}
	w := newWatcher(testConfig(), wall, model, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))

	outcome := w.Run(context.Background())
	if !outcome.OK || outcome.Posted != nil {
		t.Errorf("expected a quiet no-action outcome, got %+v", outcome)
	}
	if outcome.Notify {
		t.Error("a not-yet gate must not page the operator")
	}
	if wall.remoteCalls() != 0 {
		t.Errorf("no remote call may happen before a checkpoint, got %d", wall.remoteCalls())
	}
	if model.pingCalls+model.textCalls+model.visionCalls != 0 {
		t.Error("the model must not be touched before a checkpoint")
	}
}

func TestRunPublishesAfterCheckpoint(t *testing.T) {
	wall := wallWithCandidates()
	model := &fakeModel{
		audioAnswer: `{"result": [{"band": "A", "approval": 0.9}]}`,
		photoAnswer: `{"result": [{"photo": "7", "approval": true}]}`,
	}
	w := newWatcher(testConfig(), wall, model, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	outcome := w.Run(context.Background())
	if !outcome.OK || outcome.Posted == nil {
		t.Fatalf("expected a published outcome, got %+v", outcome)
	}
	if !outcome.Notify {
		t.Error("a successful post must be reported")
	}
	if wall.postCalls != 1 {
		t.Fatalf("expected exactly one wall.post, got %d", wall.postCalls)
	}
	if outcome.Posted.PostID != 77 {
		t.Errorf("unexpected post id %d", outcome.Posted.PostID)
	}
	if !strings.Contains(outcome.Message, "A - T") || !strings.Contains(outcome.Message, "wall-123_77") {
		t.Errorf("report message should reference the picks and the post: %q", outcome.Message)
	}
	if !wall.postAt.IsZero() {
		t.Errorf("checkpoint without postpone must publish immediately, got %v", wall.postAt)
	}

	want := map[string]bool{"audio1_100": true, "photo2_7": true}
	for _, att := range wall.postedAtts {
		if !want[att.String()] {
			t.Errorf("unexpected attachment %q", att.String())
		}
	}
}

func TestRunPostponesWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Wallposts.Schedule.Checkpoints[0].Postpone = "30m"
	wall := wallWithCandidates()
	model := &fakeModel{
		audioAnswer: `{"result": [{"band": "A", "approval": 0.9}]}`,
		photoAnswer: `{"result": [{"photo": "7", "approval": true}]}`,
	}
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	w := newWatcher(cfg, wall, model, now)

	outcome := w.Run(context.Background())
	if !outcome.OK || outcome.Posted == nil {
		t.Fatalf("expected a published outcome, got %+v", outcome)
	}
	if !wall.postAt.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("expected publish_date 30m out, got %v", wall.postAt)
	}
	if !strings.Contains(outcome.Message, "scheduled for") {
		t.Errorf("report should mention the schedule: %q", outcome.Message)
	}
}

func TestRunStopsWhenNothingShareable(t *testing.T) {
	wall := wallWithCandidates()
	// The only audio owner explicitly disallows sharing.
	wall.users = []vk.User{{ID: 1, IsClosed: true}}
	model := &fakeModel{}
	w := newWatcher(testConfig(), wall, model, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	outcome := w.Run(context.Background())
	if outcome.OK {
		t.Errorf("expected a failure outcome, got %+v", outcome)
	}
	if !outcome.Notify {
		t.Error("an empty shareable set must be reported")
	}
	if !strings.Contains(outcome.Message, "shareable music") {
		t.Errorf("unexpected message %q", outcome.Message)
	}
	if model.textCalls+model.visionCalls != 0 {
		t.Error("no approval request may happen without shareable candidates")
	}
	if wall.postCalls != 0 {
		t.Error("nothing may be posted")
	}
}

func TestRunStopsWhenModelIsDown(t *testing.T) {
	wall := wallWithCandidates()
	model := &fakeModel{pingErr: errors.New("connection refused")}
	w := newWatcher(testConfig(), wall, model, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	outcome := w.Run(context.Background())
	if outcome.OK || !outcome.Notify {
		t.Errorf("a dead model must be reported, got %+v", outcome)
	}
	if !strings.Contains(outcome.Message, "unavailable") {
		t.Errorf("unexpected message %q", outcome.Message)
	}
	if wall.countCalls+wall.pageCalls != 0 {
		t.Error("no sampling may happen when the model is down")
	}
	if wall.postCalls != 0 {
		t.Error("nothing may be posted")
	}
}

func TestRunSkipsWhenWallAlreadySatisfied(t *testing.T) {
	wall := wallWithCandidates()
	// One post already on the wall this morning covers the 09:00 slot.
	wall.today = []vk.Wallpost{{ID: 9, Date: time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC).Unix()}}
	model := &fakeModel{}
	w := newWatcher(testConfig(), wall, model, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	outcome := w.Run(context.Background())
	if !outcome.OK || outcome.Posted != nil {
		t.Errorf("expected a quiet no-action outcome, got %+v", outcome)
	}
	if model.pingCalls != 0 {
		t.Error("the gate decides before the model is probed")
	}
	if wall.postCalls != 0 {
		t.Error("nothing may be posted")
	}
}

func TestRunSurfacesRawAnswerOnAudioParseFailure(t *testing.T) {
	wall := wallWithCandidates()
	model := &fakeModel{audioAnswer: "I refuse to rate musicians."}
	w := newWatcher(testConfig(), wall, model, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	outcome := w.Run(context.Background())
	if outcome.OK || !outcome.Notify {
		t.Errorf("a malformed answer must be reported, got %+v", outcome)
	}
	if !strings.Contains(outcome.Message, "I refuse to rate musicians.") {
		t.Errorf("the raw answer must reach the operator: %q", outcome.Message)
	}
	if wall.postCalls != 0 {
		t.Error("nothing may be posted")
	}
}

func TestRunStopsWhenNoArtistApproved(t *testing.T) {
	wall := wallWithCandidates()
	model := &fakeModel{audioAnswer: `{"result": [{"band": "A", "approval": 0.1}]}`}
	w := newWatcher(testConfig(), wall, model, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	outcome := w.Run(context.Background())
	if outcome.OK {
		t.Errorf("expected a failure outcome, got %+v", outcome)
	}
	if model.visionCalls != 0 {
		t.Error("the image pass must not run without approved music")
	}
	if wall.postCalls != 0 {
		t.Error("nothing may be posted")
	}
}

func TestDryRunNeverSamplesOrPosts(t *testing.T) {
	wall := wallWithCandidates()
	model := &fakeModel{}
	w := newWatcher(testConfig(), wall, model, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	outcome := w.DryRun(context.Background())
	if !outcome.OK {
		t.Fatalf("dry-run failed: %+v", outcome)
	}
	if !strings.Contains(outcome.Message, "[dry-run]") {
		t.Errorf("unexpected message %q", outcome.Message)
	}
	if wall.todayCalls != 1 {
		t.Errorf("dry-run reads today's posts once, got %d", wall.todayCalls)
	}
	if wall.countCalls+wall.pageCalls+wall.postCalls != 0 {
		t.Error("dry-run must not sample or post")
	}
	if model.pingCalls+model.textCalls+model.visionCalls != 0 {
		t.Error("dry-run must not touch the model")
	}
}
