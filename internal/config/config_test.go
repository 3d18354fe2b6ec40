package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("default config must parse: %v", err)
	}
	if cfg.Wallposts.Domain != "my-community" {
		t.Errorf("unexpected domain %q", cfg.Wallposts.Domain)
	}
	if cfg.Wallposts.CommunityID >= 0 {
		t.Errorf("community id must be negative, got %d", cfg.Wallposts.CommunityID)
	}
	if got := cfg.Content.Settings.MusicApprovalThreshold; got != 0.8 {
		t.Errorf("threshold = %v, want 0.8", got)
	}
	if len(cfg.Wallposts.Schedule.Checkpoints) != 3 {
		t.Errorf("expected 3 checkpoints, got %d", len(cfg.Wallposts.Schedule.Checkpoints))
	}
	if _, err := cfg.Location(); err != nil {
		t.Errorf("time zone must load: %v", err)
	}
	if _, err := cfg.Cooldown(); err != nil {
		t.Errorf("cooldown must parse: %v", err)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := parse([]byte("wallposts:\n  domain: x\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Wallposts.Schedule.TimeZone != "UTC" {
		t.Errorf("default time zone = %q, want UTC", cfg.Wallposts.Schedule.TimeZone)
	}
	cooldown, err := cfg.Cooldown()
	if err != nil || cooldown != 3*time.Hour {
		t.Errorf("default cooldown = %v (%v), want 3h", cooldown, err)
	}
	s := cfg.Content.Settings
	if s.TakeMusicPerProvider != 3 || s.MusicCollectorSize != 10 ||
		s.TakeImagesPerProvider != 3 || s.ImagesCollectorSize != 9 ||
		s.MusicApprovalThreshold != 0.8 {
		t.Errorf("unexpected default settings: %+v", s)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port = %d, want 8000", cfg.Server.Port)
	}
}

func TestCheckpointsParsesAndSorts(t *testing.T) {
	cfg := &Config{Wallposts: Wallposts{Schedule: DailySchedule{Checkpoints: []Checkpoint{
		{At: "20:00", Jitter: "30m"},
		{At: "09:15", Postpone: "15m"},
	}}}}

	cps, err := cfg.Checkpoints()
	if err != nil {
		t.Fatalf("checkpoints failed: %v", err)
	}
	if len(cps) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(cps))
	}
	if cps[0].At != 9*time.Hour+15*time.Minute {
		t.Errorf("first checkpoint at %v, want 09:15", cps[0].At)
	}
	if cps[0].Postpone != 15*time.Minute {
		t.Errorf("postpone = %v, want 15m", cps[0].Postpone)
	}
	if cps[1].At != 20*time.Hour || cps[1].Jitter != 30*time.Minute {
		t.Errorf("second checkpoint = %+v", cps[1])
	}
}

func TestCheckpointsRejectsBadTime(t *testing.T) {
	cfg := &Config{Wallposts: Wallposts{Schedule: DailySchedule{Checkpoints: []Checkpoint{
		{At: "9 o'clock"},
	}}}}
	if _, err := cfg.Checkpoints(); err == nil {
		t.Error("expected error for unparseable checkpoint time")
	}
}

func TestProvidersFor(t *testing.T) {
	cfg := &Config{Content: Content{Providers: []Provider{
		{Domain: "music-only", Media: []string{MediaMusic}},
		{Domain: "photos-only", Media: []string{MediaImages}},
		{Domain: "both", Media: []string{MediaMusic, MediaImages}},
	}}}

	music := cfg.ProvidersFor(MediaMusic)
	if len(music) != 2 || music[0] != "music-only" || music[1] != "both" {
		t.Errorf("music providers = %v", music)
	}
	photos := cfg.ProvidersFor(MediaImages)
	if len(photos) != 2 || photos[0] != "photos-only" || photos[1] != "both" {
		t.Errorf("image providers = %v", photos)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Wallposts.Domain != "my-community" {
		t.Errorf("unexpected domain %q", cfg.Wallposts.Domain)
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}
