package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vgrigoriev/catwall/internal/schedule"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Media classes a content provider can supply.
const (
	MediaMusic  = "music"
	MediaImages = "images"
)

type Config struct {
	Wallposts Wallposts `yaml:"wallposts"`
	Content   Content   `yaml:"content"`
	LLM       LLM       `yaml:"llm"`
	Discogs   Discogs   `yaml:"discogs"`
	VK        VK        `yaml:"vk"`
	Telegram  Telegram  `yaml:"telegram"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
}

type Wallposts struct {
	// Domain is the short address of the community wall the bot posts to.
	Domain      string        `yaml:"domain"`
	CommunityID int           `yaml:"community_id"`
	Schedule    DailySchedule `yaml:"daily_schedule"`
}

type DailySchedule struct {
	TimeZone string `yaml:"time_zone"`
	// Cooldown is the minimum gap between two posts, e.g. "3h".
	Cooldown    string       `yaml:"period_between_postings"`
	Checkpoints []Checkpoint `yaml:"checkpoints"`
}

type Checkpoint struct {
	At       string `yaml:"at"`           // "15:04"
	Jitter   string `yaml:"amortization"` // e.g. "30m"
	Postpone string `yaml:"postpone"`     // optional, e.g. "15m"
}

type Content struct {
	Providers []Provider `yaml:"providers"`
	Settings  Settings   `yaml:"settings"`
}

type Provider struct {
	Domain string   `yaml:"domain"`
	Media  []string `yaml:"media"`
}

type Settings struct {
	TakeMusicPerProvider   int     `yaml:"take_music_per_provider"`
	MusicCollectorSize     int     `yaml:"music_collector_size"`
	TakeImagesPerProvider  int     `yaml:"take_images_per_provider"`
	ImagesCollectorSize    int     `yaml:"images_collector_size"`
	MusicApprovalThreshold float64 `yaml:"music_approval_threshold"`
}

type LLM struct {
	BaseURL        string `yaml:"base_url"`
	TextModel      string `yaml:"text_model"`
	MultiModal     string `yaml:"multi_modal_model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	AudioPrompt    Prompt `yaml:"audio_prompt"`
	PhotoPrompt    Prompt `yaml:"photo_prompt"`
	DiscogsContext string `yaml:"discogs_context"`
}

type Prompt struct {
	Temperature       float32 `yaml:"temperature"`
	SystemInstruction string  `yaml:"system_instruction"`
}

type Discogs struct {
	TokenEnv string `yaml:"token_env"`
}

type VK struct {
	ServiceTokenEnv   string `yaml:"service_token_env"`
	CommunityTokenEnv string `yaml:"community_token_env"`
}

type Telegram struct {
	ChatID   int64  `yaml:"chat_id"`
	TokenEnv string `yaml:"token_env"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for catwall.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "catwall")
}

// DataDir returns the XDG data directory for catwall.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "catwall")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/catwall/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'catwall init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Wallposts: Wallposts{
			Schedule: DailySchedule{
				TimeZone: "UTC",
				Cooldown: "3h",
			},
		},
		Content: Content{
			Settings: Settings{
				TakeMusicPerProvider:   3,
				MusicCollectorSize:     10,
				TakeImagesPerProvider:  3,
				ImagesCollectorSize:    9,
				MusicApprovalThreshold: 0.8,
			},
		},
		LLM: LLM{
			BaseURL:     "https://api.openai.com/v1",
			TextModel:   "gpt-4o-mini",
			MultiModal:  "gpt-4o",
			APIKeyEnv:   "LLM_API_KEY",
			AudioPrompt: Prompt{Temperature: 0.3},
			PhotoPrompt: Prompt{Temperature: 0.2},
		},
		Discogs:  Discogs{TokenEnv: "DISCOGS_TOKEN"},
		VK:       VK{ServiceTokenEnv: "VK_SERVICE_ACCESS_TOKEN", CommunityTokenEnv: "VK_COMMUNITY_ACCESS_TOKEN"},
		Telegram: Telegram{TokenEnv: "TELEGRAM_TOKEN"},
		Server:   Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Location loads the schedule's time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Wallposts.Schedule.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", c.Wallposts.Schedule.TimeZone, err)
	}
	return loc, nil
}

// Cooldown parses the minimum gap between posts.
func (c *Config) Cooldown() (time.Duration, error) {
	d, err := time.ParseDuration(c.Wallposts.Schedule.Cooldown)
	if err != nil {
		return 0, fmt.Errorf("parsing period_between_postings: %w", err)
	}
	return d, nil
}

// Checkpoints converts the configured checkpoints into schedule values,
// sorted by time of day.
func (c *Config) Checkpoints() ([]schedule.Checkpoint, error) {
	out := make([]schedule.Checkpoint, 0, len(c.Wallposts.Schedule.Checkpoints))
	for _, cp := range c.Wallposts.Schedule.Checkpoints {
		at, err := time.Parse("15:04", cp.At)
		if err != nil {
			return nil, fmt.Errorf("parsing checkpoint time %q: %w", cp.At, err)
		}

		var jitter, postpone time.Duration
		if cp.Jitter != "" {
			if jitter, err = time.ParseDuration(cp.Jitter); err != nil {
				return nil, fmt.Errorf("parsing checkpoint amortization %q: %w", cp.Jitter, err)
			}
		}
		if cp.Postpone != "" {
			if postpone, err = time.ParseDuration(cp.Postpone); err != nil {
				return nil, fmt.Errorf("parsing checkpoint postpone %q: %w", cp.Postpone, err)
			}
		}

		out = append(out, schedule.Checkpoint{
			At:       time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute,
			Jitter:   jitter,
			Postpone: postpone,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out, nil
}

// ProvidersFor returns the domains of providers supplying a media class.
func (c *Config) ProvidersFor(media string) []string {
	var domains []string
	for _, p := range c.Content.Providers {
		for _, m := range p.Media {
			if m == media {
				domains = append(domains, p.Domain)
				break
			}
		}
	}
	return domains
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
