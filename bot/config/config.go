package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Settings is the typed configuration for the bot. Every optional knob has a
// default applied before unmarshal, so handlers can read fields directly.
type Settings struct {
	// Community is the protected community the bot defends.
	Community string `koanf:"community"`

	Enabled       bool `koanf:"enabled"`
	PublicComment bool `koanf:"public_comment"`
	ModmailNotify bool `koanf:"modmail_notify"`
	StickyComment bool `koanf:"sticky_comment"`

	// MinimumLinkAgeMinutes is the notification delay after detection.
	MinimumLinkAgeMinutes int `koanf:"minimum_link_age_minutes"`

	// AIProvider is "none" or "gemini".
	AIProvider   string `koanf:"ai_provider"`
	GeminiAPIKey string `koanf:"gemini_api_key"`

	IncludeDeletedContent   bool `koanf:"include_deleted_content"`
	DeletedContentThreshold int  `koanf:"deleted_content_threshold"`

	DetectTrafficSpikes bool `koanf:"detect_traffic_spikes"`
	VelocityThreshold   int  `koanf:"velocity_threshold"`

	EnableAchievements       bool `koanf:"enable_achievements"`
	AchievementCooldownHours int  `koanf:"achievement_cooldown_hours"`

	// DramaCommunities optionally narrows native search to a curated set.
	DramaCommunities []string `koanf:"drama_communities"`

	// ClassifierAllow / ClassifierBlock are mod-curated overrides for the
	// community classifier. Entries are community names.
	ClassifierAllow []string `koanf:"classifier_allow"`
	ClassifierBlock []string `koanf:"classifier_block"`

	Redis    RedisSettings    `koanf:"redis"`
	Postgres PostgresSettings `koanf:"postgres"`
	Archive  ArchiveSettings  `koanf:"archive"`

	// ListenAddr serves /metrics, /healthz and the live feed websocket.
	ListenAddr string `koanf:"listen_addr"`
}

type RedisSettings struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type PostgresSettings struct {
	// ConnString enables the postgres document backend when set; otherwise
	// documents live on the host platform's wiki pages.
	ConnString string `koanf:"conn_string"`
}

type ArchiveSettings struct {
	BaseURL string `koanf:"base_url"`
}

// Defaults returns a Settings with every optional field at its default.
func Defaults() Settings {
	return Settings{
		Enabled:                  true,
		PublicComment:            true,
		ModmailNotify:            true,
		StickyComment:            false,
		MinimumLinkAgeMinutes:    5,
		AIProvider:               "none",
		IncludeDeletedContent:    false,
		DeletedContentThreshold:  3,
		DetectTrafficSpikes:      true,
		VelocityThreshold:        10,
		EnableAchievements:       true,
		AchievementCooldownHours: 24,
		Redis:                    RedisSettings{Addr: "localhost:6379"},
		Archive:                  ArchiveSettings{BaseURL: "https://api.pullpush.io"},
		ListenAddr:               ":8080",
	}
}

// Load reads configuration with precedence: env > config file > defaults.
// Env vars use the HUBBOT_ prefix; double underscore nests a level
// (HUBBOT_REDIS__ADDR -> redis.addr). The gemini key is expected to arrive
// via HUBBOT_GEMINI_API_KEY, never the file.
func Load(configPath string) (*Settings, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	err := k.Load(env.Provider("HUBBOT_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "HUBBOT_")
		s = strings.Replace(s, "__", ".", -1)
		s = strings.ToLower(s)
		return s
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (s *Settings) Validate() error {
	if s.Community == "" {
		return fmt.Errorf("community is required")
	}
	switch s.AIProvider {
	case "none", "gemini":
	default:
		return fmt.Errorf("ai_provider must be \"none\" or \"gemini\", got %q", s.AIProvider)
	}
	if s.AIProvider == "gemini" && s.GeminiAPIKey == "" {
		return fmt.Errorf("ai_provider is gemini but gemini_api_key is empty")
	}
	if s.VelocityThreshold < 1 {
		return fmt.Errorf("velocity_threshold must be >= 1")
	}
	if s.MinimumLinkAgeMinutes < 0 {
		return fmt.Errorf("minimum_link_age_minutes must be >= 0")
	}
	return nil
}

// AIEnabled reports whether an AI provider is configured.
func (s *Settings) AIEnabled() bool {
	return s.AIProvider == "gemini" && s.GeminiAPIKey != ""
}
