// Package config loads Mnemo's runtime configuration from a TOML file, with
// MNEMO_*-prefixed environment variables overriding individual fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Storage controls where and how much data Mnemo keeps on disk.
type Storage struct {
	DataDir       string  `toml:"data_dir"`
	HotCacheGB    float64 `toml:"hot_cache_gb"`
	WarmStorageGB float64 `toml:"warm_storage_gb"`
	ColdEnabled   bool    `toml:"cold_enabled"`
}

// Proxy controls the HTTP proxy surface.
type Proxy struct {
	ListenAddr        string   `toml:"listen_addr"`
	UpstreamURL       string   `toml:"upstream_url"`
	TimeoutSecs       int      `toml:"timeout_secs"`
	MaxInjectionTokens int     `toml:"max_injection_tokens"`
	AllowedHosts      []string `toml:"allowed_hosts"`
}

// Deterministic pins retrieval ordering for reproducible tests/demos.
type Deterministic struct {
	Enabled           bool    `toml:"enabled"`
	DecimalPlaces     int     `toml:"decimal_places"`
	TopicOverlapWeight float64 `toml:"topic_overlap_weight"`
}

// Router controls query understanding and candidate retrieval strategy.
type Router struct {
	Strategy           string        `toml:"strategy"`
	MaxMemories        int           `toml:"max_memories"`
	RelevanceThreshold float64       `toml:"relevance_threshold"`
	Deterministic      Deterministic `toml:"deterministic"`
}

// Embedding controls the vector representation used for semantic search.
type Embedding struct {
	Dimension int    `toml:"dimension"`
	BatchSize int    `toml:"batch_size"`
	RemoteURL string `toml:"remote_url"`
	RemoteAPIKey string `toml:"remote_api_key"`
	Model     string `toml:"model"`
}

// Weight controls the effective-weight decay/boost formula (spec.md §4.3).
type Weight struct {
	AccessMultiplier     float64 `toml:"access_multiplier"`
	DecayRate            float64 `toml:"decay_rate"`
	EmotionalMultiplier  float64 `toml:"emotional_multiplier"`
	OwnerMultiplier      float64 `toml:"owner_multiplier"`
	AssociationMultiplier float64 `toml:"association_multiplier"`
}

// Capacity controls tiering, compaction, and eviction thresholds.
type Capacity struct {
	SummaryAgeDays         int     `toml:"summary_age_days"`
	KeywordsAgeDays        int     `toml:"keywords_age_days"`
	MinWeightToPreserve    float64 `toml:"min_weight_to_preserve"`
	RecentAccessHours      int     `toml:"recent_access_hours"`
	MinWeightProtected     float64 `toml:"min_weight_protected"`
	WarningThreshold       float64 `toml:"warning_threshold"`
	EvictionThreshold      float64 `toml:"eviction_threshold"`
	AggressiveThreshold    float64 `toml:"aggressive_threshold"`
	MaxMemoriesPerTier     int     `toml:"max_memories_per_tier"`
	AccessPromoteThreshold int     `toml:"access_promote_threshold"`
}

// Logging is the ambient logging section every teacher config in this lineage carries.
type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config is the fully resolved, validated configuration for a Mnemo process.
type Config struct {
	Storage   Storage   `toml:"storage"`
	Proxy     Proxy     `toml:"proxy"`
	Router    Router    `toml:"router"`
	Embedding Embedding `toml:"embedding"`
	Weight    Weight    `toml:"weight"`
	Capacity  Capacity  `toml:"capacity"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:       "./mnemo-data",
			HotCacheGB:    1,
			WarmStorageGB: 8,
			ColdEnabled:   true,
		},
		Proxy: Proxy{
			ListenAddr:         ":8642",
			TimeoutSecs:        30,
			MaxInjectionTokens: 1000,
			AllowedHosts:       nil,
		},
		Router: Router{
			Strategy:           "semantic",
			MaxMemories:        10,
			RelevanceThreshold: 0.3,
			Deterministic: Deterministic{
				Enabled:            false,
				DecimalPlaces:      2,
				TopicOverlapWeight: 0.1,
			},
		},
		Embedding: Embedding{
			Dimension: 384,
			BatchSize: 16,
			Model:     "mnemo-hash-384",
		},
		Weight: Weight{
			AccessMultiplier:      0.05,
			DecayRate:             0.01,
			EmotionalMultiplier:   0.2,
			OwnerMultiplier:       0,
			AssociationMultiplier: 0,
		},
		Capacity: Capacity{
			SummaryAgeDays:         7,
			KeywordsAgeDays:        30,
			MinWeightToPreserve:    0.8,
			RecentAccessHours:      24,
			MinWeightProtected:     0.9,
			WarningThreshold:       0.8,
			EvictionThreshold:      0.95,
			AggressiveThreshold:    0.99,
			MaxMemoriesPerTier:     100000,
			AccessPromoteThreshold: 5,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies MNEMO_* env overrides,
// mirroring the file-plus-env layering the daverage-tinyMem config loader uses.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides mutates cfg in place from MNEMO_*-prefixed environment variables.
func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	i := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	f := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = n
			}
		}
	}
	b := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseBool(v); err == nil {
				*dst = n
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok {
			if v == "" {
				*dst = nil
				return
			}
			*dst = strings.Split(v, ",")
		}
	}

	str("MNEMO_DATA_DIR", &cfg.Storage.DataDir)
	f("MNEMO_HOT_CACHE_GB", &cfg.Storage.HotCacheGB)
	f("MNEMO_WARM_STORAGE_GB", &cfg.Storage.WarmStorageGB)
	b("MNEMO_COLD_ENABLED", &cfg.Storage.ColdEnabled)

	str("MNEMO_LISTEN_ADDR", &cfg.Proxy.ListenAddr)
	str("MNEMO_UPSTREAM_URL", &cfg.Proxy.UpstreamURL)
	i("MNEMO_TIMEOUT_SECS", &cfg.Proxy.TimeoutSecs)
	i("MNEMO_MAX_INJECTION_TOKENS", &cfg.Proxy.MaxInjectionTokens)
	list("MNEMO_ALLOWED_HOSTS", &cfg.Proxy.AllowedHosts)

	str("MNEMO_ROUTER_STRATEGY", &cfg.Router.Strategy)
	i("MNEMO_ROUTER_MAX_MEMORIES", &cfg.Router.MaxMemories)
	f("MNEMO_ROUTER_RELEVANCE_THRESHOLD", &cfg.Router.RelevanceThreshold)
	b("MNEMO_DETERMINISTIC_ENABLED", &cfg.Router.Deterministic.Enabled)
	i("MNEMO_DETERMINISTIC_DECIMAL_PLACES", &cfg.Router.Deterministic.DecimalPlaces)
	f("MNEMO_DETERMINISTIC_TOPIC_OVERLAP_WEIGHT", &cfg.Router.Deterministic.TopicOverlapWeight)

	i("MNEMO_EMBEDDING_DIMENSION", &cfg.Embedding.Dimension)
	i("MNEMO_EMBEDDING_BATCH_SIZE", &cfg.Embedding.BatchSize)
	str("MNEMO_EMBEDDING_REMOTE_URL", &cfg.Embedding.RemoteURL)
	str("MNEMO_EMBEDDING_REMOTE_API_KEY", &cfg.Embedding.RemoteAPIKey)
	str("MNEMO_EMBEDDING_MODEL", &cfg.Embedding.Model)

	f("MNEMO_WEIGHT_ACCESS_MULTIPLIER", &cfg.Weight.AccessMultiplier)
	f("MNEMO_WEIGHT_DECAY_RATE", &cfg.Weight.DecayRate)
	f("MNEMO_WEIGHT_EMOTIONAL_MULTIPLIER", &cfg.Weight.EmotionalMultiplier)
	f("MNEMO_WEIGHT_OWNER_MULTIPLIER", &cfg.Weight.OwnerMultiplier)
	f("MNEMO_WEIGHT_ASSOCIATION_MULTIPLIER", &cfg.Weight.AssociationMultiplier)

	i("MNEMO_SUMMARY_AGE_DAYS", &cfg.Capacity.SummaryAgeDays)
	i("MNEMO_KEYWORDS_AGE_DAYS", &cfg.Capacity.KeywordsAgeDays)
	f("MNEMO_MIN_WEIGHT_TO_PRESERVE", &cfg.Capacity.MinWeightToPreserve)
	i("MNEMO_RECENT_ACCESS_HOURS", &cfg.Capacity.RecentAccessHours)
	f("MNEMO_MIN_WEIGHT_PROTECTED", &cfg.Capacity.MinWeightProtected)
	f("MNEMO_WARNING_THRESHOLD", &cfg.Capacity.WarningThreshold)
	f("MNEMO_EVICTION_THRESHOLD", &cfg.Capacity.EvictionThreshold)
	f("MNEMO_AGGRESSIVE_THRESHOLD", &cfg.Capacity.AggressiveThreshold)
	i("MNEMO_MAX_MEMORIES_PER_TIER", &cfg.Capacity.MaxMemoriesPerTier)
	i("MNEMO_ACCESS_PROMOTE_THRESHOLD", &cfg.Capacity.AccessPromoteThreshold)

	str("MNEMO_LOG_LEVEL", &cfg.Logging.Level)
	str("MNEMO_LOG_FILE", &cfg.Logging.File)
}

// Validate rejects configurations that would violate spec invariants before any
// component starts using them.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("config: storage.data_dir is required")
	}
	if c.Proxy.ListenAddr == "" {
		return fmt.Errorf("config: proxy.listen_addr is required")
	}
	if c.Router.Strategy != "semantic" {
		return fmt.Errorf("config: router.strategy %q is not supported, only \"semantic\"", c.Router.Strategy)
	}
	if c.Router.Deterministic.DecimalPlaces < 1 || c.Router.Deterministic.DecimalPlaces > 4 {
		return fmt.Errorf("config: router.deterministic.decimal_places must be in [1,4], got %d", c.Router.Deterministic.DecimalPlaces)
	}
	if c.Router.Deterministic.TopicOverlapWeight < 0 || c.Router.Deterministic.TopicOverlapWeight > 1 {
		return fmt.Errorf("config: router.deterministic.topic_overlap_weight must be in [0,1]")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config: embedding.dimension must be positive")
	}
	return nil
}

// Redacted returns a copy of c with secret-shaped fields masked, for `mnemo config show`.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Embedding.RemoteAPIKey != "" {
		cp.Embedding.RemoteAPIKey = "****"
	}
	return &cp
}
