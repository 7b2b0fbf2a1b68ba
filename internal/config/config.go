package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        App        `mapstructure:"app"`
	AI         AI         `mapstructure:"ai"`
	Database   Database   `mapstructure:"database"`
	Signal     Signal     `mapstructure:"signal"`
	Clustering Clustering `mapstructure:"clustering"`
	Alignment  Alignment  `mapstructure:"alignment"`
	Mapping    Mapping    `mapstructure:"mapping"`
	Viability  Viability  `mapstructure:"viability"`
	Shortlist  Shortlist  `mapstructure:"shortlist"`
	Output     Output     `mapstructure:"output"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds LLM configuration.
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey              string  `mapstructure:"api_key"`
	Model               string  `mapstructure:"model"`
	EmbeddingModel      string  `mapstructure:"embedding_model"`
	EmbeddingDimensions int     `mapstructure:"embedding_dimensions"`
	Timeout             string  `mapstructure:"timeout"`
	MaxTokens           int32   `mapstructure:"max_tokens"`
	Temperature         float32 `mapstructure:"temperature"`
}

// Database holds storage configuration. The raw/filtered store is a local
// SQLite database; pain events, clusters, and opportunities live in Postgres.
type Database struct {
	PostgresURL string `mapstructure:"postgres_url"`
	SQLiteDir   string `mapstructure:"sqlite_dir"`
}

// Signal holds pain-filter configuration.
type Signal struct {
	MinPainScore float64 `mapstructure:"min_pain_score"`
	TopComments  int     `mapstructure:"top_comments"`
}

// Clustering holds clusterer configuration.
type Clustering struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinClusterSize      int     `mapstructure:"min_cluster_size"`
}

// Alignment holds cross-source aligner configuration.
type Alignment struct {
	MinClusterSize int `mapstructure:"min_cluster_size"`
	MaxCandidates  int `mapstructure:"max_candidates"`
}

// Mapping holds opportunity-mapper configuration.
type Mapping struct {
	MinClusterSize    int `mapstructure:"min_cluster_size"`
	MaxEventsInPrompt int `mapstructure:"max_events_in_prompt"`
	MaxFieldChars     int `mapstructure:"max_field_chars"`
	MaxSummaryChars   int `mapstructure:"max_summary_chars"`
}

// Viability holds viability-scorer configuration: quantitative minimums
// applied after scoring, plus the frequency phrase lookup table.
type Viability struct {
	MinClusterSize       int                `mapstructure:"min_cluster_size"`
	MinUniqueAuthors     int                `mapstructure:"min_unique_authors"`
	MinCrossSubreddits   int                `mapstructure:"min_cross_subreddits"`
	MinAvgFrequencyScore float64            `mapstructure:"min_avg_frequency_score"`
	FrequencyScale       map[string]float64 `mapstructure:"frequency_scale"`
}

// Shortlist holds decision-shortlist configuration.
type Shortlist struct {
	MinViabilityScore float64  `mapstructure:"min_viability_score"`
	MinClusterSize    int      `mapstructure:"min_cluster_size"`
	MinTrustLevel     float64  `mapstructure:"min_trust_level"`
	MinCandidates     int      `mapstructure:"min_candidates"`
	MaxCandidates     int      `mapstructure:"max_candidates"`
	IgnoredClusters   []string `mapstructure:"ignored_clusters"`
	Weights           Weights  `mapstructure:"weights"`
	Boosts            Boosts   `mapstructure:"boosts"`
}

// Weights are the final-score coefficients: viability*W1 +
// log(cluster_size)*W2 + trust*W3 + cross_source_boost*W4.
type Weights struct {
	Viability   float64 `mapstructure:"viability"`
	ClusterSize float64 `mapstructure:"cluster_size"`
	Trust       float64 `mapstructure:"trust"`
	CrossSource float64 `mapstructure:"cross_source"`
}

// Boosts map cross-source validation levels to boost constants.
type Boosts struct {
	Level1 float64 `mapstructure:"level1"`
	Level2 float64 `mapstructure:"level2"`
	Level3 float64 `mapstructure:"level3"`
}

// Output holds report output configuration.
type Output struct {
	Directory string `mapstructure:"directory"`
}

var globalConfig *Config

// Load loads the configuration from .env, config file, and environment.
// Invalid or missing thresholds are a startup failure: the process should
// exit rather than run a pipeline stage with a half-configured ruleset.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".painfinder")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".painfinder")

	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash-preview-05-20")
	viper.SetDefault("ai.gemini.embedding_model", "text-embedding-004")
	viper.SetDefault("ai.gemini.embedding_dimensions", 768)
	viper.SetDefault("ai.gemini.timeout", "30s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.3)

	viper.SetDefault("database.sqlite_dir", ".painfinder")

	viper.SetDefault("signal.min_pain_score", 0.35)
	viper.SetDefault("signal.top_comments", 5)

	viper.SetDefault("clustering.similarity_threshold", 0.78)
	viper.SetDefault("clustering.min_cluster_size", 3)

	viper.SetDefault("alignment.min_cluster_size", 3)
	viper.SetDefault("alignment.max_candidates", 20)

	viper.SetDefault("mapping.min_cluster_size", 3)
	viper.SetDefault("mapping.max_events_in_prompt", 20)
	viper.SetDefault("mapping.max_field_chars", 200)
	viper.SetDefault("mapping.max_summary_chars", 50000)

	viper.SetDefault("viability.min_cluster_size", 3)
	viper.SetDefault("viability.min_unique_authors", 3)
	viper.SetDefault("viability.min_cross_subreddits", 2)
	viper.SetDefault("viability.min_avg_frequency_score", 2.0)
	viper.SetDefault("viability.frequency_scale", map[string]float64{
		"hourly":   5.0,
		"daily":    4.0,
		"每天":       4.0,
		"weekly":   3.0,
		"monthly":  2.0,
		"rarely":   1.0,
		"one-time": 0.5,
		"unknown":  1.5,
	})

	viper.SetDefault("shortlist.min_viability_score", 6.0)
	viper.SetDefault("shortlist.min_cluster_size", 3)
	viper.SetDefault("shortlist.min_trust_level", 1.0)
	viper.SetDefault("shortlist.min_candidates", 3)
	viper.SetDefault("shortlist.max_candidates", 5)
	viper.SetDefault("shortlist.weights.viability", 1.0)
	viper.SetDefault("shortlist.weights.cluster_size", 2.5)
	viper.SetDefault("shortlist.weights.trust", 1.5)
	viper.SetDefault("shortlist.weights.cross_source", 5.0)
	viper.SetDefault("shortlist.boosts.level1", 2.0)
	viper.SetDefault("shortlist.boosts.level2", 1.0)
	viper.SetDefault("shortlist.boosts.level3", 0.5)

	viper.SetDefault("output.directory", "reports")
}

// bindEnvironmentVariables sets up flexible environment variable binding.
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
	bindEnvKeys("database.postgres_url", []string{
		"PAINFINDER_DATABASE_URL",
		"DATABASE_URL",
	})
}

func bindEnvKeys(configKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(configKey, value)
			return
		}
	}
}

// validateConfig rejects configurations no pipeline stage could run with.
func validateConfig(c *Config) error {
	if c.Clustering.SimilarityThreshold <= 0 || c.Clustering.SimilarityThreshold > 1 {
		return fmt.Errorf("clustering.similarity_threshold must be in (0, 1], got %v", c.Clustering.SimilarityThreshold)
	}
	if c.Clustering.MinClusterSize < 1 {
		return fmt.Errorf("clustering.min_cluster_size must be at least 1, got %d", c.Clustering.MinClusterSize)
	}
	if c.Mapping.MaxEventsInPrompt < 1 {
		return fmt.Errorf("mapping.max_events_in_prompt must be at least 1, got %d", c.Mapping.MaxEventsInPrompt)
	}
	if c.Mapping.MaxSummaryChars < 1000 {
		return fmt.Errorf("mapping.max_summary_chars must be at least 1000, got %d", c.Mapping.MaxSummaryChars)
	}
	if c.Shortlist.MinCandidates < 1 || c.Shortlist.MaxCandidates < c.Shortlist.MinCandidates {
		return fmt.Errorf("shortlist candidate bounds invalid: min=%d max=%d",
			c.Shortlist.MinCandidates, c.Shortlist.MaxCandidates)
	}
	if len(c.Viability.FrequencyScale) == 0 {
		return fmt.Errorf("viability.frequency_scale must not be empty")
	}
	if _, ok := c.Viability.FrequencyScale["unknown"]; !ok {
		return fmt.Errorf("viability.frequency_scale must contain an %q fallback entry", "unknown")
	}
	return nil
}
