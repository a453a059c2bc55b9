package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the engine.
type Config struct {
	Mode string `yaml:"mode"` // "service", "batch", "local"

	Store  StoreConfig  `yaml:"store"`
	GitHub GitHubConfig `yaml:"github"`
	Cache  CacheConfig  `yaml:"cache"`
	LLM    LLMConfig    `yaml:"llm"`
	Engine EngineConfig `yaml:"engine"`
	Blame  BlameConfig  `yaml:"blame"`
}

// StoreConfig configures the graph backend and the relational side-store
// used for run bookkeeping (batch-run resumability, DLQ).
type StoreConfig struct {
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database"`

	StatusBackend string `yaml:"status_backend"` // "postgres", "sqlite", "bolt"
	PostgresDSN   string `yaml:"postgres_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
	BoltPath      string `yaml:"bolt_path"`
}

type GitHubConfig struct {
	Token     string `yaml:"token"`
	RateLimit int    `yaml:"rate_limit"` // requests per second for REST calls
}

type CacheConfig struct {
	Directory      string        `yaml:"directory"`
	TTL            time.Duration `yaml:"ttl"`
	MaxEntries     int           `yaml:"max_entries"`
	SharedCacheURL string        `yaml:"shared_cache_url"` // redis DSN, empty disables the shared tier
}

// LLMConfig configures the provider-neutral chat contract: a primary
// provider plus a single fallback provider.
type LLMConfig struct {
	Primary        string        `yaml:"primary"` // "openai", "anthropic", "gemini"
	Fallback       string        `yaml:"fallback"`
	OpenAIKey      string        `yaml:"openai_key"`
	OpenAIModel    string        `yaml:"openai_model"`
	AnthropicKey   string        `yaml:"anthropic_key"`
	AnthropicModel string        `yaml:"anthropic_model"`
	GeminiKey      string        `yaml:"gemini_key"`
	GeminiModel    string        `yaml:"gemini_model"`
	UseKeychain    bool          `yaml:"use_keychain"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
}

// EngineConfig tunes the recursive documentation engine and the batch
// wavefront scheduler.
type EngineConfig struct {
	Workers        int           `yaml:"workers"`
	MaxCallBudget  int           `yaml:"max_call_budget"`
	MaxRecursDepth int           `yaml:"max_recursion_depth"`
	StoreTimeout   time.Duration `yaml:"store_timeout"`
	BatchSize      int           `yaml:"batch_size"`
}

type BlameConfig struct {
	CoalesceGapLines int           `yaml:"coalesce_gap_lines"` // merge ranges within this many lines
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// Default returns the baseline configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Mode: "service",
		Store: StoreConfig{
			Neo4jURI:      "bolt://localhost:7687",
			Neo4jDatabase: "neo4j",
			StatusBackend: "sqlite",
			SQLitePath:    filepath.Join(homeDir, ".codegraph", "state.db"),
			BoltPath:      filepath.Join(homeDir, ".codegraph", "runs.bolt"),
		},
		GitHub: GitHubConfig{
			RateLimit: 1, // 1 req/sec unless raised explicitly
		},
		Cache: CacheConfig{
			Directory:  filepath.Join(homeDir, ".codegraph", "cache"),
			TTL:        30 * time.Minute,
			MaxEntries: 50000,
		},
		LLM: LLMConfig{
			Primary:        "openai",
			Fallback:       "anthropic",
			OpenAIModel:    "gpt-4o-mini",
			AnthropicModel: "claude-3-5-haiku-latest",
			GeminiModel:    "gemini-1.5-flash",
			CallTimeout:    60 * time.Second,
		},
		Engine: EngineConfig{
			Workers:        8,
			MaxCallBudget:  2000,
			MaxRecursDepth: 64,
			StoreTimeout:   30 * time.Second,
			BatchSize:      100,
		},
		Blame: BlameConfig{
			CoalesceGapLines: 5,
			CacheTTL:         15 * time.Minute,
		},
	}
}

// Load reads configuration from a file (if present) and from environment
// variables, which take precedence over the file. .env files are loaded
// into the environment first and never override a variable already set.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("store", cfg.Store)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("engine", cfg.Engine)
	v.SetDefault("blame", cfg.Blame)

	v.SetEnvPrefix("CODEGRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codegraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codegraph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	cfg.Store.SQLitePath = expandPath(cfg.Store.SQLitePath)
	cfg.Store.BoltPath = expandPath(cfg.Store.BoltPath)
	cfg.Cache.Directory = expandPath(cfg.Cache.Directory)
	return cfg, nil
}

func loadEnvFiles() {
	envFiles := []string{".env.local", ".env", ".env.example"}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err == nil {
				continue
			}
		}
	}
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".codegraph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides, with credential
// precedence: env var > config file > OS keychain. The keychain is consulted
// only for LLM API keys that are still empty.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if rl := os.Getenv("GITHUB_RATE_LIMIT"); rl != "" {
		if v, err := strconv.Atoi(rl); err == nil {
			cfg.GitHub.RateLimit = v
		}
	}

	km := NewKeyringManager()

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	} else if cfg.LLM.OpenAIKey == "" && km.IsAvailable() {
		if k, err := km.GetSecret("openai_api_key"); err == nil && k != "" {
			cfg.LLM.OpenAIKey = k
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	} else if cfg.LLM.AnthropicKey == "" && km.IsAvailable() {
		if k, err := km.GetSecret("anthropic_api_key"); err == nil && k != "" {
			cfg.LLM.AnthropicKey = k
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	} else if cfg.LLM.GeminiKey == "" && km.IsAvailable() {
		if k, err := km.GetSecret("gemini_api_key"); err == nil && k != "" {
			cfg.LLM.GeminiKey = k
		}
	}

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Store.PostgresDSN = dsn
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Store.Neo4jURI = uri
	}
	if u := os.Getenv("NEO4J_USER"); u != "" {
		cfg.Store.Neo4jUser = u
	}
	if p := os.Getenv("NEO4J_PASSWORD"); p != "" {
		cfg.Store.Neo4jPassword = p
	}
	if url := os.Getenv("SHARED_CACHE_URL"); url != "" {
		cfg.Cache.SharedCacheURL = url
	}
	if workers := os.Getenv("ENGINE_WORKERS"); workers != "" {
		if v, err := strconv.Atoi(workers); err == nil {
			cfg.Engine.Workers = v
		}
	}
	if budget := os.Getenv("ENGINE_MAX_CALL_BUDGET"); budget != "" {
		if v, err := strconv.Atoi(budget); err == nil {
			cfg.Engine.MaxCallBudget = v
		}
	}
	if mode := os.Getenv("CODEGRAPH_MODE"); mode != "" {
		cfg.Mode = mode
	}
}

func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, path[1:])
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("mode", c.Mode)
	v.Set("store", c.Store)
	v.Set("github", c.GitHub)
	v.Set("cache", c.Cache)
	v.Set("llm", c.LLM)
	v.Set("engine", c.Engine)
	v.Set("blame", c.Blame)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
