package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"ArticlesClassifier/internal/domain"
)

const (
	defaultTimezone = "UTC"

	// ConfigPathEnv points at the YAML file when --config is not given.
	ConfigPathEnv = "ARTICLES_CLASSIFIER_CONFIG"

	classifierTypeEnv = "CLASSIFIER_TYPE"
	logLevelEnv       = "LOG_LEVEL"
	httpAddrEnv       = "HTTP_ADDR"
	storageDriverEnv  = "STORAGE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	inferenceURLEnv   = "INFERENCE_URL"
	inferenceKeyEnv   = "INFERENCE_API_KEY"
	generatorEnv      = "FEW_SHOT_PROVIDER"
	ollamaBaseURLEnv  = "OLLAMA_BASE_URL"
	ollamaModelEnv    = "OLLAMA_MODEL"
	openAIKeyEnv      = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	openAIBaseURLEnv  = "OPENAI_BASE_URL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Zero-shot scoring backends.
const (
	ScorerLexicon = "lexicon"
	ScorerHTTP    = "http"
)

// Few-shot generation providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Storage drivers; memory keeps history in process only.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Server        ServerConfig       `yaml:"server"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	ZeroShot      ZeroShotConfig     `yaml:"zeroShot"`
	FewShot       FewShotConfig      `yaml:"fewShot"`
	Batch         BatchConfig        `yaml:"batch"`
	Storage       StorageConfig      `yaml:"storage"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
}

// ClassifierConfig selects the active backend and its shared bounds.
type ClassifierConfig struct {
	Type          string        `yaml:"type"`
	Labels        []string      `yaml:"labels"`
	WarmupOnStart bool          `yaml:"warmupOnStart"`
	WarmupTimeout time.Duration `yaml:"warmupTimeout"`
	ProbeTimeout  time.Duration `yaml:"probeTimeout"`
	MaxInputChars int           `yaml:"maxInputChars"`
}

// ZeroShotConfig describes the scoring model behind the fast classifier.
type ZeroShotConfig struct {
	Backend       string        `yaml:"backend"`
	Threshold     float64       `yaml:"threshold"`
	MaxConcurrent int64         `yaml:"maxConcurrent"`
	InferenceURL  string        `yaml:"inferenceUrl"`
	APIKey        string        `yaml:"apiKey"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
}

// FewShotConfig describes the generation endpoint behind the prompting classifier.
type FewShotConfig struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"baseUrl"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"apiKey"`
	SystemPrompt      string        `yaml:"systemPrompt"`
	Temperature       float64       `yaml:"temperature"`
	TopP              float64       `yaml:"topP"`
	MaxTokens         int           `yaml:"maxTokens"`
	Seed              int           `yaml:"seed"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	MaxRetries        int           `yaml:"maxRetries"`
	RetryBaseDelay    time.Duration `yaml:"retryBaseDelay"`
	AssignedScore     float64       `yaml:"assignedScore"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
	MaxExamples       int           `yaml:"maxExamples"`
}

type BatchConfig struct {
	Workers   int    `yaml:"workers"`
	OutputDir string `yaml:"outputDir"`
}

// StorageConfig picks where prediction history and snapshots live.
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	SnapshotFile string `yaml:"snapshotFile"`
}

// MetricsConfig schedules periodic snapshot refreshes; an empty schedule disables them.
type MetricsConfig struct {
	Schedule string `yaml:"schedule"`
}

// SchedulerConfig defines when the daily scan runs.
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	CronExpression string `yaml:"cronExpression"`
	Timezone       string `yaml:"timezone"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	tz := s.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   int64  `yaml:"chatId"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return strings.TrimSpace(t.BotToken) != "" && t.ChatID != 0
}

// SiteConfig describes a single site with its scanner strategy.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
}

// CategoryConfig holds the concrete endpoints to crawl (e.g., Arxiv category URLs).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads YAML configuration on top of the defaults and applies environment overrides.
// An explicit path wins over ARTICLES_CLASSIFIER_CONFIG; with neither, defaults are used.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if t, err := domain.ParseClassifierType(cfg.Classifier.Type); err == nil {
		cfg.Classifier.Type = t.String()
	}
	cfg.ZeroShot.Backend = strings.ToLower(strings.TrimSpace(cfg.ZeroShot.Backend))
	cfg.FewShot.Provider = strings.ToLower(strings.TrimSpace(cfg.FewShot.Provider))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	set := func(env string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}

	set(classifierTypeEnv, &c.Classifier.Type)
	set(logLevelEnv, &c.Logging.Level)
	set(httpAddrEnv, &c.Server.Addr)
	set(storageDriverEnv, &c.Storage.Driver)
	set(databaseDSNEnv, &c.Storage.DSN)
	set(inferenceURLEnv, &c.ZeroShot.InferenceURL)
	set(inferenceKeyEnv, &c.ZeroShot.APIKey)
	set(generatorEnv, &c.FewShot.Provider)
	set(telegramTokenEnv, &c.Notifications.Telegram.BotToken)

	switch strings.ToLower(strings.TrimSpace(c.FewShot.Provider)) {
	case ProviderOpenAI:
		set(openAIKeyEnv, &c.FewShot.APIKey)
		set(openAIModelEnv, &c.FewShot.Model)
		set(openAIBaseURLEnv, &c.FewShot.BaseURL)
	default:
		set(ollamaBaseURLEnv, &c.FewShot.BaseURL)
		set(ollamaModelEnv, &c.FewShot.Model)
	}

	if v := strings.TrimSpace(os.Getenv(telegramChatIDEnv)); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse %s", telegramChatIDEnv)
		}
		c.Notifications.Telegram.ChatID = id
	}
	return nil
}

// Validate rejects settings that would only fail later at request time.
func (c Config) Validate() error {
	if _, err := domain.ParseClassifierType(c.Classifier.Type); err != nil {
		return errors.Wrap(err, "classifier.type")
	}

	switch c.ZeroShot.Backend {
	case ScorerLexicon:
	case ScorerHTTP:
		if strings.TrimSpace(c.ZeroShot.InferenceURL) == "" {
			return errors.New("zeroShot.inferenceUrl is required for the http backend")
		}
	default:
		return errors.Newf("zeroShot.backend %q is not supported (use %s or %s)", c.ZeroShot.Backend, ScorerLexicon, ScorerHTTP)
	}
	if c.ZeroShot.Threshold < 0 || c.ZeroShot.Threshold > 1 {
		return errors.Newf("zeroShot.threshold %v is outside [0,1]", c.ZeroShot.Threshold)
	}

	switch c.FewShot.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if domain.ClassifierType(c.Classifier.Type) == domain.ClassifierFewShot && strings.TrimSpace(c.FewShot.APIKey) == "" {
			return errors.New("fewShot.apiKey is required for the openai provider")
		}
	default:
		return errors.Newf("fewShot.provider %q is not supported (use %s or %s)", c.FewShot.Provider, ProviderOllama, ProviderOpenAI)
	}
	if c.FewShot.AssignedScore < 0 || c.FewShot.AssignedScore > 1 {
		return errors.Newf("fewShot.assignedScore %v is outside [0,1]", c.FewShot.AssignedScore)
	}
	if c.FewShot.MaxRetries < 0 {
		return errors.New("fewShot.maxRetries must not be negative")
	}

	if c.Batch.Workers <= 0 {
		return errors.Newf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	if strings.TrimSpace(c.Batch.OutputDir) == "" {
		return errors.New("batch.outputDir is required")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.Newf("storage.dsn is required for the %s driver", c.Storage.Driver)
		}
	default:
		return errors.Newf("storage.driver %q is not supported", c.Storage.Driver)
	}

	if c.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return errors.Wrapf(err, "scheduler.timezone")
		}
	}
	return nil
}

// Labels returns the configured vocabulary, falling back to the default categories.
func (c Config) Labels() []string {
	if len(c.Classifier.Labels) == 0 {
		return domain.DefaultLabels
	}
	return c.Classifier.Labels
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Classifier: ClassifierConfig{
			Type:          string(domain.ClassifierZeroShot),
			Labels:        domain.DefaultLabels,
			WarmupOnStart: true,
			WarmupTimeout: 5 * time.Minute,
			ProbeTimeout:  3 * time.Second,
			MaxInputChars: 4000,
		},
		ZeroShot: ZeroShotConfig{
			Backend:       ScorerLexicon,
			Threshold:     0.9,
			MaxConcurrent: 1,
			Timeout:       15 * time.Second,
		},
		FewShot: FewShotConfig{
			Provider:       ProviderOllama,
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1:8b",
			Temperature:    0.1,
			TopP:           0.95,
			MaxTokens:      100,
			Seed:           42,
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: 500 * time.Millisecond,
			AssignedScore:  0.8,
			MaxExamples:    8,
		},
		Batch:   BatchConfig{Workers: 1, OutputDir: "processed_csvs"},
		Storage: StorageConfig{Driver: DriverSQLite, DSN: "articles.db", SnapshotFile: "metrics_data.json"},
		Metrics: MetricsConfig{Schedule: "*/15 * * * *"},
		Scheduler: SchedulerConfig{
			Enabled:        false,
			CronExpression: "0 6 * * *",
			Timezone:       defaultTimezone,
		},
		Sites: []SiteConfig{
			{
				Name:    "arxiv-bio",
				Scanner: "arxiv",
				Categories: []CategoryConfig{
					{Name: "q-bio.NC", URL: "https://export.arxiv.org/list/q-bio.NC/pastweek"},
					{Name: "q-bio.TO", URL: "https://export.arxiv.org/list/q-bio.TO/pastweek"},
				},
			},
		},
	}
}
