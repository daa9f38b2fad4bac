package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"social-autopilot/common"
	"social-autopilot/internal/models"
)

// Config holds every tunable of the service. Load fills it from the environment.
type Config struct {
	APIAddr string

	SessionFile string
	RepliedFile string
	SeedFile    string

	RedisAddr  string
	RedisTTL   time.Duration
	RedisKeyNS string

	KafkaBroker        string
	KafkaActivityTopic string
	KafkaFailureTopic  string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	Browser BrowserConfig
	Loop    LoopConfig
	Login   LoginConfig
	Replier ReplierConfig

	LogLevel  string
	LogFormat string
}

// BrowserConfig controls the Chrome process and human pacing.
type BrowserConfig struct {
	BaseURL     string
	Headless    bool
	ChromeBin   string
	ControlURL  string
	UserAgent   string
	Locale      string
	NavTimeout  time.Duration
	DelayMin    time.Duration
	DelayMax    time.Duration
	ScrollTimes int
}

// LoopConfig controls the polling loop.
type LoopConfig struct {
	PollInterval time.Duration
	PollJitter   time.Duration
	SaveEvery    int
}

// LoginConfig controls the interactive login flow.
type LoginConfig struct {
	LandingPattern string
	VerifyTimeout  time.Duration
	Timeout        time.Duration
}

// ReplierConfig controls reply generation.
type ReplierConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
	RPS      float64
	Burst    int
}

// Seed lists queue items to enqueue at startup. Field names follow the batch file format
// accepted by autopilotctl.
type Seed struct {
	VideosToMonitor []string     `yaml:"videosToMonitor" json:"videosToMonitor"`
	VideosToPost    []SeedUpload `yaml:"videosToPost" json:"videosToPost"`
}

// SeedUpload is one upload entry of a Seed.
type SeedUpload struct {
	File    string `yaml:"file" json:"file"`
	Caption string `yaml:"caption" json:"caption"`
}

// Uploads converts the seed uploads to queue items.
func (s Seed) Uploads() []models.UploadItem {
	items := make([]models.UploadItem, 0, len(s.VideosToPost))
	for _, u := range s.VideosToPost {
		items = append(items, models.UploadItem{Path: u.File, Caption: u.Caption})
	}
	return items
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		APIAddr: common.GetEnv("API_ADDR", ":4000"),

		SessionFile: common.GetEnv("SESSION_FILE", "storage/session.json"),
		RepliedFile: common.GetEnv("REPLIED_FILE", "storage/replied.json"),
		SeedFile:    os.Getenv("CONFIG_FILE"),

		RedisAddr:  os.Getenv("REDIS_ADDR"),
		RedisTTL:   common.ParseDuration(os.Getenv("REDIS_REPLIED_TTL"), 30*24*time.Hour),
		RedisKeyNS: common.GetEnv("REDIS_REPLIED_PREFIX", "replied:"),

		KafkaBroker:        os.Getenv("KAFKA_BROKER"),
		KafkaActivityTopic: common.GetEnv("KAFKA_ACTIVITY_TOPIC", "autopilot.activity"),
		KafkaFailureTopic:  common.GetEnv("KAFKA_FAILURE_TOPIC", "autopilot.failures"),

		Neo4jURI:      common.GetEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     common.GetEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: common.GetEnv("NEO4J_PASSWORD", "password"),

		Browser: BrowserConfig{
			BaseURL:     strings.TrimRight(common.GetEnv("SITE_BASE_URL", "https://www.tiktok.com"), "/"),
			Headless:    common.ParseBool(os.Getenv("BROWSER_HEADLESS"), false),
			ChromeBin:   os.Getenv("CHROME_BIN"),
			ControlURL:  os.Getenv("CHROME_CONTROL_URL"),
			UserAgent:   common.GetEnv("BROWSER_USER_AGENT", defaultUserAgent),
			Locale:      common.GetEnv("BROWSER_LOCALE", "en-US"),
			NavTimeout:  common.ParseDuration(os.Getenv("BROWSER_NAV_TIMEOUT"), 30*time.Second),
			DelayMin:    common.ParseDuration(os.Getenv("ACTION_DELAY_MIN"), time.Second),
			DelayMax:    common.ParseDuration(os.Getenv("ACTION_DELAY_MAX"), 3*time.Second),
			ScrollTimes: common.ParseInt(os.Getenv("SCROLL_TIMES"), 2),
		},
		Loop: LoopConfig{
			PollInterval: common.ParseDuration(os.Getenv("POLL_INTERVAL"), 30*time.Second),
			PollJitter:   common.ParseDuration(os.Getenv("POLL_JITTER"), 5*time.Second),
			SaveEvery:    common.ParseInt(os.Getenv("SESSION_SAVE_EVERY"), 10),
		},
		Login: LoginConfig{
			LandingPattern: common.GetEnv("LOGIN_LANDING_PATTERN", "/foryou"),
			VerifyTimeout:  common.ParseDuration(os.Getenv("LOGIN_VERIFY_TIMEOUT"), 15*time.Second),
			Timeout:        common.ParseDuration(os.Getenv("LOGIN_TIMEOUT"), 0),
		},
		Replier: ReplierConfig{
			Endpoint: common.GetEnv("REPLIER_ENDPOINT",
				"https://huggingface.co/api-inference/v1/models/facebook/blenderbot-400M-distill"),
			Token:   os.Getenv("REPLIER_TOKEN"),
			Timeout: common.ParseDuration(os.Getenv("REPLIER_TIMEOUT"), 20*time.Second),
			RPS:     common.ParseFloat(os.Getenv("REPLIER_RPS"), 0.5),
			Burst:   common.ParseInt(os.Getenv("REPLIER_BURST"), 1),
		},

		LogLevel:  common.GetEnv("LOG_LEVEL", "info"),
		LogFormat: common.GetEnv("LOG_FORMAT", "json"),
	}
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Loop.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Loop.PollInterval))
	}
	if c.Loop.PollJitter < 0 {
		errs = append(errs, fmt.Errorf("POLL_JITTER must not be negative, got %s", c.Loop.PollJitter))
	}
	if c.Loop.SaveEvery < 0 {
		errs = append(errs, fmt.Errorf("SESSION_SAVE_EVERY must not be negative, got %d", c.Loop.SaveEvery))
	}
	if c.Browser.DelayMin < 0 || c.Browser.DelayMax < c.Browser.DelayMin {
		errs = append(errs, fmt.Errorf("action delay bounds invalid: min %s max %s", c.Browser.DelayMin, c.Browser.DelayMax))
	}
	if c.Browser.NavTimeout <= 0 {
		errs = append(errs, fmt.Errorf("BROWSER_NAV_TIMEOUT must be positive, got %s", c.Browser.NavTimeout))
	}
	if c.Login.VerifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_VERIFY_TIMEOUT must be positive, got %s", c.Login.VerifyTimeout))
	}
	if c.Login.Timeout < 0 {
		errs = append(errs, fmt.Errorf("LOGIN_TIMEOUT must not be negative, got %s", c.Login.Timeout))
	}
	if strings.TrimSpace(c.Login.LandingPattern) == "" {
		errs = append(errs, errors.New("LOGIN_LANDING_PATTERN must not be empty"))
	}
	if c.Replier.RPS <= 0 || c.Replier.Burst <= 0 {
		errs = append(errs, fmt.Errorf("replier rate invalid: rps %g burst %d", c.Replier.RPS, c.Replier.Burst))
	}
	if c.SessionFile == "" {
		errs = append(errs, errors.New("SESSION_FILE must not be empty"))
	}
	return errors.Join(errs...)
}

// LoadSeed reads a YAML (or JSON, which YAML accepts) seed file. An empty path yields an empty seed.
func LoadSeed(path string) (Seed, error) {
	var seed Seed
	if path == "" {
		return seed, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("read seed file: %w", err)
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return seed, nil
}
